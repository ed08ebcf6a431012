package dat

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DumpYAML writes the document view of p to w as YAML. Tile rows and other
// lists of plain values are written in flow style, one row per line.
//
// Postcondition: w receives a YAML document, or an error is returned.
func DumpYAML(w io.Writer, p *LevelPack) error {
	var root yaml.Node
	if err := root.Encode(p.Document()); err != nil {
		return fmt.Errorf("building YAML document: %w", err)
	}
	flowScalarLists(&root)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return fmt.Errorf("writing YAML document: %w", err)
	}
	return enc.Close()
}

// flowScalarLists switches every sequence made only of scalars to flow style.
func flowScalarLists(n *yaml.Node) {
	if n.Kind == yaml.SequenceNode && len(n.Content) > 0 {
		scalars := true
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				scalars = false
				break
			}
		}
		if scalars {
			n.Style = yaml.FlowStyle
			return
		}
	}
	for _, c := range n.Content {
		flowScalarLists(c)
	}
}
