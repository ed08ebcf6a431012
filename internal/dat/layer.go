package dat

import (
	"fmt"
	"io"
)

// LayerTiles is the number of tiles in one layer.
const LayerTiles = MapWidth * MapWidth

// rleMarker starts a run: it is followed by a repeat count and a tile value.
const rleMarker = 0xFF

// Layer is one 32x32 grid of tile values in row-major order.
//
// Tile value 255 collides with the run marker and cannot be stored as a
// literal tile. EncodeLayer writes it unchanged, so a layer holding 255
// does not decode back to itself.
type Layer []byte

// NewLayer returns a layer of LayerTiles tiles, all zero.
func NewLayer() Layer {
	return make(Layer, LayerTiles)
}

// At returns the tile at c.
//
// Precondition: len(l) == LayerTiles and c.Valid().
func (l Layer) At(c Coordinate) byte {
	return l[c.Index()]
}

// Set stores tile at c.
//
// Precondition: len(l) == LayerTiles and c.Valid().
func (l Layer) Set(c Coordinate, tile byte) {
	l[c.Index()] = tile
}

func (l Layer) check() error {
	if len(l) != LayerTiles {
		return fmt.Errorf("%w: layer has %d tiles, want %d", ErrCorruptLayer, len(l), LayerTiles)
	}
	return nil
}

// document returns the layer as MapWidth rows of MapWidth tile values.
func (l Layer) document() []any {
	rows := make([]any, 0, MapWidth)
	for start := 0; start < len(l); start += MapWidth {
		end := min(start+MapWidth, len(l))
		row := make([]any, 0, MapWidth)
		for _, t := range l[start:end] {
			row = append(row, int(t))
		}
		rows = append(rows, row)
	}
	return rows
}

// DecodeLayer expands the on-disk bytes of one layer. A byte of 255 is
// followed by a count and a value and expands to count copies of value;
// every other byte is a literal tile.
//
// Postcondition: returns exactly LayerTiles tiles, or an error wrapping
// ErrCorruptLayer.
func DecodeLayer(data []byte) (Layer, error) {
	out := make(Layer, 0, LayerTiles)
	for i := 0; i < len(data); {
		if data[i] != rleMarker {
			out = append(out, data[i])
			i++
			continue
		}
		if i+2 >= len(data) {
			return nil, fmt.Errorf("%w: run at byte %d is missing its count or value", ErrCorruptLayer, i)
		}
		count, value := int(data[i+1]), data[i+2]
		if len(out)+count > LayerTiles {
			return nil, fmt.Errorf("%w: run at byte %d overflows the layer", ErrCorruptLayer, i)
		}
		for j := 0; j < count; j++ {
			out = append(out, value)
		}
		i += 3
	}
	if err := out.check(); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeLayer writes the layer's length word followed by every tile as a
// literal byte. No run-length compression is applied.
//
// Precondition: len(layer) == LayerTiles.
// Postcondition: 2+LayerTiles bytes are written, or an error is returned
// before anything is written.
func EncodeLayer(w io.Writer, layer Layer) error {
	if err := layer.check(); err != nil {
		return err
	}
	if err := writeU16(w, uint16(len(layer))); err != nil {
		return err
	}
	_, err := w.Write(layer)
	return err
}

// encodedLayerSize is the number of bytes EncodeLayer writes after the length word.
func encodedLayerSize(layer Layer) int {
	return len(layer)
}
