// Package dat reads and writes DAT level packs: a magic header, a level
// count and a sequence of levels, each with two 32x32 tile layers and a
// list of optional field records.
//
// Decoding expands run-length encoded layers. Encoding always writes
// layers literally, so a pack that used runs on disk grows when it is
// re-encoded while its tiles stay identical.
package dat

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Magic is the four-byte signature at the start of every DAT file.
var Magic = [4]byte{0xAC, 0xAA, 0x02, 0x00}

// MaxLevels is the largest level count the two-byte count word can hold.
const MaxLevels = 0xFFFF

// LevelPack is an ordered sequence of levels.
type LevelPack struct {
	Levels []*Level
}

// NewLevelPack returns an empty pack.
func NewLevelPack() *LevelPack {
	return &LevelPack{}
}

// AddLevel appends l to the pack.
func (p *LevelPack) AddLevel(l *Level) {
	p.Levels = append(p.Levels, l)
}

// LevelCount returns the number of levels, which is also the count written
// to the header.
func (p *LevelPack) LevelCount() int {
	return len(p.Levels)
}

func (p *LevelPack) String() string {
	var b strings.Builder
	b.WriteString("Level Pack:\n")
	for _, l := range p.Levels {
		b.WriteString(l.String())
	}
	return b.String()
}

// Document returns a plain-data view of the pack for inspection.
func (p *LevelPack) Document() map[string]any {
	levels := make([]any, 0, len(p.Levels))
	for _, l := range p.Levels {
		levels = append(levels, l.Document())
	}
	return map[string]any{"level_count": len(p.Levels), "levels": levels}
}

// DecodeOptions adjusts how Decode interprets a stream.
type DecodeOptions struct {
	// Strict rejects optional fields with unrecognized tags instead of
	// keeping them as Opaque fields.
	Strict bool
}

// Decode reads a level pack from r.
//
// Precondition: r is positioned at the start of a DAT stream.
// Postcondition: returns the decoded pack, or an error wrapping one of the
// package's sentinel errors. Bytes after the last level are not read.
func Decode(r io.Reader) (*LevelPack, error) {
	return DecodeWithOptions(r, DecodeOptions{})
}

// DecodeWithOptions is Decode with explicit options.
func DecodeWithOptions(r io.Reader, opts DecodeOptions) (*LevelPack, error) {
	rd := newReader(r)

	header, err := rd.readBytes(len(Magic))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if !bytes.Equal(header, Magic[:]) {
		return nil, fmt.Errorf("%w: got % X, want % X", ErrInvalidHeader, header, Magic[:])
	}

	count, err := rd.readU16()
	if err != nil {
		return nil, fmt.Errorf("reading level count: %w", err)
	}

	p := &LevelPack{Levels: make([]*Level, 0, count)}
	for i := 0; i < int(count); i++ {
		l, err := decodeLevel(rd, opts)
		if err != nil {
			return nil, fmt.Errorf("decoding level %d of %d: %w", i+1, count, err)
		}
		p.Levels = append(p.Levels, l)
	}
	return p, nil
}

// Unmarshal decodes a complete DAT file held in memory.
//
// Postcondition: returns the pack, or an error. Bytes left over after the
// last level are reported as ErrLevelSize.
func Unmarshal(data []byte) (*LevelPack, error) {
	return UnmarshalWithOptions(data, DecodeOptions{})
}

// UnmarshalWithOptions is Unmarshal with explicit options.
func UnmarshalWithOptions(data []byte, opts DecodeOptions) (*LevelPack, error) {
	r := bytes.NewReader(data)
	p, err := DecodeWithOptions(r, opts)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d bytes after the last level", ErrLevelSize, r.Len())
	}
	return p, nil
}

// Encode writes p to w.
//
// Postcondition: the complete file is written in one call, or an error is
// returned before anything is written.
func Encode(w io.Writer, p *LevelPack) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Marshal returns the on-disk form of p.
func Marshal(p *LevelPack) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil level pack", ErrInvalidEncoding)
	}
	if len(p.Levels) > MaxLevels {
		return nil, fmt.Errorf("%w: %d levels, limit is %d", ErrFieldTooLarge, len(p.Levels), MaxLevels)
	}

	var buf bytes.Buffer
	buf.Write(Magic[:])
	if err := writeU16(&buf, uint16(len(p.Levels))); err != nil {
		return nil, err
	}
	for i, l := range p.Levels {
		if l == nil {
			return nil, fmt.Errorf("%w: level %d is nil", ErrInvalidEncoding, i+1)
		}
		if err := EncodeLevel(&buf, l); err != nil {
			return nil, fmt.Errorf("encoding level %d (number %d): %w", i+1, l.Number, err)
		}
	}
	return buf.Bytes(), nil
}
