package dat

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// levelFixedSize covers the size, number, time, chips and map detail words
// plus the two layer length words.
const levelFixedSize = 14

// mapDetail is the constant written in every level's map detail word.
const mapDetail = 1

// Level is one level of a pack.
type Level struct {
	// Number is the level's position in the pack, starting at 1 by convention.
	Number uint16
	// Time is the time limit in seconds; 0 means untimed.
	Time uint16
	// Chips is the number of chips required to open the exit.
	Chips uint16
	// Upper is the top tile layer.
	Upper Layer
	// Lower is the tile layer under Upper.
	Lower Layer
	// Fields lists the optional field records in on-disk order.
	Fields []Field
}

// NewLevel returns a level with empty layers and no optional fields.
func NewLevel(number uint16) *Level {
	return &Level{
		Number: number,
		Upper:  NewLayer(),
		Lower:  NewLayer(),
	}
}

// AddField appends f to the level's optional fields.
func (l *Level) AddField(f Field) {
	l.Fields = append(l.Fields, f)
}

// Field returns the first optional field tagged t.
//
// Postcondition: returns (field, true) if found, or (nil, false).
func (l *Level) Field(t FieldType) (Field, bool) {
	for _, f := range l.Fields {
		if f.Type() == t {
			return f, true
		}
	}
	return nil, false
}

// Title returns the text of the level's title field, or "" if it has none.
func (l *Level) Title() string {
	for _, f := range l.Fields {
		if t, ok := f.(*Title); ok {
			return t.Text
		}
	}
	return ""
}

// Size returns the value written to the level's size word: 14 plus the
// encoded size of both layers and every optional field.
func (l *Level) Size() (int, error) {
	fieldsSize, err := OptionalFieldsSize(l.Fields)
	if err != nil {
		return 0, err
	}
	return levelFixedSize + encodedLayerSize(l.Upper) + encodedLayerSize(l.Lower) + fieldsSize, nil
}

// Validate checks that l can be encoded.
//
// Postcondition: returns nil if EncodeLevel would succeed on a working writer.
func (l *Level) Validate() error {
	_, err := l.encode()
	return err
}

func (l *Level) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Level %d:\n", l.Number)
	if title := l.Title(); title != "" {
		fmt.Fprintf(&b, "  Title: %s\n", title)
	}
	fmt.Fprintf(&b, "  Time: %d\n", l.Time)
	fmt.Fprintf(&b, "  Chips: %d\n", l.Chips)
	fmt.Fprintf(&b, "  Fields:")
	for _, f := range l.Fields {
		fmt.Fprintf(&b, " %s", f.Type())
	}
	b.WriteString("\n")
	return b.String()
}

// Document returns a plain-data view of the level for inspection.
func (l *Level) Document() map[string]any {
	fields := make([]any, 0, len(l.Fields))
	for _, f := range l.Fields {
		fields = append(fields, f.Document())
	}
	return map[string]any{
		"level_number":    int(l.Number),
		"time":            int(l.Time),
		"num_chips":       int(l.Chips),
		"upper_layer":     l.Upper.document(),
		"lower_layer":     l.Lower.document(),
		"optional_fields": fields,
	}
}

// EncodeLevel writes l in its on-disk form.
//
// Postcondition: the whole record, size word included, is written in one
// call, or an error is returned before anything is written.
func EncodeLevel(w io.Writer, l *Level) error {
	data, err := l.encode()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// encode renders the level record. Field payloads are computed once so the
// size words and the bytes that follow them always agree.
func (l *Level) encode() ([]byte, error) {
	if err := l.Upper.check(); err != nil {
		return nil, fmt.Errorf("upper layer: %w", err)
	}
	if err := l.Lower.check(); err != nil {
		return nil, fmt.Errorf("lower layer: %w", err)
	}

	var block bytes.Buffer
	for i, f := range l.Fields {
		record, err := fieldRecord(f)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		block.Write(record)
	}
	if block.Len() > 0xFFFF {
		return nil, fmt.Errorf("%w: optional fields take %d bytes", ErrLevelSize, block.Len())
	}

	size := levelFixedSize + encodedLayerSize(l.Upper) + encodedLayerSize(l.Lower) + block.Len()
	if size > 0xFFFF {
		return nil, fmt.Errorf("%w: level takes %d bytes", ErrLevelSize, size)
	}

	var buf bytes.Buffer
	buf.Grow(size + 2)
	for _, v := range []uint16{uint16(size), l.Number, l.Time, l.Chips, mapDetail} {
		if err := writeU16(&buf, v); err != nil {
			return nil, err
		}
	}
	if err := EncodeLayer(&buf, l.Upper); err != nil {
		return nil, fmt.Errorf("upper layer: %w", err)
	}
	if err := EncodeLayer(&buf, l.Lower); err != nil {
		return nil, fmt.Errorf("lower layer: %w", err)
	}
	if err := writeU16(&buf, uint16(block.Len())); err != nil {
		return nil, err
	}
	buf.Write(block.Bytes())
	return buf.Bytes(), nil
}

// decodeLevel reads one level record from rd.
//
// The size word bounds the record: exactly that many bytes are read and the
// record's contents must consume all of them.
func decodeLevel(rd *reader, opts DecodeOptions) (*Level, error) {
	size, err := rd.readU16()
	if err != nil {
		return nil, fmt.Errorf("reading level size: %w", err)
	}
	start := rd.offset()
	body, err := rd.readBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("reading level record: %w", err)
	}

	br := bytes.NewReader(body)
	lr := &reader{r: br, off: start}
	l := &Level{}

	var detail uint16
	for _, dst := range []*uint16{&l.Number, &l.Time, &l.Chips, &detail} {
		if *dst, err = lr.readU16(); err != nil {
			return nil, fmt.Errorf("reading level header: %w", err)
		}
	}

	if l.Upper, err = readLayer(lr); err != nil {
		return nil, fmt.Errorf("upper layer: %w", err)
	}
	if l.Lower, err = readLayer(lr); err != nil {
		return nil, fmt.Errorf("lower layer: %w", err)
	}
	if l.Fields, err = readFieldBlock(lr, opts); err != nil {
		return nil, fmt.Errorf("level %d: %w", l.Number, err)
	}

	if br.Len() != 0 {
		return nil, fmt.Errorf("%w: level %d declares %d bytes, %d left unread",
			ErrLevelSize, l.Number, size, br.Len())
	}
	return l, nil
}

func readLayer(rd *reader) (Layer, error) {
	n, err := rd.readU16()
	if err != nil {
		return nil, err
	}
	data, err := rd.readBytes(int(n))
	if err != nil {
		return nil, err
	}
	return DecodeLayer(data)
}

// readFieldBlock reads the block size word and the records packed after it.
func readFieldBlock(rd *reader, opts DecodeOptions) ([]Field, error) {
	n, err := rd.readU16()
	if err != nil {
		return nil, fmt.Errorf("reading optional fields size: %w", err)
	}
	base := rd.offset()
	block, err := rd.readBytes(int(n))
	if err != nil {
		return nil, fmt.Errorf("reading optional fields: %w", err)
	}

	decode := DecodeField
	if opts.Strict {
		decode = DecodeFieldStrict
	}

	var fields []Field
	for pos := 0; pos < len(block); {
		if len(block)-pos < fieldHeaderSize {
			return nil, fmt.Errorf("%w: field header at offset %d runs past the field block",
				ErrTruncatedInput, base+int64(pos))
		}
		tag, length := FieldType(block[pos]), int(block[pos+1])
		pos += fieldHeaderSize
		if len(block)-pos < length {
			return nil, fmt.Errorf("%w: %s payload of %d bytes at offset %d runs past the field block",
				ErrTruncatedInput, tag, length, base+int64(pos))
		}
		f, err := decode(tag, block[pos:pos+length])
		if err != nil {
			return nil, fmt.Errorf("field %d (%s): %w", len(fields), tag, err)
		}
		fields = append(fields, f)
		pos += length
	}
	return fields, nil
}
