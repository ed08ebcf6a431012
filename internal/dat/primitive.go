package dat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// reader is a cursor over a byte stream. It counts consumed bytes so that
// errors can report the offset at which decoding failed.
type reader struct {
	r   io.Reader
	off int64
}

func newReader(r io.Reader) *reader {
	return &reader{r: r}
}

// readBytes consumes exactly n bytes.
//
// Postcondition: returns a slice of length n, or an error wrapping ErrTruncatedInput.
func (rd *reader) readBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := io.ReadFull(rd.r, buf)
	rd.off += int64(got)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: wanted %d bytes at offset %d, got %d",
				ErrTruncatedInput, n, rd.off-int64(got), got)
		}
		return nil, fmt.Errorf("reading at offset %d: %w", rd.off, err)
	}
	return buf, nil
}

func (rd *reader) readU8() (uint8, error) {
	b, err := rd.readBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (rd *reader) readU16() (uint16, error) {
	b, err := rd.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// offset returns the number of bytes consumed so far.
func (rd *reader) offset() int64 {
	return rd.off
}

func writeU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func writeU16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// decodeCString decodes a NUL-terminated ASCII payload. The final byte is
// the terminator and is dropped without inspection.
//
// Precondition: data holds the complete payload including the terminator.
// Postcondition: returns the ASCII text, or an error wrapping ErrInvalidEncoding.
func decodeCString(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty string payload, missing terminator", ErrInvalidEncoding)
	}
	text := data[:len(data)-1]
	if err := checkASCII(text); err != nil {
		return "", err
	}
	return string(text), nil
}

// encodeCString returns s followed by a single NUL byte.
//
// Postcondition: len(result) == len(s)+1, or an error wrapping ErrInvalidEncoding.
func encodeCString(s string) ([]byte, error) {
	if err := checkASCII([]byte(s)); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(s)+1)
	out = append(out, s...)
	return append(out, 0), nil
}

func checkASCII(b []byte) error {
	for i, c := range b {
		if c > 0x7F {
			return fmt.Errorf("%w: byte 0x%02X at index %d is not ASCII", ErrInvalidEncoding, c, i)
		}
	}
	return nil
}
