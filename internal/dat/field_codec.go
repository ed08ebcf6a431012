package dat

import (
	"encoding/binary"
	"fmt"
	"io"
)

// fieldHeaderSize is the tag byte plus the payload length byte.
const fieldHeaderSize = 2

// DecodeField builds the field variant selected by tag from its payload.
// Unknown tags are kept as *Opaque.
//
// Precondition: payload is exactly the bytes announced by the record's length byte.
// Postcondition: returns a Field whose Type() == tag, or an error.
func DecodeField(tag FieldType, payload []byte) (Field, error) {
	switch tag {
	case FieldTitle:
		text, err := decodeBoundedText("title", payload, MaxTitleLength)
		if err != nil {
			return nil, err
		}
		return &Title{Text: text}, nil
	case FieldHint:
		text, err := decodeBoundedText("hint", payload, MaxHintLength)
		if err != nil {
			return nil, err
		}
		return &Hint{Text: text}, nil
	case FieldTrapControls:
		return decodeTrapControls(payload)
	case FieldCloningMachineControls:
		return decodeCloningMachineControls(payload)
	case FieldEncodedPassword:
		return decodeEncodedPassword(payload)
	case FieldPlaintextPassword:
		text, err := decodeCString(payload)
		if err != nil {
			return nil, fmt.Errorf("plaintext password: %w", err)
		}
		return &PlaintextPassword{Text: text}, nil
	case FieldMonsterMovement:
		return decodeMonsterMovement(payload)
	default:
		return &Opaque{Tag: tag, Data: append([]byte(nil), payload...)}, nil
	}
}

// DecodeFieldStrict is DecodeField restricted to the recognized field set.
//
// Postcondition: an unknown tag yields an error wrapping ErrUnsupportedFieldType.
func DecodeFieldStrict(tag FieldType, payload []byte) (Field, error) {
	if !tag.Known() {
		return nil, fmt.Errorf("%w: tag %d", ErrUnsupportedFieldType, uint8(tag))
	}
	return DecodeField(tag, payload)
}

// EncodeField writes f as a tag byte, a length byte and the payload.
//
// Postcondition: exactly FieldSize(f) bytes are written, or an error is
// returned before anything is written.
func EncodeField(w io.Writer, f Field) error {
	record, err := fieldRecord(f)
	if err != nil {
		return err
	}
	_, err = w.Write(record)
	return err
}

// FieldSize returns the number of bytes f occupies on disk, header included.
func FieldSize(f Field) (int, error) {
	payload, err := fieldPayload(f)
	if err != nil {
		return 0, err
	}
	return len(payload) + fieldHeaderSize, nil
}

// OptionalFieldsSize returns the on-disk size of a level's field block
// contents, excluding the block's own two-byte size word.
func OptionalFieldsSize(fields []Field) (int, error) {
	total := 0
	for i, f := range fields {
		n, err := FieldSize(f)
		if err != nil {
			return 0, fmt.Errorf("field %d (%s): %w", i, f.Type(), err)
		}
		total += n
	}
	return total, nil
}

// fieldPayload returns f's payload after checking it fits a length byte.
func fieldPayload(f Field) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil field", ErrInvalidEncoding)
	}
	payload, err := f.Payload()
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxFieldPayloadSize {
		return nil, fmt.Errorf("%w: %s payload is %d bytes, limit is %d",
			ErrFieldTooLarge, f.Type(), len(payload), MaxFieldPayloadSize)
	}
	return payload, nil
}

func fieldRecord(f Field) ([]byte, error) {
	payload, err := fieldPayload(f)
	if err != nil {
		return nil, err
	}
	record := make([]byte, 0, len(payload)+fieldHeaderSize)
	record = append(record, byte(f.Type()), byte(len(payload)))
	return append(record, payload...), nil
}

func decodeBoundedText(name string, payload []byte, limit int) (string, error) {
	text, err := decodeCString(payload)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if len(text) > limit {
		return "", fmt.Errorf("%w: %s is %d characters, limit is %d", ErrFieldTooLarge, name, len(text), limit)
	}
	return text, nil
}

// decodeLinks splits payload into entrySize-byte entries of four
// little-endian words. Bytes past the fourth word are ignored.
func decodeLinks(name string, payload []byte, entrySize, limit int) ([][2]Coordinate, error) {
	if len(payload)%entrySize != 0 {
		return nil, fmt.Errorf("%w: %s payload of %d bytes is not a multiple of %d",
			ErrInvalidEncoding, name, len(payload), entrySize)
	}
	count := len(payload) / entrySize
	if count > limit {
		return nil, fmt.Errorf("%w: %d %s, limit is %d", ErrFieldTooLarge, count, name, limit)
	}
	if count == 0 {
		return nil, nil
	}
	links := make([][2]Coordinate, count)
	for i := range links {
		entry := payload[i*entrySize : (i+1)*entrySize]
		from, err := coordinateFromWords(
			binary.LittleEndian.Uint16(entry[0:2]),
			binary.LittleEndian.Uint16(entry[2:4]),
		)
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", name, i, err)
		}
		to, err := coordinateFromWords(
			binary.LittleEndian.Uint16(entry[4:6]),
			binary.LittleEndian.Uint16(entry[6:8]),
		)
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", name, i, err)
		}
		links[i] = [2]Coordinate{from, to}
	}
	return links, nil
}

func decodeTrapControls(payload []byte) (*TrapControls, error) {
	links, err := decodeLinks("trap controls", payload, trapEntrySize, MaxTrapControls)
	if err != nil {
		return nil, err
	}
	var traps []TrapControl
	for _, l := range links {
		traps = append(traps, TrapControl{Button: l[0], Trap: l[1]})
	}
	return &TrapControls{Traps: traps}, nil
}

func decodeCloningMachineControls(payload []byte) (*CloningMachineControls, error) {
	links, err := decodeLinks("cloning machine controls", payload, cloningEntrySize, MaxCloningMachines)
	if err != nil {
		return nil, err
	}
	var machines []CloningMachineControl
	for _, l := range links {
		machines = append(machines, CloningMachineControl{Button: l[0], Machine: l[1]})
	}
	return &CloningMachineControls{Machines: machines}, nil
}

func decodeEncodedPassword(payload []byte) (*EncodedPassword, error) {
	if len(payload) == 0 || payload[len(payload)-1] != 0 {
		return nil, fmt.Errorf("%w: encoded password is not NUL terminated", ErrInvalidEncoding)
	}
	f := &EncodedPassword{Codes: append([]byte(nil), payload[:len(payload)-1]...)}
	if err := f.check(); err != nil {
		return nil, err
	}
	return f, nil
}

func decodeMonsterMovement(payload []byte) (*MonsterMovement, error) {
	if len(payload)%monsterEntrySize != 0 {
		return nil, fmt.Errorf("%w: monster payload of %d bytes is odd", ErrInvalidEncoding, len(payload))
	}
	count := len(payload) / monsterEntrySize
	if count > MaxMonsters {
		return nil, fmt.Errorf("%w: %d monsters, limit is %d", ErrFieldTooLarge, count, MaxMonsters)
	}
	if count == 0 {
		return &MonsterMovement{}, nil
	}
	monsters := make([]Coordinate, count)
	for i := range monsters {
		c, err := NewCoordinate(int(payload[2*i]), int(payload[2*i+1]))
		if err != nil {
			return nil, fmt.Errorf("monster %d: %w", i, err)
		}
		monsters[i] = c
	}
	return &MonsterMovement{Monsters: monsters}, nil
}
