package dat

import (
	"encoding/binary"
	"fmt"
)

// FieldType is the one-byte tag that identifies an optional field record.
type FieldType uint8

// Recognized optional field tags.
const (
	FieldTitle                  FieldType = 3
	FieldTrapControls           FieldType = 4
	FieldCloningMachineControls FieldType = 5
	FieldEncodedPassword        FieldType = 6
	FieldHint                   FieldType = 7
	FieldPlaintextPassword      FieldType = 8
	FieldMonsterMovement        FieldType = 10
)

// Format limits for optional fields.
const (
	MaxTitleLength      = 63
	MaxHintLength       = 127
	MaxTrapControls     = 25
	MaxCloningMachines  = 31
	MinPasswordCodes    = 4
	MaxPasswordCodes    = 9
	MaxMonsters         = 128
	MaxFieldPayloadSize = 255

	trapEntrySize    = 10
	cloningEntrySize = 8
	monsterEntrySize = 2
)

// Known reports whether t is one of the recognized field tags.
func (t FieldType) Known() bool {
	switch t {
	case FieldTitle, FieldTrapControls, FieldCloningMachineControls,
		FieldEncodedPassword, FieldHint, FieldPlaintextPassword, FieldMonsterMovement:
		return true
	}
	return false
}

func (t FieldType) String() string {
	switch t {
	case FieldTitle:
		return "title"
	case FieldTrapControls:
		return "trap_controls"
	case FieldCloningMachineControls:
		return "cloning_machine_controls"
	case FieldEncodedPassword:
		return "encoded_password"
	case FieldHint:
		return "hint"
	case FieldPlaintextPassword:
		return "plaintext_password"
	case FieldMonsterMovement:
		return "monster_movement"
	default:
		return fmt.Sprintf("opaque_%d", uint8(t))
	}
}

// Field is one optional field record of a level. The set of implementations
// is closed: Title, TrapControls, CloningMachineControls, EncodedPassword,
// Hint, PlaintextPassword, MonsterMovement and Opaque.
type Field interface {
	// Type returns the record's tag.
	Type() FieldType
	// Payload returns the on-disk bytes of the record without its
	// two-byte type and length header.
	Payload() ([]byte, error)
	// Document returns a plain-data view of the field for inspection.
	Document() map[string]any

	isField()
}

// Title is the level's display name.
type Title struct {
	Text string
}

// NewTitle validates text and wraps it as a Title.
//
// Postcondition: returns a Title, or an error if text is not ASCII or is
// longer than MaxTitleLength.
func NewTitle(text string) (*Title, error) {
	if err := checkText("title", text, MaxTitleLength); err != nil {
		return nil, err
	}
	return &Title{Text: text}, nil
}

func (*Title) Type() FieldType { return FieldTitle }
func (*Title) isField()        {}

func (f *Title) Payload() ([]byte, error) {
	if err := checkText("title", f.Text, MaxTitleLength); err != nil {
		return nil, err
	}
	return encodeCString(f.Text)
}

func (f *Title) Document() map[string]any {
	return map[string]any{"type": FieldTitle.String(), "text": f.Text}
}

// Hint is the text shown when the player steps on a hint tile.
type Hint struct {
	Text string
}

// NewHint validates text and wraps it as a Hint.
//
// Postcondition: returns a Hint, or an error if text is not ASCII or is
// longer than MaxHintLength.
func NewHint(text string) (*Hint, error) {
	if err := checkText("hint", text, MaxHintLength); err != nil {
		return nil, err
	}
	return &Hint{Text: text}, nil
}

func (*Hint) Type() FieldType { return FieldHint }
func (*Hint) isField()        {}

func (f *Hint) Payload() ([]byte, error) {
	if err := checkText("hint", f.Text, MaxHintLength); err != nil {
		return nil, err
	}
	return encodeCString(f.Text)
}

func (f *Hint) Document() map[string]any {
	return map[string]any{"type": FieldHint.String(), "text": f.Text}
}

// TrapControl links a brown button to the trap it releases.
type TrapControl struct {
	Button Coordinate
	Trap   Coordinate
}

// TrapControls lists the button to trap links of a level.
type TrapControls struct {
	Traps []TrapControl
}

// NewTrapControls validates traps and wraps them as a TrapControls field.
//
// Postcondition: returns the field, or an error if there are more than
// MaxTrapControls links or a coordinate is off the map.
func NewTrapControls(traps []TrapControl) (*TrapControls, error) {
	f := &TrapControls{Traps: nilIfEmpty(traps)}
	if err := f.check(); err != nil {
		return nil, err
	}
	return f, nil
}

func (*TrapControls) Type() FieldType { return FieldTrapControls }
func (*TrapControls) isField()        {}

func (f *TrapControls) check() error {
	if len(f.Traps) > MaxTrapControls {
		return fmt.Errorf("%w: %d trap controls, limit is %d", ErrFieldTooLarge, len(f.Traps), MaxTrapControls)
	}
	for i, t := range f.Traps {
		if err := t.Button.check(); err != nil {
			return fmt.Errorf("trap control %d button: %w", i, err)
		}
		if err := t.Trap.check(); err != nil {
			return fmt.Errorf("trap control %d trap: %w", i, err)
		}
	}
	return nil
}

// Payload emits four little-endian words per link followed by two zero bytes.
func (f *TrapControls) Payload() ([]byte, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	out := make([]byte, len(f.Traps)*trapEntrySize)
	for i, t := range f.Traps {
		putLink(out[i*trapEntrySize:], t.Button, t.Trap)
	}
	return out, nil
}

func (f *TrapControls) Document() map[string]any {
	traps := make([]any, 0, len(f.Traps))
	for _, t := range f.Traps {
		traps = append(traps, map[string]any{
			"button": t.Button.document(),
			"trap":   t.Trap.document(),
		})
	}
	return map[string]any{"type": FieldTrapControls.String(), "traps": traps}
}

// CloningMachineControl links a red button to the cloning machine it triggers.
type CloningMachineControl struct {
	Button  Coordinate
	Machine Coordinate
}

// CloningMachineControls lists the button to cloning machine links of a level.
type CloningMachineControls struct {
	Machines []CloningMachineControl
}

// NewCloningMachineControls validates machines and wraps them as a field.
//
// Postcondition: returns the field, or an error if there are more than
// MaxCloningMachines links or a coordinate is off the map.
func NewCloningMachineControls(machines []CloningMachineControl) (*CloningMachineControls, error) {
	f := &CloningMachineControls{Machines: nilIfEmpty(machines)}
	if err := f.check(); err != nil {
		return nil, err
	}
	return f, nil
}

func (*CloningMachineControls) Type() FieldType { return FieldCloningMachineControls }
func (*CloningMachineControls) isField()        {}

func (f *CloningMachineControls) check() error {
	if len(f.Machines) > MaxCloningMachines {
		return fmt.Errorf("%w: %d cloning machine controls, limit is %d",
			ErrFieldTooLarge, len(f.Machines), MaxCloningMachines)
	}
	for i, m := range f.Machines {
		if err := m.Button.check(); err != nil {
			return fmt.Errorf("cloning machine control %d button: %w", i, err)
		}
		if err := m.Machine.check(); err != nil {
			return fmt.Errorf("cloning machine control %d machine: %w", i, err)
		}
	}
	return nil
}

func (f *CloningMachineControls) Payload() ([]byte, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	out := make([]byte, len(f.Machines)*cloningEntrySize)
	for i, m := range f.Machines {
		putLink(out[i*cloningEntrySize:], m.Button, m.Machine)
	}
	return out, nil
}

func (f *CloningMachineControls) Document() map[string]any {
	machines := make([]any, 0, len(f.Machines))
	for _, m := range f.Machines {
		machines = append(machines, map[string]any{
			"button":  m.Button.document(),
			"machine": m.Machine.document(),
		})
	}
	return map[string]any{"type": FieldCloningMachineControls.String(), "machines": machines}
}

// EncodedPassword holds the level password in its on-disk encoded form,
// one code per character.
type EncodedPassword struct {
	Codes []byte
}

// NewEncodedPassword validates codes and wraps them as a password field.
//
// Postcondition: returns the field, or an error unless
// MinPasswordCodes <= len(codes) <= MaxPasswordCodes.
func NewEncodedPassword(codes []byte) (*EncodedPassword, error) {
	f := &EncodedPassword{Codes: codes}
	if err := f.check(); err != nil {
		return nil, err
	}
	return f, nil
}

func (*EncodedPassword) Type() FieldType { return FieldEncodedPassword }
func (*EncodedPassword) isField()        {}

func (f *EncodedPassword) check() error {
	if n := len(f.Codes); n < MinPasswordCodes || n > MaxPasswordCodes {
		return fmt.Errorf("%w: password has %d codes, want %d to %d",
			ErrFieldTooLarge, n, MinPasswordCodes, MaxPasswordCodes)
	}
	return nil
}

func (f *EncodedPassword) Payload() ([]byte, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(f.Codes)+1)
	out = append(out, f.Codes...)
	return append(out, 0), nil
}

func (f *EncodedPassword) Document() map[string]any {
	codes := make([]any, 0, len(f.Codes))
	for _, c := range f.Codes {
		codes = append(codes, int(c))
	}
	return map[string]any{"type": FieldEncodedPassword.String(), "codes": codes}
}

// PlaintextPassword is a legacy record kept readable for old level packs.
// It is never written: Payload always fails with ErrUnsupportedOnWrite.
type PlaintextPassword struct {
	Text string
}

func (*PlaintextPassword) Type() FieldType { return FieldPlaintextPassword }
func (*PlaintextPassword) isField()        {}

func (f *PlaintextPassword) Payload() ([]byte, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOnWrite, FieldPlaintextPassword)
}

func (f *PlaintextPassword) Document() map[string]any {
	return map[string]any{"type": FieldPlaintextPassword.String(), "text": f.Text}
}

// MonsterMovement lists the tiles of monsters that move each turn, in
// movement order.
type MonsterMovement struct {
	Monsters []Coordinate
}

// NewMonsterMovement validates monsters and wraps them as a field.
//
// Postcondition: returns the field, or an error if there are more than
// MaxMonsters entries or a coordinate is off the map.
func NewMonsterMovement(monsters []Coordinate) (*MonsterMovement, error) {
	f := &MonsterMovement{Monsters: nilIfEmpty(monsters)}
	if err := f.check(); err != nil {
		return nil, err
	}
	return f, nil
}

func (*MonsterMovement) Type() FieldType { return FieldMonsterMovement }
func (*MonsterMovement) isField()        {}

func (f *MonsterMovement) check() error {
	if len(f.Monsters) > MaxMonsters {
		return fmt.Errorf("%w: %d monsters, limit is %d", ErrFieldTooLarge, len(f.Monsters), MaxMonsters)
	}
	for i, m := range f.Monsters {
		if err := m.check(); err != nil {
			return fmt.Errorf("monster %d: %w", i, err)
		}
	}
	return nil
}

func (f *MonsterMovement) Payload() ([]byte, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(f.Monsters)*monsterEntrySize)
	for _, m := range f.Monsters {
		out = append(out, m.X, m.Y)
	}
	return out, nil
}

func (f *MonsterMovement) Document() map[string]any {
	monsters := make([]any, 0, len(f.Monsters))
	for _, m := range f.Monsters {
		monsters = append(monsters, m.document())
	}
	return map[string]any{"type": FieldMonsterMovement.String(), "monsters": monsters}
}

// Opaque carries a record whose tag is not recognized. Its bytes are
// written back exactly as they were read.
type Opaque struct {
	Tag  FieldType
	Data []byte
}

// NewOpaque wraps data under an unrecognized tag.
//
// Postcondition: returns the field, or an error if tag is a recognized
// field type or data exceeds MaxFieldPayloadSize.
func NewOpaque(tag FieldType, data []byte) (*Opaque, error) {
	f := &Opaque{Tag: tag, Data: nilIfEmpty(data)}
	if err := f.check(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Opaque) Type() FieldType { return f.Tag }
func (*Opaque) isField()          {}

func (f *Opaque) check() error {
	if f.Tag.Known() {
		return fmt.Errorf("%w: tag %d is %s, not an opaque field", ErrInvalidEncoding, uint8(f.Tag), f.Tag)
	}
	if len(f.Data) > MaxFieldPayloadSize {
		return fmt.Errorf("%w: opaque payload is %d bytes", ErrFieldTooLarge, len(f.Data))
	}
	return nil
}

func (f *Opaque) Payload() ([]byte, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return append([]byte(nil), f.Data...), nil
}

func (f *Opaque) Document() map[string]any {
	data := make([]any, 0, len(f.Data))
	for _, b := range f.Data {
		data = append(data, int(b))
	}
	return map[string]any{"type": f.Tag.String(), "tag": int(f.Tag), "data": data}
}

func checkText(name, text string, limit int) error {
	if len(text) > limit {
		return fmt.Errorf("%w: %s is %d characters, limit is %d", ErrFieldTooLarge, name, len(text), limit)
	}
	if err := checkASCII([]byte(text)); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func putLink(dst []byte, from, to Coordinate) {
	binary.LittleEndian.PutUint16(dst[0:2], uint16(from.X))
	binary.LittleEndian.PutUint16(dst[2:4], uint16(from.Y))
	binary.LittleEndian.PutUint16(dst[4:6], uint16(to.X))
	binary.LittleEndian.PutUint16(dst[6:8], uint16(to.Y))
}

// nilIfEmpty stores empty lists as nil, the form decoding produces.
func nilIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
