package dat

import "errors"

// ErrTruncatedInput is returned when fewer bytes remain than a length field promised.
var ErrTruncatedInput = errors.New("truncated input")

// ErrInvalidHeader is returned when a stream does not start with the DAT magic.
var ErrInvalidHeader = errors.New("invalid DAT header")

// ErrCorruptLayer is returned when a layer does not hold exactly LayerTiles tiles.
var ErrCorruptLayer = errors.New("corrupt layer")

// ErrFieldTooLarge is returned when a field exceeds a count or length bound
// of the format, including the 255-byte payload limit.
var ErrFieldTooLarge = errors.New("field too large")

// ErrInvalidEncoding is returned for non-ASCII text or malformed field payloads.
var ErrInvalidEncoding = errors.New("invalid encoding")

// ErrUnsupportedOnWrite is returned when encoding a decode-only field variant.
var ErrUnsupportedOnWrite = errors.New("field type cannot be written")

// ErrUnsupportedFieldType is returned by strict decoding for unknown field tags.
var ErrUnsupportedFieldType = errors.New("unsupported field type")

// ErrCoordinateOutOfRange is returned for a map coordinate outside [0, 31].
var ErrCoordinateOutOfRange = errors.New("coordinate out of range")

// ErrLevelSize is returned when a level record does not match its declared size.
var ErrLevelSize = errors.New("level size mismatch")
