package dat

import "fmt"

// MapWidth is the width and height of every level map in tiles.
const MapWidth = 32

// Coordinate addresses one tile of a level map.
//
// Invariant: X and Y are both in [0, MapWidth-1].
type Coordinate struct {
	X uint8
	Y uint8
}

// NewCoordinate builds a Coordinate from signed values.
//
// Postcondition: returns a Coordinate with X == x and Y == y, or an error
// wrapping ErrCoordinateOutOfRange when either value is outside [0, 31].
func NewCoordinate(x, y int) (Coordinate, error) {
	if x < 0 || x >= MapWidth || y < 0 || y >= MapWidth {
		return Coordinate{}, fmt.Errorf("%w: (%d, %d)", ErrCoordinateOutOfRange, x, y)
	}
	return Coordinate{X: uint8(x), Y: uint8(y)}, nil
}

// Valid reports whether c lies on the map.
func (c Coordinate) Valid() bool {
	return c.X < MapWidth && c.Y < MapWidth
}

// Index returns the row-major offset of c into a Layer.
//
// Precondition: c.Valid().
func (c Coordinate) Index() int {
	return int(c.Y)*MapWidth + int(c.X)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

func (c Coordinate) document() map[string]any {
	return map[string]any{"x": int(c.X), "y": int(c.Y)}
}

func (c Coordinate) check() error {
	if !c.Valid() {
		return fmt.Errorf("%w: (%d, %d)", ErrCoordinateOutOfRange, c.X, c.Y)
	}
	return nil
}

// coordinateFromWords converts a pair of 16-bit on-disk values.
func coordinateFromWords(x, y uint16) (Coordinate, error) {
	return NewCoordinate(int(x), int(y))
}
