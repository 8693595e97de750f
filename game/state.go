// Package game defines the board and piece types for a falling-block game.
//
// Pieces are plain values: moving or rotating one produces a new Piece, so a
// search branch can hold a piece without worrying about aliasing. Boards are
// mutated only by Place and are cloned before branching.
package game

// Point is a board coordinate. (0,0) is the bottom-left cell.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// Piece is a piece of a given kind at a position and rotation. Pos is the
// bottom-left corner of the shape matrix. A Piece is also used as a
// placement record once it has been stamped into a board.
type Piece struct {
	Kind Kind  `json:"kind"`
	Pos  Point `json:"pos"`
	Rot  int   `json:"rot"`
}

// Cells returns the absolute cells the piece occupies.
func (p Piece) Cells() []Point {
	return p.CellsAt(p.Pos, p.Rot)
}

// CellsAt returns the absolute cells the piece would occupy at pos and rot.
func (p Piece) CellsAt(pos Point, rot int) []Point {
	offs := Offsets(p.Kind, rot)
	out := make([]Point, len(offs))
	for i, o := range offs {
		out[i] = pos.Add(o)
	}
	return out
}

// WithPos returns a copy of p moved to pos.
func (p Piece) WithPos(pos Point) Piece {
	p.Pos = pos
	return p
}
