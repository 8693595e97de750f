package game

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultWidth  = 10
	DefaultHeight = 30
)

var (
	ErrInvalidSize    = errors.New("invalid board size")
	ErrNotRectangular = errors.New("board rows have differing widths")
	ErrInvalidCell    = errors.New("cell value out of range")
	ErrInvalidSpawn   = errors.New("spawn outside board")
)

// Board is a fixed-size grid of cell values. Row 0 is the bottom row. Rows
// above height are treated as open; rows below 0 and columns outside
// [0,width) are treated as filled.
type Board struct {
	width  int
	height int
	spawn  Point
	rows   [][]uint8
}

// DefaultSpawn returns the spawn coordinate for a board of the given size:
// (3,18) on a 10x30 board.
func DefaultSpawn(width, height int) Point {
	x := (width - 3) / 2
	if x < 0 {
		x = 0
	}
	y := height - 4
	if y > 18 {
		y = 18
	}
	if y < 0 {
		y = 0
	}
	return Point{X: x, Y: y}
}

// NewBoard returns an empty board with the default spawn.
func NewBoard(width, height int) (*Board, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	rows := make([][]uint8, height)
	for y := range rows {
		rows[y] = make([]uint8, width)
	}
	return &Board{width: width, height: height, spawn: DefaultSpawn(width, height), rows: rows}, nil
}

// FromLayout builds a board from a bottom-first grid. The grid is copied.
// Cell values must be in 0..8, 8 being the debug kind X. A nil spawn
// selects DefaultSpawn; any other spawn must lie inside the grid.
func FromLayout(layout [][]uint8, spawn *Point) (*Board, error) {
	if len(layout) == 0 || len(layout[0]) == 0 {
		return nil, fmt.Errorf("%w: empty grid", ErrInvalidSize)
	}
	width := len(layout[0])
	rows := make([][]uint8, len(layout))
	for y, src := range layout {
		if len(src) != width {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrNotRectangular, y, len(src), width)
		}
		for x, v := range src {
			if v > uint8(X) {
				return nil, fmt.Errorf("%w: %d at (%d,%d)", ErrInvalidCell, v, x, y)
			}
		}
		rows[y] = append([]uint8(nil), src...)
	}
	b := &Board{width: width, height: len(rows), rows: rows}
	if spawn != nil {
		if err := checkSpawn(width, len(rows), *spawn); err != nil {
			return nil, err
		}
		b.spawn = *spawn
	} else {
		b.spawn = DefaultSpawn(width, len(rows))
	}
	return b, nil
}

// FromInts is FromLayout for grids decoded from JSON.
func FromInts(layout [][]int, spawn *Point) (*Board, error) {
	conv := make([][]uint8, len(layout))
	for y, row := range layout {
		conv[y] = make([]uint8, len(row))
		for x, v := range row {
			if v < 0 || v > int(X) {
				return nil, fmt.Errorf("%w: %d at (%d,%d)", ErrInvalidCell, v, x, y)
			}
			conv[y][x] = uint8(v)
		}
	}
	return FromLayout(conv, spawn)
}

func (b *Board) Width() int   { return b.width }
func (b *Board) Height() int  { return b.height }
func (b *Board) Spawn() Point { return b.spawn }

// WithSpawn returns a clone of b using a different spawn coordinate. The
// explorer walks every row below the spawn, so p must lie inside the grid.
func (b *Board) WithSpawn(p Point) (*Board, error) {
	if err := checkSpawn(b.width, b.height, p); err != nil {
		return nil, err
	}
	c := b.Clone()
	c.spawn = p
	return c, nil
}

func checkSpawn(width, height int, p Point) error {
	if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
		return fmt.Errorf("%w: (%d,%d) on %dx%d", ErrInvalidSpawn, p.X, p.Y, width, height)
	}
	return nil
}

// IsFilled reports whether (x,y) blocks a piece.
func (b *Board) IsFilled(x, y int) bool {
	if x < 0 || x >= b.width || y < 0 {
		return true
	}
	if y >= b.height {
		return false
	}
	return b.rows[y][x] != 0
}

// Cell returns the value at (x,y), or 0 outside the grid.
func (b *Board) Cell(x, y int) uint8 {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return 0
	}
	return b.rows[y][x]
}

// Fits reports whether every cell of p lies inside the grid.
func (b *Board) Fits(p Piece) bool {
	for _, c := range p.Cells() {
		if c.X < 0 || c.X >= b.width || c.Y < 0 || c.Y >= b.height {
			return false
		}
	}
	return true
}

// Place stamps p into the board and clears completed rows. It returns the
// number of rows cleared. Place panics if p does not fit.
func (b *Board) Place(p Piece) int {
	for _, c := range p.Cells() {
		if c.X < 0 || c.X >= b.width || c.Y < 0 || c.Y >= b.height {
			panic(fmt.Sprintf("place %v: cell (%d,%d) outside %dx%d board", p.Kind, c.X, c.Y, b.width, b.height))
		}
		b.rows[c.Y][c.X] = uint8(p.Kind)
	}
	return b.clearRows()
}

func (b *Board) clearRows() int {
	cleared := 0
	for y := 0; y < b.height; {
		if !rowFull(b.rows[y]) {
			y++
			continue
		}
		// Reuse the removed row's storage as the new empty top row.
		row := b.rows[y]
		copy(b.rows[y:], b.rows[y+1:])
		clear(row)
		b.rows[b.height-1] = row
		cleared++
	}
	return cleared
}

func rowFull(row []uint8) bool {
	for _, v := range row {
		if v == 0 {
			return false
		}
	}
	return true
}

// Clone performs a deep copy of the board.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := &Board{width: b.width, height: b.height, spawn: b.spawn, rows: make([][]uint8, b.height)}
	for y := range b.rows {
		out.rows[y] = append([]uint8(nil), b.rows[y]...)
	}
	return out
}

// Layout returns a copy of the grid, bottom row first.
func (b *Board) Layout() [][]uint8 {
	out := make([][]uint8, b.height)
	for y := range b.rows {
		out[y] = append([]uint8(nil), b.rows[y]...)
	}
	return out
}

// Ints returns the grid as ints, bottom row first.
func (b *Board) Ints() [][]int {
	out := make([][]int, b.height)
	for y, row := range b.rows {
		out[y] = make([]int, b.width)
		for x, v := range row {
			out[y][x] = int(v)
		}
	}
	return out
}

// Equal reports whether both boards have the same size and cells.
func (b *Board) Equal(o *Board) bool {
	if b.width != o.width || b.height != o.height {
		return false
	}
	for y := range b.rows {
		for x := range b.rows[y] {
			if b.rows[y][x] != o.rows[y][x] {
				return false
			}
		}
	}
	return true
}

// String renders the board top row first, '.' for empty cells.
func (b *Board) String() string {
	var sb strings.Builder
	for y := b.height - 1; y >= 0; y-- {
		for _, v := range b.rows[y] {
			if v == 0 {
				sb.WriteByte('.')
			} else {
				sb.WriteString(Kind(v).String())
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// TopRows renders like String but starts one row above the highest
// non-empty row. Tall boards stay readable in test logs.
func (b *Board) TopRows() string {
	top := 0
	for y := range b.rows {
		for _, v := range b.rows[y] {
			if v != 0 {
				top = y + 1
				break
			}
		}
	}
	if top < b.height {
		top++
	}
	var sb strings.Builder
	for y := top - 1; y >= 0; y-- {
		for _, v := range b.rows[y] {
			if v == 0 {
				sb.WriteByte('.')
			} else {
				sb.WriteString(Kind(v).String())
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
