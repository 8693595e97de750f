package search

import (
	"github.com/brensch/blockdrop/game"
)

// LayoutKey encodes which cells of b are filled. Each row becomes
// ceil(width/8) bytes with bit x%8 of byte x/8 set for a filled column x,
// and rows are concatenated bottom first. Kind ids do not affect the key.
// Keys are only comparable between boards of the same width.
func LayoutKey(b *game.Board) string {
	w, h := b.Width(), b.Height()
	stride := (w + 7) / 8
	buf := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		row := buf[y*stride : (y+1)*stride]
		for x := 0; x < w; x++ {
			if b.Cell(x, y) != 0 {
				row[x>>3] |= 1 << (x & 7)
			}
		}
	}
	return string(buf)
}

// PieceKey packs a piece position and rotation into one integer. It is
// unique for any x that fits in 32 bits and |y| < 2^29.
func PieceKey(pos game.Point, rot int) uint64 {
	return uint64(uint32(pos.X))<<32 | uint64(uint32(pos.Y)&0x3fffffff)<<2 | uint64(rot&3)
}

// PossibleLayout is a board reached from some start board, plus the
// placements that produced it, oldest first.
type PossibleLayout struct {
	Board   *game.Board
	History []game.Piece
}

// Last returns the most recent placement.
func (p PossibleLayout) Last() (game.Piece, bool) {
	if len(p.History) == 0 {
		return game.Piece{}, false
	}
	return p.History[len(p.History)-1], true
}

// LayoutSet keeps the first layout seen for each LayoutKey, in insertion
// order.
type LayoutSet struct {
	index  map[string]int
	values []PossibleLayout
}

func NewLayoutSet(capacity int) *LayoutSet {
	return &LayoutSet{
		index:  make(map[string]int, capacity),
		values: make([]PossibleLayout, 0, capacity),
	}
}

// Add stores l unless a layout with the same key is already present.
func (s *LayoutSet) Add(l PossibleLayout) bool {
	key := LayoutKey(l.Board)
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = len(s.values)
	s.values = append(s.values, l)
	return true
}

// Contains reports whether a layout with b's key is present.
func (s *LayoutSet) Contains(b *game.Board) bool {
	_, ok := s.index[LayoutKey(b)]
	return ok
}

func (s *LayoutSet) Len() int { return len(s.values) }

// Values returns the stored layouts in insertion order. The slice is owned
// by the set.
func (s *LayoutSet) Values() []PossibleLayout { return s.values }
