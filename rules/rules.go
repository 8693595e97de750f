package rules

import (
	"github.com/brensch/blockdrop/game"
)

const (
	RotateLeft  = -1
	RotateRight = 1
)

// Input is one player action applied to a falling piece.
type Input int

const (
	InputDown Input = iota
	InputLeft
	InputRight
	InputRotateLeft
	InputRotateRight
	InputRotate180
)

var inputNames = [...]string{"down", "left", "right", "rotate-left", "rotate-right", "rotate-180"}

func (in Input) String() string {
	if int(in) < len(inputNames) {
		return inputNames[in]
	}
	return "unknown"
}

// Collides reports whether a piece of kind at pos and rot overlaps a wall,
// the floor or a filled cell.
func Collides(b *game.Board, kind game.Kind, pos game.Point, rot int) bool {
	for _, o := range game.Offsets(kind, rot) {
		if b.IsFilled(pos.X+o.X, pos.Y+o.Y) {
			return true
		}
	}
	return false
}

// Spawn returns a piece of kind at the board's spawn point. I spawns one row
// lower so that its flat rotation sits at the same height as the others.
func Spawn(b *game.Board, kind game.Kind) game.Piece {
	pos := b.Spawn()
	if kind == game.I {
		pos.Y--
	}
	return game.Piece{Kind: kind, Pos: pos}
}

// Move returns p shifted by (dx,dy) and true, or p unchanged and false if
// the shifted piece collides.
func Move(b *game.Board, p game.Piece, dx, dy int) (game.Piece, bool) {
	next := game.Point{X: p.Pos.X + dx, Y: p.Pos.Y + dy}
	if Collides(b, p.Kind, next, p.Rot) {
		return p, false
	}
	p.Pos = next
	return p, true
}

// Rotate turns p a quarter turn in dir, trying each wall kick in order. O
// always succeeds without moving.
func Rotate(b *game.Board, p game.Piece, dir int) (game.Piece, bool) {
	if p.Kind == game.O {
		return p, true
	}
	target := (p.Rot + dir + 4) & 3
	for _, kick := range game.Kicks(p.Kind, p.Rot, target) {
		pos := p.Pos.Add(kick)
		if !Collides(b, p.Kind, pos, target) {
			p.Pos = pos
			p.Rot = target
			return p, true
		}
	}
	return p, false
}

// Rotate180 applies two right rotations. Both must succeed.
func Rotate180(b *game.Board, p game.Piece) (game.Piece, bool) {
	once, ok := Rotate(b, p, RotateRight)
	if !ok {
		return p, false
	}
	twice, ok := Rotate(b, once, RotateRight)
	if !ok {
		return p, false
	}
	return twice, true
}

// Apply performs one input.
func Apply(b *game.Board, p game.Piece, in Input) (game.Piece, bool) {
	switch in {
	case InputDown:
		return Move(b, p, 0, -1)
	case InputLeft:
		return Move(b, p, -1, 0)
	case InputRight:
		return Move(b, p, 1, 0)
	case InputRotateLeft:
		return Rotate(b, p, RotateLeft)
	case InputRotateRight:
		return Rotate(b, p, RotateRight)
	case InputRotate180:
		return Rotate180(b, p)
	}
	return p, false
}

// IsLocked reports whether any cell of p rests on a filled cell or the floor.
func IsLocked(b *game.Board, p game.Piece) bool {
	for _, c := range p.Cells() {
		if b.IsFilled(c.X, c.Y-1) {
			return true
		}
	}
	return false
}

// HardDrop returns p moved straight down as far as it can go.
func HardDrop(b *game.Board, p game.Piece) game.Piece {
	for {
		next, ok := Move(b, p, 0, -1)
		if !ok {
			return p
		}
		p = next
	}
}

// GhostCells returns the cells p would occupy after a hard drop.
func GhostCells(b *game.Board, p game.Piece) []game.Point {
	return HardDrop(b, p).Cells()
}
