// Package search enumerates the resting placements one piece can reach on a
// board.
//
// Explore walks piece states depth first from every spawn-row seed, using
// down moves and rotations (with wall kicks) as edges. Each resting state is
// stamped onto a private copy of the board and kept if its layout has not
// been seen yet. The walk stops early once Limit distinct layouts have been
// found.
package search

import (
	"errors"
	"fmt"

	"github.com/brensch/blockdrop/game"
	"github.com/brensch/blockdrop/rules"
	"github.com/kamstrup/intmap"
	"github.com/rs/zerolog/log"
)

// DefaultLimit caps the number of distinct layouts one Explore call returns.
const DefaultLimit = 200

var ErrBoardTooNarrow = errors.New("board narrower than piece")

// Options tunes Explore. The zero value uses DefaultLimit and no sideways
// moves.
type Options struct {
	// Limit is the maximum number of distinct layouts. Values <= 0 select
	// DefaultLimit.
	Limit int
	// Shifts adds left and right moves to the successor set, which reaches
	// tucks under overhangs.
	Shifts bool
	// History is copied in front of each recorded placement.
	History []game.Piece
}

func (o Options) limit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

// Result is the outcome of one Explore call.
type Result struct {
	Layouts   []PossibleLayout
	Truncated bool
	// Visited counts distinct piece states popped from the stack.
	Visited int
}

// Explore returns every distinct layout reachable by dropping one piece of
// kind onto b. An empty result with a nil error means the piece cannot be
// placed anywhere.
func Explore(b *game.Board, kind game.Kind, opts Options) (Result, error) {
	if !kind.Valid() {
		return Result{}, fmt.Errorf("explore: %w: %d", game.ErrInvalidKind, kind)
	}
	if b.Width() < kind.BoundingWidth() {
		return Result{}, fmt.Errorf("explore %v: %w: width %d < %d", kind, ErrBoardTooNarrow, b.Width(), kind.BoundingWidth())
	}

	limit := opts.limit()
	found := NewLayoutSet(limit)
	visited := intmap.New[uint64, struct{}](1024)
	stack := make([]game.Piece, 0, 256)

	push := func(p game.Piece) {
		key := PieceKey(p.Pos, p.Rot)
		if _, ok := visited.Get(key); ok {
			return
		}
		visited.Put(key, struct{}{})
		stack = append(stack, p)
	}

	spawnY := rules.Spawn(b, kind).Pos.Y
	for rot := 0; rot < 4; rot++ {
		lo, hi := game.ColumnSpan(kind, rot)
		for x := -lo; x <= b.Width()-1-hi; x++ {
			pos := game.Point{X: x, Y: spawnY}
			if rules.Collides(b, kind, pos, rot) {
				continue
			}
			push(game.Piece{Kind: kind, Pos: pos, Rot: rot})
		}
	}

	res := Result{}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		res.Visited++

		if rules.IsLocked(b, p) && b.Fits(p) {
			next := b.Clone()
			next.Place(p)
			history := make([]game.Piece, len(opts.History), len(opts.History)+1)
			copy(history, opts.History)
			if found.Add(PossibleLayout{Board: next, History: append(history, p)}) && found.Len() >= limit {
				res.Truncated = true
				break
			}
		}

		if next, ok := rules.Move(b, p, 0, -1); ok {
			push(next)
		}
		if next, ok := rules.Rotate(b, p, rules.RotateLeft); ok {
			push(next)
		}
		if next, ok := rules.Rotate(b, p, rules.RotateRight); ok {
			push(next)
		}
		if next, ok := rules.Rotate180(b, p); ok {
			push(next)
		}
		if opts.Shifts {
			if next, ok := rules.Move(b, p, -1, 0); ok {
				push(next)
			}
			if next, ok := rules.Move(b, p, 1, 0); ok {
				push(next)
			}
		}
	}

	if res.Truncated {
		log.Warn().
			Str("kind", kind.String()).
			Int("limit", limit).
			Int("visited", res.Visited).
			Msg("enumeration-truncated")
	}
	res.Layouts = found.Values()
	return res, nil
}
