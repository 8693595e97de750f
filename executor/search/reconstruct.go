package search

import (
	"errors"
	"fmt"

	"github.com/brensch/blockdrop/game"
	"github.com/brensch/blockdrop/rules"
)

var ErrInvalidPlacement = errors.New("invalid placement")

// Step is one replayed placement.
type Step struct {
	Before  *game.Board
	Piece   game.Piece
	After   *game.Board
	Cleared int
	// Ghost is where the piece would land if hard dropped from spawn in its
	// final rotation. It differs from Piece.Cells() for tucked placements.
	Ghost []game.Point
}

// Reconstruct replays history on a copy of start and returns the board before
// and after every placement. Each placement must fit, must not overlap, and
// must be resting. Consecutive steps share boards: step i's After is step
// i+1's Before.
func Reconstruct(start *game.Board, history []game.Piece) ([]Step, error) {
	cur := start.Clone()
	steps := make([]Step, 0, len(history))
	for i, p := range history {
		if !p.Kind.Valid() {
			return nil, fmt.Errorf("step %d: %w", i, game.ErrInvalidKind)
		}
		if !cur.Fits(p) || rules.Collides(cur, p.Kind, p.Pos, p.Rot) {
			return nil, fmt.Errorf("step %d: %w: %v at %v rot %d overlaps", i, ErrInvalidPlacement, p.Kind, p.Pos, p.Rot)
		}
		if !rules.IsLocked(cur, p) {
			return nil, fmt.Errorf("step %d: %w: %v at %v rot %d is not resting", i, ErrInvalidPlacement, p.Kind, p.Pos, p.Rot)
		}

		spawn := rules.Spawn(cur, p.Kind)
		spawn.Rot = p.Rot
		spawn.Pos.X = p.Pos.X
		var ghost []game.Point
		if !rules.Collides(cur, spawn.Kind, spawn.Pos, spawn.Rot) {
			ghost = rules.GhostCells(cur, spawn)
		}

		next := cur.Clone()
		cleared := next.Place(p)
		steps = append(steps, Step{Before: cur, Piece: p, After: next, Cleared: cleared, Ghost: ghost})
		cur = next
	}
	return steps, nil
}

// Final returns the board after the last step, or nil for no steps.
func Final(steps []Step) *game.Board {
	if len(steps) == 0 {
		return nil
	}
	return steps[len(steps)-1].After
}
