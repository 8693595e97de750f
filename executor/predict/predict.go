// Package predict runs a beam search over a queue of pieces.
//
// Each ply explores every surviving candidate with the next piece, merges the
// results (first discovery of a layout wins), and keeps the Limit best by
// score. The best terminal layout's first placement is the recommended move.
package predict

import (
	"errors"
	"fmt"

	"github.com/brensch/blockdrop/executor/eval"
	"github.com/brensch/blockdrop/executor/search"
	"github.com/brensch/blockdrop/game"
	"github.com/rs/zerolog/log"
)

// PredictionLimit is the default beam width.
const PredictionLimit = 200

var ErrEmptyQueue = errors.New("empty piece queue")

type Options struct {
	// Limit is the beam width. Values <= 0 select PredictionLimit.
	Limit int
	// Scorer ranks layouts. Nil selects eval.DefaultCoefficients.
	Scorer eval.Scorer
	// Explore is passed to every search.Explore call. Its History is
	// ignored.
	Explore search.Options
}

func (o Options) limit() int {
	if o.Limit <= 0 {
		return PredictionLimit
	}
	return o.Limit
}

func (o Options) scorer() eval.Scorer {
	if o.Scorer == nil {
		return eval.DefaultCoefficients
	}
	return o.Scorer
}

// PlyStats describes one ply of the search.
type PlyStats struct {
	Piece      game.Kind `json:"piece"`
	Candidates int       `json:"candidates"`
	Discovered int       `json:"discovered"`
	Kept       int       `json:"kept"`
	// ExploreTruncated is set if any Explore call hit its limit.
	ExploreTruncated bool `json:"explore_truncated"`
	PruneTruncated   bool `json:"prune_truncated"`
}

type Result struct {
	Layouts []search.PossibleLayout
	Plies   []PlyStats
}

// Truncated reports whether any ply dropped layouts at a limit.
func (r Result) Truncated() bool {
	for _, p := range r.Plies {
		if p.ExploreTruncated || p.PruneTruncated {
			return true
		}
	}
	return false
}

func validateQueue(start *game.Board, queue []game.Kind) error {
	if len(queue) == 0 {
		return ErrEmptyQueue
	}
	for i, k := range queue {
		if !k.Valid() {
			return fmt.Errorf("queue[%d]: %w: %d", i, game.ErrInvalidKind, k)
		}
		if start.Width() < k.BoundingWidth() {
			return fmt.Errorf("queue[%d] %v: %w", i, k, search.ErrBoardTooNarrow)
		}
	}
	return nil
}

// Predict returns the candidates that survive after placing every piece in
// queue, best first. An empty Layouts means some ply had no placement for
// any candidate.
func Predict(start *game.Board, queue []game.Kind, opts Options) (Result, error) {
	if err := validateQueue(start, queue); err != nil {
		return Result{}, err
	}
	limit := opts.limit()
	scorer := opts.scorer()

	candidates := []search.PossibleLayout{{Board: start.Clone()}}
	res := Result{Plies: make([]PlyStats, 0, len(queue))}
	for ply, kind := range queue {
		stats := PlyStats{Piece: kind, Candidates: len(candidates)}
		merged := search.NewLayoutSet(limit)
		for _, c := range candidates {
			xo := opts.Explore
			xo.History = c.History
			out, err := search.Explore(c.Board, kind, xo)
			if err != nil {
				return Result{}, fmt.Errorf("ply %d: %w", ply, err)
			}
			stats.ExploreTruncated = stats.ExploreTruncated || out.Truncated
			for _, l := range out.Layouts {
				merged.Add(l)
			}
		}
		stats.Discovered = merged.Len()
		candidates, stats.PruneTruncated = eval.PruneLayouts(merged.Values(), limit, scorer)
		stats.Kept = len(candidates)
		res.Plies = append(res.Plies, stats)

		log.Debug().
			Int("ply", ply).
			Str("piece", kind.String()).
			Int("candidates", stats.Candidates).
			Int("discovered", stats.Discovered).
			Int("kept", stats.Kept).
			Msg("ply-complete")

		if len(candidates) == 0 {
			break
		}
	}
	res.Layouts = candidates
	return res, nil
}

// Recommendation is the move chosen for the first piece in a queue.
type Recommendation struct {
	Move   game.Piece
	Layout search.PossibleLayout
	Found  bool
	Result Result
}

// BestMove runs Predict and picks the best terminal layout. Found is false
// when no sequence of placements exists for the whole queue.
func BestMove(start *game.Board, queue []game.Kind, opts Options) (Recommendation, error) {
	res, err := Predict(start, queue, opts)
	if err != nil {
		return Recommendation{}, err
	}
	best, ok := eval.FindBestLayout(res.Layouts, opts.scorer())
	if !ok || len(best.History) == 0 {
		return Recommendation{Result: res}, nil
	}
	return Recommendation{Move: best.History[0], Layout: best, Found: true, Result: res}, nil
}
