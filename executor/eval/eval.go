// Package eval scores board layouts. Lower scores are better.
package eval

import (
	"errors"
	"fmt"
	"sort"

	"github.com/brensch/blockdrop/executor/search"
	"github.com/rs/zerolog/log"
)

// Features are the raw surface measurements of a grid.
type Features struct {
	// MaxHeight is the highest column top.
	MaxHeight int `json:"max_height"`
	// OverallHeight is the sum of column tops.
	OverallHeight int `json:"overall_height"`
	// Holes counts empty cells with a filled cell somewhere above them.
	Holes int `json:"holes"`
	// Flatness sums the absolute top differences of neighbouring columns.
	Flatness int `json:"flatness"`
}

// Measure computes Features for a bottom-first grid. A column's top is the
// row index of its highest filled cell, or 0 if it is empty.
func Measure(grid [][]uint8) Features {
	var f Features
	if len(grid) == 0 {
		return f
	}
	width := len(grid[0])
	prevTop := 0
	for x := 0; x < width; x++ {
		top, filled := 0, false
		for y := len(grid) - 1; y >= 0; y-- {
			if grid[y][x] == 0 {
				if filled {
					f.Holes++
				}
				continue
			}
			if !filled {
				top, filled = y, true
			}
		}
		if top > f.MaxHeight {
			f.MaxHeight = top
		}
		f.OverallHeight += top
		if x > 0 {
			f.Flatness += abs(top - prevTop)
		}
		prevTop = top
	}
	return f
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Coefficients weight Features into a single score.
type Coefficients struct {
	Flatness      float64 `json:"flatness" yaml:"flatness"`
	Holes         float64 `json:"holes" yaml:"holes"`
	MaxHeight     float64 `json:"max_height" yaml:"max_height"`
	OverallHeight float64 `json:"overall_height" yaml:"overall_height"`
}

// DefaultCoefficients score holes + flatness + 3*maxHeight.
var DefaultCoefficients = Coefficients{Flatness: 1, Holes: 1, MaxHeight: 3, OverallHeight: 0}

var ErrNegativeCoefficient = errors.New("coefficient must not be negative")

func (c Coefficients) Validate() error {
	for name, v := range map[string]float64{
		"flatness":       c.Flatness,
		"holes":          c.Holes,
		"max_height":     c.MaxHeight,
		"overall_height": c.OverallHeight,
	} {
		if v < 0 {
			return fmt.Errorf("%s=%v: %w", name, v, ErrNegativeCoefficient)
		}
	}
	return nil
}

// Apply combines f linearly.
func (c Coefficients) Apply(f Features) float64 {
	return c.Holes*float64(f.Holes) +
		c.Flatness*float64(f.Flatness) +
		c.MaxHeight*float64(f.MaxHeight) +
		c.OverallHeight*float64(f.OverallHeight)
}

// Score implements Scorer.
func (c Coefficients) Score(grid [][]uint8) float64 {
	return EvaluateLayout(grid, c)
}

// Scorer assigns a score to a grid. Lower is better.
type Scorer interface {
	Score(grid [][]uint8) float64
}

// BatchScorer is implemented by scorers that are cheaper per grid when
// given many at once, such as a learned model.
type BatchScorer interface {
	Scorer
	ScoreBatch(grids [][][]uint8) []float64
}

// ScoreAll scores every layout, in order, batching when scorer allows it.
func ScoreAll(layouts []search.PossibleLayout, scorer Scorer) []float64 {
	if bs, ok := scorer.(BatchScorer); ok {
		grids := make([][][]uint8, len(layouts))
		for i, l := range layouts {
			grids[i] = l.Board.Layout()
		}
		return bs.ScoreBatch(grids)
	}
	out := make([]float64, len(layouts))
	for i, l := range layouts {
		out[i] = scorer.Score(l.Board.Layout())
	}
	return out
}

// EvaluateLayout scores grid with coeffs.
func EvaluateLayout(grid [][]uint8, coeffs Coefficients) float64 {
	return coeffs.Apply(Measure(grid))
}

// FindBestLayout returns the layout with the lowest score. Ties go to the
// earliest layout. It returns false for an empty input.
func FindBestLayout(layouts []search.PossibleLayout, scorer Scorer) (search.PossibleLayout, bool) {
	if len(layouts) == 0 {
		return search.PossibleLayout{}, false
	}
	scores := ScoreAll(layouts, scorer)
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] < scores[best] {
			best = i
		}
	}
	return layouts[best], true
}

// PruneLayouts returns the limit best layouts in ascending score order, and
// whether any were dropped. A negative limit returns layouts unchanged.
func PruneLayouts(layouts []search.PossibleLayout, limit int, scorer Scorer) ([]search.PossibleLayout, bool) {
	if limit < 0 {
		return layouts, false
	}
	type scored struct {
		layout search.PossibleLayout
		score  float64
	}
	scores := ScoreAll(layouts, scorer)
	all := make([]scored, len(layouts))
	for i, l := range layouts {
		all[i] = scored{layout: l, score: scores[i]}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score < all[j].score })

	n := len(all)
	truncated := false
	if limit < n {
		n = limit
		truncated = true
		log.Warn().Int("limit", limit).Int("candidates", len(all)).Msg("prune-truncated")
	}
	out := make([]search.PossibleLayout, n)
	for i := range out {
		out[i] = all[i].layout
	}
	return out, truncated
}
