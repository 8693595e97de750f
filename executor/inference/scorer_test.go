package inference

import (
	"errors"
	"sync"
	"testing"

	"github.com/brensch/blockdrop/executor/convert"
	"github.com/brensch/blockdrop/executor/eval"
	"github.com/brensch/blockdrop/executor/search"
	"github.com/brensch/blockdrop/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// occupancyPredictor returns the number of filled cells.
type occupancyPredictor struct {
	mu    sync.Mutex
	calls int
	fail  bool
	size  int
}

func (p *occupancyPredictor) Predict(input []float32) (float32, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.fail {
		return 0, errors.New("boom")
	}
	var sum float32
	for _, v := range input[:p.size] {
		sum += v
	}
	return sum, nil
}

func TestOnnxScorer_ScoreBatchKeepsOrder(t *testing.T) {
	p := &occupancyPredictor{size: 4}
	s := NewOnnxScorer(p, 2, 2, eval.DefaultCoefficients)
	grids := [][][]uint8{
		{{1, 1}, {1, 0}},
		{{0, 0}, {0, 0}},
		{{1, 0}, {0, 0}},
		{{1, 1}, {1, 1}},
	}
	got := s.ScoreBatch(grids)
	assert.Equal(t, []float64{3, 0, 1, 4}, got)
	assert.Equal(t, 4, p.calls)
	assert.Equal(t, 3.0, s.Score(grids[0]))
}

func TestOnnxScorer_FallsBackOnError(t *testing.T) {
	p := &occupancyPredictor{size: 4, fail: true}
	coeffs := eval.Coefficients{OverallHeight: 1}
	s := NewOnnxScorer(p, 2, 2, coeffs)
	grids := [][][]uint8{
		{{1, 0}, {1, 0}},
		{{0, 0}, {0, 0}},
	}
	assert.Equal(t, []float64{1, 0}, s.ScoreBatch(grids))
	assert.Equal(t, 1.0, s.Score(grids[0]))
}

func TestOnnxScorer_DrivesPrune(t *testing.T) {
	p := &occupancyPredictor{size: 4}
	s := NewOnnxScorer(p, 2, 2, eval.DefaultCoefficients)
	var layouts []search.PossibleLayout
	for _, g := range [][][]uint8{
		{{1, 1}, {1, 0}},
		{{1, 0}, {0, 0}},
		{{1, 1}, {0, 0}},
	} {
		b, err := game.FromLayout(g, nil)
		require.NoError(t, err)
		layouts = append(layouts, search.PossibleLayout{Board: b})
	}
	got, truncated := eval.PruneLayouts(layouts, 2, s)
	assert.True(t, truncated)
	require.Len(t, got, 2)
	assert.Same(t, layouts[1].Board, got[0].Board)
	assert.Same(t, layouts[2].Board, got[1].Board)
	assert.Equal(t, convert.Channels*4, s.Encoder.Size())
}

func TestOnnxPool_NoClients(t *testing.T) {
	var p OnnxPool
	_, err := p.Predict(make([]float32, 4))
	assert.ErrorIs(t, err, ErrNoClients)
	assert.Equal(t, RuntimeStats{}, p.Stats())
}
