package inference

import (
	"github.com/brensch/blockdrop/executor/convert"
	"github.com/brensch/blockdrop/executor/eval"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Predictor scores one encoded grid. OnnxClient and OnnxPool implement it.
type Predictor interface {
	Predict(input []float32) (float32, error)
}

// OnnxScorer adapts a Predictor to eval.BatchScorer. Grids the model cannot
// score fall back to Fallback so a search never stalls on inference errors.
type OnnxScorer struct {
	Encoder   *convert.Encoder
	Predictor Predictor
	Fallback  eval.Coefficients
}

var _ eval.BatchScorer = (*OnnxScorer)(nil)

func NewOnnxScorer(p Predictor, width, height int, fallback eval.Coefficients) *OnnxScorer {
	return &OnnxScorer{
		Encoder:   convert.NewEncoder(width, height),
		Predictor: p,
		Fallback:  fallback,
	}
}

func (s *OnnxScorer) Score(grid [][]uint8) float64 {
	ptr := s.Encoder.LayoutToFloat32(grid)
	defer s.Encoder.Put(ptr)
	v, err := s.Predictor.Predict(*ptr)
	if err != nil {
		log.Warn().Err(err).Msg("inference-fallback")
		return s.Fallback.Score(grid)
	}
	return float64(v)
}

// ScoreBatch submits every grid concurrently so the client can batch them.
// If any prediction fails the whole batch is rescored with Fallback, keeping
// scores within one batch comparable.
func (s *OnnxScorer) ScoreBatch(grids [][][]uint8) []float64 {
	out := make([]float64, len(grids))
	var g errgroup.Group
	for i, grid := range grids {
		g.Go(func() error {
			ptr := s.Encoder.LayoutToFloat32(grid)
			defer s.Encoder.Put(ptr)
			v, err := s.Predictor.Predict(*ptr)
			if err != nil {
				return err
			}
			out[i] = float64(v)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Int("grids", len(grids)).Msg("inference-batch-fallback")
		for i, grid := range grids {
			out[i] = s.Fallback.Score(grid)
		}
	}
	return out
}
