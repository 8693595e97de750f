package main

import (
	"errors"
	"fmt"

	"github.com/brensch/blockdrop/executor/eval"
	"github.com/brensch/blockdrop/executor/predict"
	"github.com/brensch/blockdrop/executor/search"
	"github.com/brensch/blockdrop/game"
)

var errBadRequest = errors.New("bad request")

// maxBoardSide bounds request boards in both dimensions.
const maxBoardSide = 64

// BoardSpec is the board part of every request. Board is bottom row first.
// An empty Board means an empty Width x Height board, each defaulting to
// the server's configured size.
type BoardSpec struct {
	Board  [][]int     `json:"board,omitempty"`
	Width  int         `json:"width,omitempty"`
	Height int         `json:"height,omitempty"`
	Spawn  *game.Point `json:"spawn,omitempty"`
}

type ExploreRequest struct {
	BoardSpec
	Piece  game.Kind `json:"piece"`
	Limit  int       `json:"limit,omitempty"`
	Shifts bool      `json:"shifts,omitempty"`
}

type Layout struct {
	Board   [][]int      `json:"board"`
	History []game.Piece `json:"history"`
}

type ExploreResponse struct {
	Layouts   []Layout `json:"layouts"`
	Truncated bool     `json:"truncated"`
	Visited   int      `json:"visited"`
}

type PredictRequest struct {
	BoardSpec
	Queue            string             `json:"queue"`
	Coefficients     *eval.Coefficients `json:"coefficients,omitempty"`
	Limit            int                `json:"limit,omitempty"`
	EnumerationLimit int                `json:"enumeration_limit,omitempty"`
	Shifts           bool               `json:"shifts,omitempty"`
	// IncludeLayouts returns every surviving terminal layout, not just the best.
	IncludeLayouts bool `json:"include_layouts,omitempty"`
}

type PredictResponse struct {
	Found     bool               `json:"found"`
	Move      *game.Piece        `json:"move,omitempty"`
	Best      *Layout            `json:"best,omitempty"`
	Layouts   []Layout           `json:"layouts,omitempty"`
	Plies     []predict.PlyStats `json:"plies"`
	Truncated bool               `json:"truncated"`
}

type ReconstructRequest struct {
	BoardSpec
	History []game.Piece `json:"history"`
}

type Step struct {
	Piece   game.Piece   `json:"piece"`
	Before  [][]int      `json:"before"`
	After   [][]int      `json:"after"`
	Cleared int          `json:"cleared"`
	Ghost   []game.Point `json:"ghost,omitempty"`
}

type ReconstructResponse struct {
	Steps []Step `json:"steps"`
}

// Server answers stateless search requests. Every request carries its own
// board, so any instance can serve any request.
type Server struct {
	width, height int
	explore       search.Options
	predict       predict.Options
}

// NewServer serves boards of width x height by default and predicts with
// opts unless a request overrides them.
func NewServer(width, height int, opts predict.Options) *Server {
	return &Server{
		width:   width,
		height:  height,
		explore: opts.Explore,
		predict: opts,
	}
}

func (s *Server) board(spec BoardSpec) (*game.Board, error) {
	if len(spec.Board) == 0 {
		w, h := spec.Width, spec.Height
		if w == 0 {
			w = s.width
		}
		if h == 0 {
			h = s.height
		}
		if w > maxBoardSide || h > maxBoardSide {
			return nil, fmt.Errorf("%w: %dx%d exceeds %d", game.ErrInvalidSize, w, h, maxBoardSide)
		}
		b, err := game.NewBoard(w, h)
		if err != nil {
			return nil, err
		}
		if spec.Spawn != nil {
			return b.WithSpawn(*spec.Spawn)
		}
		return b, nil
	}
	if len(spec.Board) > maxBoardSide || len(spec.Board[0]) > maxBoardSide {
		return nil, fmt.Errorf("%w: board exceeds %d", game.ErrInvalidSize, maxBoardSide)
	}
	b, err := game.FromInts(spec.Board, spec.Spawn)
	if err != nil {
		return nil, err
	}
	if (spec.Width != 0 && spec.Width != b.Width()) || (spec.Height != 0 && spec.Height != b.Height()) {
		return nil, fmt.Errorf("%w: board is %dx%d, request says %dx%d", game.ErrInvalidSize, b.Width(), b.Height(), spec.Width, spec.Height)
	}
	return b, nil
}

func toLayouts(in []search.PossibleLayout) []Layout {
	out := make([]Layout, len(in))
	for i, l := range in {
		out[i] = toLayout(l)
	}
	return out
}

func toLayout(l search.PossibleLayout) Layout {
	h := l.History
	if h == nil {
		h = []game.Piece{}
	}
	return Layout{Board: l.Board.Ints(), History: h}
}

func (s *Server) Explore(req ExploreRequest) (ExploreResponse, error) {
	b, err := s.board(req.BoardSpec)
	if err != nil {
		return ExploreResponse{}, err
	}
	if req.Piece == game.KindNone {
		return ExploreResponse{}, fmt.Errorf("%w: piece is required", errBadRequest)
	}
	opts := s.explore
	if req.Limit > 0 {
		opts.Limit = req.Limit
	}
	opts.Shifts = opts.Shifts || req.Shifts
	res, err := search.Explore(b, req.Piece, opts)
	if err != nil {
		return ExploreResponse{}, err
	}
	return ExploreResponse{Layouts: toLayouts(res.Layouts), Truncated: res.Truncated, Visited: res.Visited}, nil
}

func (s *Server) Predict(req PredictRequest) (PredictResponse, error) {
	b, err := s.board(req.BoardSpec)
	if err != nil {
		return PredictResponse{}, err
	}
	queue, err := game.ParseQueue(req.Queue)
	if err != nil {
		return PredictResponse{}, err
	}
	opts := s.predict
	if req.Coefficients != nil {
		if err := req.Coefficients.Validate(); err != nil {
			return PredictResponse{}, err
		}
		opts.Scorer = *req.Coefficients
	}
	if req.Limit > 0 {
		opts.Limit = req.Limit
	}
	if req.EnumerationLimit > 0 {
		opts.Explore.Limit = req.EnumerationLimit
	}
	opts.Explore.Shifts = opts.Explore.Shifts || req.Shifts

	rec, err := predict.BestMove(b, queue, opts)
	if err != nil {
		return PredictResponse{}, err
	}
	resp := PredictResponse{Found: rec.Found, Plies: rec.Result.Plies, Truncated: rec.Result.Truncated()}
	if rec.Found {
		move := rec.Move
		best := toLayout(rec.Layout)
		resp.Move, resp.Best = &move, &best
	}
	if req.IncludeLayouts {
		resp.Layouts = toLayouts(rec.Result.Layouts)
	}
	return resp, nil
}

func (s *Server) Reconstruct(req ReconstructRequest) (ReconstructResponse, error) {
	b, err := s.board(req.BoardSpec)
	if err != nil {
		return ReconstructResponse{}, err
	}
	steps, err := search.Reconstruct(b, req.History)
	if err != nil {
		return ReconstructResponse{}, err
	}
	out := ReconstructResponse{Steps: make([]Step, len(steps))}
	for i, st := range steps {
		out.Steps[i] = Step{
			Piece:   st.Piece,
			Before:  st.Before.Ints(),
			After:   st.After.Ints(),
			Cleared: st.Cleared,
			Ghost:   st.Ghost,
		}
	}
	return out, nil
}

// isClientError reports whether err was caused by the request contents.
func isClientError(err error) bool {
	for _, target := range []error{
		errBadRequest,
		game.ErrInvalidKind,
		game.ErrInvalidSize,
		game.ErrNotRectangular,
		game.ErrInvalidCell,
		game.ErrInvalidSpawn,
		search.ErrBoardTooNarrow,
		search.ErrInvalidPlacement,
		predict.ErrEmptyQueue,
		eval.ErrNegativeCoefficient,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
