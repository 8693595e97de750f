package main

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/brensch/blockdrop/executor/search"
	"github.com/brensch/blockdrop/executor/selfplay"
	"github.com/brensch/blockdrop/game"
	"github.com/brensch/blockdrop/store"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var errReplay = errors.New("recorded game does not replay")

const defaultPageSize = 200

// Server holds shared state for HTTP handlers.
type Server struct {
	source GameSource
	pages  *template.Template
}

func NewServer(source GameSource) (*Server, error) {
	pages, err := template.New("").Funcs(template.FuncMap{
		"seed": func(s *int64) string {
			if s == nil {
				return ""
			}
			return strconv.FormatInt(*s, 10)
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Server{source: source, pages: pages}, nil
}

// RegisterRoutes sets up the pages and API routes on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /games/{id}", s.handleGamePage)
	mux.HandleFunc("GET /api/games", s.handleGames)
	mux.HandleFunc("GET /api/games/{id}", s.handleGame)
	mux.HandleFunc("GET /api/games/{id}/replay", s.handleReplay)
	mux.HandleFunc("OPTIONS /api/", withCORS)
}

func (s *Server) httpError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errGameNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errReplay), errors.Is(err, store.ErrBoardSize):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("viewer-request-failed")
	}
	http.Error(w, err.Error(), status)
}

// refreshIfAsked picks up new batch files when the request sets refresh=1
// and the source supports it.
func (s *Server) refreshIfAsked(r *http.Request) error {
	if r.URL.Query().Get("refresh") == "" {
		return nil
	}
	if rs, ok := s.source.(interface{ Refresh() error }); ok {
		return rs.Refresh()
	}
	return nil
}

type gamesPage struct {
	Total   int
	Games   []GameSummary
	NextDir string
}

func (s *Server) gamesPage(r *http.Request) (gamesPage, error) {
	if err := s.refreshIfAsked(r); err != nil {
		return gamesPage{}, err
	}
	games, err := s.source.ListGames(r.Context())
	if err != nil {
		return gamesPage{}, err
	}
	q := r.URL.Query()
	sortKey, sortDir := normalizeSort(q.Get("sort"), q.Get("dir"))
	next := "asc"
	if sortDir == "asc" {
		next = "desc"
	}
	page := paginateGames(games, parseIntQuery(r, "limit", defaultPageSize), parseIntQuery(r, "offset", 0), sortKey, sortDir)
	return gamesPage{Total: len(games), Games: page, NextDir: next}, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := s.gamesPage(r)
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.render(w, "index", page)
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	page, err := s.gamesPage(r)
	if err != nil {
		s.httpError(w, err)
		return
	}
	writeJSON(w, GamesResponse{Total: page.Total, Games: page.Games})
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	rows, err := s.source.GameTurns(r.Context(), r.PathValue("id"))
	if err != nil {
		s.httpError(w, err)
		return
	}
	detail, err := gameDetail(rows)
	if err != nil {
		s.httpError(w, err)
		return
	}
	writeJSON(w, detail)
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	rows, err := s.source.GameTurns(r.Context(), r.PathValue("id"))
	if err != nil {
		s.httpError(w, err)
		return
	}
	rep, err := replay(rows)
	if err != nil {
		s.httpError(w, err)
		return
	}
	writeJSON(w, rep)
}

func (s *Server) handleGamePage(w http.ResponseWriter, r *http.Request) {
	rows, err := s.source.GameTurns(r.Context(), r.PathValue("id"))
	if err != nil {
		s.httpError(w, err)
		return
	}
	rep, err := replay(rows)
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.render(w, "game", struct {
		Summary GameSummary
		Replay  ReplayResponse
	}{summarize(rows), rep})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		log.Warn().Err(err).Str("page", name).Msg("render-failed")
	}
}

// summarize builds a summary from one game's rows, ordered by turn.
func summarize(rows []store.TurnRow) GameSummary {
	first := rows[0]
	g := GameSummary{
		GameID: first.GameID,
		Seed:   parseSeed(first.GameID),
		Width:  first.Width,
		Height: first.Height,
		Source: first.Source,
		Scorer: first.Scorer,
	}
	for _, r := range rows {
		if r.Piece != 0 {
			g.Pieces++
		}
		g.Lines = max(g.Lines, r.TotalLines)
	}
	return g
}

func gameDetail(rows []store.TurnRow) (GameDetail, error) {
	out := GameDetail{GameSummary: summarize(rows), Turns: make([]Turn, len(rows))}
	for i, r := range rows {
		b, err := store.DecodeBoard(r.Board, int(r.Width), int(r.Height))
		if err != nil {
			return GameDetail{}, fmt.Errorf("turn %d: %w", r.Turn, err)
		}
		t := Turn{
			Turn:       r.Turn,
			Board:      b.Ints(),
			Queue:      r.Queue,
			Cleared:    r.LinesCleared,
			TotalLines: r.TotalLines,
			Score:      r.Score,
			Candidates: r.Candidates,
			Truncated:  r.Truncated,
		}
		if p, ok := r.Placement(); ok {
			t.Piece = &p
		}
		out.Turns[i] = t
	}
	return out, nil
}

// replay re-places every recorded piece on the first recorded board and
// checks each result against the board recorded for the next turn.
func replay(rows []store.TurnRow) (ReplayResponse, error) {
	first := rows[0]
	w, h := int(first.Width), int(first.Height)
	start, err := store.DecodeBoard(first.Board, w, h)
	if err != nil {
		return ReplayResponse{}, err
	}

	history := make([]game.Piece, 0, len(rows))
	turns := make([]int, 0, len(rows))
	for _, r := range rows {
		if p, ok := r.Placement(); ok {
			history = append(history, p)
			turns = append(turns, int(r.Turn))
		}
	}
	steps, err := search.Reconstruct(start, history)
	if err != nil {
		return ReplayResponse{}, fmt.Errorf("%w: %v", errReplay, err)
	}

	out := ReplayResponse{GameID: first.GameID, Steps: make([]ReplayStep, len(steps)), Consistent: true}
	for i, st := range steps {
		piece := st.Piece
		out.Steps[i] = ReplayStep{
			Turn:    turns[i],
			Piece:   st.Piece,
			Before:  st.Before.Ints(),
			After:   st.After.Ints(),
			Cleared: st.Cleared,
			Ghost:   st.Ghost,
			Text:    selfplay.RenderBoard(st.Before, &piece),
		}
	}

	// Row i holds the board before placement i, so step i's result is row
	// i+1's board.
	placed := 0
	for i, r := range rows {
		if r.Piece == 0 {
			continue
		}
		if i+1 < len(rows) {
			next, err := store.DecodeBoard(rows[i+1].Board, w, h)
			if err != nil || !next.Equal(steps[placed].After) {
				out.Consistent = false
			}
		}
		placed++
	}
	return out, nil
}
