package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brensch/blockdrop/config"
	"github.com/brensch/blockdrop/executor/selfplay"
	"github.com/brensch/blockdrop/game"
	"github.com/brensch/blockdrop/store"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeRows(gameID string, n int) []store.TurnRow {
	rows := make([]store.TurnRow, n)
	for i := range rows {
		rows[i] = store.TurnRow{GameID: gameID, Turn: int32(i), Width: 1, Height: 1, Board: []byte{0}}
	}
	return rows
}

func TestParquetWriterLoop(t *testing.T) {
	dir := t.TempDir()
	written, err := store.OpenWrittenLog(filepath.Join(dir, "written.log"))
	require.NoError(t, err)
	defer written.Close()

	in := make(chan gameWriteRequest, 8)
	in <- gameWriteRequest{gameID: "a", rows: fakeRows("a", 2)}
	in <- gameWriteRequest{gameID: "empty"}
	in <- gameWriteRequest{gameID: "b", rows: fakeRows("b", 3)}
	in <- gameWriteRequest{gameID: "c", rows: fakeRows("c", 1)}
	close(in)
	parquetWriterLoop(dir, 2, written, in)

	batches, err := store.ListBatches(dir)
	require.NoError(t, err)
	require.Len(t, batches, 2)

	total := 0
	for _, p := range batches {
		rows, err := store.ReadTurnRows(p)
		require.NoError(t, err)
		total += len(rows)
	}
	assert.Equal(t, 6, total)
	assert.Equal(t, 3, written.Count())
	assert.False(t, written.Has("empty"))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Board.Width, cfg.Board.Height = 10, 20
	cfg.Predict.Lookahead = 1
	cfg.Predict.Limit = 10
	cfg.SelfPlay.Workers = 2
	cfg.SelfPlay.MaxGames = 3
	cfg.SelfPlay.MaxPieces = 5
	cfg.SelfPlay.GamesPerFlush = 2
	cfg.SelfPlay.OutDir = dir
	cfg.SelfPlay.WrittenLog = filepath.Join(dir, "written.log")
	cfg.SelfPlay.StatsEvery = 0
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunner_PlaysSeededGamesOnce(t *testing.T) {
	cfg := testConfig(t)
	written, err := store.OpenWrittenLog(cfg.SelfPlay.WrittenLog)
	require.NoError(t, err)
	defer written.Close()

	r := &runner{cfg: cfg, scorerName: "coefficients", baseSeed: 100, written: written}
	require.NoError(t, r.run(context.Background()))

	batches, err := store.ListBatches(cfg.SelfPlay.OutDir)
	require.NoError(t, err)
	require.NotEmpty(t, batches)

	var all []store.TurnRow
	for _, p := range batches {
		rows, err := store.ReadTurnRows(p)
		require.NoError(t, err)
		all = append(all, rows...)
	}
	games := store.GroupByGame(all)
	require.Len(t, games, 3)
	for _, id := range []string{"selfplay_100", "selfplay_101", "selfplay_102"} {
		require.Contains(t, games, id)
		assert.Len(t, games[id], 6, id)
		assert.True(t, written.Has(id))
	}

	// Same seeds again: every game is already on disk.
	again := &runner{cfg: cfg, scorerName: "coefficients", baseSeed: 100, written: written}
	require.NoError(t, again.run(context.Background()))
	after, err := store.ListBatches(cfg.SelfPlay.OutDir)
	require.NoError(t, err)
	assert.Equal(t, batches, after)
}

func TestRunner_CancelledWritesNothingPartial(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &runner{cfg: cfg, baseSeed: 1}
	require.NoError(t, r.run(ctx))
	batches, err := store.ListBatches(cfg.SelfPlay.OutDir)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestModel_Update(t *testing.T) {
	m := initialModel(nil, nil, nil)

	next, _ := m.Update(GameUpdate{WorkerID: 1, GameID: "g1", Pieces: 10, Lines: 2, ToppedOut: true})
	m = next.(model)
	assert.Equal(t, 1, m.gamesPlayed)
	assert.Equal(t, 1, m.toppedOut)
	require.Len(t, m.recentGames, 1)
	assert.Contains(t, m.recentGames[0], "top-out")

	b, err := game.NewBoard(4, 6)
	require.NoError(t, err)
	b.Place(game.Piece{Kind: game.O, Pos: game.Point{X: -1, Y: -1}})
	next, _ = m.Update(selfplay.Step{Turn: 3, Board: b})
	m = next.(model)
	view := m.View()
	assert.Contains(t, view, "turn 3")
	assert.Contains(t, view, "██")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestRenderBoard_TrimsEmptyRows(t *testing.T) {
	b, err := game.NewBoard(4, 10)
	require.NoError(t, err)
	b.Place(game.Piece{Kind: game.O, Pos: game.Point{X: -1, Y: -1}})
	// Two filled rows plus two empty ones above.
	assert.Equal(t, 4, strings.Count(renderBoard(b), "\n"))
}
