package main

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/brensch/blockdrop/executor/convert"
	"github.com/brensch/blockdrop/game"
	"github.com/brensch/blockdrop/store"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscountedLines(t *testing.T) {
	got := discountedLines([]int32{0, 1, 0, 2}, 0.5)
	assert.InDeltaSlice(t, []float32{0.75, 1.5, 1, 2}, got, 1e-6)
	assert.Empty(t, discountedLines(nil, 0.9))
}

// squaresGame places two Os on a 4x4 board, clearing two rows with the
// second.
func squaresGame(t *testing.T, gameID string) []store.TurnRow {
	t.Helper()
	b, err := game.NewBoard(4, 4)
	require.NoError(t, err)
	mk := func(turn int, p *game.Piece, cleared int) store.TurnRow {
		r := store.TurnRow{
			GameID:       gameID,
			Turn:         int32(turn),
			Width:        4,
			Height:       4,
			Board:        store.EncodeBoard(b),
			LinesCleared: int32(cleared),
			Source:       "selfplay",
		}
		if p != nil {
			r.Piece, r.X, r.Y = int32(p.Kind), int32(p.Pos.X), int32(p.Pos.Y)
		}
		return r
	}
	first := game.Piece{Kind: game.O, Pos: game.Point{X: -1, Y: -1}}
	second := game.Piece{Kind: game.O, Pos: game.Point{X: 1, Y: -1}}
	rows := []store.TurnRow{mk(0, &first, 0)}
	b.Place(first)
	rows = append(rows, mk(1, &second, 2))
	b.Place(second)
	return append(rows, mk(2, nil, 0))
}

func decodeX(x []byte) []float32 {
	out := make([]float32, len(x)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(x[4*i:]))
	}
	return out
}

func TestConvertOne(t *testing.T) {
	dir := t.TempDir()
	rows := append(squaresGame(t, "b"), squaresGame(t, "a")...)
	// A game with no terminal row contributes nothing for its last
	// placement.
	rows = append(rows, squaresGame(t, "c")[:1]...)
	in, err := store.WriteBatchParquetAtomic(dir, rows)
	require.NoError(t, err)

	outPath := filepath.Join(t.TempDir(), "out.train.parquet")
	n, err := convertOne(in, outPath, 0.5)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	got, err := parquet.ReadFile[TrainingRow](outPath)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "a", got[0].GameID)
	assert.Equal(t, int32(0), got[0].Turn)
	assert.InDelta(t, 1.0, got[0].Value, 1e-6)
	assert.InDelta(t, 2.0, got[1].Value, 1e-6)
	assert.Equal(t, int32(2), got[1].Cleared)
	assert.Equal(t, "b", got[2].GameID)

	r := got[0]
	assert.Equal(t, int32(convert.Channels), r.XC)
	assert.Equal(t, int32(4), r.XH)
	assert.Equal(t, int32(4), r.XW)
	x := decodeX(r.X)
	require.Len(t, x, convert.Channels*4*4)
	// Occupancy plane after the first O: bottom two rows, left two columns.
	occ := x[:16]
	assert.Equal(t, []float32{1, 1, 0, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, occ)

	// After the second placement the board is empty again.
	for _, v := range decodeX(got[1].X) {
		assert.Zero(t, v)
	}
}

func TestConvertOne_NothingToWrite(t *testing.T) {
	dir := t.TempDir()
	in, err := store.WriteBatchParquetAtomic(dir, squaresGame(t, "a")[:1])
	require.NoError(t, err)

	n, err := convertOne(in, filepath.Join(dir, "x.train.parquet"), 0.9)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, findInputs(filepath.Join(dir, "missing")))
	assert.Equal(t, []string{in}, findInputs(dir))
}
