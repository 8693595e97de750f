package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brensch/blockdrop/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBoard(t *testing.T) *game.Board {
	t.Helper()
	b, err := game.NewBoard(6, 8)
	require.NoError(t, err)
	b.Place(game.Piece{Kind: game.T, Pos: game.Point{X: 0, Y: -1}})
	b.Place(game.Piece{Kind: game.O, Pos: game.Point{X: 3, Y: -1}})
	return b
}

func sampleRows(t *testing.T, gameID string, n int) []TurnRow {
	b := sampleBoard(t)
	rows := make([]TurnRow, n)
	for i := range rows {
		rows[i] = TurnRow{
			GameID:   gameID,
			Turn:     int32(i),
			Width:    int32(b.Width()),
			Height:   int32(b.Height()),
			Board:    EncodeBoard(b),
			Piece:    int32(game.L),
			Queue:    "LTS",
			X:        int32(i),
			Y:        -1,
			Rotation: 2,
			Score:    1.5,
			Source:   "test",
			Scorer:   "coefficients",
		}
	}
	return rows
}

func TestEncodeDecodeBoard(t *testing.T) {
	b := sampleBoard(t)
	data := EncodeBoard(b)
	require.Len(t, data, 48)
	assert.Equal(t, uint8(game.T), data[0])

	back, err := DecodeBoard(data, 6, 8)
	require.NoError(t, err)
	assert.True(t, back.Equal(b))

	_, err = DecodeBoard(data, 6, 7)
	assert.ErrorIs(t, err, ErrBoardSize)
}

func TestTurnRow_Placement(t *testing.T) {
	row := TurnRow{Piece: int32(game.J), X: 4, Y: 2, Rotation: 3}
	p, ok := row.Placement()
	require.True(t, ok)
	assert.Equal(t, game.Piece{Kind: game.J, Pos: game.Point{X: 4, Y: 2}, Rot: 3}, p)

	_, ok = TurnRow{}.Placement()
	assert.False(t, ok)
}

func TestWriteBatchParquetAtomic(t *testing.T) {
	dir := t.TempDir()
	rows := append(sampleRows(t, "g1", 3), sampleRows(t, "g2", 2)...)
	path, err := WriteBatchParquetAtomic(dir, rows)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	tmp, err := os.ReadDir(filepath.Join(dir, "tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmp)

	got, err := ReadTurnRows(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	batches, err := ListBatches(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, batches)

	games := GroupByGame(got)
	require.Len(t, games, 2)
	assert.Len(t, games["g1"], 3)
	assert.Equal(t, int32(1), games["g2"][1].Turn)
}

func TestBatchWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewBatchWriter(dir)
	require.NoError(t, err)
	require.NoError(t, w.WriteGame("a", sampleRows(t, "a", 4)))
	require.NoError(t, w.WriteGame("b", sampleRows(t, "b", 1)))
	assert.Equal(t, 5, w.Rows())
	assert.Equal(t, []string{"a", "b"}, w.Games())

	_, err = os.Stat(w.OutPath())
	assert.True(t, os.IsNotExist(err), "file visible before Finalize")

	path, err := w.Finalize()
	require.NoError(t, err)
	got, err := ReadTurnRows(path)
	require.NoError(t, err)
	assert.Len(t, got, 5)

	assert.ErrorIs(t, w.WriteGame("c", sampleRows(t, "c", 1)), ErrWriterClosed)
	again, err := w.Finalize()
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestBatchWriter_EmptyLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewBatchWriter(dir)
	require.NoError(t, err)
	path, err := w.Finalize()
	require.NoError(t, err)
	assert.Empty(t, path)
	batches, err := ListBatches(dir)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestWrittenLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "written.log")
	l, err := OpenWrittenLog(path)
	require.NoError(t, err)
	require.NoError(t, l.AddMany([]string{"a", "b", "", "a"}))
	require.NoError(t, l.AddMany([]string{"b", "c"}))
	assert.Equal(t, 3, l.Count())
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.AddMany([]string{"d"}), ErrLogClosed)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", string(raw))

	reopened, err := OpenWrittenLog(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.True(t, reopened.Has("c"))
	assert.False(t, reopened.Has("d"))
	assert.Equal(t, 3, reopened.Count())
}
