// Package store persists self-play games as Parquet batches.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/brensch/blockdrop/game"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const SchemaVersion = "turn_row_v1"

// TurnRow is one placement in a self-play game.
//
// Board is the grid before the placement, width*height bytes, bottom row
// first, one cell value per byte. X, Y and Rotation describe the placed
// piece; a final row with Piece == 0 records the board at game end.
type TurnRow struct {
	GameID string `parquet:"game_id,dict"`
	Turn   int32  `parquet:"turn"`
	Width  int32  `parquet:"width"`
	Height int32  `parquet:"height"`
	Board  []byte `parquet:"board"`

	Piece    int32  `parquet:"piece"`
	Queue    string `parquet:"queue"`
	X        int32  `parquet:"x"`
	Y        int32  `parquet:"y"`
	Rotation int32  `parquet:"rotation"`

	LinesCleared int32   `parquet:"lines_cleared"`
	TotalLines   int32   `parquet:"total_lines"`
	Score        float32 `parquet:"score"`
	Candidates   int32   `parquet:"candidates"`
	Truncated    bool    `parquet:"truncated"`

	Source string `parquet:"source,dict"`
	Scorer string `parquet:"scorer,dict"`
}

// Placement returns the placed piece, or false for a terminal row.
func (r TurnRow) Placement() (game.Piece, bool) {
	if r.Piece == 0 {
		return game.Piece{}, false
	}
	return game.Piece{
		Kind: game.Kind(r.Piece),
		Pos:  game.Point{X: int(r.X), Y: int(r.Y)},
		Rot:  int(r.Rotation),
	}, true
}

var ErrBoardSize = errors.New("board bytes do not match dimensions")

// EncodeBoard packs b into one byte per cell, bottom row first.
func EncodeBoard(b *game.Board) []byte {
	w, h := b.Width(), b.Height()
	out := make([]byte, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out = append(out, b.Cell(x, y))
		}
	}
	return out
}

// DecodeBoard is the inverse of EncodeBoard.
func DecodeBoard(data []byte, width, height int) (*game.Board, error) {
	if width <= 0 || height <= 0 || len(data) != width*height {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", ErrBoardSize, len(data), width, height)
	}
	layout := make([][]uint8, height)
	for y := range layout {
		layout[y] = data[y*width : (y+1)*width]
	}
	return game.FromLayout(layout, nil)
}

func writerOptions() []parquet.WriterOption {
	return []parquet.WriterOption{
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.SkipPageBounds("board"),
		parquet.KeyValueMetadata("schema", SchemaVersion),
	}
}

// WriteBatchParquetAtomic writes a Parquet file into outDir/tmp and then
// atomically moves it into outDir.
//
// Readers globbing outDir/*.parquet never observe a partially-written file.
func WriteBatchParquetAtomic(outDir string, rows []TurnRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("batch_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows, writerOptions()...); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}

	return finalPath, nil
}

// ReadTurnRows loads every row of one batch file.
func ReadTurnRows(path string) ([]TurnRow, error) {
	rows, err := parquet.ReadFile[TurnRow](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// ListBatches returns the finished batch files in outDir, oldest first.
func ListBatches(outDir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(outDir, "batch_*.parquet"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// GroupByGame splits rows into per-game slices ordered by turn, keyed by
// game id.
func GroupByGame(rows []TurnRow) map[string][]TurnRow {
	out := make(map[string][]TurnRow)
	for _, r := range rows {
		out[r.GameID] = append(out[r.GameID], r)
	}
	for _, g := range out {
		sort.SliceStable(g, func(i, j int) bool { return g[i].Turn < g[j].Turn })
	}
	return out
}
