// Command archive2train turns self-play batches into training rows for the
// layout scorer: one row per placement holding the encoded board after the
// placement and a discounted count of the lines cleared from then on.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/brensch/blockdrop/executor/convert"
	"github.com/brensch/blockdrop/store"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"github.com/rs/zerolog/log"
)

const trainingSchema = "training_layout_row_v1"

type TrainingRow struct {
	GameID string `parquet:"game_id,dict"`
	Turn   int32  `parquet:"turn"`

	// X is the [c,h,w] float32 encoding of the board after the placement,
	// little endian.
	X []byte `parquet:"x"`
	// Value is sum over k >= 0 of gamma^k * lines cleared by placement
	// turn+k.
	Value   float32 `parquet:"value"`
	Cleared int32   `parquet:"cleared"`

	XC int32 `parquet:"x_c"`
	XH int32 `parquet:"x_h"`
	XW int32 `parquet:"x_w"`

	Source string `parquet:"source,dict"`
	Scorer string `parquet:"scorer,dict"`
}

func main() {
	inDir := flag.String("in-dir", "", "Directory containing self-play batches")
	outDir := flag.String("out-dir", "", "Output directory for training parquet shards")
	gamma := flag.Float64("gamma", 0.95, "Discount applied to future line clears")
	flag.Parse()

	if *inDir == "" || *outDir == "" {
		fmt.Fprintln(os.Stderr, "-in-dir and -out-dir are required")
		os.Exit(2)
	}
	if *gamma < 0 || *gamma > 1 {
		fmt.Fprintln(os.Stderr, "-gamma must be within [0, 1]")
		os.Exit(2)
	}

	absIn, _ := filepath.Abs(*inDir)
	absOut, _ := filepath.Abs(*outDir)
	if absIn == absOut {
		fmt.Fprintln(os.Stderr, "out-dir must be different from in-dir")
		os.Exit(2)
	}
	if err := os.MkdirAll(absOut, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create out-dir: %v\n", err)
		os.Exit(2)
	}

	// Clean old outputs to avoid unbounded growth.
	_ = filepath.WalkDir(absOut, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".parquet") {
			_ = os.Remove(path)
		}
		return nil
	})

	inputs := findInputs(absIn)
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "no parquet inputs found")
		os.Exit(1)
	}

	convertedFiles := 0
	for _, inPath := range inputs {
		base := filepath.Base(inPath)
		outPath := filepath.Join(absOut, strings.TrimSuffix(base, filepath.Ext(base))+".train.parquet")
		n, err := convertOne(inPath, outPath, float32(*gamma))
		if err != nil {
			log.Error().Err(err).Str("path", inPath).Msg("convert-failed")
			continue
		}
		if n > 0 {
			convertedFiles++
		}
		log.Info().Str("path", outPath).Int("rows", n).Msg("converted")
	}

	if convertedFiles == 0 {
		fmt.Fprintln(os.Stderr, "no output written (no convertible rows)")
		os.Exit(1)
	}
}

// findInputs lists finished batches under root, skipping tmp directories.
func findInputs(root string) []string {
	inputs := make([]string, 0, 1024)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == "tmp" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".parquet") {
			inputs = append(inputs, path)
		}
		return nil
	})
	sort.Strings(inputs)
	return inputs
}

// discountedLines returns, for each placement, the discounted sum of lines
// cleared by it and every later placement.
func discountedLines(cleared []int32, gamma float32) []float32 {
	out := make([]float32, len(cleared))
	var acc float32
	for i := len(cleared) - 1; i >= 0; i-- {
		acc = float32(cleared[i]) + gamma*acc
		out[i] = acc
	}
	return out
}

func appendFloat32s(dst []byte, src []float32) []byte {
	for _, f := range src {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}

// trainingRows converts one game's rows, ordered by turn. Row i+1 holds the
// board after placement i, so games need their terminal row.
func trainingRows(rows []store.TurnRow, gamma float32, encoders map[[2]int]*convert.Encoder) ([]TrainingRow, error) {
	if len(rows) < 2 {
		return nil, nil
	}
	w, h := int(rows[0].Width), int(rows[0].Height)
	key := [2]int{w, h}
	enc := encoders[key]
	if enc == nil {
		enc = convert.NewEncoder(w, h)
		encoders[key] = enc
	}

	placed := make([]store.TurnRow, 0, len(rows))
	after := make([]store.TurnRow, 0, len(rows))
	for i := 0; i+1 < len(rows); i++ {
		if rows[i].Piece == 0 {
			continue
		}
		placed = append(placed, rows[i])
		after = append(after, rows[i+1])
	}
	cleared := make([]int32, len(placed))
	for i, r := range placed {
		cleared[i] = r.LinesCleared
	}
	values := discountedLines(cleared, gamma)

	out := make([]TrainingRow, 0, len(placed))
	for i, r := range placed {
		b, err := store.DecodeBoard(after[i].Board, w, h)
		if err != nil {
			return nil, fmt.Errorf("game %s turn %d: %w", r.GameID, after[i].Turn, err)
		}
		buf := enc.LayoutToFloat32(b.Layout())
		x := appendFloat32s(make([]byte, 0, 4*len(*buf)), *buf)
		enc.Put(buf)

		out = append(out, TrainingRow{
			GameID:  r.GameID,
			Turn:    r.Turn,
			X:       x,
			Value:   values[i],
			Cleared: r.LinesCleared,
			XC:      int32(convert.Channels),
			XH:      int32(h),
			XW:      int32(w),
			Source:  r.Source,
			Scorer:  r.Scorer,
		})
	}
	return out, nil
}

func convertOne(inPath, outPath string, gamma float32) (int, error) {
	rows, err := store.ReadTurnRows(inPath)
	if err != nil {
		return 0, err
	}
	games := store.GroupByGame(rows)
	ids := make([]string, 0, len(games))
	for id := range games {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	encoders := make(map[[2]int]*convert.Encoder)
	out := make([]TrainingRow, 0, len(rows))
	for _, id := range ids {
		tr, err := trainingRows(games[id], gamma, encoders)
		if err != nil {
			return 0, err
		}
		out = append(out, tr...)
	}
	if len(out) == 0 {
		return 0, nil
	}

	outTmp := outPath + ".tmp"
	_ = os.Remove(outTmp)
	err = parquet.WriteFile(outTmp, out,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", trainingSchema),
	)
	if err != nil {
		_ = os.Remove(outTmp)
		return 0, err
	}
	if err := os.Rename(outTmp, outPath); err != nil {
		_ = os.Remove(outTmp)
		return 0, err
	}
	return len(out), nil
}
