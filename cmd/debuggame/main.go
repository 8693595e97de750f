// Command debuggame plays one traced self-play game and optionally writes it
// as a batch the viewer can open.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/blockdrop/config"
	"github.com/brensch/blockdrop/executor/eval"
	"github.com/brensch/blockdrop/executor/inference"
	"github.com/brensch/blockdrop/executor/selfplay"
	"github.com/brensch/blockdrop/logging"
	"github.com/brensch/blockdrop/store"
	"github.com/rs/zerolog/log"
)

type debugOptions struct {
	cfg       config.Config
	seed      int64
	outDir    string
	viewerURL string
	quiet     bool
	timeout   time.Duration
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	seed := fs.Int64("seed", time.Now().UnixNano(), "Piece bag seed")
	maxPieces := fs.Int("max-pieces", 100, "Stop after this many placements (0 = until top out)")
	lookahead := fs.Int("lookahead", 0, "Pieces searched per move (0 = config)")
	outDir := fs.String("out-dir", "", "Write the game as a batch into this directory")
	modelPath := fs.String("model", "", "ONNX layout scorer; empty uses coefficients")
	viewerURL := fs.String("viewer", "http://localhost:8090", "Viewer base URL printed after writing")
	quiet := fs.Bool("quiet", false, "Do not print the board every turn")
	timeout := fs.Duration("timeout", 5*time.Minute, "Give up after this long")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	cfg.SelfPlay.MaxPieces = *maxPieces
	if *lookahead > 0 {
		cfg.Predict.Lookahead = *lookahead
		cfg.SelfPlay.Preview = max(cfg.SelfPlay.Preview, *lookahead-1)
	}
	if *modelPath != "" {
		cfg.SelfPlay.Model = *modelPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		os.Exit(1)
	}
	if _, err := logging.Setup(cfg.Log, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var scorer eval.Scorer
	if cfg.SelfPlay.Model != "" {
		pool, err := inference.NewOnnxClientPool(cfg.SelfPlay.Model, 1, inference.OnnxClientConfig{
			Width:  cfg.Board.Width,
			Height: cfg.Board.Height,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("onnx-init-failed")
		}
		defer pool.Close()
		scorer = inference.NewOnnxScorer(pool, cfg.Board.Width, cfg.Board.Height, cfg.Coefficients)
	}

	opts := debugOptions{
		cfg:       cfg,
		seed:      *seed,
		outDir:    *outDir,
		viewerURL: *viewerURL,
		quiet:     *quiet,
		timeout:   *timeout,
	}
	if err := run(ctx, opts, scorer, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("debug-game-failed")
	}
}

func run(ctx context.Context, opts debugOptions, scorer eval.Scorer, stdout io.Writer) error {
	board, err := opts.cfg.NewBoard()
	if err != nil {
		return err
	}
	scorerName := "coefficients"
	if scorer != nil {
		scorerName = "onnx"
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	gameID := fmt.Sprintf("debug_%d", opts.seed)
	log.Info().Str("game_id", gameID).Int("lookahead", opts.cfg.Predict.Lookahead).Msg("debug-game-started")

	out := selfplay.PlayGame(ctx, selfplay.Options{
		Board:      board,
		Seed:       opts.seed,
		GameID:     gameID,
		Lookahead:  opts.cfg.Predict.Lookahead,
		Preview:    opts.cfg.SelfPlay.Preview,
		MaxPieces:  opts.cfg.SelfPlay.MaxPieces,
		Predict:    opts.cfg.PredictOptions(scorer),
		ScorerName: scorerName,
		Verbose:    !opts.quiet,
		Out:        stdout,
	})
	if out.Err != nil {
		return out.Err
	}
	log.Info().
		Str("game_id", gameID).
		Int("pieces", out.Pieces).
		Int("lines", out.Lines).
		Bool("topped_out", out.ToppedOut).
		Bool("completed", out.Completed).
		Msg("debug-game-finished")

	if opts.outDir == "" {
		return nil
	}
	w, err := store.NewBatchWriter(opts.outDir)
	if err != nil {
		return err
	}
	if err := w.WriteGame(gameID, out.Rows); err != nil {
		_, _ = w.Finalize()
		return err
	}
	path, err := w.Finalize()
	if err != nil {
		return err
	}
	log.Info().Str("path", path).Int("rows", w.Rows()).Msg("debug-game-written")

	fmt.Fprintf(stdout, "\nDebug game ready: %s/games/%s\n", opts.viewerURL, gameID)
	return nil
}
