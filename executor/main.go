package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brensch/blockdrop/config"
	"github.com/brensch/blockdrop/executor/eval"
	"github.com/brensch/blockdrop/executor/inference"
	"github.com/brensch/blockdrop/executor/selfplay"
	"github.com/brensch/blockdrop/logging"
	"github.com/brensch/blockdrop/store"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var totalMoves atomic.Int64
var totalGames atomic.Int64

type GameUpdate struct {
	WorkerID  int
	GameID    string
	Pieces    int
	Lines     int
	ToppedOut bool
}

type gameWriteRequest struct {
	gameID string
	rows   []store.TurnRow
}

type statsProvider interface {
	Stats() inference.RuntimeStats
}

// runner plays seeded games across a worker pool and streams finished games
// to the parquet writer.
type runner struct {
	cfg        config.Config
	scorer     eval.Scorer
	scorerName string
	baseSeed   int64
	written    *store.WrittenLog
	trace      bool

	// updates and steps feed the TUI; either may be nil.
	updates chan<- GameUpdate
	steps   chan<- selfplay.Step
	stats   statsProvider
}

func (r *runner) gameID(seed int64) string {
	return fmt.Sprintf("selfplay_%d", seed)
}

func (r *runner) run(ctx context.Context) error {
	sp := r.cfg.SelfPlay
	workers := max(sp.Workers, 1)

	writeReqs := make(chan gameWriteRequest, workers*4)
	writerDone := make(chan struct{})
	go func() {
		parquetWriterLoop(sp.OutDir, sp.GamesPerFlush, r.written, writeReqs)
		close(writerDone)
	}()

	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	if sp.StatsEvery > 0 && r.updates == nil {
		go r.reportStats(statsCtx, sp.StatsEvery)
	}

	var next atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		workerID := i
		g.Go(func() error {
			return r.worker(gctx, workerID, &next, writeReqs)
		})
	}
	err := g.Wait()

	close(writeReqs)
	<-writerDone
	log.Info().Int64("games", totalGames.Load()).Msg("selfplay-complete")
	return err
}

func (r *runner) worker(ctx context.Context, workerID int, next *atomic.Int64, writeReqs chan<- gameWriteRequest) error {
	sp := r.cfg.SelfPlay
	board, err := r.cfg.NewBoard()
	if err != nil {
		return err
	}
	log.Debug().Int("worker", workerID).Msg("worker-started")

	for {
		if ctx.Err() != nil {
			return nil
		}
		idx := next.Add(1) - 1
		if sp.MaxGames > 0 && idx >= sp.MaxGames {
			return nil
		}
		seed := r.baseSeed + idx
		id := r.gameID(seed)
		if r.written != nil && r.written.Has(id) {
			log.Debug().Str("game_id", id).Msg("game-already-written")
			continue
		}

		trace := r.trace && workerID == 0
		out := selfplay.PlayGame(ctx, selfplay.Options{
			Board:      board,
			Seed:       seed,
			GameID:     id,
			Lookahead:  r.cfg.Predict.Lookahead,
			Preview:    sp.Preview,
			MaxPieces:  sp.MaxPieces,
			Predict:    r.cfg.PredictOptions(r.scorer),
			ScorerName: r.scorerName,
			Verbose:    trace,
			OnStep: func(s selfplay.Step) {
				totalMoves.Add(1)
				if r.steps != nil && workerID == 0 {
					select {
					case r.steps <- s:
					default:
					}
				}
			},
		})
		if out.Err != nil {
			return fmt.Errorf("game %s: %w", id, out.Err)
		}
		if !out.Completed {
			log.Info().Int("worker", workerID).Str("game_id", id).Int("pieces", out.Pieces).Msg("game-abandoned")
			return nil
		}

		totalGames.Add(1)
		writeReqs <- gameWriteRequest{gameID: id, rows: out.Rows}
		log.Debug().
			Int("worker", workerID).
			Str("game_id", id).
			Int("pieces", out.Pieces).
			Int("lines", out.Lines).
			Bool("topped_out", out.ToppedOut).
			Msg("game-finished")

		if r.updates != nil {
			// Avoid blocking when the UI stops consuming.
			select {
			case r.updates <- GameUpdate{WorkerID: workerID, GameID: id, Pieces: out.Pieces, Lines: out.Lines, ToppedOut: out.ToppedOut}:
			default:
			}
		}
	}
}

func (r *runner) reportStats(ctx context.Context, every time.Duration) {
	start := time.Now()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			secs := time.Since(start).Seconds()
			ev := log.Info().
				Int64("games", totalGames.Load()).
				Float64("moves_per_sec", float64(totalMoves.Load())/secs).
				Float64("games_per_sec", float64(totalGames.Load())/secs)
			if r.stats != nil {
				st := r.stats.Stats()
				ev = ev.Float64("batch_avg", st.AvgBatchSize).
					Int64("batch_last", st.LastBatchSize).
					Int("queue", st.QueueLen).
					Float64("run_avg_ms", st.AvgRunMs)
			}
			ev.Msg("stats")
		}
	}
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	outDir := flag.String("out-dir", "", "Output directory for parquet batches")
	workers := flag.Int("workers", 0, "Number of self-play workers")
	gamesPerFlush := flag.Int("games-per-flush", 0, "Number of games to buffer per parquet flush")
	maxGames := flag.Int64("max-games", 0, "If > 0, stop after this many games")
	maxPieces := flag.Int("max-pieces", 0, "If > 0, end each game after this many pieces")
	lookahead := flag.Int("lookahead", 0, "Pieces per prediction, current included")
	seed := flag.Int64("seed", 0, "Base seed; game i uses seed+i. 0 picks one from the clock")
	modelPath := flag.String("model", "", "ONNX layout scorer; empty uses coefficients")
	onnxSessions := flag.Int("onnx-sessions", 1, "Number of ONNX Runtime sessions")
	onnxBatchSize := flag.Int("onnx-batch-size", inference.DefaultBatchSize, "ONNX inference batch size")
	onnxBatchTimeout := flag.Duration("onnx-batch-timeout", inference.DefaultBatchTimeout, "Max time to wait for filling an ONNX batch")
	useTUI := flag.Bool("tui", false, "Show a live terminal UI; logs go to selfplay.log")
	trace := flag.Bool("trace", false, "Print every board played by worker 0")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out-dir":
			cfg.SelfPlay.OutDir = *outDir
		case "workers":
			cfg.SelfPlay.Workers = *workers
		case "games-per-flush":
			cfg.SelfPlay.GamesPerFlush = *gamesPerFlush
		case "max-games":
			cfg.SelfPlay.MaxGames = *maxGames
		case "max-pieces":
			cfg.SelfPlay.MaxPieces = *maxPieces
		case "lookahead":
			cfg.Predict.Lookahead = *lookahead
		case "model":
			cfg.SelfPlay.Model = *modelPath
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		os.Exit(1)
	}

	logOut := os.Stderr
	if *useTUI {
		f, err := os.OpenFile("selfplay.log", os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open log file:", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	if _, err := logging.Setup(cfg.Log, logOut); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	r := &runner{cfg: cfg, scorerName: "coefficients", baseSeed: *seed, trace: *trace}
	if r.baseSeed == 0 {
		r.baseSeed = time.Now().UnixNano()
	}

	if cfg.SelfPlay.Model != "" {
		pool, err := inference.NewOnnxClientPool(cfg.SelfPlay.Model, *onnxSessions, inference.OnnxClientConfig{
			BatchSize:    *onnxBatchSize,
			BatchTimeout: *onnxBatchTimeout,
			Width:        cfg.Board.Width,
			Height:       cfg.Board.Height,
		})
		if err != nil {
			log.Fatal().Err(err).Str("model", cfg.SelfPlay.Model).Msg("onnx-init-failed")
		}
		defer pool.Close()
		r.scorer = inference.NewOnnxScorer(pool, cfg.Board.Width, cfg.Board.Height, cfg.Coefficients)
		r.scorerName = "onnx"
		r.stats = pool
	}

	if cfg.SelfPlay.WrittenLog != "" {
		written, err := store.OpenWrittenLog(cfg.SelfPlay.WrittenLog)
		if err != nil {
			log.Fatal().Err(err).Msg("written-log-open-failed")
		}
		defer written.Close()
		r.written = written
		log.Info().Int("written", written.Count()).Str("path", cfg.SelfPlay.WrittenLog).Msg("written-log-loaded")
	}

	log.Info().
		Int("workers", cfg.SelfPlay.Workers).
		Int64("seed", r.baseSeed).
		Str("scorer", r.scorerName).
		Str("out_dir", cfg.SelfPlay.OutDir).
		Msg("selfplay-starting")

	if !*useTUI {
		if err := r.run(ctx); err != nil {
			log.Error().Err(err).Msg("selfplay-failed")
			os.Exit(1)
		}
		return
	}

	updates := make(chan GameUpdate, cfg.SelfPlay.Workers)
	steps := make(chan selfplay.Step, 1)
	r.updates, r.steps = updates, steps

	p := tea.NewProgram(initialModel(updates, steps, r.stats), tea.WithAltScreen())
	runErr := make(chan error, 1)
	go func() {
		runErr <- r.run(ctx)
		p.Quit()
	}()
	if _, err := p.Run(); err != nil {
		log.Error().Err(err).Msg("tui-failed")
	}
	cancel()
	if err := <-runErr; err != nil {
		log.Error().Err(err).Msg("selfplay-failed")
		os.Exit(1)
	}
}
