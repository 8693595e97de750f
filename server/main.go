// Package main implements the blockdrop search server.
//
// Every endpoint is stateless: a request carries the board and pieces it is
// about, so instances can be scaled out behind a load balancer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/blockdrop/config"
	"github.com/brensch/blockdrop/executor/inference"
	"github.com/brensch/blockdrop/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configPath := fs.String("config", "", "YAML config file")
	listen := fs.String("listen", "", "HTTP listen address (overrides config)")
	modelPath := fs.String("model", "", "ONNX layout scorer; empty uses coefficients")
	sessions := fs.Int("sessions", 1, "Number of ONNX sessions")
	disableCUDA := fs.Bool("disable-cuda", false, "Disable CUDA execution provider")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	if *listen != "" {
		cfg.Server.Addr = *listen
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

	if *disableCUDA && os.Getenv("BLOCKDROP_ORT_DISABLE_CUDA") == "" {
		_ = os.Setenv("BLOCKDROP_ORT_DISABLE_CUDA", "1")
	}

	opts := cfg.PredictOptions(nil)
	if cfg.SelfPlay.Model != "" {
		log.Info().Str("model", cfg.SelfPlay.Model).Msg("loading-model")
		pool, err := inference.NewOnnxClientPool(cfg.SelfPlay.Model, *sessions, inference.OnnxClientConfig{
			Width:  cfg.Board.Width,
			Height: cfg.Board.Height,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("onnx-init-failed")
		}
		defer pool.Close()
		opts.Scorer = inference.NewOnnxScorer(pool, cfg.Board.Width, cfg.Board.Height, cfg.Coefficients)
	}

	server := NewServer(cfg.Board.Width, cfg.Board.Height, opts)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Server.Addr).Msg("server-listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server-failed")
	}
}
