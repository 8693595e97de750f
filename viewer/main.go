// Command viewer browses recorded self-play games. It queries the Parquet
// batches written by the executor through DuckDB and replays each game
// placement by placement.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brensch/blockdrop/config"
	"github.com/brensch/blockdrop/logging"
	"github.com/rs/zerolog/log"
)

func parseDataRoots(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	dataDirs := flag.String("data-dirs", "", "Comma-separated batch directories (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	if *listen != "" {
		cfg.Viewer.Addr = *listen
	}
	if roots := parseDataRoots(*dataDirs); len(roots) > 0 {
		cfg.Viewer.DataDirs = roots
	}
	if _, err := logging.Setup(cfg.Log, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	roots := cfg.ViewerDirs()
	cache := NewDBCache(roots, cfg.Viewer.Refresh)
	defer cache.Close()

	server, err := NewServer(cache)
	if err != nil {
		log.Fatal().Err(err).Msg("viewer-init-failed")
	}
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              cfg.Viewer.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Viewer.Addr).Strs("roots", roots).Msg("viewer-listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("viewer-failed")
	}
}
