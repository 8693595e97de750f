// Package config holds the settings shared by the blockdrop binaries. Values
// come from defaults, then an optional YAML file, then BLOCKDROP_*
// environment variables. Binaries apply their flags last.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/brensch/blockdrop/executor/eval"
	"github.com/brensch/blockdrop/executor/predict"
	"github.com/brensch/blockdrop/executor/search"
	"github.com/brensch/blockdrop/game"
	"github.com/brensch/blockdrop/logging"
	"gopkg.in/yaml.v3"
)

type Board struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// SpawnX and SpawnY override the default spawn when both are >= 0.
	SpawnX int `yaml:"spawn_x"`
	SpawnY int `yaml:"spawn_y"`
}

type Search struct {
	EnumerationLimit int  `yaml:"enumeration_limit"`
	Shifts           bool `yaml:"shifts"`
}

type Predict struct {
	Limit     int `yaml:"limit"`
	Lookahead int `yaml:"lookahead"`
}

type SelfPlay struct {
	Workers       int           `yaml:"workers"`
	GamesPerFlush int           `yaml:"games_per_flush"`
	MaxGames      int64         `yaml:"max_games"`
	MaxPieces     int           `yaml:"max_pieces"`
	Preview       int           `yaml:"preview"`
	OutDir        string        `yaml:"out_dir"`
	WrittenLog    string        `yaml:"written_log"`
	StatsEvery    time.Duration `yaml:"stats_every"`
	Model         string        `yaml:"model"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Viewer struct {
	Addr string `yaml:"addr"`
	// DataDirs are scanned for batch files. Empty means SelfPlay.OutDir.
	DataDirs []string      `yaml:"data_dirs"`
	Refresh  time.Duration `yaml:"refresh"`
}

type Config struct {
	Board        Board             `yaml:"board"`
	Search       Search            `yaml:"search"`
	Predict      Predict           `yaml:"predict"`
	Coefficients eval.Coefficients `yaml:"coefficients"`
	SelfPlay     SelfPlay          `yaml:"selfplay"`
	Server       Server            `yaml:"server"`
	Viewer       Viewer            `yaml:"viewer"`
	Log          logging.Config    `yaml:"log"`
}

func Default() Config {
	return Config{
		Board:        Board{Width: game.DefaultWidth, Height: game.DefaultHeight, SpawnX: -1, SpawnY: -1},
		Search:       Search{EnumerationLimit: search.DefaultLimit},
		Predict:      Predict{Limit: predict.PredictionLimit, Lookahead: 2},
		Coefficients: eval.DefaultCoefficients,
		SelfPlay: SelfPlay{
			Workers:       4,
			GamesPerFlush: 50,
			MaxPieces:     500,
			Preview:       5,
			OutDir:        "data/selfplay",
			WrittenLog:    "data/selfplay/written_games.log",
			StatsEvery:    5 * time.Second,
		},
		Server: Server{Addr: ":8080"},
		Viewer: Viewer{Addr: ":8090", Refresh: 30 * time.Second},
		Log:    logging.Config{Level: "info", Format: logging.FormatConsole},
	}
}

// Load reads path over the defaults. An empty path returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from BLOCKDROP_* environment variables.
func (c *Config) ApplyEnv() {
	c.Board.Width = getEnvIntOrDefault("BLOCKDROP_BOARD_WIDTH", c.Board.Width)
	c.Board.Height = getEnvIntOrDefault("BLOCKDROP_BOARD_HEIGHT", c.Board.Height)
	c.Search.EnumerationLimit = getEnvIntOrDefault("BLOCKDROP_ENUMERATION_LIMIT", c.Search.EnumerationLimit)
	c.Search.Shifts = getEnvBoolOrDefault("BLOCKDROP_SHIFTS", c.Search.Shifts)
	c.Predict.Limit = getEnvIntOrDefault("BLOCKDROP_PREDICTION_LIMIT", c.Predict.Limit)
	c.Predict.Lookahead = getEnvIntOrDefault("BLOCKDROP_LOOKAHEAD", c.Predict.Lookahead)
	c.SelfPlay.Workers = getEnvIntOrDefault("BLOCKDROP_WORKERS", c.SelfPlay.Workers)
	c.SelfPlay.OutDir = getEnvOrDefault("BLOCKDROP_OUT_DIR", c.SelfPlay.OutDir)
	c.SelfPlay.WrittenLog = getEnvOrDefault("BLOCKDROP_WRITTEN_LOG", c.SelfPlay.WrittenLog)
	c.SelfPlay.StatsEvery = getEnvDurationOrDefault("BLOCKDROP_STATS_EVERY", c.SelfPlay.StatsEvery)
	c.SelfPlay.Model = getEnvOrDefault("BLOCKDROP_MODEL", c.SelfPlay.Model)
	c.Server.Addr = getEnvOrDefault("BLOCKDROP_ADDR", c.Server.Addr)
	c.Viewer.Addr = getEnvOrDefault("BLOCKDROP_VIEWER_ADDR", c.Viewer.Addr)
	c.Viewer.Refresh = getEnvDurationOrDefault("BLOCKDROP_VIEWER_REFRESH", c.Viewer.Refresh)
	c.Log.Level = getEnvOrDefault("BLOCKDROP_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("BLOCKDROP_LOG_FORMAT", c.Log.Format)
}

func (c Config) Validate() error {
	if c.Board.Width <= 0 || c.Board.Height <= 0 {
		return fmt.Errorf("board %dx%d: %w", c.Board.Width, c.Board.Height, game.ErrInvalidSize)
	}
	if c.Board.Width < game.I.BoundingWidth() {
		return fmt.Errorf("board width %d: %w", c.Board.Width, search.ErrBoardTooNarrow)
	}
	if c.Predict.Lookahead < 1 {
		return fmt.Errorf("lookahead must be at least 1, got %d", c.Predict.Lookahead)
	}
	if c.SelfPlay.Preview < c.Predict.Lookahead-1 {
		return fmt.Errorf("preview %d too short for lookahead %d", c.SelfPlay.Preview, c.Predict.Lookahead)
	}
	return c.Coefficients.Validate()
}

// ViewerDirs returns the directories the viewer reads batches from.
func (c Config) ViewerDirs() []string {
	if len(c.Viewer.DataDirs) > 0 {
		return c.Viewer.DataDirs
	}
	return []string{c.SelfPlay.OutDir}
}

// NewBoard returns an empty board sized and spawned per the config.
func (c Config) NewBoard() (*game.Board, error) {
	b, err := game.NewBoard(c.Board.Width, c.Board.Height)
	if err != nil {
		return nil, err
	}
	if c.Board.SpawnX >= 0 && c.Board.SpawnY >= 0 {
		return b.WithSpawn(game.Point{X: c.Board.SpawnX, Y: c.Board.SpawnY})
	}
	return b, nil
}

// PredictOptions builds predictor options from the config, scoring with
// scorer, or with Coefficients when scorer is nil.
func (c Config) PredictOptions(scorer eval.Scorer) predict.Options {
	if scorer == nil {
		scorer = c.Coefficients
	}
	return predict.Options{
		Limit:   c.Predict.Limit,
		Scorer:  scorer,
		Explore: search.Options{Limit: c.Search.EnumerationLimit, Shifts: c.Search.Shifts},
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}
