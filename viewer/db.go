package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brensch/blockdrop/store"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog/log"
)

var errGameNotFound = errors.New("game not found")

// GameSource is where the viewer reads recorded games from.
type GameSource interface {
	ListGames(ctx context.Context) ([]GameSummary, error)
	GameTurns(ctx context.Context, gameID string) ([]store.TurnRow, error)
}

// DBCache maintains a cached DuckDB connection that refreshes periodically.
type DBCache struct {
	roots       []string
	refreshRate time.Duration

	mu          sync.RWMutex
	db          *sql.DB
	lastRefresh time.Time

	gamesIndex []GameSummary
}

var _ GameSource = (*DBCache)(nil)

func NewDBCache(roots []string, refreshRate time.Duration) *DBCache {
	return &DBCache{
		roots:       roots,
		refreshRate: refreshRate,
	}
}

// Get returns the cached DB connection, refreshing if needed.
func (c *DBCache) Get() (*sql.DB, error) {
	c.mu.RLock()
	if c.db != nil && time.Since(c.lastRefresh) < c.refreshRate {
		db := c.db
		c.mu.RUnlock()
		return db, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.db != nil && time.Since(c.lastRefresh) < c.refreshRate {
		return c.db, nil
	}
	return c.refreshLocked()
}

// Refresh forces new batch files to be picked up.
func (c *DBCache) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.refreshLocked()
	return err
}

func (c *DBCache) refreshLocked() (*sql.DB, error) {
	start := time.Now()

	newDB, err := openDuckDBWithGlobs(c.roots)
	if err != nil {
		return nil, err
	}
	if c.db != nil {
		_ = c.db.Close()
	}

	c.db = newDB
	c.lastRefresh = time.Now()
	c.gamesIndex = nil

	log.Debug().Dur("elapsed", time.Since(start)).Msg("db-refreshed")
	return c.db, nil
}

// ListGames returns every recorded game, most recent seed first. The index
// is rebuilt only when the DB itself is refreshed.
func (c *DBCache) ListGames(ctx context.Context) ([]GameSummary, error) {
	if _, err := c.Get(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	if c.gamesIndex != nil {
		idx := c.gamesIndex
		c.mu.RUnlock()
		return idx, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gamesIndex != nil {
		return c.gamesIndex, nil
	}
	if c.db == nil {
		if _, err := c.refreshLocked(); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	games, err := queryAllGames(ctx, c.db, c.roots)
	if err != nil {
		return nil, err
	}
	c.gamesIndex = games
	log.Debug().Int("games", len(games)).Dur("elapsed", time.Since(start)).Msg("games-index-rebuilt")
	return games, nil
}

func (c *DBCache) GameTurns(ctx context.Context, gameID string) ([]store.TurnRow, error) {
	db, err := c.Get()
	if err != nil {
		return nil, err
	}
	return queryTurns(ctx, db, gameID)
}

func (c *DBCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		err := c.db.Close()
		c.db = nil
		return err
	}
	return nil
}

const emptyTurnsView = `CREATE OR REPLACE VIEW turns AS
	SELECT * FROM (
		SELECT
			NULL::VARCHAR AS game_id,
			NULL::INTEGER AS turn,
			NULL::INTEGER AS width,
			NULL::INTEGER AS height,
			NULL::BLOB AS board,
			NULL::INTEGER AS piece,
			NULL::VARCHAR AS queue,
			NULL::INTEGER AS x,
			NULL::INTEGER AS y,
			NULL::INTEGER AS rotation,
			NULL::INTEGER AS lines_cleared,
			NULL::INTEGER AS total_lines,
			NULL::REAL AS score,
			NULL::INTEGER AS candidates,
			NULL::BOOLEAN AS truncated,
			NULL::VARCHAR AS source,
			NULL::VARCHAR AS scorer,
			NULL::VARCHAR AS filename
	) WHERE 1=0`

// openDuckDBWithGlobs opens an in-memory DuckDB with a turns view over the
// finished batch files under roots. Files still in tmp/ never match.
func openDuckDBWithGlobs(roots []string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	// Ignore errors for compatibility across versions.
	_, _ = db.Exec("PRAGMA threads=4")

	globs := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		// read_parquet fails on a glob with no matches.
		batches, err := store.ListBatches(root)
		if err != nil || len(batches) == 0 {
			continue
		}
		glob := filepath.Join(root, "batch_*.parquet")
		globs = append(globs, "'"+escapeSQLString(glob)+"'")
	}

	sqlText := emptyTurnsView
	if len(globs) > 0 {
		sqlText = `CREATE OR REPLACE VIEW turns AS
			SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)`
	}
	if _, err := db.Exec(sqlText); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create turns view: %w", err)
	}
	return db, nil
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// parseSeed extracts the seed from a selfplay_<seed> game id.
func parseSeed(gameID string) *int64 {
	rest, ok := strings.CutPrefix(gameID, "selfplay_")
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func makeRelativeToRoots(filename string, roots []string) string {
	fn := strings.TrimSpace(filename)
	if fn == "" {
		return ""
	}
	best := fn
	for _, r := range roots {
		root := strings.TrimSpace(r)
		if root == "" {
			continue
		}
		rel, err := filepath.Rel(root, fn)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if cand := filepath.ToSlash(filepath.Join(root, rel)); len(cand) < len(best) {
			best = cand
		}
	}
	return best
}

func queryAllGames(ctx context.Context, db *sql.DB, roots []string) ([]GameSummary, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			game_id,
			(COUNT(*) FILTER (WHERE piece <> 0))::INTEGER AS pieces,
			COALESCE(MAX(total_lines), 0)::INTEGER AS lines,
			MIN(width)::INTEGER AS width,
			MIN(height)::INTEGER AS height,
			COALESCE(MIN(source), '')::VARCHAR AS source,
			COALESCE(MIN(scorer), '')::VARCHAR AS scorer,
			MIN(filename)::VARCHAR AS file
		FROM turns
		GROUP BY game_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]GameSummary, 0, 1024)
	for rows.Next() {
		var g GameSummary
		var file string
		if err := rows.Scan(&g.GameID, &g.Pieces, &g.Lines, &g.Width, &g.Height, &g.Source, &g.Scorer, &file); err != nil {
			return nil, err
		}
		g.Seed = parseSeed(g.GameID)
		g.SourceFile = makeRelativeToRoots(file, roots)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortGames(out, "seed", "desc")
	return out, nil
}

func queryTurns(ctx context.Context, db *sql.DB, gameID string) ([]store.TurnRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			game_id, turn::INTEGER, width::INTEGER, height::INTEGER, board,
			piece::INTEGER, COALESCE(queue, ''), x::INTEGER, y::INTEGER, rotation::INTEGER,
			lines_cleared::INTEGER, total_lines::INTEGER, score, candidates::INTEGER, truncated,
			COALESCE(source, ''), COALESCE(scorer, '')
		FROM turns
		WHERE game_id = ?
		ORDER BY turn ASC`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := make([]store.TurnRow, 0, 256)
	for rows.Next() {
		var t store.TurnRow
		if err := rows.Scan(&t.GameID, &t.Turn, &t.Width, &t.Height, &t.Board,
			&t.Piece, &t.Queue, &t.X, &t.Y, &t.Rotation,
			&t.LinesCleared, &t.TotalLines, &t.Score, &t.Candidates, &t.Truncated,
			&t.Source, &t.Scorer); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("%w: %s", errGameNotFound, gameID)
	}
	return turns, nil
}

func normalizeSort(sortKey, sortDir string) (string, string) {
	sk := strings.ToLower(strings.TrimSpace(sortKey))
	sd := strings.ToLower(strings.TrimSpace(sortDir))
	if sd != "asc" && sd != "desc" {
		sd = "desc"
	}
	switch sk {
	case "seed", "id", "game", "game_id", "pieces", "lines", "file":
	case "turns":
		sk = "pieces"
	default:
		sk, sd = "seed", "desc"
	}
	return sk, sd
}

// sortGames orders games in place. Ties and games without a seed fall back
// to game id.
func sortGames(games []GameSummary, sortKey, sortDir string) {
	sk, sd := normalizeSort(sortKey, sortDir)
	less := func(a, b GameSummary) bool {
		switch sk {
		case "pieces":
			if a.Pieces != b.Pieces {
				return a.Pieces < b.Pieces
			}
		case "lines":
			if a.Lines != b.Lines {
				return a.Lines < b.Lines
			}
		case "file":
			if a.SourceFile != b.SourceFile {
				return a.SourceFile < b.SourceFile
			}
		case "seed":
			switch {
			case a.Seed != nil && b.Seed != nil && *a.Seed != *b.Seed:
				return *a.Seed < *b.Seed
			case a.Seed == nil && b.Seed != nil:
				return true
			case a.Seed != nil && b.Seed == nil:
				return false
			}
		}
		return a.GameID < b.GameID
	}
	sort.SliceStable(games, func(i, j int) bool {
		if sd == "asc" {
			return less(games[i], games[j])
		}
		return less(games[j], games[i])
	})
}
