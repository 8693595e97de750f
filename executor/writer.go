package main

import (
	"github.com/brensch/blockdrop/store"
	"github.com/rs/zerolog/log"
)

// parquetWriterLoop buffers finished games and writes one batch file every
// gamesPerFlush games, plus a final partial batch when in closes. Game IDs
// are appended to written only once their batch is on disk.
func parquetWriterLoop(outDir string, gamesPerFlush int, written *store.WrittenLog, in <-chan gameWriteRequest) {
	if gamesPerFlush <= 0 {
		gamesPerFlush = 50
	}

	pendingRows := make([]store.TurnRow, 0, 256*gamesPerFlush)
	pendingGames := make([]string, 0, gamesPerFlush)

	flush := func(final bool) {
		outPath, err := store.WriteBatchParquetAtomic(outDir, pendingRows)
		if err != nil {
			log.Error().Err(err).
				Bool("final", final).
				Int("games", len(pendingGames)).
				Int("rows", len(pendingRows)).
				Msg("parquet-flush-failed")
		} else {
			log.Info().
				Str("path", outPath).
				Bool("final", final).
				Int("games", len(pendingGames)).
				Int("rows", len(pendingRows)).
				Msg("parquet-flush-ok")
			if written != nil {
				if err := written.AddMany(pendingGames); err != nil {
					log.Error().Err(err).Msg("written-log-append-failed")
				}
			}
		}
		pendingRows = pendingRows[:0]
		pendingGames = pendingGames[:0]
	}

	for req := range in {
		if len(req.rows) == 0 {
			continue
		}
		pendingRows = append(pendingRows, req.rows...)
		pendingGames = append(pendingGames, req.gameID)
		if len(pendingGames) >= gamesPerFlush {
			flush(false)
		}
	}

	if len(pendingGames) > 0 {
		flush(true)
	}
}
