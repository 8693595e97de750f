package selfplay

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/brensch/blockdrop/executor/eval"
	"github.com/brensch/blockdrop/executor/predict"
	"github.com/brensch/blockdrop/game"
	"github.com/brensch/blockdrop/store"
	"github.com/rs/zerolog/log"
)

const SourceSelfPlay = "selfplay"

type Options struct {
	// Board is the starting position. It is cloned.
	Board *game.Board
	Seed  int64
	// GameID defaults to selfplay_<seed>, the id the runner uses.
	GameID string
	// Lookahead is the queue length handed to the predictor, current piece
	// included.
	Lookahead int
	// Preview is how many upcoming pieces are recorded with each turn.
	Preview int
	// MaxPieces ends the game after that many placements. Zero means no cap.
	MaxPieces int
	Predict   predict.Options
	// ScorerName is written to each row.
	ScorerName string

	Verbose bool
	Out     io.Writer
	// OnStep is called after every placement with the updated board.
	OnStep        func(Step)
	StopRequested func() bool
}

// Step describes one placement as it happens.
type Step struct {
	GameID string
	Turn   int
	Piece  game.Piece
	Board  *game.Board
	Lines  int
}

type Outcome struct {
	GameID    string
	Completed bool
	ToppedOut bool
	Pieces    int
	Lines     int
	Rows      []store.TurnRow
	Board     *game.Board
	Err       error
}

func (o Options) gameID() string {
	if o.GameID != "" {
		return o.GameID
	}
	return fmt.Sprintf("selfplay_%d", o.Seed)
}

// PlayGame plays one game with the predictor choosing every placement.
//
// Each turn asks for a best move over [current, preview...] truncated to
// Lookahead. If no sequence exists for the full queue the request is
// retried with shorter queues; a game tops out only when the current piece
// alone has no placement. A cancelled context or StopRequested returns the
// rows so far with Completed unset.
func PlayGame(ctx context.Context, opts Options) Outcome {
	stopRequested := opts.StopRequested
	if stopRequested == nil {
		stopRequested = func() bool { return false }
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	lookahead := max(opts.Lookahead, 1)
	preview := max(opts.Preview, 0)
	peek := max(preview, lookahead-1)
	scorer := opts.Predict.Scorer
	if scorer == nil {
		scorer = eval.DefaultCoefficients
	}

	res := Outcome{GameID: opts.gameID()}
	board := opts.Board.Clone()
	bag := NewBag(opts.Seed)
	rows := make([]store.TurnRow, 0, 256)

	turn := 0
	for {
		if ctx.Err() != nil || stopRequested() {
			res.Pieces, res.Rows, res.Board = turn, rows, board
			return res
		}
		if opts.MaxPieces > 0 && turn >= opts.MaxPieces {
			break
		}

		current := bag.Next()
		upcoming := bag.Peek(peek)
		queue := append([]game.Kind{current}, upcoming[:lookahead-1]...)

		rec, err := bestMoveWithRetry(board, queue, opts.Predict)
		if err != nil {
			res.Err = err
			res.Pieces, res.Rows, res.Board = turn, rows, board
			return res
		}
		if !rec.Found {
			res.ToppedOut = true
			break
		}

		before := store.EncodeBoard(board)
		cleared := board.Place(rec.Move)
		res.Lines += cleared
		candidates := 0
		if len(rec.Result.Plies) > 0 {
			candidates = rec.Result.Plies[0].Discovered
		}

		rows = append(rows, store.TurnRow{
			GameID:       res.GameID,
			Turn:         int32(turn),
			Width:        int32(board.Width()),
			Height:       int32(board.Height()),
			Board:        before,
			Piece:        int32(current),
			Queue:        game.QueueString(append([]game.Kind{current}, upcoming[:preview]...)),
			X:            int32(rec.Move.Pos.X),
			Y:            int32(rec.Move.Pos.Y),
			Rotation:     int32(rec.Move.Rot),
			LinesCleared: int32(cleared),
			TotalLines:   int32(res.Lines),
			Score:        float32(scorer.Score(rec.Layout.Board.Layout())),
			Candidates:   int32(candidates),
			Truncated:    rec.Result.Truncated(),
			Source:       SourceSelfPlay,
			Scorer:       opts.ScorerName,
		})

		if opts.Verbose {
			move := rec.Move
			PrintBoard(out, turn, board, &move)
			log.Debug().
				Str("game_id", res.GameID).
				Int("turn", turn).
				Str("queue", game.QueueString(queue)).
				Int("cleared", cleared).
				Msg("placed")
		}
		turn++
		if opts.OnStep != nil {
			opts.OnStep(Step{GameID: res.GameID, Turn: turn, Piece: rec.Move, Board: board.Clone(), Lines: res.Lines})
		}
	}

	// Terminal row so a replay ends on the final board.
	rows = append(rows, store.TurnRow{
		GameID:     res.GameID,
		Turn:       int32(turn),
		Width:      int32(board.Width()),
		Height:     int32(board.Height()),
		Board:      store.EncodeBoard(board),
		TotalLines: int32(res.Lines),
		Source:     SourceSelfPlay,
		Scorer:     opts.ScorerName,
	})

	res.Completed = true
	res.Pieces = turn
	res.Rows, res.Board = rows, board
	return res
}

func bestMoveWithRetry(b *game.Board, queue []game.Kind, opts predict.Options) (predict.Recommendation, error) {
	var rec predict.Recommendation
	for n := len(queue); n >= 1; n-- {
		var err error
		rec, err = predict.BestMove(b, queue[:n], opts)
		if err != nil {
			return rec, err
		}
		if rec.Found {
			return rec, nil
		}
	}
	return rec, nil
}
