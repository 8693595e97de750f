package main

import "github.com/brensch/blockdrop/game"

type GameSummary struct {
	GameID string `json:"game_id"`
	// Seed is parsed from game ids of the form selfplay_<seed>. Nil for
	// other ids.
	Seed       *int64 `json:"seed"`
	Pieces     int32  `json:"pieces"`
	Lines      int32  `json:"lines"`
	Width      int32  `json:"width"`
	Height     int32  `json:"height"`
	Source     string `json:"source"`
	Scorer     string `json:"scorer"`
	SourceFile string `json:"file"`
}

type GamesResponse struct {
	Total int           `json:"total"`
	Games []GameSummary `json:"games"`
}

type Turn struct {
	Turn       int32       `json:"turn"`
	Board      [][]int     `json:"board"`
	Piece      *game.Piece `json:"piece,omitempty"`
	Queue      string      `json:"queue"`
	Cleared    int32       `json:"cleared"`
	TotalLines int32       `json:"total_lines"`
	Score      float32     `json:"score"`
	Candidates int32       `json:"candidates"`
	Truncated  bool        `json:"truncated"`
}

type GameDetail struct {
	GameSummary
	Turns []Turn `json:"turns"`
}

type ReplayStep struct {
	Turn    int          `json:"turn"`
	Piece   game.Piece   `json:"piece"`
	Before  [][]int      `json:"before"`
	After   [][]int      `json:"after"`
	Cleared int          `json:"cleared"`
	Ghost   []game.Point `json:"ghost,omitempty"`
	// Text is the after board drawn with the placed piece marked.
	Text string `json:"text"`
}

type ReplayResponse struct {
	GameID string       `json:"game_id"`
	Steps  []ReplayStep `json:"steps"`
	// Consistent reports whether replaying the recorded placements reproduces
	// every recorded board.
	Consistent bool `json:"consistent"`
}
