package domain

import "time"

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Valid reports whether c is one of the two playable sides.
func (c Color) Valid() bool { return c == White || c == Black }

// GameStatus is the lifecycle state of a game session.
type GameStatus string

const (
	StatusWaitingForOpponent GameStatus = "waiting_for_opponent"
	StatusInProgress         GameStatus = "in_progress"
	StatusCheckmate          GameStatus = "checkmate"
	StatusStalemate          GameStatus = "stalemate"
	StatusDraw               GameStatus = "draw"
	StatusResigned           GameStatus = "resigned"
)

// Terminal reports whether no further moves are accepted in s.
func (s GameStatus) Terminal() bool {
	switch s {
	case StatusCheckmate, StatusStalemate, StatusDraw, StatusResigned:
		return true
	}
	return false
}

// MoveRecord is one committed move in a game's history.
type MoveRecord struct {
	Move        string    `json:"move"`
	UCI         string    `json:"uci,omitempty"`
	PlayerColor Color     `json:"playerColor"`
	Timestamp   time.Time `json:"timestamp"`
}

// Game is the persisted state of one game session. Position (FEN) and
// transcript (PGN) are kept mutually consistent: every committed move was
// produced by the rules engine from the immediately preceding position.
type Game struct {
	ID     string     `json:"gameId"`
	FEN    string     `json:"fen"`
	PGN    string     `json:"pgn"`
	Status GameStatus `json:"status"`
	// Result is "white", "black" or "draw" once the game is terminal.
	Result    string       `json:"result,omitempty"`
	Moves     []MoveRecord `json:"moves"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// MovesUCI returns the UCI transcript in play order.
func (g *Game) MovesUCI() []string {
	out := make([]string, 0, len(g.Moves))
	for _, m := range g.Moves {
		out = append(out, m.UCI)
	}
	return out
}

// LastMove returns the most recent committed move, or nil for a fresh game.
func (g *Game) LastMove() *MoveRecord {
	if len(g.Moves) == 0 {
		return nil
	}
	return &g.Moves[len(g.Moves)-1]
}

// StartingFEN is the canonical encoding of the initial position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
