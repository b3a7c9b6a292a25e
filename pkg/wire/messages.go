// Package wire defines the JSON message shapes exchanged over the
// real-time channel and the REST surface.
package wire

import (
	"time"

	"github.com/chesslive/coordinator/internal/domain"
)

// IntentKind discriminates client-originated messages. The set is closed:
// anything else is answered with an error event.
type IntentKind string

const (
	IntentCreateGame        IntentKind = "create_game"
	IntentJoinGame          IntentKind = "join_game"
	IntentMakeMove          IntentKind = "make_move"
	IntentLeaveGame         IntentKind = "leave_game"
	IntentResignGame        IntentKind = "resign_game"
	IntentGetAvailableGames IntentKind = "get_available_games"
)

// ClientMessage is the envelope for every client → coordinator message.
type ClientMessage struct {
	Type        IntentKind `json:"type"`
	GameID      string     `json:"gameId,omitempty"`
	Move        string     `json:"move,omitempty"`
	PlayerColor string     `json:"playerColor,omitempty"`
}

// Event type tags, coordinator → client.
const (
	EventGameCreated      = "game_created"
	EventPlayerJoined     = "player_joined"
	EventMoveMade         = "move_made"
	EventGameCompleted    = "game_completed"
	EventNewGameAvailable = "new_game_available"
	EventAvailableGames   = "available_games"
	EventLeftGame         = "left_game"
	EventError            = "error"
)

type GameCreated struct {
	Type string       `json:"type"`
	Game *domain.Game `json:"game"`
}

func NewGameCreated(g *domain.Game) GameCreated {
	return GameCreated{Type: EventGameCreated, Game: g}
}

type PlayerJoined struct {
	Type   string       `json:"type"`
	GameID string       `json:"gameId"`
	Game   *domain.Game `json:"game"`
}

func NewPlayerJoined(g *domain.Game) PlayerJoined {
	return PlayerJoined{Type: EventPlayerJoined, GameID: g.ID, Game: g}
}

type MoveMade struct {
	Type        string            `json:"type"`
	GameID      string            `json:"gameId"`
	Move        string            `json:"move"`
	PlayerColor domain.Color      `json:"playerColor"`
	FEN         string            `json:"fen"`
	PGN         string            `json:"pgn"`
	Status      domain.GameStatus `json:"status"`
}

func NewMoveMade(g *domain.Game, move string, color domain.Color) MoveMade {
	return MoveMade{
		Type:        EventMoveMade,
		GameID:      g.ID,
		Move:        move,
		PlayerColor: color,
		FEN:         g.FEN,
		PGN:         g.PGN,
		Status:      g.Status,
	}
}

type GameCompleted struct {
	Type   string            `json:"type"`
	GameID string            `json:"gameId"`
	Status domain.GameStatus `json:"status"`
}

func NewGameCompleted(g *domain.Game) GameCompleted {
	return GameCompleted{Type: EventGameCompleted, GameID: g.ID, Status: g.Status}
}

type NewGameAvailable struct {
	Type      string    `json:"type"`
	GameID    string    `json:"gameId"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewNewGameAvailable(g *domain.Game) NewGameAvailable {
	return NewGameAvailable{Type: EventNewGameAvailable, GameID: g.ID, CreatedAt: g.CreatedAt}
}

type AvailableGames struct {
	Type  string         `json:"type"`
	Games []*domain.Game `json:"games"`
}

func NewAvailableGames(games []*domain.Game) AvailableGames {
	if games == nil {
		games = []*domain.Game{}
	}
	return AvailableGames{Type: EventAvailableGames, Games: games}
}

type LeftGame struct {
	Type   string `json:"type"`
	GameID string `json:"gameId"`
}

func NewLeftGame(gameID string) LeftGame {
	return LeftGame{Type: EventLeftGame, GameID: gameID}
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) ErrorEvent {
	return ErrorEvent{Type: EventError, Message: message}
}
