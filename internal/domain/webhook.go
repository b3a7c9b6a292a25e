package domain

import "time"

// EventKind is an externally observable game state change.
type EventKind string

const (
	EventGameCreated   EventKind = "game_created"
	EventPlayerJoined  EventKind = "player_joined"
	EventMoveMade      EventKind = "move_made"
	EventGameCompleted EventKind = "game_completed"
)

// AllEventKinds lists every kind a webhook may subscribe to.
func AllEventKinds() []EventKind {
	return []EventKind{EventGameCreated, EventPlayerJoined, EventMoveMade, EventGameCompleted}
}

// Webhook is a registered external callback target. An empty Events list
// is normalized to all kinds at registration time; an empty GameID means
// the target receives events for every game.
type Webhook struct {
	ID        string      `json:"webhookId"`
	URL       string      `json:"url"`
	Events    []EventKind `json:"events"`
	GameID    string      `json:"gameId,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Wants reports whether the target subscribes to kind for the given game.
func (w *Webhook) Wants(kind EventKind, gameID string) bool {
	if w.GameID != "" && w.GameID != gameID {
		return false
	}
	for _, e := range w.Events {
		if e == kind {
			return true
		}
	}
	return false
}
