// Package store persists game records and webhook registrations. The
// coordinator depends on the interfaces only; Redis is the backing
// implementation.
package store

import (
	"context"

	"github.com/chesslive/coordinator/internal/domain"
)

var (
	// ErrNotFound is returned when no record exists for the given id.
	ErrNotFound = staticErr("record not found")
	// ErrConflict is returned when an update lost the optimistic
	// concurrency race too many times in a row.
	ErrConflict = staticErr("concurrent update conflict")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

// GameStore is the durable keyed record store for games.
type GameStore interface {
	Save(ctx context.Context, g *domain.Game) error
	Get(ctx context.Context, id string) (*domain.Game, error)
	// ListWaiting returns games still waiting for an opponent,
	// newest-first, at most limit entries.
	ListWaiting(ctx context.Context, limit int) ([]*domain.Game, error)
	// Update applies fn to the current record under per-game
	// serialization: concurrent updates of the same id never interleave
	// read/modify/write. An error from fn aborts without retry and is
	// returned unchanged.
	Update(ctx context.Context, id string, fn func(g *domain.Game) error) (*domain.Game, error)
}

// WebhookStore keeps registered callback targets.
type WebhookStore interface {
	SaveWebhook(ctx context.Context, w *domain.Webhook) error
	// MatchingWebhooks returns targets subscribed to kind whose game
	// scope is absent or equal to gameID.
	MatchingWebhooks(ctx context.Context, kind domain.EventKind, gameID string) ([]*domain.Webhook, error)
}
