package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/chesslive/coordinator/internal/domain"
)

const updateAttempts = 3

// Redis implements GameStore and WebhookStore on a single client. Game
// records carry no TTL: games are never deleted here, archival is a
// separate concern.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis { return &Redis{rdb: rdb} }

func gameKey(id string) string    { return "game:" + strings.TrimSpace(id) }
func webhookKey(id string) string { return "webhook:" + strings.TrimSpace(id) }

const (
	keyWaiting  = "games:waiting"
	keyWebhooks = "webhooks"
)

func (s *Redis) Save(ctx context.Context, g *domain.Game) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, gameKey(g.ID), raw, 0)
	if g.Status == domain.StatusWaitingForOpponent {
		pipe.ZAdd(ctx, keyWaiting, redis.Z{Score: float64(g.CreatedAt.UnixNano()), Member: g.ID})
	} else {
		pipe.ZRem(ctx, keyWaiting, g.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Redis) Get(ctx context.Context, id string) (*domain.Game, error) {
	raw, err := s.rdb.Get(ctx, gameKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var g domain.Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Redis) ListWaiting(ctx context.Context, limit int) ([]*domain.Game, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := s.rdb.ZRevRange(ctx, keyWaiting, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Game, 0, len(ids))
	for _, id := range ids {
		g, gerr := s.Get(ctx, id)
		if errors.Is(gerr, ErrNotFound) {
			continue
		}
		if gerr != nil {
			return nil, gerr
		}
		// the index can lag a status transition briefly
		if g.Status != domain.StatusWaitingForOpponent {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// Update serializes read/modify/write per game via WATCH. Losers of a
// concurrent race observe the winner's committed state on retry.
func (s *Redis) Update(ctx context.Context, id string, fn func(g *domain.Game) error) (*domain.Game, error) {
	key := gameKey(id)
	var updated *domain.Game
	for attempt := 0; attempt < updateAttempts; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			var g domain.Game
			if err := json.Unmarshal(raw, &g); err != nil {
				return fmt.Errorf("decode game %s: %w", id, err)
			}
			if err := fn(&g); err != nil {
				return err
			}
			newRaw, err := json.Marshal(&g)
			if err != nil {
				return err
			}
			pipe := tx.TxPipeline()
			pipe.Set(ctx, key, newRaw, 0)
			if g.Status == domain.StatusWaitingForOpponent {
				pipe.ZAdd(ctx, keyWaiting, redis.Z{Score: float64(g.CreatedAt.UnixNano()), Member: g.ID})
			} else {
				pipe.ZRem(ctx, keyWaiting, g.ID)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return err
			}
			updated = &g
			return nil
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, ErrConflict
}

func (s *Redis) SaveWebhook(ctx context.Context, w *domain.Webhook) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, webhookKey(w.ID), raw, 0)
	pipe.SAdd(ctx, keyWebhooks, w.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Redis) MatchingWebhooks(ctx context.Context, kind domain.EventKind, gameID string) ([]*domain.Webhook, error) {
	ids, err := s.rdb.SMembers(ctx, keyWebhooks).Result()
	if err != nil {
		return nil, err
	}
	var out []*domain.Webhook
	for _, id := range ids {
		raw, gerr := s.rdb.Get(ctx, webhookKey(id)).Bytes()
		if errors.Is(gerr, redis.Nil) {
			continue
		}
		if gerr != nil {
			return nil, gerr
		}
		var w domain.Webhook
		if err := json.Unmarshal(raw, &w); err != nil {
			continue
		}
		if w.Wants(kind, gameID) {
			out = append(out, &w)
		}
	}
	return out, nil
}
