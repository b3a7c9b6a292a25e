// Package coordinator is the protocol state machine of the live game
// service: it interprets client intents, consults the rules engine,
// mutates game state and emits outbound events to subscribed connections
// and registered webhook targets.
package coordinator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chesslive/coordinator/internal/domain"
	"github.com/chesslive/coordinator/internal/msgcat"
	"github.com/chesslive/coordinator/internal/obslog"
	"github.com/chesslive/coordinator/internal/registry"
	"github.com/chesslive/coordinator/internal/rules"
	"github.com/chesslive/coordinator/internal/store"
	"github.com/chesslive/coordinator/pkg/wire"
)

// LobbyPageSize caps the available-games listing.
const LobbyPageSize = 10

// Notifier fans an event out to external callback targets. Delivery must
// not block the caller.
type Notifier interface {
	Notify(game *domain.Game, kind domain.EventKind)
}

// Archiver records terminal games durably. Optional; may be nil.
type Archiver interface {
	SaveCompleted(ctx context.Context, g *domain.Game) error
}

type Coordinator struct {
	games  store.GameStore
	hooks  store.WebhookStore
	notify Notifier
	reg    *registry.Registry
	engine rules.Engine
	arch   Archiver
	cat    *msgcat.Catalog
}

func New(games store.GameStore, hooks store.WebhookStore, notify Notifier, reg *registry.Registry, engine rules.Engine, cat *msgcat.Catalog) *Coordinator {
	return &Coordinator{
		games:  games,
		hooks:  hooks,
		notify: notify,
		reg:    reg,
		engine: engine,
		cat:    cat,
	}
}

// AttachArchiver wires an optional terminal-game archive.
func (c *Coordinator) AttachArchiver(a Archiver) { c.arch = a }

// Registry exposes the session registry for transport wiring.
func (c *Coordinator) Registry() *registry.Registry { return c.reg }

// CreateGame allocates a fresh game at the starting position, persists it
// and notifies webhook targets plus idle connections.
func (c *Coordinator) CreateGame(ctx context.Context) (*domain.Game, error) {
	now := time.Now()
	g := &domain.Game{
		ID:        uuid.NewString(),
		FEN:       domain.StartingFEN,
		PGN:       "",
		Status:    domain.StatusWaitingForOpponent,
		Moves:     []domain.MoveRecord{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.games.Save(ctx, g); err != nil {
		return nil, err
	}
	obslog.L().Info("game_created", zap.String("game_id", g.ID))
	c.notify.Notify(g, domain.EventGameCreated)
	return g, nil
}

// AnnounceGame broadcasts a lightweight new-game summary to every
// connection not currently in a game.
func (c *Coordinator) AnnounceGame(g *domain.Game, excludeConnID string) {
	summary := wire.NewNewGameAvailable(g)
	for _, s := range c.reg.Idle() {
		if s.ID() == excludeConnID {
			continue
		}
		if !s.Send(summary) {
			obslog.L().Debug("announce_dropped", zap.String("conn_id", s.ID()), zap.String("game_id", g.ID))
		}
	}
}

// JoinGame seats the second player: the game must still be waiting for an
// opponent. On success the status becomes in_progress.
func (c *Coordinator) JoinGame(ctx context.Context, gameID string) (*domain.Game, error) {
	updated, err := c.games.Update(ctx, gameID, func(g *domain.Game) error {
		if g.Status != domain.StatusWaitingForOpponent {
			return c.reject("errors.game_full", nil)
		}
		g.Status = domain.StatusInProgress
		g.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, c.mapStoreErr(err, "join")
	}
	obslog.L().Info("player_joined", zap.String("game_id", updated.ID))
	c.notify.Notify(updated, domain.EventPlayerJoined)
	return updated, nil
}

// Move applies one move for the given side. On success the event is
// fanned out to every subscriber of the game (including the mover) and to
// webhook targets; a terminal result additionally emits a completion
// event and archives the game.
func (c *Coordinator) Move(ctx context.Context, gameID, move string, color domain.Color) (*domain.Game, error) {
	if !color.Valid() {
		return nil, c.reject("errors.invalid_color", nil)
	}
	move = strings.TrimSpace(move)

	updated, err := c.games.Update(ctx, gameID, func(g *domain.Game) error {
		if g.Status == domain.StatusWaitingForOpponent {
			return c.reject("errors.game_not_started", nil)
		}
		if g.Status.Terminal() {
			return c.reject("errors.game_over", nil)
		}
		v, verr := c.engine.Apply(rules.Position{FEN: g.FEN, MovesUCI: g.MovesUCI()}, move, color)
		if verr != nil {
			switch {
			case errors.Is(verr, rules.ErrWrongTurn):
				return c.reject("errors.not_your_turn", map[string]string{"Color": string(color)})
			case errors.Is(verr, rules.ErrIllegalMove):
				return c.reject("errors.illegal_move", nil)
			}
			return verr
		}
		now := time.Now()
		g.FEN = v.FEN
		g.PGN = v.PGN
		g.Moves = append(g.Moves, domain.MoveRecord{
			Move:        move,
			UCI:         v.UCI,
			PlayerColor: color,
			Timestamp:   now,
		})
		g.UpdatedAt = now
		if v.Terminal {
			g.Status = v.Status
			g.Result = resultFor(v.Status, color)
		}
		return nil
	})
	if err != nil {
		return nil, c.mapStoreErr(err, "move")
	}

	obslog.L().Info("move_made",
		zap.String("game_id", updated.ID),
		zap.String("move", move),
		zap.String("color", string(color)),
		zap.String("status", string(updated.Status)),
	)

	c.fanOut(updated.ID, wire.NewMoveMade(updated, move, color))
	c.notify.Notify(updated, domain.EventMoveMade)
	if updated.Status.Terminal() {
		c.completeGame(updated)
	}
	return updated, nil
}

// Resign ends an in-progress game in favor of the opponent.
func (c *Coordinator) Resign(ctx context.Context, gameID string, color domain.Color) (*domain.Game, error) {
	if !color.Valid() {
		return nil, c.reject("errors.invalid_color", nil)
	}
	updated, err := c.games.Update(ctx, gameID, func(g *domain.Game) error {
		if g.Status == domain.StatusWaitingForOpponent {
			return c.reject("errors.game_not_started", nil)
		}
		if g.Status.Terminal() {
			return c.reject("errors.game_over", nil)
		}
		g.Status = domain.StatusResigned
		g.Result = string(opponent(color))
		g.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, c.mapStoreErr(err, "resign")
	}
	obslog.L().Info("game_resigned", zap.String("game_id", updated.ID), zap.String("resigner", string(color)))
	c.completeGame(updated)
	return updated, nil
}

// completeGame emits the completion event to subscribers and webhooks and
// hands the final record to the archiver.
func (c *Coordinator) completeGame(g *domain.Game) {
	c.fanOut(g.ID, wire.NewGameCompleted(g))
	c.notify.Notify(g, domain.EventGameCompleted)
	if c.arch != nil {
		go func(g *domain.Game) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := c.arch.SaveCompleted(ctx, g); err != nil {
				obslog.L().Error("archive_error", zap.String("game_id", g.ID), zap.Error(err))
			}
		}(g)
	}
}

// GetGame loads a game record.
func (c *Coordinator) GetGame(ctx context.Context, gameID string) (*domain.Game, error) {
	g, err := c.games.Get(ctx, gameID)
	if err != nil {
		return nil, c.mapStoreErr(err, "get")
	}
	return g, nil
}

// AvailableGames lists games waiting for an opponent, newest-first,
// capped at LobbyPageSize.
func (c *Coordinator) AvailableGames(ctx context.Context) ([]*domain.Game, error) {
	games, err := c.games.ListWaiting(ctx, LobbyPageSize)
	if err != nil {
		return nil, c.mapStoreErr(err, "list")
	}
	return games, nil
}

// RegisterWebhook persists a callback target. An empty events list
// defaults to all event kinds.
func (c *Coordinator) RegisterWebhook(ctx context.Context, url string, events []domain.EventKind, gameID string) (*domain.Webhook, error) {
	if strings.TrimSpace(url) == "" {
		return nil, c.reject("errors.webhook_url_required", nil)
	}
	if len(events) == 0 {
		events = domain.AllEventKinds()
	}
	w := &domain.Webhook{
		ID:        uuid.NewString(),
		URL:       strings.TrimSpace(url),
		Events:    events,
		GameID:    strings.TrimSpace(gameID),
		CreatedAt: time.Now(),
	}
	if err := c.hooks.SaveWebhook(ctx, w); err != nil {
		return nil, c.reject("errors.webhook_failed", nil)
	}
	obslog.L().Info("webhook_registered",
		zap.String("webhook_id", w.ID),
		zap.String("url", w.URL),
		zap.Int("events", len(w.Events)),
		zap.String("game_scope", w.GameID),
	)
	return w, nil
}

// fanOut delivers an event to the current subscriber snapshot. Dead or
// congested connections are skipped silently.
func (c *Coordinator) fanOut(gameID string, event any) {
	for _, s := range c.reg.SubscribersOf(gameID) {
		if !s.Send(event) {
			obslog.L().Debug("fanout_dropped", zap.String("conn_id", s.ID()), zap.String("game_id", gameID))
		}
	}
}

// fanOutExcept is fanOut minus one connection, used when the requester
// already received a direct confirmation.
func (c *Coordinator) fanOutExcept(gameID, exceptConnID string, event any) {
	for _, s := range c.reg.SubscribersOf(gameID) {
		if s.ID() == exceptConnID {
			continue
		}
		if !s.Send(event) {
			obslog.L().Debug("fanout_dropped", zap.String("conn_id", s.ID()), zap.String("game_id", gameID))
		}
	}
}

// mapStoreErr translates store lookup/race failures into user-facing
// rejections while passing rejections from update closures through
// unchanged. Other persistence errors stay opaque so the surfaces can
// report a generic failure.
func (c *Coordinator) mapStoreErr(err error, op string) error {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.reject("errors.game_not_found", nil)
	case errors.Is(err, store.ErrConflict):
		return c.reject("errors.move_conflict", nil)
	}
	obslog.L().Error("store_error", zap.String("op", op), zap.Error(err))
	return err
}

func resultFor(status domain.GameStatus, mover domain.Color) string {
	if status == domain.StatusCheckmate {
		return string(mover)
	}
	return "draw"
}

func opponent(color domain.Color) domain.Color {
	if color == domain.White {
		return domain.Black
	}
	return domain.White
}
