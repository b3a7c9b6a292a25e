package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/chesslive/coordinator/internal/domain"
	"github.com/chesslive/coordinator/internal/obslog"
	"github.com/chesslive/coordinator/internal/registry"
	"github.com/chesslive/coordinator/pkg/wire"
)

// HandleConnect registers a new live connection.
func (c *Coordinator) HandleConnect(s registry.Sender) {
	c.reg.Register(s)
	obslog.L().Info("client_connected", zap.String("conn_id", s.ID()))
}

// HandleDisconnect removes the connection and all of its subscriptions.
// In-flight intents for the connection complete on their own; their sends
// are simply dropped.
func (c *Coordinator) HandleDisconnect(connID string) {
	c.reg.Unregister(connID)
	obslog.L().Info("client_disconnected", zap.String("conn_id", connID))
}

// HandleMessage decodes and dispatches one client intent. Failures are
// answered on the originating connection only; the connection stays open.
func (c *Coordinator) HandleMessage(ctx context.Context, s registry.Sender, raw []byte) {
	var msg wire.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		obslog.L().Warn("malformed_message", zap.String("conn_id", s.ID()), zap.Error(err))
		s.Send(wire.NewError(c.cat.Text("errors.malformed")))
		return
	}

	switch msg.Type {
	case wire.IntentCreateGame:
		c.handleCreate(ctx, s)
	case wire.IntentJoinGame:
		c.handleJoin(ctx, s, msg.GameID)
	case wire.IntentMakeMove:
		c.handleMove(ctx, s, msg)
	case wire.IntentLeaveGame:
		c.handleLeave(s, msg.GameID)
	case wire.IntentResignGame:
		c.handleResign(ctx, s, msg)
	case wire.IntentGetAvailableGames:
		c.handleList(ctx, s)
	default:
		s.Send(wire.NewError(c.cat.Text("errors.unknown_type")))
	}
}

func (c *Coordinator) handleCreate(ctx context.Context, s registry.Sender) {
	g, err := c.CreateGame(ctx)
	if err != nil {
		c.sendErr(s, err, "errors.create_failed")
		return
	}
	c.reg.Subscribe(s.ID(), g.ID)
	s.Send(wire.NewGameCreated(g))
	c.AnnounceGame(g, s.ID())
}

func (c *Coordinator) handleJoin(ctx context.Context, s registry.Sender, gameID string) {
	g, err := c.JoinGame(ctx, gameID)
	if err != nil {
		c.sendErr(s, err, "errors.join_failed")
		return
	}
	c.reg.Subscribe(s.ID(), g.ID)
	// direct confirmation first so the joiner never misses it if the
	// broader fan-out partially fails
	event := wire.NewPlayerJoined(g)
	s.Send(event)
	c.fanOutExcept(g.ID, s.ID(), event)
}

func (c *Coordinator) handleMove(ctx context.Context, s registry.Sender, msg wire.ClientMessage) {
	color := domain.Color(strings.ToLower(strings.TrimSpace(msg.PlayerColor)))
	if _, err := c.Move(ctx, msg.GameID, msg.Move, color); err != nil {
		c.sendErr(s, err, "errors.move_failed")
	}
}

func (c *Coordinator) handleResign(ctx context.Context, s registry.Sender, msg wire.ClientMessage) {
	color := domain.Color(strings.ToLower(strings.TrimSpace(msg.PlayerColor)))
	if _, err := c.Resign(ctx, msg.GameID, color); err != nil {
		c.sendErr(s, err, "errors.resign_failed")
	}
}

func (c *Coordinator) handleLeave(s registry.Sender, gameID string) {
	c.reg.Unsubscribe(s.ID(), gameID)
	s.Send(wire.NewLeftGame(gameID))
}

func (c *Coordinator) handleList(ctx context.Context, s registry.Sender) {
	games, err := c.AvailableGames(ctx)
	if err != nil {
		c.sendErr(s, err, "errors.list_failed")
		return
	}
	s.Send(wire.NewAvailableGames(games))
}

func (c *Coordinator) sendErr(s registry.Sender, err error, fallbackKey string) {
	var rej *Rejection
	if errors.As(err, &rej) {
		s.Send(wire.NewError(rej.Message))
		return
	}
	s.Send(wire.NewError(c.cat.Text(fallbackKey)))
}
