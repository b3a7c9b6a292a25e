// Package ws owns the server side of the real-time channel: one
// long-lived connection per participant, JSON messages both directions.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/chesslive/coordinator/internal/obslog"
	"github.com/chesslive/coordinator/internal/registry"
)

const (
	sendBuffer   = 256
	writeTimeout = 5 * time.Second
	pingTimeout  = 3 * time.Second
)

// IntentHandler is what the transport needs from the coordinator.
type IntentHandler interface {
	HandleConnect(s registry.Sender)
	HandleMessage(ctx context.Context, s registry.Sender, raw []byte)
	HandleDisconnect(connID string)
}

// Conn wraps one websocket connection. The write pump exclusively owns
// the outbound direction; everything else goes through Send.
type Conn struct {
	id   string
	conn *websocket.Conn

	send     chan any
	stopCh   chan struct{}
	stopOnce sync.Once

	pingInterval time.Duration
}

func newConn(c *websocket.Conn, pingInterval time.Duration) *Conn {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Conn{
		id:           uuid.NewString(),
		conn:         c,
		send:         make(chan any, sendBuffer),
		stopCh:       make(chan struct{}),
		pingInterval: pingInterval,
	}
}

func (c *Conn) ID() string { return c.id }

// Send queues an outbound message without blocking. It reports false when
// the connection is closing or its buffer is full; such messages are
// dropped, not retried.
func (c *Conn) Send(v any) bool {
	select {
	case <-c.stopCh:
		return false
	default:
	}
	select {
	case c.send <- v:
		return true
	default:
		return false
	}
}

func (c *Conn) stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Serve drives the connection until the peer goes away or ctx ends. It
// registers with the handler, runs the write pump and ping loop, and
// reads intents one at a time so a connection's intents are processed in
// order.
func Serve(ctx context.Context, wsConn *websocket.Conn, h IntentHandler, pingInterval time.Duration) {
	c := newConn(wsConn, pingInterval)
	h.HandleConnect(c)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writePump(ctx)
	}()
	go func() {
		defer wg.Done()
		c.pingLoop(ctx)
	}()

	c.readLoop(ctx, h)

	h.HandleDisconnect(c.id)
	c.stop()
	cancel()
	_ = wsConn.Close(websocket.StatusNormalClosure, "bye")
	wg.Wait()
}

func (c *Conn) readLoop(ctx context.Context, h IntentHandler) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		h.HandleMessage(ctx, c, data)
	}
}

func (c *Conn) writePump(ctx context.Context) {
	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case v := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, v)
			cancel()
			if err != nil {
				obslog.L().Debug("ws_write_error", zap.String("conn_id", c.id), zap.Error(err))
				c.stop()
				return
			}
		}
	}
}

func (c *Conn) pingLoop(ctx context.Context) {
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				failures++
				if failures >= 2 {
					obslog.L().Debug("ws_ping_failure", zap.String("conn_id", c.id))
					c.stop()
					_ = c.conn.Close(websocket.StatusGoingAway, "ping failure")
					return
				}
				continue
			}
			failures = 0
		}
	}
}
