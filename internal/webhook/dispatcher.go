// Package webhook fans game events out to registered callback targets.
// Delivery is fire-and-forget from the coordinator's perspective: one
// attempt per target, failures logged and swallowed.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/chesslive/coordinator/internal/domain"
	"github.com/chesslive/coordinator/internal/obslog"
	"github.com/chesslive/coordinator/internal/store"
)

// Payload is the snapshot POSTed to each matching target.
type Payload struct {
	EventType domain.EventKind `json:"eventType"`
	Timestamp time.Time        `json:"timestamp"`
	Game      PayloadGame      `json:"game"`
}

type PayloadGame struct {
	ID       string             `json:"id"`
	Status   domain.GameStatus  `json:"status"`
	FEN      string             `json:"fen"`
	LastMove *domain.MoveRecord `json:"lastMove"`
}

type Dispatcher struct {
	hooks   store.WebhookStore
	client  *fasthttp.Client
	timeout time.Duration
	sem     chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher bounds each notification batch to maxConcurrent in-flight
// deliveries, each with its own deadline.
func NewDispatcher(hooks store.WebhookStore, maxConcurrent int, timeout time.Duration) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		hooks: hooks,
		client: &fasthttp.Client{
			ReadTimeout:     timeout,
			WriteTimeout:    timeout,
			MaxConnsPerHost: 64,
		},
		timeout: timeout,
		sem:     make(chan struct{}, maxConcurrent),
	}
}

// Notify snapshots the game state and delivers it asynchronously to every
// matching target. It never blocks the caller on delivery and never
// reports delivery errors back.
func (d *Dispatcher) Notify(game *domain.Game, kind domain.EventKind) {
	p := Payload{
		EventType: kind,
		Timestamp: time.Now(),
		Game: PayloadGame{
			ID:       game.ID,
			Status:   game.Status,
			FEN:      game.FEN,
			LastMove: game.LastMove(),
		},
	}
	d.wg.Add(1)
	go d.dispatch(p)
}

func (d *Dispatcher) dispatch(p Payload) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	targets, err := d.hooks.MatchingWebhooks(ctx, p.EventType, p.Game.ID)
	cancel()
	if err != nil {
		obslog.L().Error("webhook_query_error",
			zap.String("event", string(p.EventType)),
			zap.String("game_id", p.Game.ID),
			zap.Error(err),
		)
		return
	}
	if len(targets) == 0 {
		return
	}

	body, err := json.Marshal(p)
	if err != nil {
		obslog.L().Error("webhook_payload_error", zap.Error(err))
		return
	}

	var batch sync.WaitGroup
	for _, t := range targets {
		d.sem <- struct{}{}
		batch.Add(1)
		go func(t *domain.Webhook) {
			defer func() {
				<-d.sem
				batch.Done()
			}()
			if err := d.post(t.URL, body); err != nil {
				obslog.L().Warn("webhook_delivery_failed",
					zap.String("webhook_id", t.ID),
					zap.String("event", string(p.EventType)),
					zap.String("game_id", p.Game.ID),
					zap.Error(err),
				)
				return
			}
			obslog.L().Debug("webhook_delivered",
				zap.String("webhook_id", t.ID),
				zap.String("event", string(p.EventType)),
				zap.String("game_id", p.Game.ID),
			)
		}(t)
	}
	batch.Wait()
}

func (d *Dispatcher) post(url string, body []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := d.client.DoDeadline(req, resp, time.Now().Add(d.timeout)); err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return fmt.Errorf("post %s: status=%d", url, status)
	}
	return nil
}

// Wait blocks until all in-flight notification batches finish. Used by
// shutdown and tests.
func (d *Dispatcher) Wait() { d.wg.Wait() }
