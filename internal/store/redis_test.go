package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/chesslive/coordinator/internal/domain"
)

func newTestStore(t *testing.T) *Redis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb)
}

func waitingGame(id string, at time.Time) *domain.Game {
	return &domain.Game{
		ID:        id,
		FEN:       domain.StartingFEN,
		Status:    domain.StatusWaitingForOpponent,
		Moves:     []domain.MoveRecord{},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g := waitingGame("g1", time.Now())
	if err := s.Save(ctx, g); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != g.ID || got.FEN != g.FEN || got.Status != g.Status {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListWaitingNewestFirstCapped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 12; i++ {
		g := waitingGame(fmt.Sprintf("g%02d", i), base.Add(time.Duration(i)*time.Second))
		if err := s.Save(ctx, g); err != nil {
			t.Fatalf("Save %s: %v", g.ID, err)
		}
	}

	games, err := s.ListWaiting(ctx, 10)
	if err != nil {
		t.Fatalf("ListWaiting: %v", err)
	}
	if len(games) != 10 {
		t.Fatalf("expected 10 games, got %d", len(games))
	}
	if games[0].ID != "g11" || games[9].ID != "g02" {
		t.Fatalf("unexpected order: first=%s last=%s", games[0].ID, games[9].ID)
	}
	for i := 1; i < len(games); i++ {
		if games[i].CreatedAt.After(games[i-1].CreatedAt) {
			t.Fatalf("not newest-first at index %d", i)
		}
	}
}

func TestListWaitingExcludesStartedGames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, waitingGame("g1", time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, waitingGame("g2", time.Now().Add(time.Second))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Update(ctx, "g2", func(g *domain.Game) error {
		g.Status = domain.StatusInProgress
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	games, err := s.ListWaiting(ctx, 10)
	if err != nil {
		t.Fatalf("ListWaiting: %v", err)
	}
	if len(games) != 1 || games[0].ID != "g1" {
		t.Fatalf("expected only g1 waiting, got %+v", games)
	}
}

func TestUpdateAppliesMutation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, waitingGame("g1", time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	updated, err := s.Update(ctx, "g1", func(g *domain.Game) error {
		g.Status = domain.StatusInProgress
		g.Moves = append(g.Moves, domain.MoveRecord{Move: "e4", UCI: "e2e4", PlayerColor: domain.White, Timestamp: time.Now()})
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != domain.StatusInProgress || len(updated.Moves) != 1 {
		t.Fatalf("mutation not reflected in return: %+v", updated)
	}

	got, err := s.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusInProgress || len(got.Moves) != 1 || got.Moves[0].UCI != "e2e4" {
		t.Fatalf("mutation not persisted: %+v", got)
	}
}

func TestUpdateClosureErrorAborts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, waitingGame("g1", time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	boom := errors.New("boom")
	if _, err := s.Update(ctx, "g1", func(g *domain.Game) error {
		g.Status = domain.StatusInProgress
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected closure error, got %v", err)
	}

	got, err := s.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusWaitingForOpponent {
		t.Fatalf("aborted update leaked: %+v", got)
	}
	// The waiting index must still list it.
	games, err := s.ListWaiting(ctx, 10)
	if err != nil {
		t.Fatalf("ListWaiting: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("expected g1 still waiting, got %d games", len(games))
	}
}

func TestUpdateMissingGame(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Update(context.Background(), "missing", func(g *domain.Game) error {
		return nil
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWebhookMatching(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hooks := []*domain.Webhook{
		{ID: "all", URL: "http://a", Events: domain.AllEventKinds(), CreatedAt: time.Now()},
		{ID: "moves-only", URL: "http://b", Events: []domain.EventKind{domain.EventMoveMade}, CreatedAt: time.Now()},
		{ID: "scoped", URL: "http://c", Events: []domain.EventKind{domain.EventMoveMade}, GameID: "g1", CreatedAt: time.Now()},
	}
	for _, w := range hooks {
		if err := s.SaveWebhook(ctx, w); err != nil {
			t.Fatalf("SaveWebhook %s: %v", w.ID, err)
		}
	}

	got, err := s.MatchingWebhooks(ctx, domain.EventMoveMade, "g1")
	if err != nil {
		t.Fatalf("MatchingWebhooks: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 targets for move_made on g1, got %d", len(got))
	}

	got, err = s.MatchingWebhooks(ctx, domain.EventMoveMade, "g2")
	if err != nil {
		t.Fatalf("MatchingWebhooks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("scoped hook leaked to another game: got %d", len(got))
	}

	got, err = s.MatchingWebhooks(ctx, domain.EventGameCreated, "g1")
	if err != nil {
		t.Fatalf("MatchingWebhooks: %v", err)
	}
	if len(got) != 1 || got[0].ID != "all" {
		t.Fatalf("event filter failed: %+v", got)
	}
}
