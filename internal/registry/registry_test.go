package registry

import (
	"fmt"
	"sync"
	"testing"
)

type stubSender struct {
	id string
}

func (s *stubSender) ID() string      { return s.id }
func (s *stubSender) Send(v any) bool { return true }

func sender(id string) *stubSender { return &stubSender{id: id} }

func TestSubscribeTracksBothRelations(t *testing.T) {
	r := New()
	r.Register(sender("c1"))
	r.Register(sender("c2"))
	r.Subscribe("c1", "g1")
	r.Subscribe("c2", "g1")

	if got := len(r.SubscribersOf("g1")); got != 2 {
		t.Fatalf("expected 2 subscribers, got %d", got)
	}
	subs := r.Subscriptions("c1")
	if len(subs) != 1 || subs[0] != "g1" {
		t.Fatalf("unexpected subscriptions for c1: %v", subs)
	}

	// Subscribing twice is a no-op.
	r.Subscribe("c1", "g1")
	if got := len(r.SubscribersOf("g1")); got != 2 {
		t.Fatalf("idempotent subscribe broke the set: %d", got)
	}
}

func TestSubscribeUnknownConnIgnored(t *testing.T) {
	r := New()
	r.Subscribe("ghost", "g1")
	if got := len(r.SubscribersOf("g1")); got != 0 {
		t.Fatalf("unknown conn must not subscribe, got %d", got)
	}
}

func TestUnregisterCleansEveryGame(t *testing.T) {
	r := New()
	r.Register(sender("c1"))
	r.Subscribe("c1", "g1")
	r.Subscribe("c1", "g2")

	r.Unregister("c1")
	if r.Connected("c1") {
		t.Fatalf("c1 still connected after unregister")
	}
	for _, g := range []string{"g1", "g2"} {
		if got := len(r.SubscribersOf(g)); got != 0 {
			t.Fatalf("game %s retained %d subscribers after unregister", g, got)
		}
	}
	// Unknown ids are a no-op.
	r.Unregister("c1")
	r.Unregister("never-seen")
}

func TestUnsubscribeIdempotent(t *testing.T) {
	r := New()
	r.Register(sender("c1"))
	r.Subscribe("c1", "g1")

	r.Unsubscribe("c1", "g1")
	r.Unsubscribe("c1", "g1")
	r.Unsubscribe("c1", "never-subscribed")

	if got := len(r.SubscribersOf("g1")); got != 0 {
		t.Fatalf("expected empty subscriber set, got %d", got)
	}
	if subs := r.Subscriptions("c1"); len(subs) != 0 {
		t.Fatalf("expected no subscriptions, got %v", subs)
	}
	if !r.Connected("c1") {
		t.Fatalf("unsubscribe must not drop the connection")
	}
}

func TestIdleTracksUnsubscribedConnections(t *testing.T) {
	r := New()
	r.Register(sender("c1"))
	r.Register(sender("c2"))

	if got := len(r.Idle()); got != 2 {
		t.Fatalf("expected both conns idle, got %d", got)
	}
	r.Subscribe("c1", "g1")
	idle := r.Idle()
	if len(idle) != 1 || idle[0].ID() != "c2" {
		t.Fatalf("unexpected idle set: %v", idle)
	}
	r.Unsubscribe("c1", "g1")
	if got := len(r.Idle()); got != 2 {
		t.Fatalf("expected c1 idle again, got %d", got)
	}
}

func TestConcurrentChurnLeavesNoOrphans(t *testing.T) {
	r := New()
	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			game := fmt.Sprintf("g%d", i%4)
			for n := 0; n < 100; n++ {
				r.Register(sender(id))
				r.Subscribe(id, game)
				r.SubscribersOf(game)
				r.Unsubscribe(id, game)
				r.Unregister(id)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		game := fmt.Sprintf("g%d", i)
		if got := len(r.SubscribersOf(game)); got != 0 {
			t.Fatalf("game %s has %d orphaned subscribers", game, got)
		}
	}
	if got := len(r.Idle()); got != 0 {
		t.Fatalf("expected no connections left, got %d", got)
	}
}
