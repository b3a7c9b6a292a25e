// Package registry tracks live connections and their per-game
// subscriptions. It maintains two inverse relations, game→connections and
// connection→games, under one mutex so they can never desynchronize.
package registry

import "sync"

// Sender is the transport half of a connection the registry hands out.
// Send must not block: it reports false when the message was dropped
// because the connection is gone or its buffer is full.
type Sender interface {
	ID() string
	Send(v any) bool
}

type connEntry struct {
	sender Sender
	games  map[string]struct{}
}

type Registry struct {
	mu    sync.Mutex
	conns map[string]*connEntry
	subs  map[string]map[string]Sender
}

func New() *Registry {
	return &Registry{
		conns: make(map[string]*connEntry),
		subs:  make(map[string]map[string]Sender),
	}
}

// Register creates bookkeeping for a new connection with no subscriptions.
func (r *Registry) Register(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[s.ID()] = &connEntry{sender: s, games: make(map[string]struct{})}
}

// Unregister removes the connection from every game it was subscribed to
// and discards its entry. Calling it for an unknown id is a no-op.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[connID]
	if !ok {
		return
	}
	for gameID := range entry.games {
		r.dropPair(connID, gameID)
	}
	delete(r.conns, connID)
}

// Subscribe adds the pairing to both relations. Idempotent; unknown
// connection ids are ignored.
func (r *Registry) Subscribe(connID, gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[connID]
	if !ok {
		return
	}
	entry.games[gameID] = struct{}{}
	set, ok := r.subs[gameID]
	if !ok {
		set = make(map[string]Sender)
		r.subs[gameID] = set
	}
	set[connID] = entry.sender
}

// Unsubscribe removes the pairing from both relations. Idempotent.
func (r *Registry) Unsubscribe(connID, gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.conns[connID]; ok {
		delete(entry.games, gameID)
	}
	r.dropPair(connID, gameID)
}

// dropPair removes connID from the game's subscriber set, pruning the set
// when it empties. Caller holds r.mu.
func (r *Registry) dropPair(connID, gameID string) {
	set, ok := r.subs[gameID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.subs, gameID)
	}
}

// SubscribersOf returns a snapshot of the game's subscribers. The set may
// change immediately after; delivery is eventual, not transactional.
func (r *Registry) SubscribersOf(gameID string) []Sender {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.subs[gameID]
	out := make([]Sender, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	return out
}

// Idle returns a snapshot of connections not currently subscribed to any
// game, the audience for new-game announcements.
func (r *Registry) Idle() []Sender {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sender
	for _, entry := range r.conns {
		if len(entry.games) == 0 {
			out = append(out, entry.sender)
		}
	}
	return out
}

// Subscriptions returns a snapshot of the game ids connID subscribes to.
func (r *Registry) Subscriptions(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[connID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(entry.games))
	for id := range entry.games {
		out = append(out, id)
	}
	return out
}

// Connected reports whether the connection is currently registered.
func (r *Registry) Connected(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[connID]
	return ok
}
