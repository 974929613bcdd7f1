// Package hub fans history events out to watchers.
// It is transport-agnostic: watchers register, receive events via Send, and
// anything that changes the history publishes.
package hub

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.klb.dev/stash/internal/entry"
)

// Kind says what happened to an entry.
type Kind string

const (
	Captured Kind = "captured"
	Touched  Kind = "touched"
	Deleted  Kind = "deleted"
)

// Event is a history change delivered to a watcher.
type Event struct {
	Kind        Kind              `json:"kind"`
	ID          int64             `json:"id"`
	ContentType entry.ContentType `json:"content_type,omitempty"`
	Source      string            `json:"source,omitempty"`
	// At is Unix milliseconds.
	At int64 `json:"at"`
}

// PeerInfo describes a registered watcher.
type PeerInfo struct {
	ID          string              `json:"id"`
	Source      string              `json:"source,omitempty"`
	Addr        string              `json:"addr,omitempty"`
	Accepts     []entry.ContentType `json:"accepts,omitempty"`
	ConnectedAt time.Time           `json:"connected_at"`
	LastSeen    time.Time           `json:"last_seen,omitzero"`
}

// Peer is anything that can receive history events from the hub.
type Peer interface {
	ID() string
	Info() PeerInfo
	// Send delivers an event to the peer. Must be non-blocking.
	Send(Event)
}

// Hub routes history events to all registered peers.
type Hub struct {
	mu     sync.RWMutex
	peers  map[string]Peer
	latest *Event
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{peers: make(map[string]Peer)}
}

// Register adds a peer and immediately delivers the latest capture when the
// peer accepts its type.
func (h *Hub) Register(p Peer) {
	h.mu.Lock()
	h.peers[p.ID()] = p
	latest := h.latest
	total := len(h.peers)
	h.mu.Unlock()

	info := p.Info()
	slog.Info("watcher registered", "peer", p.ID(), "source", info.Source, "total", total)

	if latest != nil && accepts(info.Accepts, *latest) {
		p.Send(*latest)
	}
}

// Unregister removes a peer from the hub.
func (h *Hub) Unregister(p Peer) {
	h.mu.Lock()
	delete(h.peers, p.ID())
	total := len(h.peers)
	h.mu.Unlock()

	slog.Info("watcher unregistered", "peer", p.ID(), "total", total)
}

// Publish fans ev out to every peer except originID. Captures are kept as
// the latest event for peers that register later.
func (h *Hub) Publish(ev Event, originID string) {
	if ev.At == 0 {
		ev.At = time.Now().UnixMilli()
	}

	h.mu.Lock()
	switch {
	case ev.Kind == Captured:
		h.latest = &ev
	case ev.Kind == Deleted && h.latest != nil && h.latest.ID == ev.ID:
		h.latest = nil
	}
	var targets []Peer
	for id, p := range h.peers {
		if id != originID {
			targets = append(targets, p)
		}
	}
	h.mu.Unlock()

	for _, p := range targets {
		if accepts(p.Info().Accepts, ev) {
			p.Send(ev)
		}
	}
}

// Latest returns the most recent capture still in the history.
func (h *Hub) Latest() (Event, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return Event{}, false
	}
	return *h.latest, true
}

// Peers returns a snapshot of all current peer metadata, ordered by id.
func (h *Hub) Peers() []PeerInfo {
	h.mu.RLock()
	out := make([]PeerInfo, 0, len(h.peers))
	for _, p := range h.peers {
		out = append(out, p.Info())
	}
	h.mu.RUnlock()
	slices.SortFunc(out, func(a, b PeerInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// accepts filters on content type. Deletes carry no type and always pass.
// An empty accept list takes everything.
func accepts(types []entry.ContentType, ev Event) bool {
	if len(types) == 0 || ev.ContentType == "" {
		return true
	}
	return slices.Contains(types, ev.ContentType)
}
