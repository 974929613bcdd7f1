package hub

import (
	"log/slog"
	"sync/atomic"
	"time"

	"go.klb.dev/stash/internal/entry"
)

// ChanPeer is a transient Peer backed by a buffered channel, e.g. one Watch
// stream. Events that do not fit are dropped.
type ChanPeer struct {
	id          string
	source      string
	addr        string
	accepts     []entry.ContentType
	ch          chan Event
	connectedAt time.Time
	lastSeen    atomic.Int64
}

// NewChanPeer returns a peer buffering up to size events.
func NewChanPeer(id, source, addr string, accepts []entry.ContentType, size int) *ChanPeer {
	return &ChanPeer{
		id:          id,
		source:      source,
		addr:        addr,
		accepts:     accepts,
		ch:          make(chan Event, size),
		connectedAt: time.Now(),
	}
}

// C delivers the events sent to the peer.
func (p *ChanPeer) C() <-chan Event { return p.ch }

func (p *ChanPeer) ID() string { return p.id }

func (p *ChanPeer) Info() PeerInfo {
	info := PeerInfo{
		ID:          p.id,
		Source:      p.source,
		Addr:        p.addr,
		Accepts:     p.accepts,
		ConnectedAt: p.connectedAt,
	}
	if ls := p.lastSeen.Load(); ls > 0 {
		info.LastSeen = time.Unix(0, ls)
	}
	return info
}

func (p *ChanPeer) Send(ev Event) {
	p.lastSeen.Store(time.Now().UnixNano())
	select {
	case p.ch <- ev:
	default:
		slog.Warn("watcher channel full, dropping", "peer", p.id, "kind", ev.Kind, "id", ev.ID)
	}
}
