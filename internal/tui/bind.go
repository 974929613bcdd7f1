package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"go.klb.dev/stash/internal/panel"
)

// Panel is what the presenter asks of the panel controller. Calls come from
// the bubbletea goroutine and must not block.
type Panel interface {
	Show()
	Hide()
	MoveUp()
	MoveDown()
	PasteAt(i int)
	Paste(plain bool)
	CycleFilter()
	Delete()
	Search(text string)
}

// Poster schedules a closure on the coordination loop.
type Poster interface {
	Post(fn func()) bool
}

// Bind returns a Panel that runs every action on loop.
func Bind(loop Poster, c *panel.Controller) Panel {
	return bound{loop: loop, c: c}
}

type bound struct {
	loop Poster
	c    *panel.Controller
}

func (b bound) Show()              { b.loop.Post(b.c.Show) }
func (b bound) Hide()              { b.loop.Post(b.c.Hide) }
func (b bound) MoveUp()            { b.loop.Post(b.c.MoveUp) }
func (b bound) MoveDown()          { b.loop.Post(b.c.MoveDown) }
func (b bound) PasteAt(i int)      { b.loop.Post(func() { b.c.PasteAt(i) }) }
func (b bound) Paste(plain bool)   { b.loop.Post(func() { b.c.SelectAndPaste(plain) }) }
func (b bound) CycleFilter()       { b.loop.Post(b.c.Session().CycleTypeFilter) }
func (b bound) Delete()            { b.loop.Post(b.c.Delete) }
func (b bound) Search(text string) { b.loop.Post(func() { b.c.Session().SetSearchText(text) }) }

// Feed forwards controller snapshots to a bubbletea program. Only the
// newest pending snapshot is delivered, so a slow renderer never stalls the
// loop.
type Feed struct {
	mu      sync.Mutex
	pending *panel.Snapshot
	wake    chan struct{}
}

// NewFeed subscribes to c. Call it on the loop, before c is shown.
func NewFeed(c *panel.Controller) *Feed {
	f := &Feed{wake: make(chan struct{}, 1)}
	c.Subscribe(f.push)
	return f
}

func (f *Feed) push(s panel.Snapshot) {
	f.mu.Lock()
	f.pending = &s
	f.mu.Unlock()
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Run delivers snapshots to p as SnapshotMsg until ctx is done.
func (f *Feed) Run(ctx context.Context, p *tea.Program) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.wake:
		}
		f.mu.Lock()
		s := f.pending
		f.pending = nil
		f.mu.Unlock()
		if s != nil {
			p.Send(SnapshotMsg(*s))
		}
	}
}
