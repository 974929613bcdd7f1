// Package monitor watches the system clipboard and records every new
// payload in the history store.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.klb.dev/stash/internal/clip"
	"go.klb.dev/stash/internal/desktop"
	"go.klb.dev/stash/internal/entry"
)

// DefaultInterval is the poll cadence.
const DefaultInterval = 500 * time.Millisecond

// Saver is the subset of the store the monitor writes to.
type Saver interface {
	SaveText(ctx context.Context, ct entry.ContentType, text, sourceApp string) (int64, error)
	SaveImage(ctx context.Context, data []byte, sourceApp string) (int64, error)
}

// Frontmost reports the focused application for source attribution.
type Frontmost interface {
	Frontmost() (desktop.App, bool)
}

// Capture describes a payload that was just persisted.
type Capture struct {
	ID          int64
	ContentType entry.ContentType
	SourceApp   string
	At          time.Time
}

// Monitor polls a clip.Backend. Polls never overlap: a tick that finds a
// poll already in progress returns immediately, and the poll in progress
// owns the change counter and the last ingested payload.
type Monitor struct {
	backend  clip.Backend
	store    Saver
	focus    Frontmost
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger

	polling atomic.Bool
	skip    atomic.Bool
	latest  atomic.Int64
	saves   sync.WaitGroup

	// guarded by polling
	lastChange int64
	lastText   *string
	lastImage  []byte

	obsMu     sync.Mutex
	observers map[int]func(Capture)
	nextObs   int
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the poll cadence.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New creates a monitor but does not start polling. focus may be nil.
func New(backend clip.Backend, store Saver, focus Frontmost, opts ...Option) *Monitor {
	if focus == nil {
		focus = desktop.Noop{}
	}
	m := &Monitor{
		backend:   backend,
		store:     store,
		focus:     focus,
		interval:  DefaultInterval,
		now:       time.Now,
		log:       slog.With("component", "monitor"),
		observers: make(map[int]func(Capture)),
	}
	for _, o := range opts {
		o(m)
	}
	m.lastChange = backend.ChangeCount()
	return m
}

// Run polls until ctx is cancelled, then waits for in-flight saves.
func (m *Monitor) Run(ctx context.Context) error {
	t := time.NewTicker(m.interval)
	defer t.Stop()

	m.log.Info("clipboard monitor started", "backend", m.backend.Name(), "interval", m.interval)
	for {
		select {
		case <-ctx.Done():
			m.saves.Wait()
			m.log.Info("clipboard monitor stopped")
			return nil
		case <-t.C:
			m.Poll(ctx)
		}
	}
}

// SkipNextChange suppresses ingestion of the next clipboard change. Set it
// before writing to the clipboard, never after.
func (m *Monitor) SkipNextChange() { m.skip.Store(true) }

// CancelSkip withdraws a pending SkipNextChange whose write never moved the
// change counter.
func (m *Monitor) CancelSkip() { m.skip.Store(false) }

// LatestEntry is the time of the most recent classified capture, zero if
// none happened yet.
func (m *Monitor) LatestEntry() time.Time {
	ms := m.latest.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Subscribe registers fn to be called after every successful save. fn runs
// on a worker goroutine and must not block. The returned func unsubscribes.
func (m *Monitor) Subscribe(fn func(Capture)) (cancel func()) {
	m.obsMu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.obsMu.Unlock()
	return func() {
		m.obsMu.Lock()
		delete(m.observers, id)
		m.obsMu.Unlock()
	}
}

// Wait blocks until every save dispatched so far has finished.
func (m *Monitor) Wait() { m.saves.Wait() }

// Poll performs one tick. It is a no-op while another Poll is running.
func (m *Monitor) Poll(ctx context.Context) {
	if !m.polling.CompareAndSwap(false, true) {
		return
	}
	defer m.polling.Store(false)

	cc := m.backend.ChangeCount()
	if cc == m.lastChange {
		return
	}
	// Record the generation before anything can bail out, so a change that
	// lands while this one is processed is seen by the next tick.
	m.lastChange = cc

	if m.skip.CompareAndSwap(true, false) {
		m.log.Debug("self-inflicted change skipped", "change_count", cc)
		return
	}

	var source string
	if app, ok := m.focus.Frontmost(); ok {
		source = app.Name
	}

	if text, ok := m.backend.ReadText(); ok && text != "" {
		if m.lastText != nil && *m.lastText == text {
			return
		}
		m.lastText, m.lastImage = &text, nil

		ct := Classify(text)
		m.dispatch(ctx, ct, source, func(ctx context.Context) (int64, error) {
			return m.store.SaveText(ctx, ct, text, source)
		})
	} else if img, ok := m.backend.ReadImage(); ok {
		if m.lastImage != nil && string(m.lastImage) == string(img) {
			return
		}
		m.lastText, m.lastImage = nil, img

		m.dispatch(ctx, entry.Image, source, func(ctx context.Context) (int64, error) {
			return m.store.SaveImage(ctx, img, source)
		})
	} else {
		return
	}
	m.latest.Store(m.now().UnixMilli())
}

func (m *Monitor) dispatch(ctx context.Context, ct entry.ContentType, source string, save func(context.Context) (int64, error)) {
	ctx = context.WithoutCancel(ctx)
	m.saves.Add(1)
	go func() {
		defer m.saves.Done()
		id, err := save(ctx)
		if err != nil {
			m.log.Error("failed to save clipboard entry", "type", ct, "err", err)
			return
		}
		m.log.Debug("clipboard entry saved", "id", id, "type", ct, "source", source)
		m.notify(Capture{ID: id, ContentType: ct, SourceApp: source, At: m.now()})
	}()
}

func (m *Monitor) notify(c Capture) {
	m.obsMu.Lock()
	fns := make([]func(Capture), 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.obsMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}
