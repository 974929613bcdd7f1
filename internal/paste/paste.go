// Package paste writes a history entry back to the clipboard and replays
// the paste into the application that had focus before the panel opened.
package paste

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"go.klb.dev/stash/internal/clip"
	"go.klb.dev/stash/internal/desktop"
	"go.klb.dev/stash/internal/entry"
	"go.klb.dev/stash/internal/imagecache"
)

// DefaultSettle is the pause between giving focus back and replaying the
// keystroke.
const DefaultSettle = 200 * time.Millisecond

// State is the orchestrator phase.
type State int

const (
	Idle State = iota
	Suppressing
	Writing
	Restoring
	Replaying
)

func (s State) String() string {
	switch s {
	case Suppressing:
		return "suppressing"
	case Writing:
		return "writing"
	case Restoring:
		return "restoring"
	case Replaying:
		return "replaying"
	default:
		return "idle"
	}
}

// Suppressor makes the clipboard monitor ignore the next change.
// CancelSkip withdraws the request when the write it covered did not land.
type Suppressor interface {
	SkipNextChange()
	CancelSkip()
}

// Store is what paste-back needs from the history store.
type Store interface {
	Touch(ctx context.Context, id int64) error
	FetchImage(ctx context.Context, id int64) ([]byte, error)
}

// Images supplies the raw bytes of an image entry.
type Images interface {
	Data(ctx context.Context, id int64) ([]byte, error)
}

// Request describes one paste-back.
type Request struct {
	Entry     entry.Entry
	PlainText bool
	// Target regains focus and receives the keystroke. A zero Target only
	// writes the clipboard.
	Target desktop.App
}

// Orchestrator runs paste-backs one at a time.
type Orchestrator struct {
	clip     clip.Backend
	suppress Suppressor
	store    Store
	images   Images
	desk     desktop.Desktop
	settle   time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	stateMu sync.Mutex
	state   State
	observe func(State)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSettle overrides the focus settle delay.
func WithSettle(d time.Duration) Option { return func(o *Orchestrator) { o.settle = d } }

// WithImages routes image fetches through the panel's image cache instead of
// the store.
func WithImages(im Images) Option { return func(o *Orchestrator) { o.images = im } }

// WithObserver is called on every state transition.
func WithObserver(fn func(State)) Option { return func(o *Orchestrator) { o.observe = fn } }

// New returns an idle orchestrator.
func New(cb clip.Backend, suppress Suppressor, store Store, desk desktop.Desktop, opts ...Option) *Orchestrator {
	if desk == nil {
		desk = desktop.Noop{}
	}
	o := &Orchestrator{
		clip:     cb,
		suppress: suppress,
		store:    store,
		desk:     desk,
		settle:   DefaultSettle,
		log:      slog.With("component", "paste"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current phase.
func (o *Orchestrator) State() State {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.state
}

func (o *Orchestrator) enter(s State) {
	o.stateMu.Lock()
	o.state = s
	o.stateMu.Unlock()
	o.log.Debug("paste state", "state", s)
	if o.observe != nil {
		o.observe(s)
	}
}

// Paste touches the entry, writes it to the clipboard with the monitor
// suppressed, restores focus to req.Target, and after the settle delay
// replays the paste keystroke when input synthesis is permitted. Only a
// failed clipboard write is returned; everything else degrades and logs.
func (o *Orchestrator) Paste(ctx context.Context, req Request) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.enter(Idle)

	e := req.Entry
	if e.IsEmpty() {
		return nil
	}
	if err := o.store.Touch(ctx, e.ID); err != nil {
		o.log.Warn("touch failed", "id", e.ID, "err", err)
	}
	var imageData []byte
	if e.IsImage() && !req.PlainText {
		data, err := o.imageData(ctx, e.ID)
		if err != nil {
			o.log.Warn("image fetch failed", "id", e.ID, "err", err)
		}
		imageData = data
	}

	o.enter(Suppressing)
	before := o.clip.ChangeCount()
	o.suppress.SkipNextChange()

	o.enter(Writing)
	err := o.write(e, imageData, req.PlainText)
	// Identical bytes or a no-op clear leave the counter where it was; the
	// flag must not swallow the user's next copy instead.
	if err != nil || o.clip.ChangeCount() == before {
		o.suppress.CancelSkip()
	}
	if err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}

	if req.Target.IsZero() {
		return nil
	}
	o.enter(Restoring)
	if err := o.desk.Activate(req.Target); err != nil {
		o.log.Warn("could not restore focus", "app", req.Target.Name, "err", err)
	}

	o.enter(Replaying)
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(o.settle):
	}
	if !o.desk.CanSynthesizeInput() {
		o.log.Warn("input permission not granted; clipboard populated for manual paste")
		return nil
	}
	if err := o.desk.SendPaste(); err != nil {
		o.log.Warn("paste keystroke failed", "err", err)
	}
	return nil
}

func (o *Orchestrator) imageData(ctx context.Context, id int64) ([]byte, error) {
	if o.images != nil {
		return o.images.Data(ctx, id)
	}
	return o.store.FetchImage(ctx, id)
}

// write replaces the clipboard. Plain-text mode writes only text. Normal
// mode writes the image when the entry is one and its bytes decode, else
// the text. With neither, the clipboard is left empty.
func (o *Orchestrator) write(e entry.Entry, imageData []byte, plain bool) error {
	text, hasText := e.Text()
	if !plain && e.IsImage() && len(imageData) > 0 {
		pngData, err := toPNG(imageData)
		if err == nil {
			return o.clip.WriteImage(pngData)
		}
		o.log.Warn("image payload does not decode", "id", e.ID, "err", err)
	}
	if hasText {
		return o.clip.WriteText(text)
	}
	return o.clip.Clear()
}

// toPNG normalises stored image bytes (often TIFF) to the PNG the
// clipboard backends accept.
func toPNG(data []byte) ([]byte, error) {
	img, err := imagecache.Decode(data)
	if err != nil {
		return nil, err
	}
	if img.Format == "png" {
		return data, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.Image); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
