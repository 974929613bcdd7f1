// Package panel drives the history panel independently of how it is drawn:
// showing and hiding it, remembering which application to paste back into,
// and turning a selection into a paste-back.
//
// A Controller lives on the coordination loop, like the Session it wraps.
// Presenters receive Snapshots through Subscribe and feed key presses back
// with Post.
package panel

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"go.klb.dev/stash/internal/desktop"
	"go.klb.dev/stash/internal/entry"
	"go.klb.dev/stash/internal/history"
	"go.klb.dev/stash/internal/imagecache"
	"go.klb.dev/stash/internal/monitor"
	"go.klb.dev/stash/internal/paste"
)

// LoadMoreThreshold is how close to the end of the list the cursor must be
// before the next page is requested.
const LoadMoreThreshold = 5

// Paster performs a paste-back.
type Paster interface {
	Paste(ctx context.Context, req paste.Request) error
}

// Focus reports the frontmost application.
type Focus interface {
	Frontmost() (desktop.App, bool)
}

// Images resolves decoded previews. It must be used on the loop.
type Images interface {
	Get(id int64) (*imagecache.Image, bool)
	Loading(id int64) bool
	Purge()
}

// Snapshot is everything a presenter needs to draw one frame.
type Snapshot struct {
	history.View
	Visible bool
	// TargetName is the application a paste-back will land in, or empty.
	TargetName string
	// Preview is the decoded selected image, when it is one and has loaded.
	Preview        *imagecache.Image
	PreviewLoading bool
}

// Controller owns the panel's visibility and restore target.
type Controller struct {
	session *history.Session
	paster  Paster
	focus   Focus
	images  Images
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	pastes sync.WaitGroup

	visible   bool
	target    desktop.App
	observers []func(Snapshot)

	// baseline size and filter of the last page requested to fill an empty
	// filtered view
	filledAt     int
	filledFilter entry.TypeFilter
}

// New wires a controller to session. images may be nil, in which case no
// previews are resolved.
func New(session *history.Session, paster Paster, focus Focus, images Images) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		session: session,
		paster:  paster,
		focus:   focus,
		images:  images,
		log:     slog.With("component", "panel"),
		ctx:     ctx,
		cancel:  cancel,
	}
	session.Subscribe(func(history.View) {
		c.publish()
		c.fillEmptyFilter()
	})
	return c
}

// Close cancels pending paste-backs and waits for them.
func (c *Controller) Close() {
	c.cancel()
	c.pastes.Wait()
}

// Wait blocks until every started paste-back has finished.
func (c *Controller) Wait() { c.pastes.Wait() }

// Subscribe registers fn for every new Snapshot. fn runs on the loop.
func (c *Controller) Subscribe(fn func(Snapshot)) {
	c.observers = append(c.observers, fn)
}

// Session is the engine behind the panel.
func (c *Controller) Session() *history.Session { return c.session }

// Visible reports whether the panel is shown.
func (c *Controller) Visible() bool { return c.visible }

// Target is the application captured when the panel was last shown.
func (c *Controller) Target() desktop.App { return c.target }

// Snapshot builds the current frame.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		View:       c.session.View(),
		Visible:    c.visible,
		TargetName: c.target.Name,
	}
	if e, ok := s.SelectedEntry(); ok && e.IsImage() && c.images != nil {
		s.Preview, _ = c.images.Get(e.ID)
		s.PreviewLoading = s.Preview == nil && c.images.Loading(e.ID)
	}
	return s
}

// Toggle shows a hidden panel. On a visible one it cycles the type filter,
// which also moves the cursor to the top.
func (c *Controller) Toggle() {
	if !c.visible {
		c.Show()
		return
	}
	c.session.CycleTypeFilter()
}

// Show remembers the frontmost application as the paste-back target,
// resets search and filter, and reloads the newest entries.
func (c *Controller) Show() {
	c.target = desktop.App{}
	if c.focus != nil {
		if app, ok := c.focus.Frontmost(); ok {
			c.target = app
		}
	}
	c.visible = true
	c.log.Debug("panel shown", "target", c.target.Name)
	if c.images != nil {
		c.images.Purge()
	}
	c.filledAt = 0
	c.session.Reset()
	c.session.LoadEntries()
}

// Hide closes the panel. The restore target is kept for a paste-back that
// is about to run.
func (c *Controller) Hide() {
	if !c.visible {
		return
	}
	c.visible = false
	c.publish()
}

// MoveUp moves the cursor up.
func (c *Controller) MoveUp() { c.session.MoveUp() }

// MoveDown moves the cursor down and requests the next page once the
// cursor is close to the end.
func (c *Controller) MoveDown() {
	c.session.MoveDown()
	c.maybeLoadMore()
}

func (c *Controller) maybeLoadMore() {
	sel := c.session.Selection()
	if sel.Count() > 0 && sel.Index() >= sel.Count()-LoadMoreThreshold {
		c.session.LoadMore()
	}
}

// fillEmptyFilter pages further back while a type filter hides every loaded
// entry, one page per baseline size so a failing fetch is not retried in a
// loop.
func (c *Controller) fillEmptyFilter() {
	s := c.session
	if !c.visible || s.Filter() == entry.FilterAll || strings.TrimSpace(s.SearchText()) != "" {
		return
	}
	if s.Selection().Count() > 0 || !s.HasMore() || s.LoadingMore() || s.Loaded() == 0 {
		return
	}
	if s.Loaded() == c.filledAt && s.Filter() == c.filledFilter {
		return
	}
	c.filledAt, c.filledFilter = s.Loaded(), s.Filter()
	s.LoadMore()
}

// SelectAndPaste pastes the entry under the cursor. plain forces the text
// representation.
func (c *Controller) SelectAndPaste(plain bool) {
	e, ok := c.session.Selected()
	if !ok {
		return
	}
	c.paste(e, plain)
}

// PasteAt pastes row i in its original format, as a click would.
func (c *Controller) PasteAt(i int) {
	c.session.Select(i)
	e, ok := c.session.Selected()
	if !ok || c.session.Selection().Index() != i {
		return
	}
	c.paste(e, false)
}

func (c *Controller) paste(e entry.Entry, plain bool) {
	req := paste.Request{Entry: e, PlainText: plain, Target: c.target}
	c.pastes.Add(1)
	c.Hide()
	go func() {
		defer c.pastes.Done()
		if err := c.paster.Paste(c.ctx, req); err != nil {
			c.log.Error("paste-back failed", "id", e.ID, "err", err)
		}
	}()
}

// Delete removes the entry under the cursor.
func (c *Controller) Delete() {
	if e, ok := c.session.Selected(); ok {
		c.session.DeleteEntry(e.ID)
	}
}

// OnCapture reloads the list when a new entry lands while the panel is
// open.
func (c *Controller) OnCapture(monitor.Capture) {
	if c.visible {
		c.filledAt = 0
		c.session.LoadEntries()
	}
}

// Refresh republishes, e.g. after an image preview finished loading.
func (c *Controller) Refresh() { c.publish() }

func (c *Controller) publish() {
	if len(c.observers) == 0 {
		return
	}
	s := c.Snapshot()
	for _, fn := range c.observers {
		fn(s)
	}
}
