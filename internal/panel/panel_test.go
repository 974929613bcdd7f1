package panel

import (
	"context"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/stash/internal/desktop"
	"go.klb.dev/stash/internal/entry"
	"go.klb.dev/stash/internal/history"
	"go.klb.dev/stash/internal/imagecache"
	"go.klb.dev/stash/internal/loop"
	"go.klb.dev/stash/internal/monitor"
	"go.klb.dev/stash/internal/paste"
)

type fakeStore struct {
	mu          sync.Mutex
	recent      []entry.Entry
	older       []entry.Entry
	recentCalls int
	beforeCalls int
}

func (f *fakeStore) FetchRecent(context.Context, int) ([]entry.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recentCalls++
	return f.recent, nil
}

func (f *fakeStore) FetchBefore(context.Context, int64, int) ([]entry.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beforeCalls++
	page := f.older
	f.older = nil
	return page, nil
}

func (f *fakeStore) Search(context.Context, string, int) ([]entry.Entry, error) { return nil, nil }
func (f *fakeStore) Delete(context.Context, int64) error                      { return nil }

func (f *fakeStore) calls() (recent, before int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recentCalls, f.beforeCalls
}

type fakePaster struct {
	mu   sync.Mutex
	reqs []paste.Request
}

func (p *fakePaster) Paste(_ context.Context, req paste.Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	return nil
}

func (p *fakePaster) requests() []paste.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]paste.Request(nil), p.reqs...)
}

type fakeFocus struct{ app desktop.App }

func (f *fakeFocus) Frontmost() (desktop.App, bool) { return f.app, !f.app.IsZero() }

type fakeImages struct {
	loaded map[int64]*imagecache.Image
	purges int
}

func (f *fakeImages) Purge() { f.purges++ }

func (f *fakeImages) Get(id int64) (*imagecache.Image, bool) {
	img, ok := f.loaded[id]
	return img, ok
}
func (f *fakeImages) Loading(id int64) bool { _, ok := f.loaded[id]; return !ok }

func entries(n int) []entry.Entry {
	out := make([]entry.Entry, n)
	for i := range out {
		s := fmt.Sprintf("item %d", i)
		out[i] = entry.Entry{ID: int64(n - i), ContentType: entry.PlainText, TextContent: &s, CreatedAt: int64(1000 - i), CopyCount: 1}
	}
	return out
}

type harness struct {
	t      *testing.T
	loop   *loop.Loop
	store  *fakeStore
	paster *fakePaster
	focus  *fakeFocus
	c      *Controller
}

func newHarness(t *testing.T, recent []entry.Entry, images Images) *harness {
	t.Helper()
	l := loop.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	h := &harness{
		t:      t,
		loop:   l,
		store:  &fakeStore{recent: recent},
		paster: &fakePaster{},
		focus:  &fakeFocus{app: desktop.App{ID: "com.apple.Notes", Name: "Notes"}},
	}
	s := history.New(h.store, l, history.WithDebounce(10*time.Millisecond))
	h.c = New(s, h.paster, h.focus, images)
	t.Cleanup(func() {
		h.c.Close()
		s.Close()
		cancel()
		<-done
	})
	return h
}

func (h *harness) do(fn func(c *Controller)) {
	h.t.Helper()
	require.NoError(h.t, h.loop.Do(context.Background(), func() { fn(h.c) }))
}

func (h *harness) snapshot() Snapshot {
	var s Snapshot
	h.do(func(c *Controller) { s = c.Snapshot() })
	return s
}

func (h *harness) show() {
	h.t.Helper()
	h.do(func(c *Controller) { c.Show() })
	require.Eventually(h.t, func() bool { return len(h.snapshot().Entries) == len(h.store.recent) },
		2*time.Second, 5*time.Millisecond)
}

func TestShowCapturesTarget(t *testing.T) {
	h := newHarness(t, entries(3), nil)
	h.show()

	s := h.snapshot()
	assert.True(t, s.Visible)
	assert.Equal(t, "Notes", s.TargetName)
	assert.Equal(t, entry.FilterAll, s.Filter)
	assert.Equal(t, 0, s.Selected)
}

func TestToggleCyclesFilterWhenVisible(t *testing.T) {
	h := newHarness(t, entries(3), nil)
	h.do(func(c *Controller) { c.Toggle() })
	assert.True(t, h.snapshot().Visible)

	h.do(func(c *Controller) {
		c.MoveDown()
		c.Toggle()
	})
	s := h.snapshot()
	assert.True(t, s.Visible)
	assert.Equal(t, entry.FilterPlainText, s.Filter)
	assert.Equal(t, 0, s.Selected)
}

func TestShowResetsSearchAndFilter(t *testing.T) {
	h := newHarness(t, entries(3), nil)
	h.show()
	h.do(func(c *Controller) {
		c.Session().SetTypeFilter(entry.FilterImage)
		c.Session().SetSearchText("item")
		c.Hide()
	})
	h.show()
	s := h.snapshot()
	assert.Equal(t, entry.FilterAll, s.Filter)
	assert.Empty(t, s.SearchText)
}

func TestSelectAndPaste(t *testing.T) {
	h := newHarness(t, entries(3), nil)
	h.show()

	h.do(func(c *Controller) {
		c.MoveDown()
		c.SelectAndPaste(true)
	})
	h.c.Wait()

	assert.False(t, h.snapshot().Visible)
	reqs := h.paster.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, int64(2), reqs[0].Entry.ID)
	assert.True(t, reqs[0].PlainText)
	assert.Equal(t, "Notes", reqs[0].Target.Name)
}

func TestPasteAtUsesOriginalFormat(t *testing.T) {
	h := newHarness(t, entries(3), nil)
	h.show()

	h.do(func(c *Controller) { c.PasteAt(2) })
	h.do(func(c *Controller) { c.PasteAt(9) })
	h.c.Wait()

	reqs := h.paster.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, int64(1), reqs[0].Entry.ID)
	assert.False(t, reqs[0].PlainText)
}

func TestSelectAndPasteEmptyIsNoop(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.do(func(c *Controller) {
		c.Show()
		c.SelectAndPaste(false)
	})
	h.c.Wait()
	assert.Empty(t, h.paster.requests())
	assert.True(t, h.snapshot().Visible)
}

func TestLoadMoreNearEnd(t *testing.T) {
	h := newHarness(t, entries(8), nil)
	h.show()

	h.do(func(c *Controller) { c.MoveDown() })
	_, before := h.store.calls()
	assert.Zero(t, before)

	h.do(func(c *Controller) {
		c.MoveDown()
		c.MoveDown()
	})
	require.Eventually(t, func() bool {
		_, before := h.store.calls()
		return before == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCaptureReloadsOnlyWhenVisible(t *testing.T) {
	h := newHarness(t, entries(2), nil)
	h.do(func(c *Controller) { c.OnCapture(monitor.Capture{ID: 9}) })
	recent, _ := h.store.calls()
	assert.Zero(t, recent)

	h.show()
	h.do(func(c *Controller) { c.OnCapture(monitor.Capture{ID: 9}) })
	require.Eventually(t, func() bool {
		recent, _ := h.store.calls()
		return recent == 2
	}, time.Second, 5*time.Millisecond)
}

func TestSnapshotPreview(t *testing.T) {
	img := &imagecache.Image{Image: image.NewRGBA(image.Rect(0, 0, 4, 3)), Format: "png", Size: 48}
	images := &fakeImages{loaded: map[int64]*imagecache.Image{}}
	recent := []entry.Entry{{ID: 7, ContentType: entry.Image, CreatedAt: 10, CopyCount: 1}}
	h := newHarness(t, recent, images)
	h.show()

	s := h.snapshot()
	assert.Nil(t, s.Preview)
	assert.True(t, s.PreviewLoading)

	images.loaded[7] = img
	s = h.snapshot()
	assert.Same(t, img, s.Preview)
	assert.False(t, s.PreviewLoading)
}

func TestSubscribeReceivesVisibility(t *testing.T) {
	h := newHarness(t, entries(1), nil)
	var seen, got []bool
	h.do(func(c *Controller) {
		c.Subscribe(func(s Snapshot) { seen = append(seen, s.Visible) })
		c.Show()
		c.Hide()
		got = append(got, seen...)
	})
	require.NotEmpty(t, got)
	assert.True(t, got[0])
	assert.False(t, got[len(got)-1])
}

func TestShowPurgesImages(t *testing.T) {
	images := &fakeImages{loaded: map[int64]*imagecache.Image{}}
	h := newHarness(t, entries(1), images)
	h.show()
	h.do(func(c *Controller) { c.Hide() })
	h.show()
	h.do(func(*Controller) { assert.Equal(t, 2, images.purges) })
}

func TestEmptyFilterPagesBack(t *testing.T) {
	h := newHarness(t, entries(3), nil)
	h.store.older = []entry.Entry{{ID: 99, ContentType: entry.Image, CreatedAt: 1, CopyCount: 1}}
	h.show()

	h.do(func(c *Controller) { c.Session().SetTypeFilter(entry.FilterImage) })
	require.Eventually(t, func() bool { return len(h.snapshot().Entries) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(99), h.snapshot().Entries[0].ID)

	// A filter that still matches nothing keeps paging until the store runs dry.
	h.do(func(c *Controller) { c.Session().SetTypeFilter(entry.FilterFilePath) })
	require.Eventually(t, func() bool { return !h.snapshot().HasMore }, time.Second, 5*time.Millisecond)
	_, before := h.store.calls()
	assert.Equal(t, 2, before)
}
