package imagecache

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"go.klb.dev/stash/internal/loop"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeFetcher struct {
	mu    sync.Mutex
	data  map[int64][]byte
	calls map[int64]int
	gate  chan struct{}
}

func (f *fakeFetcher) FetchImage(_ context.Context, id int64) ([]byte, error) {
	f.mu.Lock()
	f.calls[id]++
	gate := f.gate
	d, ok := f.data[id]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if !ok {
		return nil, errors.New("not found")
	}
	return d, nil
}

func (f *fakeFetcher) count(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

type harness struct {
	t      *testing.T
	loop   *loop.Loop
	cache  *Cache
	mu     sync.Mutex
	loaded []int64
}

func newHarness(t *testing.T, f Fetcher, max int, opts ...Option) *harness {
	t.Helper()
	h := &harness{t: t, loop: loop.New()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	opts = append(opts, WithOnLoad(func(id int64) {
		h.mu.Lock()
		h.loaded = append(h.loaded, id)
		h.mu.Unlock()
	}))
	c, err := New(ctx, f, h.loop, max, opts...)
	require.NoError(t, err)
	h.cache = c
	return h
}

func (h *harness) do(fn func(c *Cache)) {
	h.t.Helper()
	require.NoError(h.t, h.loop.Do(context.Background(), func() { fn(h.cache) }))
}

func (h *harness) get(id int64) (img *Image, ok bool) {
	h.do(func(c *Cache) { img, ok = c.Get(id) })
	return img, ok
}

func (h *harness) waitLoaded(n int) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.loaded) >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestGetLoadsAsync(t *testing.T) {
	f := &fakeFetcher{data: map[int64][]byte{1: pngBytes(t, 4, 3)}, calls: map[int64]int{}}
	h := newHarness(t, f, DefaultMaxEntries)

	_, ok := h.get(1)
	assert.False(t, ok, "first call is a miss")
	h.waitLoaded(1)

	img, ok := h.get(1)
	require.True(t, ok)
	assert.Equal(t, "png", img.Format)
	assert.Equal(t, "4×3", img.Dimensions())
	assert.Equal(t, 1, f.count(1))

	h.do(func(c *Cache) {
		assert.Equal(t, 1, c.Len())
		assert.Equal(t, len(f.data[1]), c.Cost())
	})
}

func TestSingleFlight(t *testing.T) {
	f := &fakeFetcher{data: map[int64][]byte{7: pngBytes(t, 1, 1)}, calls: map[int64]int{}, gate: make(chan struct{})}
	h := newHarness(t, f, DefaultMaxEntries)

	h.do(func(c *Cache) {
		for range 5 {
			_, ok := c.Get(7)
			assert.False(t, ok)
		}
		assert.True(t, c.Loading(7))
	})
	close(f.gate)
	h.waitLoaded(1)
	assert.Equal(t, 1, f.count(7))
}

func TestDecodeFailureNotRetried(t *testing.T) {
	f := &fakeFetcher{data: map[int64][]byte{3: []byte("not an image")}, calls: map[int64]int{}}
	h := newHarness(t, f, DefaultMaxEntries)

	h.get(3)
	require.Eventually(t, func() bool {
		var loading bool
		h.do(func(c *Cache) { loading = c.Loading(3) })
		return f.count(3) == 1 && !loading
	}, time.Second, 5*time.Millisecond)

	_, ok := h.get(3)
	assert.False(t, ok)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.count(3))
}

func TestFetchFailureRetried(t *testing.T) {
	f := &fakeFetcher{data: map[int64][]byte{}, calls: map[int64]int{}}
	h := newHarness(t, f, DefaultMaxEntries)

	h.get(9)
	require.Eventually(t, func() bool {
		var loading bool
		h.do(func(c *Cache) { loading = c.Loading(9) })
		return f.count(9) == 1 && !loading
	}, time.Second, 5*time.Millisecond)

	h.get(9)
	require.Eventually(t, func() bool { return f.count(9) == 2 }, time.Second, 5*time.Millisecond)
}

func TestCountEviction(t *testing.T) {
	f := &fakeFetcher{data: map[int64][]byte{}, calls: map[int64]int{}}
	for id := range int64(3) {
		f.data[id] = pngBytes(t, 2, 2)
	}
	h := newHarness(t, f, 2)

	for id := range int64(3) {
		h.get(id)
		h.waitLoaded(int(id) + 1)
	}
	h.do(func(c *Cache) {
		assert.Equal(t, 2, c.Len())
		assert.Equal(t, 2*len(f.data[0]), c.Cost())
	})
	_, ok := h.get(0)
	assert.False(t, ok, "oldest was evicted")
}

func TestCostEviction(t *testing.T) {
	small := pngBytes(t, 2, 2)
	f := &fakeFetcher{data: map[int64][]byte{1: small, 2: small, 3: small}, calls: map[int64]int{}}
	h := newHarness(t, f, DefaultMaxEntries, WithMaxCost(2*len(small)))

	for i, id := range []int64{1, 2} {
		h.get(id)
		h.waitLoaded(i + 1)
	}
	// Touch 1 so 2 becomes least recently used.
	_, ok := h.get(1)
	require.True(t, ok)

	h.get(3)
	h.waitLoaded(3)
	h.do(func(c *Cache) {
		assert.Equal(t, 2, c.Len())
		assert.LessOrEqual(t, c.Cost(), 2*len(small))
		_, ok := c.items.Peek(2)
		assert.False(t, ok)
	})
}

func TestDataBypassesCache(t *testing.T) {
	raw := pngBytes(t, 1, 1)
	f := &fakeFetcher{data: map[int64][]byte{5: raw}, calls: map[int64]int{}}
	h := newHarness(t, f, DefaultMaxEntries)

	for range 2 {
		got, err := h.cache.Data(context.Background(), 5)
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	}
	assert.Equal(t, 2, f.count(5))
	h.do(func(c *Cache) { assert.Zero(t, c.Len()) })
}

func TestDecodeTIFF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 5)), nil))
	img, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "tiff", img.Format)
	assert.Equal(t, "3×5", img.Dimensions())

	_, err = Decode([]byte{0, 1, 2})
	assert.Error(t, err)
}

func TestOnLoadFiresForUnavailableImage(t *testing.T) {
	f := &fakeFetcher{data: map[int64][]byte{3: []byte("not an image")}, calls: map[int64]int{}}
	h := newHarness(t, f, DefaultMaxEntries)

	h.get(3)
	h.get(4)
	h.waitLoaded(2)
	h.do(func(c *Cache) {
		assert.False(t, c.Loading(3))
		assert.False(t, c.Loading(4))
		assert.Zero(t, c.Len())
	})
}

func TestPurgeForgetsBrokenImages(t *testing.T) {
	raw := pngBytes(t, 2, 2)
	f := &fakeFetcher{data: map[int64][]byte{1: raw, 2: []byte("garbage")}, calls: map[int64]int{}}
	h := newHarness(t, f, DefaultMaxEntries)

	h.get(1)
	h.get(2)
	h.waitLoaded(2)
	h.do(func(c *Cache) {
		assert.Equal(t, 1, c.Len())
		c.Purge()
		assert.Zero(t, c.Len())
		assert.Zero(t, c.Cost())
	})

	h.get(2)
	require.Eventually(t, func() bool { return f.count(2) == 2 }, time.Second, 5*time.Millisecond)
}
