// Package imagecache keeps decoded clipboard images for the lifetime of a
// panel session so scrolling back over a thumbnail does not refetch it.
//
// The cache is bounded by entry count and by total byte cost; least
// recently used images go first. Like the session engine, a Cache belongs
// to the coordination loop: Get and the bookkeeping behind it run there,
// fetch and decode run on workers.
package imagecache

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

const (
	DefaultMaxEntries = 100
	DefaultMaxCost    = 50 << 20
)

// Fetcher returns raw image bytes for an entry.
type Fetcher interface {
	FetchImage(ctx context.Context, id int64) ([]byte, error)
}

// Poster schedules a closure on the coordination loop.
type Poster interface {
	Post(fn func()) bool
}

// Image is a decoded clipboard image.
type Image struct {
	image.Image
	Format string
	Size   int
}

// Dimensions renders the pixel size as "WxH".
func (i *Image) Dimensions() string {
	b := i.Bounds()
	return fmt.Sprintf("%d×%d", b.Dx(), b.Dy())
}

// Cache maps entry ids to decoded images.
type Cache struct {
	items   *lru.Cache[int64, *Image]
	cost    int
	maxCost int

	loading map[int64]struct{}
	broken  map[int64]struct{}

	fetch  Fetcher
	loop   Poster
	onLoad func(id int64)
	ctx    context.Context
	log    *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxCost sets the total byte budget.
func WithMaxCost(n int) Option { return func(c *Cache) { c.maxCost = n } }

// WithOnLoad sets the callback run on the loop after a load finishes,
// whether the image landed or turned out to be unavailable.
func WithOnLoad(fn func(id int64)) Option { return func(c *Cache) { c.onLoad = fn } }

// New returns a cache holding at most maxEntries images.
func New(ctx context.Context, fetch Fetcher, loop Poster, maxEntries int, opts ...Option) (*Cache, error) {
	c := &Cache{
		maxCost: DefaultMaxCost,
		loading: make(map[int64]struct{}),
		broken:  make(map[int64]struct{}),
		fetch:   fetch,
		loop:    loop,
		ctx:     ctx,
		log:     slog.With("component", "imagecache"),
	}
	for _, o := range opts {
		o(c)
	}
	items, err := lru.NewWithEvict(maxEntries, func(_ int64, img *Image) {
		c.cost -= img.Size
	})
	if err != nil {
		return nil, fmt.Errorf("image cache: %w", err)
	}
	c.items = items
	return c, nil
}

// Get returns the cached image for id. On a miss it starts a background
// load, unless one is already running or the bytes are known not to decode,
// and reports false; the OnLoad callback fires when the image is ready.
func (c *Cache) Get(id int64) (*Image, bool) {
	if img, ok := c.items.Get(id); ok {
		return img, true
	}
	if _, ok := c.loading[id]; ok {
		return nil, false
	}
	if _, ok := c.broken[id]; ok {
		return nil, false
	}
	c.loading[id] = struct{}{}

	go func() {
		data, err := c.fetch.FetchImage(c.ctx, id)
		var img *Image
		if err == nil {
			img, err = Decode(data)
		}
		c.loop.Post(func() { c.finish(id, img, err) })
	}()
	return nil, false
}

func (c *Cache) finish(id int64, img *Image, err error) {
	delete(c.loading, id)
	if err != nil {
		if img == nil && isDecodeError(err) {
			c.broken[id] = struct{}{}
		}
		c.log.Debug("image unavailable", "id", id, "err", err)
	} else {
		c.add(id, img)
	}
	if c.onLoad != nil {
		c.onLoad(id)
	}
}

func (c *Cache) add(id int64, img *Image) {
	// Remove runs the evict callback, which settles the cost.
	c.items.Remove(id)
	c.items.Add(id, img)
	c.cost += img.Size
	// An image larger than the whole budget is still kept on its own.
	for c.cost > c.maxCost && c.items.Len() > 1 {
		c.items.RemoveOldest()
	}
}

// Data fetches raw bytes for id, bypassing the cache. Unlike the rest of
// the Cache it may be called off the loop.
func (c *Cache) Data(ctx context.Context, id int64) ([]byte, error) {
	return c.fetch.FetchImage(ctx, id)
}

// Len is the number of cached images.
func (c *Cache) Len() int { return c.items.Len() }

// Cost is the total byte size of cached images.
func (c *Cache) Cost() int { return c.cost }

// Loading reports whether a load for id is in flight.
func (c *Cache) Loading(id int64) bool {
	_, ok := c.loading[id]
	return ok
}

// Purge drops every cached image and forgets decode failures.
func (c *Cache) Purge() {
	c.items.Purge()
	c.cost = 0
	clear(c.broken)
}

type decodeError struct{ err error }

func (e decodeError) Error() string { return "decode image: " + e.err.Error() }
func (e decodeError) Unwrap() error { return e.err }

func isDecodeError(err error) bool {
	_, ok := err.(decodeError)
	return ok
}

// Decode parses PNG, TIFF, BMP, JPEG, or GIF bytes.
func Decode(data []byte) (*Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError{err}
	}
	return &Image{Image: img, Format: format, Size: len(data)}, nil
}
