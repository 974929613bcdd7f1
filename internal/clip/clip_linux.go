//go:build linux

package clip

import (
	"bytes"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.design/x/clipboard"
)

const linuxPollInterval = 250 * time.Millisecond

// X11 and Wayland expose no generation counter, so the backend polls the
// selection and bumps its own whenever the bytes differ.
type linuxBackend struct {
	count atomic.Int64
	done  chan struct{}
	once  sync.Once

	mu       sync.Mutex
	lastText []byte
	lastImg  []byte
}

// New returns the Linux clipboard backend, or an in-memory backend if the
// display environment is unavailable (e.g. a headless server without X11
// or Wayland). clipboard.Init is called here rather than in init() so that
// CLI sub-commands don't trigger the warning.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return NewMemory()
	}
	b := &linuxBackend{done: make(chan struct{})}
	b.lastText = clipboard.Read(clipboard.FmtText)
	b.lastImg = clipboard.Read(clipboard.FmtImage)
	go b.poll()
	return b
}

func (b *linuxBackend) Name() string { return "Linux clipboard (poll)" }

func (b *linuxBackend) poll() {
	t := time.NewTicker(linuxPollInterval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			b.sample()
		}
	}
}

func (b *linuxBackend) sample() {
	text := clipboard.Read(clipboard.FmtText)
	img := clipboard.Read(clipboard.FmtImage)
	b.mu.Lock()
	defer b.mu.Unlock()
	if !bytes.Equal(text, b.lastText) || !bytes.Equal(img, b.lastImg) {
		b.lastText = text
		b.lastImg = img
		b.count.Add(1)
	}
}

func (b *linuxBackend) ChangeCount() int64 {
	b.sample()
	return b.count.Load()
}

func (b *linuxBackend) ReadText() (string, bool) {
	text := clipboard.Read(clipboard.FmtText)
	return string(text), text != nil
}

func (b *linuxBackend) ReadImage() ([]byte, bool) {
	img := clipboard.Read(clipboard.FmtImage)
	return img, len(img) > 0
}

// Clear is a no-op: taking selection ownership on the next write replaces
// every format at once.
func (b *linuxBackend) Clear() error { return nil }

func (b *linuxBackend) WriteText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

func (b *linuxBackend) WriteImage(png []byte) error {
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}

func (b *linuxBackend) Close() { b.once.Do(func() { close(b.done) }) }
