// Package loop is the single coordination thread that owns engine state.
//
// Workers never touch session, selection, or cache bookkeeping directly;
// they Post a closure and the loop goroutine runs it. Posting never blocks,
// so a closure running on the loop may itself Post.
package loop

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by Do once Run has returned.
var ErrStopped = errors.New("loop stopped")

// Loop is a FIFO of closures drained by Run.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
}

// New returns an idle loop. Nothing runs until Run is called.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post schedules fn on the loop. It reports false, dropping fn, once the
// loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to finish. It must not be called
// from the loop goroutine.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() { fn(); close(done) }) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is cancelled. Closures still queued at
// that point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
	}()
	for {
		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			if ctx.Err() != nil {
				return ctx.Err()
			}
			fn()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}
