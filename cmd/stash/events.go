package main

import (
	"context"

	"go.klb.dev/stash/internal/hub"
	"go.klb.dev/stash/internal/monitor"
	"go.klb.dev/stash/internal/store"
)

// publishingStore is the store as the panel and paste-back see it: deletes
// and touches they make are announced to watchers.
type publishingStore struct {
	*store.Store
	hub    *hub.Hub
	source string
}

func (s *publishingStore) Delete(ctx context.Context, id int64) error {
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(hub.Event{Kind: hub.Deleted, ID: id})
	return nil
}

func (s *publishingStore) Touch(ctx context.Context, id int64) error {
	if err := s.Store.Touch(ctx, id); err != nil {
		return err
	}
	s.publish(hub.Event{Kind: hub.Touched, ID: id})
	return nil
}

func (s *publishingStore) publish(ev hub.Event) {
	ev.Source = s.source
	hub.LogEvent("history changed", ev)
	s.hub.Publish(ev, "")
}

// captureEvent converts a monitor capture for the hub.
func captureEvent(c monitor.Capture) hub.Event {
	return hub.Event{
		Kind:        hub.Captured,
		ID:          c.ID,
		ContentType: c.ContentType,
		Source:      c.SourceApp,
		At:          c.At.UnixMilli(),
	}
}
