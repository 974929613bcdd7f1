package hub

import (
	"context"
	"log/slog"
)

// LogEvent logs a history event at INFO (kind, type, source) and, at DEBUG,
// the entry id and timestamp.
func LogEvent(msg string, ev Event) {
	slog.Info(msg, "kind", ev.Kind, "type", ev.ContentType, "source", ev.Source)

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	slog.Debug("history event", "kind", ev.Kind, "id", ev.ID, "at", ev.At)
}
