package rpc

import (
	"go.klb.dev/stash/internal/entry"
	"go.klb.dev/stash/internal/hub"
)

// RecentRequest pages through history. Before is a created_at cursor in
// Unix milliseconds; zero means the newest page.
type RecentRequest struct {
	Limit  int   `json:"limit,omitempty"`
	Before int64 `json:"before,omitempty"`
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type EntriesResponse struct {
	Entries []entry.Entry `json:"entries"`
}

type IDRequest struct {
	ID int64 `json:"id"`
}

type TextResponse struct {
	Text string `json:"text"`
}

// ImageResponse carries raw image bytes (base64 in JSON).
type ImageResponse struct {
	Data []byte `json:"data"`
}

// PasteRequest puts an entry back on the clipboard of the daemon's host.
type PasteRequest struct {
	ID    int64 `json:"id"`
	Plain bool  `json:"plain,omitempty"`
}

// CopyRequest writes text to the clipboard; the monitor then records it.
type CopyRequest struct {
	Text string `json:"text"`
}

type Empty struct{}

// SuppressRequest arms the monitor's one-shot skip, or withdraws it when
// Cancel is set.
type SuppressRequest struct {
	Cancel bool `json:"cancel,omitempty"`
}

type ToggleResponse struct {
	Visible bool `json:"visible"`
}

// WatchEvent is one streamed history change.
type WatchEvent = hub.Event

type WatchRequest struct {
	Accepts []entry.ContentType `json:"accepts,omitempty"`
}

type StatusResponse struct {
	Version        string         `json:"version"`
	Entries        int64          `json:"entries"`
	LatestEntry    int64          `json:"latest_entry,omitempty"`
	Hotkey         string         `json:"hotkey,omitempty"`
	PanelVisible   bool           `json:"panel_visible"`
	InputPermitted bool           `json:"input_permitted"`
	Fingerprint    string         `json:"fingerprint,omitempty"`
	Watchers       []hub.PeerInfo `json:"watchers"`
}
