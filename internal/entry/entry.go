// Package entry defines the clipboard history record shared by the store,
// the session engine, and the RPC surface.
package entry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// ContentType classifies a captured clipboard payload.
type ContentType string

const (
	PlainText ContentType = "PlainText"
	FilePath  ContentType = "FilePath"
	Image     ContentType = "Image"
	RichText  ContentType = "RichText"
)

// ParseContentType maps a stored tag to a ContentType. Unknown tags are
// treated as PlainText.
func ParseContentType(s string) ContentType {
	switch ContentType(s) {
	case FilePath, Image, RichText:
		return ContentType(s)
	default:
		return PlainText
	}
}

// DisplayName is the human-readable label for the type.
func (t ContentType) DisplayName() string {
	switch t {
	case Image:
		return "Image"
	case FilePath:
		return "File Path"
	case RichText:
		return "Rich Text"
	default:
		return "Plain Text"
	}
}

// NoID is the sentinel id for "no entry". Stores never assign it.
const NoID int64 = -1

// Entry is one recorded clipboard payload. Timestamps are Unix milliseconds.
// Image bytes are never carried here; fetch them by id.
type Entry struct {
	ID            int64       `json:"id"`
	ContentType   ContentType `json:"content_type"`
	TextContent   *string     `json:"text_content"`
	SourceApp     string      `json:"source_app,omitempty"`
	CreatedAt     int64       `json:"created_at"`
	FirstCopiedAt int64       `json:"first_copied_at"`
	CopyCount     int64       `json:"copy_count"`
}

// Empty is the "no entry" value.
var Empty = Entry{ID: NoID, CopyCount: 1}

// IsEmpty reports whether e is the sentinel.
func (e Entry) IsEmpty() bool { return e.ID == NoID }

// IsImage reports whether e is an image entry.
func (e Entry) IsImage() bool { return e.ContentType == Image }

// Text returns the text content and whether it is present.
func (e Entry) Text() (string, bool) {
	if e.TextContent == nil {
		return "", false
	}
	return *e.TextContent, true
}

// Created returns CreatedAt as a time.Time.
func (e Entry) Created() time.Time { return time.UnixMilli(e.CreatedAt) }

// FirstCopied returns FirstCopiedAt as a time.Time.
func (e Entry) FirstCopied() time.Time { return time.UnixMilli(e.FirstCopiedAt) }

const previewRunes = 200

// Preview returns the first 200 runes of the text, "[Image]" for images, or "".
func (e Entry) Preview() string {
	if text, ok := e.Text(); ok {
		if utf8.RuneCountInString(text) <= previewRunes {
			return text
		}
		return string([]rune(text)[:previewRunes])
	}
	if e.IsImage() {
		return "[Image]"
	}
	return ""
}

// CharCount is the number of runes in the text content.
func (e Entry) CharCount() int {
	text, _ := e.Text()
	return utf8.RuneCountInString(text)
}

// WordCount counts whitespace/punctuation separated words.
func (e Entry) WordCount() int {
	text, _ := e.Text()
	return len(strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'' && r != '_')
	}))
}

// LineCount is the number of lines in the text, 0 when there is no text.
func (e Entry) LineCount() int {
	text, ok := e.Text()
	if !ok {
		return 0
	}
	return strings.Count(strings.ReplaceAll(text, "\r\n", "\n"), "\n") + 1
}

// RelativeTime renders CreatedAt relative to now ("12s ago", "5m ago").
func (e Entry) RelativeTime(now time.Time) string {
	age := now.Sub(e.Created())
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(max(age, 0).Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

// SameDay reports whether a and b fall on the same local calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}

// DateHeader labels the calendar day of t relative to now.
func DateHeader(t, now time.Time) string {
	if SameDay(t, now) {
		return "Today"
	}
	if SameDay(t, now.AddDate(0, 0, -1)) {
		return "Yesterday"
	}
	return t.Local().Format("Jan 2, 2006")
}

// Response is the {ok, error} envelope used for list-shaped results on the
// wire. Exactly one of OK or Error is set.
type Response[T any] struct {
	OK    *T     `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
}

// OKResponse wraps v.
func OKResponse[T any](v T) Response[T] { return Response[T]{OK: &v} }

// ErrorResponse wraps err.
func ErrorResponse[T any](err error) Response[T] { return Response[T]{Error: err.Error()} }

// DecodeEntries parses an envelope carrying a list of entries.
func DecodeEntries(b []byte) ([]Entry, error) {
	var r Response[[]Entry]
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("entries decode: %w", err)
	}
	if r.Error != "" {
		return nil, fmt.Errorf("%s", r.Error)
	}
	if r.OK == nil {
		return nil, nil
	}
	return *r.OK, nil
}
