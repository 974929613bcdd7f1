package tui

import (
	"fmt"
	"image"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/stash/internal/entry"
	"go.klb.dev/stash/internal/history"
	"go.klb.dev/stash/internal/imagecache"
	"go.klb.dev/stash/internal/panel"
)

type recorder struct{ calls []string }

func (r *recorder) Show()              { r.calls = append(r.calls, "show") }
func (r *recorder) Hide()              { r.calls = append(r.calls, "hide") }
func (r *recorder) MoveUp()            { r.calls = append(r.calls, "up") }
func (r *recorder) MoveDown()          { r.calls = append(r.calls, "down") }
func (r *recorder) PasteAt(i int)      { r.calls = append(r.calls, fmt.Sprintf("paste-at %d", i)) }
func (r *recorder) Paste(plain bool)   { r.calls = append(r.calls, fmt.Sprintf("paste plain=%v", plain)) }
func (r *recorder) CycleFilter()       { r.calls = append(r.calls, "filter") }
func (r *recorder) Delete()            { r.calls = append(r.calls, "delete") }
func (r *recorder) Search(text string) { r.calls = append(r.calls, "search "+text) }

var now = time.Date(2026, 5, 2, 15, 0, 0, 0, time.Local)

func textEntry(id int64, at time.Time, s string) entry.Entry {
	return entry.Entry{ID: id, ContentType: entry.PlainText, TextContent: &s, SourceApp: "Notes",
		CreatedAt: at.UnixMilli(), FirstCopiedAt: at.UnixMilli(), CopyCount: 1}
}

func snapshot(visible bool, entries ...entry.Entry) SnapshotMsg {
	return SnapshotMsg(panel.Snapshot{
		View:       history.View{Entries: entries},
		Visible:    visible,
		TargetName: "Notes",
	})
}

func update(t *testing.T, m tea.Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func newModel(t *testing.T, opts Options) (Model, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts.Now = func() time.Time { return now }
	m := New(rec, opts)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 20})
	return m, rec
}

func TestKeysDriveThePanel(t *testing.T) {
	m, rec := newModel(t, Options{})
	m, _ = update(t, m, snapshot(true, textEntry(1, now, "hello")))

	for _, k := range []tea.KeyMsg{
		{Type: tea.KeyDown},
		{Type: tea.KeyUp},
		{Type: tea.KeyTab},
		{Type: tea.KeyCtrlD},
		{Type: tea.KeyEnter, Alt: true},
		{Type: tea.KeyEnter},
		{Type: tea.KeyEsc},
	} {
		m, _ = update(t, m, k)
	}
	assert.Equal(t, []string{"down", "up", "filter", "delete", "paste plain=true", "paste plain=false", "hide"}, rec.calls)
}

func TestTypingSearches(t *testing.T) {
	m, rec := newModel(t, Options{})
	m, _ = update(t, m, snapshot(true))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h")})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("i")})
	_, _ = update(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, []string{"search h", "search hi", "search h"}, rec.calls)
}

func TestHiddenOnlyOpens(t *testing.T) {
	m, rec := newModel(t, Options{HotkeyLabel: "⌃⌥V"})
	m, _ = update(t, m, snapshot(false))
	assert.Contains(t, m.View(), "⌃⌥V")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	_, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"show"}, rec.calls)
}

func TestStandaloneQuitsOnHide(t *testing.T) {
	m, _ := newModel(t, Options{Standalone: true})
	m, cmd := update(t, m, snapshot(false))
	assert.Nil(t, cmd, "not shown yet")

	m, _ = update(t, m, snapshot(true))
	_, cmd = update(t, m, snapshot(false))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestReopenClearsInput(t *testing.T) {
	m, _ := newModel(t, Options{})
	m, _ = update(t, m, snapshot(true))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("old")})
	m, _ = update(t, m, snapshot(false))
	m, _ = update(t, m, snapshot(true))
	assert.Empty(t, m.input.Value())
}

func TestViewLayout(t *testing.T) {
	m, _ := newModel(t, Options{})
	entries := []entry.Entry{
		textEntry(3, now.Add(-2*time.Minute), "hello world"),
		textEntry(2, now.Add(-time.Hour), "second line"),
		textEntry(1, now.AddDate(0, 0, -1), "older"),
	}
	m, _ = update(t, m, snapshot(true, entries...))

	v := m.View()
	assert.Contains(t, v, "Today")
	assert.Contains(t, v, "Yesterday")
	assert.Contains(t, v, "hello world")
	assert.Contains(t, v, "2m ago")
	assert.Contains(t, v, "Paste to Notes")
	assert.Contains(t, v, "[All Types]")
	assert.Contains(t, v, "Information")
	assert.Contains(t, v, "Characters")
	assert.NotContains(t, v, "First copied")
	assert.Equal(t, []row{{header: "Today"}, {index: 0}, {index: 1}, {header: "Yesterday"}, {index: 2}}, m.rows)
}

func TestViewEmpty(t *testing.T) {
	m, _ := newModel(t, Options{})
	m, _ = update(t, m, snapshot(true))
	assert.Contains(t, m.View(), "No clipboard history")

	s := panel.Snapshot(snapshot(true))
	s.SearchText = "zzz"
	m, _ = update(t, m, SnapshotMsg(s))
	assert.Contains(t, m.View(), "No matches")
}

func TestViewImageDetail(t *testing.T) {
	m, _ := newModel(t, Options{})
	e := entry.Entry{ID: 9, ContentType: entry.Image, CreatedAt: now.UnixMilli(), FirstCopiedAt: now.Add(-time.Hour).UnixMilli(), CopyCount: 3}
	s := panel.Snapshot(snapshot(true, e))
	s.Preview = &imagecache.Image{Image: image.NewRGBA(image.Rect(0, 0, 640, 480)), Format: "png", Size: 10}
	m, _ = update(t, m, SnapshotMsg(s))

	v := m.View()
	assert.Contains(t, v, "[Image]")
	assert.Contains(t, v, "640×480")
	assert.Contains(t, v, "Times copied")
	assert.Contains(t, v, "First copied")
}

func TestScrollFollowsSelection(t *testing.T) {
	m, _ := newModel(t, Options{})
	entries := make([]entry.Entry, 40)
	for i := range entries {
		entries[i] = textEntry(int64(40-i), now.Add(-time.Duration(i)*time.Second), fmt.Sprintf("entry-%02d", i))
	}
	s := panel.Snapshot(snapshot(true, entries...))
	s.Selected = 30
	m, _ = update(t, m, SnapshotMsg(s))

	v := m.View()
	assert.Contains(t, v, "entry-30")
	assert.NotContains(t, v, "entry-00")

	s.Selected = 0
	m, _ = update(t, m, SnapshotMsg(s))
	assert.Equal(t, 0, m.offset)
}

func TestClickPastesRow(t *testing.T) {
	m, rec := newModel(t, Options{})
	m, _ = update(t, m, snapshot(true, textEntry(2, now, "a"), textEntry(1, now, "b")))

	// row 0 is the search bar, row 1 the "Today" header
	m, _ = update(t, m, tea.MouseMsg{X: 2, Y: 1, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	_, _ = update(t, m, tea.MouseMsg{X: 2, Y: 3, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	assert.Equal(t, []string{"paste-at 1"}, rec.calls)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	got := truncate(strings.Repeat("x", 20), 8)
	assert.Equal(t, "xxxxxxx…", got)
}
