// Package tui renders the history panel in a terminal with bubbletea.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go.klb.dev/stash/internal/entry"
	"go.klb.dev/stash/internal/panel"
)

// SnapshotMsg carries a new frame from the controller.
type SnapshotMsg panel.Snapshot

// Options configures a Model.
type Options struct {
	// Standalone quits the program once the panel has been shown and hidden
	// again.
	Standalone bool
	// HotkeyLabel is shown while the panel is hidden.
	HotkeyLabel string
	Keys        *KeyMap
	Now         func() time.Time
}

// row is one line of the list: a date header or an entry.
type row struct {
	header string
	index  int
}

// Model is the bubbletea model for the panel.
type Model struct {
	panel Panel
	keys  KeyMap
	opts  Options
	now   func() time.Time

	input  textinput.Model
	snap   panel.Snapshot
	shown  bool
	rows   []row
	offset int

	width, height int
}

// New returns a model that drives p.
func New(p Panel, opts Options) Model {
	in := textinput.New()
	in.Placeholder = "Search clipboard history"
	in.Prompt = "⌕ "
	in.CharLimit = 256

	m := Model{
		panel: p,
		keys:  DefaultKeys,
		opts:  opts,
		now:   time.Now,
		input: in,
	}
	if opts.Keys != nil {
		m.keys = *opts.Keys
	}
	if opts.Now != nil {
		m.now = opts.Now
	}
	return m
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(m.listWidth()-4, 8)
		m.scroll()
		return m, nil

	case SnapshotMsg:
		return m.apply(panel.Snapshot(msg))

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) apply(s panel.Snapshot) (tea.Model, tea.Cmd) {
	opened := s.Visible && !m.snap.Visible
	m.snap = s
	if opened {
		m.shown = true
		m.offset = 0
		m.input.SetValue(s.SearchText)
		m.input.CursorEnd()
		m.input.Focus()
	}
	if !s.Visible {
		m.input.Blur()
		if m.opts.Standalone && m.shown {
			return m, tea.Quit
		}
	}
	m.rows = buildRows(s.Entries, m.now())
	m.scroll()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if !m.snap.Visible {
		if key.Matches(msg, m.keys.Open) {
			m.panel.Show()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.panel.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.panel.MoveDown()
	case key.Matches(msg, m.keys.PastePlain):
		m.panel.Paste(true)
	case key.Matches(msg, m.keys.Paste):
		m.panel.Paste(false)
	case key.Matches(msg, m.keys.Filter):
		m.panel.CycleFilter()
	case key.Matches(msg, m.keys.Delete):
		m.panel.Delete()
	case key.Matches(msg, m.keys.Hide):
		m.panel.Hide()
	default:
		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if v := m.input.Value(); v != before {
			m.panel.Search(v)
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if !m.snap.Visible {
		return m, nil
	}
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.panel.MoveUp()
	case msg.Button == tea.MouseButtonWheelDown:
		m.panel.MoveDown()
	case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
		if i, ok := m.entryAt(msg.X, msg.Y); ok {
			m.panel.PasteAt(i)
		}
	}
	return m, nil
}

// entryAt maps a screen position to an entry index.
func (m Model) entryAt(x, y int) (int, bool) {
	if x >= m.listWidth() {
		return 0, false
	}
	r := y - searchHeight + m.offset
	if y < searchHeight || r >= len(m.rows) || y-searchHeight >= m.bodyHeight() {
		return 0, false
	}
	if m.rows[r].header != "" {
		return 0, false
	}
	return m.rows[r].index, true
}

const (
	searchHeight = 1
	barHeight    = 2
)

func (m Model) bodyHeight() int { return max(m.height-searchHeight-barHeight, 1) }

func (m Model) listWidth() int {
	if m.width == 0 {
		return 40
	}
	return min(max(m.width*2/5, 24), m.width)
}

// scroll keeps the selected row, and its date header when it has one,
// inside the visible window.
func (m *Model) scroll() {
	pos := -1
	for i, r := range m.rows {
		if r.header == "" && r.index == m.snap.Selected {
			pos = i
			break
		}
	}
	if pos < 0 {
		m.offset = 0
		return
	}
	top := pos
	if pos > 0 && m.rows[pos-1].header != "" {
		top = pos - 1
	}
	h := m.bodyHeight()
	if top < m.offset {
		m.offset = top
	}
	if pos >= m.offset+h {
		m.offset = pos - h + 1
	}
	m.offset = max(m.offset, 0)
}

func buildRows(entries []entry.Entry, now time.Time) []row {
	rows := make([]row, 0, len(entries)+4)
	for i, e := range entries {
		if i == 0 || !entry.SameDay(e.Created(), entries[i-1].Created()) {
			rows = append(rows, row{header: entry.DateHeader(e.Created(), now)})
		}
		rows = append(rows, row{index: i})
	}
	return rows
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	if !m.snap.Visible {
		return m.idleView()
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.listView(), m.detailView())
	return lipgloss.JoinVertical(lipgloss.Left, m.searchView(), body, m.barView())
}

func (m Model) idleView() string {
	hotkey := m.opts.HotkeyLabel
	if hotkey == "" {
		hotkey = "the hotkey"
	}
	return idleStyle.Render(fmt.Sprintf(
		"%s\n\n%s or %s to open · %s to quit",
		titleStyle.Render("stash is watching the clipboard"),
		keyStyle.Render(hotkey), keyStyle.Render("⏎"), keyStyle.Render("^c"),
	))
}

func (m Model) searchView() string {
	filter := filterStyle.Render("[" + m.snap.Filter.Label() + "]")
	left := searchStyle.Render(m.input.View())
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(filter), 1)
	return left + strings.Repeat(" ", gap) + filter
}

func (m Model) listView() string {
	w := m.listWidth()
	h := m.bodyHeight()
	lines := make([]string, 0, h)

	if len(m.rows) == 0 {
		msg := "No clipboard history"
		if strings.TrimSpace(m.snap.SearchText) != "" || m.snap.Filter != entry.FilterAll {
			msg = "No matches"
		}
		lines = append(lines, metaStyle.PaddingLeft(1).Render(msg))
	}
	now := m.now()
	for i := m.offset; i < len(m.rows) && len(lines) < h; i++ {
		r := m.rows[i]
		if r.header != "" {
			lines = append(lines, headerStyle.Render(r.header))
			continue
		}
		lines = append(lines, m.entryLine(m.snap.Entries[r.index], r.index == m.snap.Selected, w-1, now))
	}
	if m.snap.LoadingMore && len(lines) < h {
		lines = append(lines, metaStyle.PaddingLeft(1).Render("Loading…"))
	}
	return listStyle.Width(w - 1).Height(h).Render(strings.Join(lines, "\n"))
}

func (m Model) entryLine(e entry.Entry, selected bool, w int, now time.Time) string {
	meta := e.RelativeTime(now)
	preview := strings.Join(strings.Fields(e.Preview()), " ")
	room := max(w-lipgloss.Width(meta)-3, 1)
	preview = truncate(preview, room)
	gap := max(w-1-lipgloss.Width(preview)-lipgloss.Width(meta), 1)

	if selected {
		return selectedStyle.Width(w).Render(preview + strings.Repeat(" ", gap) + meta)
	}
	return rowStyle.Render(preview + strings.Repeat(" ", gap) + metaStyle.Render(meta))
}

func (m Model) detailView() string {
	w := max(m.width-m.listWidth()-2, 10)
	h := m.bodyHeight()
	e, ok := m.snap.SelectedEntry()
	if !ok {
		return detailStyle.Width(w).Height(h).Render("")
	}

	info := m.infoLines(e)
	room := max(h-len(info)-2, 1)

	var content string
	switch {
	case e.IsImage() && m.snap.Preview != nil:
		content = fmt.Sprintf("%s image, %s", strings.ToUpper(m.snap.Preview.Format), m.snap.Preview.Dimensions())
	case e.IsImage() && m.snap.PreviewLoading:
		content = metaStyle.Render("Loading image…")
	case e.IsImage():
		content = metaStyle.Render("[Image]")
	default:
		text, _ := e.Text()
		content = lipgloss.NewStyle().Width(w).Render(text)
	}
	lines := strings.Split(content, "\n")
	if len(lines) > room {
		lines = append(lines[:room-1], metaStyle.Render("…"))
	}

	out := append(lines, "", titleStyle.Render("Information"))
	out = append(out, info...)
	return detailStyle.Width(w).Height(h).Render(strings.Join(out, "\n"))
}

func (m Model) infoLines(e entry.Entry) []string {
	var lines []string
	add := func(label, value string) {
		lines = append(lines, labelStyle.Render(fmt.Sprintf("%-13s", label))+value)
	}
	if e.SourceApp != "" {
		add("Source", e.SourceApp)
	}
	add("Content type", e.ContentType.DisplayName())
	if e.IsImage() {
		if m.snap.Preview != nil {
			add("Image size", m.snap.Preview.Dimensions())
		}
	} else {
		add("Characters", fmt.Sprint(e.CharCount()))
		add("Words", fmt.Sprint(e.WordCount()))
		if n := e.LineCount(); n > 1 {
			add("Lines", fmt.Sprint(n))
		}
	}
	add("Times copied", fmt.Sprint(e.CopyCount))
	add("Last copied", e.Created().Local().Format("Jan 2, 2006 at 15:04"))
	if e.CopyCount > 1 {
		add("First copied", e.FirstCopied().Local().Format("Jan 2, 2006 at 15:04"))
	}
	return lines
}

func (m Model) barView() string {
	left := "Copy to clipboard"
	if m.snap.TargetName != "" {
		left = "Paste to " + m.snap.TargetName
	}
	help := []key.Binding{m.keys.PastePlain, m.keys.Paste, m.keys.Filter, m.keys.Hide}
	parts := make([]string, len(help))
	for i, b := range help {
		parts[i] = keyStyle.Render(b.Help().Key) + " " + b.Help().Desc
	}
	right := strings.Join(parts, "  ")
	gap := max(m.width-2-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return barStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func truncate(s string, w int) string {
	if lipgloss.Width(s) <= w {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if lipgloss.Width(b.String()+string(r)) > w-1 {
			break
		}
		b.WriteRune(r)
	}
	return b.String() + "…"
}
