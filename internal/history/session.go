// Package history is the session engine behind the history panel: it turns
// user input (search text, type filter, paging, deletes) into store calls
// and reconciles the results into a single filtered view.
//
// A Session is not safe for concurrent use. Every method must be called on
// the coordination loop the Session was built with; store calls run on
// worker goroutines that post their results back to that loop.
package history

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.klb.dev/stash/internal/entry"
)

const (
	DefaultPageSize    = 50
	DefaultSearchLimit = 50
	DefaultDebounce    = 300 * time.Millisecond
)

// Store is the read side of the history store the session consumes.
type Store interface {
	FetchRecent(ctx context.Context, limit int) ([]entry.Entry, error)
	FetchBefore(ctx context.Context, ts int64, limit int) ([]entry.Entry, error)
	Search(ctx context.Context, query string, limit int) ([]entry.Entry, error)
	Delete(ctx context.Context, id int64) error
}

// Poster schedules a closure on the coordination loop.
type Poster interface {
	Post(fn func()) bool
}

// View is an immutable snapshot handed to observers.
type View struct {
	Entries     []entry.Entry
	Selected    int
	SearchText  string
	Filter      entry.TypeFilter
	HasMore     bool
	LoadingMore bool
}

// SelectedEntry returns the entry under the cursor.
func (v View) SelectedEntry() (entry.Entry, bool) {
	if v.Selected < 0 || v.Selected >= len(v.Entries) {
		return entry.Empty, false
	}
	return v.Entries[v.Selected], true
}

// NeedsDateHeader reports whether entry i starts a new calendar day.
func (v View) NeedsDateHeader(i int) bool { return NeedsDateHeader(v.Entries, i) }

// Session holds the state of one history panel.
type Session struct {
	store       Store
	loop        Poster
	pageSize    int
	searchLimit int
	debounce    time.Duration
	log         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	entries       []entry.Entry
	searchResults []entry.Entry
	filtered      []entry.Entry
	searchText    string
	filter        entry.TypeFilter
	hasMore       bool
	loadingMore   bool
	sel           Selection

	loadGen     uint64
	searchGen   uint64
	searchTimer *time.Timer

	observers []func(View)
}

// Option configures a Session.
type Option func(*Session)

// WithPageSize sets the baseline and pagination page size.
func WithPageSize(n int) Option { return func(s *Session) { s.pageSize = n } }

// WithSearchLimit caps search results.
func WithSearchLimit(n int) Option { return func(s *Session) { s.searchLimit = n } }

// WithDebounce sets the search debounce delay.
func WithDebounce(d time.Duration) Option { return func(s *Session) { s.debounce = d } }

// New returns an empty session. Call LoadEntries to populate it.
func New(store Store, loop Poster, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		store:       store,
		loop:        loop,
		pageSize:    DefaultPageSize,
		searchLimit: DefaultSearchLimit,
		debounce:    DefaultDebounce,
		log:         slog.With("component", "history"),
		ctx:         ctx,
		cancel:      cancel,
		hasMore:     true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close cancels outstanding store calls and the pending search.
func (s *Session) Close() {
	s.cancel()
	if s.searchTimer != nil {
		s.searchTimer.Stop()
	}
}

// Subscribe registers fn to receive a View after every change. fn runs on
// the loop.
func (s *Session) Subscribe(fn func(View)) {
	s.observers = append(s.observers, fn)
}

// View returns the current snapshot.
func (s *Session) View() View {
	return View{
		Entries:     s.filtered,
		Selected:    s.sel.Index(),
		SearchText:  s.searchText,
		Filter:      s.filter,
		HasMore:     s.hasMore,
		LoadingMore: s.loadingMore,
	}
}

// Filtered is the projection the UI observes.
func (s *Session) Filtered() []entry.Entry { return s.filtered }

// Selection exposes the cursor.
func (s *Session) Selection() *Selection { return &s.sel }

// Selected returns the entry under the cursor.
func (s *Session) Selected() (entry.Entry, bool) { return s.View().SelectedEntry() }

func (s *Session) SearchText() string       { return s.searchText }
func (s *Session) Filter() entry.TypeFilter { return s.filter }
func (s *Session) HasMore() bool            { return s.hasMore }
func (s *Session) Loaded() int              { return len(s.entries) }
func (s *Session) LoadingMore() bool        { return s.loadingMore }

// Refresh re-publishes the current view, e.g. after a thumbnail arrived.
func (s *Session) Refresh() { s.publish() }

// MoveUp moves the cursor up.
func (s *Session) MoveUp() {
	if s.sel.MoveUp() {
		s.publish()
	}
}

// MoveDown moves the cursor down.
func (s *Session) MoveDown() {
	if s.sel.MoveDown() {
		s.publish()
	}
}

// Select moves the cursor to i when it is in range.
func (s *Session) Select(i int) {
	if s.sel.Set(i) {
		s.publish()
	}
}

// ResetSelection moves the cursor to the top.
func (s *Session) ResetSelection() {
	s.sel.Reset()
	s.publish()
}

// Reset returns the session to its just-opened state: no search, filter
// All, cursor at the top. Entries are kept until the next LoadEntries.
func (s *Session) Reset() {
	s.searchGen++
	if s.searchTimer != nil {
		s.searchTimer.Stop()
	}
	s.searchText = ""
	s.searchResults = nil
	s.filter = entry.FilterAll
	s.sel.Reset()
	s.recompute()
}

// LoadEntries replaces the baseline with the newest page and re-enables
// paging. A later LoadEntries supersedes an earlier one still in flight.
func (s *Session) LoadEntries() {
	s.loadGen++
	gen := s.loadGen
	s.hasMore = true
	s.loadingMore = false

	go func() {
		got, err := s.store.FetchRecent(s.ctx, s.pageSize)
		s.loop.Post(func() {
			if gen != s.loadGen {
				return
			}
			if err != nil {
				s.log.Error("loadEntries failed", "err", err)
				return
			}
			s.entries = got
			s.recompute()
		})
	}()
}

// LoadMore appends the next page older than the last baseline entry. At
// most one page request is in flight; once a page comes back empty further
// calls are no-ops until the next LoadEntries.
func (s *Session) LoadMore() {
	if !s.hasMore || s.loadingMore || len(s.entries) == 0 {
		return
	}
	s.loadingMore = true
	gen := s.loadGen
	before := s.entries[len(s.entries)-1].CreatedAt
	s.publish()

	go func() {
		got, err := s.store.FetchBefore(s.ctx, before, s.pageSize)
		s.loop.Post(func() {
			if gen != s.loadGen {
				// The baseline was replaced; this page belongs to the old one.
				return
			}
			s.loadingMore = false
			switch {
			case err != nil:
				s.log.Error("loadMoreEntries failed", "err", err)
			case len(got) == 0:
				s.hasMore = false
			default:
				s.entries = append(s.entries[:len(s.entries):len(s.entries)], got...)
			}
			s.recompute()
		})
	}()
}

// SetSearchText records the query and schedules a debounced search.
func (s *Session) SetSearchText(text string) {
	if text == s.searchText {
		return
	}
	s.searchText = text
	s.sel.Reset()
	s.PerformSearch()
	s.publish()
}

// PerformSearch restarts the debounce timer. When it fires, an empty query
// drops the search results and a non-empty one replaces them. Only the
// result of the most recently issued search is ever applied.
func (s *Session) PerformSearch() {
	s.searchGen++
	gen := s.searchGen
	if s.searchTimer != nil {
		s.searchTimer.Stop()
	}
	s.searchTimer = time.AfterFunc(s.debounce, func() {
		s.loop.Post(func() { s.runSearch(gen) })
	})
}

func (s *Session) runSearch(gen uint64) {
	if gen != s.searchGen {
		return
	}
	query := strings.TrimSpace(s.searchText)
	if query == "" {
		s.searchResults = nil
		s.recompute()
		return
	}

	go func() {
		got, err := s.store.Search(s.ctx, query, s.searchLimit)
		s.loop.Post(func() {
			if gen != s.searchGen {
				return
			}
			if err != nil {
				s.log.Error("search failed", "query_len", len(query), "err", err)
				return
			}
			s.searchResults = got
			s.recompute()
		})
	}()
}

// CycleTypeFilter advances All -> PlainText -> Image -> FilePath -> All
// and moves the cursor to the top.
func (s *Session) CycleTypeFilter() {
	s.SetTypeFilter(s.filter.Next())
}

// SetTypeFilter selects f directly and moves the cursor to the top.
func (s *Session) SetTypeFilter(f entry.TypeFilter) {
	s.filter = f
	s.sel.Reset()
	s.recompute()
}

// DeleteEntry deletes id from the store and, once that succeeds, from the
// local lists. A failed delete leaves the session untouched.
func (s *Session) DeleteEntry(id int64) {
	if id == entry.NoID {
		return
	}
	go func() {
		err := s.store.Delete(s.ctx, id)
		s.loop.Post(func() {
			if err != nil {
				s.log.Error("deleteEntry failed", "id", id, "err", err)
				return
			}
			s.entries = without(s.entries, id)
			s.searchResults = without(s.searchResults, id)
			s.recompute()
		})
	}()
}

func without(in []entry.Entry, id int64) []entry.Entry {
	out := make([]entry.Entry, 0, len(in))
	for _, e := range in {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

func (s *Session) searching() bool { return strings.TrimSpace(s.searchText) != "" }

// recompute derives the filtered view from the active base list and the
// type filter, re-clamps the cursor, and notifies observers.
func (s *Session) recompute() {
	base := s.entries
	if s.searching() {
		base = s.searchResults
	}
	s.filtered = s.filter.Apply(base)
	s.sel.SetCount(len(s.filtered))
	s.publish()
}

func (s *Session) publish() {
	v := s.View()
	for _, fn := range s.observers {
		fn(v)
	}
}

// NeedsDateHeader reports whether list[i] is the first entry or falls on a
// different calendar day than list[i-1].
func NeedsDateHeader(list []entry.Entry, i int) bool {
	if i < 0 || i >= len(list) {
		return false
	}
	if i == 0 {
		return true
	}
	return !entry.SameDay(list[i].Created(), list[i-1].Created())
}
