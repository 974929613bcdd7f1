package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/stash/internal/crypto"
	"go.klb.dev/stash/internal/entry"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testKey(t *testing.T) *crypto.Key {
	t.Helper()
	key, err := crypto.DeriveKey("test")
	require.NoError(t, err)
	return key
}

func openTest(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	s, err := Open(filepath.Join(t.TempDir(), DBName), testKey(t), WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clock
}

func TestSaveFetchDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t)

	id, err := s.SaveText(ctx, entry.PlainText, "hello", "Notes")
	require.NoError(t, err)

	got, err := s.FetchRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, entry.PlainText, got[0].ContentType)
	text, ok := got[0].Text()
	require.True(t, ok)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "Notes", got[0].SourceApp)
	assert.Equal(t, int64(1), got[0].CopyCount)

	one, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, got[0], one)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err = s.FetchRecent(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.ErrorIs(t, s.Delete(ctx, id), ErrNotFound)
}

func TestRecopyBumpsExisting(t *testing.T) {
	ctx := context.Background()
	s, clock := openTest(t)

	first, err := s.SaveText(ctx, entry.PlainText, "again", "Notes")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = s.SaveText(ctx, entry.PlainText, "other", "Notes")
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := s.SaveText(ctx, entry.PlainText, "again", "Terminal")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got, err := s.FetchRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0].ID)
	assert.Equal(t, int64(2), got[0].CopyCount)
	assert.Equal(t, "Terminal", got[0].SourceApp)
	assert.Less(t, got[0].FirstCopiedAt, got[0].CreatedAt)

	// Same text under a different type is a separate entry.
	_, err = s.SaveText(ctx, entry.FilePath, "again", "Finder")
	require.NoError(t, err)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestFetchBefore(t *testing.T) {
	ctx := context.Background()
	s, clock := openTest(t)

	for _, text := range []string{"a", "b", "c", "d"} {
		_, err := s.SaveText(ctx, entry.PlainText, text, "")
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	page, err := s.FetchRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "d", *page[0].TextContent)
	assert.Equal(t, "c", *page[1].TextContent)

	older, err := s.FetchBefore(ctx, page[1].CreatedAt, 10)
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "b", *older[0].TextContent)
	assert.Equal(t, "a", *older[1].TextContent)

	none, err := s.FetchBefore(ctx, older[1].CreatedAt, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s, clock := openTest(t)

	_, err := s.SaveText(ctx, entry.PlainText, "Hello World", "")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = s.SaveText(ctx, entry.FilePath, "/tmp/hello.txt", "")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = s.SaveImage(ctx, []byte("hello-png"), "")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = s.SaveText(ctx, entry.PlainText, "unrelated", "")
	require.NoError(t, err)

	got, err := s.Search(ctx, "HELLO", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entry.FilePath, got[0].ContentType)
	assert.Equal(t, entry.PlainText, got[1].ContentType)

	limited, err := s.Search(ctx, "hello", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	all, err := s.Search(ctx, "  ", 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestImagePayload(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t)

	id, err := s.SaveImage(ctx, []byte{0x89, 'P', 'N', 'G'}, "Preview")
	require.NoError(t, err)

	got, err := s.FetchRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entry.Image, got[0].ContentType)
	assert.Nil(t, got[0].TextContent)

	data, err := s.FetchImage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)

	_, err = s.FetchText(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FetchImage(ctx, id+100)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.SaveImage(ctx, nil, "")
	assert.Error(t, err)
}

func TestTouch(t *testing.T) {
	ctx := context.Background()
	s, clock := openTest(t)

	old, err := s.SaveText(ctx, entry.PlainText, "old", "")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = s.SaveText(ctx, entry.PlainText, "new", "")
	require.NoError(t, err)
	clock.Advance(time.Second)

	require.NoError(t, s.Touch(ctx, old))
	got, err := s.FetchRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, old, got[0].ID)
	assert.Equal(t, int64(2), got[0].CopyCount)

	assert.ErrorIs(t, s.Touch(ctx, 9999), ErrNotFound)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	s, clock := openTest(t)

	_, err := s.SaveText(ctx, entry.PlainText, "ancient", "")
	require.NoError(t, err)
	clock.Advance(10 * 24 * time.Hour)
	_, err = s.SaveText(ctx, entry.PlainText, "fresh", "")
	require.NoError(t, err)

	n, err := s.Cleanup(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.FetchRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", *got[0].TextContent)

	_, err = s.Cleanup(ctx, 0)
	assert.Error(t, err)
}

func TestPayloadsSealedOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DBName)
	s, err := Open(path, testKey(t))
	require.NoError(t, err)
	_, err = s.SaveText(ctx, entry.PlainText, "top secret", "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	var raw []byte
	require.NoError(t, db.QueryRow(`SELECT text_content FROM entries`).Scan(&raw))
	assert.NotContains(t, string(raw), "top secret")

	other, err := crypto.DeriveKey("wrong")
	require.NoError(t, err)
	s2, err := Open(path, other)
	require.NoError(t, err)
	defer s2.Close()
	_, err = s2.FetchRecent(ctx, 1)
	assert.Error(t, err)
}

func TestNilStore(t *testing.T) {
	var s *Store
	_, err := s.FetchRecent(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, s.Delete(context.Background(), 1), ErrNotInitialized)
}
