package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/stash/internal/entry"
)

func writeLegacy(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE clipboard_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content_type TEXT NOT NULL,
		text_content TEXT,
		image_data BLOB,
		source_app TEXT,
		created_at INTEGER NOT NULL,
		copy_count INTEGER DEFAULT 1,
		first_copied_at INTEGER
	)`)
	require.NoError(t, err)

	now := time.Now()
	_, err = db.Exec(`INSERT INTO clipboard_entries (content_type, text_content, source_app, created_at, copy_count, first_copied_at)
		VALUES ('PlainText', 'legacy text', 'Notes', ?, 3, ?)`, now.Unix(), now.Add(-time.Hour).Unix())
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO clipboard_entries (content_type, image_data, created_at)
		VALUES ('Image', x'89504e47', ?)`, now.Add(time.Second).UnixMilli())
	require.NoError(t, err)
}

func TestIsLegacy(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, "old.db")
	writeLegacy(t, legacy)
	assert.True(t, IsLegacy(legacy))

	fresh := filepath.Join(dir, "new.db")
	s, err := Open(fresh, testKey(t))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.False(t, IsLegacy(fresh))

	assert.False(t, IsLegacy(filepath.Join(dir, "missing.db")))
}

func TestBootstrapMigratesLegacy(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeLegacy(t, filepath.Join(dir, DBName))

	s, err := Bootstrap(ctx, dir, testKey(t), 7)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, LegacyDBName))
	assert.ErrorIs(t, err, os.ErrNotExist)

	got, err := s.FetchRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, entry.Image, got[0].ContentType)
	img, err := s.FetchImage(ctx, got[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, img)

	assert.Equal(t, "legacy text", *got[1].TextContent)
	assert.Equal(t, "Notes", got[1].SourceApp)
	assert.Equal(t, int64(3), got[1].CopyCount)
	// second-resolution timestamps are widened to milliseconds
	assert.InDelta(t, time.Now().UnixMilli(), got[1].CreatedAt, float64(time.Minute.Milliseconds()))

	// Re-copying migrated text bumps the migrated row.
	id, err := s.SaveText(ctx, entry.PlainText, "legacy text", "Notes")
	require.NoError(t, err)
	assert.Equal(t, got[1].ID, id)
}

func TestBootstrapFresh(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s, err := Bootstrap(context.Background(), dir, testKey(t), 7)
	require.NoError(t, err)
	defer s.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
