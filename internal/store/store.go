// Package store is the encrypted clipboard history database.
//
// Entries live in a single sqlite table (pure-Go modernc driver). Text and
// image payloads are sealed with the store key before they reach disk; the
// content type, timestamps, and counters stay in clear so ordering and
// pagination are plain SQL. A keyed content hash lets a re-copied payload
// bump the existing row instead of inserting a duplicate.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"go.klb.dev/stash/internal/crypto"
	"go.klb.dev/stash/internal/entry"
)

// CurrentSchemaVersion is the latest schema version (PRAGMA user_version).
const CurrentSchemaVersion = 1

var (
	// ErrNotFound is returned when no entry has the requested id or the entry
	// has no payload of the requested kind.
	ErrNotFound = errors.New("entry not found")
	// ErrNotInitialized is returned by a nil or closed store.
	ErrNotInitialized = errors.New("storage not initialized")
)

// Store is the encrypted history database. Safe for concurrent use.
type Store struct {
	db  *sql.DB
	key *crypto.Key
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the database at path, sealing payloads with
// key, and applies pending schema migrations.
func Open(path string, key *crypto.Key, opts ...Option) (*Store, error) {
	if key == nil {
		return nil, fmt.Errorf("store: nil key")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(path, 0o600)

	s := &Store{db: db, key: key, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS entries (
		  id              INTEGER PRIMARY KEY AUTOINCREMENT,
		  content_type    TEXT    NOT NULL,
		  text_content    BLOB,
		  image_data      BLOB,
		  source_app      TEXT    NOT NULL DEFAULT '',
		  created_at      INTEGER NOT NULL,
		  copy_count      INTEGER NOT NULL DEFAULT 1,
		  first_copied_at INTEGER NOT NULL,
		  content_hash    TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_entries_created_at
		ON entries(created_at DESC, id DESC);

		CREATE INDEX IF NOT EXISTS idx_entries_content_hash
		ON entries(content_hash);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := db.Exec("PRAGMA user_version=1"); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	return nil
}

// SaveText records a textual clipboard payload and returns its id. A payload
// already present in the history is moved to the top and its copy count
// incremented instead of being inserted again.
func (s *Store) SaveText(ctx context.Context, ct entry.ContentType, text, sourceApp string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if ct == entry.Image {
		return 0, fmt.Errorf("save text: content type %s", ct)
	}
	sealed, err := crypto.Seal([]byte(text), s.key)
	if err != nil {
		return 0, err
	}
	hash := crypto.ContentHash(append([]byte(ct+"\x00"), text...), s.key)
	return s.upsert(ctx, ct, sealed, nil, sourceApp, hash)
}

// SaveImage records raw image bytes and returns the entry id.
func (s *Store) SaveImage(ctx context.Context, data []byte, sourceApp string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("save image: empty payload")
	}
	sealed, err := crypto.Seal(data, s.key)
	if err != nil {
		return 0, err
	}
	hash := crypto.ContentHash(append([]byte(entry.Image+"\x00"), data...), s.key)
	return s.upsert(ctx, entry.Image, nil, sealed, sourceApp, hash)
}

func (s *Store) upsert(ctx context.Context, ct entry.ContentType, text, image []byte, sourceApp, hash string) (int64, error) {
	now := s.now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM entries WHERE content_hash = ? ORDER BY created_at DESC LIMIT 1`, hash,
	).Scan(&id)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx,
			`UPDATE entries SET created_at = ?, copy_count = copy_count + 1, source_app = ? WHERE id = ?`,
			now, sourceApp, id,
		); err != nil {
			return 0, fmt.Errorf("bump entry %d: %w", id, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO entries (content_type, text_content, image_data, source_app, created_at, copy_count, first_copied_at, content_hash)
			 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
			string(ct), text, image, sourceApp, now, now, hash,
		)
		if err != nil {
			return 0, fmt.Errorf("insert entry: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("insert entry: %w", err)
		}
	default:
		return 0, fmt.Errorf("lookup hash: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

const selectColumns = `id, content_type, text_content, source_app, created_at, copy_count, first_copied_at`

// FetchRecent returns up to limit entries, newest first.
func (s *Store) FetchRecent(ctx context.Context, limit int) ([]entry.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.query(ctx,
		`SELECT `+selectColumns+` FROM entries ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

// FetchBefore returns up to limit entries strictly older than ts (Unix ms),
// newest first. A non-positive ts behaves like FetchRecent.
func (s *Store) FetchBefore(ctx context.Context, ts int64, limit int) ([]entry.Entry, error) {
	if ts <= 0 {
		return s.FetchRecent(ctx, limit)
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.query(ctx,
		`SELECT `+selectColumns+` FROM entries WHERE created_at < ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		ts, limit)
}

// Search returns up to limit textual entries whose text contains query,
// ignoring case, newest first. An empty query behaves like FetchRecent.
// Payloads are sealed, so matching happens after decryption.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]entry.Entry, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.FetchRecent(ctx, limit)
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM entries
		 WHERE content_type != ? AND text_content IS NOT NULL
		 ORDER BY created_at DESC, id DESC`, string(entry.Image))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var out []entry.Entry
	for rows.Next() && len(out) < limit {
		e, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		if text, ok := e.Text(); ok && strings.Contains(strings.ToLower(text), q) {
			out = append(out, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return out, nil
}

// Get returns entry id.
func (s *Store) Get(ctx context.Context, id int64) (entry.Entry, error) {
	if err := s.ready(); err != nil {
		return entry.Empty, err
	}
	got, err := s.query(ctx, `SELECT `+selectColumns+` FROM entries WHERE id = ?`, id)
	if err != nil {
		return entry.Empty, err
	}
	if len(got) == 0 {
		return entry.Empty, ErrNotFound
	}
	return got[0], nil
}

// FetchText returns the decrypted text of entry id.
func (s *Store) FetchText(ctx context.Context, id int64) (string, error) {
	b, err := s.payload(ctx, "text_content", id)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FetchImage returns the decrypted image bytes of entry id.
func (s *Store) FetchImage(ctx context.Context, id int64) ([]byte, error) {
	return s.payload(ctx, "image_data", id)
}

func (s *Store) payload(ctx context.Context, column string, id int64) ([]byte, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var sealed []byte
	err := s.db.QueryRowContext(ctx, `SELECT `+column+` FROM entries WHERE id = ?`, id).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && sealed == nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s %d: %w", column, id, err)
	}
	return crypto.Open(sealed, s.key)
}

// Delete removes entry id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.exec1(ctx, `DELETE FROM entries WHERE id = ?`, id)
}

// Touch marks entry id as the most recent and increments its copy count.
func (s *Store) Touch(ctx context.Context, id int64) error {
	return s.exec1(ctx,
		`UPDATE entries SET created_at = ?, copy_count = copy_count + 1 WHERE id = ?`,
		s.now().UnixMilli(), id)
}

func (s *Store) exec1(ctx context.Context, query string, args ...any) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Cleanup deletes entries whose most recent capture is older than days and
// returns how many were removed.
func (s *Store) Cleanup(ctx context.Context, days int) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if days <= 0 {
		return 0, fmt.Errorf("cleanup: non-positive retention %d", days)
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]entry.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	out := []entry.Entry{}
	for rows.Next() {
		e, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) scan(rows *sql.Rows) (entry.Entry, error) {
	var (
		e      entry.Entry
		ct     string
		sealed []byte
	)
	if err := rows.Scan(&e.ID, &ct, &sealed, &e.SourceApp, &e.CreatedAt, &e.CopyCount, &e.FirstCopiedAt); err != nil {
		return e, fmt.Errorf("scan entry: %w", err)
	}
	e.ContentType = entry.ParseContentType(ct)
	if sealed != nil {
		plain, err := crypto.Open(sealed, s.key)
		if err != nil {
			return e, fmt.Errorf("entry %d: %w", e.ID, err)
		}
		text := string(plain)
		e.TextContent = &text
	}
	return e, nil
}
