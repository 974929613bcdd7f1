package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.klb.dev/stash/internal/crypto"
	"go.klb.dev/stash/internal/entry"
)

const (
	// DBName is the encrypted database file inside the data directory.
	DBName = "stash.db"
	// LegacyDBName is where a plaintext database is parked while it is
	// migrated.
	LegacyDBName = "stash_plain.db"
)

// IsLegacy reports whether the sqlite file at path uses the plaintext
// clipboard_entries layout rather than the encrypted entries table.
func IsLegacy(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return false
	}
	defer db.Close()
	return hasTable(db, "clipboard_entries") && !hasTable(db, "entries")
}

func hasTable(db *sql.DB, name string) bool {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	return err == nil && n > 0
}

// Migrate copies every row of the plaintext database at oldPath into the
// encrypted store at newPath, sealing payloads with key. Timestamps, copy
// counts, and source apps are preserved; ids are reassigned.
func Migrate(ctx context.Context, oldPath, newPath string, key *crypto.Key) error {
	old, err := sql.Open("sqlite", oldPath)
	if err != nil {
		return fmt.Errorf("open legacy database: %w", err)
	}
	defer old.Close()

	s, err := Open(newPath, key)
	if err != nil {
		return err
	}
	defer s.Close()

	rows, err := old.QueryContext(ctx,
		`SELECT content_type, text_content, image_data, COALESCE(source_app, ''), created_at,
		        COALESCE(copy_count, 1), COALESCE(first_copied_at, 0)
		 FROM clipboard_entries ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("read legacy entries: %w", err)
	}
	defer rows.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var n int
	for rows.Next() {
		var (
			ct                         string
			text                       sql.NullString
			image                      []byte
			source                     string
			created, copies, firstSeen int64
		)
		if err := rows.Scan(&ct, &text, &image, &source, &created, &copies, &firstSeen); err != nil {
			return fmt.Errorf("scan legacy entry: %w", err)
		}
		created = toMillis(created)
		firstSeen = toMillis(firstSeen)
		if firstSeen == 0 {
			firstSeen = created
		}

		var payload, sealedText, sealedImage []byte
		kind := entry.ParseContentType(ct)
		switch {
		case text.Valid:
			payload = []byte(text.String)
			if sealedText, err = crypto.Seal(payload, s.key); err != nil {
				return err
			}
		case len(image) > 0:
			kind = entry.Image
			payload = image
			if sealedImage, err = crypto.Seal(payload, s.key); err != nil {
				return err
			}
		default:
			continue
		}
		hash := crypto.ContentHash(append([]byte(kind+"\x00"), payload...), s.key)

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entries (content_type, text_content, image_data, source_app, created_at, copy_count, first_copied_at, content_hash)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(kind), sealedText, sealedImage, source, created, copies, firstSeen, hash,
		); err != nil {
			return fmt.Errorf("insert migrated entry: %w", err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read legacy entries: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	slog.Info("legacy database migrated", "entries", n, "from", oldPath)
	return nil
}

// Early builds stored second-resolution timestamps.
func toMillis(ts int64) int64 {
	if ts > 0 && ts < 10_000_000_000 {
		return ts * 1000
	}
	return ts
}

// Bootstrap performs the startup sequence for dataDir: park a plaintext
// database for migration, migrate it into the encrypted store, remove the
// plaintext copy, open the store, and delete entries older than
// retentionDays. Migration and cleanup failures are logged, not returned;
// only a store that cannot be opened is an error.
func Bootstrap(ctx context.Context, dataDir string, key *crypto.Key, retentionDays int) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, DBName)
	plainPath := filepath.Join(dataDir, LegacyDBName)

	if !exists(plainPath) && IsLegacy(dbPath) {
		if err := os.Rename(dbPath, plainPath); err != nil {
			slog.Error("failed to park plaintext database", "err", err)
		} else {
			slog.Info("plaintext database parked for migration", "path", plainPath)
		}
	}

	if exists(plainPath) {
		if err := Migrate(ctx, plainPath, dbPath, key); err != nil {
			slog.Error("database migration failed", "err", err)
		} else if err := os.Remove(plainPath); err != nil {
			slog.Error("failed to remove plaintext database", "err", err)
		}
	}

	s, err := Open(dbPath, key)
	if err != nil {
		return nil, err
	}
	slog.Info("encrypted storage initialized", "path", dbPath)

	if retentionDays > 0 {
		n, err := s.Cleanup(ctx, retentionDays)
		switch {
		case err != nil:
			slog.Error("retention cleanup failed", "err", err)
		case n > 0:
			slog.Info("cleaned up old clipboard entries", "deleted", n, "retention_days", retentionDays)
		}
	}
	return s, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
