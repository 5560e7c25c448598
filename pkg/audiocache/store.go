package audiocache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // sqlite driver registration
)

// entry is the persisted row for one cached audio clip. Tags are stored
// as a JSON array since SQLite has no native array type.
type entry struct {
	Key          string
	Path         string
	SizeBytes    int64
	Format       string
	TagsJSON     string
	CreatedAt    time.Time
	LastAccessAt time.Time
	AccessCount  int64
}

// store is the SQLite-backed metadata table for the cache. Audio bytes
// themselves live on disk; only bookkeeping lives here.
type store struct {
	db *sql.DB
}

func openStore(dbPath string) (*store, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}
	s := &store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// openDB opens the cache's metadata database with pragmas tuned for its
// workload: one small table, frequent recency updates from the worker
// racing occasional eviction scans.
// busy_timeout(5000) waits out a locked database instead of erroring;
// journal_mode(WAL) lets stat reads proceed during writes;
// synchronous(NORMAL) is safe under WAL and cheaper than FULL for data
// that is rebuildable from the blob files.
func openDB(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("audiocache: create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("audiocache: open database %q: %w", dbPath, err)
	}

	// SQLite allows one writer at a time; a single pooled connection
	// serializes the worker's touch/put traffic against eviction.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audiocache: database %q not usable: %w", dbPath, err)
	}
	return db, nil
}

// migrate creates the cache_entries table and evolves its schema via
// PRAGMA table_info introspection so older databases gain new columns
// without a destructive rebuild.
func (s *store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cache_entries (
			key            TEXT PRIMARY KEY,
			path           TEXT NOT NULL,
			size_bytes     INTEGER NOT NULL,
			format         TEXT NOT NULL,
			tags_json      TEXT NOT NULL DEFAULT '[]',
			created_at     INTEGER NOT NULL,
			last_access_at INTEGER NOT NULL,
			access_count   INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info(cache_entries)")
	if err != nil {
		return err
	}
	hasTags := false
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull, dfltValue, pk any
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			rows.Close()
			return err
		}
		if name == "tags_json" {
			hasTags = true
		}
	}
	rows.Close()

	if !hasTags {
		slog.Info("audiocache: adding tags_json column to cache_entries")
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE cache_entries ADD COLUMN tags_json TEXT NOT NULL DEFAULT '[]'`); err != nil {
			return err
		}
	}

	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_cache_entries_last_access ON cache_entries(last_access_at)`)
	return err
}

func (s *store) put(ctx context.Context, e entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, path, size_bytes, format, tags_json, created_at, last_access_at, access_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(key) DO UPDATE SET
			path=excluded.path, size_bytes=excluded.size_bytes, format=excluded.format,
			tags_json=excluded.tags_json, last_access_at=excluded.last_access_at`,
		e.Key, e.Path, e.SizeBytes, e.Format, e.TagsJSON,
		e.CreatedAt.UnixNano(), e.LastAccessAt.UnixNano())
	return err
}

func (s *store) get(ctx context.Context, key string) (*entry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT key, path, size_bytes, format, tags_json, created_at, last_access_at, access_count FROM cache_entries WHERE key = ?",
		key)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func scanEntry(row *sql.Row) (*entry, error) {
	var e entry
	var created, lastAccess int64
	if err := row.Scan(&e.Key, &e.Path, &e.SizeBytes, &e.Format, &e.TagsJSON, &created, &lastAccess, &e.AccessCount); err != nil {
		return nil, err
	}
	e.CreatedAt = time.Unix(0, created)
	e.LastAccessAt = time.Unix(0, lastAccess)
	return &e, nil
}

func (s *store) touch(ctx context.Context, key string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE cache_entries SET last_access_at = ?, access_count = access_count + 1 WHERE key = ?",
		at.UnixNano(), key)
	return err
}

func (s *store) remove(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *store) clear(ctx context.Context) ([]entry, error) {
	all, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM cache_entries")
	return all, err
}

func (s *store) listAll(ctx context.Context) ([]entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, path, size_bytes, format, tags_json, created_at, last_access_at, access_count FROM cache_entries")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entry
	for rows.Next() {
		var e entry
		var created, lastAccess int64
		if err := rows.Scan(&e.Key, &e.Path, &e.SizeBytes, &e.Format, &e.TagsJSON, &created, &lastAccess, &e.AccessCount); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(0, created)
		e.LastAccessAt = time.Unix(0, lastAccess)
		out = append(out, e)
	}
	return out, rows.Err()
}

// listLRU returns entries ordered oldest-last-access first, used for
// eviction.
func (s *store) listLRU(ctx context.Context) ([]entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, path, size_bytes, format, tags_json, created_at, last_access_at, access_count FROM cache_entries ORDER BY last_access_at ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entry
	for rows.Next() {
		var e entry
		var created, lastAccess int64
		if err := rows.Scan(&e.Key, &e.Path, &e.SizeBytes, &e.Format, &e.TagsJSON, &created, &lastAccess, &e.AccessCount); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(0, created)
		e.LastAccessAt = time.Unix(0, lastAccess)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *store) totalSize(ctx context.Context) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT SUM(size_bytes) FROM cache_entries").Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}

func (s *store) count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cache_entries").Scan(&n)
	return n, err
}

func (s *store) close() error {
	return s.db.Close()
}

func marshalTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(sortedTags(tags))
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalTags(tagsJSON string) []string {
	var tags []string
	_ = json.Unmarshal([]byte(tagsJSON), &tags)
	return tags
}
