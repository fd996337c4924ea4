package backend

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ifc-lite/modelstore/api"
)

// SQLite stores cache blobs in a single-table SQLite database. Useful
// when the cache should travel as one file or live next to other
// application state.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a cache database at the given
// path. ":memory:" works for tests.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	schema := `
	CREATE TABLE IF NOT EXISTS blobs (
		key  TEXT PRIMARY KEY,
		data BLOB NOT NULL
	) WITHOUT ROWID;
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Get reads the blob for a key. A missing key is (nil, false, nil).
func (b *SQLite) Get(key string) ([]byte, bool, error) {
	var data []byte
	err := b.db.QueryRow("SELECT data FROM blobs WHERE key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cache blob %s: %w", key, err)
	}
	return data, true, nil
}

// Put writes the blob for a key, replacing any previous value.
func (b *SQLite) Put(key string, data []byte) error {
	_, err := b.db.Exec("INSERT OR REPLACE INTO blobs (key, data) VALUES (?, ?)", key, data)
	if err != nil {
		return fmt.Errorf("put cache blob %s: %w", key, err)
	}
	return nil
}

// Delete removes the blob for a key. Deleting an absent key is a no-op.
func (b *SQLite) Delete(key string) error {
	if _, err := b.db.Exec("DELETE FROM blobs WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete cache blob %s: %w", key, err)
	}
	return nil
}

// Entries lists the stored blobs, sorted by key.
func (b *SQLite) Entries() ([]api.BackendEntry, error) {
	rows, err := b.db.Query("SELECT key, length(data) FROM blobs ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list cache blobs: %w", err)
	}
	defer rows.Close()
	var out []api.BackendEntry
	for rows.Next() {
		var e api.BackendEntry
		if err := rows.Scan(&e.Key, &e.Size); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (b *SQLite) Close() error { return b.db.Close() }

var _ api.CacheBackend = (*SQLite)(nil)
