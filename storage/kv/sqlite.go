// Package kv holds the persistent cache.Store implementations.
package kv

import (
	"database/sql"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/trezcool/tathmini/core/cache"
)

type SQLiteStore struct {
	db         *sql.DB
	maxEntries int
}

var _ cache.Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating it if needed) the sqlite database at path.
// Writing a new key fails with cache.ErrQuotaExceeded once maxEntries keys are stored (unbounded if maxEntries <= 0).
func OpenSQLite(path string, maxEntries int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite")
	}
	// writes are serialized anyway; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	stmts := []string{
		"PRAGMA journal_mode = WAL",
		"CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value BLOB NOT NULL)",
	}
	for _, stmt := range stmts {
		if _, err = db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "executing %q", stmt)
		}
	}
	return &SQLiteStore{db: db, maxEntries: maxEntries}, nil
}

func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading %q", key)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(key string, value []byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if s.maxEntries > 0 {
		var exists bool
		if err = tx.QueryRow("SELECT EXISTS (SELECT 1 FROM kv WHERE key = ?)", key).Scan(&exists); err != nil {
			return errors.Wrapf(err, "checking %q", key)
		}
		if !exists {
			var count int
			if err = tx.QueryRow("SELECT COUNT(*) FROM kv").Scan(&count); err != nil {
				return errors.Wrap(err, "counting keys")
			}
			if count >= s.maxEntries {
				return cache.ErrQuotaExceeded
			}
		}
	}

	if _, err = tx.Exec(
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value",
		key, value,
	); err != nil {
		return errors.Wrapf(err, "writing %q", key)
	}
	return errors.Wrap(tx.Commit(), "committing")
}

func (s *SQLiteStore) Remove(key string) error {
	_, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key)
	return errors.Wrapf(err, "removing %q", key)
}

func (s *SQLiteStore) Keys(prefix string) ([]string, error) {
	// substr avoids escaping LIKE wildcards in prefix
	rows, err := s.db.Query("SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key", len(prefix), prefix)
	if err != nil {
		return nil, errors.Wrap(err, "listing keys")
	}
	defer func() { _ = rows.Close() }()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err = rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "listing keys")
		}
		keys = append(keys, k)
	}
	return keys, errors.Wrap(rows.Err(), "listing keys")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
