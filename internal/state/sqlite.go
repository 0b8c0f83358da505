package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists state rows in a SQLite database. It implements
// the same Store contract as FileStore and exists for deployments
// where several worker processes share one progress record; SQLite's
// locking replaces the file store's single-writer assumption.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	logger *zap.Logger

	values map[string]any
	dirty  bool
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("state: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}

	schema := `CREATE TABLE IF NOT EXISTS tutorial_state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: initialize schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger,
		values: make(map[string]any),
	}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Load reads all rows. Rows whose value fails to decode are dropped
// with a warning rather than blocking the session.
func (s *SQLiteStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT key, value FROM tutorial_state")
	if err != nil {
		return fmt.Errorf("state: query: %w", err)
	}
	defer rows.Close()

	values := make(map[string]any)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return fmt.Errorf("state: scan: %w", err)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			s.logger.Warn("dropping corrupt state row",
				zap.String("key", key), zap.Error(err))
			continue
		}
		values[key] = v
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("state: iterate: %w", err)
	}

	s.values = values
	s.dirty = false
	return nil
}

// Save upserts every persistable key in one transaction.
func (s *SQLiteStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("state: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tutorial_state"); err != nil {
		return fmt.Errorf("state: clear: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO tutorial_state (key, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("state: prepare: %w", err)
	}
	defer stmt.Close()

	for k, v := range s.values {
		if !persistable(k) {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("state: marshal %q: %w", k, err)
		}
		if _, err := stmt.Exec(k, string(raw)); err != nil {
			return fmt.Errorf("state: upsert %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	s.dirty = false
	return nil
}

// Get returns the value for key, or nil.
func (s *SQLiteStore) Get(key string) any {
	v, _ := s.Lookup(key)
	return v
}

// Lookup returns the value and presence of key.
func (s *SQLiteStore) Lookup(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Ensure sets key only when unset or different.
func (s *SQLiteStore) Ensure(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.values[key]; ok && equalValue(cur, value) {
		return
	}
	s.values[key] = value
	s.dirty = true
}

// Delete removes a key.
func (s *SQLiteStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// Snapshot returns a copy of the current state.
func (s *SQLiteStore) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
