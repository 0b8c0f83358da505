package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	maxRetryAttempts = 3
	retryDelay       = 1 * time.Second
)

// FileStore persists state to a single JSON file.
//
// Writes are atomic: the state is written to a temp file in the same
// directory and renamed over the old one, so a crashed or contended
// write never corrupts the previously persisted state. The file itself
// assumes a single writer; use the SQLite backend when that does not
// hold.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	logger *zap.Logger

	values map[string]any
	// lastSaved is the serialized form of the last successful flush,
	// used to skip no-op writes.
	lastSaved []byte

	attempts int
	delay    time.Duration
}

// FileOption adjusts FileStore behavior.
type FileOption func(*FileStore)

// WithRetry overrides the write retry policy.
func WithRetry(attempts int, delay time.Duration) FileOption {
	return func(fs *FileStore) {
		if attempts > 0 {
			fs.attempts = attempts
		}
		fs.delay = delay
	}
}

// NewFileStore creates a store backed by the JSON file at path.
func NewFileStore(path string, logger *zap.Logger, opts ...FileOption) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	fs := &FileStore{
		path:     path,
		logger:   logger,
		values:   make(map[string]any),
		attempts: maxRetryAttempts,
		delay:    retryDelay,
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Path returns the backing file path.
func (fs *FileStore) Path() string { return fs.path }

// Load reads the JSON file if present. A missing file or corrupt
// content falls back to an empty state; corrupt state must never block
// tutorial access. Transient read errors are retried.
func (fs *FileStore) Load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < fs.attempts; attempt++ {
		data, err := os.ReadFile(fs.path)
		if err != nil {
			if os.IsNotExist(err) {
				fs.logger.Info("state file does not exist, starting empty",
					zap.String("path", fs.path))
				fs.values = make(map[string]any)
				fs.lastSaved = nil
				return nil
			}
			lastErr = err
			fs.logger.Warn("failed to read state file",
				zap.String("path", fs.path),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			time.Sleep(fs.delay)
			continue
		}

		values := make(map[string]any)
		if err := json.Unmarshal(data, &values); err != nil {
			fs.logger.Warn("state file is corrupt, starting empty",
				zap.String("path", fs.path),
				zap.Error(err))
			fs.values = make(map[string]any)
			fs.lastSaved = nil
			return nil
		}

		fs.values = values
		fs.lastSaved = data
		return nil
	}

	return fmt.Errorf("state: load %s after %d attempts: %w", fs.path, fs.attempts, lastErr)
}

// Save flushes the state to disk. Unchanged state is a no-op. The
// write goes through a temp file and an atomic rename, retried a
// bounded number of times before failing loudly.
func (fs *FileStore) Save() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.MarshalIndent(fs.persistableValues(), "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal: %w", err)
	}

	if fs.lastSaved != nil && string(data) == string(fs.lastSaved) {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < fs.attempts; attempt++ {
		if err := fs.writeAtomic(data); err != nil {
			lastErr = err
			fs.logger.Warn("failed to save state",
				zap.String("path", fs.path),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			time.Sleep(fs.delay)
			continue
		}
		fs.lastSaved = data
		fs.logger.Debug("state saved", zap.String("path", fs.path))
		return nil
	}

	return fmt.Errorf("state: save %s after %d attempts: %w", fs.path, fs.attempts, lastErr)
}

func (fs *FileStore) writeAtomic(data []byte) error {
	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tutorial_state-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (fs *FileStore) persistableValues() map[string]any {
	out := make(map[string]any, len(fs.values))
	for k, v := range fs.values {
		if persistable(k) {
			out[k] = v
		}
	}
	return out
}

// Get returns the value for key, or nil.
func (fs *FileStore) Get(key string) any {
	v, _ := fs.Lookup(key)
	return v
}

// Lookup returns the value and presence of key.
func (fs *FileStore) Lookup(key string) (any, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	v, ok := fs.values[key]
	return v, ok
}

// Ensure sets key only when unset or different.
func (fs *FileStore) Ensure(key string, value any) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if cur, ok := fs.values[key]; ok && equalValue(cur, value) {
		return
	}
	fs.values[key] = value
}

// Delete removes a key.
func (fs *FileStore) Delete(key string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.values, key)
}

// Snapshot returns a copy of the current state.
func (fs *FileStore) Snapshot() map[string]any {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	out := make(map[string]any, len(fs.values))
	for k, v := range fs.values {
		out[k] = v
	}
	return out
}
