// Package state persists tutorial progress as a flat string-keyed map.
//
// The store is loaded once at session start, mutated by task validation
// outcomes, and flushed back on mutation. Two backends exist: a JSON
// file (the default, single-writer) and SQLite for deployments where
// several processes share one progress record.
package state

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Store is the injectable state handle threaded through the engine.
type Store interface {
	// Load reads the persisted state. A missing or corrupt backing
	// record yields an empty state, not an error.
	Load() error

	// Save flushes the state if it changed since the last flush.
	Save() error

	// Get returns the value for key, or nil when absent.
	Get(key string) any

	// Lookup returns the value and whether the key is present.
	Lookup(key string) (any, bool)

	// Ensure sets key only when the value is absent or different.
	Ensure(key string, value any)

	// Delete removes a key.
	Delete(key string)

	// Snapshot returns a copy of the current state.
	Snapshot() map[string]any
}

// Keys that never persist. The autorefresh tick and derived values are
// session-local.
const volatileSuffix = "_derived"

var volatileKeys = map[string]bool{
	"autorefresh": true,
}

func persistable(key string) bool {
	return !volatileKeys[key] && !strings.HasSuffix(key, volatileSuffix)
}

// equalValue reports whether two state values are the same, tolerating
// the int/float64 mismatch introduced by a JSON round trip.
func equalValue(a, b any) bool {
	if na, ok := asFloat(a); ok {
		if nb, ok := asFloat(b); ok {
			return na == nb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// IntValue coerces a state value to an int. JSON decoding hands back
// float64 for every number, so progress counters come through here.
func IntValue(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}
