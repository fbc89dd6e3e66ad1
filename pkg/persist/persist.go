// Package persist keeps in-memory state stores synchronized with a kv.Store.
//
// Writes are optimistic: callers mutate memory first and hand a snapshot to a
// Persister, which stores it in the background. Failures are logged and never
// returned, and reads fall back to the caller's default.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrStorageUnavailable wraps backend read failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrCorruptSnapshot wraps values that do not decode.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

// Persister is the durability boundary used by state stores.
type Persister interface {
	// Read returns the raw JSON stored under key. found is false when the key
	// is missing; err is set when the backend could not be read.
	Read(ctx context.Context, key string) (raw []byte, found bool, err error)
	// Write schedules value to be serialized and stored under key.
	Write(key string, value any)
	// Delete schedules key for removal.
	Delete(key string)
	Logger() *slog.Logger
}

// Load reads key and decodes it into a T. Any failure yields def.
func Load[T any](ctx context.Context, p Persister, key string, def T) T {
	out, err := LoadStrict(ctx, p, key, def)
	if err != nil {
		p.Logger().Warn("using default for unreadable snapshot", "key", key, "err", err)
		return def
	}
	return out
}

// LoadStrict is Load for callers that must not mistake a failed read for an
// empty one. A missing key yields def and no error.
func LoadStrict[T any](ctx context.Context, p Persister, key string, def T) (T, error) {
	raw, found, err := p.Read(ctx, key)
	if err != nil {
		return def, err
	}
	if !found {
		return def, nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return def, fmt.Errorf("%w: %s: %v", ErrCorruptSnapshot, key, err)
	}
	return out, nil
}
