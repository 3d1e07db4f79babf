// Package storage persists jobscan's keyed records.
//
// Records are opaque JSON blobs addressed by a string key: the MRU session
// list, the single dispatch slot and the artifact history. Two backends are
// provided: MemoryStore for tests and single-process use, and SQLiteStore
// for durable state across restarts.
package storage

import (
	"context"
	"errors"

	"github.com/bytedance/sonic"
)

// Well-known keys.
const (
	KeySessions        = "sessions"
	KeyDispatch        = "spa_dispatch"
	KeyArtifactHistory = "artifact_history"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store closed")

// Store reads and writes keyed JSON records.
type Store interface {
	// Get decodes the record at key into v. It reports false, with v
	// untouched, when the key is absent.
	Get(ctx context.Context, key string, v any) (bool, error)
	// Put encodes v and replaces the record at key.
	Put(ctx context.Context, key string, v any) error
	// Delete removes the record at key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

func encode(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

func decode(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}
