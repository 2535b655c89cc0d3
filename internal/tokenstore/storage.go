// Package tokenstore holds the single bearer token of a session and
// mirrors it into durable storage.
package tokenstore

import "context"

// Key is the durable-storage key the token is kept under.
const Key = "auth_token"

// Storage persists string values across process restarts.
//
// Implementations must be safe for concurrent use. Load reports ok=false,
// with a nil error, when the key has never been written or was removed.
type Storage interface {
	// Load returns the value stored under key.
	Load(ctx context.Context, key string) (value string, ok bool, err error)

	// Save stores value under key, replacing any previous value.
	Save(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Name identifies the backend in logs and errors.
	Name() string
}
