// Package taskstore defines the storage port behind the task registry.
package taskstore

import "context"

// Backend is a flat key-value store of serialized task entries.
// Implementations must be safe for concurrent use. Serializing turns per
// task is the registry's job, not the backend's.
type Backend interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Keys lists every key with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases resources. The registry calls it once on teardown.
	Close() error
}
