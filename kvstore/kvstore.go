// Package kvstore is the durable key-value persistence adapter for pinmark
// session state and configuration.
//
// The store is origin-scoped and shared: concurrent pinmark instances each
// independently load and overwrite it, last writer wins, silently. That is a
// known gap of a single-user local tool, not something this package
// reconciles. The adapter never initiates state changes; it only reads and
// writes on request.
package kvstore

import "context"

// KV is the minimal get/set/delete contract the session core persists
// through. Headless and test environments substitute Memory without touching
// core logic.
type KV interface {
	// Get returns the stored value and whether the key exists. A missing
	// key is (nil, false, nil), not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
