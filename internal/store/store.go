package store

import (
	"context"
	"errors"
)

// Collections used by the service.
const (
	CollectionUsers   = "users"
	CollectionHistory = "history"
)

// ErrNotFound indicates the key has no document in the collection.
var ErrNotFound = errors.New("store: not found")

// Store persists JSON documents under string keys grouped into collections.
// Absence is reported via ErrNotFound, never an empty document.
type Store interface {
	Get(ctx context.Context, collection, key string) ([]byte, error)
	Put(ctx context.Context, collection, key string, value []byte) error
}
