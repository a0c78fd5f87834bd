// Package store is the contract with the hosted document database plus its backends.
// Every collection is read as a whole through live subscriptions; there is no
// query-by-field.
package store

import (
	"context"
	"errors"
)

// Record is a document body keyed by wire field name.
type Record map[string]interface{}

// Document is one stored record with its storage-assigned id.
type Document struct {
	ID   string
	Data Record
}

// SnapshotFunc receives the full contents of a collection every time it changes.
type SnapshotFunc func(docs []Document)

// ErrorFunc receives subscription failures. The subscription may keep running.
type ErrorFunc func(err error)

// Writer is the write half of the store.
type Writer interface {
	Insert(ctx context.Context, collection string, rec Record) (string, error)
	Update(ctx context.Context, collection, id string, rec Record) error
}

// Store is the external document database.
type Store interface {
	Writer
	// Subscribe delivers full snapshots until ctx is cancelled. It returns once the
	// subscription is established. Backends may call onSnapshot from their own goroutine
	// but never concurrently for the same subscription.
	Subscribe(ctx context.Context, collection string, onSnapshot SnapshotFunc, onError ErrorFunc) error
	Close() error
}

// Transactor is implemented by stores that can commit several writes atomically.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(w Writer) error) error
}

var (
	ErrNotFound     = errors.New("document not found")
	ErrUnknownStore = errors.New("unknown store driver")
)
