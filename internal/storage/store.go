// Package storage persists the single serialized wallet record.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no wallet record has been written yet.
var ErrNotFound = errors.New("wallet record not found")

// WalletStore holds one opaque wallet record. Implementations must make Put
// atomic: a concurrent Get observes either the previous or the new record.
type WalletStore interface {
	// Put replaces the stored record.
	Put(ctx context.Context, data []byte) error
	// Get returns a copy of the stored record or ErrNotFound.
	Get(ctx context.Context) ([]byte, error)
}

// Closer is implemented by stores that hold an open database.
type Closer interface {
	Close() error
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
