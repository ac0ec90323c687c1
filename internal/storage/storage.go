// Package storage defines the blob abstraction used to persist checkpoint
// sequences. Backends live in subpackages (local, memory, gcs, postgres) so
// the checkpoint store stays independent of where its bytes end up.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the named object has never been written.
var ErrNotFound = errors.New("object not found")

// Blob reads and writes whole named objects.
type Blob interface {
	// Get returns the object contents or an error wrapping ErrNotFound.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put replaces the object contents. Readers must never observe a partial
	// write.
	Put(ctx context.Context, name string, data []byte) error
}
