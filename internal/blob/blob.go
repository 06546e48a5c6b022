// Package blob stores raw audio payloads in an object store and hands back
// opaque references. The voice core never interprets a reference; it only
// round-trips it.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a reference does not resolve to an object.
var ErrNotFound = errors.New("blob: not found")

// Ref is an opaque handle to a stored payload.
type Ref string

// Store persists binary payloads. Implementations must be safe for
// concurrent use.
type Store interface {
	// Put stores the payload and returns a retrievable reference.
	Put(ctx context.Context, payload []byte) (Ref, error)
	// Get resolves a reference created by Put. Returns ErrNotFound (possibly
	// wrapped) for unknown references.
	Get(ctx context.Context, ref Ref) ([]byte, error)
}
