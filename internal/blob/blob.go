// Package blob stores uploaded image payloads outside the primary store.
package blob

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound  = errors.New("blob not found")
	ErrInvalidID = errors.New("invalid blob id")
)

// Object is an open blob. Callers must close it.
type Object struct {
	io.ReadCloser
	ContentType string
	Size        int64
}

type Store interface {
	// Put stores the payload and returns its generated id.
	Put(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error)
	// Open returns ErrInvalidID for ids this store could never have issued and
	// ErrNotFound for well-formed ids with no payload.
	Open(ctx context.Context, id string) (*Object, error)
	Delete(ctx context.Context, id string) error
}
