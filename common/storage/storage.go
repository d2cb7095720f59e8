package storage

import (
	"context"
	"errors"
	"iter"
	"time"
)

// ErrObjectNotFound is returned when an operation targets a key that does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo is the backend's view of a stored object.
type ObjectInfo struct {
	Key         string
	ContentType string
	Size        int64
	// CreatedAt is the backend's own creation (or last-modified) timestamp.
	CreatedAt time.Time
}

// ObjectStore defines the operations the photo gateway needs from an object-storage backend
type ObjectStore interface {
	// Put writes data under key with contentType attached as object metadata
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// List yields every object whose key starts with prefix. Breaking out of the loop or cancelling
	// ctx stops the underlying query.
	List(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error]

	// Exists reports whether key is present
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key, returning ErrObjectNotFound when the backend reports it absent
	Delete(ctx context.Context, key string) error

	// ContainerURL is the public base URL objects are addressed under
	ContainerURL() string

	// Ping checks that the container is reachable
	Ping(ctx context.Context) error
}
