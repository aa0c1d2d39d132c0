// Package fsadapter defines the uniform storage adapter contract and resolves
// the adapter configured for each user. Implementations handle raw file I/O
// against one backend (local disk, S3/MinIO, SMB mounts) and report entries
// in the canonical fsmeta shape.
package fsadapter

import (
	"context"
	"errors"

	"github.com/shelfd/shelfd/internal/fsmeta"
)

// Backend-agnostic failure conditions. Adapters map their native errors onto
// these sentinels; callers classify with errors.Is.
var (
	// ErrNotFound is returned when the addressed path does not exist.
	ErrNotFound = errors.New("fsadapter: path not found")

	// ErrExists is returned when a write or rename target already exists and
	// the backend refuses to overwrite it.
	ErrExists = errors.New("fsadapter: path already exists")

	// ErrNoBackend is returned by the Manager when the acting user has no
	// configured storage backend.
	ErrNoBackend = errors.New("fsadapter: no storage backend configured for user")
)

// Adapter is the uniform contract over one storage backend. One instance is
// bound per acting user; implementations are safe for sequential use within
// a request. Every operation treats paths as backend-relative.
type Adapter interface {
	// List returns raw metadata for every entry directly under dir.
	// Fails with ErrNotFound if dir does not exist.
	List(ctx context.Context, dir string) ([]fsmeta.Raw, error)

	// Metadata returns raw metadata for a single path.
	Metadata(ctx context.Context, path string) (fsmeta.Raw, error)

	// Read returns the full content at path.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write creates a new file at path. Fails with ErrExists if the path is
	// already occupied.
	Write(ctx context.Context, path string, content []byte) error

	// Update overwrites an existing file at path. Fails with ErrNotFound if
	// the path does not exist.
	Update(ctx context.Context, path string, content []byte) error

	// Rename moves oldPath to newPath. Fails with ErrNotFound if oldPath is
	// absent and ErrExists if newPath is occupied.
	Rename(ctx context.Context, oldPath, newPath string) error

	// Delete removes the file at path. Fails with ErrNotFound if absent.
	Delete(ctx context.Context, path string) error

	// Type returns the backend type identifier ("local", "s3", "smb").
	Type() string

	// Close releases any resources held by the adapter.
	Close() error
}
