// Package blob defines the binary content storage contract consumed by
// the node service, with filesystem and in-memory implementations.
package blob

import (
	"context"

	"github.com/arkivo/arkivo/internal/node"
)

// File is a blob read from or written to storage.
type File struct {
	Name     string
	Mimetype string
	Content  []byte
}

// WriteOpts carries node metadata a backend may use for layout or CDN
// provisioning.
type WriteOpts struct {
	Title    string
	Parent   string
	Mimetype string
}

// Storage is the blob store contract.
type Storage interface {
	// Read returns the blob for a node uuid.
	Read(ctx context.Context, uuid string) (File, error)
	// Write stores the blob for a node uuid, replacing any previous one.
	Write(ctx context.Context, uuid string, f File, opts WriteOpts) error
	// Delete removes the blob for a node uuid.
	Delete(ctx context.Context, uuid string) error
}

// errBlobNotFound builds the canonical missing-blob error.
func errBlobNotFound(uuid string) error {
	return node.NotFound(uuid)
}
