// Package repo defines the node persistence contract consumed by the
// core, plus an in-memory reference implementation used by hosts and
// tests. Real deployments plug in their own backend behind the same
// interface.
package repo

import (
	"context"

	"github.com/arkivo/arkivo/internal/filters"
	"github.com/arkivo/arkivo/internal/node"
)

// Page is one page of a filter query result.
type Page struct {
	Nodes     []*node.Node `json:"nodes"`
	PageToken int          `json:"pageToken"`
	PageSize  int          `json:"pageSize"`
}

// Scored pairs a node with its vector-search similarity score.
type Scored struct {
	Node  *node.Node `json:"node"`
	Score float64    `json:"score"`
}

// NodeRepository is the persistence and index contract.
type NodeRepository interface {
	// GetByID returns the node with the given uuid.
	GetByID(ctx context.Context, uuid string) (*node.Node, error)
	// GetByFid returns the node with the given friendly id.
	GetByFid(ctx context.Context, fid string) (*node.Node, error)
	// Add persists a new node.
	Add(ctx context.Context, n *node.Node) error
	// Update replaces an existing node.
	Update(ctx context.Context, n *node.Node) error
	// Delete removes a node by uuid.
	Delete(ctx context.Context, uuid string) error
	// Filter runs a paginated query. pageToken is 1-based.
	Filter(ctx context.Context, of filters.OrFilters, pageSize, pageToken int) (Page, error)
	// VectorSearch returns the topK nodes most similar to the embedding.
	VectorSearch(ctx context.Context, embedding []float32, topK int) ([]Scored, error)
	// SupportsEmbeddings reports whether VectorSearch is available.
	SupportsEmbeddings() bool
}
