package repo

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/arkivo/arkivo/internal/filters"
	"github.com/arkivo/arkivo/internal/node"
)

// Memory is a mutex-guarded in-memory NodeRepository. Query results are
// ordered by creation time then uuid so pagination is deterministic.
type Memory struct {
	mu         sync.RWMutex
	nodes      map[string]*node.Node
	embeddings map[string][]float32
	embedOn    bool
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		nodes:      map[string]*node.Node{},
		embeddings: map[string][]float32{},
	}
}

// NewMemoryWithEmbeddings creates a repository that also answers vector
// searches over embeddings registered with SetEmbedding.
func NewMemoryWithEmbeddings() *Memory {
	m := NewMemory()
	m.embedOn = true
	return m
}

// GetByID implements NodeRepository.
func (m *Memory) GetByID(ctx context.Context, uuid string) (*node.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[uuid]
	if !ok {
		return nil, node.NotFound(uuid)
	}
	return n.Clone(), nil
}

// GetByFid implements NodeRepository.
func (m *Memory) GetByFid(ctx context.Context, fid string) (*node.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.nodes {
		if n.Fid == fid {
			return n.Clone(), nil
		}
	}
	return nil, node.NotFound(fid)
}

// Add implements NodeRepository.
func (m *Memory) Add(ctx context.Context, n *node.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[n.UUID]; ok {
		return node.BadRequest("node " + n.UUID + " already exists")
	}
	m.nodes[n.UUID] = n.Clone()
	return nil
}

// Update implements NodeRepository.
func (m *Memory) Update(ctx context.Context, n *node.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[n.UUID]; !ok {
		return node.NotFound(n.UUID)
	}
	m.nodes[n.UUID] = n.Clone()
	return nil
}

// Delete implements NodeRepository.
func (m *Memory) Delete(ctx context.Context, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[uuid]; !ok {
		return node.NotFound(uuid)
	}
	delete(m.nodes, uuid)
	delete(m.embeddings, uuid)
	return nil
}

// Filter implements NodeRepository. pageToken is 1-based; an
// out-of-range token yields an empty page with the same token.
func (m *Memory) Filter(ctx context.Context, of filters.OrFilters, pageSize, pageToken int) (Page, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageToken <= 0 {
		pageToken = 1
	}

	m.mu.RLock()
	matched := make([]*node.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		ok, err := n.Satisfies(of)
		if err != nil {
			m.mu.RUnlock()
			return Page{}, err
		}
		if ok {
			matched = append(matched, n.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedTime.Equal(matched[j].CreatedTime) {
			return matched[i].CreatedTime.Before(matched[j].CreatedTime)
		}
		return matched[i].UUID < matched[j].UUID
	})

	start := (pageToken - 1) * pageSize
	if start >= len(matched) {
		return Page{Nodes: []*node.Node{}, PageToken: pageToken, PageSize: pageSize}, nil
	}
	end := min(start+pageSize, len(matched))
	return Page{Nodes: matched[start:end], PageToken: pageToken, PageSize: pageSize}, nil
}

// SetEmbedding registers the embedding vector for a node uuid.
func (m *Memory) SetEmbedding(uuid string, embedding []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[uuid] = append([]float32(nil), embedding...)
}

// VectorSearch implements NodeRepository with exact cosine similarity
// over the registered embeddings.
func (m *Memory) VectorSearch(ctx context.Context, embedding []float32, topK int) ([]Scored, error) {
	if !m.embedOn {
		return nil, node.Unknown("vector search not supported", nil)
	}
	m.mu.RLock()
	scored := make([]Scored, 0, len(m.embeddings))
	for uuid, vec := range m.embeddings {
		n, ok := m.nodes[uuid]
		if !ok {
			continue
		}
		scored = append(scored, Scored{Node: n.Clone(), Score: cosine(embedding, vec)})
	}
	m.mu.RUnlock()

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Node.UUID < scored[j].Node.UUID
	})
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// SupportsEmbeddings implements NodeRepository.
func (m *Memory) SupportsEmbeddings() bool { return m.embedOn }

// cosine computes cosine similarity; mismatched lengths compare over the
// shorter prefix.
func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
