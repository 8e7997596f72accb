package find

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arkivo/arkivo/internal/authz"
	"github.com/arkivo/arkivo/internal/filters"
	"github.com/arkivo/arkivo/internal/node"
	"github.com/arkivo/arkivo/internal/principal"
	"github.com/arkivo/arkivo/internal/repo"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			v = []float32{0, 0}
		}
		out[i] = v
	}
	return out, nil
}

func userCtx(email string, groups ...string) principal.AuthContext {
	return principal.AuthContext{
		Principal: principal.Principal{Email: email, Groups: groups},
		Mode:      principal.ModeDirect,
		Tenant:    "test",
	}
}

// seedCorpus builds a repository with one open folder (readable by the
// finance group), one closed folder, and documents in both.
func seedCorpus(t *testing.T, m *repo.Memory) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	nodes := []*node.Node{
		{
			UUID: "inbox", Title: "Inbox", Mimetype: node.FolderMimetype,
			Parent: node.RootUUID, Owner: "owner@example.com", Group: "finance",
			Tags:        []string{"intake"},
			Permissions: &node.Permissions{Group: []node.Permission{node.Read, node.Write}},
			CreatedTime: base,
		},
		{
			UUID: "vault", Title: "Vault", Mimetype: node.FolderMimetype,
			Parent: node.RootUUID, Owner: "owner@example.com", Group: "hr",
			Permissions: &node.Permissions{Group: []node.Permission{node.Read}},
			CreatedTime: base.Add(time.Second),
		},
		{
			UUID: "doc-open", Title: "Open invoice", Mimetype: "application/pdf",
			Parent: "inbox", Fulltext: "open invoice finance",
			CreatedTime: base.Add(2 * time.Second),
		},
		{
			UUID: "doc-hidden", Title: "Hidden invoice", Mimetype: "application/pdf",
			Parent: "vault", Fulltext: "hidden invoice salary",
			CreatedTime: base.Add(3 * time.Second),
		},
	}
	for _, n := range nodes {
		if err := m.Add(t.Context(), n); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFindPermissionFiltering(t *testing.T) {
	m := repo.NewMemory()
	seedCorpus(t, m)
	e := New(m, authz.New(m, nil), nil, nil)

	query := filters.OrFilters{{{Field: "mimetype", Operator: filters.OpEqual, Value: "application/pdf"}}}

	// The finance user sees only the document in its readable folder.
	page, err := e.Find(t.Context(), userCtx("bob@example.com", "finance"), query, 10, 1)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(page.Nodes) != 1 || page.Nodes[0].UUID != "doc-open" {
		t.Fatalf("nodes = %v", page.Nodes)
	}

	// Admins see everything.
	page, err = e.Find(t.Context(), principal.Root("test"), query, 10, 1)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(page.Nodes) != 2 {
		t.Fatalf("admin nodes = %v", page.Nodes)
	}

	// A principal with no grants sees nothing but gets no error.
	page, err = e.Find(t.Context(), userCtx("stranger@example.com"), query, 10, 1)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(page.Nodes) != 0 {
		t.Fatalf("stranger nodes = %v", page.Nodes)
	}
}

func TestFindAndNormalizes(t *testing.T) {
	m := repo.NewMemory()
	seedCorpus(t, m)
	e := New(m, authz.New(m, nil), nil, nil)

	page, err := e.FindAnd(t.Context(), principal.Root("test"),
		filters.Filters{{Field: "parent", Operator: filters.OpEqual, Value: "inbox"}}, 10, 1)
	if err != nil {
		t.Fatalf("FindAnd failed: %v", err)
	}
	if len(page.Nodes) != 1 || page.Nodes[0].UUID != "doc-open" {
		t.Fatalf("nodes = %v", page.Nodes)
	}
}

func TestFindTextStructuredQuery(t *testing.T) {
	m := repo.NewMemory()
	seedCorpus(t, m)
	e := New(m, authz.New(m, nil), nil, nil)

	page, err := e.FindText(t.Context(), principal.Root("test"), "parent == inbox and mimetype == 'application/pdf'", 10, 1)
	if err != nil {
		t.Fatalf("FindText failed: %v", err)
	}
	if len(page.Nodes) != 1 || page.Nodes[0].UUID != "doc-open" {
		t.Fatalf("nodes = %v", page.Nodes)
	}
}

func TestFindTextFulltextFallback(t *testing.T) {
	m := repo.NewMemory()
	seedCorpus(t, m)
	e := New(m, authz.New(m, nil), nil, nil)

	// Free text does not parse as a filter expression and falls back to a
	// full-text match.
	page, err := e.FindText(t.Context(), principal.Root("test"), "hidden salary", 10, 1)
	if err != nil {
		t.Fatalf("FindText failed: %v", err)
	}
	if len(page.Nodes) != 1 || page.Nodes[0].UUID != "doc-hidden" {
		t.Fatalf("nodes = %v", page.Nodes)
	}
}

func TestSemanticFallsBackWithoutEmbedder(t *testing.T) {
	m := repo.NewMemory()
	seedCorpus(t, m)
	e := New(m, authz.New(m, nil), nil, nil)

	// With no embedding model the "?" query must behave exactly like the
	// full-text query over the same text.
	semantic, err := e.FindText(t.Context(), principal.Root("test"), "?hidden salary", 10, 1)
	if err != nil {
		t.Fatalf("FindText failed: %v", err)
	}
	fulltext, err := e.FindText(t.Context(), principal.Root("test"), "hidden salary", 10, 1)
	if err != nil {
		t.Fatalf("FindText failed: %v", err)
	}
	if len(semantic.Nodes) != len(fulltext.Nodes) || semantic.Nodes[0].UUID != fulltext.Nodes[0].UUID {
		t.Errorf("semantic fallback = %v, fulltext = %v", semantic.Nodes, fulltext.Nodes)
	}
}

func TestSemanticFallsBackOnEmbedderError(t *testing.T) {
	m := repo.NewMemoryWithEmbeddings()
	seedCorpus(t, m)
	e := New(m, authz.New(m, nil), &fakeEmbedder{err: errors.New("model down")}, nil)

	page, err := e.FindText(t.Context(), principal.Root("test"), "?hidden salary", 10, 1)
	if err != nil {
		t.Fatalf("FindText failed: %v", err)
	}
	if len(page.Nodes) != 1 || page.Nodes[0].UUID != "doc-hidden" {
		t.Fatalf("nodes = %v", page.Nodes)
	}
}

func TestSemanticOrdersBySimilarity(t *testing.T) {
	m := repo.NewMemoryWithEmbeddings()
	seedCorpus(t, m)
	// doc-hidden is the better match even though doc-open sorts first by
	// creation time.
	m.SetEmbedding("doc-open", []float32{0, 1})
	m.SetEmbedding("doc-hidden", []float32{1, 0})
	embedder := &fakeEmbedder{vectors: map[string][]float32{"salary details": {1, 0}}}
	e := New(m, authz.New(m, nil), embedder, nil)

	page, err := e.FindText(t.Context(), principal.Root("test"), "?salary details", 10, 1)
	if err != nil {
		t.Fatalf("FindText failed: %v", err)
	}
	if len(page.Nodes) != 2 {
		t.Fatalf("nodes = %v", page.Nodes)
	}
	if page.Nodes[0].UUID != "doc-hidden" || page.Nodes[1].UUID != "doc-open" {
		t.Errorf("order = %s, %s, want similarity order", page.Nodes[0].UUID, page.Nodes[1].UUID)
	}
}

func TestSemanticRespectsPermissions(t *testing.T) {
	m := repo.NewMemoryWithEmbeddings()
	seedCorpus(t, m)
	m.SetEmbedding("doc-open", []float32{1, 0})
	m.SetEmbedding("doc-hidden", []float32{1, 0})
	embedder := &fakeEmbedder{vectors: map[string][]float32{"invoices": {1, 0}}}
	e := New(m, authz.New(m, nil), embedder, nil)

	page, err := e.FindText(t.Context(), userCtx("bob@example.com", "finance"), "?invoices", 10, 1)
	if err != nil {
		t.Fatalf("FindText failed: %v", err)
	}
	if len(page.Nodes) != 1 || page.Nodes[0].UUID != "doc-open" {
		t.Fatalf("nodes = %v, want only the readable match", page.Nodes)
	}
}

func TestScopedFolderPredicates(t *testing.T) {
	m := repo.NewMemory()
	seedCorpus(t, m)
	e := New(m, authz.New(m, nil), nil, nil)

	// "@tags contains intake" scopes the query to documents whose parent
	// folder carries the intake tag.
	query := filters.OrFilters{{
		{Field: "mimetype", Operator: filters.OpEqual, Value: "application/pdf"},
		{Field: "@tags", Operator: filters.OpContains, Value: "intake"},
	}}
	page, err := e.Find(t.Context(), principal.Root("test"), query, 10, 1)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(page.Nodes) != 1 || page.Nodes[0].UUID != "doc-open" {
		t.Fatalf("nodes = %v", page.Nodes)
	}

	// A scope matching no folder makes the whole group unsatisfiable.
	none := filters.OrFilters{{
		{Field: "@tags", Operator: filters.OpContains, Value: "nonexistent"},
	}}
	page, err = e.Find(t.Context(), principal.Root("test"), none, 10, 1)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(page.Nodes) != 0 {
		t.Fatalf("nodes = %v, want empty", page.Nodes)
	}
}

func TestScopedPredicatesRespectFolderReadability(t *testing.T) {
	m := repo.NewMemory()
	seedCorpus(t, m)
	e := New(m, authz.New(m, nil), nil, nil)

	// The scope matches both folders by mimetype, but the finance user may
	// only read inbox, so only its document comes back.
	query := filters.OrFilters{{
		{Field: "@mimetype", Operator: filters.OpEqual, Value: node.FolderMimetype},
	}}
	page, err := e.Find(t.Context(), userCtx("bob@example.com", "finance"), query, 10, 1)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	for _, n := range page.Nodes {
		if n.Parent == "vault" {
			t.Errorf("unreadable folder leaked node %s", n.UUID)
		}
	}
}

func TestFindPagination(t *testing.T) {
	m := repo.NewMemory()
	seedCorpus(t, m)
	e := New(m, authz.New(m, nil), nil, nil)

	query := filters.OrFilters{{{Field: "mimetype", Operator: filters.OpEqual, Value: "application/pdf"}}}
	page1, err := e.Find(t.Context(), principal.Root("test"), query, 1, 1)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	page2, err := e.Find(t.Context(), principal.Root("test"), query, 1, 2)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(page1.Nodes) != 1 || len(page2.Nodes) != 1 {
		t.Fatalf("pages = %v, %v", page1.Nodes, page2.Nodes)
	}
	if page1.Nodes[0].UUID == page2.Nodes[0].UUID {
		t.Error("pages overlap")
	}
}
