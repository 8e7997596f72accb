// Package find orchestrates repository queries: string-query parsing,
// semantic search with graceful fallback, transparent permission
// rewriting, scoped "@" filter resolution, and pagination.
package find

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/arkivo/arkivo/internal/authz"
	"github.com/arkivo/arkivo/internal/filters"
	"github.com/arkivo/arkivo/internal/node"
	"github.com/arkivo/arkivo/internal/principal"
	"github.com/arkivo/arkivo/internal/repo"
)

const (
	// DefaultPageSize applies when the caller passes a non-positive size.
	DefaultPageSize = 20
	// semanticTopK bounds the vector-search candidate set.
	semanticTopK = 100
	// SemanticMarker prefixes string queries routed to semantic search.
	SemanticMarker = "?"
)

// EmbeddingModel is the optional semantic-search collaborator. Its
// absence degrades queries to full-text search.
type EmbeddingModel interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Engine executes permission-aware queries.
type Engine struct {
	repo     repo.NodeRepository
	authz    *authz.Resolver
	embedder EmbeddingModel
	logger   *slog.Logger
}

// New creates an Engine. embedder may be nil; logger may be nil.
func New(r repo.NodeRepository, az *authz.Resolver, embedder EmbeddingModel, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{repo: r, authz: az, embedder: embedder, logger: logger}
}

// FindText runs a string query. A leading "?" routes to semantic search;
// anything else is parsed as a structured filter expression, falling back
// to a full-text match when it does not parse.
func (e *Engine) FindText(ctx context.Context, auth principal.AuthContext, query string, pageSize, pageToken int) (repo.Page, error) {
	if strings.HasPrefix(query, SemanticMarker) {
		return e.findSemantic(ctx, auth, strings.TrimSpace(strings.TrimPrefix(query, SemanticMarker)), pageSize, pageToken)
	}
	parsed, err := filters.Parse(query)
	if err != nil {
		e.logger.Debug("query did not parse, falling back to fulltext", "query", query, "err", err)
		return e.find(ctx, auth, fulltextFilters(query), nil, pageSize, pageToken)
	}
	return e.find(ctx, auth, parsed, nil, pageSize, pageToken)
}

// Find runs a structured 2D filter query.
func (e *Engine) Find(ctx context.Context, auth principal.AuthContext, of filters.OrFilters, pageSize, pageToken int) (repo.Page, error) {
	return e.find(ctx, auth, of, nil, pageSize, pageToken)
}

// FindAnd runs a 1D AND filter list, normalizing it to the 2D form.
func (e *Engine) FindAnd(ctx context.Context, auth principal.AuthContext, f filters.Filters, pageSize, pageToken int) (repo.Page, error) {
	return e.find(ctx, auth, filters.Normalize(f), nil, pageSize, pageToken)
}

// findSemantic embeds the query and narrows the pipeline to the vector
// matches. Backend failures are recovered locally by full-text fallback;
// they never fail the overall call.
func (e *Engine) findSemantic(ctx context.Context, auth principal.AuthContext, text string, pageSize, pageToken int) (repo.Page, error) {
	if e.embedder == nil || !e.repo.SupportsEmbeddings() {
		e.logger.Info("semantic search unavailable, falling back to fulltext", "query", text)
		return e.find(ctx, auth, fulltextFilters(text), nil, pageSize, pageToken)
	}
	embeddings, err := e.embedder.Embed(ctx, []string{text})
	if err != nil || len(embeddings) == 0 {
		e.logger.Warn("embedding failed, falling back to fulltext", "query", text, "err", err)
		return e.find(ctx, auth, fulltextFilters(text), nil, pageSize, pageToken)
	}
	scored, err := e.repo.VectorSearch(ctx, embeddings[0], semanticTopK)
	if err != nil {
		e.logger.Warn("vector search failed, falling back to fulltext", "query", text, "err", err)
		return e.find(ctx, auth, fulltextFilters(text), nil, pageSize, pageToken)
	}

	scores := make(map[string]float64, len(scored))
	uuids := make([]any, len(scored))
	for i, s := range scored {
		scores[s.Node.UUID] = s.Score
		uuids[i] = s.Node.UUID
	}
	of := filters.OrFilters{{{Field: "uuid", Operator: filters.OpIn, Value: uuids}}}
	return e.find(ctx, auth, of, scores, pageSize, pageToken)
}

// find is the shared pipeline tail: permission rewrite, scoped filter
// resolution, repository query, and similarity ordering.
func (e *Engine) find(ctx context.Context, auth principal.AuthContext, of filters.OrFilters, scores map[string]float64, pageSize, pageToken int) (repo.Page, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageToken <= 0 {
		pageToken = 1
	}
	if len(of) == 0 {
		of = filters.OrFilters{{}}
	}

	resolved, err := e.authz.WithPermissionsResolved(ctx, auth, of, node.Read)
	if err != nil {
		return repo.Page{}, err
	}
	resolved, err = e.resolveScopedGroups(ctx, auth, resolved)
	if err != nil {
		return repo.Page{}, err
	}
	if len(resolved) == 0 {
		// Every group resolved to an unmatchable folder scope.
		return repo.Page{Nodes: []*node.Node{}, PageToken: pageToken, PageSize: pageSize}, nil
	}

	page, err := e.repo.Filter(ctx, resolved, pageSize, pageToken)
	if err != nil {
		return repo.Page{}, node.Unknown("repository query failed", err)
	}
	if scores != nil {
		sort.SliceStable(page.Nodes, func(i, j int) bool {
			return scores[page.Nodes[i].UUID] > scores[page.Nodes[j].UUID]
		})
	}
	return page, nil
}

// resolveScopedGroups rewrites every AND-group containing "@"-prefixed
// fields: the scoped sub-predicates are evaluated against folders, the
// matching folder uuids (root included) replace the group's parent
// predicate, and groups that resolve to zero folders are dropped.
func (e *Engine) resolveScopedGroups(ctx context.Context, auth principal.AuthContext, of filters.OrFilters) (filters.OrFilters, error) {
	out := make(filters.OrFilters, 0, len(of))
	for _, group := range of {
		scoped, rest := splitScoped(group)
		if len(scoped) == 0 {
			out = append(out, group)
			continue
		}
		folderUUIDs, err := e.resolveFolders(ctx, auth, scoped)
		if err != nil {
			return nil, err
		}
		if len(folderUUIDs) == 0 {
			// Unsatisfiable group: no folder matches the scope.
			continue
		}
		rewritten := make(filters.Filters, 0, len(rest)+1)
		for _, f := range rest {
			if f.Field == "parent" {
				continue
			}
			rewritten = append(rewritten, f)
		}
		rewritten = append(rewritten, filters.Filter{Field: "parent", Operator: filters.OpIn, Value: folderUUIDs})
		out = append(out, rewritten)
	}
	return out, nil
}

// splitScoped separates the "@"-prefixed predicates of a group from the
// rest, stripping the marker.
func splitScoped(group filters.Filters) (scoped, rest filters.Filters) {
	for _, f := range group {
		if strings.HasPrefix(f.Field, "@") {
			scoped = append(scoped, filters.Filter{
				Field:    strings.TrimPrefix(f.Field, "@"),
				Operator: f.Operator,
				Value:    f.Value,
			})
		} else {
			rest = append(rest, f)
		}
	}
	return scoped, rest
}

// resolveFolders returns the uuids of readable folders satisfying the
// scoped predicates, including the synthesized root when it matches.
func (e *Engine) resolveFolders(ctx context.Context, auth principal.AuthContext, scoped filters.Filters) ([]any, error) {
	var uuids []any

	root := node.RootFolder()
	if ok, err := root.Satisfies(filters.Normalize(scoped)); err == nil && ok {
		uuids = append(uuids, node.RootUUID)
	}

	query := append(filters.Filters{
		{Field: "mimetype", Operator: filters.OpEqual, Value: node.FolderMimetype},
	}, scoped...)
	for token := 1; ; token++ {
		page, err := e.repo.Filter(ctx, filters.Normalize(query), 100, token)
		if err != nil {
			return nil, node.Unknown("scoped folder resolution failed", err)
		}
		if len(page.Nodes) == 0 {
			break
		}
		for _, folder := range page.Nodes {
			if err := e.authz.IsAllowed(auth, folder, node.Read); err == nil {
				uuids = append(uuids, folder.UUID)
			}
		}
	}
	return uuids, nil
}

// fulltextFilters is the full-text fallback query shape.
func fulltextFilters(text string) filters.OrFilters {
	return filters.OrFilters{{{Field: filters.FulltextField, Operator: filters.OpMatch, Value: text}}}
}
