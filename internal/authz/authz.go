// Package authz resolves folder permissions for a principal and rewrites
// filter sets so repository queries only return content the caller may
// see. Non-folder nodes are never independently permissioned; checks
// always run against the containing folder.
package authz

import (
	"context"
	"log/slog"

	"github.com/arkivo/arkivo/internal/filters"
	"github.com/arkivo/arkivo/internal/node"
	"github.com/arkivo/arkivo/internal/principal"
	"github.com/arkivo/arkivo/internal/repo"
)

// Resolver decides folder permissions and rewrites queries.
type Resolver struct {
	repo   repo.NodeRepository
	logger *slog.Logger
}

// New creates a Resolver. A nil logger discards output.
func New(r repo.NodeRepository, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{repo: r, logger: logger}
}

// IsAllowed reports whether the principal holds the permission on the
// folder. Resolution order, first match wins:
//
//  1. root or admin
//  2. folder owner
//  3. anonymous grant
//  4. root folder: Read for everyone, anything else admins only
//  5. owning-group grant
//  6. authenticated grant
//  7. advanced per-group grant
//
// Returns a ForbiddenError when nothing matches.
func (r *Resolver) IsAllowed(ctx principal.AuthContext, folder *node.Node, perm node.Permission) error {
	if !folder.IsFolder() {
		return node.FolderNotFound(folder.UUID)
	}
	if ctx.IsAdmin() {
		return nil
	}
	if folder.Owner != "" && folder.Owner == ctx.Principal.Email {
		return nil
	}
	perms := folder.Permissions
	if perms == nil {
		p := node.DefaultPermissions()
		perms = &p
	}
	if node.Contains(perms.Anonymous, perm) {
		return nil
	}
	if folder.IsRoot() {
		if perm == node.Read {
			return nil
		}
		return node.Forbidden("only admins may modify the root folder")
	}
	if folder.Group != "" && ctx.InGroup(folder.Group) && node.Contains(perms.Group, perm) {
		return nil
	}
	if !ctx.IsAnonymous() && node.Contains(perms.Authenticated, perm) {
		return nil
	}
	for group, grants := range perms.Advanced {
		if ctx.InGroup(group) && node.Contains(grants, perm) {
			return nil
		}
	}
	return node.Forbidden("permission " + string(perm) + " denied on folder " + folder.UUID)
}

// AccessibleFolders returns the uuids of every folder the principal
// holds the permission on, including the synthesized root when it
// qualifies. Folders are scanned through the repository page by page.
func (r *Resolver) AccessibleFolders(ctx context.Context, auth principal.AuthContext, perm node.Permission) ([]string, error) {
	var uuids []string
	if err := r.IsAllowed(auth, node.RootFolder(), perm); err == nil {
		uuids = append(uuids, node.RootUUID)
	}

	query := filters.OrFilters{{{Field: "mimetype", Operator: filters.OpEqual, Value: node.FolderMimetype}}}
	for token := 1; ; token++ {
		page, err := r.repo.Filter(ctx, query, 100, token)
		if err != nil {
			return nil, err
		}
		if len(page.Nodes) == 0 {
			break
		}
		for _, folder := range page.Nodes {
			if err := r.IsAllowed(auth, folder, perm); err == nil {
				uuids = append(uuids, folder.UUID)
			}
		}
	}
	return uuids, nil
}

// WithPermissionsResolved expands every AND-group so the repository
// query only returns nodes whose parent folder the principal may access
// with the given permission.
func (r *Resolver) WithPermissionsResolved(ctx context.Context, auth principal.AuthContext, of filters.OrFilters, perm node.Permission) (filters.OrFilters, error) {
	if auth.IsAdmin() {
		return of, nil
	}
	allowed, err := r.AccessibleFolders(ctx, auth, perm)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("resolved accessible folders",
		"principal", auth.Principal.Email, "permission", perm, "count", len(allowed))

	values := make([]any, len(allowed))
	for i, uuid := range allowed {
		values[i] = uuid
	}
	out := make(filters.OrFilters, len(of))
	for i, group := range of {
		g := make(filters.Filters, len(group), len(group)+1)
		copy(g, group)
		g = append(g, filters.Filter{Field: "parent", Operator: filters.OpIn, Value: values})
		out[i] = g
	}
	return out, nil
}
