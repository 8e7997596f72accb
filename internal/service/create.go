package service

import (
	"context"
	"time"

	"github.com/arkivo/arkivo/internal/aspects"
	"github.com/arkivo/arkivo/internal/blob"
	"github.com/arkivo/arkivo/internal/events"
	"github.com/arkivo/arkivo/internal/filters"
	"github.com/arkivo/arkivo/internal/node"
	"github.com/arkivo/arkivo/internal/principal"
)

// Create persists a new metadata node (folder, smart folder or meta
// node). The caller needs Write on the parent folder; new folders
// without explicit permissions inherit the parent's snapshot; the node
// must satisfy the parent's structural filters and its aspect schemas.
func (s *Service) Create(ctx context.Context, auth principal.AuthContext, n *node.Node) (*node.Node, error) {
	if n.Mimetype == "" {
		return nil, node.BadRequest("mimetype is required")
	}
	return s.create(ctx, auth, n.Clone(), nil)
}

// CreateFile persists a new file node together with its blob. When the
// blob write fails, the already-persisted repository record is rolled
// back with a compensating delete.
func (s *Service) CreateFile(ctx context.Context, auth principal.AuthContext, n *node.Node, f blob.File) (*node.Node, error) {
	c := n.Clone()
	if c.Mimetype == "" {
		c.Mimetype = f.Mimetype
	}
	if c.Title == "" {
		c.Title = f.Name
	}
	c.Size = int64(len(f.Content))
	if !c.IsFile() {
		return nil, node.BadRequest("mimetype " + c.Mimetype + " is not a file variant")
	}
	return s.create(ctx, auth, c, &f)
}

func (s *Service) create(ctx context.Context, auth principal.AuthContext, n *node.Node, f *blob.File) (*node.Node, error) {
	if n.Title == "" {
		return nil, node.BadRequest("title is required")
	}
	if n.UUID == node.RootUUID || n.Fid == node.RootUUID {
		return nil, node.BadRequest("the root folder identifier is reserved")
	}
	if n.IsSmartFolder() {
		if err := validFilters(n.Filters); err != nil {
			return nil, err
		}
	}

	if n.Parent == "" {
		n.Parent = node.RootUUID
	}
	parent, err := s.resolveFolder(ctx, n.Parent)
	if err != nil {
		return nil, err
	}
	if err := s.authz.IsAllowed(auth, parent, node.Write); err != nil {
		return nil, err
	}

	if err := s.assignIdentifiers(ctx, n); err != nil {
		return nil, err
	}
	now := time.Now()
	n.CreatedTime = now
	n.ModifiedTime = now
	if n.Owner == "" {
		n.Owner = auth.Principal.Email
	}
	if n.IsFolder() {
		if n.Permissions == nil {
			perms := parentPermissionSnapshot(parent)
			n.Permissions = &perms
		}
		if n.Group == "" && len(auth.Principal.Groups) > 0 {
			n.Group = auth.Principal.Groups[0]
		}
	} else {
		n.Permissions = nil
	}

	// Folder-level structural constraint.
	if len(parent.Filters) > 0 {
		ok, err := n.Satisfies(parent.Filters)
		if err != nil {
			return nil, node.BadRequest("invalid parent filters: " + err.Error())
		}
		if !ok {
			return nil, node.BadRequest("node does not satisfy the filters of folder " + parent.UUID)
		}
	}

	applied, err := s.appliedAspects(ctx, n)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(ctx, n, nil, applied); err != nil {
		return nil, err
	}
	n.ComputeFulltext(aspects.SearchableKeys(applied))

	if err := s.repo.Add(ctx, n); err != nil {
		return nil, err
	}
	if f != nil {
		opts := blob.WriteOpts{Title: n.Title, Parent: n.Parent, Mimetype: n.Mimetype}
		if err := s.storage.Write(ctx, n.UUID, *f, opts); err != nil {
			// Compensating delete; its own failure is logged, not
			// propagated, to avoid masking the original error.
			if rbErr := s.repo.Delete(ctx, n.UUID); rbErr != nil {
				s.logger.Error("rollback of node record failed", "uuid", n.UUID, "err", rbErr)
			}
			return nil, node.Unknown("blob write failed", err)
		}
	}

	s.logger.Info("node created", "uuid", n.UUID, "mimetype", n.Mimetype, "parent", n.Parent)
	s.publish(auth, events.NodeCreated, events.CreatedPayload{Node: n.Clone()})
	return n, nil
}

// assignIdentifiers fills uuid and fid when absent, disambiguating
// generated fid collisions. A caller-supplied fid that is already taken
// is rejected rather than silently disambiguated.
func (s *Service) assignIdentifiers(ctx context.Context, n *node.Node) error {
	if n.UUID == "" {
		n.UUID = node.NewUUID()
	}
	if n.Fid == "" {
		fid := node.FidFromTitle(n.Title)
		if _, err := s.repo.GetByFid(ctx, fid); err == nil {
			fid = node.DisambiguateFid(fid)
		}
		n.Fid = fid
		return nil
	}
	if _, err := s.repo.GetByFid(ctx, n.Fid); err == nil {
		return node.BadRequest("fid " + n.Fid + " is already in use")
	}
	return nil
}

// parentPermissionSnapshot copies the parent's permissions for a new
// folder; later changes to the parent do not retroactively affect it.
func parentPermissionSnapshot(parent *node.Node) node.Permissions {
	if parent.Permissions != nil {
		return parent.Permissions.Clone()
	}
	return node.DefaultPermissions()
}

// validFilters rejects filter sets carrying unknown operators up front
// so a smart folder never stores an unevaluable query.
func validFilters(of filters.OrFilters) error {
	for _, group := range of {
		for _, f := range group {
			if !f.Operator.Valid() {
				return node.BadRequest("invalid filter operator " + string(f.Operator))
			}
			if f.Field == "" {
				return node.BadRequest("filter field must not be empty")
			}
		}
	}
	return nil
}
