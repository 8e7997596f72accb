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

// Patch is a partial node update. Nil fields are left untouched; a
// non-nil Properties map replaces the caller-supplied property values
// before aspect validation resolves the effective bag.
type Patch struct {
	Title       *string
	Description *string
	Parent      *string
	Tags        *[]string
	Related     *[]string
	Aspects     *[]string
	Properties  node.Properties
	Filters     *filters.OrFilters
	Permissions *node.Permissions
}

func (p Patch) apply(n *node.Node) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if p.Parent != nil {
		n.Parent = *p.Parent
	}
	if p.Tags != nil {
		n.Tags = append([]string(nil), *p.Tags...)
	}
	if p.Related != nil {
		n.Related = append([]string(nil), *p.Related...)
	}
	if p.Aspects != nil {
		n.Aspects = append([]string(nil), *p.Aspects...)
	}
	if p.Properties != nil {
		props := make(node.Properties, len(p.Properties))
		for k, v := range p.Properties {
			props[k] = v
		}
		n.Properties = props
	}
	if p.Filters != nil {
		n.Filters = p.Filters.Clone()
	}
	if p.Permissions != nil {
		perms := p.Permissions.Clone()
		n.Permissions = &perms
	}
}

// Update mutates a node. The caller needs Write on the current parent;
// locked nodes only accept updates from the lock owner or the authorized
// unlock groups; readonly properties silently keep their stored values;
// a folder whose own filters change must still satisfy them with every
// existing child.
func (s *Service) Update(ctx context.Context, auth principal.AuthContext, uuid string, patch Patch) (*node.Node, error) {
	if uuid == node.RootUUID {
		return nil, node.BadRequest("the root folder cannot be updated")
	}
	current, err := s.repo.GetByID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	parent, err := s.resolveFolder(ctx, current.Parent)
	if err != nil {
		return nil, err
	}
	if err := s.authz.IsAllowed(auth, parent, node.Write); err != nil {
		return nil, err
	}
	if err := s.checkLockGate(auth, current); err != nil {
		return nil, err
	}

	updated := current.Clone()
	patch.apply(updated)
	if !updated.IsFolder() {
		updated.Permissions = nil
	}
	if updated.IsSmartFolder() {
		if err := validFilters(updated.Filters); err != nil {
			return nil, err
		}
	}

	// Moving requires Write on the destination too.
	targetParent := parent
	if updated.Parent != current.Parent {
		targetParent, err = s.resolveFolder(ctx, updated.Parent)
		if err != nil {
			return nil, err
		}
		if err := s.authz.IsAllowed(auth, targetParent, node.Write); err != nil {
			return nil, err
		}
		if current.IsFolder() {
			if err := s.ensureNotDescendant(ctx, current.UUID, targetParent); err != nil {
				return nil, err
			}
		}
	}

	applied, err := s.appliedAspects(ctx, updated)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(ctx, updated, current, applied); err != nil {
		return nil, err
	}

	if len(targetParent.Filters) > 0 {
		ok, err := updated.Satisfies(targetParent.Filters)
		if err != nil {
			return nil, node.BadRequest("invalid parent filters: " + err.Error())
		}
		if !ok {
			return nil, node.BadRequest("node does not satisfy the filters of folder " + targetParent.UUID)
		}
	}

	// A folder's own filter change must not orphan existing children.
	if updated.IsFolder() && patch.Filters != nil {
		if err := validFilters(updated.Filters); err != nil {
			return nil, err
		}
		if err := s.checkChildrenSatisfy(ctx, updated); err != nil {
			return nil, err
		}
	}

	updated.ModifiedTime = time.Now()
	updated.ComputeFulltext(aspects.SearchableKeys(applied))

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}

	changes := diffNodes(current, updated)
	s.logger.Info("node updated", "uuid", uuid, "changes", len(changes))
	s.publish(auth, events.NodeUpdated, events.UpdatedPayload{UUID: uuid, Changes: changes})
	return updated, nil
}

// UpdateFile replaces a file node's content. The replacement mimetype
// must match the node's.
func (s *Service) UpdateFile(ctx context.Context, auth principal.AuthContext, uuid string, f blob.File) (*node.Node, error) {
	current, err := s.repo.GetByID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if !current.IsFile() {
		return nil, node.BadRequest("node " + uuid + " has no content to replace")
	}
	if f.Mimetype != "" && f.Mimetype != current.Mimetype {
		return nil, node.BadRequest("mimetype mismatch: node is " + current.Mimetype + ", got " + f.Mimetype)
	}
	parent, err := s.resolveFolder(ctx, current.Parent)
	if err != nil {
		return nil, err
	}
	if err := s.authz.IsAllowed(auth, parent, node.Write); err != nil {
		return nil, err
	}
	if err := s.checkLockGate(auth, current); err != nil {
		return nil, err
	}

	opts := blob.WriteOpts{Title: current.Title, Parent: current.Parent, Mimetype: current.Mimetype}
	if err := s.storage.Write(ctx, uuid, f, opts); err != nil {
		return nil, node.Unknown("blob write failed", err)
	}

	updated := current.Clone()
	updated.Size = int64(len(f.Content))
	updated.ModifiedTime = time.Now()
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	s.publish(auth, events.NodeUpdated, events.UpdatedPayload{UUID: uuid, Changes: diffNodes(current, updated)})
	return updated, nil
}

// ensureNotDescendant rejects moving a folder under itself or any of its
// descendants, which would detach the subtree into a parent cycle. The
// walk climbs from the move target to the root, which terminates because
// the stored hierarchy is acyclic.
func (s *Service) ensureNotDescendant(ctx context.Context, folderUUID string, target *node.Node) error {
	for cur := target; !cur.IsRoot(); {
		if cur.UUID == folderUUID {
			return node.BadRequest("folder " + folderUUID + " cannot be moved under its own subtree")
		}
		next, err := s.resolveFolder(ctx, cur.Parent)
		if err != nil {
			return err
		}
		cur = next
	}
	return nil
}

// checkLockGate rejects mutations of locked nodes unless the caller owns
// the lock or belongs to the authorized unlock groups.
func (s *Service) checkLockGate(auth principal.AuthContext, n *node.Node) error {
	if !n.Locked {
		return nil
	}
	if n.LockedBy == auth.Principal.Email {
		return nil
	}
	for _, g := range n.UnlockAuthorizedGroups {
		if auth.InGroup(g) {
			return nil
		}
	}
	return node.BadRequest("node " + n.UUID + " is locked by " + n.LockedBy)
}

// checkChildrenSatisfy verifies every existing child against a folder's
// new filters, scanning page by page.
func (s *Service) checkChildrenSatisfy(ctx context.Context, folder *node.Node) error {
	for token := 1; ; token++ {
		children, err := s.children(ctx, folder.UUID, token)
		if err != nil {
			return err
		}
		if len(children) == 0 {
			return nil
		}
		for _, child := range children {
			ok, err := child.Satisfies(folder.Filters)
			if err != nil {
				return node.BadRequest("invalid folder filters: " + err.Error())
			}
			if !ok {
				return node.BadRequest("child " + child.UUID + " does not satisfy the new filters of folder " + folder.UUID)
			}
		}
	}
}
