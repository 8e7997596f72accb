package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/arkivo/arkivo/internal/events"
	"github.com/arkivo/arkivo/internal/node"
	"github.com/arkivo/arkivo/internal/principal"
)

// Delete removes a node. Folders are emptied first, depth-first, with
// child failures aggregated into one UnknownError; file blobs are
// removed from storage; a deletion event is published per node actually
// removed. Workflow-bound nodes cannot be deleted.
func (s *Service) Delete(ctx context.Context, auth principal.AuthContext, uuid string) error {
	if uuid == node.RootUUID {
		return node.BadRequest("the root folder cannot be deleted")
	}
	n, err := s.repo.GetByID(ctx, uuid)
	if err != nil {
		return err
	}
	parent, err := s.resolveFolder(ctx, n.Parent)
	if err != nil {
		return err
	}
	if err := s.authz.IsAllowed(auth, parent, node.Write); err != nil {
		return err
	}
	if err := s.checkLockGate(auth, n); err != nil {
		return err
	}
	if s.workflow != nil {
		bound, err := s.workflow.IsBound(ctx, uuid)
		if err != nil {
			return node.Unknown("workflow check failed", err)
		}
		if bound {
			return node.BadRequest("node " + uuid + " is bound to an active workflow instance")
		}
	}

	if n.IsFolder() {
		if failures := s.deleteDescendants(ctx, auth, n.UUID); len(failures) > 0 {
			return node.Unknown(
				fmt.Sprintf("failed to delete %d descendant(s) of %s", len(failures), uuid),
				fmt.Errorf("%s", strings.Join(failures, "; ")))
		}
	}
	return s.deleteOne(ctx, auth, n)
}

// deleteDescendants removes a folder's subtree depth-first using an
// explicit work list, collecting failure messages instead of stopping at
// the first one.
func (s *Service) deleteDescendants(ctx context.Context, auth principal.AuthContext, folderUUID string) []string {
	var failures []string

	// Phase 1: walk the subtree breadth-first to build the full list.
	var subtree []*node.Node
	queue := []string{folderUUID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for token := 1; ; token++ {
			children, err := s.children(ctx, current, token)
			if err != nil {
				failures = append(failures, fmt.Sprintf("listing children of %s: %v", current, err))
				break
			}
			if len(children) == 0 {
				break
			}
			for _, child := range children {
				subtree = append(subtree, child)
				if child.IsFolder() {
					queue = append(queue, child.UUID)
				}
			}
		}
	}

	// Phase 2: delete leaves first by walking the list in reverse.
	for i := len(subtree) - 1; i >= 0; i-- {
		if err := s.deleteOne(ctx, auth, subtree[i]); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", subtree[i].UUID, err))
		}
	}
	return failures
}

// deleteOne removes a single node, its blob when file-like, and emits
// the deletion event.
func (s *Service) deleteOne(ctx context.Context, auth principal.AuthContext, n *node.Node) error {
	if err := s.repo.Delete(ctx, n.UUID); err != nil {
		return err
	}
	if n.IsFile() {
		if err := s.storage.Delete(ctx, n.UUID); err != nil && !node.IsNotFound(err) {
			// The record is gone; an orphaned blob is logged, not fatal.
			s.logger.Warn("blob delete failed", "uuid", n.UUID, "err", err)
		}
	}
	s.logger.Info("node deleted", "uuid", n.UUID, "mimetype", n.Mimetype)
	s.publish(auth, events.NodeDeleted, events.DeletedPayload{Node: n.Clone()})
	return nil
}
