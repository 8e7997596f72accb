package service

import (
	"context"
	"time"

	"github.com/arkivo/arkivo/internal/events"
	"github.com/arkivo/arkivo/internal/node"
	"github.com/arkivo/arkivo/internal/principal"
)

// Lock locks a node against updates from other principals. groups names
// the groups authorized to unlock; when empty it defaults to the locking
// principal's own groups. Locking a folder cascades to all
// not-yet-locked descendants, attributed to the lock-system principal so
// ordinary permission checks don't block the cascade. The cascade is
// sequential and best-effort.
func (s *Service) Lock(ctx context.Context, auth principal.AuthContext, uuid string, groups []string) (*node.Node, error) {
	if uuid == node.RootUUID {
		return nil, node.BadRequest("the root folder cannot be locked")
	}
	n, err := s.repo.GetByID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	parent, err := s.resolveFolder(ctx, n.Parent)
	if err != nil {
		return nil, err
	}
	if err := s.authz.IsAllowed(auth, parent, node.Write); err != nil {
		return nil, err
	}
	if n.Locked {
		return nil, node.BadRequest("node " + uuid + " is already locked by " + n.LockedBy)
	}

	if len(groups) == 0 {
		groups = auth.Principal.Groups
	}
	locked := n.Clone()
	locked.Locked = true
	locked.LockedBy = auth.Principal.Email
	locked.UnlockAuthorizedGroups = append([]string(nil), groups...)
	locked.ModifiedTime = time.Now()
	if err := s.repo.Update(ctx, locked); err != nil {
		return nil, err
	}
	s.publish(auth, events.NodeUpdated, events.UpdatedPayload{UUID: uuid, Changes: diffNodes(n, locked)})

	if locked.IsFolder() {
		s.cascadeLock(ctx, auth, locked.UUID)
	}
	return locked, nil
}

// Unlock releases a lock. The caller must be the original locker or
// belong to the authorized group set. Locks owned by the lock-system
// principal cannot be released directly; unlocking the parent folder
// releases them through the cascade.
func (s *Service) Unlock(ctx context.Context, auth principal.AuthContext, uuid string) (*node.Node, error) {
	n, err := s.repo.GetByID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if !n.Locked {
		return nil, node.BadRequest("node " + uuid + " is not locked")
	}
	if n.LockedBy == principal.LockSystemEmail && auth.Principal.Email != principal.LockSystemEmail {
		return nil, node.BadRequest("node " + uuid + " is locked through its folder; unlock the folder instead")
	}
	if !s.mayUnlock(auth, n) {
		return nil, node.Forbidden("principal " + auth.Principal.Email + " may not unlock node " + uuid)
	}

	unlocked := n.Clone()
	unlocked.Locked = false
	unlocked.LockedBy = ""
	unlocked.UnlockAuthorizedGroups = nil
	unlocked.ModifiedTime = time.Now()
	if err := s.repo.Update(ctx, unlocked); err != nil {
		return nil, err
	}
	s.publish(auth, events.NodeUpdated, events.UpdatedPayload{UUID: uuid, Changes: diffNodes(n, unlocked)})

	if unlocked.IsFolder() {
		s.cascadeUnlock(ctx, auth, unlocked.UUID)
	}
	return unlocked, nil
}

func (s *Service) mayUnlock(auth principal.AuthContext, n *node.Node) bool {
	if auth.IsAdmin() || auth.Principal.Email == principal.LockSystemEmail {
		return true
	}
	if n.LockedBy == auth.Principal.Email {
		return true
	}
	for _, g := range n.UnlockAuthorizedGroups {
		if auth.InGroup(g) {
			return true
		}
	}
	return false
}

// cascadeLock locks every not-yet-locked descendant under the
// lock-system principal, walking the subtree with an explicit work list.
func (s *Service) cascadeLock(ctx context.Context, auth principal.AuthContext, folderUUID string) {
	sys := principal.System(auth.Tenant)
	queue := []string{folderUUID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for token := 1; ; token++ {
			children, err := s.children(ctx, current, token)
			if err != nil {
				s.logger.Warn("lock cascade: listing children failed", "folder", current, "err", err)
				break
			}
			if len(children) == 0 {
				break
			}
			for _, child := range children {
				if child.IsFolder() {
					queue = append(queue, child.UUID)
				}
				if child.Locked {
					continue
				}
				locked := child.Clone()
				locked.Locked = true
				locked.LockedBy = principal.LockSystemEmail
				locked.UnlockAuthorizedGroups = nil
				locked.ModifiedTime = time.Now()
				if err := s.repo.Update(ctx, locked); err != nil {
					s.logger.Warn("lock cascade: locking child failed", "uuid", child.UUID, "err", err)
					continue
				}
				s.publish(sys, events.NodeUpdated, events.UpdatedPayload{UUID: child.UUID, Changes: diffNodes(child, locked)})
			}
		}
	}
}

// cascadeUnlock releases every descendant lock owned by the lock-system
// principal.
func (s *Service) cascadeUnlock(ctx context.Context, auth principal.AuthContext, folderUUID string) {
	sys := principal.System(auth.Tenant)
	queue := []string{folderUUID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for token := 1; ; token++ {
			children, err := s.children(ctx, current, token)
			if err != nil {
				s.logger.Warn("unlock cascade: listing children failed", "folder", current, "err", err)
				break
			}
			if len(children) == 0 {
				break
			}
			for _, child := range children {
				if child.IsFolder() {
					queue = append(queue, child.UUID)
				}
				if !child.Locked || child.LockedBy != principal.LockSystemEmail {
					continue
				}
				unlocked := child.Clone()
				unlocked.Locked = false
				unlocked.LockedBy = ""
				unlocked.UnlockAuthorizedGroups = nil
				unlocked.ModifiedTime = time.Now()
				if err := s.repo.Update(ctx, unlocked); err != nil {
					s.logger.Warn("unlock cascade: unlocking child failed", "uuid", child.UUID, "err", err)
					continue
				}
				s.publish(sys, events.NodeUpdated, events.UpdatedPayload{UUID: child.UUID, Changes: diffNodes(child, unlocked)})
			}
		}
	}
}
