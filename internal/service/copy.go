package service

import (
	"context"

	"github.com/arkivo/arkivo/internal/node"
	"github.com/arkivo/arkivo/internal/principal"
)

// Copy clones a node into another folder with a fresh uuid. The fid is
// stripped and regenerated, never duplicated. File nodes also get their
// blob copied.
func (s *Service) Copy(ctx context.Context, auth principal.AuthContext, uuid, targetParent string) (*node.Node, error) {
	source, err := s.Get(ctx, auth, uuid)
	if err != nil {
		return nil, err
	}
	if source.IsRoot() {
		return nil, node.BadRequest("the root folder cannot be copied")
	}
	return s.copyInto(ctx, auth, source, targetParent, source.Title)
}

// Duplicate clones a node next to itself with a disambiguating title
// suffix.
func (s *Service) Duplicate(ctx context.Context, auth principal.AuthContext, uuid string) (*node.Node, error) {
	source, err := s.Get(ctx, auth, uuid)
	if err != nil {
		return nil, err
	}
	if source.IsRoot() {
		return nil, node.BadRequest("the root folder cannot be duplicated")
	}
	return s.copyInto(ctx, auth, source, source.Parent, source.Title+" (copy)")
}

func (s *Service) copyInto(ctx context.Context, auth principal.AuthContext, source *node.Node, targetParent, title string) (*node.Node, error) {
	clone := source.Clone()
	clone.UUID = ""
	clone.Fid = ""
	clone.Title = title
	clone.Parent = targetParent
	clone.Locked = false
	clone.LockedBy = ""
	clone.UnlockAuthorizedGroups = nil

	if !source.IsFile() {
		return s.Create(ctx, auth, clone)
	}

	f, err := s.storage.Read(ctx, source.UUID)
	if err != nil {
		return nil, node.Unknown("reading source blob", err)
	}
	f.Mimetype = source.Mimetype
	return s.CreateFile(ctx, auth, clone, f)
}
