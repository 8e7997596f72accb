// Package service implements the node lifecycle orchestrator: CRUD,
// copy/duplicate, lock/unlock and smart folder evaluation, with every
// mutation gated by the authorization resolver and the aspect validator.
package service

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/arkivo/arkivo/internal/aspects"
	"github.com/arkivo/arkivo/internal/authz"
	"github.com/arkivo/arkivo/internal/blob"
	"github.com/arkivo/arkivo/internal/events"
	"github.com/arkivo/arkivo/internal/filters"
	"github.com/arkivo/arkivo/internal/find"
	"github.com/arkivo/arkivo/internal/node"
	"github.com/arkivo/arkivo/internal/principal"
	"github.com/arkivo/arkivo/internal/repo"
)

// WorkflowChecker reports whether a node is bound to an active workflow
// instance, which blocks deletion. The workflow engine itself is an
// external collaborator.
type WorkflowChecker interface {
	IsBound(ctx context.Context, uuid string) (bool, error)
}

// Deps are the collaborators a Service needs.
type Deps struct {
	Repo     repo.NodeRepository
	Storage  blob.Storage
	Aspects  aspects.ConfigRepository
	Authz    *authz.Resolver
	Find     *find.Engine
	Bus      *events.Bus
	Workflow WorkflowChecker // optional
	Logger   *slog.Logger    // optional
}

// Service orchestrates all node mutations.
type Service struct {
	repo      repo.NodeRepository
	storage   blob.Storage
	aspects   aspects.ConfigRepository
	validator *aspects.Validator
	authz     *authz.Resolver
	find      *find.Engine
	bus       *events.Bus
	workflow  WorkflowChecker
	logger    *slog.Logger
}

// New wires a Service from its collaborators.
func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		repo:      d.Repo,
		storage:   d.Storage,
		aspects:   d.Aspects,
		validator: aspects.NewValidator(d.Repo),
		authz:     d.Authz,
		find:      d.Find,
		bus:       d.Bus,
		workflow:  d.Workflow,
		logger:    logger,
	}
}

// Get returns a node by uuid after checking Read on its parent folder.
// The root folder is synthesized, never read from the repository.
func (s *Service) Get(ctx context.Context, auth principal.AuthContext, uuid string) (*node.Node, error) {
	if uuid == node.RootUUID {
		return node.RootFolder(), nil
	}
	n, err := s.repo.GetByID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	parent, err := s.resolveFolder(ctx, n.Parent)
	if err != nil {
		return nil, err
	}
	if err := s.authz.IsAllowed(auth, parent, node.Read); err != nil {
		return nil, err
	}
	return n, nil
}

// GetByFid returns a node by friendly id after checking Read.
func (s *Service) GetByFid(ctx context.Context, auth principal.AuthContext, fid string) (*node.Node, error) {
	n, err := s.repo.GetByFid(ctx, fid)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, auth, n.UUID)
}

// Export reads a file node's blob after checking Export on its parent.
func (s *Service) Export(ctx context.Context, auth principal.AuthContext, uuid string) (*node.Node, blob.File, error) {
	n, err := s.repo.GetByID(ctx, uuid)
	if err != nil {
		return nil, blob.File{}, err
	}
	if !n.IsFile() {
		return nil, blob.File{}, node.BadRequest("node " + uuid + " has no content to export")
	}
	parent, err := s.resolveFolder(ctx, n.Parent)
	if err != nil {
		return nil, blob.File{}, err
	}
	if err := s.authz.IsAllowed(auth, parent, node.Export); err != nil {
		return nil, blob.File{}, err
	}
	f, err := s.storage.Read(ctx, uuid)
	if err != nil {
		return nil, blob.File{}, err
	}
	return n, f, nil
}

// Find delegates a structured query to the find engine.
func (s *Service) Find(ctx context.Context, auth principal.AuthContext, of filters.OrFilters, pageSize, pageToken int) (repo.Page, error) {
	return s.find.Find(ctx, auth, of, pageSize, pageToken)
}

// FindText delegates a string query to the find engine.
func (s *Service) FindText(ctx context.Context, auth principal.AuthContext, query string, pageSize, pageToken int) (repo.Page, error) {
	return s.find.FindText(ctx, auth, query, pageSize, pageToken)
}

// Evaluate computes a smart folder's virtual contents by running its
// stored filter set through the find engine.
func (s *Service) Evaluate(ctx context.Context, auth principal.AuthContext, uuid string) ([]*node.Node, error) {
	n, err := s.Get(ctx, auth, uuid)
	if err != nil {
		return nil, err
	}
	if !n.IsSmartFolder() {
		return nil, node.BadRequest("node " + uuid + " is not a smart folder")
	}
	var out []*node.Node
	for token := 1; ; token++ {
		page, err := s.find.Find(ctx, auth, n.Filters, find.DefaultPageSize, token)
		if err != nil {
			return nil, err
		}
		if len(page.Nodes) == 0 {
			break
		}
		out = append(out, page.Nodes...)
	}
	return out, nil
}

// resolveFolder loads a folder by uuid, synthesizing the root. Missing
// or wrong-kind targets surface as FolderNotFoundError.
func (s *Service) resolveFolder(ctx context.Context, uuid string) (*node.Node, error) {
	if uuid == "" || uuid == node.RootUUID {
		return node.RootFolder(), nil
	}
	n, err := s.repo.GetByID(ctx, uuid)
	if err != nil {
		if node.IsNotFound(err) {
			return nil, node.FolderNotFound(uuid)
		}
		return nil, err
	}
	if !n.IsFolder() {
		return nil, node.FolderNotFound(uuid)
	}
	return n, nil
}

// appliedAspects loads every aspect applied to the node. Unknown aspect
// uuids aggregate into one validation error.
func (s *Service) appliedAspects(ctx context.Context, n *node.Node) ([]aspects.Aspect, error) {
	var applied []aspects.Aspect
	var violations []string
	for _, uuid := range n.Aspects {
		a, err := s.aspects.Get(ctx, uuid)
		if err != nil {
			violations = append(violations, "unknown aspect "+uuid)
			continue
		}
		applied = append(applied, a)
	}
	if len(violations) > 0 {
		return nil, node.ValidationFailed(violations...)
	}
	return applied, nil
}

// children lists one page of a folder's direct children.
func (s *Service) children(ctx context.Context, parentUUID string, pageToken int) ([]*node.Node, error) {
	query := filters.OrFilters{{{Field: "parent", Operator: filters.OpEqual, Value: parentUUID}}}
	page, err := s.repo.Filter(ctx, query, 100, pageToken)
	if err != nil {
		return nil, err
	}
	return page.Nodes, nil
}

// publish emits a bus event unless the bus is absent.
func (s *Service) publish(auth principal.AuthContext, eventType string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Type: eventType, Tenant: auth.Tenant, Payload: payload})
}

// diffNodes computes the per-field old/new changes carried by update
// events.
func diffNodes(old, updated *node.Node) []events.FieldChange {
	var changes []events.FieldChange
	add := func(field string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			changes = append(changes, events.FieldChange{Field: field, Old: a, New: b})
		}
	}
	add("title", old.Title, updated.Title)
	add("description", old.Description, updated.Description)
	add("parent", old.Parent, updated.Parent)
	add("tags", old.Tags, updated.Tags)
	add("related", old.Related, updated.Related)
	add("aspects", old.Aspects, updated.Aspects)
	add("properties", old.Properties, updated.Properties)
	add("filters", old.Filters, updated.Filters)
	add("permissions", old.Permissions, updated.Permissions)
	add("size", old.Size, updated.Size)
	add("locked", old.Locked, updated.Locked)
	return changes
}
