package authz

import (
	"testing"
	"time"

	"github.com/arkivo/arkivo/internal/filters"
	"github.com/arkivo/arkivo/internal/node"
	"github.com/arkivo/arkivo/internal/principal"
	"github.com/arkivo/arkivo/internal/repo"
)

func userCtx(email string, groups ...string) principal.AuthContext {
	return principal.AuthContext{
		Principal: principal.Principal{Email: email, Groups: groups},
		Mode:      principal.ModeDirect,
		Tenant:    "test",
	}
}

func testFolder() *node.Node {
	return &node.Node{
		UUID:     "f1",
		Title:    "Folder",
		Mimetype: node.FolderMimetype,
		Parent:   node.RootUUID,
		Owner:    "owner@example.com",
		Group:    "finance",
		Permissions: &node.Permissions{
			Anonymous:     []node.Permission{},
			Group:         []node.Permission{node.Read, node.Write},
			Authenticated: []node.Permission{node.Read},
			Advanced:      map[string][]node.Permission{"auditors": {node.Read, node.Export}},
		},
	}
}

func TestIsAllowedResolutionOrder(t *testing.T) {
	r := New(repo.NewMemory(), nil)
	folder := testFolder()

	tests := []struct {
		name string
		ctx  principal.AuthContext
		perm node.Permission
		ok   bool
	}{
		{"admin bypasses everything", principal.Root("test"), node.Export, true},
		{"admins group member", userCtx("x@example.com", principal.AdminsGroup), node.Write, true},
		{"owner gets any permission", userCtx("owner@example.com"), node.Export, true},
		{"group member write", userCtx("bob@example.com", "finance"), node.Write, true},
		{"group member export denied", userCtx("bob@example.com", "finance"), node.Export, false},
		{"authenticated read", userCtx("carol@example.com"), node.Read, true},
		{"authenticated write denied", userCtx("carol@example.com"), node.Write, false},
		{"advanced grant export", userCtx("dan@example.com", "auditors"), node.Export, true},
		{"advanced grant write denied", userCtx("dan@example.com", "auditors"), node.Write, false},
		{"anonymous denied", principal.Anonymous("test"), node.Read, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.IsAllowed(tt.ctx, folder, tt.perm)
			if tt.ok && err != nil {
				t.Errorf("denied: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Error("allowed, want denial")
				} else if !node.IsForbidden(err) {
					t.Errorf("denial is %v, want forbidden", err)
				}
			}
		})
	}
}

func TestIsAllowedAnonymousGrant(t *testing.T) {
	r := New(repo.NewMemory(), nil)
	folder := testFolder()
	folder.Permissions.Anonymous = []node.Permission{node.Read}
	if err := r.IsAllowed(principal.Anonymous("test"), folder, node.Read); err != nil {
		t.Errorf("anonymous read with grant denied: %v", err)
	}
	if err := r.IsAllowed(principal.Anonymous("test"), folder, node.Write); err == nil {
		t.Error("anonymous write allowed without a grant")
	}
}

func TestIsAllowedNilPermissionsDefaults(t *testing.T) {
	r := New(repo.NewMemory(), nil)
	folder := &node.Node{UUID: "f2", Mimetype: node.FolderMimetype, Owner: "owner@example.com", Group: "finance"}
	if err := r.IsAllowed(userCtx("bob@example.com", "finance"), folder, node.Write); err != nil {
		t.Errorf("default group write denied: %v", err)
	}
	if err := r.IsAllowed(userCtx("carol@example.com"), folder, node.Read); err != nil {
		t.Errorf("default authenticated read denied: %v", err)
	}
	if err := r.IsAllowed(userCtx("carol@example.com"), folder, node.Write); err == nil {
		t.Error("default authenticated write allowed")
	}
}

func TestIsAllowedRootFolder(t *testing.T) {
	r := New(repo.NewMemory(), nil)
	root := node.RootFolder()
	if err := r.IsAllowed(userCtx("bob@example.com"), root, node.Read); err != nil {
		t.Errorf("authenticated root read denied: %v", err)
	}
	if err := r.IsAllowed(principal.Anonymous("test"), root, node.Read); err != nil {
		t.Errorf("anonymous root read denied: %v", err)
	}
	if err := r.IsAllowed(userCtx("bob@example.com"), root, node.Write); err == nil {
		t.Error("non-admin root write allowed")
	}
	if err := r.IsAllowed(principal.Root("test"), root, node.Write); err != nil {
		t.Errorf("admin root write denied: %v", err)
	}
}

func TestIsAllowedNonFolder(t *testing.T) {
	r := New(repo.NewMemory(), nil)
	doc := &node.Node{UUID: "d1", Mimetype: "application/pdf"}
	err := r.IsAllowed(principal.Root("test"), doc, node.Read)
	if !node.IsNotFound(err) {
		t.Errorf("non-folder check = %v, want folder not found", err)
	}
}

func TestAccessibleFolders(t *testing.T) {
	ctx := t.Context()
	m := repo.NewMemory()
	base := time.Now()
	open := testFolder()
	open.UUID = "open"
	open.CreatedTime = base
	closed := testFolder()
	closed.UUID = "closed"
	closed.Group = "hr"
	closed.Owner = "someone@example.com"
	closed.Permissions = &node.Permissions{}
	closed.CreatedTime = base.Add(time.Second)
	doc := &node.Node{UUID: "doc", Mimetype: "application/pdf", Parent: "open", CreatedTime: base}
	for _, n := range []*node.Node{open, closed, doc} {
		if err := m.Add(ctx, n); err != nil {
			t.Fatal(err)
		}
	}

	r := New(m, nil)
	got, err := r.AccessibleFolders(ctx, userCtx("bob@example.com", "finance"), node.Read)
	if err != nil {
		t.Fatalf("AccessibleFolders failed: %v", err)
	}
	want := map[string]bool{node.RootUUID: true, "open": true}
	if len(got) != len(want) {
		t.Fatalf("folders = %v, want root and open", got)
	}
	for _, uuid := range got {
		if !want[uuid] {
			t.Errorf("unexpected folder %q", uuid)
		}
	}
}

// A principal's result set grows monotonically with its group set: adding
// a group can only unlock more folders, never fewer.
func TestAccessibleFoldersMonotonic(t *testing.T) {
	ctx := t.Context()
	m := repo.NewMemory()
	base := time.Now()
	for i, group := range []string{"finance", "hr", "legal"} {
		f := testFolder()
		f.UUID = group
		f.Owner = "someone@example.com"
		f.Group = group
		f.Permissions = &node.Permissions{Group: []node.Permission{node.Read}}
		f.CreatedTime = base.Add(time.Duration(i) * time.Second)
		if err := m.Add(ctx, f); err != nil {
			t.Fatal(err)
		}
	}
	r := New(m, nil)

	var prev int
	groups := []string{}
	for _, g := range []string{"finance", "hr", "legal"} {
		groups = append(groups, g)
		got, err := r.AccessibleFolders(ctx, userCtx("bob@example.com", groups...), node.Read)
		if err != nil {
			t.Fatalf("AccessibleFolders failed: %v", err)
		}
		if len(got) < prev {
			t.Fatalf("adding group %q shrank the folder set: %v", g, got)
		}
		prev = len(got)
	}
	if prev != 4 { // root plus the three group folders
		t.Errorf("final folder count = %d, want 4", prev)
	}
}

func TestWithPermissionsResolved(t *testing.T) {
	ctx := t.Context()
	m := repo.NewMemory()
	open := testFolder()
	open.UUID = "open"
	if err := m.Add(ctx, open); err != nil {
		t.Fatal(err)
	}
	r := New(m, nil)

	query := filters.OrFilters{
		{{Field: "mimetype", Operator: filters.OpEqual, Value: "application/pdf"}},
		{{Field: "tags", Operator: filters.OpContains, Value: "x"}},
	}

	// Admin queries pass through untouched.
	adminOut, err := r.WithPermissionsResolved(ctx, principal.Root("test"), query, node.Read)
	if err != nil {
		t.Fatalf("WithPermissionsResolved failed: %v", err)
	}
	if len(adminOut) != 2 || len(adminOut[0]) != 1 || len(adminOut[1]) != 1 {
		t.Errorf("admin query was rewritten: %v", adminOut)
	}

	out, err := r.WithPermissionsResolved(ctx, userCtx("bob@example.com", "finance"), query, node.Read)
	if err != nil {
		t.Fatalf("WithPermissionsResolved failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("group count = %d", len(out))
	}
	for _, group := range out {
		last := group[len(group)-1]
		if last.Field != "parent" || last.Operator != filters.OpIn {
			t.Fatalf("group %v missing the parent restriction", group)
		}
		values, ok := last.Value.([]any)
		if !ok {
			t.Fatalf("parent restriction value = %T", last.Value)
		}
		found := map[any]bool{}
		for _, v := range values {
			found[v] = true
		}
		if !found[node.RootUUID] || !found["open"] {
			t.Errorf("allowed folders = %v", values)
		}
	}
	// The input query must not be mutated.
	if len(query[0]) != 1 || len(query[1]) != 1 {
		t.Error("input query mutated by the rewrite")
	}
}
