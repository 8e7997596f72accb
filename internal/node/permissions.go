package node

// Permission is an access right on a folder.
type Permission string

const (
	// Read allows listing and reading folder contents.
	Read Permission = "Read"
	// Write allows creating, updating and deleting folder contents.
	Write Permission = "Write"
	// Export allows exporting folder contents out of the repository.
	Export Permission = "Export"
)

// Permissions are the per-audience permission sets of a folder.
type Permissions struct {
	// Anonymous applies to everyone, authenticated or not.
	Anonymous []Permission `json:"anonymous" jsonschema:"description=Permissions granted to everyone"`
	// Group applies to members of the folder's owning group.
	Group []Permission `json:"group" jsonschema:"description=Permissions granted to the owning group"`
	// Authenticated applies to any non-anonymous principal.
	Authenticated []Permission `json:"authenticated" jsonschema:"description=Permissions granted to authenticated principals"`
	// Advanced grants permissions to specific groups by id.
	Advanced map[string][]Permission `json:"advanced,omitempty" jsonschema:"description=Per-group permission grants"`
}

// Clone returns a deep copy.
func (p Permissions) Clone() Permissions {
	c := Permissions{
		Anonymous:     append([]Permission(nil), p.Anonymous...),
		Group:         append([]Permission(nil), p.Group...),
		Authenticated: append([]Permission(nil), p.Authenticated...),
	}
	if p.Advanced != nil {
		c.Advanced = make(map[string][]Permission, len(p.Advanced))
		for g, perms := range p.Advanced {
			c.Advanced[g] = append([]Permission(nil), perms...)
		}
	}
	return c
}

// Contains reports whether the permission list includes p.
func Contains(list []Permission, p Permission) bool {
	for _, item := range list {
		if item == p {
			return true
		}
	}
	return false
}

// DefaultPermissions is the permission snapshot applied to folders created
// without an explicit set and without a parent to inherit from.
func DefaultPermissions() Permissions {
	return Permissions{
		Anonymous:     []Permission{},
		Group:         []Permission{Read, Write, Export},
		Authenticated: []Permission{Read},
	}
}
