// Package node defines the universal content entity and its invariants:
// files, folders, metadata-only entities and smart folders, all
// discriminated by mimetype, plus the folder permission model and the
// domain error taxonomy.
package node

import (
	"strings"
	"time"

	"github.com/arkivo/arkivo/internal/filters"
)

// Mimetypes that discriminate the non-file node variants. Any other
// mimetype is a regular file node.
const (
	// FolderMimetype marks a folder node that contains children.
	FolderMimetype = "application/vnd.arkivo.folder"
	// SmartFolderMimetype marks a folder whose contents are computed by
	// evaluating a stored filter set.
	SmartFolderMimetype = "application/vnd.arkivo.smartfolder"
	// MetaNodeMimetype marks a metadata-only business entity.
	MetaNodeMimetype = "application/vnd.arkivo.metanode"
)

// Properties is the aspect-owned property bag, keyed "aspectUuid:propName".
type Properties map[string]any

// Node is the universal content entity.
type Node struct {
	UUID         string     `json:"uuid" jsonschema:"description=Primary identifier"`
	Fid          string     `json:"fid,omitempty" jsonschema:"description=Friendly identifier derived from the title"`
	Title        string     `json:"title" jsonschema:"description=Display title"`
	Description  string     `json:"description,omitempty" jsonschema:"description=Free-form description"`
	Mimetype     string     `json:"mimetype" jsonschema:"description=Mimetype discriminating the node variant"`
	Parent       string     `json:"parent" jsonschema:"description=UUID of the containing folder"`
	Owner        string     `json:"owner" jsonschema:"description=Owner email"`
	Group        string     `json:"group,omitempty" jsonschema:"description=Owning group"`
	CreatedTime  time.Time  `json:"createdTime" jsonschema:"description=Creation timestamp"`
	ModifiedTime time.Time  `json:"modifiedTime" jsonschema:"description=Last modification timestamp"`
	Size         int64      `json:"size,omitempty" jsonschema:"description=Content size in bytes (file variants)"`
	Fulltext     string     `json:"fulltext,omitempty" jsonschema:"description=Computed full-text index content"`
	Tags         []string   `json:"tags,omitempty" jsonschema:"description=Free-form tags"`
	Related      []string   `json:"related,omitempty" jsonschema:"description=UUIDs of related nodes"`
	Aspects      []string   `json:"aspects,omitempty" jsonschema:"description=UUIDs of applied aspects"`
	Properties   Properties `json:"properties,omitempty" jsonschema:"description=Aspect-owned property values"`

	// Permissions is set on folder variants only. New folders without
	// explicit permissions inherit a copy of the parent's at creation.
	Permissions *Permissions `json:"permissions,omitempty" jsonschema:"description=Folder permission sets"`

	// Filters holds a folder's structural constraint on its children, or
	// a smart folder's stored query.
	Filters filters.OrFilters `json:"filters,omitempty" jsonschema:"description=Folder child constraints or smart folder query"`

	Locked                 bool     `json:"locked,omitempty" jsonschema:"description=Whether the node is locked"`
	LockedBy               string   `json:"lockedBy,omitempty" jsonschema:"description=Email of the locking principal"`
	UnlockAuthorizedGroups []string `json:"unlockAuthorizedGroups,omitempty" jsonschema:"description=Groups allowed to unlock"`
}

// IsFolder reports whether the node is a regular folder.
func (n *Node) IsFolder() bool { return n.Mimetype == FolderMimetype }

// IsSmartFolder reports whether the node is a smart folder.
func (n *Node) IsSmartFolder() bool { return n.Mimetype == SmartFolderMimetype }

// IsMetaNode reports whether the node is a metadata-only entity.
func (n *Node) IsMetaNode() bool { return n.Mimetype == MetaNodeMimetype }

// IsFile reports whether the node is a file-like variant carrying content.
func (n *Node) IsFile() bool {
	return !n.IsFolder() && !n.IsSmartFolder() && !n.IsMetaNode()
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Tags = append([]string(nil), n.Tags...)
	c.Related = append([]string(nil), n.Related...)
	c.Aspects = append([]string(nil), n.Aspects...)
	c.UnlockAuthorizedGroups = append([]string(nil), n.UnlockAuthorizedGroups...)
	if n.Properties != nil {
		c.Properties = make(Properties, len(n.Properties))
		for k, v := range n.Properties {
			c.Properties[k] = v
		}
	}
	if n.Permissions != nil {
		p := n.Permissions.Clone()
		c.Permissions = &p
	}
	c.Filters = n.Filters.Clone()
	return &c
}

// FilterFields flattens the node into the field map the filter algebra
// evaluates against: the fixed core field set plus the property bag.
func (n *Node) FilterFields() map[string]any {
	fields := map[string]any{
		"uuid":         n.UUID,
		"fid":          n.Fid,
		"title":        n.Title,
		"mimetype":     n.Mimetype,
		"parent":       n.Parent,
		"owner":        n.Owner,
		"createdTime":  n.CreatedTime.UTC().Format(time.RFC3339),
		"modifiedTime": n.ModifiedTime.UTC().Format(time.RFC3339),
		"size":         n.Size,
		"tags":         n.Tags,
		"aspects":      n.Aspects,
		"related":      n.Related,
		"fulltext":     n.Fulltext,
	}
	for k, v := range n.Properties {
		fields[k] = v
	}
	return fields
}

// Satisfies evaluates a filter set against the node.
func (n *Node) Satisfies(of filters.OrFilters) (bool, error) {
	return filters.Evaluate(of, n.FilterFields())
}

// ComputeFulltext recomputes the node's full-text index content from its
// title, description, tags and searchable string properties.
func (n *Node) ComputeFulltext(searchableKeys map[string]bool) {
	parts := []string{n.Title, n.Description}
	parts = append(parts, n.Tags...)
	for key, v := range n.Properties {
		if searchableKeys != nil && !searchableKeys[key] {
			continue
		}
		if s, ok := v.(string); ok {
			parts = append(parts, s)
		}
	}
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.ToLower(p))
	}
	n.Fulltext = b.String()
}
