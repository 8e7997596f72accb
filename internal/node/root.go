package node

import "time"

// RootUUID is the well-known uuid of the synthesized root folder. The
// root is never persisted; every lookup materializes it through
// RootFolder so the special case lives in exactly one place.
const RootUUID = "--root--"

// rootEpoch keeps the synthesized root stable across calls.
var rootEpoch = time.Unix(0, 0).UTC()

// RootFolder synthesizes the root folder. Everyone may read it; only
// admins may write to it, which the authorization resolver enforces on
// top of this permission set.
func RootFolder() *Node {
	return &Node{
		UUID:         RootUUID,
		Fid:          RootUUID,
		Title:        "Root",
		Mimetype:     FolderMimetype,
		Owner:        "",
		CreatedTime:  rootEpoch,
		ModifiedTime: rootEpoch,
		Permissions: &Permissions{
			Anonymous:     []Permission{Read},
			Group:         []Permission{},
			Authenticated: []Permission{Read},
		},
	}
}

// IsRoot reports whether the node is the synthesized root folder.
func (n *Node) IsRoot() bool { return n.UUID == RootUUID }
