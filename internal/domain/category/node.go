// Package category holds the category tree model observed by the cache engine.
// Nodes are created and mutated by the persistence layer; this package only
// models them and resolves their shard roots.
package category

import (
	"fmt"
)

// Status filters which part of the tree a read operates on
type Status string

const (
	StatusActive Status = "active"
	StatusHidden Status = "hidden"
)

// Filter selects the visibility variant of a cached read
type Filter string

const (
	FilterActive Filter = "active"
	FilterAll    Filter = "all"
)

// Valid reports whether the filter is one of the two supported variants
func (f Filter) Valid() bool {
	return f == FilterActive || f == FilterAll
}

// Node is a single category in the tree.
//
// Invariants maintained by the persistence layer:
//   - the tree is acyclic
//   - Depth = parent.Depth + 1
//   - RootID is the topmost ancestor, or the node's own id for top-level nodes
type Node struct {
	ID       int64  `json:"id"`
	ParentID *int64 `json:"parent_id"`
	RootID   int64  `json:"root_id"`
	Depth    int    `json:"depth"`
	Status   Status `json:"status"`
	Position int    `json:"position"`
	Name     string `json:"name"`
}

// IsRoot reports whether the node is a top-level category
func (n *Node) IsRoot() bool {
	return n.ParentID == nil
}

// IsActive reports whether the node is visible to active-filtered reads
func (n *Node) IsActive() bool {
	return n.Status == StatusActive
}

func (n *Node) String() string {
	if n.ParentID == nil {
		return fmt.Sprintf("category %d (root)", n.ID)
	}
	return fmt.Sprintf("category %d (parent %d)", n.ID, *n.ParentID)
}
