// Package models provides the value types shared by every layer of forcegraph.
// Nodes, edges and snapshots are plain values; callers always work on copies.
package models

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// NodeID identifies a node for its whole lifetime
type NodeID string

// EdgeID identifies an edge for its whole lifetime
type EdgeID string

// DefaultRadius is the radius given to every newly created node
const DefaultRadius = 10.0

// NodeKind tags the variant a node belongs to
type NodeKind uint8

const (
	// KindBasic nodes carry only the shared fields
	KindBasic NodeKind = iota
	// KindNote nodes additionally carry a short text note
	KindNote
)

// String returns the persisted name of the kind
func (k NodeKind) String() string {
	switch k {
	case KindNote:
		return "note"
	default:
		return "basic"
	}
}

// ParseNodeKind maps a persisted kind name back to its tag.
// Unknown names fall back to KindBasic.
func ParseNodeKind(s string) NodeKind {
	if s == "note" {
		return KindNote
	}
	return KindBasic
}

// Node represents a node in the graph
type Node struct {
	ID       NodeID   `json:"id"`
	Label    int      `json:"label"` // Monotonic, never reused
	Position r2.Vec   `json:"position"`
	Velocity r2.Vec   `json:"velocity"`
	Radius   float64  `json:"radius"`
	Kind     NodeKind `json:"kind"`
	Note     string   `json:"note,omitempty"` // Only meaningful for KindNote
}

// Edge represents a directed edge between two nodes
type Edge struct {
	ID   EdgeID `json:"id"`
	From NodeID `json:"from"`
	To   NodeID `json:"to"`
}

// Snapshot is an immutable copy of the whole graph, used for undo/redo
type Snapshot struct {
	nodes []Node
	edges []Edge
}

// Change describes why observers are being notified
type Change struct {
	Reason   ChangeReason `json:"reason"`
	Revision uint64       `json:"revision"`
}

// ChangeReason enumerates the sources of state change notifications
type ChangeReason string

const (
	ChangeLayout  ChangeReason = "layout"
	ChangeAddNode ChangeReason = "add_node"
	ChangeAddEdge ChangeReason = "add_edge"
	ChangeDelete  ChangeReason = "delete"
	ChangeMove    ChangeReason = "move"
	ChangeUndo    ChangeReason = "undo"
	ChangeRedo    ChangeReason = "redo"
	ChangeReplace ChangeReason = "replace"
)
