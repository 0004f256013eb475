package models

import (
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"
)

// NewNodeID returns a fresh random node identifier
func NewNodeID() NodeID {
	return NodeID(uuid.New().String())
}

// NewEdgeID returns a fresh random edge identifier
func NewEdgeID() EdgeID {
	return EdgeID(uuid.New().String())
}

// NewNode creates a basic node at the given position with the default radius
func NewNode(label int, pos r2.Vec) Node {
	return Node{
		ID:       NewNodeID(),
		Label:    label,
		Position: pos,
		Radius:   DefaultRadius,
		Kind:     KindBasic,
	}
}

// NewNoteNode creates a note node carrying text
func NewNoteNode(label int, pos r2.Vec, note string) Node {
	n := NewNode(label, pos)
	n.Kind = KindNote
	n.Note = note
	return n
}

// NewEdge creates a directed edge with a unique ID
func NewEdge(from, to NodeID) Edge {
	return Edge{
		ID:   NewEdgeID(),
		From: from,
		To:   to,
	}
}

// Speed returns the magnitude of the node's velocity
func (n Node) Speed() float64 {
	return r2.Norm(n.Velocity)
}

// Touches reports whether the edge starts or ends at id
func (e Edge) Touches(id NodeID) bool {
	return e.From == id || e.To == id
}

// NewSnapshot captures copies of nodes and edges. Later changes to the
// argument slices do not affect the snapshot.
func NewSnapshot(nodes []Node, edges []Edge) Snapshot {
	return Snapshot{
		nodes: CloneNodes(nodes),
		edges: CloneEdges(edges),
	}
}

// Nodes returns a copy of the snapshot's nodes
func (s Snapshot) Nodes() []Node {
	return CloneNodes(s.nodes)
}

// Edges returns a copy of the snapshot's edges
func (s Snapshot) Edges() []Edge {
	return CloneEdges(s.edges)
}

// NodeCount returns the number of nodes in the snapshot
func (s Snapshot) NodeCount() int {
	return len(s.nodes)
}

// EdgeCount returns the number of edges in the snapshot
func (s Snapshot) EdgeCount() int {
	return len(s.edges)
}

// CloneNodes copies a node slice. A nil input yields an empty slice.
func CloneNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	copy(out, nodes)
	return out
}

// CloneEdges copies an edge slice. A nil input yields an empty slice.
func CloneEdges(edges []Edge) []Edge {
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}
