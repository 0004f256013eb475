package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestNewNode(t *testing.T) {
	a := NewNode(1, r2.Vec{X: 3, Y: 4})
	b := NewNode(2, r2.Vec{})

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, DefaultRadius, a.Radius)
	assert.Equal(t, KindBasic, a.Kind)
	assert.Zero(t, a.Speed())

	note := NewNoteNode(3, r2.Vec{}, "todo")
	assert.Equal(t, KindNote, note.Kind)
	assert.Equal(t, "todo", note.Note)
}

func TestNodeKindNames(t *testing.T) {
	for _, k := range []NodeKind{KindBasic, KindNote} {
		assert.Equal(t, k, ParseNodeKind(k.String()))
	}
	assert.Equal(t, KindBasic, ParseNodeKind("widget"))
}

func TestSnapshotIsIsolated(t *testing.T) {
	a := NewNode(1, r2.Vec{X: 1, Y: 1})
	b := NewNode(2, r2.Vec{X: 2, Y: 2})
	nodes := []Node{a, b}
	edges := []Edge{NewEdge(a.ID, b.ID)}

	snap := NewSnapshot(nodes, edges)
	nodes[0].Position = r2.Vec{X: 99, Y: 99}
	edges[0].To = "elsewhere"

	got := snap.Nodes()
	require.Len(t, got, 2)
	assert.Equal(t, r2.Vec{X: 1, Y: 1}, got[0].Position, "argument changes do not leak in")
	assert.Equal(t, b.ID, snap.Edges()[0].To)

	got[1].Label = 42
	snap.Edges()[0].From = "other"
	assert.Equal(t, 2, snap.Nodes()[1].Label, "returned copies do not leak back")
	assert.Equal(t, a.ID, snap.Edges()[0].From)

	assert.Equal(t, 2, snap.NodeCount())
	assert.Equal(t, 1, snap.EdgeCount())
}

func TestEmptySnapshot(t *testing.T) {
	snap := NewSnapshot(nil, nil)
	assert.NotNil(t, snap.Nodes())
	assert.Empty(t, snap.Nodes())
	assert.Empty(t, snap.Edges())
}

func TestEdgeQueries(t *testing.T) {
	a, b, c := NewNode(1, r2.Vec{}), NewNode(2, r2.Vec{}), NewNode(3, r2.Vec{})
	ab, bc, ca := NewEdge(a.ID, b.ID), NewEdge(b.ID, c.ID), NewEdge(c.ID, a.ID)
	edges := []Edge{ab, bc, ca}

	assert.Equal(t, []Edge{bc}, FindOutgoingEdges(edges, b.ID))
	assert.Equal(t, []Edge{ab}, FindIncomingEdges(edges, b.ID))
	assert.Empty(t, FindOutgoingEdges(edges, "ghost"))

	assert.True(t, ab.Touches(a.ID))
	assert.False(t, bc.Touches(a.ID))

	assert.Equal(t, 1, IndexOfEdge(edges, bc.ID))
	assert.Equal(t, -1, IndexOfEdge(edges, "ghost"))
}

func TestNodeQueries(t *testing.T) {
	nodes := []Node{NewNode(4, r2.Vec{}), NewNoteNode(9, r2.Vec{}, "n"), NewNode(2, r2.Vec{})}

	assert.Equal(t, 9, MaxLabel(nodes))
	assert.Zero(t, MaxLabel(nil))
	assert.Equal(t, 2, IndexOfNode(nodes, nodes[2].ID))
	assert.Equal(t, -1, IndexOfNode(nodes, "ghost"))

	index := NodeIndex(nodes)
	assert.Len(t, index, 3)
	assert.Equal(t, 1, index[nodes[1].ID])

	notes := FilterNodes(nodes, func(n Node) bool { return n.Kind == KindNote })
	require.Len(t, notes, 1)
	assert.Equal(t, 9, notes[0].Label)
}
