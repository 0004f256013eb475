package physics

import (
	"math"

	"github.com/TFMV/forcegraph/models"
	"gonum.org/v1/gonum/spatial/r2"
)

// MaxDepth caps subdivision. Deeper insertions land in the leaf bucket
// regardless of position, which bounds the tree for pathological clusters.
const MaxDepth = 64

// Cell is one square region of the Barnes-Hut quadtree. A cell is either a
// leaf holding a bucket of nodes, or internal with exactly four children and
// an empty bucket.
type Cell struct {
	Bounds       r2.Box
	CenterOfMass r2.Vec
	TotalMass    float64
	Children     *[4]*Cell
	Nodes        []models.Node
}

// NewCell creates an empty leaf covering bounds
func NewCell(bounds r2.Box) *Cell {
	return &Cell{Bounds: bounds}
}

// Build constructs a quadtree over the given nodes. The tree is meant to be
// used for a single simulation step and then dropped.
func Build(nodes []models.Node) *Cell {
	if len(nodes) == 0 {
		return nil
	}
	root := NewCell(rootBounds(nodes))
	for _, n := range nodes {
		root.Insert(n, 0)
	}
	return root
}

// rootBounds returns a padded square around every node position
func rootBounds(nodes []models.Node) r2.Box {
	lo, hi := nodes[0].Position, nodes[0].Position
	for _, n := range nodes[1:] {
		lo.X = math.Min(lo.X, n.Position.X)
		lo.Y = math.Min(lo.Y, n.Position.Y)
		hi.X = math.Max(hi.X, n.Position.X)
		hi.Y = math.Max(hi.Y, n.Position.Y)
	}

	side := math.Max(hi.X-lo.X, hi.Y-lo.Y)
	side *= 1.2
	if side < 1 {
		side = 1
	}
	half := side / 2
	center := r2.Vec{X: (lo.X + hi.X) / 2, Y: (lo.Y + hi.Y) / 2}
	return r2.Box{
		Min: r2.Vec{X: center.X - half, Y: center.Y - half},
		Max: r2.Vec{X: center.X + half, Y: center.Y + half},
	}
}

// IsLeaf reports whether the cell has no children
func (c *Cell) IsLeaf() bool {
	return c.Children == nil
}

// Width returns the side length of the cell
func (c *Cell) Width() float64 {
	return c.Bounds.Max.X - c.Bounds.Min.X
}

// Insert adds a node to the subtree rooted at c. depth is the depth of c.
func (c *Cell) Insert(n models.Node, depth int) {
	if !c.IsLeaf() {
		c.Children[c.quadrant(n.Position)].Insert(n, depth+1)
		c.aggregate()
		return
	}

	if len(c.Nodes) == 0 || depth >= MaxDepth || c.coincident(n.Position) {
		m := c.TotalMass
		c.CenterOfMass = r2.Scale(1/(m+1), r2.Add(r2.Scale(m, c.CenterOfMass), n.Position))
		c.TotalMass = m + 1
		c.Nodes = append(c.Nodes, n)
		return
	}

	c.subdivide(depth)
	c.Children[c.quadrant(n.Position)].Insert(n, depth+1)
	c.aggregate()
}

// coincident reports whether every occupant sits exactly at p
func (c *Cell) coincident(p r2.Vec) bool {
	for _, o := range c.Nodes {
		if o.Position != p {
			return false
		}
	}
	return true
}

// subdivide turns a leaf into an internal cell and pushes its bucket down
func (c *Cell) subdivide(depth int) {
	lo, hi := c.Bounds.Min, c.Bounds.Max
	mid := r2.Vec{X: (lo.X + hi.X) / 2, Y: (lo.Y + hi.Y) / 2}

	c.Children = &[4]*Cell{
		NewCell(r2.Box{Min: lo, Max: mid}),
		NewCell(r2.Box{Min: r2.Vec{X: mid.X, Y: lo.Y}, Max: r2.Vec{X: hi.X, Y: mid.Y}}),
		NewCell(r2.Box{Min: r2.Vec{X: lo.X, Y: mid.Y}, Max: r2.Vec{X: mid.X, Y: hi.Y}}),
		NewCell(r2.Box{Min: mid, Max: hi}),
	}

	occupants := c.Nodes
	c.Nodes = nil
	for _, o := range occupants {
		c.Children[c.quadrant(o.Position)].Insert(o, depth+1)
	}
}

// quadrant picks the child index for p: bit 0 is east, bit 1 is south
func (c *Cell) quadrant(p r2.Vec) int {
	midX := (c.Bounds.Min.X + c.Bounds.Max.X) / 2
	midY := (c.Bounds.Min.Y + c.Bounds.Max.Y) / 2
	q := 0
	if p.X >= midX {
		q |= 1
	}
	if p.Y >= midY {
		q |= 2
	}
	return q
}

// aggregate recomputes mass and center of mass from the children
func (c *Cell) aggregate() {
	var mass float64
	var weighted r2.Vec
	for _, child := range c.Children {
		if child.TotalMass == 0 {
			continue
		}
		mass += child.TotalMass
		weighted = r2.Add(weighted, r2.Scale(child.TotalMass, child.CenterOfMass))
	}
	c.TotalMass = mass
	if mass > 0 {
		c.CenterOfMass = r2.Scale(1/mass, weighted)
	}
}

// Force returns the approximate repulsion acting on query from every node in
// the subtree. Cells whose width/distance ratio falls below theta are
// treated as a single point mass at their center of mass.
func (c *Cell) Force(query models.Node, theta float64, rep *Repulsion) r2.Vec {
	if c == nil || c.TotalMass == 0 {
		return r2.Vec{}
	}

	if c.IsLeaf() {
		var total r2.Vec
		for _, o := range c.Nodes {
			if o.ID == query.ID {
				continue
			}
			total = r2.Add(total, rep.From(query, o.Position, 1))
		}
		return total
	}

	d := r2.Norm(r2.Sub(query.Position, c.CenterOfMass))
	if d > 0 && c.Width()/d < theta {
		return rep.From(query, c.CenterOfMass, c.TotalMass)
	}

	var total r2.Vec
	for _, child := range c.Children {
		total = r2.Add(total, child.Force(query, theta, rep))
	}
	return total
}

// Count returns the number of nodes stored in the subtree
func (c *Cell) Count() int {
	if c == nil {
		return 0
	}
	if c.IsLeaf() {
		return len(c.Nodes)
	}
	n := 0
	for _, child := range c.Children {
		n += child.Count()
	}
	return n
}

// Theta returns the Barnes-Hut opening threshold for a graph of n nodes.
// Small graphs get an accurate 0.5, large graphs a cheaper 1.2.
func Theta(n int) float64 {
	const (
		small, large   = 50, 500
		tight, relaxed = 0.5, 1.2
	)
	switch {
	case n <= small:
		return tight
	case n >= large:
		return relaxed
	default:
		return tight + (relaxed-tight)*float64(n-small)/float64(large-small)
	}
}
