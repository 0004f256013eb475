package models

// NodeFilter is a function type used to filter nodes in queries
type NodeFilter func(node Node) bool

// EdgeFilter is a function type used to filter edges in queries
type EdgeFilter func(edge Edge) bool

// IndexOfNode returns the position of the node with the given ID, or -1
func IndexOfNode(nodes []Node, id NodeID) int {
	for i, n := range nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// IndexOfEdge returns the position of the edge with the given ID, or -1
func IndexOfEdge(edges []Edge, id EdgeID) int {
	for i, e := range edges {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// FindOutgoingEdges returns all edges originating from a node
func FindOutgoingEdges(edges []Edge, id NodeID) []Edge {
	return FilterEdges(edges, func(e Edge) bool { return e.From == id })
}

// FindIncomingEdges returns all edges targeting a node
func FindIncomingEdges(edges []Edge, id NodeID) []Edge {
	return FilterEdges(edges, func(e Edge) bool { return e.To == id })
}

// FilterNodes returns nodes that match the provided filter function
func FilterNodes(nodes []Node, filter NodeFilter) []Node {
	result := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if filter(n) {
			result = append(result, n)
		}
	}
	return result
}

// FilterEdges returns edges that match the provided filter function
func FilterEdges(edges []Edge, filter EdgeFilter) []Edge {
	result := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if filter(e) {
			result = append(result, e)
		}
	}
	return result
}

// NodeIndex maps node IDs to their slice position
func NodeIndex(nodes []Node) map[NodeID]int {
	idx := make(map[NodeID]int, len(nodes))
	for i, n := range nodes {
		idx[n.ID] = i
	}
	return idx
}

// MaxLabel returns the largest label among nodes, or 0 for none
func MaxLabel(nodes []Node) int {
	max := 0
	for _, n := range nodes {
		if n.Label > max {
			max = n.Label
		}
	}
	return max
}
