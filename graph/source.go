package graph

import (
	"fmt"

	"github.com/TFMV/forcegraph/models"
)

// subscriberBuffer is the per-subscriber channel depth. Changes are dropped
// for subscribers that fall further behind.
const subscriberBuffer = 16

// NodeCount returns the number of nodes
func (s *State) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the number of edges
func (s *State) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// Nodes returns a copy of the nodes
func (s *State) Nodes() []models.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneNodes(s.nodes)
}

// Edges returns a copy of the edges
func (s *State) Edges() []models.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneEdges(s.edges)
}

// Node looks up a node by ID
func (s *State) Node(id models.NodeID) (models.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := models.IndexOfNode(s.nodes, id); idx >= 0 {
		return s.nodes[idx], true
	}
	return models.Node{}, false
}

// State returns an immutable copy of the whole graph
func (s *State) State() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.NewSnapshot(s.nodes, s.edges)
}

// Revision returns the structural revision. It changes on every mutation
// except layout publishes.
func (s *State) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}

// Read returns copies of the nodes and edges with the current revision
func (s *State) Read() ([]models.Node, []models.Edge, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneNodes(s.nodes), models.CloneEdges(s.edges), s.rev
}

// ApplyLayout writes the positions and velocities computed from revision
// rev. It reports false without writing when the graph has changed since.
func (s *State) ApplyLayout(rev uint64, nodes []models.Node) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rev != s.rev || len(nodes) != len(s.nodes) {
		return false
	}
	for i := range nodes {
		if nodes[i].ID != s.nodes[i].ID {
			return false
		}
	}
	for i := range nodes {
		s.nodes[i].Position = nodes[i].Position
		s.nodes[i].Velocity = nodes[i].Velocity
	}
	s.notifyLocked(models.ChangeLayout)
	return true
}

// Subscribe returns a channel receiving every change and a function that
// cancels the subscription and closes the channel. Sends never block; a
// subscriber that falls behind misses changes.
func (s *State) Subscribe() (<-chan models.Change, func()) {
	ch := make(chan models.Change, subscriberBuffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (s *State) notifyLocked(reason models.ChangeReason) {
	change := models.Change{Reason: reason, Revision: s.rev}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

// SaveTo persists a consistent copy of the graph. A failed save leaves the
// state untouched.
func (s *State) SaveTo(saver Saver) error {
	snap := s.State()
	if err := saver.Save(snap.Nodes(), snap.Edges()); err != nil {
		s.logger.Error("Failed to save graph", "error", err)
		return fmt.Errorf("save graph: %w", err)
	}
	s.logger.Info("Graph saved", "nodes", snap.NodeCount(), "edges", snap.EdgeCount())
	return nil
}

// LoadFrom replaces the graph with the persisted one. On failure the current
// graph is kept.
func (s *State) LoadFrom(loader Loader) error {
	nodes, edges, err := loader.Load()
	if err != nil {
		s.logger.Error("Failed to load graph", "error", err)
		return fmt.Errorf("load graph: %w", err)
	}
	return s.Replace(nodes, edges)
}
