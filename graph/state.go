// Package graph owns the authoritative node and edge collections, the
// bounded undo/redo history, and change notification.
package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/TFMV/forcegraph/models"
	"gonum.org/v1/gonum/spatial/r2"
)

// Sentinel errors for graph mutations.
var (
	// ErrNodeNotFound is returned when an operation names a node that is not
	// present in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound is returned when an operation names an unknown edge.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrSelfLoop is returned when an edge would start and end at the same node.
	ErrSelfLoop = errors.New("self-referential edge")

	// ErrDuplicateEdge is returned when an identical From/To edge exists.
	ErrDuplicateEdge = errors.New("duplicate edge")
)

// DefaultHistoryCapacity is the default number of undo entries kept
const DefaultHistoryCapacity = 10

// Simulation is restarted after every change to the graph
type Simulation interface {
	Start()
	Stop()
}

// Saver persists a graph
type Saver interface {
	Save(nodes []models.Node, edges []models.Edge) error
}

// Loader reads a persisted graph
type Loader interface {
	Load() ([]models.Node, []models.Edge, error)
}

// Options configures a State
type Options struct {
	HistoryCapacity int
	Simulation      Simulation
	Logger          *slog.Logger
}

// State is the single source of truth for the graph. It is safe for
// concurrent use. Callbacks into the simulation never happen while the
// state lock is held.
type State struct {
	mu        sync.RWMutex
	nodes     []models.Node
	edges     []models.Edge
	nextLabel int
	rev       uint64
	undo      []models.Snapshot
	redo      []models.Snapshot
	capacity  int
	sim       Simulation
	logger    *slog.Logger

	subMu   sync.Mutex
	subs    map[int]chan models.Change
	nextSub int
}

// New creates an empty graph state
func New(opts Options) *State {
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = DefaultHistoryCapacity
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &State{
		nodes:     []models.Node{},
		edges:     []models.Edge{},
		nextLabel: 1,
		capacity:  opts.HistoryCapacity,
		sim:       opts.Simulation,
		logger:    opts.Logger,
		subs:      make(map[int]chan models.Change),
	}
}

// SetSimulation attaches the simulation restarted after each change
func (s *State) SetSimulation(sim Simulation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sim = sim
}

func (s *State) simulation() Simulation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sim
}

// halt stops the simulation before a discontinuous change
func (s *State) halt() {
	if sim := s.simulation(); sim != nil {
		sim.Stop()
	}
}

// restart begins a fresh simulation run, which resets the step budget
func (s *State) restart() {
	if sim := s.simulation(); sim != nil {
		sim.Start()
	}
}

// AddNode appends a basic node at pos and returns it. It does not snapshot;
// callers group additive actions behind their own Snapshot call.
func (s *State) AddNode(pos r2.Vec) models.Node {
	return s.add(func(label int) models.Node { return models.NewNode(label, pos) })
}

// AddNote appends a note node carrying text
func (s *State) AddNote(pos r2.Vec, text string) models.Node {
	return s.add(func(label int) models.Node { return models.NewNoteNode(label, pos, text) })
}

func (s *State) add(build func(label int) models.Node) models.Node {
	s.halt()
	defer s.restart()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := build(s.nextLabel)
	s.nextLabel++
	s.nodes = append(s.nodes, n)
	s.commitLocked(models.ChangeAddNode)
	s.logger.Debug("Node added", "id", n.ID, "label", n.Label)
	return n
}

// AddEdge connects from to to. It does not snapshot.
func (s *State) AddEdge(from, to models.NodeID) (models.Edge, error) {
	if err := s.checkEdge(from, to); err != nil {
		return models.Edge{}, err
	}

	s.halt()
	defer s.restart()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEdgeLocked(from, to); err != nil {
		return models.Edge{}, err
	}
	e := models.NewEdge(from, to)
	s.edges = append(s.edges, e)
	s.commitLocked(models.ChangeAddEdge)
	return e, nil
}

func (s *State) checkEdge(from, to models.NodeID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkEdgeLocked(from, to)
}

func (s *State) checkEdgeLocked(from, to models.NodeID) error {
	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfLoop, from)
	}
	if models.IndexOfNode(s.nodes, from) < 0 {
		return fmt.Errorf("%w: source %s", ErrNodeNotFound, from)
	}
	if models.IndexOfNode(s.nodes, to) < 0 {
		return fmt.Errorf("%w: target %s", ErrNodeNotFound, to)
	}
	for _, e := range s.edges {
		if e.From == from && e.To == to {
			return fmt.Errorf("%w: %s -> %s", ErrDuplicateEdge, from, to)
		}
	}
	return nil
}

// DeleteNode snapshots, then removes the node and every edge touching it
func (s *State) DeleteNode(id models.NodeID) error {
	if _, ok := s.Node(id); !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	s.halt()
	defer s.restart()

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := models.IndexOfNode(s.nodes, id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	s.snapshotLocked()
	s.nodes = append(s.nodes[:idx:idx], s.nodes[idx+1:]...)
	s.edges = models.FilterEdges(s.edges, func(e models.Edge) bool { return !e.Touches(id) })
	s.commitLocked(models.ChangeDelete)
	s.logger.Debug("Node deleted", "id", id)
	return nil
}

// DeleteEdge snapshots, then removes the edge
func (s *State) DeleteEdge(id models.EdgeID) error {
	if !s.hasEdge(id) {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
	}

	s.halt()
	defer s.restart()

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := models.IndexOfEdge(s.edges, id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
	}

	s.snapshotLocked()
	s.edges = append(s.edges[:idx:idx], s.edges[idx+1:]...)
	s.commitLocked(models.ChangeDelete)
	return nil
}

func (s *State) hasEdge(id models.EdgeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.IndexOfEdge(s.edges, id) >= 0
}

// MoveNode writes a dragged position and zeroes the node's velocity. It does
// not snapshot; callers snapshot once before a drag begins.
func (s *State) MoveNode(id models.NodeID, pos r2.Vec) error {
	if _, ok := s.Node(id); !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	s.halt()
	defer s.restart()

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := models.IndexOfNode(s.nodes, id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	n := s.nodes[idx]
	n.Position = pos
	n.Velocity = r2.Vec{}
	s.nodes[idx] = n
	s.commitLocked(models.ChangeMove)
	return nil
}

// Replace swaps in a whole new graph, e.g. after loading from disk. Labels
// are kept as given. The previous graph is snapshotted first so the load can
// be undone.
func (s *State) Replace(nodes []models.Node, edges []models.Edge) error {
	return s.replace(nodes, edges, false)
}

// Import swaps in a graph built outside this session. When its labels reach
// below the label counter they are shifted past it, keeping their order, so
// no label handed out earlier is issued again.
func (s *State) Import(nodes []models.Node, edges []models.Edge) error {
	return s.replace(nodes, edges, true)
}

func (s *State) replace(nodes []models.Node, edges []models.Edge, relabel bool) error {
	index := models.NodeIndex(nodes)
	for _, e := range edges {
		if _, ok := index[e.From]; !ok {
			return fmt.Errorf("%w: edge %s source %s", ErrNodeNotFound, e.ID, e.From)
		}
		if _, ok := index[e.To]; !ok {
			return fmt.Errorf("%w: edge %s target %s", ErrNodeNotFound, e.ID, e.To)
		}
	}

	s.halt()
	defer s.restart()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshotLocked()
	s.nodes = models.CloneNodes(nodes)
	s.edges = models.CloneEdges(edges)
	if relabel {
		shiftLabels(s.nodes, s.nextLabel)
	}
	if next := models.MaxLabel(s.nodes) + 1; next > s.nextLabel {
		s.nextLabel = next
	}
	s.commitLocked(models.ChangeReplace)
	s.logger.Info("Graph replaced", "nodes", len(nodes), "edges", len(edges))
	return nil
}

// shiftLabels moves every label up by the same amount so the smallest one is
// at least floor
func shiftLabels(nodes []models.Node, floor int) {
	if len(nodes) == 0 {
		return
	}
	lowest := nodes[0].Label
	for _, n := range nodes[1:] {
		lowest = min(lowest, n.Label)
	}
	if lowest >= floor {
		return
	}
	offset := floor - lowest
	for i := range nodes {
		nodes[i].Label += offset
	}
}

// Snapshot pushes the current graph onto the undo stack and clears the redo
// stack. The oldest entry is evicted once capacity is exceeded.
func (s *State) Snapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotLocked()
}

func (s *State) snapshotLocked() {
	s.undo = s.pushBounded(s.undo, models.NewSnapshot(s.nodes, s.edges))
	s.redo = nil
}

func (s *State) pushBounded(stack []models.Snapshot, snap models.Snapshot) []models.Snapshot {
	stack = append(stack, snap)
	if over := len(stack) - s.capacity; over > 0 {
		stack = append([]models.Snapshot(nil), stack[over:]...)
	}
	return stack
}

// Undo restores the most recent snapshot. It returns false when there is
// nothing to undo.
func (s *State) Undo() bool {
	return s.travel(&s.undo, &s.redo, models.ChangeUndo)
}

// Redo reapplies the most recently undone state. It returns false when there
// is nothing to redo.
func (s *State) Redo() bool {
	return s.travel(&s.redo, &s.undo, models.ChangeRedo)
}

// travel pops from one history stack, pushing the current state onto the other
func (s *State) travel(from, to *[]models.Snapshot, reason models.ChangeReason) bool {
	s.mu.RLock()
	empty := len(*from) == 0
	s.mu.RUnlock()
	if empty {
		return false
	}

	s.halt()
	defer s.restart()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(*from) == 0 {
		return false
	}
	*to = s.pushBounded(*to, models.NewSnapshot(s.nodes, s.edges))
	last := len(*from) - 1
	snap := (*from)[last]
	*from = (*from)[:last]

	s.nodes = snap.Nodes()
	s.edges = snap.Edges()
	s.commitLocked(reason)
	s.logger.Debug("History restored", "reason", string(reason), "undo", len(s.undo), "redo", len(s.redo))
	return true
}

// CanUndo reports whether Undo would change the graph
func (s *State) CanUndo() bool {
	return s.UndoDepth() > 0
}

// CanRedo reports whether Redo would change the graph
func (s *State) CanRedo() bool {
	return s.RedoDepth() > 0
}

// UndoDepth returns the number of undo entries
func (s *State) UndoDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.undo)
}

// RedoDepth returns the number of redo entries
func (s *State) RedoDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.redo)
}

// commitLocked bumps the revision and notifies subscribers
func (s *State) commitLocked(reason models.ChangeReason) {
	s.rev++
	s.notifyLocked(reason)
}
