// Package storage persists a graph as a pair of JSON documents.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/TFMV/forcegraph/models"
	"gonum.org/v1/gonum/spatial/r2"
)

// File names used inside a FileStore directory
const (
	NodesFile = "nodes.json"
	EdgesFile = "edges.json"
)

// Store saves and loads whole graphs
type Store interface {
	Save(nodes []models.Node, edges []models.Edge) error
	Load() ([]models.Node, []models.Edge, error)
}

// ErrorKind classifies storage failures
type ErrorKind string

const (
	KindEncodingFailed    ErrorKind = "encoding failed"
	KindWritingFailed     ErrorKind = "writing failed"
	KindLoadingFailed     ErrorKind = "loading failed"
	KindDecodingFailed    ErrorKind = "decoding failed"
	KindInconsistentFiles ErrorKind = "inconsistent files"
)

// StorageError describes a failed save or load
type StorageError struct {
	Kind ErrorKind
	Path string
	Err  error
}

// Sentinels for errors.Is
var (
	ErrEncodingFailed    = &StorageError{Kind: KindEncodingFailed}
	ErrWritingFailed     = &StorageError{Kind: KindWritingFailed}
	ErrLoadingFailed     = &StorageError{Kind: KindLoadingFailed}
	ErrDecodingFailed    = &StorageError{Kind: KindDecodingFailed}
	ErrInconsistentFiles = &StorageError{Kind: KindInconsistentFiles}
)

func (e *StorageError) Error() string {
	msg := string(e.Kind)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches any StorageError of the same kind
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	return ok && t.Kind == e.Kind
}

type nodeRecord struct {
	ID     string  `json:"id"`
	Label  int     `json:"label"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Radius float64 `json:"radius"`
	Kind   string  `json:"kind"`
	Note   string  `json:"note,omitempty"`
}

type edgeRecord struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

func toNodeRecords(nodes []models.Node) []nodeRecord {
	out := make([]nodeRecord, len(nodes))
	for i, n := range nodes {
		out[i] = nodeRecord{
			ID:     string(n.ID),
			Label:  n.Label,
			X:      n.Position.X,
			Y:      n.Position.Y,
			VX:     n.Velocity.X,
			VY:     n.Velocity.Y,
			Radius: n.Radius,
			Kind:   n.Kind.String(),
			Note:   n.Note,
		}
	}
	return out
}

func fromNodeRecords(recs []nodeRecord) []models.Node {
	out := make([]models.Node, len(recs))
	for i, r := range recs {
		out[i] = models.Node{
			ID:       models.NodeID(r.ID),
			Label:    r.Label,
			Position: r2.Vec{X: r.X, Y: r.Y},
			Velocity: r2.Vec{X: r.VX, Y: r.VY},
			Radius:   r.Radius,
			Kind:     models.ParseNodeKind(r.Kind),
			Note:     r.Note,
		}
		if out[i].Radius <= 0 {
			out[i].Radius = models.DefaultRadius
		}
	}
	return out
}

func toEdgeRecords(edges []models.Edge) []edgeRecord {
	out := make([]edgeRecord, len(edges))
	for i, e := range edges {
		out[i] = edgeRecord{ID: string(e.ID), From: string(e.From), To: string(e.To)}
	}
	return out
}

func fromEdgeRecords(recs []edgeRecord) []models.Edge {
	out := make([]models.Edge, len(recs))
	for i, r := range recs {
		out[i] = models.Edge{ID: models.EdgeID(r.ID), From: models.NodeID(r.From), To: models.NodeID(r.To)}
	}
	return out
}

// checkConsistent verifies every edge references a loaded node
func checkConsistent(nodes []models.Node, edges []models.Edge) error {
	index := models.NodeIndex(nodes)
	for _, e := range edges {
		if _, ok := index[e.From]; !ok {
			return fmt.Errorf("edge %s references unknown node %s", e.ID, e.From)
		}
		if _, ok := index[e.To]; !ok {
			return fmt.Errorf("edge %s references unknown node %s", e.ID, e.To)
		}
	}
	return nil
}

// FileStore keeps a graph as nodes.json and edges.json in Dir
type FileStore struct {
	Dir string
}

// NewFileStore returns a store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Save encodes both files before writing either. Each file is written to a
// temporary sibling and renamed into place.
func (s *FileStore) Save(nodes []models.Node, edges []models.Edge) error {
	nodesPath := filepath.Join(s.Dir, NodesFile)
	edgesPath := filepath.Join(s.Dir, EdgesFile)

	nodeData, err := json.MarshalIndent(toNodeRecords(nodes), "", "  ")
	if err != nil {
		return &StorageError{Kind: KindEncodingFailed, Path: nodesPath, Err: err}
	}
	edgeData, err := json.MarshalIndent(toEdgeRecords(edges), "", "  ")
	if err != nil {
		return &StorageError{Kind: KindEncodingFailed, Path: edgesPath, Err: err}
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return &StorageError{Kind: KindWritingFailed, Path: s.Dir, Err: err}
	}
	if err := writeFile(nodesPath, nodeData); err != nil {
		return &StorageError{Kind: KindWritingFailed, Path: nodesPath, Err: err}
	}
	if err := writeFile(edgesPath, edgeData); err != nil {
		return &StorageError{Kind: KindWritingFailed, Path: edgesPath, Err: err}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads both files. A missing pair is a loading failure; a single
// missing file, or edges naming unknown nodes, is reported as inconsistent.
func (s *FileStore) Load() ([]models.Node, []models.Edge, error) {
	nodesPath := filepath.Join(s.Dir, NodesFile)
	edgesPath := filepath.Join(s.Dir, EdgesFile)

	nodeData, nodeErr := os.ReadFile(nodesPath)
	edgeData, edgeErr := os.ReadFile(edgesPath)

	nodesMissing := errors.Is(nodeErr, fs.ErrNotExist)
	edgesMissing := errors.Is(edgeErr, fs.ErrNotExist)
	switch {
	case nodesMissing && edgesMissing:
		return nil, nil, &StorageError{Kind: KindLoadingFailed, Path: s.Dir, Err: nodeErr}
	case nodesMissing:
		return nil, nil, &StorageError{Kind: KindInconsistentFiles, Path: nodesPath, Err: nodeErr}
	case edgesMissing:
		return nil, nil, &StorageError{Kind: KindInconsistentFiles, Path: edgesPath, Err: edgeErr}
	case nodeErr != nil:
		return nil, nil, &StorageError{Kind: KindLoadingFailed, Path: nodesPath, Err: nodeErr}
	case edgeErr != nil:
		return nil, nil, &StorageError{Kind: KindLoadingFailed, Path: edgesPath, Err: edgeErr}
	}

	var nodeRecs []nodeRecord
	if err := json.Unmarshal(nodeData, &nodeRecs); err != nil {
		return nil, nil, &StorageError{Kind: KindDecodingFailed, Path: nodesPath, Err: err}
	}
	var edgeRecs []edgeRecord
	if err := json.Unmarshal(edgeData, &edgeRecs); err != nil {
		return nil, nil, &StorageError{Kind: KindDecodingFailed, Path: edgesPath, Err: err}
	}

	nodes := fromNodeRecords(nodeRecs)
	edges := fromEdgeRecords(edgeRecs)
	if err := checkConsistent(nodes, edges); err != nil {
		return nil, nil, &StorageError{Kind: KindInconsistentFiles, Path: edgesPath, Err: err}
	}
	return nodes, edges, nil
}

// MemoryStore keeps the last saved graph in memory
type MemoryStore struct {
	mu    sync.Mutex
	nodes []models.Node
	edges []models.Edge
	saved bool
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save stores copies of nodes and edges
func (m *MemoryStore) Save(nodes []models.Node, edges []models.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = models.CloneNodes(nodes)
	m.edges = models.CloneEdges(edges)
	m.saved = true
	return nil
}

// Load returns copies of the last saved graph
func (m *MemoryStore) Load() ([]models.Node, []models.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return nil, nil, &StorageError{Kind: KindLoadingFailed, Err: fs.ErrNotExist}
	}
	return models.CloneNodes(m.nodes), models.CloneEdges(m.edges), nil
}
