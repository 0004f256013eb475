// Package ingest turns external graph descriptions into nodes and edges
// placed on a circle, ready to be handed to the graph state.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/TFMV/forcegraph/models"
	"gonum.org/v1/gonum/spatial/r2"
)

// ErrNoEndpoints is returned for CSV input without source and target columns
var ErrNoEndpoints = errors.New("CSV must contain source and target columns")

// Import is the result of processing an external description
type Import struct {
	Nodes []models.Node
	Edges []models.Edge
	// Keys maps the external node keys to the generated IDs
	Keys map[string]models.NodeID
	// Skipped counts self-loops and duplicate edges that were dropped
	Skipped int
}

// Placement controls where imported nodes start
type Placement struct {
	Center r2.Vec
	Radius float64
}

// DefaultPlacement centers the circle in an 800x600 canvas
func DefaultPlacement() Placement {
	return Placement{Center: r2.Vec{X: 400, Y: 300}, Radius: 200}
}

// DataProcessor defines the interface that all data processors must implement
type DataProcessor interface {
	// ProcessData takes raw data bytes and returns the imported graph
	ProcessData(data []byte) (*Import, error)

	// GetName returns the name of the processor
	GetName() string
}

// builder accumulates nodes and edges keyed by external names
type builder struct {
	imp   *Import
	edges map[[2]models.NodeID]struct{}
}

func newBuilder() *builder {
	return &builder{
		imp:   &Import{Nodes: []models.Node{}, Edges: []models.Edge{}, Keys: make(map[string]models.NodeID)},
		edges: make(map[[2]models.NodeID]struct{}),
	}
}

// node returns the ID for key, creating the node on first sight
func (b *builder) node(key string, label int, note string) models.NodeID {
	if id, ok := b.imp.Keys[key]; ok {
		return id
	}
	var n models.Node
	if note != "" {
		n = models.NewNoteNode(label, r2.Vec{}, note)
	} else {
		n = models.NewNode(label, r2.Vec{})
	}
	b.imp.Nodes = append(b.imp.Nodes, n)
	b.imp.Keys[key] = n.ID
	return n.ID
}

func (b *builder) edge(from, to models.NodeID) {
	key := [2]models.NodeID{from, to}
	if _, dup := b.edges[key]; dup || from == to {
		b.imp.Skipped++
		return
	}
	b.edges[key] = struct{}{}
	b.imp.Edges = append(b.imp.Edges, models.NewEdge(from, to))
}

// finish assigns missing or clashing labels and places nodes on a circle
func (b *builder) finish(p Placement) *Import {
	used := make(map[int]bool, len(b.imp.Nodes))
	next := models.MaxLabel(b.imp.Nodes) + 1
	for i := range b.imp.Nodes {
		n := &b.imp.Nodes[i]
		if n.Label <= 0 || used[n.Label] {
			n.Label = next
			next++
		}
		used[n.Label] = true
	}
	Circle(b.imp.Nodes, p)
	return b.imp
}

// Circle spreads nodes evenly on a circle, starting at angle zero. A single
// node sits at the center.
func Circle(nodes []models.Node, p Placement) {
	if len(nodes) == 1 {
		nodes[0].Position = p.Center
		return
	}
	for i := range nodes {
		angle := 2 * math.Pi * float64(i) / float64(len(nodes))
		nodes[i].Position = r2.Vec{
			X: p.Center.X + p.Radius*math.Cos(angle),
			Y: p.Center.Y + p.Radius*math.Sin(angle),
		}
		nodes[i].Velocity = r2.Vec{}
	}
}

// JSONProcessor handles JSON data
type JSONProcessor struct {
	placement Placement
}

// NewJSONProcessor creates a new JSON processor
func NewJSONProcessor(p Placement) *JSONProcessor {
	return &JSONProcessor{placement: p}
}

// GetName returns the name of the processor
func (p *JSONProcessor) GetName() string {
	return "JSON Processor"
}

// ProcessData processes JSON data
func (p *JSONProcessor) ProcessData(data []byte) (*Import, error) {
	var graphData struct {
		Nodes []struct {
			ID    string `json:"id"`
			Label int    `json:"label"`
			Note  string `json:"note,omitempty"`
		} `json:"nodes"`
		Edges []struct {
			Source string `json:"source"`
			Target string `json:"target"`
		} `json:"edges"`
	}

	if err := json.Unmarshal(data, &graphData); err != nil {
		return nil, fmt.Errorf("error parsing JSON: %w", err)
	}

	b := newBuilder()
	for _, n := range graphData.Nodes {
		if n.ID == "" {
			return nil, errors.New("node without id")
		}
		if _, dup := b.imp.Keys[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id: %s", n.ID)
		}
		b.node(n.ID, n.Label, n.Note)
	}

	for _, e := range graphData.Edges {
		source, sourceExists := b.imp.Keys[e.Source]
		target, targetExists := b.imp.Keys[e.Target]
		if !sourceExists || !targetExists {
			return nil, fmt.Errorf("edge references non-existent node: %s -> %s", e.Source, e.Target)
		}
		b.edge(source, target)
	}

	return b.finish(p.placement), nil
}

// CSVProcessor handles CSV edge lists
type CSVProcessor struct {
	placement Placement
}

// NewCSVProcessor creates a new CSV processor
func NewCSVProcessor(p Placement) *CSVProcessor {
	return &CSVProcessor{placement: p}
}

// GetName returns the name of the processor
func (p *CSVProcessor) GetName() string {
	return "CSV Processor"
}

// ProcessData processes CSV data. Each row names an edge; nodes are created
// on first mention. An optional note column annotates the source node.
func (p *CSVProcessor) ProcessData(data []byte) (*Import, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	sourceIdx, targetIdx, noteIdx := -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "source", "from", "src":
			sourceIdx = i
		case "target", "to", "dst":
			targetIdx = i
		case "note", "label", "name", "title":
			noteIdx = i
		}
	}
	if sourceIdx == -1 || targetIdx == -1 {
		return nil, ErrNoEndpoints
	}

	b := newBuilder()
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV row: %w", err)
		}
		if sourceIdx >= len(row) || targetIdx >= len(row) {
			return nil, fmt.Errorf("CSV row %d: missing source or target", line)
		}

		sourceKey := strings.TrimSpace(row[sourceIdx])
		targetKey := strings.TrimSpace(row[targetIdx])
		if sourceKey == "" || targetKey == "" {
			return nil, fmt.Errorf("CSV row %d: empty source or target", line)
		}

		note := ""
		if noteIdx >= 0 && noteIdx < len(row) {
			note = strings.TrimSpace(row[noteIdx])
		}
		source := b.node(sourceKey, 0, note)
		target := b.node(targetKey, 0, "")
		b.edge(source, target)
	}

	return b.finish(p.placement), nil
}

// LogProcessor handles plain text where each line names a relationship,
// e.g. "A -> B" or "X connected to Y"
type LogProcessor struct {
	placement Placement
}

// NewLogProcessor creates a new log processor
func NewLogProcessor(p Placement) *LogProcessor {
	return &LogProcessor{placement: p}
}

// GetName returns the name of the processor
func (p *LogProcessor) GetName() string {
	return "Log Processor"
}

// logPatterns are the recognised relationship separators. Bidirectional
// patterns produce an edge in each direction.
var logPatterns = []struct {
	separator     string
	bidirectional bool
}{
	{" -> ", false},
	{" => ", false},
	{" connected to ", true},
	{" connects to ", false},
	{" links to ", false},
	{" linked to ", true},
	{" - ", true},
}

// ProcessData processes log data. Lines that match no pattern are ignored.
func (p *LogProcessor) ProcessData(data []byte) (*Import, error) {
	b := newBuilder()

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		for _, pattern := range logPatterns {
			parts := strings.Split(line, pattern.separator)
			if len(parts) != 2 {
				continue
			}
			sourceKey := strings.TrimSpace(parts[0])
			targetKey := strings.TrimSpace(parts[1])
			if sourceKey == "" || targetKey == "" {
				break
			}
			source := b.node(sourceKey, 0, "")
			target := b.node(targetKey, 0, "")
			b.edge(source, target)
			if pattern.bidirectional {
				b.edge(target, source)
			}
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log: %w", err)
	}

	return b.finish(p.placement), nil
}

// GetProcessor returns the appropriate processor for the given format
func GetProcessor(format string, p Placement) (DataProcessor, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONProcessor(p), nil
	case "csv":
		return NewCSVProcessor(p), nil
	case "log", "txt":
		return NewLogProcessor(p), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
