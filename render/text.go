package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/TFMV/forcegraph/models"
)

// JSONRenderer outputs raw JSON format
type JSONRenderer struct{}

// Name returns the name of the renderer
func (r *JSONRenderer) Name() string {
	return "JSON Renderer"
}

// Description returns a description of the renderer
func (r *JSONRenderer) Description() string {
	return "Renders the layout as JSON for machine consumption or custom visualizations"
}

type jsonNode struct {
	ID     string  `json:"id"`
	Label  int     `json:"label"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Kind   string  `json:"kind"`
	Note   string  `json:"note,omitempty"`
	Color  string  `json:"color"`
}

type jsonEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type jsonGraph struct {
	Nodes    []jsonNode     `json:"nodes"`
	Edges    []jsonEdge     `json:"edges"`
	Metadata map[string]any `json:"metadata"`
}

// Render creates a JSON representation of the snapshot
func (r *JSONRenderer) Render(snap models.Snapshot, options *OutputOptions) ([]byte, error) {
	options = options.normalize()

	out := jsonGraph{
		Nodes: make([]jsonNode, 0, snap.NodeCount()),
		Edges: make([]jsonEdge, 0, snap.EdgeCount()),
		Metadata: map[string]any{
			"width":     options.Width,
			"height":    options.Height,
			"nodeCount": snap.NodeCount(),
			"edgeCount": snap.EdgeCount(),
		},
	}
	if options.Timestamp {
		out.Metadata["timestamp"] = time.Now().Format(time.RFC3339)
	}

	for _, n := range snap.Nodes() {
		out.Nodes = append(out.Nodes, jsonNode{
			ID:     string(n.ID),
			Label:  n.Label,
			X:      n.Position.X,
			Y:      n.Position.Y,
			Radius: n.Radius,
			Kind:   n.Kind.String(),
			Note:   n.Note,
			Color:  options.Palette.NodeColor(n),
		})
	}
	for _, e := range snap.Edges() {
		out.Edges = append(out.Edges, jsonEdge{ID: string(e.ID), Source: string(e.From), Target: string(e.To)})
	}

	return json.MarshalIndent(out, "", "  ")
}

// DOTRenderer outputs Graphviz DOT format
type DOTRenderer struct{}

// Name returns the name of the renderer
func (r *DOTRenderer) Name() string {
	return "DOT Renderer"
}

// Description returns a description of the renderer
func (r *DOTRenderer) Description() string {
	return "Renders the layout in Graphviz DOT format with pinned positions"
}

// Render creates a DOT representation of the snapshot. Positions are pinned
// in points with the y axis flipped, so neato -n reproduces the layout.
func (r *DOTRenderer) Render(snap models.Snapshot, options *OutputOptions) ([]byte, error) {
	options = options.normalize()
	p := options.Palette

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  graph [bgcolor=%q, size=\"%g,%g\"];\n",
		p.Background, options.Width/72.0, options.Height/72.0)
	fmt.Fprintf(&buf, "  node [shape=circle, style=filled, fontname=\"Arial\", fontsize=%g];\n", options.FontSize)
	fmt.Fprintf(&buf, "  edge [color=%q];\n", p.EdgeColor)

	for _, n := range snap.Nodes() {
		shape, extra := "circle", ""
		if n.Kind == models.KindNote {
			shape = "note"
			if options.ShowNotes && n.Note != "" {
				extra = fmt.Sprintf(", xlabel=%q", n.Note)
			}
		}
		fmt.Fprintf(&buf, "  %q [label=%q, shape=%s, fillcolor=%q, width=%g, pos=\"%g,%g!\"%s];\n",
			string(n.ID), strconv.Itoa(n.Label), shape, p.NodeColor(n), 2*n.Radius/72.0,
			n.Position.X, options.Height-n.Position.Y, extra)
	}

	for _, e := range snap.Edges() {
		fmt.Fprintf(&buf, "  %q -> %q [id=%q];\n", string(e.From), string(e.To), string(e.ID))
	}

	buf.WriteString("}\n")
	return buf.Bytes(), nil
}
