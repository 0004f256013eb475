// Package render draws snapshots of the graph in several static formats.
package render

import (
	"fmt"
	"strings"

	"github.com/TFMV/forcegraph/models"
)

// OutputOptions defines rendering configuration options
type OutputOptions struct {
	Format     string  // Output format (svg, ascii, json, dot)
	Width      float64 // Width of the canvas the layout was computed for
	Height     float64 // Height of the canvas the layout was computed for
	FontSize   float64 // Font size for labels
	ShowLabels bool    // Show node labels
	ShowNotes  bool    // Show note text next to note nodes
	Timestamp  bool    // Include a timestamp
	Palette    *Palette
}

// Renderer interface defines methods that all rendering backends must implement
type Renderer interface {
	// Render draws the snapshot using the provided options
	Render(snap models.Snapshot, options *OutputOptions) ([]byte, error)

	// Name returns the name of the renderer
	Name() string

	// Description returns a description of the renderer
	Description() string
}

// Palette provides color schemes for graph visualization
type Palette struct {
	NodeColors []string
	NoteColor  string
	EdgeColor  string
	TextColor  string
	Background string
}

// DefaultPalette returns a light palette
func DefaultPalette() *Palette {
	return &Palette{
		NodeColors: []string{
			"#4285F4", // Blue
			"#EA4335", // Red
			"#FBBC05", // Yellow
			"#34A853", // Green
			"#673AB7", // Purple
			"#00BCD4", // Cyan
		},
		NoteColor:  "#FFF59D",
		EdgeColor:  "#666666",
		TextColor:  "#333333",
		Background: "#f8f8f8",
	}
}

// DarkPalette returns a palette for dark backgrounds
func DarkPalette() *Palette {
	return &Palette{
		NodeColors: []string{
			"#FF6D00", // Amber
			"#2979FF", // Blue
			"#00E676", // Green
			"#F50057", // Pink
			"#651FFF", // Deep Purple
			"#C6FF00", // Lime
		},
		NoteColor:  "#FFD54F",
		EdgeColor:  "#9E9E9E",
		TextColor:  "#EEEEEE",
		Background: "#212121",
	}
}

// PaletteByName looks up a palette, falling back to the default
func PaletteByName(name string) *Palette {
	if strings.EqualFold(name, "dark") {
		return DarkPalette()
	}
	return DefaultPalette()
}

// NodeColor picks the fill for a node. Notes share one color; basic nodes
// cycle through the palette by label.
func (p *Palette) NodeColor(n models.Node) string {
	if n.Kind == models.KindNote {
		return p.NoteColor
	}
	if len(p.NodeColors) == 0 {
		return "#4285F4"
	}
	idx := n.Label % len(p.NodeColors)
	if idx < 0 {
		idx = -idx
	}
	return p.NodeColors[idx]
}

// NewDefaultOptions creates a default set of output options
func NewDefaultOptions(format string) *OutputOptions {
	return &OutputOptions{
		Format:     format,
		Width:      800,
		Height:     600,
		FontSize:   10,
		ShowLabels: true,
		ShowNotes:  true,
		Palette:    DefaultPalette(),
	}
}

// normalize fills unset options
func (o *OutputOptions) normalize() *OutputOptions {
	out := NewDefaultOptions("")
	if o != nil {
		*out = *o
	}
	if out.Width <= 0 {
		out.Width = 800
	}
	if out.Height <= 0 {
		out.Height = 600
	}
	if out.FontSize <= 0 {
		out.FontSize = 10
	}
	if out.Palette == nil {
		out.Palette = DefaultPalette()
	}
	return out
}

// Formats lists the supported output formats
func Formats() []string {
	return []string{"svg", "ascii", "json", "dot"}
}

// GetRenderer returns the appropriate renderer based on format
func GetRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "svg":
		return &SVGRenderer{}, nil
	case "ascii", "txt":
		return &ASCIIRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "dot", "gv":
		return &DOTRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Generate renders snap with options, choosing the renderer by options.Format
func Generate(snap models.Snapshot, options *OutputOptions) ([]byte, error) {
	options = options.normalize()
	renderer, err := GetRenderer(options.Format)
	if err != nil {
		return nil, err
	}
	out, err := renderer.Render(snap, options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", renderer.Name(), err)
	}
	return out, nil
}

// endpoints resolves each edge to its node positions, skipping edges whose
// endpoints are missing
func endpoints(nodes []models.Node, edges []models.Edge, fn func(e models.Edge, from, to models.Node)) {
	index := models.NodeIndex(nodes)
	for _, e := range edges {
		i, ok := index[e.From]
		if !ok {
			continue
		}
		j, ok := index[e.To]
		if !ok {
			continue
		}
		fn(e, nodes[i], nodes[j])
	}
}
