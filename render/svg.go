package render

import (
	"bytes"
	"fmt"
	"html"
	"time"

	"github.com/TFMV/forcegraph/models"
	"gonum.org/v1/gonum/spatial/r2"
)

// SVGRenderer outputs SVG format
type SVGRenderer struct{}

// Name returns the name of the renderer
func (r *SVGRenderer) Name() string {
	return "SVG Renderer"
}

// Description returns a description of the renderer
func (r *SVGRenderer) Description() string {
	return "Renders the layout as Scalable Vector Graphics with directed edges"
}

// Render creates an SVG representation of the snapshot
func (r *SVGRenderer) Render(snap models.Snapshot, options *OutputOptions) ([]byte, error) {
	options = options.normalize()
	p := options.Palette
	nodes := snap.Nodes()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<svg width="%g" height="%g" viewBox="0 0 %g %g" xmlns="http://www.w3.org/2000/svg">
<rect width="100%%" height="100%%" fill="%s"/>
`, options.Width, options.Height, options.Width, options.Height, p.Background)

	fmt.Fprintf(&buf, `<defs>
  <marker id="arrow" viewBox="0 0 10 10" refX="10" refY="5" markerWidth="6" markerHeight="6" orient="auto">
    <path d="M0,0 L10,5 L0,10 z" fill="%s"/>
  </marker>
</defs>
`, p.EdgeColor)

	endpoints(nodes, snap.Edges(), func(e models.Edge, from, to models.Node) {
		// stop the line at the target's rim so the arrow head stays visible
		a, b := from.Position, to.Position
		d := r2.Sub(b, a)
		if l := r2.Norm(d); l > to.Radius {
			b = r2.Sub(b, r2.Scale(to.Radius/l, d))
		}
		fmt.Fprintf(&buf, `<line id="%s" x1="%g" y1="%g" x2="%g" y2="%g" stroke="%s" stroke-width="1" marker-end="url(#arrow)"/>
`, html.EscapeString(string(e.ID)), a.X, a.Y, b.X, b.Y, p.EdgeColor)
	})

	for _, n := range nodes {
		fmt.Fprintf(&buf, `<circle id="%s" cx="%g" cy="%g" r="%g" fill="%s" stroke="rgba(0,0,0,0.3)" stroke-width="0.5"/>
`, html.EscapeString(string(n.ID)), n.Position.X, n.Position.Y, n.Radius, p.NodeColor(n))

		if options.ShowLabels {
			fmt.Fprintf(&buf, `<text x="%g" y="%g" font-family="sans-serif" font-size="%g" fill="%s" text-anchor="middle" dominant-baseline="middle">%d</text>
`, n.Position.X, n.Position.Y, options.FontSize, p.TextColor, n.Label)
		}
		if options.ShowNotes && n.Kind == models.KindNote && n.Note != "" {
			fmt.Fprintf(&buf, `<text x="%g" y="%g" font-family="sans-serif" font-size="%g" fill="%s" text-anchor="middle">%s</text>
`, n.Position.X, n.Position.Y+n.Radius+options.FontSize+2, options.FontSize, p.TextColor, html.EscapeString(n.Note))
		}
	}

	if options.Timestamp {
		fmt.Fprintf(&buf, `<text x="5" y="%g" font-family="sans-serif" font-size="8" fill="#808080">%s</text>
`, options.Height-5, time.Now().Format("2006-01-02 15:04:05"))
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes(), nil
}
