package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/TFMV/forcegraph/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func sampleSnapshot() models.Snapshot {
	a := models.NewNode(1, r2.Vec{X: 100, Y: 100})
	b := models.NewNoteNode(2, r2.Vec{X: 700, Y: 500}, "<b>bold & brave</b>")
	return models.NewSnapshot(
		[]models.Node{a, b},
		[]models.Edge{models.NewEdge(a.ID, b.ID)},
	)
}

func TestGetRenderer(t *testing.T) {
	for _, format := range Formats() {
		r, err := GetRenderer(format)
		require.NoError(t, err, format)
		assert.NotEmpty(t, r.Name())
		assert.NotEmpty(t, r.Description())
	}
	_, err := GetRenderer("webgl")
	assert.Error(t, err)
}

func TestSVGRenderer(t *testing.T) {
	snap := sampleSnapshot()
	out, err := (&SVGRenderer{}).Render(snap, NewDefaultOptions("svg"))
	require.NoError(t, err)

	svg := string(out)
	assert.True(t, strings.HasPrefix(svg, "<?xml"))
	assert.True(t, strings.HasSuffix(svg, "</svg>\n"))
	assert.Equal(t, 2, strings.Count(svg, "<circle"))
	assert.Equal(t, 1, strings.Count(svg, "<line"))
	assert.Contains(t, svg, "&lt;b&gt;bold &amp; brave&lt;/b&gt;")
	assert.NotContains(t, svg, "<b>")
	assert.Contains(t, svg, DefaultPalette().NoteColor)
}

func TestASCIIRenderer(t *testing.T) {
	out, err := (&ASCIIRenderer{}).Render(sampleSnapshot(), nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	require.Len(t, lines, 30)
	for _, l := range lines {
		assert.Equal(t, 80, len([]rune(l)))
	}
	assert.Equal(t, 1, strings.Count(string(out), string(basicSymbol)))
	assert.Equal(t, 1, strings.Count(string(out), string(noteSymbol)))
	assert.Contains(t, string(out), string(edgeSymbol))
}

func TestASCIIRendererClampsOutliers(t *testing.T) {
	far := models.NewNode(1, r2.Vec{X: -5000, Y: 90000})
	out, err := (&ASCIIRenderer{}).Render(models.NewSnapshot([]models.Node{far}, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(out), string(basicSymbol)))
}

func TestJSONRenderer(t *testing.T) {
	snap := sampleSnapshot()
	out, err := (&JSONRenderer{}).Render(snap, nil)
	require.NoError(t, err)

	var decoded struct {
		Nodes []struct {
			ID    string  `json:"id"`
			Label int     `json:"label"`
			X     float64 `json:"x"`
			Kind  string  `json:"kind"`
			Note  string  `json:"note"`
		} `json:"nodes"`
		Edges []struct {
			Source string `json:"source"`
			Target string `json:"target"`
		} `json:"edges"`
		Metadata map[string]any `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))

	nodes := snap.Nodes()
	require.Len(t, decoded.Nodes, 2)
	assert.Equal(t, string(nodes[0].ID), decoded.Nodes[0].ID)
	assert.Equal(t, 100.0, decoded.Nodes[0].X)
	assert.Equal(t, "note", decoded.Nodes[1].Kind)
	assert.Equal(t, "<b>bold & brave</b>", decoded.Nodes[1].Note)
	require.Len(t, decoded.Edges, 1)
	assert.Equal(t, string(nodes[1].ID), decoded.Edges[0].Target)
	assert.EqualValues(t, 2, decoded.Metadata["nodeCount"])
	assert.NotContains(t, decoded.Metadata, "timestamp")
}

func TestDOTRenderer(t *testing.T) {
	snap := sampleSnapshot()
	out, err := (&DOTRenderer{}).Render(snap, NewDefaultOptions("dot"))
	require.NoError(t, err)

	dot := string(out)
	nodes := snap.Nodes()
	assert.True(t, strings.HasPrefix(dot, "digraph G {"))
	assert.Contains(t, dot, `"`+string(nodes[0].ID)+`" -> "`+string(nodes[1].ID)+`"`)
	assert.Contains(t, dot, `pos="100,500!"`, "y axis is flipped")
	assert.Contains(t, dot, "shape=note")
	assert.Contains(t, dot, "xlabel=")
}

func TestGenerate(t *testing.T) {
	out, err := Generate(sampleSnapshot(), &OutputOptions{Format: "json"})
	require.NoError(t, err)
	assert.True(t, json.Valid(out))

	_, err = Generate(sampleSnapshot(), &OutputOptions{Format: "png"})
	assert.Error(t, err)
}

func TestEmptySnapshot(t *testing.T) {
	empty := models.NewSnapshot(nil, nil)
	for _, format := range Formats() {
		out, err := Generate(empty, &OutputOptions{Format: format})
		require.NoError(t, err, format)
		assert.NotEmpty(t, out)
	}
}

func TestPaletteByName(t *testing.T) {
	assert.Equal(t, DarkPalette(), PaletteByName("DARK"))
	assert.Equal(t, DefaultPalette(), PaletteByName("unknown"))

	p := DefaultPalette()
	n := models.NewNode(len(p.NodeColors)+1, r2.Vec{})
	assert.Equal(t, p.NodeColors[1], p.NodeColor(n))
}
