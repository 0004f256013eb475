package render

import (
	"strconv"
	"strings"
	"time"

	"github.com/TFMV/forcegraph/models"
)

const (
	basicSymbol = 'O'
	noteSymbol  = '#'
	edgeSymbol  = '·'
)

// ASCIIRenderer outputs ASCII art format
type ASCIIRenderer struct{}

// Name returns the name of the renderer
func (r *ASCIIRenderer) Name() string {
	return "ASCII Renderer"
}

// Description returns a description of the renderer
func (r *ASCIIRenderer) Description() string {
	return "Renders the layout as text for terminal output"
}

// Render creates an ASCII representation of the snapshot
func (r *ASCIIRenderer) Render(snap models.Snapshot, options *OutputOptions) ([]byte, error) {
	options = options.normalize()

	// one cell is roughly twice as tall as it is wide
	width := max(int(options.Width/10), 40)
	height := max(int(options.Height/20), 20)

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}
	for i := 0; i < width; i++ {
		grid[0][i] = '-'
		grid[height-1][i] = '-'
	}
	for i := 0; i < height; i++ {
		grid[i][0] = '|'
		grid[i][width-1] = '|'
	}
	grid[0][0], grid[0][width-1] = '+', '+'
	grid[height-1][0], grid[height-1][width-1] = '+', '+'

	toCell := func(n models.Node) (int, int) {
		x := int(n.Position.X*float64(width-2)/options.Width) + 1
		y := int(n.Position.Y*float64(height-2)/options.Height) + 1
		return clamp(x, 1, width-2), clamp(y, 1, height-2)
	}

	nodes := snap.Nodes()
	endpoints(nodes, snap.Edges(), func(_ models.Edge, from, to models.Node) {
		x1, y1 := toCell(from)
		x2, y2 := toCell(to)
		drawLine(grid, x1, y1, x2, y2)
	})

	for _, n := range nodes {
		x, y := toCell(n)
		symbol := basicSymbol
		if n.Kind == models.KindNote {
			symbol = noteSymbol
		}
		grid[y][x] = symbol

		if options.ShowLabels && y+1 < height-1 {
			label := strconv.Itoa(n.Label)
			for i := 0; i < len(label) && x+i < width-1; i++ {
				grid[y+1][x+i] = rune(label[i])
			}
		}
	}

	if options.Timestamp && height > 4 {
		stamp := time.Now().Format("2006-01-02 15:04")
		for i, c := range stamp {
			if i+2 < width-1 {
				grid[height-2][i+2] = c
			}
		}
	}

	var result strings.Builder
	for _, row := range grid {
		result.WriteString(string(row))
		result.WriteRune('\n')
	}
	return []byte(result.String()), nil
}

func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// drawLine plots a line on the grid using Bresenham's algorithm. Node
// symbols are never overwritten.
func drawLine(grid [][]rune, x1, y1, x2, y2 int) {
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx := 1
	if x1 >= x2 {
		sx = -1
	}
	sy := 1
	if y1 >= y2 {
		sy = -1
	}
	err := dx + dy

	for {
		if y1 >= 0 && y1 < len(grid) && x1 >= 0 && x1 < len(grid[y1]) {
			if c := grid[y1][x1]; c != basicSymbol && c != noteSymbol {
				grid[y1][x1] = edgeSymbol
			}
		}
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x1 += sx
		}
		if e2 <= dx {
			err += dx
			y1 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
