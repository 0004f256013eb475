package physics

import (
	"math"
	"testing"

	"github.com/TFMV/forcegraph/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

// springOnly switches repulsion and centering off so only the edge acts
func springOnly() Config {
	cfg := DefaultConfig()
	cfg.Repulsion = 0
	cfg.Centering = 0
	return cfg
}

func pair(a, b r2.Vec) ([]models.Node, []models.Edge) {
	from := models.NewNode(1, a)
	to := models.NewNode(2, b)
	return []models.Node{from, to}, []models.Edge{models.NewEdge(from.ID, to.ID)}
}

func distance(nodes []models.Node) float64 {
	return r2.Norm(r2.Sub(nodes[1].Position, nodes[0].Position))
}

func TestSpringSettlesAtIdealLength(t *testing.T) {
	fm := NewForceModel(springOnly())
	nodes, edges := pair(r2.Vec{X: 250, Y: 300}, r2.Vec{X: 550, Y: 300})
	require.InDelta(t, 300, distance(nodes), 1e-9)

	prev := distance(nodes)
	settled := false
	for i := 0; i < fm.Config().MaxSteps; i++ {
		nodes, _ = fm.Step(nodes, edges)
		d := distance(nodes)
		require.Less(t, d, prev, "distance must shrink strictly at step %d", i)
		prev = d
		if nodes[0].Speed() < 1e-3 && nodes[1].Speed() < 1e-3 {
			settled = true
			break
		}
	}

	assert.True(t, settled, "velocity should decay within the step budget")
	assert.InDelta(t, 100, prev, 1.0)
}

func TestDefaultDampingIsNotOscillatory(t *testing.T) {
	// two nodes on one edge reduce to x' = x + v', v' = c(v - 2k·x·dt)
	// which stops ringing once (1 + (1-2k)c)² >= 4c
	cfg := DefaultConfig()
	k, c := cfg.Stiffness*cfg.TimeStep*cfg.TimeStep, cfg.Damping
	trace := 1 + (1-2*k)*c
	assert.GreaterOrEqual(t, trace*trace, 4*c)
}

func TestStepBudget(t *testing.T) {
	cfg := springOnly()
	cfg.MaxSteps = 5
	fm := NewForceModel(cfg)
	nodes, edges := pair(r2.Vec{X: 100, Y: 300}, r2.Vec{X: 700, Y: 300})

	var running bool
	for i := 0; i < cfg.MaxSteps; i++ {
		nodes, running = fm.Step(nodes, edges)
		assert.True(t, running, "step %d should still be moving", i+1)
	}

	before := models.CloneNodes(nodes)
	nodes, running = fm.Step(nodes, edges)
	assert.False(t, running, "step past the budget must report not running")
	assert.Equal(t, before, nodes, "step past the budget is a no-op")

	fm.Reset()
	assert.Equal(t, int64(0), fm.Steps())
	_, running = fm.Step(nodes, edges)
	assert.True(t, running, "reset restores the budget")
}

func TestStepDoesNotMutateInput(t *testing.T) {
	fm := NewForceModel(DefaultConfig())
	nodes, edges := pair(r2.Vec{X: 200, Y: 200}, r2.Vec{X: 600, Y: 400})
	orig := models.CloneNodes(nodes)

	out, _ := fm.Step(nodes, edges)
	assert.Equal(t, orig, nodes)
	assert.NotEqual(t, orig[0].Position, out[0].Position)
}

func TestCoincidentNodesStayFinite(t *testing.T) {
	cfg := DefaultConfig()
	fm := NewForceModel(cfg)

	nodes := make([]models.Node, 10)
	for i := range nodes {
		nodes[i] = models.NewNode(i+1, r2.Vec{X: 400, Y: 300})
	}

	for i := 0; i < 200; i++ {
		nodes, _ = fm.Step(nodes, nil)
	}

	for _, n := range nodes {
		require.False(t, math.IsNaN(n.Position.X) || math.IsNaN(n.Position.Y))
		require.False(t, math.IsInf(n.Position.X, 0) || math.IsInf(n.Position.Y, 0))
		assert.GreaterOrEqual(t, n.Position.X, cfg.Padding)
		assert.LessOrEqual(t, n.Position.X, cfg.Width-cfg.Padding)
		assert.GreaterOrEqual(t, n.Position.Y, cfg.Padding)
		assert.LessOrEqual(t, n.Position.Y, cfg.Height-cfg.Padding)
	}

	minDist := math.Inf(1)
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			minDist = math.Min(minDist, r2.Norm(r2.Sub(nodes[i].Position, nodes[j].Position)))
		}
	}
	assert.Greater(t, minDist, 1.0, "coincident nodes should be pushed apart")
}

func TestBoundaryInvertsAndDamps(t *testing.T) {
	fm := NewForceModel(Config{
		Width:       800,
		Height:      600,
		Damping:     1,
		TimeStep:    1,
		Restitution: 0.5,
	})
	n := models.NewNode(1, r2.Vec{X: 795, Y: 300})
	n.Velocity = r2.Vec{X: 20, Y: 0}

	out, _ := fm.Step([]models.Node{n}, nil)
	assert.Equal(t, 800.0, out[0].Position.X)
	assert.Equal(t, -10.0, out[0].Velocity.X)
	assert.Equal(t, 300.0, out[0].Position.Y)
}

func TestAsymmetricSprings(t *testing.T) {
	cfg := Config{
		Width:       800,
		Height:      600,
		Stiffness:   0.05,
		IdealLength: 100,
		Damping:     1,
		TimeStep:    1,
	}

	t.Run("symmetric", func(t *testing.T) {
		nodes, edges := pair(r2.Vec{X: 300, Y: 300}, r2.Vec{X: 500, Y: 300})
		out, _ := NewForceModel(cfg).Step(nodes, edges)
		assert.InDelta(t, 5, out[0].Position.X-300, 1e-9)
		assert.InDelta(t, -5, out[1].Position.X-500, 1e-9)
	})

	t.Run("asymmetric favours the target", func(t *testing.T) {
		asym := cfg
		asym.Asymmetric = true
		asym.AsymmetricWeight = 0.8
		nodes, edges := pair(r2.Vec{X: 300, Y: 300}, r2.Vec{X: 500, Y: 300})
		out, _ := NewForceModel(asym).Step(nodes, edges)
		moveFrom := out[0].Position.X - 300
		moveTo := 500 - out[1].Position.X
		assert.InDelta(t, 2, moveFrom, 1e-9)
		assert.InDelta(t, 8, moveTo, 1e-9)
	})
}

func TestCenteringPullsTowardCenter(t *testing.T) {
	fm := NewForceModel(Config{Width: 800, Height: 600, Centering: 0.01, Damping: 0.9, TimeStep: 1})
	n := models.NewNode(1, r2.Vec{X: 100, Y: 100})
	out, _ := fm.Step([]models.Node{n}, nil)
	assert.Greater(t, out[0].Position.X, 100.0)
	assert.Greater(t, out[0].Position.Y, 100.0)
}

func TestIsRunning(t *testing.T) {
	fm := NewForceModel(DefaultConfig())
	assert.False(t, fm.IsRunning(nil))

	still := []models.Node{models.NewNode(1, r2.Vec{X: 1, Y: 1})}
	assert.False(t, fm.IsRunning(still))

	still[0].Velocity = r2.Vec{X: 1, Y: 0}
	assert.True(t, fm.IsRunning(still))
	assert.Equal(t, 1.0, TotalSpeed(still))
}
