package physics

import (
	"math"
	"sync/atomic"

	"github.com/TFMV/forcegraph/models"
	opensimplex "github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r2"
)

// Config holds the force model parameters
type Config struct {
	Width   float64 `toml:"width"`   // Simulation area width
	Height  float64 `toml:"height"`  // Simulation area height
	Padding float64 `toml:"padding"` // Distance kept from the area border

	Repulsion   float64 `toml:"repulsion"`    // Repulsion strength
	Stiffness   float64 `toml:"stiffness"`    // Spring stiffness
	IdealLength float64 `toml:"ideal_length"` // Spring rest length
	Centering   float64 `toml:"centering"`    // Pull toward the area center

	Damping           float64 `toml:"damping"`            // Per-step velocity decay
	TimeStep          float64 `toml:"time_step"`          // Integration dt
	MaxSteps          int     `toml:"max_steps"`          // Hard step budget
	VelocityThreshold float64 `toml:"velocity_threshold"` // Per-node speed below which the layout is settled
	MaxSpeed          float64 `toml:"max_speed"`          // Speed clamp
	Restitution       float64 `toml:"restitution"`        // Velocity kept after bouncing off the border

	Epsilon     float64 `toml:"epsilon"`      // Distances below this are treated as coincident
	JitterScale float64 `toml:"jitter_scale"` // Jitter magnitude relative to Repulsion

	// Asymmetric biases spring forces toward the To endpoint of each edge,
	// which tends to layer directed graphs.
	Asymmetric       bool    `toml:"asymmetric"`
	AsymmetricWeight float64 `toml:"asymmetric_weight"`

	Seed int64 `toml:"seed"` // Jitter noise seed
}

// DefaultConfig returns the tuned default parameters
func DefaultConfig() Config {
	return Config{
		Width:             800,
		Height:            600,
		Padding:           20,
		Repulsion:         4000,
		Stiffness:         0.05,
		IdealLength:       100,
		Centering:         0.01,
		Damping:           0.5,
		TimeStep:          1,
		MaxSteps:          1000,
		VelocityThreshold: 0.05,
		MaxSpeed:          50,
		Restitution:       0.5,
		Epsilon:           0.01,
		JitterScale:       0.001,
		AsymmetricWeight:  0.8,
		Seed:              1,
	}
}

// withDefaults fills the fields for which zero is not a usable value.
// Force strengths stay as given so callers can switch a force off.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Width <= 0 {
		c.Width = def.Width
	}
	if c.Height <= 0 {
		c.Height = def.Height
	}
	if c.TimeStep <= 0 {
		c.TimeStep = def.TimeStep
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = def.MaxSteps
	}
	if c.Epsilon <= 0 {
		c.Epsilon = def.Epsilon
	}
	if c.MaxSpeed <= 0 {
		c.MaxSpeed = math.Inf(1)
	}
	if c.AsymmetricWeight <= 0 || c.AsymmetricWeight > 1 {
		c.AsymmetricWeight = def.AsymmetricWeight
	}
	return c
}

// Repulsion evaluates the inverse-square repulsion law for one step
type Repulsion struct {
	Strength    float64
	Epsilon     float64
	JitterScale float64
	noise       opensimplex.Noise
	step        int64
}

// From returns the force pushing query away from a source of the given mass
// at src. Near-coincident sources yield a small jitter instead of dividing by
// a vanishing distance.
func (r *Repulsion) From(query models.Node, src r2.Vec, mass float64) r2.Vec {
	delta := r2.Sub(query.Position, src)
	d := r2.Norm(delta)
	if d < r.Epsilon {
		return r2.Scale(r.Strength*r.JitterScale, r.jitter(query))
	}
	return r2.Scale(r.Strength*mass/(d*d*d), delta)
}

// jitter samples a direction in [-1,1]² from the noise field. The label
// offsets the sample so coincident nodes drift apart in different directions.
func (r *Repulsion) jitter(n models.Node) r2.Vec {
	label := float64(n.Label)
	x := n.Position.X*0.013 + label*0.618 + 0.17
	y := n.Position.Y*0.013 + label*0.382 + 0.29
	z := float64(r.step)*0.091 + 0.43

	j := r2.Vec{X: 1, Y: 0}
	if r.noise != nil {
		j = r2.Vec{
			X: clampUnit(r.noise.Eval3(x, y, z)),
			Y: clampUnit(r.noise.Eval3(y+31.7, x+17.3, z)),
		}
	}
	if r2.Norm(j) < 1e-9 {
		// golden-angle fallback
		a := label * 2.399963229728653
		j = r2.Vec{X: math.Cos(a), Y: math.Sin(a)}
	}
	return j
}

// ForceModel integrates repulsion, spring and centering forces.
// Step and Reset are safe to call from different goroutines.
type ForceModel struct {
	cfg   Config
	noise opensimplex.Noise
	steps atomic.Int64
}

// NewForceModel creates a force model with the given parameters
func NewForceModel(cfg Config) *ForceModel {
	cfg = cfg.withDefaults()
	return &ForceModel{
		cfg:   cfg,
		noise: opensimplex.New(cfg.Seed),
	}
}

// Config returns the effective parameters
func (fm *ForceModel) Config() Config {
	return fm.cfg
}

// Reset zeroes the step counter. Call it whenever the topology changes
// discontinuously so a spent budget does not cut off the new layout.
func (fm *ForceModel) Reset() {
	fm.steps.Store(0)
}

// Steps returns the number of steps taken since the last reset
func (fm *ForceModel) Steps() int64 {
	return fm.steps.Load()
}

// Step advances the simulation by one time step. It returns the updated
// copy of nodes and whether the layout is still moving. Once the step budget
// is exhausted the call is a no-op that reports false.
func (fm *ForceModel) Step(nodes []models.Node, edges []models.Edge) ([]models.Node, bool) {
	out := models.CloneNodes(nodes)
	step := fm.steps.Add(1)
	if step > int64(fm.cfg.MaxSteps) || len(out) == 0 {
		return out, false
	}

	forces := fm.forces(out, edges, step)
	for i := range out {
		fm.integrate(&out[i], forces[i])
	}
	return out, fm.IsRunning(out)
}

// forces sums repulsion, spring attraction and centering for every node
func (fm *ForceModel) forces(nodes []models.Node, edges []models.Edge, step int64) []r2.Vec {
	cfg := fm.cfg
	forces := make([]r2.Vec, len(nodes))

	if cfg.Repulsion != 0 && len(nodes) > 1 {
		tree := Build(nodes)
		theta := Theta(len(nodes))
		rep := &Repulsion{
			Strength:    cfg.Repulsion,
			Epsilon:     cfg.Epsilon,
			JitterScale: cfg.JitterScale,
			noise:       fm.noise,
			step:        step,
		}
		for i, n := range nodes {
			forces[i] = tree.Force(n, theta, rep)
		}
	}

	wFrom, wTo := 1.0, 1.0
	if cfg.Asymmetric {
		wFrom = 2 * (1 - cfg.AsymmetricWeight)
		wTo = 2 * cfg.AsymmetricWeight
	}

	index := models.NodeIndex(nodes)
	for _, e := range edges {
		fi, okFrom := index[e.From]
		ti, okTo := index[e.To]
		if !okFrom || !okTo || fi == ti {
			continue
		}
		delta := r2.Sub(nodes[ti].Position, nodes[fi].Position)
		d := r2.Norm(delta)
		if d < cfg.Epsilon {
			continue
		}
		// Positive when stretched: pulls From toward To and To toward From
		spring := r2.Scale(cfg.Stiffness*(d-cfg.IdealLength)/d, delta)
		forces[fi] = r2.Add(forces[fi], r2.Scale(wFrom, spring))
		forces[ti] = r2.Sub(forces[ti], r2.Scale(wTo, spring))
	}

	if cfg.Centering != 0 {
		center := r2.Vec{X: cfg.Width / 2, Y: cfg.Height / 2}
		for i, n := range nodes {
			forces[i] = r2.Add(forces[i], r2.Scale(cfg.Centering, r2.Sub(center, n.Position)))
		}
	}

	return forces
}

// integrate applies one semi-implicit Euler update and the boundary policy:
// a clamped axis has its velocity inverted and scaled by Restitution.
func (fm *ForceModel) integrate(n *models.Node, f r2.Vec) {
	cfg := fm.cfg
	dt := cfg.TimeStep

	v := r2.Scale(cfg.Damping, r2.Add(n.Velocity, r2.Scale(dt, f)))
	if s := r2.Norm(v); s > cfg.MaxSpeed {
		v = r2.Scale(cfg.MaxSpeed/s, v)
	}
	p := r2.Add(n.Position, r2.Scale(dt, v))

	if !finite(p) || !finite(v) {
		n.Velocity = r2.Vec{}
		return
	}

	p.X, v.X = bound(p.X, v.X, cfg.Padding, cfg.Width-cfg.Padding, cfg.Restitution)
	p.Y, v.Y = bound(p.Y, v.Y, cfg.Padding, cfg.Height-cfg.Padding, cfg.Restitution)

	n.Position = p
	n.Velocity = v
}

// bound clamps x into [lo, hi], bouncing the velocity on contact
func bound(x, v, lo, hi, restitution float64) (float64, float64) {
	if lo > hi {
		lo = (lo + hi) / 2
		hi = lo
	}
	switch {
	case x < lo:
		return lo, -v * restitution
	case x > hi:
		return hi, -v * restitution
	default:
		return x, v
	}
}

func clampUnit(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}

func finite(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

// TotalSpeed sums the velocity magnitudes of all nodes
func TotalSpeed(nodes []models.Node) float64 {
	total := 0.0
	for _, n := range nodes {
		total += n.Speed()
	}
	return total
}

// IsRunning reports whether the aggregate speed is still at or above the
// threshold scaled by node count
func (fm *ForceModel) IsRunning(nodes []models.Node) bool {
	if len(nodes) == 0 {
		return false
	}
	return TotalSpeed(nodes) >= fm.cfg.VelocityThreshold*float64(len(nodes))
}
