// Package simulation drives the force model on a cadence until the layout
// settles, publishing each tick's positions back into the graph state.
package simulation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/TFMV/forcegraph/models"
	"github.com/TFMV/forcegraph/physics"
)

// Source is the shared state the driver reads from and publishes into
type Source interface {
	// NodeCount returns the current number of nodes
	NodeCount() int
	// Read returns consistent copies of the nodes and edges together with
	// the revision they were read at
	Read() ([]models.Node, []models.Edge, uint64)
	// ApplyLayout writes positions computed from revision rev. Writes for a
	// revision that is no longer current are dropped.
	ApplyLayout(rev uint64, nodes []models.Node) bool
}

// Cadence sets the tick interval and substeps for graphs up to MaxNodes nodes
type Cadence struct {
	MaxNodes int           `toml:"max_nodes"`
	Interval time.Duration `toml:"interval"`
	Substeps int           `toml:"substeps"`
}

// Config holds the driver settings
type Config struct {
	MinNodes             int       `toml:"min_nodes"`
	WindowSize           int       `toml:"window_size"`
	ConvergenceThreshold float64   `toml:"convergence_threshold"`
	Cadences             []Cadence `toml:"cadence"` // Ascending by MaxNodes; the last tier covers larger graphs
}

// DefaultConfig returns the default driver settings
func DefaultConfig() Config {
	return Config{
		MinNodes:             2,
		WindowSize:           5,
		ConvergenceThreshold: 0.02,
		Cadences: []Cadence{
			{MaxNodes: 20, Interval: 16 * time.Millisecond, Substeps: 4},
			{MaxNodes: 100, Interval: 33 * time.Millisecond, Substeps: 2},
			{MaxNodes: 0, Interval: 66 * time.Millisecond, Substeps: 1},
		},
	}
}

// SettleReason explains why the driver stopped on its own
type SettleReason string

const (
	SettleNone           SettleReason = ""
	SettleTooSmall       SettleReason = "too_small"
	SettleMaxSteps       SettleReason = "max_steps"
	SettleBelowThreshold SettleReason = "below_threshold"
	SettleConverged      SettleReason = "converged"
)

// Driver repeatedly steps the force model without blocking its caller.
// Every Start begins a new generation; ticks from older generations are
// discarded before they can publish.
type Driver struct {
	src    Source
	model  *physics.ForceModel
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	window  []float64
	ticks   int
	settled SettleReason
}

// NewDriver creates a driver for src using model
func NewDriver(src Source, model *physics.ForceModel, cfg Config, logger *slog.Logger) *Driver {
	def := DefaultConfig()
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = def.WindowSize
	}
	if len(cfg.Cadences) == 0 {
		cfg.Cadences = def.Cadences
	}
	if logger == nil {
		logger = slog.Default()
	}
	done := make(chan struct{})
	close(done)
	return &Driver{
		src:    src,
		model:  model,
		cfg:    cfg,
		logger: logger,
		done:   done,
	}
}

// Start resets the force model and the convergence window and begins a new
// run. A run in progress is stopped first, and Start waits for its goroutine
// to exit so no step of the old run lands after the reset. Nothing is resumed.
func (d *Driver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.drainLocked()
	d.model.Reset()
	d.window = d.window[:0]
	d.ticks = 0
	d.settled = SettleNone

	done := make(chan struct{})
	d.done = done

	n := d.src.NodeCount()
	if n < d.cfg.MinNodes {
		d.settled = SettleTooSmall
		close(done)
		d.logger.Debug("Simulation not started", "nodes", n, "min_nodes", d.cfg.MinNodes)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	cadence := d.cadenceFor(n)
	d.logger.Debug("Simulation started",
		"nodes", n, "interval", cadence.Interval, "substeps", cadence.Substeps, "generation", d.gen)

	go d.run(ctx, d.gen, cadence, done)
}

// Stop halts the current run. Once Stop returns no pending tick can publish.
// Calling Stop when nothing runs is a no-op.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// drainLocked stops the current run and waits until its goroutine has
// exited. d.mu is released while waiting so the goroutine can finish its tick.
func (d *Driver) drainLocked() {
	for {
		d.stopLocked()
		done := d.done
		select {
		case <-done:
			return
		default:
		}
		d.mu.Unlock()
		<-done
		d.mu.Lock()
	}
}

func (d *Driver) stopLocked() {
	d.gen++
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// Running reports whether a run is in progress
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel != nil
}

// Done returns a channel closed when the current run's goroutine exits
func (d *Driver) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Settled returns why the last run ended on its own, if it did
func (d *Driver) Settled() SettleReason {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settled
}

// Ticks returns the number of ticks published by the current run
func (d *Driver) Ticks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ticks
}

// cadenceFor picks the first tier whose MaxNodes covers n
func (d *Driver) cadenceFor(n int) Cadence {
	for _, c := range d.cfg.Cadences {
		if c.MaxNodes <= 0 || n <= c.MaxNodes {
			return normalize(c)
		}
	}
	return normalize(d.cfg.Cadences[len(d.cfg.Cadences)-1])
}

func normalize(c Cadence) Cadence {
	if c.Interval <= 0 {
		c.Interval = 16 * time.Millisecond
	}
	if c.Substeps <= 0 {
		c.Substeps = 1
	}
	return c
}

func (d *Driver) run(ctx context.Context, gen uint64, c Cadence, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !d.tick(ctx, gen, c.Substeps) {
				return
			}
		}
	}
}

// tick runs the substeps against a private copy of the state, then publishes
// under the driver lock. It returns false when the run should end.
func (d *Driver) tick(ctx context.Context, gen uint64, substeps int) bool {
	nodes, edges, rev := d.src.Read()

	running := true
	for i := 0; i < substeps && running; i++ {
		if ctx.Err() != nil {
			return false
		}
		nodes, running = d.model.Step(nodes, edges)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.gen || ctx.Err() != nil {
		return false
	}

	if d.src.ApplyLayout(rev, nodes) {
		d.ticks++
	}

	d.window = append(d.window, physics.TotalSpeed(nodes))
	if len(d.window) > d.cfg.WindowSize {
		d.window = d.window[len(d.window)-d.cfg.WindowSize:]
	}

	reason := SettleNone
	switch {
	case !running && d.model.Steps() > int64(d.model.Config().MaxSteps):
		reason = SettleMaxSteps
	case !running:
		reason = SettleBelowThreshold
	case len(d.window) == d.cfg.WindowSize && converged(d.window, d.cfg.ConvergenceThreshold):
		reason = SettleConverged
	}

	if reason == SettleNone {
		return true
	}

	d.settled = reason
	d.stopLocked()
	d.logger.Info("Simulation settled",
		"reason", string(reason), "ticks", d.ticks, "steps", d.model.Steps())
	return false
}

// converged reports whether the relative spread of the window is below
// threshold. This catches slow oscillation the absolute check misses.
func converged(window []float64, threshold float64) bool {
	if len(window) == 0 {
		return false
	}
	lo, hi := window[0], window[0]
	for _, v := range window[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == 0 {
		return true
	}
	return (hi-lo)/hi < threshold
}
