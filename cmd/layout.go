package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/TFMV/forcegraph/config"
	"github.com/TFMV/forcegraph/graph"
	"github.com/TFMV/forcegraph/physics"
	"github.com/TFMV/forcegraph/render"
	"github.com/TFMV/forcegraph/simulation"
	"github.com/TFMV/forcegraph/storage"
	"github.com/spf13/cobra"
)

var outputExtensions = map[string]string{
	"svg":   "svg",
	"ascii": "txt",
	"txt":   "txt",
	"json":  "json",
	"dot":   "dot",
	"gv":    "dot",
}

type layoutOptions struct {
	inputFormat string
	format      string
	output      string
	palette     string
	width       float64
	height      float64
	asymmetric  bool
	seed        int64
	timeout     time.Duration
	timestamp   bool
	saveDir     string
}

func layoutCmd(root *rootOptions) *cobra.Command {
	opts := &layoutOptions{}

	cmd := &cobra.Command{
		Use:   "layout <file>",
		Short: "Lay out a JSON, CSV or log file and render the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("width") {
				cfg.Physics.Width = opts.width
			}
			if flags.Changed("height") {
				cfg.Physics.Height = opts.height
			}
			if flags.Changed("asymmetric") {
				cfg.Physics.Asymmetric = opts.asymmetric
			}
			if flags.Changed("seed") {
				cfg.Physics.Seed = opts.seed
			}
			if !flags.Changed("palette") {
				opts.palette = cfg.Render.Palette
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runLayout(cmd, cfg, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.inputFormat, "input-format", "", "Input format: json, csv or log (defaults to the file extension)")
	flags.StringVarP(&opts.format, "format", "f", "svg", "Output format: svg, ascii, json or dot")
	flags.StringVarP(&opts.output, "output", "o", "", "Output file, - for stdout (defaults to layout.<ext>)")
	flags.StringVar(&opts.palette, "palette", "default", "Color palette: default or dark")
	flags.Float64Var(&opts.width, "width", 800, "Canvas width")
	flags.Float64Var(&opts.height, "height", 600, "Canvas height")
	flags.BoolVar(&opts.asymmetric, "asymmetric", false, "Bias springs toward edge targets")
	flags.Int64Var(&opts.seed, "seed", 1, "Jitter noise seed")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Stop the simulation after this long")
	flags.BoolVar(&opts.timestamp, "timestamp", false, "Include a timestamp in the output")
	flags.StringVar(&opts.saveDir, "save", "", "Also save the laid out graph to this directory")
	return cmd
}

func runLayout(cmd *cobra.Command, cfg *config.Config, input string, opts *layoutOptions) error {
	out := cmd.OutOrStdout()
	logger := config.NewLogger(cfg.Log, cmd.ErrOrStderr())

	imp, err := importGraph(input, opts.inputFormat, placementFor(cfg))
	if err != nil {
		return err
	}

	state := graph.New(graph.Options{HistoryCapacity: cfg.History.Capacity, Logger: logger})
	driver := simulation.NewDriver(state, physics.NewForceModel(cfg.Physics), cfg.Simulation, logger)
	state.SetSimulation(driver)

	// Import restarts the driver
	if err := state.Import(imp.Nodes, imp.Edges); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	start := time.Now()
	settled := waitSettled(ctx, driver)
	driver.Stop()

	if !settled {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		Warn.Fprintf(out, "  ! simulation did not settle within %s, using partial results\n", opts.timeout)
	}

	renderOpts := render.NewDefaultOptions(opts.format)
	renderOpts.Width, renderOpts.Height = cfg.Physics.Width, cfg.Physics.Height
	renderOpts.Timestamp = opts.timestamp
	renderOpts.Palette = render.PaletteByName(opts.palette)

	output, err := render.Generate(state.State(), renderOpts)
	if err != nil {
		return fmt.Errorf("rendering failed: %w", err)
	}

	if opts.output == "-" {
		_, err := out.Write(output)
		return err
	}
	path := opts.output
	if path == "" {
		ext, ok := outputExtensions[opts.format]
		if !ok {
			ext = opts.format
		}
		path = "layout." + ext
	}
	if err := os.WriteFile(path, output, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	if opts.saveDir != "" {
		if err := state.SaveTo(storage.NewFileStore(opts.saveDir)); err != nil {
			return err
		}
	}

	reason := driver.Settled()
	if reason == simulation.SettleNone {
		reason = "stopped"
	}
	fmt.Fprintf(out, "%s %s\n", statusIcon(true), Brand.Sprint("layout complete"))
	field(out, "Nodes", len(imp.Nodes))
	field(out, "Edges", len(imp.Edges))
	if imp.Skipped > 0 {
		field(out, "Skipped", imp.Skipped)
	}
	field(out, "Ticks", driver.Ticks())
	field(out, "Settled", reason)
	field(out, "Elapsed", time.Since(start).Round(time.Millisecond))
	field(out, "Output", path)
	if opts.saveDir != "" {
		field(out, "Saved", opts.saveDir)
	}
	return nil
}
