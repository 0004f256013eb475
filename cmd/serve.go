package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/TFMV/forcegraph/config"
	"github.com/TFMV/forcegraph/graph"
	"github.com/TFMV/forcegraph/ingest"
	"github.com/TFMV/forcegraph/physics"
	"github.com/TFMV/forcegraph/render"
	"github.com/TFMV/forcegraph/server"
	"github.com/TFMV/forcegraph/simulation"
	"github.com/TFMV/forcegraph/storage"
	"github.com/spf13/cobra"
)

func serveCmd(root *rootOptions) *cobra.Command {
	var (
		addr       string
		dataDir    string
		load       bool
		importFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an editable graph over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("data") {
				cfg.Storage.Dir = dataDir
			}

			logger := config.NewLogger(cfg.Log, os.Stderr)
			state := graph.New(graph.Options{HistoryCapacity: cfg.History.Capacity, Logger: logger})
			driver := simulation.NewDriver(state, physics.NewForceModel(cfg.Physics), cfg.Simulation, logger)
			state.SetSimulation(driver)
			store := storage.NewFileStore(cfg.Storage.Dir)

			out := cmd.OutOrStdout()
			if load {
				if err := state.LoadFrom(store); err != nil {
					return err
				}
				fmt.Fprintf(out, "  %s loaded %d nodes from %s\n", statusIcon(true), state.NodeCount(), cfg.Storage.Dir)
			}
			if importFile != "" {
				imp, err := importGraph(importFile, "", placementFor(cfg))
				if err != nil {
					return err
				}
				if err := state.Import(imp.Nodes, imp.Edges); err != nil {
					return err
				}
				fmt.Fprintf(out, "  %s imported %d nodes, %d edges from %s\n",
					statusIcon(true), len(imp.Nodes), len(imp.Edges), importFile)
			}

			opts := render.NewDefaultOptions("svg")
			opts.Width, opts.Height = cfg.Physics.Width, cfg.Physics.Height
			opts.Palette = render.PaletteByName(cfg.Render.Palette)

			srv := server.New(server.Config{
				Addr:         cfg.Server.Addr,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
				Render:       *opts,
				Placement:    placementFor(cfg),
			}, state, driver, store, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			defer driver.Stop()

			fmt.Fprintf(out, "%s serving on %s\n", Brand.Sprint("forcegraph"), displayAddr(cfg.Server.Addr))
			if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&dataDir, "data", "data", "Directory for saved graphs")
	cmd.Flags().BoolVar(&load, "load", false, "Load the saved graph on startup")
	cmd.Flags().StringVar(&importFile, "import", "", "Import a JSON, CSV or log file on startup")
	return cmd
}

// placementFor puts imported nodes on a circle centered in the canvas
func placementFor(cfg *config.Config) ingest.Placement {
	w, h := cfg.Physics.Width, cfg.Physics.Height
	if w <= 0 || h <= 0 {
		return ingest.DefaultPlacement()
	}
	p := ingest.DefaultPlacement()
	p.Center.X, p.Center.Y = w/2, h/2
	p.Radius = min(w, h) / 3
	return p
}

// importGraph reads path and converts it with the processor for format,
// or for the file extension when format is empty
func importGraph(path, format string, p ingest.Placement) (*ingest.Import, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	proc, err := ingest.GetProcessor(format, p)
	if err != nil {
		return nil, err
	}
	imp, err := proc.ProcessData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to process data: %w", err)
	}
	return imp, nil
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

// waitSettled blocks until the driver's current run ends or ctx is done
func waitSettled(ctx context.Context, driver *simulation.Driver) bool {
	select {
	case <-driver.Done():
		return true
	case <-ctx.Done():
		return false
	}
}
