// Package cmd implements the forcegraph command line.
package cmd

import (
	"os"

	"github.com/TFMV/forcegraph/config"
	"github.com/spf13/cobra"
)

var version = "0.3.0"

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// loadConfig reads the config file and applies the logging flags
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "forcegraph",
		Short: "forcegraph - interactive force-directed graph layout",
		Long: Brand.Sprint("forcegraph") + " lays out graphs with a Barnes-Hut force simulation\n" +
			Subtle.Sprint("Serve an editable graph over HTTP or lay out a file in one shot"),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("forcegraph {{ .Version }}\n")

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultFile, "Path to the TOML config file")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")

	cmd.AddCommand(
		serveCmd(opts),
		layoutCmd(opts),
		configCmd(opts),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		Bad.Fprintf(os.Stderr, "forcegraph: %v\n", err)
		return err
	}
	return nil
}
