// Package config loads forcegraph settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/TFMV/forcegraph/graph"
	"github.com/TFMV/forcegraph/physics"
	"github.com/TFMV/forcegraph/simulation"
)

// DefaultFile is the config file name looked up in the working directory
const DefaultFile = "forcegraph.toml"

// Config holds forcegraph configuration
type Config struct {
	Physics    physics.Config    `toml:"physics"`
	Simulation simulation.Config `toml:"simulation"`
	History    HistoryConfig     `toml:"history"`
	Storage    StorageConfig     `toml:"storage"`
	Server     ServerConfig      `toml:"server"`
	Render     RenderConfig      `toml:"render"`
	Log        LogConfig         `toml:"log"`
}

// HistoryConfig controls the undo/redo stacks
type HistoryConfig struct {
	Capacity int `toml:"capacity"`
}

// StorageConfig controls where graphs are saved
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// ServerConfig controls the HTTP server
type ServerConfig struct {
	Addr         string        `toml:"addr"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	IdleTimeout  time.Duration `toml:"idle_timeout"`
}

// RenderConfig controls static output
type RenderConfig struct {
	Palette string `toml:"palette"` // "default" or "dark"
}

// LogConfig controls logging
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Physics:    physics.DefaultConfig(),
		Simulation: simulation.DefaultConfig(),
		History:    HistoryConfig{Capacity: graph.DefaultHistoryCapacity},
		Storage:    StorageConfig{Dir: "data"},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Render: RenderConfig{Palette: "default"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the config file at path on top of the defaults. A missing file
// yields the defaults. Keys the file sets that no field knows are an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Validate reports every setting that cannot be used
func (c *Config) Validate() error {
	var errs []error
	if c.History.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("history.capacity must be positive, got %d", c.History.Capacity))
	}
	if c.Physics.Width < 0 || c.Physics.Height < 0 {
		errs = append(errs, errors.New("physics.width and physics.height must not be negative"))
	}
	if c.Physics.Width > 0 && c.Physics.Height > 0 &&
		(2*c.Physics.Padding >= c.Physics.Width || 2*c.Physics.Padding >= c.Physics.Height) {
		errs = append(errs, errors.New("physics.padding leaves no room inside the canvas"))
	}
	if c.Physics.Damping < 0 || c.Physics.Damping > 1 {
		errs = append(errs, fmt.Errorf("physics.damping must be in [0,1], got %g", c.Physics.Damping))
	}
	if c.Physics.AsymmetricWeight < 0 || c.Physics.AsymmetricWeight > 1 {
		errs = append(errs, fmt.Errorf("physics.asymmetric_weight must be in [0,1], got %g", c.Physics.AsymmetricWeight))
	}
	if c.Simulation.WindowSize < 0 || c.Simulation.MinNodes < 0 {
		errs = append(errs, errors.New("simulation.window_size and simulation.min_nodes must not be negative"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
