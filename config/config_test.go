package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10, cfg.History.Capacity)
	assert.Equal(t, 5, cfg.Simulation.WindowSize)
	assert.Equal(t, 2, cfg.Simulation.MinNodes)
	assert.Len(t, cfg.Simulation.Cadences, 3)
	assert.Equal(t, 800.0, cfg.Physics.Width)
	assert.False(t, cfg.Physics.Asymmetric)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forcegraph.toml")
	data := `
[physics]
repulsion = 2500.0
asymmetric = true

[simulation]
convergence_threshold = 0.05

[[simulation.cadence]]
max_nodes = 0
interval = "10ms"
substeps = 3

[history]
capacity = 25

[log]
level = "debug"
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2500.0, cfg.Physics.Repulsion)
	assert.True(t, cfg.Physics.Asymmetric)
	assert.Equal(t, 0.05, cfg.Physics.Stiffness, "unset keys keep their defaults")
	assert.Equal(t, 0.05, cfg.Simulation.ConvergenceThreshold)
	require.Len(t, cfg.Simulation.Cadences, 1)
	assert.Equal(t, 10*time.Millisecond, cfg.Simulation.Cadences[0].Interval)
	assert.Equal(t, 3, cfg.Simulation.Cadences[0].Substeps)
	assert.Equal(t, 25, cfg.History.Capacity)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", "[physics\nrepulsion = 1"},
		{"unknown key", "[physics]\nrepulsoin = 1.0\n"},
		{"invalid value", "[history]\ncapacity = 0\n"},
		{"bad damping", "[physics]\ndamping = 1.5\n"},
		{"bad log format", "[log]\nformat = \"xml\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "forcegraph.toml")

	cfg := Default()
	cfg.History.Capacity = 3
	cfg.Physics.IdealLength = 140
	cfg.Storage.Dir = "/var/lib/forcegraph"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "nodes", 3)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.EqualValues(t, 3, entry["nodes"])

	buf.Reset()
	NewLogger(LogConfig{}, &buf).Debug("quiet")
	assert.Empty(t, buf.String())
}
