package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TFMV/forcegraph/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLayoutCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "graph.json")
	require.NoError(t, os.WriteFile(input, []byte(`{
		"nodes": [{"id": "a"}, {"id": "b"}, {"id": "c", "note": "sink"}],
		"edges": [{"source": "a", "target": "b"}, {"source": "b", "target": "c"}]
	}`), 0o644))
	output := filepath.Join(dir, "out.txt")
	saveDir := filepath.Join(dir, "saved")

	stdout, err := execute(t,
		"--config", filepath.Join(dir, "absent.toml"),
		"--log-level", "error",
		"layout", input,
		"--format", "ascii",
		"--output", output,
		"--save", saveDir,
		"--timeout", "20s",
	)
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "layout complete")
	assert.Contains(t, stdout, "Nodes")

	rendered, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(rendered), "+"))
	assert.Contains(t, string(rendered), "#", "the note node is drawn")

	nodes, edges, err := storage.NewFileStore(saveDir).Load()
	require.NoError(t, err)
	assert.Len(t, nodes, 3)
	assert.Len(t, edges, 2)
}

func TestLayoutToStdout(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "edges.csv")
	require.NoError(t, os.WriteFile(input, []byte("source,target\nx,y\n"), 0o644))

	stdout, err := execute(t,
		"--config", filepath.Join(dir, "absent.toml"),
		"--log-level", "error",
		"layout", input, "--format", "dot", "--output", "-",
	)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "digraph"))
	assert.NotContains(t, stdout, "layout complete")
}

func TestLayoutErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "absent.toml")

	_, err := execute(t, "--config", cfg, "layout")
	assert.Error(t, err, "input is required")

	_, err = execute(t, "--config", cfg, "layout", filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "graph.xml")
	require.NoError(t, os.WriteFile(bad, []byte("<graph/>"), 0o644))
	_, err = execute(t, "--config", cfg, "layout", bad)
	assert.Error(t, err)

	good := filepath.Join(dir, "graph.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"nodes":[{"id":"a"}]}`), 0o644))
	_, err = execute(t, "--config", cfg, "layout", good, "--format", "png", "--output", filepath.Join(dir, "x.png"))
	assert.Error(t, err)
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forcegraph.toml")

	stdout, err := execute(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, path)
	assert.FileExists(t, path)

	_, err = execute(t, "--config", path, "config", "init")
	assert.Error(t, err, "refuses to overwrite")

	_, err = execute(t, "--config", path, "config", "init", "--force")
	assert.NoError(t, err)

	stdout, err = execute(t, "--config", path, "--log-format", "json", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "[physics]")
	assert.Contains(t, stdout, "[simulation]")
	assert.Contains(t, stdout, `format = "json"`)
}
