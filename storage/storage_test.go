package storage

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/TFMV/forcegraph/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func sampleGraph() ([]models.Node, []models.Edge) {
	a := models.NewNode(1, r2.Vec{X: 123.456789012345, Y: 1.0 / 3.0})
	a.Velocity = r2.Vec{X: -0.1, Y: 2e-12}
	b := models.NewNoteNode(7, r2.Vec{X: 400, Y: 300}, "hello, \"world\"")
	b.Radius = 14
	return []models.Node{a, b}, []models.Edge{models.NewEdge(a.ID, b.ID)}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "graph"))
	nodes, edges := sampleGraph()

	require.NoError(t, store.Save(nodes, edges))
	gotNodes, gotEdges, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, nodes, gotNodes, "positions must not drift")
	assert.Equal(t, edges, gotEdges)
	assert.Equal(t, models.KindNote, gotNodes[1].Kind)
}

func TestFileStoreEmptyGraph(t *testing.T) {
	store := NewFileStore(t.TempDir())
	require.NoError(t, store.Save(nil, nil))

	nodes, edges, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.Empty(t, edges)
}

func TestFileStoreOverwrite(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	nodes, edges := sampleGraph()
	require.NoError(t, store.Save(nodes, edges))
	require.NoError(t, store.Save(nodes[:1], nil))

	got, _, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, got, 1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files are left behind")
}

func TestFileStoreLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
		want  error
	}{
		{
			name:  "nothing saved",
			setup: func(t *testing.T, dir string) {},
			want:  ErrLoadingFailed,
		},
		{
			name: "edges file missing",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, NodesFile), []byte("[]"), 0o644))
			},
			want: ErrInconsistentFiles,
		},
		{
			name: "nodes file missing",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, EdgesFile), []byte("[]"), 0o644))
			},
			want: ErrInconsistentFiles,
		},
		{
			name: "corrupt nodes",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, NodesFile), []byte("{not json"), 0o644))
				require.NoError(t, os.WriteFile(filepath.Join(dir, EdgesFile), []byte("[]"), 0o644))
			},
			want: ErrDecodingFailed,
		},
		{
			name: "dangling edge",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, NodesFile), []byte(`[{"id":"a","label":1}]`), 0o644))
				require.NoError(t, os.WriteFile(filepath.Join(dir, EdgesFile), []byte(`[{"id":"e","from":"a","to":"b"}]`), 0o644))
			},
			want: ErrInconsistentFiles,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)

			nodes, edges, err := NewFileStore(dir).Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, nodes)
			assert.Nil(t, edges)

			var se *StorageError
			require.True(t, errors.As(err, &se))
			assert.NotEmpty(t, se.Path)
		})
	}
}

func TestFileStoreMissingFileUnwraps(t *testing.T) {
	_, _, err := NewFileStore(t.TempDir()).Load()
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NotErrorIs(t, err, ErrDecodingFailed)
}

func TestFileStoreEncodingFailure(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	bad := models.NewNode(1, r2.Vec{X: math.NaN(), Y: 0})

	err := store.Save([]models.Node{bad}, nil)
	assert.ErrorIs(t, err, ErrEncodingFailed)

	_, statErr := os.Stat(filepath.Join(dir, NodesFile))
	assert.True(t, errors.Is(statErr, fs.ErrNotExist), "nothing is written when encoding fails")
}

func TestLoadDefaultsRadius(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, NodesFile), []byte(`[{"id":"a","label":3,"x":1,"y":2,"kind":"mystery"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, EdgesFile), []byte(`[]`), 0o644))

	nodes, _, err := NewFileStore(dir).Load()
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, models.DefaultRadius, nodes[0].Radius)
	assert.Equal(t, models.KindBasic, nodes[0].Kind)
	assert.Equal(t, r2.Vec{X: 1, Y: 2}, nodes[0].Position)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	_, _, err := store.Load()
	assert.ErrorIs(t, err, ErrLoadingFailed)

	nodes, edges := sampleGraph()
	require.NoError(t, store.Save(nodes, edges))
	nodes[0].Label = 99

	got, gotEdges, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, got[0].Label, "store keeps its own copy")
	assert.Equal(t, edges, gotEdges)
}
