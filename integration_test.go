package repograph

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden test format: node IDs and "from -> to" edges, both sorted.
type goldenFile struct {
	Nodes []string `json:"nodes"`
	Edges []string `json:"edges"`
}

func loadGolden(t *testing.T, path string) goldenFile {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var g goldenFile
	require.NoError(t, json.Unmarshal(data, &g))
	return g
}

// TestGolden analyzes every testdata/<level>/src tree in serial and parallel
// mode and compares the exported graph with testdata/<level>/golden.json.
func TestGolden(t *testing.T) {
	levels, err := filepath.Glob(filepath.Join("testdata", "level-*"))
	require.NoError(t, err)
	require.NotEmpty(t, levels)

	for _, dir := range levels {
		want := loadGolden(t, filepath.Join(dir, "golden.json"))
		src, err := filepath.Abs(filepath.Join(dir, "src"))
		require.NoError(t, err)

		for _, parallel := range []bool{false, true} {
			name := filepath.Base(dir) + "/serial"
			if parallel {
				name = filepath.Base(dir) + "/parallel"
			}
			t.Run(name, func(t *testing.T) {
				t.Parallel()
				e := newTestEngine(t, WithParallel(parallel))
				stats, err := e.Analyze(context.Background(), src)
				require.NoError(t, err)
				assert.Empty(t, stats.Failed)

				assert.Equal(t, want.Nodes, nodeSet(t, e), "nodes")
				got := edgeSet(t, e)
				if len(want.Edges) == 0 {
					assert.Empty(t, got, "edges")
				} else {
					assert.Equal(t, want.Edges, got, "edges")
				}
			})
		}
	}
}

// TestIntegration_PersistsAcrossReopen checks that the graph and the
// on-disk documentation index survive closing and reopening the Engine.
func TestIntegration_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "graph.db")
	indexPath := filepath.Join(dir, "docs.bleve")
	src, err := filepath.Abs(filepath.Join("testdata", "level-01-cross-file", "src"))
	require.NoError(t, err)

	e, err := New(dbPath, indexPath)
	require.NoError(t, err)
	_, err = e.Analyze(context.Background(), src)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e, err = New(dbPath, indexPath)
	require.NoError(t, err)
	defer e.Close()

	s, err := e.Query().Summary()
	require.NoError(t, err)
	assert.Equal(t, src, s.Root)
	assert.Equal(t, 3, s.Functions)
	assert.Equal(t, 2, s.Calls)
	assert.Equal(t, uint64(1), s.Documents)

	hits, err := e.Query().SearchDocs(context.Background(), "greeting", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "greet", hits[0].FunctionName)
}

func TestIntegration_RespectsGitignore(t *testing.T) {
	t.Parallel()
	root := writeRepo(t, map[string]string{
		".gitignore":        "generated/\n*.min.js\n",
		"main.py":           "def main():\n    gen()\n",
		"generated/gen.py":  "def gen():\n    pass\n",
		"static/app.min.js": "function gen() {}\n",
		"static/app.js":     "function app() { main(); }\n",
	})
	e := newTestEngine(t)
	stats, err := e.Analyze(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, []string{"main.py::main", "static/app.js::app"}, nodeSet(t, e))
	assert.Equal(t, []string{"static/app.js::app -> main.py::main"}, edgeSet(t, e))
}

func TestIntegration_AnalyzeSourceLocalDirectory(t *testing.T) {
	t.Parallel()
	src, err := filepath.Abs(filepath.Join("testdata", "level-06-recursion-and-cycles", "src"))
	require.NoError(t, err)

	e := newTestEngine(t)
	stats, err := e.AnalyzeSource(context.Background(), src, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, src, stats.Root)
	assert.Equal(t, 3, stats.Edges)
}
