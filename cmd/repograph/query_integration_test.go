package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests drive rootCmd in-process. They share the package-level flag
// variables and change the working directory, so none of them run in
// parallel.

// createFixture writes a small repository with a .git directory so
// findRepoRoot anchors the database inside it.
func createFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	files := map[string]string{
		"app.py":     "def main():\n    \"\"\"Entry point that loads the config.\"\"\"\n    load()\n    render()\n\ndef render():\n    pass\n",
		"lib/cfg.py": "def load():\n    pass\n",
		"web/ui.js":  "function load() {}\nfunction draw() { render(); }\n",
	}
	for rel, src := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return dir
}

func resetFlags() {
	flagDB, flagIndex, flagFormat, flagLogLevel = "", "", "json", "error"
	flagForce, flagLanguages, flagExcludes, flagSerial, flagWorkers, flagDepth = false, "", nil, false, 0, -1
	flagLimit, flagOffset, flagOutput = 50, 0, ""
	errorHandled = false
}

// runCLI executes rootCmd with args and returns what it wrote to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.Execute()
	return out.String(), err
}

func decodeResult(t *testing.T, out string) map[string]any {
	t.Helper()
	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result), "invalid JSON output: %s", out)
	return result
}

func analyzedFixture(t *testing.T) string {
	t.Helper()
	dir := createFixture(t)
	t.Chdir(dir)
	out, err := runCLI(t, "analyze", dir)
	require.NoError(t, err, out)
	return dir
}

func resultNames(t *testing.T, result map[string]any) []string {
	t.Helper()
	items, ok := result["results"].([]any)
	require.True(t, ok, "results should be a list: %v", result["results"])
	var names []string
	for _, item := range items {
		names = append(names, item.(map[string]any)["node_id"].(string))
	}
	return names
}

func TestAnalyze_WritesDatabaseAndStats(t *testing.T) {
	dir := createFixture(t)
	t.Chdir(dir)

	out, err := runCLI(t, "analyze", dir)
	require.NoError(t, err)
	result := decodeResult(t, out)
	assert.Equal(t, "analyze", result["command"])
	stats := result["results"].(map[string]any)
	assert.EqualValues(t, 3, stats["files"])
	assert.EqualValues(t, 5, stats["functions"])
	assert.EqualValues(t, 4, stats["edges"])
	assert.EqualValues(t, 1, stats["documents"])
	assert.NotEmpty(t, stats["job_id"])
	assert.FileExists(t, filepath.Join(dir, ".repograph", "graph.db"))
}

func TestAnalyze_MissingDirectory(t *testing.T) {
	t.Chdir(t.TempDir())
	out, err := runCLI(t, "analyze", "does-not-exist")
	require.Error(t, err)
	assert.Contains(t, decodeResult(t, out)["error"], "directory not found")
}

func TestQuery_Callers(t *testing.T) {
	analyzedFixture(t)

	out, err := runCLI(t, "query", "callers", "render")
	require.NoError(t, err)
	result := decodeResult(t, out)
	assert.Equal(t, "callers", result["command"])
	assert.Equal(t, []string{"app.py::main", "web/ui.js::draw"}, resultNames(t, result))
	assert.EqualValues(t, 2, result["total_count"])
}

func TestQuery_Callees(t *testing.T) {
	analyzedFixture(t)

	out, err := runCLI(t, "query", "callees", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"app.py::render", "lib/cfg.py::load", "web/ui.js::load"}, resultNames(t, decodeResult(t, out)))
}

func TestQuery_FunctionsPagination(t *testing.T) {
	analyzedFixture(t)

	out, err := runCLI(t, "query", "functions", "--limit", "2", "--offset", "1")
	require.NoError(t, err)
	result := decodeResult(t, out)
	assert.Equal(t, []string{"app.py::render", "lib/cfg.py::load"}, resultNames(t, result))
	assert.EqualValues(t, 5, result["total_count"])
}

func TestQuery_CallGraphAmbiguousName(t *testing.T) {
	analyzedFixture(t)

	out, err := runCLI(t, "query", "callgraph", "load")
	require.Error(t, err)
	assert.Contains(t, decodeResult(t, out)["error"], "pass --file")
}

// resetCommandFlags restores cobra-held flags that resetFlags cannot reach.
func resetCommandFlags(t *testing.T) {
	t.Cleanup(func() {
		require.NoError(t, callGraphCmd.Flags().Set("file", ""))
		require.NoError(t, callGraphCmd.Flags().Set("reverse", "false"))
		require.NoError(t, filesCmd.Flags().Set("failed", "false"))
	})
}

func TestQuery_CallGraphWithFile(t *testing.T) {
	analyzedFixture(t)
	resetCommandFlags(t)

	out, err := runCLI(t, "query", "callgraph", "load", "--file", "lib/cfg.py", "--reverse")
	require.NoError(t, err, out)
	graph := decodeResult(t, out)["results"].(map[string]any)
	assert.Equal(t, "lib/cfg.py::load", graph["root"].(map[string]any)["node_id"])
	var nodes []string
	for _, n := range graph["nodes"].([]any) {
		nodes = append(nodes, n.(map[string]any)["node_id"].(string))
	}
	assert.Equal(t, []string{"lib/cfg.py::load", "app.py::main"}, nodes)

	out, err = runCLI(t, "query", "callgraph", "load", "--file", "app.py")
	require.Error(t, err)
	assert.Contains(t, decodeResult(t, out)["error"], `no function named "load" in app.py`)
}

func TestQuery_FilesFailed(t *testing.T) {
	dir := createFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.py"), []byte("\xff\xfe"), 0o644))
	t.Chdir(dir)
	resetCommandFlags(t)
	out, err := runCLI(t, "analyze", dir)
	require.NoError(t, err, out)

	out, err = runCLI(t, "query", "files", "--failed")
	require.NoError(t, err)
	result := decodeResult(t, out)
	items := result["results"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "bad.py", items[0].(map[string]any)["path"])
	assert.Equal(t, "failed", items[0].(map[string]any)["status"])
}

func TestQuery_Summary(t *testing.T) {
	analyzedFixture(t)

	out, err := runCLI(t, "query", "summary")
	require.NoError(t, err)
	summary := decodeResult(t, out)["results"].(map[string]any)
	assert.EqualValues(t, 5, summary["functions"])
	assert.EqualValues(t, 4, summary["calls"])
}

func TestQuery_DocsAndAsk(t *testing.T) {
	analyzedFixture(t)

	out, err := runCLI(t, "query", "docs", "entry", "point")
	require.NoError(t, err)
	hits := decodeResult(t, out)["results"].([]any)
	require.Len(t, hits, 1)
	assert.Equal(t, "main", hits[0].(map[string]any)["function"])

	out, err = runCLI(t, "query", "ask", "where", "is", "the", "config", "loaded")
	require.NoError(t, err)
	matches := decodeResult(t, out)["results"].([]any)
	require.NotEmpty(t, matches)
}

func TestQuery_TextFormat(t *testing.T) {
	analyzedFixture(t)

	out, err := runCLI(t, "query", "functions", "--format", "text")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
}

func TestQuery_NoDatabase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	t.Chdir(dir)

	out, err := runCLI(t, "query", "summary")
	require.Error(t, err)
	assert.Contains(t, decodeResult(t, out)["error"], "database not found")
}

func TestExport_JSON(t *testing.T) {
	analyzedFixture(t)

	out, err := runCLI(t, "export")
	require.NoError(t, err)
	var g struct {
		Nodes   []map[string]any `json:"nodes"`
		Edges   []map[string]any `json:"edges"`
		Summary map[string]any   `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	assert.Len(t, g.Nodes, 5)
	assert.Len(t, g.Edges, 4)
	assert.EqualValues(t, 3, g.Summary["files"])
}

func TestExport_ToFile(t *testing.T) {
	dir := analyzedFixture(t)
	path := filepath.Join(dir, "graph.json")

	_, err := runCLI(t, "export", "-o", path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"app.py::main"`)
}
