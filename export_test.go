package repograph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport_Graph(t *testing.T) {
	t.Parallel()
	q := newAnalyzedEngine(t, queryFixture).Query()

	g, err := q.Export()
	require.NoError(t, err)

	assert.Equal(t, GraphSummary{TotalNodes: 5, TotalEdges: 4, Files: 3}, g.Summary)
	assert.Equal(t, GraphNode{
		ID:       "app.py::main",
		Label:    "main",
		File:     "app.py",
		Language: "python",
		Type:     "function",
	}, g.Nodes[0])
	assert.Equal(t, []GraphEdge{
		{From: "app.py::main", To: "app.py::render", Type: "calls"},
		{From: "app.py::main", To: "lib/util.py::load", Type: "calls"},
		{From: "app.py::main", To: "web/ui.js::load", Type: "calls"},
		{From: "web/ui.js::draw", To: "app.py::render", Type: "calls"},
	}, g.Edges)
}

func TestExport_EmptyGraphEncodesArrays(t *testing.T) {
	t.Parallel()
	q := newTestEngine(t).Query()

	g, err := q.Export()
	require.NoError(t, err)
	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[],"edges":[],"summary":{"total_nodes":0,"total_edges":0,"files":0}}`, string(data))
}
