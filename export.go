package repograph

import (
	"fmt"
	"sort"
)

// NodeID is the graph-export identifier of a function node.
func NodeID(filePath, name string) string {
	return filePath + "::" + name
}

// GraphNode is one node in an exported graph.
type GraphNode struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	File     string `json:"file"`
	Language string `json:"language"`
	Type     string `json:"type"`
}

// GraphEdge is one edge in an exported graph.
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// GraphSummary carries the exported graph's counts.
type GraphSummary struct {
	TotalNodes int `json:"total_nodes"`
	TotalEdges int `json:"total_edges"`
	Files      int `json:"files"`
}

// Graph is the whole call graph in a form suitable for JSON visualization.
type Graph struct {
	Nodes   []GraphNode  `json:"nodes"`
	Edges   []GraphEdge  `json:"edges"`
	Summary GraphSummary `json:"summary"`
}

// Export returns every node and edge. Nodes are ordered by (file, name),
// edges by (caller, callee) node ID.
func (q *QueryBuilder) Export() (*Graph, error) {
	fns, err := q.store.AllFunctions()
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	edges, err := q.store.AllCallEdges()
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	g := &Graph{
		Nodes: make([]GraphNode, 0, len(fns)),
		Edges: make([]GraphEdge, 0, len(edges)),
	}
	idByNode := make(map[int64]string, len(fns))
	files := make(map[string]bool)
	for _, fn := range fns {
		id := NodeID(fn.FilePath, fn.Name)
		idByNode[fn.ID] = id
		files[fn.FilePath] = true
		g.Nodes = append(g.Nodes, GraphNode{
			ID:       id,
			Label:    fn.Name,
			File:     fn.FilePath,
			Language: fn.Language,
			Type:     "function",
		})
	}
	for _, e := range edges {
		g.Edges = append(g.Edges, GraphEdge{
			From: idByNode[e.CallerID],
			To:   idByNode[e.CalleeID],
			Type: "calls",
		})
	}
	sortGraphEdges(g.Edges)

	g.Summary = GraphSummary{
		TotalNodes: len(g.Nodes),
		TotalEdges: len(g.Edges),
		Files:      len(files),
	}
	return g, nil
}

func sortGraphEdges(edges []GraphEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
}
