package repograph

import (
	"fmt"
	"sort"
)

// maxGraphDepth caps transitive traversals.
const maxGraphDepth = 100

// CallGraph is a transitive call graph rooted at a function node. Nodes and
// edges are bulk-loaded then traversed with BFS; no recursive SQL.
type CallGraph struct {
	Root  int64           // starting node ID
	Nodes []CallGraphNode // all nodes reachable within depth, root first
	Edges []CallGraphEdge // all edges between reached nodes
	Depth int             // actual max depth reached
}

// CallGraphNode is a node with its BFS distance from the root.
type CallGraphNode struct {
	Function Function
	Depth    int
}

// CallGraphEdge is one caller → callee edge.
type CallGraphEdge struct {
	CallerID   int64
	CalleeID   int64
	SourceFile string
}

// callGraphData holds bulk-loaded adjacency maps.
type callGraphData struct {
	forward       map[int64][]int64
	reverse       map[int64][]int64
	edgesByCaller map[int64][]*CallEdge
}

func (q *QueryBuilder) buildCallGraph() (*callGraphData, error) {
	edges, err := q.store.AllCallEdges()
	if err != nil {
		return nil, fmt.Errorf("build call graph: load edges: %w", err)
	}
	data := &callGraphData{
		forward:       make(map[int64][]int64),
		reverse:       make(map[int64][]int64),
		edgesByCaller: make(map[int64][]*CallEdge),
	}
	for _, e := range edges {
		data.forward[e.CallerID] = append(data.forward[e.CallerID], e.CalleeID)
		data.reverse[e.CalleeID] = append(data.reverse[e.CalleeID], e.CallerID)
		data.edgesByCaller[e.CallerID] = append(data.edgesByCaller[e.CallerID], e)
	}
	return data, nil
}

// TransitiveCallers returns every node that reaches id through at most
// maxDepth edges. maxDepth of 0 returns only the root; negative is an error;
// values above 100 are capped. Returns nil, nil if id does not exist.
func (q *QueryBuilder) TransitiveCallers(id int64, maxDepth int) (*CallGraph, error) {
	return q.transitive("transitive callers", id, maxDepth, false)
}

// TransitiveCallees returns every node reachable from id through at most
// maxDepth edges. Same depth rules as TransitiveCallers.
func (q *QueryBuilder) TransitiveCallees(id int64, maxDepth int) (*CallGraph, error) {
	return q.transitive("transitive callees", id, maxDepth, true)
}

func (q *QueryBuilder) transitive(op string, rootID int64, maxDepth int, forward bool) (*CallGraph, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("%s: maxDepth must be non-negative, got %d", op, maxDepth)
	}
	if maxDepth > maxGraphDepth {
		maxDepth = maxGraphDepth
	}

	root, err := q.store.FunctionByID(rootID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if root == nil {
		return nil, nil
	}

	result := &CallGraph{
		Root:  rootID,
		Nodes: []CallGraphNode{{Function: *root, Depth: 0}},
		Edges: []CallGraphEdge{},
	}
	if maxDepth == 0 {
		return result, nil
	}

	data, err := q.buildCallGraph()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	adj := data.reverse
	if forward {
		adj = data.forward
	}

	visited := map[int64]int{rootID: 0}
	type bfsEntry struct {
		id    int64
		depth int
	}
	queue := []bfsEntry{{id: rootID}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= maxDepth {
			continue
		}
		for _, next := range adj[current.id] {
			if _, seen := visited[next]; seen {
				continue
			}
			d := current.depth + 1
			visited[next] = d
			if d > result.Depth {
				result.Depth = d
			}
			queue = append(queue, bfsEntry{id: next, depth: d})
		}
	}

	nodeIDs := make([]int64, 0, len(visited)-1)
	for id := range visited {
		if id != rootID {
			nodeIDs = append(nodeIDs, id)
		}
	}
	fns, err := q.store.FunctionsByIDs(nodeIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: load nodes: %w", op, err)
	}
	var reached []CallGraphNode
	for _, id := range nodeIDs {
		if fn, ok := fns[id]; ok {
			reached = append(reached, CallGraphNode{Function: *fn, Depth: visited[id]})
		}
	}
	sort.Slice(reached, func(i, j int) bool {
		if reached[i].Depth != reached[j].Depth {
			return reached[i].Depth < reached[j].Depth
		}
		if reached[i].Function.FilePath != reached[j].Function.FilePath {
			return reached[i].Function.FilePath < reached[j].Function.FilePath
		}
		return reached[i].Function.Name < reached[j].Function.Name
	})
	result.Nodes = append(result.Nodes, reached...)

	// An edge belongs to the subgraph when both endpoints were reached.
	edgeSeen := make(map[int64]bool)
	for id := range visited {
		for _, e := range data.edgesByCaller[id] {
			if _, ok := visited[e.CalleeID]; !ok || edgeSeen[e.ID] {
				continue
			}
			edgeSeen[e.ID] = true
			result.Edges = append(result.Edges, CallGraphEdge{
				CallerID:   e.CallerID,
				CalleeID:   e.CalleeID,
				SourceFile: e.SourceFile,
			})
		}
	}
	sort.Slice(result.Edges, func(i, j int) bool {
		if result.Edges[i].CallerID != result.Edges[j].CallerID {
			return result.Edges[i].CallerID < result.Edges[j].CallerID
		}
		return result.Edges[i].CalleeID < result.Edges[j].CalleeID
	})
	return result, nil
}
