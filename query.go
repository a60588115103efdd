package repograph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jward/repograph/internal/docindex"
	"github.com/jward/repograph/internal/store"
)

// QueryBuilder provides read access to the call graph and documentation
// index.
type QueryBuilder struct {
	store *store.Store
	index *docindex.Index
}

// FunctionFilter narrows Functions. Zero fields match everything.
type FunctionFilter struct {
	// Name matches function names containing this substring
	// (case-insensitive).
	Name     string
	File     string
	Language string
}

// Functions returns the nodes matching filter, ordered by (file, name).
func (q *QueryBuilder) Functions(filter FunctionFilter) ([]*Function, error) {
	var (
		all []*Function
		err error
	)
	if filter.File != "" {
		all, err = q.store.FunctionsByFile(filter.File)
	} else {
		all, err = q.store.AllFunctions()
	}
	if err != nil {
		return nil, fmt.Errorf("functions: %w", err)
	}
	needle := strings.ToLower(filter.Name)
	var out []*Function
	for _, fn := range all {
		if needle != "" && !strings.Contains(strings.ToLower(fn.Name), needle) {
			continue
		}
		if filter.Language != "" && fn.Language != filter.Language {
			continue
		}
		out = append(out, fn)
	}
	return out, nil
}

// FunctionsByName returns every node with exactly this name.
func (q *QueryBuilder) FunctionsByName(name string) ([]*Function, error) {
	fns, err := q.store.FunctionsByName(name)
	if err != nil {
		return nil, fmt.Errorf("functions by name: %w", err)
	}
	return fns, nil
}

// Function returns the node for name defined in file, or nil if there is
// none.
func (q *QueryBuilder) Function(name, file string) (*Function, error) {
	fn, err := q.store.FunctionByKey(name, file)
	if err != nil {
		return nil, fmt.Errorf("function: %w", err)
	}
	return fn, nil
}

// Callers returns the distinct nodes with an edge into any node named name,
// ordered by (file, name).
func (q *QueryBuilder) Callers(name string) ([]*Function, error) {
	return q.neighbors(name, false)
}

// Callees returns the distinct nodes that any node named name has an edge
// to, ordered by (file, name).
func (q *QueryBuilder) Callees(name string) ([]*Function, error) {
	return q.neighbors(name, true)
}

func (q *QueryBuilder) neighbors(name string, outgoing bool) ([]*Function, error) {
	op := "callers"
	if outgoing {
		op = "callees"
	}
	targets, err := q.store.FunctionsByName(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	seen := make(map[int64]bool)
	var ids []int64
	for _, t := range targets {
		var edges []*CallEdge
		if outgoing {
			edges, err = q.store.CalleesOf(t.ID)
		} else {
			edges, err = q.store.CallersOf(t.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, e := range edges {
			id := e.CallerID
			if outgoing {
				id = e.CalleeID
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	byID, err := q.store.FunctionsByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]*Function, 0, len(byID))
	for _, fn := range byID {
		out = append(out, fn)
	}
	sortFunctions(out)
	return out, nil
}

func sortFunctions(fns []*Function) {
	sort.Slice(fns, func(i, j int) bool {
		if fns[i].FilePath != fns[j].FilePath {
			return fns[i].FilePath < fns[j].FilePath
		}
		return fns[i].Name < fns[j].Name
	})
}

// Files returns every analyzed file, including failed ones, ordered by path.
func (q *QueryBuilder) Files() ([]*File, error) {
	files, err := q.store.Files()
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	return files, nil
}

// FailedFiles returns the files that could not be read or parsed, ordered
// by path.
func (q *QueryBuilder) FailedFiles() ([]*File, error) {
	files, err := q.store.FilesByStatus(store.FileFailed)
	if err != nil {
		return nil, fmt.Errorf("failed files: %w", err)
	}
	return files, nil
}

// Summary describes the current graph.
type Summary struct {
	Root        string         `json:"root"`
	AnalyzedAt  string         `json:"analyzed_at"`
	Files       int            `json:"files"`
	FailedFiles int            `json:"failed_files"`
	Functions   int            `json:"functions"`
	Calls       int            `json:"calls"`
	Documents   uint64         `json:"documents"`
	Languages   map[string]int `json:"languages"`
}

// Summary returns counts for the current graph and index.
func (q *QueryBuilder) Summary() (*Summary, error) {
	counts, err := q.store.Counts()
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	langs, err := q.store.LanguageCounts()
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	docs, err := q.index.Count()
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	root, err := q.store.GetMetadata(MetaRoot)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	at, err := q.store.GetMetadata(MetaAnalyzedAt)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	return &Summary{
		Root:        root,
		AnalyzedAt:  at,
		Files:       counts.Files,
		FailedFiles: counts.FailedFiles,
		Functions:   counts.Functions,
		Calls:       counts.Calls,
		Documents:   docs,
		Languages:   langs,
	}, nil
}

// SearchDocs runs a full-text query over function documentation.
func (q *QueryBuilder) SearchDocs(ctx context.Context, query string, limit int) ([]DocHit, error) {
	hits, err := q.index.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search docs: %w", err)
	}
	return hits, nil
}
