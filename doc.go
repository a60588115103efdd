// Package repograph builds a function-level call graph and a documentation
// index for Python, JavaScript and TypeScript repositories, using
// tree-sitter for parsing and SQLite for storage.
//
// # Pipeline
//
// [Engine.Analyze] recomputes everything from scratch on each run:
//
//  1. Scan: enumerate supported files under the repository root, honoring
//     .gitignore and exclude globs.
//  2. Extract: parse every file and record, per function, the names it
//     calls and its documentation. Files that cannot be read, decoded or
//     parsed are recorded as failed and skipped.
//  3. Nodes: upsert one node per (function name, file path).
//  4. Edges: for every call, link the caller to every node with the callee's
//     name, in any file. Unknown callees (builtins, library functions)
//     produce no edge.
//  5. Index: add every documented function to a full-text index.
//
// Call resolution is by name only. Two unrelated functions named "helper"
// in different files both receive an edge from any caller of "helper".
//
// # Usage
//
//	e, err := repograph.New("graph.db", "docs.bleve")
//	if err != nil { ... }
//	defer e.Close()
//
//	stats, err := e.Analyze(ctx, "path/to/repo")
//
//	q := e.Query()
//	callers, err := q.Callers("helper")
//	matches, err := q.Ask(ctx, "where do we open the database?", 10)
//
// Remote repositories are cloned first with [Engine.AnalyzeSource], and
// long-running analyses can be tracked through the jobs package using
// [Engine.JobFunc].
package repograph
