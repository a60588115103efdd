// Package extract walks tree-sitter syntax trees and recovers function
// declarations, the bare-identifier calls made from each function body, and
// the documentation attached to each function.
//
// Extraction is purely syntactic. Calls are recorded by name only; no scope,
// type or import resolution is attempted.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/repograph/internal/lang"
)

var (
	// ErrUnsupported is returned for files whose extension has no adapter.
	ErrUnsupported = errors.New("extract: unsupported file type")
	// ErrDecode is returned for files that are not valid UTF-8.
	ErrDecode = errors.New("extract: source is not valid UTF-8")
)

// Span is the 1-based line range of a function's first declaration site.
type Span struct {
	StartLine int
	EndLine   int
}

// Result holds everything extracted from one source file.
type Result struct {
	Path     string
	Language lang.Tag

	// Calls maps function name to its sorted, de-duplicated callee names.
	Calls map[string][]string
	// Docs maps function name to its documentation text.
	Docs map[string]string
	// Spans maps function name to its first declaration site.
	Spans map[string]Span

	// HasErrors is true when the parser recovered from syntax errors.
	HasErrors bool
}

// Names returns the extracted function names in sorted order.
func (r *Result) Names() []string {
	names := make([]string, 0, len(r.Calls))
	for name := range r.Calls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// File reads and extracts the file at absPath. relPath is recorded as the
// result's Path and should be the repository-relative path.
func File(ctx context.Context, absPath, relPath string) (*Result, error) {
	a, ok := lang.Resolve(absPath)
	if !ok {
		return nil, ErrUnsupported
	}
	source, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract: read %s: %w", relPath, err)
	}
	return Source(ctx, a, relPath, source)
}

// Source parses source with the adapter's grammar and runs call and
// documentation extraction over the resulting tree.
func Source(ctx context.Context, a *lang.Adapter, path string, source []byte) (*Result, error) {
	if !utf8.Valid(source) {
		return nil, ErrDecode
	}

	tree, err := Parse(ctx, a, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	return &Result{
		Path:      path,
		Language:  a.Tag,
		Calls:     Calls(root, source, a.Strategy),
		Docs:      Docs(root, source, a.Strategy),
		Spans:     Spans(root, source, a.Strategy),
		HasErrors: root.HasError(),
	}, nil
}

// Parse parses source with a fresh parser for the adapter's grammar.
// The caller owns the returned tree and must Close it.
func Parse(ctx context.Context, a *lang.Adapter, source []byte) (*sitter.Tree, error) {
	p := a.NewParser()
	defer p.Close()

	tree, err := p.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("extract: parse: %w", err)
	}
	if tree == nil {
		return nil, errors.New("extract: parse: no tree produced")
	}
	return tree, nil
}

// Calls returns a mapping from function name to the names of functions it
// calls. Every declaration in the tree is visited, including nested ones; a
// call belongs only to its nearest enclosing declaration. Declarations that
// share a name accumulate the union of their callees.
func Calls(root *sitter.Node, source []byte, s *lang.Strategy) map[string][]string {
	sets := collectCalls(root, source, s)
	out := make(map[string][]string, len(sets))
	for name, set := range sets {
		callees := make([]string, 0, len(set))
		for c := range set {
			callees = append(callees, c)
		}
		sort.Strings(callees)
		out[name] = callees
	}
	return out
}

type calleeSets map[string]map[string]struct{}

func (c calleeSets) merge(other calleeSets) calleeSets {
	if len(other) == 0 {
		return c
	}
	if c == nil {
		c = make(calleeSets, len(other))
	}
	for name, set := range other {
		dst, ok := c[name]
		if !ok {
			dst = make(map[string]struct{}, len(set))
			c[name] = dst
		}
		for callee := range set {
			dst[callee] = struct{}{}
		}
	}
	return c
}

// collectCalls returns a fresh result for the subtree at node; children's
// results are merged into it rather than written through a shared map.
func collectCalls(node *sitter.Node, source []byte, s *lang.Strategy) calleeSets {
	var out calleeSets
	if s.IsDecl(node) {
		if name := s.DeclName(node, source); name != "" {
			set := make(map[string]struct{})
			if body := s.Body(node); body != nil {
				calleesIn(body, source, s, set)
			}
			out = calleeSets{name: set}
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		out = out.merge(collectCalls(node.Child(i), source, s))
	}
	return out
}

// calleesIn adds the bare-identifier call targets under node to set. Nested
// declarations are not entered; their calls belong to them.
func calleesIn(node *sitter.Node, source []byte, s *lang.Strategy, set map[string]struct{}) {
	if s.IsCall(node) {
		if callee := s.Callee(node, source); callee != "" {
			set[callee] = struct{}{}
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if s.IsDecl(child) {
			continue
		}
		calleesIn(child, source, s, set)
	}
}

// Docs returns a mapping from function name to its documentation text.
// Functions without documentation are absent. When several declarations
// share a name, the last one in source order wins.
func Docs(root *sitter.Node, source []byte, s *lang.Strategy) map[string]string {
	docs := collectDocs(root, source, s)
	if docs == nil {
		docs = map[string]string{}
	}
	return docs
}

func collectDocs(node *sitter.Node, source []byte, s *lang.Strategy) map[string]string {
	var out map[string]string
	if s.IsDecl(node) && s.DocOf != nil {
		if name := s.DeclName(node, source); name != "" {
			if doc := s.DocOf(node, source); doc != "" {
				out = map[string]string{name: doc}
			}
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := collectDocs(node.Child(i), source, s)
		if len(child) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(child))
		}
		for name, doc := range child {
			out[name] = doc
		}
	}
	return out
}

// Spans returns the first declaration site of every named function.
func Spans(root *sitter.Node, source []byte, s *lang.Strategy) map[string]Span {
	spans := make(map[string]Span)
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if s.IsDecl(n) {
			if name := s.DeclName(n, source); name != "" {
				if _, seen := spans[name]; !seen {
					spans[name] = Span{
						StartLine: int(n.StartPoint().Row) + 1,
						EndLine:   int(n.EndPoint().Row) + 1,
					}
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return spans
}
