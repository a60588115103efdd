// Package lang maps source files to tree-sitter grammars and the per-language
// extraction strategy that drives declaration, call and documentation
// recognition downstream.
package lang

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// Tag is the canonical language identifier carried by every extracted record.
type Tag string

const (
	Python     Tag = "python"
	JavaScript Tag = "javascript"
	TypeScript Tag = "typescript"
)

// Strategy holds the syntactic rules used to recognize functions, calls and
// documentation for one language.
type Strategy struct {
	Tag Tag

	// DeclKinds are node types that introduce a callable.
	DeclKinds map[string]bool
	// CallKinds are node types for call expressions.
	CallKinds map[string]bool
	// NameKinds are node types accepted as the declaration's name field.
	// Anything else (computed names, string keys) is not recorded.
	NameKinds map[string]bool

	// CalleeField is the field of a call node holding the call target.
	CalleeField string
	// BodyField is the field of a declaration holding its body.
	BodyField string

	// DocOf returns the documentation attached to a declaration node, or ""
	// when there is none.
	DocOf func(decl *sitter.Node, source []byte) string
}

// IsDecl reports whether node is a function-like declaration in this language.
func (s *Strategy) IsDecl(node *sitter.Node) bool {
	return s.DeclKinds[node.Type()]
}

// IsCall reports whether node is a call expression in this language.
func (s *Strategy) IsCall(node *sitter.Node) bool {
	return s.CallKinds[node.Type()]
}

// DeclName returns the declared name of a declaration node, or "" when no
// name can be recovered.
func (s *Strategy) DeclName(decl *sitter.Node, source []byte) string {
	name := decl.ChildByFieldName("name")
	if name == nil || !s.NameKinds[name.Type()] {
		return ""
	}
	return NodeText(name, source)
}

// Callee returns the bare identifier targeted by a call node. Member or
// attribute access (obj.method()) and computed targets yield "".
func (s *Strategy) Callee(call *sitter.Node, source []byte) string {
	target := call.ChildByFieldName(s.CalleeField)
	if target == nil || target.Type() != "identifier" {
		return ""
	}
	return NodeText(target, source)
}

// Body returns the body subtree of a declaration, or nil for bodiless
// declarations such as TypeScript signatures.
func (s *Strategy) Body(decl *sitter.Node) *sitter.Node {
	return decl.ChildByFieldName(s.BodyField)
}

// Grammar pairs a tree-sitter language with the strategy applied to its trees.
type Grammar struct {
	Name     string
	Language func() *sitter.Language
	Tag      Tag
}

// Adapter is a resolved (grammar, strategy) pair for one file.
type Adapter struct {
	Tag      Tag
	Grammar  string
	Strategy *Strategy
	language *sitter.Language
}

// NewParser creates a fresh tree-sitter parser bound to the adapter's grammar.
// Parsers are not safe for concurrent use; each goroutine needs its own.
func (a *Adapter) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(a.language)
	return p
}

var (
	mu         sync.RWMutex
	strategies = map[Tag]*Strategy{}
	extensions = map[string]Grammar{}

	// languages caches initialized grammars; building one is not free.
	languages = map[string]*sitter.Language{}
)

// Register adds a strategy for its tag. Registering the same tag twice
// replaces the previous strategy.
func Register(s *Strategy) {
	mu.Lock()
	defer mu.Unlock()
	strategies[s.Tag] = s
}

// RegisterExtension binds a lowercase file extension (with leading dot) to a
// grammar.
func RegisterExtension(ext string, g Grammar) {
	mu.Lock()
	defer mu.Unlock()
	extensions[strings.ToLower(ext)] = g
}

// StrategyFor returns the strategy registered for tag.
func StrategyFor(tag Tag) (*Strategy, bool) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := strategies[tag]
	return s, ok
}

// Resolve returns the adapter for a file path based only on its extension.
// Returns (nil, false) for unsupported extensions; callers skip such files.
func Resolve(path string) (*Adapter, bool) {
	ext := strings.ToLower(filepath.Ext(path))

	mu.RLock()
	g, ok := extensions[ext]
	var s *Strategy
	if ok {
		s = strategies[g.Tag]
	}
	mu.RUnlock()
	if !ok || s == nil {
		return nil, false
	}

	return &Adapter{
		Tag:      g.Tag,
		Grammar:  g.Name,
		Strategy: s,
		language: grammarFor(g),
	}, true
}

func grammarFor(g Grammar) *sitter.Language {
	mu.RLock()
	l, ok := languages[g.Name]
	mu.RUnlock()
	if ok {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := languages[g.Name]; ok {
		return l
	}
	l = g.Language()
	languages[g.Name] = l
	return l
}

// Supported reports whether path has a registered extension.
func Supported(path string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns all registered extensions, sorted.
func Extensions() []string {
	mu.RLock()
	defer mu.RUnlock()
	exts := make([]string, 0, len(extensions))
	for ext := range extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Tags returns all registered language tags, sorted.
func Tags() []Tag {
	mu.RLock()
	defer mu.RUnlock()
	tags := make([]Tag, 0, len(strategies))
	for t := range strategies {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// ParseTag validates a user-supplied language name.
func ParseTag(s string) (Tag, error) {
	t := Tag(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := StrategyFor(t); !ok {
		tags := Tags()
		names := make([]string, 0, len(tags))
		for _, tag := range tags {
			names = append(names, string(tag))
		}
		return "", fmt.Errorf("lang: unknown language %q (supported: %s)", s, strings.Join(names, ", "))
	}
	return t, nil
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

func kindSet(kinds ...string) map[string]bool {
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}
