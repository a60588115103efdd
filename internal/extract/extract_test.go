package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/repograph/internal/lang"
)

func extractSource(t *testing.T, path, src string) *Result {
	t.Helper()
	a, ok := lang.Resolve(path)
	require.True(t, ok, "no adapter for %s", path)
	res, err := Source(context.Background(), a, path, []byte(src))
	require.NoError(t, err)
	return res
}

// =============================================================================
// Calls
// =============================================================================

func TestCalls_PythonBareIdentifierOnly(t *testing.T) {
	t.Parallel()
	res := extractSource(t, "a.py", `
def run():
    foo()
    obj.foo()
    foo()
    self.helper()
`)
	assert.Equal(t, map[string][]string{"run": {"foo"}}, res.Calls)
}

func TestCalls_PythonNestedFunctionsOwnTheirCalls(t *testing.T) {
	t.Parallel()
	res := extractSource(t, "a.py", `
def outer():
    setup()
    def inner():
        deep()
    inner()

class Service:
    def handle(self):
        validate(process())
`)
	assert.Equal(t, []string{"inner", "setup"}, res.Calls["outer"])
	assert.Equal(t, []string{"deep"}, res.Calls["inner"])
	assert.Equal(t, []string{"process", "validate"}, res.Calls["handle"])
}

func TestCalls_SameNameMergesCallees(t *testing.T) {
	t.Parallel()
	res := extractSource(t, "a.py", `
def dup():
    a()

def dup():
    b()
    a()
`)
	assert.Equal(t, map[string][]string{"dup": {"a", "b"}}, res.Calls)
}

func TestCalls_FunctionWithoutCallsIsRecorded(t *testing.T) {
	t.Parallel()
	res := extractSource(t, "b.py", "def helper():\n    pass\n")
	require.Contains(t, res.Calls, "helper")
	assert.Empty(t, res.Calls["helper"])
}

func TestCalls_JavaScriptDeclarationsAndMethods(t *testing.T) {
	t.Parallel()
	res := extractSource(t, "app.js", `
function main() {
  init();
  console.log("x");
  const cb = () => render();
}

function* gen() { yield next(); }

class Widget {
  draw() { paint(); this.refresh(); }
  #hidden() { secret(); }
}

const anon = function() { ignored(); };
const arrow = () => alsoIgnored();
`)
	assert.Equal(t, []string{"init", "render"}, res.Calls["main"])
	assert.Equal(t, []string{"next"}, res.Calls["gen"])
	assert.Equal(t, []string{"paint"}, res.Calls["draw"])
	assert.Equal(t, []string{"secret"}, res.Calls["#hidden"])
	assert.NotContains(t, res.Calls, "anon")
	assert.NotContains(t, res.Calls, "arrow")
	assert.Len(t, res.Calls, 4)
}

func TestCalls_TypeScriptSignatures(t *testing.T) {
	t.Parallel()
	res := extractSource(t, "api.ts", `
declare function external(x: number): void;

interface Repo {
  find(id: string): Thing;
}

export function load(id: string): Thing {
  return fetchThing(id);
}
`)
	require.Contains(t, res.Calls, "external")
	assert.Empty(t, res.Calls["external"])
	require.Contains(t, res.Calls, "find")
	assert.Equal(t, []string{"fetchThing"}, res.Calls["load"])
}

func TestCalls_TSX(t *testing.T) {
	t.Parallel()
	res := extractSource(t, "Button.tsx", `
export function Button(props: Props) {
  const label = format(props.label);
  return <button onClick={() => track()}>{label}</button>;
}
`)
	assert.Equal(t, []string{"format", "track"}, res.Calls["Button"])
}

func TestCalls_ComputedMethodNameSkipped(t *testing.T) {
	t.Parallel()
	res := extractSource(t, "iter.js", `
class Bag {
  [Symbol.iterator]() { walk(); }
}
`)
	assert.Empty(t, res.Calls)
}

func TestCalls_Deterministic(t *testing.T) {
	t.Parallel()
	src := `
def a():
    z(); y(); x()
def b():
    a(); c()
`
	first := extractSource(t, "d.py", src)
	for range 5 {
		again := extractSource(t, "d.py", src)
		assert.Equal(t, first.Calls, again.Calls)
		assert.Equal(t, first.Docs, again.Docs)
	}
}

// =============================================================================
// Docs
// =============================================================================

func TestDocs_PythonFirstStatementDocstring(t *testing.T) {
	t.Parallel()
	res := extractSource(t, "doc.py", `
def documented():
    """Return JSON data."""
    return 1

def single():
    'Single quoted.'

def late():
    x = 1
    """Not a docstring."""

def none():
    return 2
`)
	assert.Equal(t, map[string]string{
		"documented": "Return JSON data.",
		"single":     "Single quoted.",
	}, res.Docs)
}

func TestDocs_PythonMultilineDocstring(t *testing.T) {
	t.Parallel()
	res := extractSource(t, "doc.py", "def f():\n    \"\"\"\n    Summary.\n\n    Details.\n    \"\"\"\n")
	assert.Equal(t, "Summary.\n\n    Details.", res.Docs["f"])
}

func TestDocs_JavaScriptAdjacentComment(t *testing.T) {
	t.Parallel()
	res := extractSource(t, "doc.js", `
/** Returns x. */
function foo() {}

// Bar does bar things.
function bar() {}

/**
 * Multi line.
 * Second line.
 */
function baz() {}

function nodoc() {}
`)
	assert.Equal(t, "Returns x.", res.Docs["foo"])
	assert.Equal(t, "Bar does bar things.", res.Docs["bar"])
	assert.Equal(t, "Multi line.\nSecond line.", res.Docs["baz"])
	assert.NotContains(t, res.Docs, "nodoc")
}

func TestDocs_JavaScriptCommentSeparatedByBlankStatement(t *testing.T) {
	t.Parallel()
	res := extractSource(t, "doc.js", `
/** Returns x. */
;
function foo() {}
`)
	assert.NotContains(t, res.Docs, "foo")
	assert.Contains(t, res.Calls, "foo")
}

func TestDocs_CommentTwoSiblingsAwayNotAttached(t *testing.T) {
	t.Parallel()
	res := extractSource(t, "doc.js", `
/** For something else. */
const x = 1;
function foo() {}
`)
	assert.NotContains(t, res.Docs, "foo")
}

func TestDocs_TypeScriptExportAndMethods(t *testing.T) {
	t.Parallel()
	res := extractSource(t, "doc.ts", `
/** Loads a thing. */
export function load(): void {}

class Store {
  /** Saves it. */
  save(): void {}
}
`)
	assert.Equal(t, "Loads a thing.", res.Docs["load"])
	assert.Equal(t, "Saves it.", res.Docs["save"])
}

// =============================================================================
// File / Source
// =============================================================================

func TestFile_ReadsAndExtracts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "main.py")
	require.NoError(t, os.WriteFile(path, []byte("def main():\n    helper()\n"), 0o644))

	res, err := File(context.Background(), path, "main.py")
	require.NoError(t, err)
	assert.Equal(t, "main.py", res.Path)
	assert.Equal(t, lang.Python, res.Language)
	assert.Equal(t, []string{"helper"}, res.Calls["main"])
	assert.Equal(t, Span{StartLine: 1, EndLine: 2}, res.Spans["main"])
	assert.Equal(t, []string{"main"}, res.Names())
}

func TestFile_Unsupported(t *testing.T) {
	t.Parallel()
	_, err := File(context.Background(), "notes.txt", "notes.txt")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestFile_Missing(t *testing.T) {
	t.Parallel()
	_, err := File(context.Background(), filepath.Join(t.TempDir(), "gone.py"), "gone.py")
	require.Error(t, err)
}

func TestSource_InvalidUTF8(t *testing.T) {
	t.Parallel()
	a, _ := lang.Resolve("bad.py")
	_, err := Source(context.Background(), a, "bad.py", []byte{0xff, 0xfe, 'd', 'e', 'f'})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestSource_SyntaxErrorsStillExtract(t *testing.T) {
	t.Parallel()
	res := extractSource(t, "broken.py", "def ok():\n    call()\n\ndef broken(:\n")
	assert.True(t, res.HasErrors)
	assert.Equal(t, []string{"call"}, res.Calls["ok"])
}
