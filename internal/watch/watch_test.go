package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) analyze(_ context.Context, changed []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, changed)
	return nil
}

func (r *recorder) seen() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool)
	for _, c := range r.calls {
		for _, p := range c {
			out[p] = true
		}
	}
	return out
}

func startWatcher(t *testing.T, root string, r *recorder, opts ...Option) {
	t.Helper()
	w, err := New(root, r.analyze, append([]Option{WithDebounce(50*time.Millisecond)}, opts...)...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func TestWatcher_TriggersOnSupportedFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	r := &recorder{}
	startWatcher(t, root, r)

	path := filepath.Join(root, "main.py")
	require.NoError(t, os.WriteFile(path, []byte("def main(): pass\n"), 0o644))

	assert.Eventually(t, func() bool { return r.seen()[path] }, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_IgnoresUnsupportedFiles(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	r := &recorder{}
	startWatcher(t, root, r)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte("x"), 0o644))
	trigger := filepath.Join(root, "b.js")
	require.NoError(t, os.WriteFile(trigger, []byte("function b() {}"), 0o644))

	require.Eventually(t, func() bool { return r.seen()[trigger] }, 5*time.Second, 20*time.Millisecond)
	assert.False(t, r.seen()[filepath.Join(root, "notes.md")])
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	r := &recorder{}
	startWatcher(t, root, r)

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	path := filepath.Join(sub, "mod.ts")

	// The new directory is registered asynchronously; keep touching the file
	// until an event for it arrives.
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("export function f() {}"), 0o644)
		return r.seen()[path]
	}, 5*time.Second, 100*time.Millisecond)
}

func TestNew_MissingRoot(t *testing.T) {
	t.Parallel()
	_, err := New(filepath.Join(t.TempDir(), "missing"), (&recorder{}).analyze)
	require.Error(t, err)
}

func TestWithLogger_NilKeepsDefault(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	w, err := New(root, (&recorder{}).analyze, WithLogger(nil))
	require.NoError(t, err)
	defer w.fs.Close()
	assert.NotNil(t, w.logger)

	r := &recorder{}
	startWatcher(t, root, r, WithLogger(nil))
	path := filepath.Join(root, "a.py")
	require.NoError(t, os.WriteFile(path, []byte("def a(): pass\n"), 0o644))
	assert.Eventually(t, func() bool { return r.seen()[path] }, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_SkipsVirtualenvButNotBuildDirs(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	venv := filepath.Join(root, "venv")
	require.NoError(t, os.MkdirAll(venv, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(venv, "pyvenv.cfg"), nil, 0o644))
	build := filepath.Join(root, "build")
	require.NoError(t, os.MkdirAll(build, 0o755))

	r := &recorder{}
	startWatcher(t, root, r)

	require.NoError(t, os.WriteFile(filepath.Join(venv, "site.py"), []byte("def s(): pass\n"), 0o644))
	path := filepath.Join(build, "steps.py")
	require.NoError(t, os.WriteFile(path, []byte("def step(): pass\n"), 0o644))

	require.Eventually(t, func() bool { return r.seen()[path] }, 5*time.Second, 20*time.Millisecond)
	assert.False(t, r.seen()[filepath.Join(venv, "site.py")])
}
