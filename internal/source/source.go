// Package source resolves the repository an analysis runs over: a local
// directory, or a remote Git URL cloned into a working directory.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
)

// ErrNotCheckout is returned by Fetch when the clone destination exists but
// is not a Git repository.
var ErrNotCheckout = errors.New("source: destination exists and is not a git checkout")

// DefaultDepth is the clone depth used unless WithDepth says otherwise.
const DefaultDepth = 1

var remotePrefixes = []string{"http://", "https://", "ssh://", "git://", "git@"}

// IsRemote reports whether arg names a remote Git repository rather than a
// local path.
func IsRemote(arg string) bool {
	for _, p := range remotePrefixes {
		if strings.HasPrefix(arg, p) {
			return true
		}
	}
	return false
}

// RepoName returns the last path element of a repository URL without any
// ".git" suffix.
func RepoName(url string) string {
	name := strings.TrimRight(url, "/")
	if i := strings.LastIndexAny(name, "/:"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, ".git")
}

type fetchOptions struct {
	depth int
}

// Option configures Fetch.
type Option func(*fetchOptions)

// WithDepth sets the clone depth. Zero clones the full history.
func WithDepth(n int) Option {
	return func(o *fetchOptions) { o.depth = n }
}

// Fetch clones url into workDir/<repo-name> and returns the checkout path.
// An existing checkout at that path is reused without fetching. Any other
// existing file or directory there is left untouched and ErrNotCheckout is
// returned.
func Fetch(ctx context.Context, url, workDir string, opts ...Option) (string, error) {
	o := fetchOptions{depth: DefaultDepth}
	for _, opt := range opts {
		opt(&o)
	}

	name := RepoName(url)
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("source: cannot derive repository name from %q", url)
	}
	dest := filepath.Join(workDir, name)

	if _, err := os.Lstat(dest); err == nil {
		if _, err := gogit.PlainOpen(dest); err != nil {
			if errors.Is(err, gogit.ErrRepositoryNotExists) {
				return "", fmt.Errorf("%w: %s", ErrNotCheckout, dest)
			}
			return "", fmt.Errorf("source: open %s: %w", dest, err)
		}
		return dest, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("source: %w", err)
	}

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("source: %w", err)
	}
	_, err := gogit.PlainCloneContext(ctx, dest, false, &gogit.CloneOptions{
		URL:          url,
		Depth:        o.depth,
		SingleBranch: true,
	})
	if err != nil {
		// dest did not exist before the clone, so anything there is ours.
		os.RemoveAll(dest)
		return "", fmt.Errorf("source: clone %s: %w", url, err)
	}
	return dest, nil
}

// Resolve returns the local directory to analyze for arg, cloning it first
// when it is a remote URL.
func Resolve(ctx context.Context, arg, workDir string, opts ...Option) (string, error) {
	if IsRemote(arg) {
		return Fetch(ctx, arg, workDir, opts...)
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("source: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("source: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("source: %s is not a directory", abs)
	}
	return abs, nil
}
