// Package discover enumerates the analyzable source files of a repository.
package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/jward/repograph/internal/lang"
)

// Entry is a discovered source file.
type Entry struct {
	Path     string // slash-separated, relative to the root
	AbsPath  string
	Language lang.Tag
}

// Options narrows discovery.
type Options struct {
	// Languages restricts results to the listed languages. Empty means all.
	Languages []lang.Tag
	// Excludes are glob patterns matched against relative paths, with '/'
	// as the separator ("**/testdata/**", "*.min.js").
	Excludes []string
}

// skipDirs are directory names that never hold the project's own source.
// Build output and other hidden directories are walked; .gitignore and
// excludes cover those.
var skipDirs = map[string]bool{
	".git":             true,
	".hg":              true,
	".svn":             true,
	".repograph":       true,
	"node_modules":     true,
	"__pycache__":      true,
	"bower_components": true,
}

// venvMarker is present at the top of every Python virtual environment.
const venvMarker = "pyvenv.cfg"

// SkipDir reports whether the directory at path is never walked: a
// well-known metadata or dependency directory, or a Python virtualenv.
func SkipDir(path string) bool {
	if skipDirs[filepath.Base(path)] {
		return true
	}
	_, err := os.Stat(filepath.Join(path, venvMarker))
	return err == nil
}

// Files walks root and returns every supported source file, sorted by
// relative path. Dependency and VCS directories, virtualenvs, symlinks,
// .gitignore'd paths and paths matching an exclude pattern are skipped.
func Files(root string, opts Options) ([]Entry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("discover: %s is not a directory", root)
	}

	excludes, err := compileGlobs(opts.Excludes)
	if err != nil {
		return nil, err
	}
	wanted := make(map[lang.Tag]bool, len(opts.Languages))
	for _, t := range opts.Languages {
		wanted[t] = true
	}
	gi := loadGitignore(root)

	var out []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if SkipDir(path) || (gi != nil && gi.MatchesPath(rel+"/")) || matchAny(excludes, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if matchAny(excludes, rel) {
			return nil
		}

		a, ok := lang.Resolve(path)
		if !ok {
			return nil
		}
		if len(wanted) > 0 && !wanted[a.Tag] {
			return nil
		}
		out = append(out, Entry{Path: rel, AbsPath: path, Language: a.Tag})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover: walk %s: %w", root, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("discover: exclude pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchAny(globs []glob.Glob, rel string) bool {
	for _, g := range globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
