package repograph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/jward/repograph/internal/discover"
	"github.com/jward/repograph/internal/docindex"
	"github.com/jward/repograph/internal/extract"
	"github.com/jward/repograph/internal/jobs"
	"github.com/jward/repograph/internal/lang"
	"github.com/jward/repograph/internal/source"
	"github.com/jward/repograph/internal/store"
)

// Metadata keys written after each analysis.
const (
	MetaRoot       = "root"
	MetaAnalyzedAt = "analyzed_at"
)

// Engine orchestrates the pipeline: discovery, extraction, node and edge
// creation, documentation indexing, and query access. Analyses on one Engine
// are serialized.
type Engine struct {
	store *store.Store
	index *docindex.Index

	languages []lang.Tag // nil means all languages
	excludes  []string

	useParallel bool
	workers     int
	cloneDepth  int

	logger   *slog.Logger
	reporter jobs.Reporter

	runMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages restricts which languages the Engine will process.
func WithLanguages(tags ...lang.Tag) Option {
	return func(e *Engine) {
		e.languages = append([]lang.Tag(nil), tags...)
	}
}

// WithExcludes adds glob patterns for repository-relative paths to skip.
func WithExcludes(patterns ...string) Option {
	return func(e *Engine) {
		e.excludes = append(e.excludes, patterns...)
	}
}

// WithParallel controls parallel extraction. When true (default), files are
// parsed on a worker pool and their nodes are committed by a single writer.
// Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers sets the worker pool size. Values below 1 mean one worker
// per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithCloneDepth sets how much history AnalyzeSource clones for remote
// repositories. Zero clones the full history.
func WithCloneDepth(n int) Option {
	return func(e *Engine) {
		e.cloneDepth = n
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithReporter sets the phase reporter used by Analyze and AnalyzeSource.
// Jobs run through JobFunc report to their own job instead.
func WithReporter(r jobs.Reporter) Option {
	return func(e *Engine) {
		if r != nil {
			e.reporter = r
		}
	}
}

// New creates an Engine backed by a SQLite database at dbPath and a
// documentation index at indexPath. An empty indexPath keeps the index in
// memory.
func New(dbPath, indexPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("repograph: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("repograph: migrate: %w", err)
	}

	var idx *docindex.Index
	if indexPath == "" {
		idx, err = docindex.NewMemOnly()
	} else {
		idx, err = docindex.Open(indexPath)
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("repograph: %w", err)
	}

	e := &Engine{
		store:       s,
		index:       idx,
		useParallel: true,
		cloneDepth:  source.DefaultDepth,
		logger:      slog.New(slog.DiscardHandler),
		reporter:    jobs.NopReporter{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}
	return e, nil
}

// Close releases the Engine's database and index resources.
func (e *Engine) Close() error {
	return errors.Join(e.index.Close(), e.store.Close())
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder over the graph and documentation index.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store, index: e.index}
}

// FileError records a file that could not be analyzed.
type FileError struct {
	Path string
	Err  string
}

// Stats summarizes one analysis run.
type Stats struct {
	Root      string
	Files     int // files discovered
	Parsed    int // files extracted successfully
	Failed    []FileError
	Functions int // function nodes
	Edges     int // call edges
	Documents int // indexed documentation entries
	Duration  time.Duration
}

// fileOutcome is the extraction result for one discovered file. Exactly one
// of res and err is set.
type fileOutcome struct {
	entry discover.Entry
	hash  string
	res   *extract.Result
	err   error
}

// Analyze recomputes the graph and documentation index for the local
// repository at root. Per-file failures are recorded and skipped; the
// returned error is non-nil only when the run as a whole fails.
func (e *Engine) Analyze(ctx context.Context, root string) (*Stats, error) {
	return e.analyze(ctx, root, e.reporter)
}

// AnalyzeSource analyzes a local directory or, for a remote Git URL, a
// clone of it under workDir (shallow unless WithCloneDepth says otherwise).
func (e *Engine) AnalyzeSource(ctx context.Context, arg, workDir string) (*Stats, error) {
	return e.analyzeSource(ctx, arg, workDir, e.reporter)
}

// JobFunc returns a job that runs AnalyzeSource and reports its phases to
// the job. The job's result is the *Stats.
func (e *Engine) JobFunc(arg, workDir string) jobs.Func {
	return func(ctx context.Context, r jobs.Reporter) (any, error) {
		return e.analyzeSource(ctx, arg, workDir, r)
	}
}

func (e *Engine) analyzeSource(ctx context.Context, arg, workDir string, r jobs.Reporter) (*Stats, error) {
	if source.IsRemote(arg) {
		r.Phase(jobs.PhaseCloning)
		e.logger.Info("cloning repository", "url", arg, "workdir", workDir)
	}
	root, err := source.Resolve(ctx, arg, workDir, source.WithDepth(e.cloneDepth))
	if err != nil {
		return nil, fmt.Errorf("repograph: %w", err)
	}
	return e.analyze(ctx, root, r)
}

func (e *Engine) analyze(ctx context.Context, root string, r jobs.Reporter) (*Stats, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	start := time.Now()
	stats := &Stats{Root: root}

	r.Phase(jobs.PhaseScanning)
	entries, err := discover.Files(root, discover.Options{
		Languages: e.languages,
		Excludes:  e.excludes,
	})
	if err != nil {
		return nil, fmt.Errorf("repograph: %w", err)
	}
	stats.Files = len(entries)
	e.logger.Info("scanned repository", "root", root, "files", len(entries))

	if err := e.store.Reset(); err != nil {
		return nil, fmt.Errorf("repograph: %w", err)
	}
	if err := e.index.Reset(); err != nil {
		return nil, fmt.Errorf("repograph: %w", err)
	}

	// Pass 1: extract every file and create its nodes.
	r.Phase(jobs.PhaseExtracting)
	var outcomes []fileOutcome
	if e.useParallel {
		outcomes, err = e.extractParallel(ctx, entries)
	} else {
		outcomes, err = e.extractSerial(ctx, entries)
	}
	if err != nil {
		return nil, fmt.Errorf("repograph: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, o := range outcomes {
		if o.err != nil {
			stats.Failed = append(stats.Failed, FileError{Path: o.entry.Path, Err: o.err.Error()})
			continue
		}
		stats.Parsed++
	}

	// Pass 2: runs only after every node exists, so callees defined in
	// files later in walk order still resolve.
	r.Phase(jobs.PhaseLinking)
	for _, o := range outcomes {
		if o.res == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := e.store.LinkFile(o.entry.Path, o.res.Calls)
		if err != nil {
			return nil, fmt.Errorf("repograph: %w", err)
		}
		stats.Edges += n
	}

	r.Phase(jobs.PhaseIndexing)
	docs, err := e.indexDocs(outcomes)
	if err != nil {
		return nil, fmt.Errorf("repograph: %w", err)
	}
	stats.Documents = docs

	counts, err := e.store.Counts()
	if err != nil {
		return nil, fmt.Errorf("repograph: %w", err)
	}
	stats.Functions = counts.Functions

	if err := e.store.SetMetadata(MetaRoot, root); err != nil {
		return nil, fmt.Errorf("repograph: %w", err)
	}
	if err := e.store.SetMetadata(MetaAnalyzedAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("repograph: %w", err)
	}

	stats.Duration = time.Since(start)
	e.logger.Info("analysis complete",
		"root", root,
		"files", stats.Files,
		"failed", len(stats.Failed),
		"functions", stats.Functions,
		"edges", stats.Edges,
		"documents", stats.Documents,
		"duration", stats.Duration,
	)
	return stats, nil
}

// extractSerial parses files one at a time, writing nodes straight to the
// Store.
func (e *Engine) extractSerial(ctx context.Context, entries []discover.Entry) ([]fileOutcome, error) {
	outcomes := make([]fileOutcome, 0, len(entries))
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		o := e.extractEntry(ctx, entry)
		if err := e.record(e.store, o); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// extractEntry reads and extracts one file. Failures are returned in the
// outcome, never as an error.
func (e *Engine) extractEntry(ctx context.Context, entry discover.Entry) fileOutcome {
	o := fileOutcome{entry: entry}

	a, ok := lang.Resolve(entry.AbsPath)
	if !ok {
		o.err = extract.ErrUnsupported
		return o
	}
	content, err := os.ReadFile(entry.AbsPath)
	if err != nil {
		o.err = fmt.Errorf("read: %w", err)
		return o
	}
	o.hash = store.ContentHash(content)

	res, err := extract.Source(ctx, a, entry.Path, content)
	if err != nil {
		o.err = err
		return o
	}
	if res.HasErrors {
		e.logger.Debug("parsed with syntax errors", "path", entry.Path)
	}
	o.res = res
	return o
}

// record writes the file record and, for successful extractions, one node
// per function through ds.
func (e *Engine) record(ds store.DataStore, o fileOutcome) error {
	f := &store.File{
		Path:     o.entry.Path,
		Language: string(o.entry.Language),
		Hash:     o.hash,
	}
	if o.err != nil {
		e.logger.Warn("skipping file", "path", o.entry.Path, "err", o.err)
		f.Status = store.FileFailed
		f.Error = o.err.Error()
		if _, err := ds.UpsertFile(f); err != nil {
			return err
		}
		return nil
	}

	names := o.res.Names()
	f.Status = store.FileOK
	f.FunctionCount = len(names)
	if _, err := ds.UpsertFile(f); err != nil {
		return err
	}
	for _, name := range names {
		span := o.res.Spans[name]
		_, err := ds.UpsertFunction(&store.Function{
			Name:      name,
			FilePath:  o.entry.Path,
			Language:  string(o.res.Language),
			StartLine: span.StartLine,
			EndLine:   span.EndLine,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// indexDocs adds every documented function to the documentation index.
func (e *Engine) indexDocs(outcomes []fileOutcome) (int, error) {
	var (
		ids   []string
		texts []string
		metas []docindex.Metadata
	)
	for _, o := range outcomes {
		if o.res == nil {
			continue
		}
		for _, name := range o.res.Names() {
			doc, ok := o.res.Docs[name]
			if !ok || doc == "" {
				continue
			}
			ids = append(ids, docindex.DocID(o.entry.Path, name))
			texts = append(texts, doc)
			metas = append(metas, docindex.Metadata{
				FilePath:     o.entry.Path,
				FunctionName: name,
				Language:     string(o.res.Language),
			})
		}
	}
	if err := e.index.AddDocuments(ids, texts, metas); err != nil {
		return 0, err
	}
	return len(ids), nil
}
