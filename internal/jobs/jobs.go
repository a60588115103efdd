// Package jobs runs analysis jobs in the background and tracks their state.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrNotFound is returned for unknown (or evicted) job IDs.
	ErrNotFound = errors.New("jobs: job not found")
	// ErrInvalidTransition is returned when a state change is not allowed.
	ErrInvalidTransition = errors.New("jobs: invalid state transition")
)

// State is a job's lifecycle state.
type State string

const (
	Queued    State = "queued"
	Running   State = "running"
	Complete  State = "complete"
	Failed    State = "failed"
	Cancelled State = "cancelled"
)

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == Complete || s == Failed || s == Cancelled
}

var transitions = map[State][]State{
	Queued:  {Running, Cancelled},
	Running: {Complete, Failed, Cancelled},
}

// CanTransition reports whether a job may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Phase is the coarse step a running job is in.
type Phase string

const (
	PhaseCloning    Phase = "cloning"
	PhaseScanning   Phase = "scanning"
	PhaseExtracting Phase = "extracting"
	PhaseLinking    Phase = "linking"
	PhaseIndexing   Phase = "indexing"
)

// Reporter receives phase changes from a running job.
type Reporter interface {
	Phase(p Phase)
}

// NopReporter discards phase changes.
type NopReporter struct{}

func (NopReporter) Phase(Phase) {}

// Job is a snapshot of one job.
type Job struct {
	ID         string
	Source     string
	State      State
	Phase      Phase
	Error      string
	Result     any
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Func is the work a job performs. Returning a non-nil error fails the job.
type Func func(ctx context.Context, r Reporter) (any, error)

// DefaultRetention is the number of finished jobs kept when none is given.
const DefaultRetention = 100

type entry struct {
	job    Job
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager runs jobs and remembers their outcome. Unfinished jobs are always
// kept; finished ones are retained up to a fixed count, least recently used
// first out.
type Manager struct {
	mu       sync.Mutex
	active   map[string]*entry
	finished *lru.Cache[string, *entry]
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewManager creates a Manager retaining at most retention finished jobs.
func NewManager(retention int, logger *slog.Logger) (*Manager, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	finished, err := lru.New[string, *entry](retention)
	if err != nil {
		return nil, fmt.Errorf("jobs: %w", err)
	}
	return &Manager{
		active:   make(map[string]*entry),
		finished: finished,
		logger:   logger,
	}, nil
}

// Submit queues fn and starts it on a background goroutine. The job's
// context is derived from ctx and cancelled by Cancel.
func (m *Manager) Submit(ctx context.Context, source string, fn Func) Job {
	jobCtx, cancel := context.WithCancel(ctx)
	e := &entry{
		job: Job{
			ID:        uuid.NewString(),
			Source:    source,
			State:     Queued,
			CreatedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.active[e.job.ID] = e
	snapshot := e.job
	m.mu.Unlock()

	m.logger.Info("job queued", "job", e.job.ID, "source", source)

	m.wg.Add(1)
	go m.run(jobCtx, e, fn)
	return snapshot
}

func (m *Manager) run(ctx context.Context, e *entry, fn Func) {
	defer m.wg.Done()
	defer close(e.done)
	defer e.cancel()

	id := e.job.ID
	if err := m.transition(e, Running, nil); err != nil {
		// Cancelled before it started.
		m.finish(e)
		return
	}
	m.logger.Info("job started", "job", id)

	result, err := fn(ctx, &jobReporter{m: m, e: e})

	switch {
	case err != nil && ctx.Err() != nil:
		_ = m.transition(e, Cancelled, func(j *Job) { j.Error = err.Error() })
		m.logger.Warn("job cancelled", "job", id)
	case err != nil:
		_ = m.transition(e, Failed, func(j *Job) { j.Error = err.Error() })
		m.logger.Error("job failed", "job", id, "err", err)
	default:
		_ = m.transition(e, Complete, func(j *Job) { j.Result = result })
		m.logger.Info("job complete", "job", id)
	}
	m.finish(e)
}

func (m *Manager) transition(e *entry, to State, update func(*Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := e.job.State
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	e.job.State = to
	now := time.Now()
	if to == Running {
		e.job.StartedAt = now
	}
	if to.Terminal() {
		e.job.FinishedAt = now
	}
	if update != nil {
		update(&e.job)
	}
	return nil
}

func (m *Manager) finish(e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, e.job.ID)
	m.finished.Add(e.job.ID, e)
}

func (m *Manager) lookup(id string) (*entry, bool) {
	if e, ok := m.active[id]; ok {
		return e, true
	}
	return m.finished.Get(id)
}

// Get returns a snapshot of the job.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(id)
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.job, nil
}

// List returns snapshots of every known job, oldest first.
func (m *Manager) List() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Job, 0, len(m.active)+m.finished.Len())
	for _, e := range m.active {
		out = append(out, e.job)
	}
	for _, e := range m.finished.Values() {
		out = append(out, e.job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Cancel requests cancellation of a queued or running job. Cancelling a
// finished job returns ErrInvalidTransition.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	e, ok := m.lookup(id)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	state := e.job.State
	if state == Queued {
		e.job.State = Cancelled
		e.job.FinishedAt = time.Now()
	}
	m.mu.Unlock()

	if state.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, state, Cancelled)
	}
	e.cancel()
	m.logger.Info("job cancel requested", "job", id)
	return nil
}

// Wait blocks until the job finishes or ctx is done, then returns its
// snapshot.
func (m *Manager) Wait(ctx context.Context, id string) (Job, error) {
	m.mu.Lock()
	e, ok := m.lookup(id)
	m.mu.Unlock()
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return e.job, nil
}

// Close cancels every unfinished job and waits for all of them to return.
func (m *Manager) Close() {
	m.mu.Lock()
	for _, e := range m.active {
		e.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

type jobReporter struct {
	m *Manager
	e *entry
}

func (r *jobReporter) Phase(p Phase) {
	r.m.mu.Lock()
	r.e.job.Phase = p
	id := r.e.job.ID
	r.m.mu.Unlock()
	r.m.logger.Info("job phase", "job", id, "phase", string(p))
}
