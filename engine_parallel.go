package repograph

import (
	"context"
	"fmt"
	"sync"

	"github.com/jward/repograph/internal/discover"
	"github.com/jward/repograph/internal/store"
)

// workItem holds everything a parallel extraction worker needs.
type workItem struct {
	pos   int
	entry discover.Entry
}

// extractParallel runs pass 1 as a two-stage pipeline:
//
//	Stage A (parallel): parse and extract on a worker pool; each worker
//	                    buffers its file's nodes in a BatchedStore.
//	Stage B (serial):   commit batches to SQLite in walk order.
//
// Each worker builds its own parser per file, so no tree-sitter state is
// shared between goroutines.
func (e *Engine) extractParallel(ctx context.Context, entries []discover.Entry) ([]fileOutcome, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	numWorkers := min(e.workers, len(entries))
	if numWorkers < 1 {
		numWorkers = 1
	}

	workCh := make(chan workItem, len(entries))
	for i, entry := range entries {
		workCh <- workItem{pos: i, entry: entry}
	}
	close(workCh)

	type result struct {
		outcome fileOutcome
		batch   *store.BatchedStore
		err     error
	}
	results := make([]result, len(entries))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workCh {
				if ctx.Err() != nil {
					results[item.pos] = result{err: ctx.Err()}
					continue
				}
				o := e.extractEntry(ctx, item.entry)
				batch := store.NewBatchedStore()
				err := e.record(batch, o)
				results[item.pos] = result{outcome: o, batch: batch, err: err}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcomes := make([]fileOutcome, 0, len(entries))
	for i, res := range results {
		if res.err != nil {
			return nil, fmt.Errorf("buffer %s: %w", entries[i].Path, res.err)
		}
		if err := e.store.CommitBatch(res.batch); err != nil {
			return nil, fmt.Errorf("commit %s: %w", entries[i].Path, err)
		}
		outcomes = append(outcomes, res.outcome)
	}
	return outcomes, nil
}
