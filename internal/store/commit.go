package store

import "fmt"

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Once the transaction commits, the batch's
// fake (negative) IDs are replaced with the real IDs assigned by the
// database.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	var fileID int64
	if batch.File != nil {
		f := *batch.File
		if fileID, err = upsertFile(tx, &f); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
	}

	realIDs := make([]int64, len(batch.Functions))
	for i := range batch.Functions {
		fn := batch.Functions[i]
		if realIDs[i], err = upsertFunction(tx, &fn); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: commit: %w", err)
	}

	batch.mu.Lock()
	defer batch.mu.Unlock()
	if batch.File != nil {
		batch.File.ID = fileID
	}
	clear(batch.byKey)
	for i, id := range realIDs {
		batch.Functions[i].ID = id
		batch.byKey[batch.Functions[i].Key()] = id
	}
	return nil
}
