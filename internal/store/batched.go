package store

import "sync"

// BatchedStore buffers one file's node writes in memory using fake
// (negative) IDs. It implements DataStore so the analysis pipeline can write
// to it without knowing whether it is hitting SQLite or an in-memory buffer.
//
// Upserting the same (name, file_path) twice returns the same fake ID.
type BatchedStore struct {
	mu sync.Mutex

	File      *File
	Functions []Function

	byKey      map[FunctionKey]int64
	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates an empty BatchedStore.
func NewBatchedStore() *BatchedStore {
	return &BatchedStore{
		byKey:      make(map[FunctionKey]int64),
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) UpsertFile(f *File) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.File == nil {
		f.ID = b.allocFakeID()
	} else {
		f.ID = b.File.ID
	}
	cp := *f
	b.File = &cp
	return f.ID, nil
}

func (b *BatchedStore) UpsertFunction(fn *Function) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.byKey[fn.Key()]; ok {
		fn.ID = id
		return id, nil
	}
	fakeID := b.allocFakeID()
	fn.ID = fakeID
	b.byKey[fn.Key()] = fakeID
	b.Functions = append(b.Functions, *fn)
	return fakeID, nil
}
