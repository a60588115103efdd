package store

// DataStore is the interface for node-creation data access. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// extraction) implement this interface.
type DataStore interface {
	UpsertFile(f *File) (int64, error)
	UpsertFunction(fn *Function) (int64, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
