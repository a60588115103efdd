package repograph

import (
	"github.com/jward/repograph/internal/docindex"
	"github.com/jward/repograph/internal/store"
)

// Public type aliases for internal types used in the Engine and
// QueryBuilder APIs.

type Store = store.Store
type File = store.File
type Function = store.Function
type CallEdge = store.CallEdge
type DocHit = docindex.Hit
