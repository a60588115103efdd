package store

import "time"

// File status values.
const (
	FileOK     = "ok"
	FileFailed = "failed"
)

// File records the outcome of analyzing one source file.
type File struct {
	ID            int64
	Path          string
	Language      string
	Hash          string
	Status        string
	Error         string
	FunctionCount int
	LastAnalyzed  time.Time
}

// Function is a graph node: one function-like declaration, identified by
// (Name, FilePath).
type Function struct {
	ID        int64
	Name      string
	FilePath  string
	Language  string
	StartLine int
	EndLine   int
}

// Key returns the node's identity.
func (f *Function) Key() FunctionKey {
	return FunctionKey{Name: f.Name, FilePath: f.FilePath}
}

// FunctionKey is the uniqueness key of a function node.
type FunctionKey struct {
	Name     string
	FilePath string
}

// CallEdge is a graph edge from a caller node to a callee node. SourceFile is
// the file containing the call expression.
type CallEdge struct {
	ID         int64
	CallerID   int64
	CalleeID   int64
	SourceFile string
}
