package store

import "strings"

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// int64sToArgs converts []int64 to []any for use with database/sql.
func int64sToArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// FunctionsByIDs returns the nodes with the given IDs, keyed by ID. Unknown
// IDs are absent from the result.
func (s *Store) FunctionsByIDs(ids []int64) (map[int64]*Function, error) {
	out := make(map[int64]*Function, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	fns, err := s.queryFunctions(
		"SELECT "+functionCols+" FROM functions WHERE id IN ("+placeholderList(len(ids))+")",
		int64sToArgs(ids)...,
	)
	if err != nil {
		return nil, err
	}
	for _, fn := range fns {
		out[fn.ID] = fn
	}
	return out, nil
}
