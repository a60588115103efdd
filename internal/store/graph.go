package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// --- Function (node) operations ---

// UpsertFunction inserts a function node or matches the existing node with
// the same (name, file_path). Calling it twice with the same key never
// creates a duplicate. The node's ID is set and returned.
func (s *Store) UpsertFunction(fn *Function) (int64, error) {
	id, err := upsertFunction(s.db, fn)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func upsertFunction(ex execer, fn *Function) (int64, error) {
	_, err := ex.Exec(
		`INSERT INTO functions (name, file_path, language, start_line, end_line)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name, file_path) DO NOTHING`,
		fn.Name, fn.FilePath, fn.Language, fn.StartLine, fn.EndLine,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert function %s in %s: %w", fn.Name, fn.FilePath, err)
	}
	var id int64
	err = ex.QueryRow(
		"SELECT id FROM functions WHERE name = ? AND file_path = ?", fn.Name, fn.FilePath,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert function %s in %s: lookup id: %w", fn.Name, fn.FilePath, err)
	}
	fn.ID = id
	return id, nil
}

const functionCols = `id, name, file_path, language, start_line, end_line`

func scanFunction(scanner interface{ Scan(...any) error }) (*Function, error) {
	fn := &Function{}
	if err := scanner.Scan(&fn.ID, &fn.Name, &fn.FilePath, &fn.Language, &fn.StartLine, &fn.EndLine); err != nil {
		return nil, err
	}
	return fn, nil
}

func (s *Store) queryFunctions(query string, args ...any) ([]*Function, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var fns []*Function
	for rows.Next() {
		fn, err := scanFunction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan function: %w", err)
		}
		fns = append(fns, fn)
	}
	return fns, rows.Err()
}

// FunctionByID returns the node with the given ID, or nil if none exists.
func (s *Store) FunctionByID(id int64) (*Function, error) {
	fn, err := scanFunction(s.db.QueryRow("SELECT "+functionCols+" FROM functions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("function by id: %w", err)
	}
	return fn, nil
}

// FunctionByKey returns the node for (name, filePath), or nil if none exists.
func (s *Store) FunctionByKey(name, filePath string) (*Function, error) {
	fn, err := scanFunction(s.db.QueryRow(
		"SELECT "+functionCols+" FROM functions WHERE name = ? AND file_path = ?", name, filePath,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("function by key: %w", err)
	}
	return fn, nil
}

// FunctionsByName returns every node with the given name, across all files.
func (s *Store) FunctionsByName(name string) ([]*Function, error) {
	return s.queryFunctions(
		"SELECT "+functionCols+" FROM functions WHERE name = ? ORDER BY file_path", name,
	)
}

// FunctionsByFile returns the nodes defined in filePath.
func (s *Store) FunctionsByFile(filePath string) ([]*Function, error) {
	return s.queryFunctions(
		"SELECT "+functionCols+" FROM functions WHERE file_path = ? ORDER BY name", filePath,
	)
}

// AllFunctions returns every node ordered by (file_path, name).
func (s *Store) AllFunctions() ([]*Function, error) {
	return s.queryFunctions("SELECT " + functionCols + " FROM functions ORDER BY file_path, name")
}

// --- Call edge operations ---

// CreateEdge links the caller defined in sourceFile to every node named
// callee, in any file. Matching the callee by name alone is intentional and
// can link unrelated same-named functions. A callee with no matching node
// creates nothing and is not an error. Returns the number of new edges.
func (s *Store) CreateEdge(caller, callee, sourceFile string) (int, error) {
	return createEdge(s.db, caller, callee, sourceFile)
}

func createEdge(ex execer, caller, callee, sourceFile string) (int, error) {
	var callerID int64
	err := ex.QueryRow(
		"SELECT id FROM functions WHERE name = ? AND file_path = ?", caller, sourceFile,
	).Scan(&callerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("create edge %s -> %s: caller in %s: %w", caller, callee, sourceFile, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("create edge %s -> %s: lookup caller: %w", caller, callee, err)
	}

	res, err := ex.Exec(
		`INSERT OR IGNORE INTO calls (caller_id, callee_id, source_file)
		 SELECT ?, id, ? FROM functions WHERE name = ?`,
		callerID, sourceFile, callee,
	)
	if err != nil {
		return 0, fmt.Errorf("create edge %s -> %s: %w", caller, callee, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("create edge %s -> %s: rows affected: %w", caller, callee, err)
	}
	return int(n), nil
}

// LinkFile creates the edges for every caller → callees pair discovered in
// sourceFile within a single transaction. Returns the number of new edges.
func (s *Store) LinkFile(sourceFile string, calls map[string][]string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("link %s: begin: %w", sourceFile, err)
	}
	defer tx.Rollback()

	total := 0
	for caller, callees := range calls {
		for _, callee := range callees {
			n, err := createEdge(tx, caller, callee, sourceFile)
			if err != nil {
				return 0, fmt.Errorf("link %s: %w", sourceFile, err)
			}
			total += n
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("link %s: commit: %w", sourceFile, err)
	}
	return total, nil
}

const callEdgeCols = `id, caller_id, callee_id, source_file`

func (s *Store) queryCallEdges(query string, args ...any) ([]*CallEdge, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var edges []*CallEdge
	for rows.Next() {
		e := &CallEdge{}
		if err := rows.Scan(&e.ID, &e.CallerID, &e.CalleeID, &e.SourceFile); err != nil {
			return nil, fmt.Errorf("scan call edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// AllCallEdges returns every edge ordered by (caller, callee).
func (s *Store) AllCallEdges() ([]*CallEdge, error) {
	return s.queryCallEdges("SELECT " + callEdgeCols + " FROM calls ORDER BY caller_id, callee_id")
}

// CalleesOf returns the outgoing edges of a node.
func (s *Store) CalleesOf(callerID int64) ([]*CallEdge, error) {
	return s.queryCallEdges(
		"SELECT "+callEdgeCols+" FROM calls WHERE caller_id = ? ORDER BY callee_id", callerID,
	)
}

// CallersOf returns the incoming edges of a node.
func (s *Store) CallersOf(calleeID int64) ([]*CallEdge, error) {
	return s.queryCallEdges(
		"SELECT "+callEdgeCols+" FROM calls WHERE callee_id = ? ORDER BY caller_id", calleeID,
	)
}
