package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertFile records the outcome of analyzing a file, replacing any previous
// record for the same path. The file's ID is set and returned.
func (s *Store) UpsertFile(f *File) (int64, error) {
	return upsertFile(s.db, f)
}

func upsertFile(ex execer, f *File) (int64, error) {
	if f.Status == "" {
		f.Status = FileOK
	}
	if f.LastAnalyzed.IsZero() {
		f.LastAnalyzed = time.Now().UTC()
	}
	_, err := ex.Exec(
		`INSERT INTO files (path, language, hash, status, error, function_count, last_analyzed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   language = excluded.language,
		   hash = excluded.hash,
		   status = excluded.status,
		   error = excluded.error,
		   function_count = excluded.function_count,
		   last_analyzed = excluded.last_analyzed`,
		f.Path, f.Language, f.Hash, f.Status, f.Error, f.FunctionCount, f.LastAnalyzed,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert file %s: %w", f.Path, err)
	}
	var id int64
	if err := ex.QueryRow("SELECT id FROM files WHERE path = ?", f.Path).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert file %s: lookup id: %w", f.Path, err)
	}
	f.ID = id
	return id, nil
}

const fileCols = `id, path, language, hash, status, error, function_count, last_analyzed`

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	var analyzed sql.NullTime
	if err := scanner.Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &f.Status, &f.Error, &f.FunctionCount, &analyzed); err != nil {
		return nil, err
	}
	if analyzed.Valid {
		f.LastAnalyzed = analyzed.Time
	}
	return f, nil
}

// FileByPath returns the file record for path, or nil if none exists.
func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// Files returns every file record ordered by path.
func (s *Store) Files() ([]*File, error) {
	return s.queryFiles("SELECT " + fileCols + " FROM files ORDER BY path")
}

// FilesByStatus returns the file records with the given status.
func (s *Store) FilesByStatus(status string) ([]*File, error) {
	return s.queryFiles("SELECT "+fileCols+" FROM files WHERE status = ? ORDER BY path", status)
}

func (s *Store) queryFiles(query string, args ...any) ([]*File, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// LanguageCounts returns the number of analyzed files per language.
func (s *Store) LanguageCounts() (map[string]int, error) {
	rows, err := s.db.Query("SELECT language, COUNT(*) FROM files WHERE status = ? GROUP BY language", FileOK)
	if err != nil {
		return nil, fmt.Errorf("language counts: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var language string
		var n int
		if err := rows.Scan(&language, &n); err != nil {
			return nil, fmt.Errorf("language counts: %w", err)
		}
		counts[language] = n
	}
	return counts, rows.Err()
}
