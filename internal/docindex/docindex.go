// Package docindex is a full-text index over function documentation, used
// to answer natural-language questions about a repository.
package docindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// DefaultLimit is the number of hits returned when Search is given no limit.
const DefaultLimit = 10

// ErrClosed is returned by operations on an Index that has been closed or
// whose last Reset failed.
var ErrClosed = errors.New("docindex: index closed")

// Metadata describes the function a document belongs to.
type Metadata struct {
	FilePath     string `json:"file_path"`
	FunctionName string `json:"function_name"`
	Language     string `json:"language"`
}

// Hit is one search result.
type Hit struct {
	ID    string
	Score float64
	Text  string
	Metadata
}

type document struct {
	Text         string `json:"text"`
	FilePath     string `json:"file_path"`
	FunctionName string `json:"function_name"`
	Language     string `json:"language"`
}

// DocID returns the document ID of the function name defined in filePath.
func DocID(filePath, name string) string {
	return filePath + ":" + name
}

// Index wraps a bleve index. An Index with an empty path lives in memory.
type Index struct {
	mu   sync.RWMutex
	path string
	idx  bleve.Index
}

// Open opens the index at path, creating it if it does not exist.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, newMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("docindex: open %s: %w", path, err)
	}
	return &Index{path: path, idx: idx}, nil
}

// NewMemOnly creates an index that is never persisted.
func NewMemOnly() (*Index, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("docindex: create: %w", err)
	}
	return &Index{idx: idx}, nil
}

func newMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Store = true
	keyword := bleve.NewKeywordFieldMapping()
	keyword.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("function_name", keyword)
	doc.AddFieldMappingsAt("file_path", keyword)
	doc.AddFieldMappingsAt("language", keyword)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// AddDocuments indexes texts under ids in one batch. The three slices are
// parallel and must have the same length. Existing IDs are replaced.
func (x *Index) AddDocuments(ids, texts []string, metadata []Metadata) error {
	if len(ids) != len(texts) || len(ids) != len(metadata) {
		return fmt.Errorf("docindex: add: %d ids, %d texts, %d metadata", len(ids), len(texts), len(metadata))
	}
	if len(ids) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.idx == nil {
		return ErrClosed
	}

	batch := x.idx.NewBatch()
	for i, id := range ids {
		if err := batch.Index(id, document{
			Text:         texts[i],
			FilePath:     metadata[i].FilePath,
			FunctionName: metadata[i].FunctionName,
			Language:     metadata[i].Language,
		}); err != nil {
			return fmt.Errorf("docindex: add %s: %w", id, err)
		}
	}
	if err := x.idx.Batch(batch); err != nil {
		return fmt.Errorf("docindex: add: %w", err)
	}
	return nil
}

// Search runs a match query over document text and returns at most limit
// hits, best first. An empty query returns no hits.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	q := bleve.NewMatchQuery(query)
	q.SetField("text")
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"*"}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.idx == nil {
		return nil, ErrClosed
	}

	res, err := x.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("docindex: search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{
			ID:    h.ID,
			Score: h.Score,
			Text:  field(h.Fields, "text"),
			Metadata: Metadata{
				FilePath:     field(h.Fields, "file_path"),
				FunctionName: field(h.Fields, "function_name"),
				Language:     field(h.Fields, "language"),
			},
		})
	}
	return hits, nil
}

func field(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}

// Count returns the number of indexed documents.
func (x *Index) Count() (uint64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.idx == nil {
		return 0, ErrClosed
	}
	n, err := x.idx.DocCount()
	if err != nil {
		return 0, fmt.Errorf("docindex: count: %w", err)
	}
	return n, nil
}

// Reset drops every document by recreating the index. If recreating fails
// the Index is left closed; a later Reset may reopen it.
func (x *Index) Reset() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.idx != nil {
		err := x.idx.Close()
		x.idx = nil
		if err != nil {
			return fmt.Errorf("docindex: reset: close: %w", err)
		}
	}

	var (
		idx bleve.Index
		err error
	)
	if x.path == "" {
		idx, err = bleve.NewMemOnly(newMapping())
	} else {
		if err = os.RemoveAll(x.path); err != nil {
			return fmt.Errorf("docindex: reset: %w", err)
		}
		idx, err = bleve.New(x.path, newMapping())
	}
	if err != nil {
		return fmt.Errorf("docindex: reset: %w", err)
	}
	x.idx = idx
	return nil
}

// Close closes the underlying index. Closing twice is a no-op.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.idx == nil {
		return nil
	}
	err := x.idx.Close()
	x.idx = nil
	return err
}
