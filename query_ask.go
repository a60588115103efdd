package repograph

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"unicode"
)

// Keyword weights used by Ask.
const (
	weightFileName     = 3
	weightFilePath     = 2
	weightFunctionName = 2
	weightDocHit       = 4
)

// minKeywordLen is the shortest question word Ask scores on.
const minKeywordLen = 3

// DefaultAskLimit is the number of matches Ask returns when limit is not
// positive.
const DefaultAskLimit = 10

// AskMatch is one function relevant to a question.
type AskMatch struct {
	Function Function `json:"function"`
	Score    float64  `json:"score"`
	Reasons  []string `json:"reasons"`
	Doc      string   `json:"doc,omitempty"`
	Callers  []string `json:"callers,omitempty"` // node IDs, "file::name"
	Callees  []string `json:"callees,omitempty"`
}

// Keywords splits a question into the lowercase words Ask scores on.
func Keywords(question string) []string {
	words := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	seen := make(map[string]bool, len(words))
	var out []string
	for _, w := range words {
		if len(w) < minKeywordLen || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// Ask ranks functions by relevance to a natural-language question. It
// combines full-text hits in the documentation index with keyword matches
// against file names, paths and function names, then attaches each match's
// direct callers and callees. At most limit matches are returned, best
// first.
func (q *QueryBuilder) Ask(ctx context.Context, question string, limit int) ([]AskMatch, error) {
	if limit <= 0 {
		limit = DefaultAskLimit
	}
	keywords := Keywords(question)

	fns, err := q.store.AllFunctions()
	if err != nil {
		return nil, fmt.Errorf("ask: %w", err)
	}

	matches := make(map[int64]*AskMatch)
	byKey := make(map[string]*Function, len(fns))
	for _, fn := range fns {
		byKey[NodeID(fn.FilePath, fn.Name)] = fn

		var score float64
		var reasons []string
		fileName := strings.ToLower(path.Base(fn.FilePath))
		filePath := strings.ToLower(fn.FilePath)
		funcName := strings.ToLower(fn.Name)
		for _, kw := range keywords {
			if strings.Contains(fileName, kw) {
				score += weightFileName
				reasons = append(reasons, fmt.Sprintf("filename contains %q", kw))
			}
			if strings.Contains(filePath, kw) {
				score += weightFilePath
				reasons = append(reasons, fmt.Sprintf("path contains %q", kw))
			}
			if strings.Contains(funcName, kw) {
				score += weightFunctionName
				reasons = append(reasons, fmt.Sprintf("function name contains %q", kw))
			}
		}
		if score > 0 {
			matches[fn.ID] = &AskMatch{Function: *fn, Score: score, Reasons: reasons}
		}
	}

	hits, err := q.index.Search(ctx, question, limit*2)
	if err != nil {
		return nil, fmt.Errorf("ask: %w", err)
	}
	var maxScore float64
	for _, h := range hits {
		maxScore = max(maxScore, h.Score)
	}
	for _, h := range hits {
		fn, ok := byKey[NodeID(h.FilePath, h.FunctionName)]
		if !ok || maxScore == 0 {
			continue
		}
		m, ok := matches[fn.ID]
		if !ok {
			m = &AskMatch{Function: *fn}
			matches[fn.ID] = m
		}
		m.Score += weightDocHit * h.Score / maxScore
		m.Doc = h.Text
		m.Reasons = append(m.Reasons, "documentation matches question")
	}

	ranked := make([]*AskMatch, 0, len(matches))
	for _, m := range matches {
		ranked = append(ranked, m)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Function.FilePath != ranked[j].Function.FilePath {
			return ranked[i].Function.FilePath < ranked[j].Function.FilePath
		}
		return ranked[i].Function.Name < ranked[j].Function.Name
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	data, err := q.buildCallGraph()
	if err != nil {
		return nil, fmt.Errorf("ask: %w", err)
	}
	keyByID := make(map[int64]string, len(fns))
	for _, fn := range fns {
		keyByID[fn.ID] = NodeID(fn.FilePath, fn.Name)
	}
	neighborKeys := func(ids []int64) []string {
		var out []string
		for _, id := range ids {
			out = append(out, keyByID[id])
		}
		sort.Strings(out)
		return out
	}

	out := make([]AskMatch, 0, len(ranked))
	for _, m := range ranked {
		m.Callers = neighborKeys(data.reverse[m.Function.ID])
		m.Callees = neighborKeys(data.forward[m.Function.ID])
		out = append(out, *m)
	}
	return out, nil
}
