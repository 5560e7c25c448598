package searchdb

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Hit is a single normalized search result: a document id and its score
// under whichever ranking produced it (BM25 relevance or vector similarity).
type Hit struct {
	ID     string
	Score  float64
	Fields map[string]any
}

// KeywordSearch runs the index's native BM25/TF-IDF ranker over q, returning
// up to limit hits ordered by descending relevance. filter, if non-empty, is
// ANDed as an additional conjunctive match query against the given field.
func KeywordSearch(idx bleve.Index, q string, limit int, filterField, filterValue string) ([]Hit, error) {
	textQuery := bleve.NewMatchQuery(q)

	var searchQuery query.Query = textQuery
	if filterField != "" && filterValue != "" {
		fq := bleve.NewMatchQuery(filterValue)
		fq.SetField(filterField)
		searchQuery = bleve.NewConjunctionQuery(textQuery, fq)
	}

	req := bleve.NewSearchRequestOptions(searchQuery, limit, 0, false)
	req.Fields = []string{"*"}

	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searchdb: keyword search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score, Fields: h.Fields})
	}
	return hits, nil
}

// VectorSearch runs a k-nearest-neighbor query against the "embedding"
// field, returning up to limit hits ordered by descending similarity.
func VectorSearch(idx bleve.Index, vector []float32, limit int) ([]Hit, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchNoneQuery())
	req.AddKNN("embedding", vector, int64(limit), 1.0)
	req.Fields = []string{"*"}
	req.Size = limit

	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searchdb: vector search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score, Fields: h.Fields})
	}
	return hits, nil
}

// Put indexes or replaces the document at id with the given field map.
func Put(idx bleve.Index, id string, doc map[string]any) error {
	if err := idx.Index(id, doc); err != nil {
		return fmt.Errorf("searchdb: index doc %q: %w", id, err)
	}
	return nil
}

// Get fetches a single document's stored fields by id. Returns (nil, nil)
// if the document does not exist.
func Get(idx bleve.Index, id string) (map[string]any, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Fields = []string{"*"}
	req.Size = 1

	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searchdb: get doc %q: %w", id, err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}
	return res.Hits[0].Fields, nil
}

// DeleteDoc removes a single document by id. Deleting a missing id is a
// no-op success, matching bleve's own semantics.
func DeleteDoc(idx bleve.Index, id string) error {
	if err := idx.Delete(id); err != nil {
		return fmt.Errorf("searchdb: delete doc %q: %w", id, err)
	}
	return nil
}

// ScanAll returns every document in idx, paginated internally by pageSize
// (1000 if pageSize <= 0). Used by callers that need a full index scan
// rather than a ranked query (e.g. reading back raw pages for chunking).
func ScanAll(idx bleve.Index, pageSize int) ([]Hit, error) {
	if pageSize <= 0 {
		pageSize = 1000
	}
	var all []Hit
	from := 0
	for {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), pageSize, from, false)
		req.Fields = []string{"*"}
		res, err := idx.Search(req)
		if err != nil {
			return nil, fmt.Errorf("searchdb: scan all: %w", err)
		}
		if len(res.Hits) == 0 {
			break
		}
		for _, h := range res.Hits {
			all = append(all, Hit{ID: h.ID, Score: h.Score, Fields: h.Fields})
		}
		if len(res.Hits) < pageSize {
			break
		}
		from += pageSize
	}
	return all, nil
}

// Count returns the number of documents currently stored in idx.
func Count(idx bleve.Index) (uint64, error) {
	n, err := idx.DocCount()
	if err != nil {
		return 0, fmt.Errorf("searchdb: doc count: %w", err)
	}
	return n, nil
}
