package library

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
)

// SearchIndex is the full-text index over the track catalogue.
type SearchIndex struct {
	idx bleve.Index
}

type trackDoc struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	Genre     string `json:"genre"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	StorageID string `json:"storage_id"`
	TrackNo   int    `json:"track_no"`
}

// Hit is one search result.
type Hit struct {
	Ref       string
	Title     string
	Artist    string
	Album     string
	Path      string
	StorageID string
	Score     float64
}

func trackMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	// Exact-match field, used to scope deletions per storage.
	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("storage_id", kw)

	m.DefaultMapping = doc
	return m
}

// OpenSearchIndex opens or creates the index directory at path.
func OpenSearchIndex(path string) (*SearchIndex, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		idx, err := bleve.New(path, trackMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create search index: %w", err)
		}
		return &SearchIndex{idx: idx}, nil
	}

	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}
	return &SearchIndex{idx: idx}, nil
}

// NewMemSearchIndex creates an in-memory index, for tests and ephemeral
// runs.
func NewMemSearchIndex() (*SearchIndex, error) {
	idx, err := bleve.NewMemOnly(trackMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	return &SearchIndex{idx: idx}, nil
}

// Close closes the index.
func (s *SearchIndex) Close() error {
	return s.idx.Close()
}

// IndexBatch adds or updates a batch of tracks, keyed by ref.
func (s *SearchIndex) IndexBatch(tracks []*Track) error {
	batch := s.idx.NewBatch()
	for _, t := range tracks {
		err := batch.Index(t.Ref, trackDoc{
			Title:     t.Title,
			Artist:    t.Artist,
			Album:     t.Album,
			Genre:     t.Genre,
			Name:      t.Name,
			Path:      t.Path,
			StorageID: t.StorageID,
			TrackNo:   t.TrackNo,
		})
		if err != nil {
			return err
		}
	}
	return s.idx.Batch(batch)
}

// DeleteStorage drops every document of one storage from the index.
func (s *SearchIndex) DeleteStorage(storageID string) (int, error) {
	q := bleve.NewTermQuery(storageID)
	q.SetField("storage_id")

	removed := 0
	for {
		req := bleve.NewSearchRequest(q)
		req.Size = 1000
		res, err := s.idx.Search(req)
		if err != nil {
			return removed, err
		}
		if len(res.Hits) == 0 {
			return removed, nil
		}

		batch := s.idx.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
			removed++
		}
		if err := s.idx.Batch(batch); err != nil {
			return removed, err
		}
	}
}

// Search runs a query over the catalogue. Plain words match any text
// field; the full bleve query syntax (field:term, fuzziness) passes
// through.
func (s *SearchIndex) Search(q string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 50
	}

	req := bleve.NewSearchRequest(bleve.NewQueryStringQuery(q))
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := s.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		getStr := func(f string) string {
			if v, ok := h.Fields[f].(string); ok {
				return v
			}
			return ""
		}
		hits = append(hits, Hit{
			Ref:       h.ID,
			Title:     getStr("title"),
			Artist:    getStr("artist"),
			Album:     getStr("album"),
			Path:      getStr("path"),
			StorageID: getStr("storage_id"),
			Score:     h.Score,
		})
	}
	return hits, nil
}

// DocCount reports how many tracks the index holds.
func (s *SearchIndex) DocCount() (uint64, error) {
	return s.idx.DocCount()
}
