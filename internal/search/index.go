package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"
)

// Document is what the lexical index stores for a post or reply.
type Document struct {
	ContentType string    `json:"content_type"`
	ContentID   string    `json:"content_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	AuthorID    string    `json:"author_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func DocID(contentType string, id uuid.UUID) string {
	return contentType + ":" + id.String()
}

func parseDocID(s string) (string, uuid.UUID, bool) {
	typ, raw, ok := strings.Cut(s, ":")
	if !ok {
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", uuid.Nil, false
	}
	return typ, id, true
}

// Hit is one ranked search result.
type Hit struct {
	ContentType string    `json:"content_type"`
	ContentID   uuid.UUID `json:"content_id"`
	Score       float64   `json:"score"`
}

func (h Hit) key() string { return DocID(h.ContentType, h.ContentID) }

// LexicalIndex is a bleve full-text index over posts and replies.
type LexicalIndex struct {
	index bleve.Index
}

// OpenLexical opens the index at path, creating it when missing. An empty path
// builds an in-memory index.
func OpenLexical(path string) (*LexicalIndex, error) {
	if strings.TrimSpace(path) == "" {
		idx, err := bleve.NewMemOnly(buildMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &LexicalIndex{index: idx}, nil
	}
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return &LexicalIndex{index: idx}, nil
}

func buildMapping() mapping.IndexMapping {
	english := bleve.NewTextFieldMapping()
	english.Analyzer = "en"

	keyword := bleve.NewKeywordFieldMapping()
	keyword.IncludeInAll = false
	created := bleve.NewDateTimeFieldMapping()
	created.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", english)
	doc.AddFieldMappingsAt("body", english)
	doc.AddFieldMappingsAt("content_type", keyword)
	doc.AddFieldMappingsAt("content_id", keyword)
	doc.AddFieldMappingsAt("author_id", keyword)
	doc.AddFieldMappingsAt("created_at", created)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = "en"
	return m
}

func (i *LexicalIndex) Close() error {
	return i.index.Close()
}

func (i *LexicalIndex) Put(doc Document) error {
	id, err := uuid.Parse(doc.ContentID)
	if err != nil {
		return fmt.Errorf("index %s: %w", doc.ContentID, err)
	}
	return i.index.Index(DocID(doc.ContentType, id), doc)
}

// PutBatch indexes docs in one commit.
func (i *LexicalIndex) PutBatch(docs []Document) error {
	b := i.index.NewBatch()
	for _, doc := range docs {
		id, err := uuid.Parse(doc.ContentID)
		if err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ContentID, err)
		}
		if err := b.Index(DocID(doc.ContentType, id), doc); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ContentID, err)
		}
	}
	if err := i.index.Batch(b); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (i *LexicalIndex) Delete(contentType string, id uuid.UUID) error {
	return i.index.Delete(DocID(contentType, id))
}

// Search runs a bleve query-string query (quotes, +/-, fuzzy ~).
func (i *LexicalIndex) Search(q string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(q), limit, 0, false)
	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		typ, id, ok := parseDocID(h.ID)
		if !ok {
			continue
		}
		out = append(out, Hit{ContentType: typ, ContentID: id, Score: h.Score})
	}
	return out, nil
}

func (i *LexicalIndex) Count() (uint64, error) {
	return i.index.DocCount()
}
