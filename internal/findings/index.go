// Package findings keeps a searchable history of every finding reported by
// past runs in a bleve index.
package findings

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/repoguard/internal/domain"
)

// Index field names.
const (
	FieldRule       = "rule"
	FieldNamespace  = "namespace"
	FieldRepo       = "repo"
	FieldRepoID     = "repo_id"
	FieldFilePath   = "file_path"
	FieldCommit     = "commit"
	FieldLine       = "line"
	FieldRunID      = "run_id"
	FieldDetectedAt = "detected_at"
)

const (
	// MaxBatchSize is the maximum number of documents per batch.
	MaxBatchSize = 100

	// DefaultLimit is the number of hits returned when a query sets none.
	DefaultLimit = 20
)

// ErrClosed is returned by operations on a closed index.
var ErrClosed = errors.New("findings index is closed")

// Document is the indexed form of a finding.
type Document struct {
	Rule       string    `json:"rule"`
	Namespace  string    `json:"namespace"`
	Repo       string    `json:"repo"`
	RepoID     string    `json:"repo_id"`
	FilePath   string    `json:"file_path"`
	Commit     string    `json:"commit"`
	Line       string    `json:"line"`
	RunID      string    `json:"run_id"`
	DetectedAt time.Time `json:"detected_at"`
}

// DocumentID returns the stable id of a finding. The same match reported by
// two runs maps to the same document.
func DocumentID(f domain.Finding) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{f.RepoID, f.CommitHash, f.RuleName, f.FilePath, f.Line}, "\x00")))
	return hex.EncodeToString(sum[:16])
}

// Index is a findings history index.
type Index struct {
	index bleve.Index
	now   func() time.Time
}

// IndexMapping creates the bleve mapping for finding documents: identifiers
// are keywords, the matched line is full-text.
func IndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	for _, name := range []string{FieldRule, FieldNamespace, FieldRepo, FieldRepoID, FieldFilePath, FieldCommit, FieldRunID} {
		field := bleve.NewTextFieldMapping()
		field.Analyzer = keyword.Name
		field.Store = true
		docMapping.AddFieldMappingsAt(name, field)
	}

	lineField := bleve.NewTextFieldMapping()
	lineField.Analyzer = standard.Name
	lineField.Store = true
	lineField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt(FieldLine, lineField)

	detectedField := bleve.NewDateTimeFieldMapping()
	detectedField.Store = true
	docMapping.AddFieldMappingsAt(FieldDetectedAt, detectedField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// Open opens the index at path, creating it if it does not exist.
func Open(path string) (*Index, error) {
	index, err := bleve.Open(path)
	if err == nil {
		return &Index{index: index, now: time.Now}, nil
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return nil, fmt.Errorf("failed to open findings index: %w", err)
	}

	index, err = bleve.New(path, IndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create findings index: %w", err)
	}
	return &Index{index: index, now: time.Now}, nil
}

// OpenReadOnly opens an existing index for searching only.
func OpenReadOnly(path string) (*Index, error) {
	index, err := bleve.OpenUsing(path, map[string]any{"read_only": true})
	if err != nil {
		return nil, fmt.Errorf("failed to open findings index: %w", err)
	}
	return &Index{index: index, now: time.Now}, nil
}

// Exists reports whether an index has been created at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Add indexes the findings of one run and returns the number of documents written.
func (i *Index) Add(findings []domain.Finding, runID string) (int, error) {
	if i.index == nil {
		return 0, ErrClosed
	}

	detectedAt := i.now().UTC()
	batch := i.index.NewBatch()
	total := 0

	for _, f := range findings {
		doc := Document{
			Rule:       f.RuleName,
			Namespace:  f.Namespace(),
			Repo:       f.RepoDir,
			RepoID:     f.RepoID,
			FilePath:   f.FilePath,
			Commit:     f.CommitHash,
			Line:       f.Line,
			RunID:      runID,
			DetectedAt: detectedAt,
		}
		if err := batch.Index(DocumentID(f), doc); err != nil {
			return total, fmt.Errorf("failed to index finding: %w", err)
		}

		if size := batch.Size(); size >= MaxBatchSize {
			if err := i.index.Batch(batch); err != nil {
				return total, fmt.Errorf("batch index failed: %w", err)
			}
			total += size
			batch = i.index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		size := batch.Size()
		if err := i.index.Batch(batch); err != nil {
			return total, fmt.Errorf("final batch index failed: %w", err)
		}
		total += size
	}

	return total, nil
}

// Query selects findings. Empty fields do not filter.
type Query struct {
	// Text is matched against the finding line.
	Text string
	// Rule is an exact rule name or a namespace wildcard ("xxe::*").
	Rule string
	// Repo is a mirror directory name or a repository id.
	Repo  string
	Limit int
}

// Hit is one search result.
type Hit struct {
	ID        string
	Score     float64
	Document  Document
	Fragments []string
}

// Results holds the hits of a search, newest first.
type Results struct {
	Total uint64
	Hits  []Hit
}

// Search runs q against the index.
func (i *Index) Search(q Query) (*Results, error) {
	if i.index == nil {
		return nil, ErrClosed
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	req := bleve.NewSearchRequest(buildQuery(q))
	req.Size = limit
	req.Fields = []string{"*"}
	req.SortBy([]string{"-" + FieldDetectedAt, "-_score", "_id"})
	if strings.TrimSpace(q.Text) != "" {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField(FieldLine)
	}

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("findings search failed: %w", err)
	}

	results := &Results{Total: res.Total, Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		results.Hits = append(results.Hits, Hit{
			ID:        h.ID,
			Score:     h.Score,
			Document:  documentFromFields(h.Fields),
			Fragments: h.Fragments[FieldLine],
		})
	}
	return results, nil
}

func buildQuery(q Query) query.Query {
	var must []query.Query

	if text := strings.TrimSpace(q.Text); text != "" {
		mq := bleve.NewMatchQuery(text)
		mq.SetField(FieldLine)
		must = append(must, mq)
	}

	if rule := strings.TrimSpace(q.Rule); rule != "" {
		if ns, ok := strings.CutSuffix(rule, domain.NamespaceSeparator+"*"); ok {
			tq := bleve.NewTermQuery(ns)
			tq.SetField(FieldNamespace)
			must = append(must, tq)
		} else {
			tq := bleve.NewTermQuery(rule)
			tq.SetField(FieldRule)
			must = append(must, tq)
		}
	}

	if repo := strings.TrimSpace(q.Repo); repo != "" {
		byDir := bleve.NewTermQuery(repo)
		byDir.SetField(FieldRepo)
		byID := bleve.NewTermQuery(repo)
		byID.SetField(FieldRepoID)
		must = append(must, bleve.NewDisjunctionQuery(byDir, byID))
	}

	switch len(must) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return must[0]
	default:
		return bleve.NewConjunctionQuery(must...)
	}
}

func documentFromFields(fields map[string]any) Document {
	str := func(name string) string {
		if v, ok := fields[name].(string); ok {
			return v
		}
		return ""
	}

	doc := Document{
		Rule:      str(FieldRule),
		Namespace: str(FieldNamespace),
		Repo:      str(FieldRepo),
		RepoID:    str(FieldRepoID),
		FilePath:  str(FieldFilePath),
		Commit:    str(FieldCommit),
		Line:      str(FieldLine),
		RunID:     str(FieldRunID),
	}

	switch v := fields[FieldDetectedAt].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			doc.DetectedAt = t
		}
	case time.Time:
		doc.DetectedAt = v
	}

	return doc
}

// Count returns the number of indexed findings.
func (i *Index) Count() (uint64, error) {
	if i.index == nil {
		return 0, ErrClosed
	}
	return i.index.DocCount()
}

// Close releases the index.
func (i *Index) Close() error {
	if i.index == nil {
		return nil
	}
	err := i.index.Close()
	i.index = nil
	if err != nil {
		return fmt.Errorf("failed to close findings index: %w", err)
	}
	return nil
}
