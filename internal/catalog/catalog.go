// Package catalog is an operator-facing lookup layer over the dataset
// repository: a full-text index of dataset, collection, and data-category
// metadata so an operator can find "which collections carry
// user.provided.identifiable.contact" without hand-scanning dataset YAML.
// It is a read-side convenience built on top of repository.DatasetRepository,
// not a replacement for it - the graph builder and traversal planner still
// consume model.Dataset values directly from the repository.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/ethyca-go/privacyrun/internal/model"
	"github.com/ethyca-go/privacyrun/internal/repository"
)

// entry is one indexed (dataset, collection) document, flattening the
// collection's field names and data categories into searchable text.
type entry struct {
	DatasetKey     string   `json:"dataset_key"`
	CollectionName string   `json:"collection_name"`
	FieldNames     []string `json:"field_names"`
	DataCategories []string `json:"data_categories"`
}

// Match is one search hit.
type Match struct {
	Address model.CollectionAddress
	Score   float64
}

// Catalog indexes a DatasetRepository's collections for search, in-memory
// only (rebuilt on startup and whenever Reindex is called) - there is no
// durability requirement on the search index itself, only on the
// repository it is built from.
type Catalog struct {
	repo   repository.DatasetRepository
	index  bleve.Index
	logger *zap.Logger
	mu     sync.RWMutex
}

// New builds an empty, in-memory Catalog over repo. Call Reindex before the
// first Search.
func New(repo repository.DatasetRepository, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to create search index: %w", err)
	}
	return &Catalog{repo: repo, index: idx, logger: logger.Named("catalog")}, nil
}

func buildMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	fieldNames := bleve.NewTextFieldMapping()
	fieldNames.Store = true
	doc.AddFieldMappingsAt("field_names", fieldNames)

	categories := bleve.NewTextFieldMapping()
	categories.Store = true
	categories.Analyzer = "keyword"
	doc.AddFieldMappingsAt("data_categories", categories)

	datasetKey := bleve.NewTextFieldMapping()
	datasetKey.Store = true
	datasetKey.IncludeInAll = false
	doc.AddFieldMappingsAt("dataset_key", datasetKey)

	collectionName := bleve.NewTextFieldMapping()
	collectionName.Store = true
	collectionName.IncludeInAll = false
	doc.AddFieldMappingsAt("collection_name", collectionName)

	im := bleve.NewIndexMapping()
	im.AddDocumentMapping("entry", doc)
	im.DefaultAnalyzer = "standard"
	return im
}

// Reindex rebuilds the search index from every dataset the repository
// currently reports, replacing whatever was indexed before.
func (c *Catalog) Reindex(ctx context.Context) error {
	datasets, err := c.repo.ListDatasets(ctx)
	if err != nil {
		return fmt.Errorf("catalog: listing datasets: %w", err)
	}

	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return fmt.Errorf("catalog: failed to create search index: %w", err)
	}

	batch := idx.NewBatch()
	for _, ds := range datasets {
		for _, coll := range ds.Collections {
			e := entry{DatasetKey: ds.FidesKey, CollectionName: coll.Name}
			for _, f := range coll.Fields {
				e.FieldNames = append(e.FieldNames, f.Name)
				e.DataCategories = append(e.DataCategories, f.DataCategories...)
			}
			docID := ds.FidesKey + ":" + coll.Name
			if err := batch.Index(docID, e); err != nil {
				return fmt.Errorf("catalog: indexing %s: %w", docID, err)
			}
		}
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("catalog: committing index batch: %w", err)
	}

	c.mu.Lock()
	old := c.index
	c.index = idx
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	c.logger.Info("catalog reindexed", zap.Int("datasets", len(datasets)))
	return nil
}

// SearchCategory returns every collection carrying a data category equal
// to, or a descendant of, prefix - the same prefix semantics
// model.Field.HasCategoryPrefix uses for erasure targeting, so an operator
// can preview what a rule with this target category would reach.
func (c *Catalog) SearchCategory(ctx context.Context, prefix string, limit int) ([]Match, error) {
	c.mu.RLock()
	idx := c.index
	c.mu.RUnlock()

	exact := query.NewTermQuery(prefix)
	exact.SetField("data_categories")
	descendants := query.NewWildcardQuery(prefix + ".*")
	descendants.SetField("data_categories")
	q := query.NewDisjunctionQuery([]query.Query{exact, descendants})
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"dataset_key", "collection_name"}

	result, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: category search failed: %w", err)
	}
	return toMatches(result), nil
}

// SearchText performs a free-text search over field names and data
// categories (e.g. an operator typing "ssn" or "contact").
func (c *Catalog) SearchText(ctx context.Context, text string, limit int) ([]Match, error) {
	c.mu.RLock()
	idx := c.index
	c.mu.RUnlock()

	q := bleve.NewMatchQuery(text)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"dataset_key", "collection_name"}

	result, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: text search failed: %w", err)
	}
	return toMatches(result), nil
}

func toMatches(result *bleve.SearchResult) []Match {
	out := make([]Match, 0, len(result.Hits))
	for _, hit := range result.Hits {
		dk, _ := hit.Fields["dataset_key"].(string)
		cn, _ := hit.Fields["collection_name"].(string)
		out = append(out, Match{
			Address: model.CollectionAddress{Dataset: dk, Collection: cn},
			Score:   hit.Score,
		})
	}
	return out
}
