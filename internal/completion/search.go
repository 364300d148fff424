package completion

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/vibetex/internal/models"
)

const defaultSearchFuzziness = 1

// SearchHit is one documentation search result.
type SearchHit struct {
	Trigger    string            `json:"trigger"`
	Completion models.Completion `json:"completion"`
	Score      float64           `json:"score"`
}

// Index is an in-memory full-text index over command names and documentation.
type Index struct {
	index bleve.Index
	docs  map[string]SearchHit
}

// NewIndex indexes every entry of table.
func NewIndex(table *Table) (*Index, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("documentation", textFieldMapping)
	docMapping.AddFieldMappingsAt("kind", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("command", docMapping)
	im.DefaultType = "command"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion index: %w", err)
	}

	x := &Index{index: index, docs: make(map[string]SearchHit, table.Len())}
	batch := index.NewBatch()
	for _, trigger := range table.triggers {
		for i, item := range table.entries[trigger] {
			id := trigger + "#" + strconv.Itoa(i)
			doc := map[string]interface{}{
				"name":          strings.TrimPrefix(item.Label, trigger),
				"documentation": item.Documentation,
				"kind":          string(item.Kind),
			}
			if err := batch.Index(id, doc); err != nil {
				return nil, fmt.Errorf("failed to index %s: %w", item.Label, err)
			}
			x.docs[id] = SearchHit{Trigger: trigger, Completion: item}
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("failed to index completion table: %w", err)
	}
	return x, nil
}

// Search matches query against names and documentation. With fuzzy set, each
// term tolerates one edit.
func (x *Index) Search(query string, limit int, fuzzy bool) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchHit{}, nil
	}
	if limit <= 0 {
		limit = defaultMaxResults
	}
	var q blevequery.Query
	if fuzzy {
		q = buildFuzzyQuery(query, defaultSearchFuzziness)
	} else {
		name := bleve.NewMatchQuery(query)
		name.SetField("name")
		name.SetBoost(2)
		doc := bleve.NewMatchQuery(query)
		doc.SetField("documentation")
		q = bleve.NewDisjunctionQuery(name, doc)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("completion search failed: %w", err)
	}
	out := make([]SearchHit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		h, ok := x.docs[hit.ID]
		if !ok {
			continue
		}
		h.Score = hit.Score
		out = append(out, h)
	}
	return out, nil
}

// Close releases the index.
func (x *Index) Close() error {
	return x.index.Close()
}

func buildFuzzyQuery(query string, fuzziness int) blevequery.Query {
	terms := strings.Fields(strings.ToLower(query))
	var parts []blevequery.Query
	for _, term := range terms {
		term = strings.TrimLeft(term, `\`)
		if term == "" {
			continue
		}
		for _, field := range []string{"name", "documentation"} {
			fq := bleve.NewFuzzyQuery(term)
			fq.SetField(field)
			fq.SetFuzziness(fuzziness)
			parts = append(parts, fq)
		}
	}
	if len(parts) == 0 {
		return bleve.NewMatchNoneQuery()
	}
	return bleve.NewDisjunctionQuery(parts...)
}
