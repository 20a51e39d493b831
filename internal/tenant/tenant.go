// Package tenant overlays a (tenant_id, namespace) naming convention onto
// the collection manager and shapes FAQ-flavored vectors on top of the
// plain vector record model.
package tenant

import (
	"sort"
	"strings"

	"github.com/diffsec/vectorcore/internal/apierr"
	"github.com/diffsec/vectorcore/internal/collections"
	"github.com/diffsec/vectorcore/internal/vectorindex"
)

const (
	metaTypeKey     = "type"
	metaTypeFAQ     = "faq"
	metaTenantKey   = "tenant_id"
	metaNamespace   = "namespace"
	metaQuestionKey = "question"
	metaAnswerKey   = "answer"
	metaCategoryKey = "category"
)

// Service routes tenant/namespace requests onto the underlying collection
// manager, using the "{tenant}__{namespace}" naming convention.
type Service struct {
	manager *collections.Manager
}

// NewService builds a tenant routing layer over manager.
func NewService(manager *collections.Manager) *Service {
	return &Service{manager: manager}
}

// CollectionName computes the synthetic collection name for a tenant and
// namespace pair.
func CollectionName(tenantID, namespace string) string {
	return tenantID + "__" + namespace
}

// FAQ is the shaped view of a vector record carrying the well-known FAQ
// metadata keys.
type FAQ struct {
	ID       string
	Question string
	Answer   string
	Category string
	Vector   []float32
}

// FAQResult is one ranked FAQ search hit.
type FAQResult struct {
	FAQ
	Distance float32
}

// CreateNamespace creates the backing collection for (tenantID, namespace).
func (s *Service) CreateNamespace(tenantID, namespace string, dimension int, metric vectorindex.Metric) (bool, error) {
	// HNSW parameters are left zero so the manager fills them from its
	// configured defaults, as it does for POST /collections.
	return s.manager.Create(CollectionName(tenantID, namespace), vectorindex.Config{Dimension: dimension, Metric: metric})
}

// ListNamespaces returns every namespace registered under tenantID.
func (s *Service) ListNamespaces(tenantID string) []string {
	prefix := tenantID + "__"
	var out []string
	for _, name := range s.manager.List() {
		if ns, ok := strings.CutPrefix(name, prefix); ok {
			out = append(out, ns)
		}
	}
	sort.Strings(out)
	return out
}

// InsertFAQ stamps the well-known metadata keys onto vec and inserts it
// into (tenantID, namespace)'s collection.
func (s *Service) InsertFAQ(tenantID, namespace, id, question, answer, category string, vec []float32) (string, error) {
	if question == "" {
		return "", apierr.BadRequest("question must not be empty")
	}
	metadata := map[string]string{
		metaTypeKey:     metaTypeFAQ,
		metaTenantKey:   tenantID,
		metaNamespace:   namespace,
		metaQuestionKey: question,
		metaAnswerKey:   answer,
		metaCategoryKey: category,
	}
	return s.manager.Insert(CollectionName(tenantID, namespace), vec, id, metadata)
}

// BulkInsertFAQ applies InsertFAQ to every item, swallowing per-item
// failures and counting only successes, matching batch_insert's contract.
func (s *Service) BulkInsertFAQ(tenantID, namespace string, items []FAQ) int {
	inserted := 0
	for _, item := range items {
		if _, err := s.InsertFAQ(tenantID, namespace, item.ID, item.Question, item.Answer, item.Category, item.Vector); err == nil {
			inserted++
		}
	}
	return inserted
}

// GetFAQ fetches and reshapes one FAQ record.
func (s *Service) GetFAQ(tenantID, namespace, id string) (FAQ, error) {
	rec, err := s.manager.Get(CollectionName(tenantID, namespace), id)
	if err != nil {
		return FAQ{}, err
	}
	return toFAQ(rec), nil
}

// UpdateFAQ applies the service's remove-then-insert update semantics
// under the same id.
func (s *Service) UpdateFAQ(tenantID, namespace, id, question, answer, category string, vec []float32) error {
	name := CollectionName(tenantID, namespace)
	if _, err := s.manager.Remove(name, id); err != nil {
		return err
	}
	_, err := s.InsertFAQ(tenantID, namespace, id, question, answer, category, vec)
	return err
}

// DeleteFAQ removes one FAQ record, returning whether it existed.
func (s *Service) DeleteFAQ(tenantID, namespace, id string) (bool, error) {
	return s.manager.Remove(CollectionName(tenantID, namespace), id)
}

// SearchFAQ searches (tenantID, namespace) and optionally restricts results
// to a single category via the exact-match metadata filter.
func (s *Service) SearchFAQ(tenantID, namespace string, query []float32, topK int, category string) ([]FAQResult, error) {
	name := CollectionName(tenantID, namespace)
	var (
		results []vectorindex.SearchResult
		err     error
	)
	if category != "" {
		results, err = s.manager.SearchFilter(name, query, topK, 0, map[string]string{metaCategoryKey: category})
	} else {
		results, err = s.manager.Search(name, query, topK, 0)
	}
	if err != nil {
		return nil, err
	}
	return toFAQResults(results), nil
}

// CrossNamespaceSearch fans out across every namespace in namespaces (or,
// if empty, every namespace registered under tenantID), merges per-
// collection top-k ascending by distance, and returns the overall top-k.
func (s *Service) CrossNamespaceSearch(tenantID string, query []float32, topK int, category string, namespaces []string) ([]FAQResult, error) {
	if len(namespaces) == 0 {
		namespaces = s.ListNamespaces(tenantID)
	}

	var merged []FAQResult
	for _, ns := range namespaces {
		results, err := s.SearchFAQ(tenantID, ns, query, topK, category)
		if err != nil {
			if apierr.Is(err, apierr.KindNotFound) {
				continue
			}
			return nil, err
		}
		merged = append(merged, results...)
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].Distance < merged[j].Distance })
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// NamespaceStats reports one namespace's collection stats.
func (s *Service) NamespaceStats(tenantID, namespace string) (collections.Stats, error) {
	return s.manager.Stats(CollectionName(tenantID, namespace))
}

// AggregateStats sums counts across every namespace registered under
// tenantID.
func (s *Service) AggregateStats(tenantID string) (namespaces int, totalCount int) {
	for _, ns := range s.ListNamespaces(tenantID) {
		stats, err := s.NamespaceStats(tenantID, ns)
		if err != nil {
			continue
		}
		namespaces++
		totalCount += stats.Count
	}
	return namespaces, totalCount
}

func toFAQ(rec vectorindex.VectorRecord) FAQ {
	return FAQ{
		ID:       rec.ID,
		Question: rec.Metadata[metaQuestionKey],
		Answer:   rec.Metadata[metaAnswerKey],
		Category: rec.Metadata[metaCategoryKey],
		Vector:   rec.Values,
	}
}

func toFAQResults(results []vectorindex.SearchResult) []FAQResult {
	out := make([]FAQResult, len(results))
	for i, r := range results {
		out[i] = FAQResult{FAQ: toFAQ(r.Record), Distance: r.Distance}
	}
	return out
}
