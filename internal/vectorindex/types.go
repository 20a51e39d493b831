// Package vectorindex implements a single collection's Hierarchical
// Navigable Small World graph: construction, insertion, logical deletion,
// and single/batched approximate nearest-neighbor search over float32
// vectors tagged with a string id and string-to-string metadata.
package vectorindex

import "github.com/diffsec/vectorcore/internal/distance"

// Metric selects the distance kernel used for every comparison in a
// collection. The numeric values match the on-disk config sidecar's
// metric_int (§6): 0=Euclidean, 1=Cosine, 2=DotProduct.
type Metric int

const (
	Euclidean Metric = iota
	Cosine
	InnerProduct
)

func (m Metric) String() string {
	switch m {
	case Euclidean:
		return "euclidean"
	case Cosine:
		return "cosine"
	case InnerProduct:
		return "inner_product"
	default:
		return "unknown"
	}
}

// ParseMetric parses the wire name used by the HTTP API.
func ParseMetric(s string) (Metric, bool) {
	switch s {
	case "euclidean", "l2":
		return Euclidean, true
	case "cosine":
		return Cosine, true
	case "inner_product", "dot", "dotproduct":
		return InnerProduct, true
	default:
		return 0, false
	}
}

// distanceFunc returns lower-is-closer over a and b for this metric.
// Inner product is negated so closer vectors (higher dot product) still
// sort first ascending by distance, mirroring how Euclidean and cosine
// already behave.
func (m Metric) distanceFunc() func(a, b []float32) float32 {
	switch m {
	case Cosine:
		return distance.Cosine
	case InnerProduct:
		return func(a, b []float32) float32 { return -distance.Dot(a, b) }
	default:
		return distance.L2
	}
}

// VectorRecord is one stored vector: a caller-facing id, its coordinates,
// and opaque string metadata.
type VectorRecord struct {
	ID       string
	Values   []float32
	Metadata map[string]string
}

// Config holds the per-collection HNSW construction and search parameters.
// M and EfConstruction are immutable once the index is built; EfSearch is
// only ever a default, overridable per query.
type Config struct {
	Dimension      int
	Metric         Metric
	M              int
	EfConstruction int
	EfSearch       int
	MaxElements    int
}

// DefaultConfig returns the spec's documented defaults layered onto dim/metric.
func DefaultConfig(dimension int, metric Metric) Config {
	return Config{
		Dimension:      dimension,
		Metric:         metric,
		M:              16,
		EfConstruction: 200,
		EfSearch:       50,
		MaxElements:    1_000_000,
	}
}

func (c Config) withDefaults() Config {
	if c.M <= 0 {
		c.M = 16
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 50
	}
	if c.MaxElements <= 0 {
		c.MaxElements = 1_000_000
	}
	return c
}

// SearchResult is one ranked hit: the stored id, its distance to the query
// (ascending = closer), and a copy of its payload safe to use after the
// index lock is released.
type SearchResult struct {
	ID       string
	Distance float32
	Record   VectorRecord
}
