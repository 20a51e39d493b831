// Package collections implements the registry of named vector collections:
// per-name locking, disk persistence, and thin delegation of per-vector
// operations down to each collection's HNSW index.
package collections

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/diffsec/vectorcore/internal/apierr"
	"github.com/diffsec/vectorcore/internal/vectorindex"
)

// Stats describes one collection's current state.
type Stats struct {
	Name           string
	Count          int
	MemoryBytes    int64
	Dimension      int
	Metric         vectorindex.Metric
	M              int
	EfConstruction int
	EfSearch       int
	MaxElements    int
}

type entry struct {
	cfg   vectorindex.Config
	index *vectorindex.Index
}

// Defaults carries the fallback HNSW parameters a collection is built with
// when a create request omits them, resolved by the config package from
// config.yaml (or its own built-in constants if config.yaml doesn't set a
// field). A zero Defaults is valid and simply defers every field to
// vectorindex's own built-in constants.
type Defaults struct {
	M              int
	EfConstruction int
	EfSearch       int
	MaxElements    int
}

// Manager owns every collection in the service. The registry (the name ->
// entry map) is guarded by its own reader-writer lock, separate from each
// collection's own index lock; structural operations (Create, Drop,
// LoadAll) take the registry's exclusive lock, while per-vector operations
// take the registry's shared lock only long enough to find the index
// pointer before operating under that index's own lock. The registry lock
// is never taken while holding an index lock, only the reverse.
type Manager struct {
	dataDir  string
	defaults Defaults

	mu          sync.RWMutex
	collections map[string]*entry
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithDefaults sets the fallback HNSW parameters Create applies to any
// field a create request leaves unset.
func WithDefaults(d Defaults) Option {
	return func(m *Manager) { m.defaults = d }
}

// NewManager constructs a manager rooted at dataDir and loads any
// collections already persisted there.
func NewManager(dataDir string, opts ...Option) (*Manager, error) {
	m := &Manager{
		dataDir:     dataDir,
		collections: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, apierr.Internal("create data directory", err)
	}
	m.LoadAll()
	return m, nil
}

// ValidateName rejects collection names that can't be used verbatim as a
// filename stem.
func ValidateName(name string) error {
	if name == "" {
		return apierr.BadRequest("collection name must not be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return apierr.BadRequest("collection name must not contain path separators")
	}
	return nil
}

// Create registers a new empty collection. Returns false if the name is
// already taken.
func (m *Manager) Create(name string, cfg vectorindex.Config) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	if cfg.Dimension <= 0 {
		return false, apierr.BadRequest("dimension must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.collections[name]; exists {
		return false, nil
	}

	cfg = m.applyDefaultsLocked(cfg)
	idx := vectorindex.New(cfg)
	cfg = idx.Config()
	m.collections[name] = &entry{cfg: cfg, index: idx}

	if err := m.saveConfigLocked(name, cfg); err != nil {
		delete(m.collections, name)
		return false, apierr.Internal("persist collection config", err)
	}

	slog.Info("collection created", slog.String("collection", name), slog.Int("dimension", cfg.Dimension), slog.String("metric", cfg.Metric.String()))
	return true, nil
}

// applyDefaultsLocked fills any field a create request left unset (zero)
// with the manager's configured defaults, leaving vectorindex.New's own
// built-in constants as the final fallback for whatever is still zero
// afterward. Caller must hold m.mu.
func (m *Manager) applyDefaultsLocked(cfg vectorindex.Config) vectorindex.Config {
	if cfg.M <= 0 {
		cfg.M = m.defaults.M
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = m.defaults.EfConstruction
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = m.defaults.EfSearch
	}
	if cfg.MaxElements <= 0 {
		cfg.MaxElements = m.defaults.MaxElements
	}
	return cfg
}

// Drop removes a collection from memory and deletes its on-disk files.
// Returns false if the name is unknown.
func (m *Manager) Drop(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.collections[name]; !exists {
		return false
	}
	delete(m.collections, name)

	_ = os.Remove(m.configPath(name))
	_ = os.Remove(m.graphPath(name))
	_ = os.Remove(m.metaPath(name))

	slog.Info("collection dropped", slog.String("collection", name))
	return true
}

// List returns every collection name currently registered.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	return names
}

// Exists reports whether name is registered.
func (m *Manager) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok
}

// Stats reports the current size/shape of a collection.
func (m *Manager) Stats(name string) (Stats, error) {
	e, err := m.lookup(name)
	if err != nil {
		return Stats{}, err
	}
	count := e.index.Len()
	return Stats{
		Name:           name,
		Count:          count,
		MemoryBytes:    estimateMemoryBytes(count, e.cfg.Dimension),
		Dimension:      e.cfg.Dimension,
		Metric:         e.cfg.Metric,
		M:              e.cfg.M,
		EfConstruction: e.cfg.EfConstruction,
		EfSearch:       e.cfg.EfSearch,
		MaxElements:    e.cfg.MaxElements,
	}, nil
}

func estimateMemoryBytes(count, dimension int) int64 {
	const bytesPerFloat32 = 4
	const graphOverheadPerVector = 256 // rough per-node adjacency/map overhead
	return int64(count) * (int64(dimension)*bytesPerFloat32 + graphOverheadPerVector)
}

func (m *Manager) lookup(name string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.collections[name]
	if !ok {
		return nil, apierr.NotFound("collection %q not found", name)
	}
	return e, nil
}

// Insert delegates to the named collection's index.
func (m *Manager) Insert(name string, values []float32, id string, metadata map[string]string) (string, error) {
	e, err := m.lookup(name)
	if err != nil {
		return "", err
	}
	return e.index.Insert(values, id, metadata)
}

// BatchInsert delegates to the named collection's index.
func (m *Manager) BatchInsert(name string, records []vectorindex.InsertRecord) (int, error) {
	e, err := m.lookup(name)
	if err != nil {
		return 0, err
	}
	return e.index.BatchInsert(records), nil
}

// Remove delegates to the named collection's index.
func (m *Manager) Remove(name, id string) (bool, error) {
	e, err := m.lookup(name)
	if err != nil {
		return false, err
	}
	return e.index.Remove(id), nil
}

// Get delegates to the named collection's index.
func (m *Manager) Get(name, id string) (vectorindex.VectorRecord, error) {
	e, err := m.lookup(name)
	if err != nil {
		return vectorindex.VectorRecord{}, err
	}
	rec, ok := e.index.Get(id)
	if !ok {
		return vectorindex.VectorRecord{}, apierr.NotFound("vector %q not found in collection %q", id, name)
	}
	return rec, nil
}

// Search delegates to the named collection's index.
func (m *Manager) Search(name string, query []float32, k, ef int) ([]vectorindex.SearchResult, error) {
	e, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.index.Search(query, k, ef)
}

// BatchSearch delegates to the named collection's index.
func (m *Manager) BatchSearch(ctx context.Context, name string, queries []vectorindex.BatchQuery) ([][]vectorindex.SearchResult, error) {
	e, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.index.BatchSearch(ctx, queries), nil
}

// SearchFilter performs the legacy over-fetch-then-filter behavior §6
// documents for /search_with_filter: fetch 3x the requested k, then keep
// only results whose metadata matches filter exactly on every key,
// trimming to k. This is a best-effort contract — after filtering, the
// surviving top-k is not guaranteed globally optimal.
func (m *Manager) SearchFilter(name string, query []float32, k, ef int, filter map[string]string) ([]vectorindex.SearchResult, error) {
	e, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	raw, err := e.index.Search(query, k*3, ef)
	if err != nil {
		return nil, err
	}
	out := make([]vectorindex.SearchResult, 0, k)
	for _, r := range raw {
		if matchesFilter(r.Record.Metadata, filter) {
			out = append(out, r)
			if len(out) == k {
				break
			}
		}
	}
	return out, nil
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func (m *Manager) configPath(name string) string { return filepath.Join(m.dataDir, name+".json") }
func (m *Manager) graphPath(name string) string   { return filepath.Join(m.dataDir, name+".hnsw") }
func (m *Manager) metaPath(name string) string    { return filepath.Join(m.dataDir, name+".hnsw.meta") }
