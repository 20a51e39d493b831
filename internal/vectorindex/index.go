package vectorindex

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/diffsec/vectorcore/internal/apierr"
)

type payloadEntry struct {
	id       string
	metadata map[string]string
}

// Index holds one collection's vectors: the HNSW graph, the monotonically
// increasing internal key counter, and the two lookup maps (key->payload,
// id->key) that own everything visible to callers.
type Index struct {
	mu sync.RWMutex

	cfg Config
	g   *graph

	nextKey uint64
	payload map[uint64]*payloadEntry
	idToKey map[string]uint64
}

// New creates an empty index for the given collection configuration.
func New(cfg Config) *Index {
	cfg = cfg.withDefaults()
	return &Index{
		cfg:     cfg,
		g:       newGraph(cfg.M, cfg.EfConstruction, cfg.Metric.distanceFunc(), rand.New(rand.NewSource(time.Now().UnixNano()))),
		payload: make(map[uint64]*payloadEntry),
		idToKey: make(map[string]uint64),
	}
}

// Config returns a copy of the collection's configuration.
func (idx *Index) Config() Config {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.cfg
}

// Len returns the number of live (non-tombstoned) vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.payload)
}

// Insert adds values under id (or a generated id if empty) with optional
// metadata, returning the id used.
func (idx *Index) Insert(values []float32, id string, metadata map[string]string) (string, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.insertLocked(values, id, metadata)
}

func (idx *Index) insertLocked(values []float32, id string, metadata map[string]string) (string, error) {
	if len(values) != idx.cfg.Dimension {
		return "", apierr.BadRequest("dimension mismatch: got %d, expected %d", len(values), idx.cfg.Dimension)
	}
	if id != "" {
		if _, exists := idx.idToKey[id]; exists {
			return "", apierr.Conflict("duplicate id %q", id)
		}
	}

	key := idx.nextKey
	idx.nextKey++

	if id == "" {
		id = generateID(key)
	}

	vec := make([]float32, len(values))
	copy(vec, values)

	idx.g.insert(key, vec)

	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	idx.payload[key] = &payloadEntry{id: id, metadata: md}
	idx.idToKey[id] = key

	return id, nil
}

func generateID(key uint64) string {
	ts := time.Now().UnixMicro()
	return fmt.Sprintf("%s-%d", hex.EncodeToString(uint64ToBytes(uint64(ts))), key)
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	// Trim leading zero bytes so ids stay short for small timestamps in tests.
	i := 0
	for i < 7 && b[i] == 0 {
		i++
	}
	return b[i:]
}

// InsertRecord is a convenience wrapper for BatchInsert's per-record calls.
type InsertRecord struct {
	ID       string
	Values   []float32
	Metadata map[string]string
}

// BatchInsert applies Insert to each record. Per-record failures are
// swallowed and only counted; the returned count is the number actually
// added.
func (idx *Index) BatchInsert(records []InsertRecord) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	inserted := 0
	for _, r := range records {
		if _, err := idx.insertLocked(r.Values, r.ID, r.Metadata); err == nil {
			inserted++
		}
	}
	return inserted
}

// Remove tombstones id if present, returning whether it existed.
func (idx *Index) Remove(id string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key, ok := idx.idToKey[id]
	if !ok {
		return false
	}
	delete(idx.idToKey, id)
	delete(idx.payload, key)
	return true
}

// Get returns a copy of the live record for id.
func (idx *Index) Get(id string) (VectorRecord, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	key, ok := idx.idToKey[id]
	if !ok {
		return VectorRecord{}, false
	}
	return idx.recordLocked(key), true
}

func (idx *Index) recordLocked(key uint64) VectorRecord {
	p := idx.payload[key]
	values := idx.g.vectors[key]
	out := VectorRecord{ID: p.id, Values: make([]float32, len(values)), Metadata: make(map[string]string, len(p.metadata))}
	copy(out.Values, values)
	for k, v := range p.metadata {
		out.Metadata[k] = v
	}
	return out
}

// Search returns up to k nearest neighbors to query, ascending by
// distance. If ef is zero the collection's EfSearch default is used;
// otherwise max(k, ef) is used as the beam width.
func (idx *Index) Search(query []float32, k int, ef int) ([]SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.searchLocked(query, k, ef)
}

func (idx *Index) searchLocked(query []float32, k int, ef int) ([]SearchResult, error) {
	if len(query) != idx.cfg.Dimension {
		return nil, apierr.BadRequest("dimension mismatch: got %d, expected %d", len(query), idx.cfg.Dimension)
	}
	if len(idx.payload) == 0 || k <= 0 {
		return []SearchResult{}, nil
	}

	width := ef
	if width == 0 {
		width = idx.cfg.EfSearch
	}
	if width < k {
		width = k
	}

	// Over-fetch modestly so tombstoned candidates filtered out below
	// don't starve the result list below k when the graph still holds
	// dead nodes near the query.
	fetchK := k + idx.tombstoneSlack()
	if width < fetchK {
		width = fetchK
	}
	raw := idx.g.search(query, fetchK, width)

	out := make([]SearchResult, 0, k)
	for _, c := range raw {
		if _, live := idx.payload[c.key]; !live {
			continue
		}
		out = append(out, SearchResult{
			ID:       idx.payload[c.key].id,
			Distance: c.dist,
			Record:   idx.recordLocked(c.key),
		})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// tombstoneSlack over-fetches proportionally so a graph carrying many
// tombstones still surfaces k live results without a second pass.
func (idx *Index) tombstoneSlack() int {
	live := len(idx.payload)
	total := len(idx.g.vectors)
	if total == 0 || live == total {
		return 0
	}
	dead := total - live
	if dead > live {
		dead = live
	}
	return dead
}

// BatchQuery is one query in a BatchSearch call.
type BatchQuery struct {
	Values []float32
	K      int
	Ef     int
}

// BatchSearch runs every query under a single shared read-lock acquisition
// held for the whole call, so none of the sub-queries can observe a
// partially applied write. Batches of 100 queries or fewer run sequentially
// on the caller's goroutine; larger batches fan out across a bounded pool
// of workers.
func (idx *Index) BatchSearch(ctx context.Context, queries []BatchQuery) [][]SearchResult {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := make([][]SearchResult, len(queries))

	if len(queries) <= 100 {
		for i, q := range queries {
			r, err := idx.searchLocked(q.Values, q.K, q.Ef)
			if err != nil {
				r = nil
			}
			results[i] = r
		}
		return results
	}

	workers := len(queries) / 100
	if hw := runtime.GOMAXPROCS(0); workers > hw {
		workers = hw
	}
	if workers > 32 {
		workers = 32
	}
	if workers < 1 {
		workers = 1
	}

	chunk := (len(queries) + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= len(queries) {
			break
		}
		end := start + chunk
		if end > len(queries) {
			end = len(queries)
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				r, err := idx.searchLocked(queries[i].Values, queries[i].K, queries[i].Ef)
				if err != nil {
					r = nil
				}
				results[i] = r
			}
		}(start, end)
	}
	wg.Wait()

	return results
}
