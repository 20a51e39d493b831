package vectorindex

import (
	"container/heap"
	"math"
	"math/rand"
)

// node is one layer's view of a key: which other keys in the same layer it
// is connected to. Every key present in layer L is also present in every
// layer below L, the essential HNSW invariant.
type node struct {
	key       uint64
	neighbors map[uint64]struct{}
}

type layer struct {
	nodes map[uint64]*node
}

func newLayer() *layer {
	return &layer{nodes: make(map[uint64]*node)}
}

// graph is the layered adjacency structure for one collection. It never
// forgets a key once inserted (even after the owning VectorRecord is
// tombstoned by Index.Remove) because neighbors still need that node's
// coordinates to route searches through it.
type graph struct {
	layers     []*layer
	entryPoint uint64
	hasEntry   bool
	topLevel   int

	vectors map[uint64][]float32

	m        int
	efConstr int
	ml       float64
	rng      *rand.Rand
	distFn   func(a, b []float32) float32
}

func newGraph(m, efConstruction int, distFn func(a, b []float32) float32, rng *rand.Rand) *graph {
	return &graph{
		layers:   nil,
		vectors:  make(map[uint64][]float32),
		m:        m,
		efConstr: efConstruction,
		ml:       1 / math.Log(float64(m)),
		rng:      rng,
		distFn:   distFn,
	}
}

// randomLevel draws floor(-ln(U(0,1]) * 1/ln(M)), the standard HNSW level
// assignment: layer 0 holds every vector, higher layers are exponentially
// sparser.
func (g *graph) randomLevel() int {
	u := g.rng.Float64()
	for u == 0 {
		u = g.rng.Float64()
	}
	level := int(math.Floor(-math.Log(u) * g.ml))
	return level
}

func (g *graph) ensureLayers(upTo int) {
	for len(g.layers) <= upTo {
		g.layers = append(g.layers, newLayer())
	}
}

// insert adds key/vec to the graph, connecting it per the HNSW construction
// algorithm: greedy descent to find an entry point on each upper layer,
// then a beam search of width efConstruction on every layer from the
// node's level down to 0, connecting to the M closest survivors with
// neighbor pruning (2M allowed on layer 0).
func (g *graph) insert(key uint64, vec []float32) {
	g.vectors[key] = vec
	level := g.randomLevel()
	g.ensureLayers(level)

	if !g.hasEntry {
		for l := 0; l <= level; l++ {
			g.layers[l].nodes[key] = &node{key: key, neighbors: make(map[uint64]struct{})}
		}
		g.entryPoint = key
		g.hasEntry = true
		g.topLevel = level
		return
	}

	entry := g.entryPoint

	for l := len(g.layers) - 1; l > level; l-- {
		entry = g.greedyDescend(l, entry, vec)
	}

	for l := min(level, len(g.layers)-1); l >= 0; l-- {
		g.layers[l].nodes[key] = &node{key: key, neighbors: make(map[uint64]struct{})}

		candidates := g.searchLayer(l, []uint64{entry}, vec, g.efConstr)

		maxNeighbors := g.m
		if l == 0 {
			maxNeighbors = g.m * 2
		}
		if len(candidates) > maxNeighbors {
			candidates = candidates[:maxNeighbors]
		}

		for _, c := range candidates {
			g.connect(l, key, c.key, maxNeighbors)
			g.connect(l, c.key, key, maxNeighbors)
		}

		if len(candidates) > 0 {
			entry = candidates[0].key
		}
	}

	if level > g.topLevel {
		g.topLevel = level
		g.entryPoint = key
	}
}

// connect adds a directed edge from -> to, pruning from's farthest
// neighbor (by distance to from's own vector) if that pushes it over m.
// The evicted neighbor's back-link is dropped too, so the graph never
// carries a dangling one-directional edge after a prune.
func (g *graph) connect(layerIdx int, from, to uint64, m int) {
	n, ok := g.layers[layerIdx].nodes[from]
	if !ok || from == to {
		return
	}
	n.neighbors[to] = struct{}{}
	if len(n.neighbors) <= m {
		return
	}

	var (
		worstKey  uint64
		worstDist float32 = -1
		found     bool
	)
	fromVec := g.vectors[from]
	for nb := range n.neighbors {
		d := g.distFn(g.vectors[nb], fromVec)
		if !found || d > worstDist {
			worstDist = d
			worstKey = nb
			found = true
		}
	}
	if found {
		delete(n.neighbors, worstKey)
		if worst, ok := g.layers[layerIdx].nodes[worstKey]; ok {
			delete(worst.neighbors, from)
		}
	}
}

// greedyDescend walks from entry to the locally closest node to target
// within layerIdx, following neighbor edges until no neighbor improves on
// the current best. Used to find a good entry point for the next layer
// down.
func (g *graph) greedyDescend(layerIdx int, entry uint64, target []float32) uint64 {
	current := entry
	currentDist := g.distFn(g.vectors[current], target)

	for {
		improved := false
		n, ok := g.layers[layerIdx].nodes[current]
		if !ok {
			return current
		}
		for nb := range n.neighbors {
			d := g.distFn(g.vectors[nb], target)
			if d < currentDist {
				current = nb
				currentDist = d
				improved = true
			}
		}
		if !improved {
			return current
		}
	}
}

type candidate struct {
	key  uint64
	dist float32
}

// searchLayer runs the beam-search phase of HNSW: starting from entryKeys,
// expand through neighbors maintaining a bounded result set of the ef
// closest nodes seen, until expansion stops improving on the current
// worst kept result. Returns candidates sorted ascending by distance.
func (g *graph) searchLayer(layerIdx int, entryKeys []uint64, target []float32, ef int) []candidate {
	ly := g.layers[layerIdx]
	visited := make(map[uint64]bool, ef*2)

	candidates := &minCandHeap{}
	results := &maxCandHeap{}

	for _, e := range entryKeys {
		if visited[e] {
			continue
		}
		if _, ok := ly.nodes[e]; !ok {
			continue
		}
		visited[e] = true
		d := g.distFn(g.vectors[e], target)
		c := candidate{key: e, dist: d}
		heap.Push(candidates, c)
		heap.Push(results, c)
	}

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(candidate)
		if results.Len() >= ef && c.dist > (*results)[0].dist {
			break
		}

		n := ly.nodes[c.key]
		if n == nil {
			continue
		}
		for nb := range n.neighbors {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			d := g.distFn(g.vectors[nb], target)

			if results.Len() < ef {
				nc := candidate{key: nb, dist: d}
				heap.Push(candidates, nc)
				heap.Push(results, nc)
			} else if d < (*results)[0].dist {
				nc := candidate{key: nb, dist: d}
				heap.Push(candidates, nc)
				heap.Push(results, nc)
				heap.Pop(results)
			}
		}
	}

	out := make([]candidate, len(*results))
	copy(out, *results)
	sortCandidatesAsc(out)
	return out
}

// search performs the full HNSW query path: greedy descent through every
// upper layer to find a good entry point, then a beam search of width ef
// on layer 0.
func (g *graph) search(target []float32, k, ef int) []candidate {
	if !g.hasEntry {
		return nil
	}
	if ef < k {
		ef = k
	}

	entry := g.entryPoint
	for l := len(g.layers) - 1; l > 0; l-- {
		entry = g.greedyDescend(l, entry, target)
	}

	results := g.searchLayer(0, []uint64{entry}, target, ef)
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func sortCandidatesAsc(c []candidate) {
	// Insertion sort: beam widths are small (tens to low hundreds), so
	// this beats paying for an interface-based sort.Slice comparator.
	// Ties break by ascending key, i.e. insertion order.
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && less(c[j], c[j-1]); j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}

func less(a, b candidate) bool {
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return a.key < b.key
}

// minCandHeap pops the smallest distance first; used to drive beam
// expansion outward from the closest unexplored candidate.
type minCandHeap []candidate

func (h minCandHeap) Len() int            { return len(h) }
func (h minCandHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minCandHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minCandHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *minCandHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// maxCandHeap pops the largest distance first, so root is always the
// current worst kept result — the one to evict when a closer candidate
// shows up.
type maxCandHeap []candidate

func (h maxCandHeap) Len() int            { return len(h) }
func (h maxCandHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxCandHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxCandHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *maxCandHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
