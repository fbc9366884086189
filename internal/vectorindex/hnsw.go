package vectorindex

import (
	"container/heap"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"
)

// HNSWConfig configures a new [HNSW] index.
type HNSWConfig struct {
	// Dim is the vector dimension. Required.
	Dim int `mapstructure:"dimension"`

	// M is the maximum number of links per node on layers above 0 (layer 0
	// allows 2*M). Default: 16.
	M int `mapstructure:"m"`

	// EfConstruction is the candidate list size while linking new nodes.
	// Default: 200.
	EfConstruction int `mapstructure:"ef-construction"`

	// EfSearch is the candidate list size at query time. Default: 64.
	EfSearch int `mapstructure:"ef-search"`

	// Seed makes level assignment reproducible. Zero picks a random seed.
	Seed uint64 `mapstructure:"seed"`
}

func (c *HNSWConfig) setDefaults() {
	if c.M < 2 {
		c.M = 16
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 64
	}
	if c.Seed == 0 {
		c.Seed = rand.Uint64()
	}
}

func (c *HNSWConfig) maxConns(layer int) int {
	if layer == 0 {
		return c.M * 2
	}
	return c.M
}

type distItem struct {
	id   uint32
	dist float64
}

// minDistHeap pops the closest item first.
type minDistHeap []distItem

func (h minDistHeap) Len() int           { return len(h) }
func (h minDistHeap) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h minDistHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minDistHeap) Push(x any)        { *h = append(*h, x.(distItem)) }
func (h *minDistHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// maxDistHeap pops the farthest item first.
type maxDistHeap []distItem

func (h maxDistHeap) Len() int           { return len(h) }
func (h maxDistHeap) Less(i, j int) bool { return h[i].dist > h[j].dist }
func (h maxDistHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxDistHeap) Push(x any)        { *h = append(*h, x.(distItem)) }
func (h *maxDistHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type hnswNode struct {
	id      string
	vec     []float32
	norm2   float64
	version uint64
	level   int
	friends [][]uint32
}

// HNSW is a hierarchical navigable small world graph over candidate vectors.
//
// Graph search is approximate. Results always respect the query filter, and
// when the walk cannot produce k admitted hits the query falls back to an
// exact scan of the admitted nodes, so small or heavily filtered pools get
// the brute-force answer.
type HNSW struct {
	mu       sync.RWMutex
	cfg      HNSWConfig
	rng      *rand.Rand
	nodes    []*hnswNode
	idMap    map[string]uint32
	entryID  int32
	maxLevel int
	count    int
	free     []uint32
	levelMul float64
}

// Compile-time interface check.
var _ Index = (*HNSW)(nil)

// NewHNSW creates an empty graph index.
func NewHNSW(cfg HNSWConfig) (*HNSW, error) {
	if err := checkConfiguredDim(cfg.Dim); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &HNSW{
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		idMap:    make(map[string]uint32),
		entryID:  -1,
		levelMul: 1.0 / math.Log(float64(cfg.M)),
	}, nil
}

func (h *HNSW) Dim() int { return h.cfg.Dim }

func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *HNSW) Get(id string) (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	idx, ok := h.idMap[id]
	if !ok {
		return Entry{}, false
	}
	nd := h.nodes[idx]
	return Entry{ID: nd.id, Vector: slices.Clone(nd.vec), Version: nd.version}, true
}

func (h *HNSW) distance(q []float32, qn float64, nd *hnswNode) float64 {
	return 1 - cosineFromParts(dot(q, nd.vec), qn, nd.norm2)
}

// Upsert links the vector into the graph, replacing any previous node for id.
func (h *HNSW) Upsert(id string, vector []float32, version uint64) error {
	if err := checkDim(len(vector), h.cfg.Dim); err != nil {
		return err
	}

	vec := slices.Clone(vector)
	qn := squaredNorm(vec)

	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.idMap[id]; ok {
		h.removeLocked(old)
	}

	var idx uint32
	if n := len(h.free); n > 0 {
		idx = h.free[n-1]
		h.free = h.free[:n-1]
	} else {
		idx = uint32(len(h.nodes))
		h.nodes = append(h.nodes, nil)
	}

	level := h.randomLevel()
	nd := &hnswNode{
		id:      id,
		vec:     vec,
		norm2:   qn,
		version: version,
		level:   level,
		friends: make([][]uint32, level+1),
	}
	h.nodes[idx] = nd
	h.idMap[id] = idx
	h.count++

	if h.entryID < 0 {
		h.entryID = int32(idx)
		h.maxLevel = level
		return nil
	}

	cur := h.greedyDescent(vec, qn, uint32(h.entryID), h.maxLevel, level)

	ep := []uint32{cur}
	for lev := min(level, h.maxLevel); lev >= 0; lev-- {
		candidates := h.searchLayer(vec, qn, ep, h.cfg.EfConstruction, lev)

		maxC := h.cfg.maxConns(lev)
		neighbours := h.selectClosest(vec, qn, candidates, maxC, idx)
		nd.friends[lev] = neighbours

		for _, nID := range neighbours {
			nn := h.nodes[nID]
			if nn == nil || lev >= len(nn.friends) {
				continue
			}
			nn.friends[lev] = append(nn.friends[lev], idx)
			if len(nn.friends[lev]) > maxC {
				nn.friends[lev] = h.selectClosest(nn.vec, nn.norm2, nn.friends[lev], maxC, nID)
			}
		}
		ep = candidates
	}

	if level > h.maxLevel {
		h.entryID = int32(idx)
		h.maxLevel = level
	}
	return nil
}

func (h *HNSW) Remove(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if idx, ok := h.idMap[id]; ok {
		h.removeLocked(idx)
	}
	return nil
}

// Query walks the graph with an ef of at least k and keeps admitted nodes.
func (h *HNSW) Query(vector []float32, k int, filter Filter) ([]Hit, error) {
	if err := checkDim(len(vector), h.cfg.Dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	qn := squaredNorm(vector)

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return nil, nil
	}

	k = min(k, h.count)
	ef := max(h.cfg.EfSearch, k)
	cur := h.greedyDescent(vector, qn, uint32(h.entryID), h.maxLevel, 0)
	candidates := h.searchLayer(vector, qn, []uint32{cur}, ef, 0)

	best := newTopK(k, len(candidates))
	for _, cID := range candidates {
		nd := h.nodes[cID]
		if nd == nil || (filter != nil && !filter(nd.id)) {
			continue
		}
		best.offer(h.hit(vector, qn, nd))
	}

	if best.Len() < k && best.Len() < h.count {
		return h.exactLocked(vector, qn, k, filter), nil
	}
	return best.sorted(), nil
}

func (h *HNSW) hit(q []float32, qn float64, nd *hnswNode) Hit {
	return Hit{
		ID:         nd.id,
		Similarity: cosineFromParts(dot(q, nd.vec), qn, nd.norm2),
		Version:    nd.version,
	}
}

// exactLocked scores all admitted nodes. Caller holds h.mu.
func (h *HNSW) exactLocked(q []float32, qn float64, k int, filter Filter) []Hit {
	best := newTopK(k, h.count)
	for _, nd := range h.nodes {
		if nd == nil || (filter != nil && !filter(nd.id)) {
			continue
		}
		best.offer(h.hit(q, qn, nd))
	}
	return best.sorted()
}

// greedyDescent walks from the top layer down to floor+1 keeping only the
// closest node per layer.
func (h *HNSW) greedyDescent(q []float32, qn float64, start uint32, top, floor int) uint32 {
	cur := start
	curDist := h.distance(q, qn, h.nodes[cur])

	for lev := top; lev > floor; lev-- {
		changed := true
		for changed {
			changed = false
			nd := h.nodes[cur]
			if nd == nil || lev >= len(nd.friends) {
				break
			}
			for _, fID := range nd.friends[lev] {
				fn := h.nodes[fID]
				if fn == nil {
					continue
				}
				if d := h.distance(q, qn, fn); d < curDist {
					cur, curDist = fID, d
					changed = true
				}
			}
		}
	}
	return cur
}

func (h *HNSW) randomLevel() int {
	r := max(h.rng.Float64(), math.SmallestNonzeroFloat64)
	return min(int(-math.Log(r)*h.levelMul), 31)
}

// searchLayer is a beam search on one layer returning up to ef node ids.
func (h *HNSW) searchLayer(q []float32, qn float64, entryPoints []uint32, ef, layer int) []uint32 {
	visited := make(map[uint32]struct{}, ef*2)

	var candidates minDistHeap
	var results maxDistHeap

	for _, ep := range entryPoints {
		nd := h.nodes[ep]
		if nd == nil {
			continue
		}
		if _, seen := visited[ep]; seen {
			continue
		}
		visited[ep] = struct{}{}
		d := h.distance(q, qn, nd)
		heap.Push(&candidates, distItem{id: ep, dist: d})
		heap.Push(&results, distItem{id: ep, dist: d})
		if results.Len() > ef {
			heap.Pop(&results)
		}
	}

	for candidates.Len() > 0 {
		closest := heap.Pop(&candidates).(distItem)
		if results.Len() >= ef && closest.dist > results[0].dist {
			break
		}

		nd := h.nodes[closest.id]
		if nd == nil || layer >= len(nd.friends) {
			continue
		}

		for _, fID := range nd.friends[layer] {
			if _, seen := visited[fID]; seen {
				continue
			}
			visited[fID] = struct{}{}

			fn := h.nodes[fID]
			if fn == nil {
				continue
			}

			d := h.distance(q, qn, fn)
			if results.Len() < ef || d < results[0].dist {
				heap.Push(&candidates, distItem{id: fID, dist: d})
				heap.Push(&results, distItem{id: fID, dist: d})
				if results.Len() > ef {
					heap.Pop(&results)
				}
			}
		}
	}

	out := make([]uint32, results.Len())
	for i := range out {
		out[i] = results[i].id
	}
	return out
}

// selectClosest keeps the maxN candidates closest to the query, skipping self.
func (h *HNSW) selectClosest(q []float32, qn float64, candidates []uint32, maxN int, self uint32) []uint32 {
	items := make([]distItem, 0, len(candidates))
	for _, cID := range candidates {
		if cID == self || h.nodes[cID] == nil {
			continue
		}
		items = append(items, distItem{id: cID, dist: h.distance(q, qn, h.nodes[cID])})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].dist < items[j].dist })
	if len(items) > maxN {
		items = items[:maxN]
	}

	out := make([]uint32, len(items))
	for i := range items {
		out[i] = items[i].id
	}
	return out
}

// removeLocked unlinks a node. Caller holds h.mu for writing.
func (h *HNSW) removeLocked(idx uint32) {
	nd := h.nodes[idx]
	if nd == nil {
		return
	}

	// Links are directed after pruning, so inbound edges can come from nodes
	// that nd does not list. Slots are reused, which makes a stale edge point
	// at an unrelated node.
	drop := func(v uint32) bool { return v == idx }
	for _, fn := range h.nodes {
		if fn == nil || fn == nd {
			continue
		}
		for lev := 0; lev < len(fn.friends) && lev < len(nd.friends); lev++ {
			fn.friends[lev] = slices.DeleteFunc(fn.friends[lev], drop)
		}
	}

	delete(h.idMap, nd.id)
	h.nodes[idx] = nil
	h.free = append(h.free, idx)
	h.count--

	if h.entryID == int32(idx) {
		h.electEntry()
	}
}

// electEntry picks the highest-level remaining node as the entry point.
func (h *HNSW) electEntry() {
	h.entryID = -1
	h.maxLevel = 0
	best := -1
	for i, nd := range h.nodes {
		if nd != nil && nd.level > best {
			h.entryID = int32(i)
			best = nd.level
		}
	}
	if best > 0 {
		h.maxLevel = best
	}
}
