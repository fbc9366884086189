package vectorindex

import (
	"hash/fnv"
	"slices"
	"sync"
)

const defaultShards = 16

// BruteForce is an exact cosine index. Vectors are spread over shards, each
// guarded by its own RWMutex. Stored entries are immutable: an update swaps
// the pointer under the shard lock, so a reader sees either the old or the
// new vector, never a mix.
type BruteForce struct {
	dim    int
	shards []*shard
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	id      string
	vec     []float32
	norm2   float64
	version uint64
}

// Compile-time interface check.
var _ Index = (*BruteForce)(nil)

// NewBruteForce creates an exact index for vectors of length dim. shards <= 0
// selects the default shard count.
func NewBruteForce(dim, shards int) (*BruteForce, error) {
	if err := checkConfiguredDim(dim); err != nil {
		return nil, err
	}
	if shards <= 0 {
		shards = defaultShards
	}
	b := &BruteForce{dim: dim, shards: make([]*shard, shards)}
	for i := range b.shards {
		b.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return b, nil
}

func (b *BruteForce) Dim() int { return b.dim }

func (b *BruteForce) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return b.shards[h.Sum32()%uint32(len(b.shards))]
}

func (b *BruteForce) Upsert(id string, vector []float32, version uint64) error {
	if err := checkDim(len(vector), b.dim); err != nil {
		return err
	}

	e := &entry{
		id:      id,
		vec:     slices.Clone(vector),
		version: version,
	}
	e.norm2 = squaredNorm(e.vec)

	s := b.shardFor(id)
	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
	return nil
}

func (b *BruteForce) Remove(id string) error {
	s := b.shardFor(id)
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

func (b *BruteForce) Get(id string) (Entry, bool) {
	s := b.shardFor(id)
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	return Entry{ID: e.id, Vector: slices.Clone(e.vec), Version: e.version}, true
}

func (b *BruteForce) Len() int {
	n := 0
	for _, s := range b.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Query scans every shard. Each shard is snapshotted under its read lock and
// scored after the lock is released.
func (b *BruteForce) Query(vector []float32, k int, filter Filter) ([]Hit, error) {
	if err := checkDim(len(vector), b.dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	qn := squaredNorm(vector)
	best := newTopK(k, b.Len())
	var snapshot []*entry

	for _, s := range b.shards {
		snapshot = snapshot[:0]
		s.mu.RLock()
		for _, e := range s.entries {
			snapshot = append(snapshot, e)
		}
		s.mu.RUnlock()

		for _, e := range snapshot {
			if filter != nil && !filter(e.id) {
				continue
			}
			best.offer(Hit{
				ID:         e.id,
				Similarity: cosineFromParts(dot(vector, e.vec), qn, e.norm2),
				Version:    e.version,
			})
		}
	}

	return best.sorted(), nil
}
