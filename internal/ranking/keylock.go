package ranking

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// keyLock serializes writers per candidate id over a fixed set of mutexes.
// Distinct ids may share a stripe.
type keyLock struct {
	stripes [lockStripes]sync.Mutex
}

func (l *keyLock) lock(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}
