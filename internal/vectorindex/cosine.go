package vectorindex

import (
	"container/heap"
	"math"
	"sort"
)

// CosineSimilarity returns dot(a,b)/(|a|*|b|). A zero-magnitude vector has
// similarity 0 with everything. Vectors of different length compare as 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	return cosineFromParts(dot, na, nb)
}

// cosineFromParts divides by sqrt(na*nb) so that identical vectors yield
// exactly 1.
func cosineFromParts(dot, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / math.Sqrt(na*nb)
	switch {
	case math.IsNaN(s):
		return 0
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

func squaredNorm(v []float32) float64 {
	var s float64
	for _, x := range v {
		f := float64(x)
		s += f * f
	}
	return s
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// ranksBefore is the total order of query results.
func ranksBefore(a, b Hit) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return a.ID < b.ID
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool { return ranksBefore(hits[i], hits[j]) })
}

// topK keeps the k best hits seen so far. The root is the worst kept hit.
type topK struct {
	k    int
	hits []Hit
}

// newTopK keeps the best k hits. Capacity is bounded by size, the number of
// vectors that can be offered.
func newTopK(k, size int) *topK {
	return &topK{k: k, hits: make([]Hit, 0, max(0, min(k, size)))}
}

func (t *topK) Len() int           { return len(t.hits) }
func (t *topK) Less(i, j int) bool { return ranksBefore(t.hits[j], t.hits[i]) }
func (t *topK) Swap(i, j int)      { t.hits[i], t.hits[j] = t.hits[j], t.hits[i] }
func (t *topK) Push(x any)         { t.hits = append(t.hits, x.(Hit)) }
func (t *topK) Pop() any {
	old := t.hits
	n := len(old)
	x := old[n-1]
	t.hits = old[:n-1]
	return x
}

func (t *topK) offer(h Hit) {
	if len(t.hits) < t.k {
		heap.Push(t, h)
		return
	}
	if ranksBefore(h, t.hits[0]) {
		t.hits[0] = h
		heap.Fix(t, 0)
	}
}

// sorted drains the heap into best-first order.
func (t *topK) sorted() []Hit {
	out := make([]Hit, len(t.hits))
	copy(out, t.hits)
	sortHits(out)
	return out
}
