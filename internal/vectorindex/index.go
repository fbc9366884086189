// Package vectorindex stores candidate embeddings and answers k-nearest
// neighbour queries by cosine similarity.
//
// Two implementations share the [Index] contract: [BruteForce], an exact
// sharded scan, and [HNSW], an approximate navigable-graph index that still
// honours the id filter exactly. Both are safe for concurrent use.
package vectorindex

import (
	matcherr "github.com/spigell/gig-matcher/internal/errors"
)

// Filter restricts a query to admissible ids. A nil Filter admits everything.
type Filter func(id string) bool

// Hit is a single query result.
type Hit struct {
	ID string
	// Similarity is the raw cosine similarity in [-1, 1].
	Similarity float64
	// Version is the tag stored with the vector at Upsert time.
	Version uint64
}

// Entry is a copy of a stored vector.
type Entry struct {
	ID      string
	Vector  []float32
	Version uint64
}

// Index is the contract for embedding storage and kNN search.
type Index interface {
	// Dim returns the fixed vector dimension.
	Dim() int

	// Upsert inserts or replaces the vector for id. Queries started after
	// Upsert returns observe the new vector.
	Upsert(id string, vector []float32, version uint64) error

	// Remove deletes the vector for id. Removing an absent id is a no-op.
	Remove(id string) error

	// Query returns up to k hits ordered by descending similarity, ties by
	// ascending id, restricted to ids admitted by filter.
	Query(vector []float32, k int, filter Filter) ([]Hit, error)

	// Get returns a copy of the stored entry.
	Get(id string) (Entry, bool)

	// Len returns the number of stored vectors.
	Len() int
}

func checkDim(got, want int) error {
	if got != want {
		return matcherr.New(matcherr.CodeIndexDimensionMismatch, "vector dimension mismatch",
			matcherr.Field("got", got),
			matcherr.Field("want", want),
		)
	}
	return nil
}

func checkConfiguredDim(dim int) error {
	if dim <= 0 {
		return matcherr.New(matcherr.CodeConfigInvalid, "vector dimension must be positive",
			matcherr.Field("dimension", dim),
		)
	}
	return nil
}
