// Package profiles stores candidate records: the structured attributes the
// filter reads plus the embedding and version needed to rebuild the vector
// index.
package profiles

import (
	"context"
	"iter"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/marketplace"
)

// Predicate selects candidates during List. A nil Predicate selects all.
type Predicate func(c *marketplace.Candidate) bool

// Store is the attribute store consumed by the ranking engine. Returned
// candidates are copies owned by the caller.
type Store interface {
	// Get returns a storage.record.not_found error for unknown ids.
	Get(ctx context.Context, id string) (*marketplace.Candidate, error)

	// List yields matching candidates ordered by id.
	List(ctx context.Context, pred Predicate) iter.Seq2[*marketplace.Candidate, error]

	// Put inserts or replaces the record for c.ID.
	Put(ctx context.Context, c *marketplace.Candidate) error

	// Delete removes the record. Deleting an absent id is a no-op.
	Delete(ctx context.Context, id string) error
}

// SkillIndex is implemented by stores that can narrow a listing to
// candidates holding at least one of the given normalized skills.
type SkillIndex interface {
	ListBySkills(ctx context.Context, skills []string) iter.Seq2[*marketplace.Candidate, error]
}

func notFound(id string) error {
	return matcherr.New(matcherr.CodeStorageNotFound, "candidate not found",
		matcherr.FieldCandidateID(id),
	)
}

func validateID(id string) error {
	if id == "" {
		return matcherr.New(matcherr.CodeMatchInvalidInput, "candidate id is required")
	}
	return nil
}
