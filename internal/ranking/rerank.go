package ranking

import (
	"context"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/marketplace"
)

// RerankHook reorders the head of a ranking. It receives the top results and
// must return a permutation of their candidate ids.
type RerankHook interface {
	Rerank(ctx context.Context, job *marketplace.Job, results []marketplace.MatchResult) ([]string, error)
}

// NopHook keeps the order it is given.
type NopHook struct{}

func (NopHook) Rerank(_ context.Context, _ *marketplace.Job, results []marketplace.MatchResult) ([]string, error) {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.CandidateID
	}
	return ids, nil
}

// HookFunc adapts a function to RerankHook.
type HookFunc func(ctx context.Context, job *marketplace.Job, results []marketplace.MatchResult) ([]string, error)

func (f HookFunc) Rerank(ctx context.Context, job *marketplace.Job, results []marketplace.MatchResult) ([]string, error) {
	return f(ctx, job, results)
}

// applyPermutation reorders window by ids. ids must name every window entry
// exactly once.
func applyPermutation(window []marketplace.MatchResult, ids []string) ([]marketplace.MatchResult, error) {
	if len(ids) != len(window) {
		return nil, matcherr.New(matcherr.CodeRerankContractViolation, "rerank returned a different number of ids",
			matcherr.Field("want", len(window)),
			matcherr.Field("got", len(ids)),
		)
	}

	byID := make(map[string]int, len(window))
	for i, r := range window {
		byID[r.CandidateID] = i
	}

	out := make([]marketplace.MatchResult, 0, len(window))
	used := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idx, ok := byID[id]
		if !ok {
			return nil, matcherr.New(matcherr.CodeRerankContractViolation, "rerank introduced an unknown id",
				matcherr.FieldCandidateID(id),
			)
		}
		if _, dup := used[id]; dup {
			return nil, matcherr.New(matcherr.CodeRerankContractViolation, "rerank repeated an id",
				matcherr.FieldCandidateID(id),
			)
		}
		used[id] = struct{}{}
		out = append(out, window[idx])
	}
	return out, nil
}
