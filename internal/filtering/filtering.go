package filtering

import (
	"context"

	"go.uber.org/zap"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/marketplace"
)

// deadlineEvery is how many candidates are evaluated between context checks.
const deadlineEvery = 256

// Predicate is a single hard constraint applied to candidates.
type Predicate interface {
	Name() string
	Keep(c *marketplace.Candidate, q *Query) bool
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Report is the per-step outcome of a filter run.
type Report struct {
	Name string
	Step
}

// Query is the per-job view the predicates evaluate against. Build it once
// per ranking request.
type Query struct {
	Job     *marketplace.Job
	Weights marketplace.SkillWeights
}

// NewQuery prepares the skill set of job for repeated lookups.
func NewQuery(job *marketplace.Job) *Query {
	return &Query{Job: job, Weights: job.Weights()}
}

// AttributeFilter is an ordered list of predicates. A candidate passes when
// every predicate keeps it. Predicates cannot be switched off.
type AttributeFilter struct {
	steps []Predicate
}

// New returns a filter over the supplied steps.
func New(steps ...Predicate) *AttributeFilter {
	return &AttributeFilter{steps: steps}
}

// Default returns the four hard constraints of a match: experience, budget,
// skill overlap and availability.
func Default() *AttributeFilter {
	return New(NewExperience(), NewBudget(), NewSkills(), NewAvailability())
}

// Matches reports whether the candidate satisfies every constraint of job.
func (f *AttributeFilter) Matches(c *marketplace.Candidate, job *marketplace.Job) bool {
	return f.MatchesQuery(c, NewQuery(job))
}

// MatchesQuery is Matches against a prepared query.
func (f *AttributeFilter) MatchesQuery(c *marketplace.Candidate, q *Query) bool {
	for _, step := range f.steps {
		if !step.Keep(c, q) {
			return false
		}
	}
	return true
}

// Run applies the steps in order to candidates and returns the survivors
// with per-step statistics. The context is checked periodically; once it is
// done Run stops and returns a timeout error.
func (f *AttributeFilter) Run(ctx context.Context, logger *zap.Logger, q *Query, candidates []*marketplace.Candidate) ([]*marketplace.Candidate, []Report, error) {
	left := candidates
	reports := make([]Report, 0, len(f.steps))

	for _, step := range f.steps {
		initial := len(left)
		kept := make([]*marketplace.Candidate, 0, initial)
		for i, c := range left {
			if i%deadlineEvery == 0 {
				if err := checkContext(ctx); err != nil {
					return nil, reports, err
				}
			}
			if step.Keep(c, q) {
				kept = append(kept, c)
			}
		}
		left = kept

		info := Step{Initial: initial, Dropped: initial - len(left), Left: len(left)}
		reports = append(reports, Report{Name: step.Name(), Step: info})

		if logger != nil {
			logger.Debug("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}
	}

	return left, reports, nil
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return matcherr.Wrap(err, matcherr.CodeMatchTimeout, "filter phase interrupted",
			matcherr.FieldPhase("filter"),
		)
	}
	return nil
}
