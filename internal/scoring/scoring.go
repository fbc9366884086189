// Package scoring turns a candidate, a job and a semantic similarity into a
// composite match score.
package scoring

import (
	"math"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/marketplace"
)

// weightTolerance bounds how far the weight sum may drift from 1.
const weightTolerance = 1e-9

// Weights are the coefficients of the composite score.
type Weights struct {
	Skill      float64 `mapstructure:"skill"`
	Experience float64 `mapstructure:"experience"`
	Semantic   float64 `mapstructure:"semantic"`
}

// DefaultWeights favours skill overlap, then experience, then semantics.
var DefaultWeights = Weights{Skill: 0.5, Experience: 0.3, Semantic: 0.2}

// Validate checks that every weight is non-negative and that they sum to 1.
func (w Weights) Validate() error {
	named := []struct {
		name  string
		value float64
	}{{"skill", w.Skill}, {"experience", w.Experience}, {"semantic", w.Semantic}}

	for _, n := range named {
		if n.value < 0 || math.IsNaN(n.value) || math.IsInf(n.value, 0) {
			return matcherr.New(matcherr.CodeConfigInvalid, "scoring weight must be a non-negative number",
				matcherr.Field("weight", n.name),
				matcherr.Field("value", n.value),
			)
		}
	}

	sum := w.Skill + w.Experience + w.Semantic
	if math.Abs(sum-1) > weightTolerance {
		return matcherr.New(matcherr.CodeConfigInvalid, "scoring weights must sum to 1",
			matcherr.Field("sum", sum),
		)
	}
	return nil
}

// Scorer computes composite scores with validated weights.
type Scorer struct {
	weights Weights
}

// New validates weights and returns a scorer.
func New(weights Weights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights}, nil
}

func (s *Scorer) Weights() Weights { return s.weights }

// Score evaluates one candidate. semantic is the raw cosine similarity in
// [-1, 1]. The returned result has no rank.
func (s *Scorer) Score(c *marketplace.Candidate, job *marketplace.Job, semantic float64) marketplace.MatchResult {
	return s.ScoreWeights(c, job.Weights(), job.MinExperience, semantic)
}

// ScoreWeights is Score with a prebuilt requirement set, for callers scoring
// many candidates against one job.
func (s *Scorer) ScoreWeights(c *marketplace.Candidate, req marketplace.SkillWeights, minExperience, semantic float64) marketplace.MatchResult {
	comp := marketplace.Components{
		SkillMatch:         SkillMatch(c, req),
		ExperienceMatch:    ExperienceMatch(c.Attributes.ExperienceYears, minExperience),
		SemanticSimilarity: Rescale(semantic),
	}

	score := s.weights.Skill*comp.SkillMatch +
		s.weights.Experience*comp.ExperienceMatch +
		s.weights.Semantic*comp.SemanticSimilarity

	return marketplace.MatchResult{
		CandidateID: c.ID,
		Score:       clamp01(score),
		Components:  comp,
	}
}

// SkillMatch is the share of requested weight the candidate covers. A job
// without requirements scores 0.
func SkillMatch(c *marketplace.Candidate, req marketplace.SkillWeights) float64 {
	total := req.Total()
	if total <= 0 {
		return 0
	}

	var held float64
	for _, skill := range req.Names() {
		if c.HasSkill(skill) {
			held += req[skill]
		}
	}
	return clamp01(held / total)
}

// ExperienceMatch is exp/max(min, 1) clamped to [0, 1].
func ExperienceMatch(experience, minExperience float64) float64 {
	return clamp01(experience / math.Max(minExperience, 1))
}

// Rescale maps a cosine similarity from [-1, 1] to [0, 1].
func Rescale(cosine float64) float64 {
	return clamp01((cosine + 1) / 2)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
