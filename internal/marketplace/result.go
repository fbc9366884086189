package marketplace

import (
	"time"
)

// Components are the normalized signals behind a composite score.
type Components struct {
	SkillMatch         float64 `json:"skill_match"`
	ExperienceMatch    float64 `json:"experience_match"`
	SemanticSimilarity float64 `json:"semantic_similarity"`
}

// MatchResult is one ranked candidate for a job.
type MatchResult struct {
	CandidateID string     `json:"candidate_id"`
	Score       float64    `json:"score"`
	Components  Components `json:"components"`
	Rank        int        `json:"rank"`
}

// Decision is what the hiring side did with a match.
type Decision string

const (
	Hired    Decision = "hired"
	Rejected Decision = "rejected"
	Pending  Decision = "pending"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	switch d {
	case Hired, Rejected, Pending:
		return true
	default:
		return false
	}
}

// Outcome records a decision about a match. Outcomes are append-only.
type Outcome struct {
	ID          string    `json:"id" msgpack:"id"`
	JobID       string    `json:"job_id" msgpack:"job_id"`
	CandidateID string    `json:"candidate_id" msgpack:"candidate_id"`
	Decision    Decision  `json:"decision" msgpack:"decision"`
	Timestamp   time.Time `json:"timestamp" msgpack:"timestamp"`
}
