package marketplace

import (
	"maps"
	"slices"
)

// SkillRequirement is a skill requested by a job with an optional priority
// weight. Non-positive weights count as 1.
type SkillRequirement struct {
	Name   string  `json:"name" mapstructure:"name"`
	Weight float64 `json:"weight,omitempty" mapstructure:"weight"`
}

// Job is an ephemeral ranking request.
type Job struct {
	ID             string             `json:"id" mapstructure:"id"`
	RequiredSkills []SkillRequirement `json:"required_skills" mapstructure:"required_skills"`
	MinExperience  float64            `json:"min_experience" mapstructure:"min_experience"`
	// MaxBudget of zero means the job does not constrain the rate.
	MaxBudget   float64   `json:"max_budget" mapstructure:"max_budget"`
	Description string    `json:"description" mapstructure:"description"`
	Embedding   []float32 `json:"embedding,omitempty" mapstructure:"embedding"`
	// TopN of zero falls back to the engine default.
	TopN int `json:"top_n" mapstructure:"top_n"`
}

// SkillWeights is a job's requirement set keyed by normalized skill name.
// Duplicate requirements keep the larger weight.
type SkillWeights map[string]float64

// Names returns the requested skills in sorted order. Sums over the set
// iterate in this order so repeated evaluations agree bit for bit.
func (w SkillWeights) Names() []string {
	return slices.Sorted(maps.Keys(w))
}

// Total is the sum of all requested weights.
func (w SkillWeights) Total() float64 {
	var total float64
	for _, name := range w.Names() {
		total += w[name]
	}
	return total
}

// Weights builds the normalized requirement set for the job.
func (j *Job) Weights() SkillWeights {
	out := make(SkillWeights, len(j.RequiredSkills))
	for _, req := range j.RequiredSkills {
		name := NormalizeSkill(req.Name)
		if name == "" {
			continue
		}
		weight := req.Weight
		if weight <= 0 {
			weight = 1
		}
		if weight > out[name] {
			out[name] = weight
		}
	}
	return out
}

// HasBudget reports whether the job caps the candidate rate.
func (j *Job) HasBudget() bool {
	return j.MaxBudget > 0
}
