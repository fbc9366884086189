package filtering

import (
	"github.com/spigell/gig-matcher/internal/marketplace"
)

const (
	ExperienceStep   = "experience"
	BudgetStep       = "budget"
	SkillsStep       = "skills"
	AvailabilityStep = "availability"
)

type experienceFilter struct{}

// NewExperience creates a predicate that drops candidates below the job's
// minimum experience.
func NewExperience() Predicate {
	return &experienceFilter{}
}

func (f *experienceFilter) Name() string { return ExperienceStep }

func (f *experienceFilter) Keep(c *marketplace.Candidate, q *Query) bool {
	return c.Attributes.ExperienceYears >= q.Job.MinExperience
}

type budgetFilter struct{}

// NewBudget creates a predicate that drops candidates whose rate exceeds the
// job budget. Jobs without a budget keep everyone.
func NewBudget() Predicate {
	return &budgetFilter{}
}

func (f *budgetFilter) Name() string { return BudgetStep }

func (f *budgetFilter) Keep(c *marketplace.Candidate, q *Query) bool {
	if !q.Job.HasBudget() {
		return true
	}
	return c.Attributes.Rate <= q.Job.MaxBudget
}

type skillsFilter struct{}

// NewSkills creates a predicate that requires at least one shared skill when
// the job names any.
func NewSkills() Predicate {
	return &skillsFilter{}
}

func (f *skillsFilter) Name() string { return SkillsStep }

func (f *skillsFilter) Keep(c *marketplace.Candidate, q *Query) bool {
	if len(q.Weights) == 0 {
		return true
	}
	for _, skill := range c.Attributes.Skills {
		if _, ok := q.Weights[skill]; ok {
			return true
		}
	}
	return false
}

type availabilityFilter struct{}

// NewAvailability creates a predicate that keeps available and open-to-offers
// candidates.
func NewAvailability() Predicate {
	return &availabilityFilter{}
}

func (f *availabilityFilter) Name() string { return AvailabilityStep }

func (f *availabilityFilter) Keep(c *marketplace.Candidate, _ *Query) bool {
	return c.Attributes.Availability.Bookable()
}
