package filtering

import (
	"context"
	"slices"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/marketplace"
)

func candidate(id string, skills []string, exp, rate float64, avail marketplace.Availability) *marketplace.Candidate {
	return &marketplace.Candidate{
		ID: id,
		Attributes: marketplace.Attributes{
			Skills:          skills,
			ExperienceYears: exp,
			Rate:            rate,
			Availability:    avail,
		}.Normalize(),
	}
}

func reactJob() *marketplace.Job {
	return &marketplace.Job{
		ID:             "job",
		RequiredSkills: []marketplace.SkillRequirement{{Name: "React", Weight: 1}},
		MinExperience:  3,
		MaxBudget:      60,
	}
}

func TestMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		candidate *marketplace.Candidate
		job       func() *marketplace.Job
		expect    bool
	}{
		{
			name:      "all constraints pass",
			candidate: candidate("a", []string{"react", "node"}, 5, 50, marketplace.Available),
			job:       reactJob,
			expect:    true,
		},
		{
			name:      "no skill overlap",
			candidate: candidate("b", []string{"python"}, 8, 40, marketplace.Available),
			job:       reactJob,
			expect:    false,
		},
		{
			name:      "skill compare is case insensitive",
			candidate: candidate("c", []string{"  REACT "}, 3, 60, marketplace.OpenToOffers),
			job:       reactJob,
			expect:    true,
		},
		{
			name:      "below minimum experience",
			candidate: candidate("d", []string{"react"}, 2.9, 10, marketplace.Available),
			job:       reactJob,
			expect:    false,
		},
		{
			name:      "over budget",
			candidate: candidate("e", []string{"react"}, 5, 60.01, marketplace.Available),
			job:       reactJob,
			expect:    false,
		},
		{
			name:      "unavailable",
			candidate: candidate("f", []string{"react"}, 5, 10, marketplace.Unavailable),
			job:       reactJob,
			expect:    false,
		},
		{
			name:      "no budget means any rate",
			candidate: candidate("g", []string{"react"}, 5, 1000, marketplace.Available),
			job: func() *marketplace.Job {
				j := reactJob()
				j.MaxBudget = 0
				return j
			},
			expect: true,
		},
		{
			name:      "no required skills passes skill step",
			candidate: candidate("h", nil, 5, 10, marketplace.Available),
			job: func() *marketplace.Job {
				j := reactJob()
				j.RequiredSkills = nil
				return j
			},
			expect: true,
		},
	}

	f := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := f.Matches(tt.candidate, tt.job()); got != tt.expect {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func TestRunReportsSteps(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	pool := []*marketplace.Candidate{
		candidate("a", []string{"react"}, 5, 50, marketplace.Available),
		candidate("b", []string{"react"}, 1, 50, marketplace.Available),
		candidate("c", []string{"react"}, 5, 90, marketplace.Available),
		candidate("d", []string{"go"}, 5, 50, marketplace.Available),
		candidate("e", []string{"react"}, 5, 50, marketplace.Unavailable),
	}

	left, reports, err := Default().Run(context.Background(), logger, NewQuery(reactJob()), pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(left) != 1 || left[0].ID != "a" {
		t.Fatalf("expected only a to survive, got %v", ids(left))
	}

	want := []Report{
		{Name: ExperienceStep, Step: Step{Initial: 5, Dropped: 1, Left: 4}},
		{Name: BudgetStep, Step: Step{Initial: 4, Dropped: 1, Left: 3}},
		{Name: SkillsStep, Step: Step{Initial: 3, Dropped: 1, Left: 2}},
		{Name: AvailabilityStep, Step: Step{Initial: 2, Dropped: 1, Left: 1}},
	}
	if len(reports) != len(want) {
		t.Fatalf("expected %d reports, got %d", len(want), len(reports))
	}
	for i := range want {
		if reports[i] != want[i] {
			t.Fatalf("report %d: expected %+v, got %+v", i, want[i], reports[i])
		}
	}

	entries := observed.FilterMessage("filter step").All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 step log entries, got %d", len(entries))
	}
	if entries[0].ContextMap()["name"] != ExperienceStep {
		t.Fatalf("unexpected first step: %v", entries[0].ContextMap())
	}
}

func TestReportNames(t *testing.T) {
	pool := []*marketplace.Candidate{candidate("a", []string{"python"}, 5, 50, marketplace.Available)}
	left, reports, err := Default().Run(context.Background(), nil, NewQuery(reactJob()), pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected the skills step to drop a, got %v", ids(left))
	}

	got := make([]string, 0, len(reports))
	for _, r := range reports {
		got = append(got, r.Name)
	}
	want := []string{ExperienceStep, BudgetStep, SkillsStep, AvailabilityStep}
	if !slices.Equal(got, want) {
		t.Fatalf("expected steps %v, got %v", want, got)
	}
	if reports[2].Dropped != 1 || reports[3].Initial != 0 {
		t.Fatalf("unexpected reports %+v", reports)
	}
}

func TestRunHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := []*marketplace.Candidate{candidate("a", []string{"react"}, 5, 50, marketplace.Available)}
	_, _, err := Default().Run(ctx, nil, NewQuery(reactJob()), pool)
	if !matcherr.IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func ids(cs []*marketplace.Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}
