package marketplace

import (
	"slices"
	"testing"
)

func TestNormalizeSkills(t *testing.T) {
	t.Parallel()

	got := NormalizeSkills([]string{" React", "node", "REACT", "", "  ", "Go"})
	want := []string{"go", "node", "react"}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseAvailability(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		expect  Availability
		wantErr bool
	}{
		{input: "available", expect: Available},
		{input: " Open-To-Offers ", expect: OpenToOffers},
		{input: "open_to_offers", expect: OpenToOffers},
		{input: "unavailable", expect: Unavailable},
		{input: "", expect: Unavailable},
		{input: "on vacation", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAvailability(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestJobWeights(t *testing.T) {
	job := &Job{RequiredSkills: []SkillRequirement{
		{Name: "React", Weight: 2},
		{Name: "react", Weight: 1},
		{Name: "Node"},
		{Name: "  "},
		{Name: "go", Weight: -3},
	}}

	weights := job.Weights()
	if len(weights) != 3 {
		t.Fatalf("expected 3 skills, got %d (%v)", len(weights), weights)
	}
	if weights["react"] != 2 {
		t.Fatalf("expected larger duplicate weight to win, got %v", weights["react"])
	}
	if weights["node"] != 1 || weights["go"] != 1 {
		t.Fatalf("expected default weight 1 for unset and negative weights, got %v", weights)
	}
	if weights.Total() != 4 {
		t.Fatalf("expected total 4, got %v", weights.Total())
	}
}

func TestCandidateCloneIsDeep(t *testing.T) {
	original := &Candidate{
		ID:         "a",
		Attributes: Attributes{Skills: []string{"go"}},
		Embedding:  []float32{1, 2},
	}

	clone := original.Clone()
	clone.Attributes.Skills[0] = "rust"
	clone.Embedding[0] = 9

	if original.Attributes.Skills[0] != "go" || original.Embedding[0] != 1 {
		t.Fatalf("clone shares memory with original: %+v", original)
	}
}

func TestStateHelpers(t *testing.T) {
	if !Available.Bookable() || !OpenToOffers.Bookable() || Unavailable.Bookable() {
		t.Fatalf("unexpected bookable states")
	}
	if !Hired.Valid() || Decision("maybe").Valid() {
		t.Fatalf("unexpected decision validity")
	}
}
