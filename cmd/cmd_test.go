package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/marketplace"
	"github.com/spigell/gig-matcher/internal/resume"
	"github.com/spigell/gig-matcher/internal/scoring"
	"github.com/spigell/gig-matcher/internal/vectorindex"
)

func testConfig() *Config {
	return &Config{
		Matching: &MatchingConfig{
			Weights: scoring.DefaultWeights,
			TopN:    5,
			Timeout: "5s",
		},
		Index:     &IndexConfig{Kind: "bruteforce"},
		Storage:   &StorageConfig{InMemory: true},
		Embedding: &EmbeddingConfig{Provider: "hash", Dimension: 32},
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDecodeJob(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "job.yaml", `
id: job-7
description: Build a FastAPI backend on AWS
required_skills:
  - python
  - name: aws
    weight: 2
min_experience: 3
max_budget: 90
top_n: 3
`)

	doc, err := readDocument(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	job, err := decodeJob(doc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if job.ID != "job-7" || job.TopN != 3 || job.MinExperience != 3 || job.MaxBudget != 90 {
		t.Fatalf("unexpected job %+v", job)
	}
	want := []marketplace.SkillRequirement{{Name: "python"}, {Name: "aws", Weight: 2}}
	if len(job.RequiredSkills) != len(want) {
		t.Fatalf("unexpected skills %+v", job.RequiredSkills)
	}
	for i := range want {
		if job.RequiredSkills[i] != want[i] {
			t.Fatalf("skill %d: expected %+v, got %+v", i, want[i], job.RequiredSkills[i])
		}
	}
}

func TestDecodeJobRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		doc  map[string]any
	}{
		{name: "short description", doc: map[string]any{"description": "go dev"}},
		{name: "unknown key", doc: map[string]any{"description": "a long enough description", "salary": 1}},
		{name: "negative budget", doc: map[string]any{"description": "a long enough description", "max_budget": -5}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := decodeJob(tc.doc); !matcherr.IsInvalidInput(err) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestDecodeJobGeneratesID(t *testing.T) {
	job, err := decodeJob(map[string]any{
		"description":     "Kubernetes operator work",
		"required_skills": skillRequirements([]string{"go=3", "kubernetes"}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(job.ID) != len("job-")+8 {
		t.Fatalf("unexpected generated id %q", job.ID)
	}
	if job.RequiredSkills[0].Weight != 3 || job.RequiredSkills[1].Weight != 0 {
		t.Fatalf("unexpected weights %+v", job.RequiredSkills)
	}
}

func TestFormatResultsRounds(t *testing.T) {
	out := formatResults("j", []marketplace.MatchResult{{
		CandidateID: "a",
		Rank:        1,
		Score:       0.123456,
		Components:  marketplace.Components{SkillMatch: 1, ExperienceMatch: 0.33333, SemanticSimilarity: 0.99996},
	}})

	got := out.TopMatches[0]
	if got.FinalScore != 0.1235 || got.ExperienceScore != 0.3333 || got.SemanticScore != 1 {
		t.Fatalf("unexpected rounding %+v", got)
	}
}

func TestNewIndexAndEmbedder(t *testing.T) {
	idx, err := newIndex(&IndexConfig{Kind: "HNSW"}, 16)
	if err != nil {
		t.Fatalf("hnsw: %v", err)
	}
	if _, ok := idx.(*vectorindex.HNSW); !ok || idx.Dim() != 16 {
		t.Fatalf("expected a 16-dim hnsw index, got %T", idx)
	}

	if _, err := newIndex(&IndexConfig{Kind: "annoy"}, 16); !matcherr.IsInvalidConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	e, err := newEmbedder(&EmbeddingConfig{Provider: "hash", Dimension: 8}, nil, zap.NewNop())
	if err != nil || e.Dimension() != 8 {
		t.Fatalf("expected hash embedder of width 8, got %v %v", e, err)
	}
	if _, err := newEmbedder(&EmbeddingConfig{Provider: "word2vec"}, nil, zap.NewNop()); !matcherr.IsInvalidConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestIngestAndMatch(t *testing.T) {
	ctx := context.Background()
	m, err := newMatcher(ctx, testConfig(), zap.NewNop(), false)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	defer m.Close()

	job := &marketplace.Job{
		ID:             "job-1",
		Description:    "Python backend with Docker",
		RequiredSkills: []marketplace.SkillRequirement{{Name: "python"}, {Name: "docker"}},
		MinExperience:  2,
	}

	if _, err := m.match(ctx, job); !errors.Is(err, errNoCandidates) {
		t.Fatalf("expected empty population to be refused, got %v", err)
	}

	dir := t.TempDir()
	strong := writeFile(t, dir, "strong.txt", "Python and Docker engineer with 6 years in production")
	weak := writeFile(t, dir, "weak.txt", "React developer, 1 year")

	if _, err := m.ingestFile(ctx, strong, resume.Profile{ID: "strong"}); err != nil {
		t.Fatalf("ingest strong: %v", err)
	}
	if _, err := m.ingestFile(ctx, weak, resume.Profile{ID: "weak"}); err != nil {
		t.Fatalf("ingest weak: %v", err)
	}

	job.Embedding = nil
	results, err := m.match(ctx, job)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(results) != 1 || results[0].CandidateID != "strong" || results[0].Rank != 1 {
		t.Fatalf("expected only the skilled candidate, got %+v", results)
	}
	if results[0].Components.SkillMatch != 1 || results[0].Components.ExperienceMatch != 1 {
		t.Fatalf("unexpected components %+v", results[0].Components)
	}

	if _, err := m.ledger.Append(ctx, marketplace.Outcome{JobID: "job-1", CandidateID: "strong", Decision: marketplace.Hired}); err != nil {
		t.Fatalf("append outcome: %v", err)
	}
	outcomes, err := m.outcomes(ctx, "job-1", "")
	if err != nil || len(outcomes) != 1 || outcomes[0].Decision != marketplace.Hired {
		t.Fatalf("unexpected outcomes %+v %v", outcomes, err)
	}
	if outcomes, _ := m.outcomes(ctx, "job-1", "weak"); len(outcomes) != 0 {
		t.Fatalf("expected candidate filter to apply, got %+v", outcomes)
	}
}
