package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/gig-matcher/internal/ai"
	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/logger"
	"github.com/spigell/gig-matcher/internal/marketplace"
	"github.com/spigell/gig-matcher/internal/profiles"
	"github.com/spigell/gig-matcher/internal/ranking"
	"github.com/spigell/gig-matcher/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200

	systemInstruction = "You rank freelancers for jobs. Answer with JSON only."
)

// Reranker asks a language model to reorder the head of a ranking. The
// engine validates the returned permutation.
type Reranker struct {
	generator ai.Generator
	store     profiles.Store
	logger    *zap.Logger
	maxLogLen int
}

var _ ranking.RerankHook = (*Reranker)(nil)

// NewReranker builds a Reranker. store supplies candidate attributes for the
// prompt and may be nil, in which case only scores are sent.
func NewReranker(generator ai.Generator, store profiles.Store, log *zap.Logger, maxLogLength int) *Reranker {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Reranker{
		generator: generator,
		store:     store,
		logger:    logger.WithFields(log),
		maxLogLen: maxLogLength,
	}
}

type jobPayload struct {
	ID             string                         `json:"id"`
	Description    string                         `json:"description,omitempty"`
	RequiredSkills []marketplace.SkillRequirement `json:"required_skills"`
	MinExperience  float64                        `json:"min_experience"`
	MaxBudget      float64                        `json:"max_budget,omitempty"`
}

type candidatePayload struct {
	ID              string                 `json:"id"`
	Score           float64                `json:"score"`
	Components      marketplace.Components `json:"components"`
	Skills          []string               `json:"skills,omitempty"`
	ExperienceYears float64                `json:"experience_years,omitempty"`
	Rate            float64                `json:"rate,omitempty"`
	Summary         string                 `json:"summary,omitempty"`
}

// Rerank returns the candidate ids of results in the order suggested by the
// model.
func (r *Reranker) Rerank(ctx context.Context, job *marketplace.Job, results []marketplace.MatchResult) ([]string, error) {
	if r == nil || r.generator == nil {
		return nil, errors.New("reranker is not initialized")
	}
	if job == nil {
		return nil, errors.New("job is required")
	}
	if len(results) == 0 {
		return []string{}, nil
	}

	prompt, err := r.buildPrompt(ctx, job, results)
	if err != nil {
		return nil, err
	}

	log := r.logger.With(logger.JobField(job.ID))
	log.Debug("rerank request",
		zap.String(logger.FieldModel, r.generator.Model()),
		zap.Int("candidates", len(results)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, r.maxLogLen)),
	)

	raw, err := r.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	log.Debug("rerank response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, r.maxLogLen)),
	)

	return parseOrder(raw)
}

func (r *Reranker) buildPrompt(ctx context.Context, job *marketplace.Job, results []marketplace.MatchResult) (string, error) {
	jobJSON, err := json.MarshalIndent(jobPayload{
		ID:             job.ID,
		Description:    job.Description,
		RequiredSkills: job.RequiredSkills,
		MinExperience:  job.MinExperience,
		MaxBudget:      job.MaxBudget,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	candidates := make([]candidatePayload, 0, len(results))
	for _, res := range results {
		p := candidatePayload{
			ID:         res.CandidateID,
			Score:      utils.Round(res.Score, 4),
			Components: res.Components,
		}
		if r.store != nil {
			c, err := r.store.Get(ctx, res.CandidateID)
			switch {
			case err == nil:
				p.Skills = c.Attributes.Skills
				p.ExperienceYears = c.Attributes.ExperienceYears
				p.Rate = c.Attributes.Rate
				p.Summary = utils.TruncateForLog(c.Attributes.Summary, r.maxLogLen)
			case matcherr.IsNotFound(err):
			default:
				return "", err
			}
		}
		candidates = append(candidates, p)
	}

	candidatesJSON, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidates payload: %w", err)
	}

	return renderPrompt(string(jobJSON), string(candidatesJSON)), nil
}

func renderPrompt(jobJSON, candidatesJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Job:\n{{JOB_JSON}}\n\nCandidates:\n{{CANDIDATES_JSON}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{JOB_JSON}}", jobJSON)
	prompt = strings.ReplaceAll(prompt, "{{CANDIDATES_JSON}}", candidatesJSON)
	return prompt
}

// parseOrder reads {"order": [...]} from a model response. Whether the ids
// form a valid permutation is checked by the caller.
func parseOrder(raw string) ([]string, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	list, ok := data["order"].([]any)
	if !ok {
		return nil, errors.New("gemini response has no order list")
	}

	ids := make([]string, 0, len(list))
	for _, v := range list {
		id := coerceString(v)
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
