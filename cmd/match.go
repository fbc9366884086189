package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/logger"
	"github.com/spigell/gig-matcher/internal/marketplace"
	"github.com/spigell/gig-matcher/internal/utils"
)

const (
	PromptDone     = "Done"
	PromptHired    = "Hired"
	PromptRejected = "Rejected"
	PromptPending  = "Pending"
	PromptBack     = "back"

	scorePlaces = 4
)

var decisionPrompts = map[string]marketplace.Decision{
	PromptHired:    marketplace.Hired,
	PromptRejected: marketplace.Rejected,
	PromptPending:  marketplace.Pending,
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank stored freelancers for a job",
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("job", "f", "", "YAML or JSON job document")
	matchCmd.Flags().String("id", "", "job id (default is generated)")
	matchCmd.Flags().String("description", "", "job description")
	matchCmd.Flags().StringSlice("skills", nil, "required skills, optionally weighted as name=weight")
	matchCmd.Flags().Float64("min-experience", 0, "minimum years of experience")
	matchCmd.Flags().Float64("max-budget", 0, "maximum hourly rate, 0 means no cap")
	matchCmd.Flags().IntP("top-n", "n", 0, "number of results (default from config)")
	matchCmd.Flags().BoolP("record", "r", false, "record hiring decisions for the results interactively")
	matchCmd.Flags().Bool("no-rerank", false, "skip the rerank hook even when it is configured")
}

type matchOutput struct {
	JobID      string        `json:"job_id"`
	TopMatches []matchResult `json:"top_matches"`
}

type matchResult struct {
	Rank            int     `json:"rank"`
	ResumeID        string  `json:"resume_id"`
	FinalScore      float64 `json:"final_score"`
	SkillScore      float64 `json:"skill_score"`
	ExperienceScore float64 `json:"experience_score"`
	SemanticScore   float64 `json:"semantic_score"`
}

func match(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	job, err := jobFromFlags(cmd)
	if err != nil {
		logger.Fatal("reading job", zap.Error(err))
	}

	noRerank, _ := cmd.Flags().GetBool("no-rerank")
	m, err := newMatcher(ctx, config, logger, !noRerank)
	if err != nil {
		logger.Fatal("building matcher", zap.Error(err))
	}
	defer m.Close()

	results, err := m.match(ctx, job)
	if err != nil {
		m.Close()
		logger.Fatal("matching", zap.Error(err), zap.String("code", string(matcherr.CodeOf(err))))
	}

	pretty, _ := json.MarshalIndent(formatResults(job.ID, results), "", "  ")
	fmt.Println(string(pretty))

	if record, _ := cmd.Flags().GetBool("record"); record && len(results) > 0 {
		if err := m.recordDecisions(ctx, job.ID, results); err != nil && !errors.Is(err, promptui.ErrInterrupt) {
			m.Close()
			logger.Fatal("recording decisions", zap.Error(err))
		}
	}
}

var errNoCandidates = errors.New("no resumes found, ingest resumes first")

// match rebuilds the index from the store and ranks it for job. Unlike the
// engine, it refuses an empty population.
func (m *matcher) match(ctx context.Context, job *marketplace.Job) ([]marketplace.MatchResult, error) {
	population, err := m.restore(ctx)
	if err != nil {
		return nil, err
	}
	if population == 0 {
		return nil, errNoCandidates
	}

	if len(job.Embedding) == 0 {
		vector, err := m.embedder.Embed(ctx, job.Description)
		if err != nil {
			return nil, fmt.Errorf("embedding job description: %w", err)
		}
		job.Embedding = vector
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.engine.Match(ctx, job)
}

func jobFromFlags(cmd *cobra.Command) (*marketplace.Job, error) {
	doc := make(map[string]any)
	if path, _ := cmd.Flags().GetString("job"); path != "" {
		var err error
		if doc, err = readDocument(path); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("id") {
		doc["id"], _ = flags.GetString("id")
	}
	if flags.Changed("description") {
		doc["description"], _ = flags.GetString("description")
	}
	if flags.Changed("min-experience") {
		doc["min_experience"], _ = flags.GetFloat64("min-experience")
	}
	if flags.Changed("max-budget") {
		doc["max_budget"], _ = flags.GetFloat64("max-budget")
	}
	if flags.Changed("top-n") {
		doc["top_n"], _ = flags.GetInt("top-n")
	}
	if flags.Changed("skills") {
		skills, _ := flags.GetStringSlice("skills")
		doc["required_skills"] = skillRequirements(skills)
	}

	return decodeJob(doc)
}

// skillRequirements turns "go=2" style flag values into requirement maps.
func skillRequirements(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		name, weight, found := strings.Cut(v, "=")
		req := map[string]any{"name": strings.TrimSpace(name)}
		if found {
			req["weight"] = strings.TrimSpace(weight)
		}
		out = append(out, req)
	}
	return out
}

func formatResults(jobID string, results []marketplace.MatchResult) matchOutput {
	out := matchOutput{JobID: jobID, TopMatches: make([]matchResult, 0, len(results))}
	for _, r := range results {
		out.TopMatches = append(out.TopMatches, matchResult{
			Rank:            r.Rank,
			ResumeID:        r.CandidateID,
			FinalScore:      utils.Round(r.Score, scorePlaces),
			SkillScore:      utils.Round(r.Components.SkillMatch, scorePlaces),
			ExperienceScore: utils.Round(r.Components.ExperienceMatch, scorePlaces),
			SemanticScore:   utils.Round(r.Components.SemanticSimilarity, scorePlaces),
		})
	}
	return out
}

// recordDecisions lets the operator mark results as hired, rejected or
// pending until they choose Done.
func (m *matcher) recordDecisions(ctx context.Context, jobID string, results []marketplace.MatchResult) error {
	for {
		items := make([]string, 0, len(results)+1)
		for _, r := range results {
			items = append(items, fmt.Sprintf("%s #%d score %.4f", r.CandidateID, r.Rank, r.Score))
		}

		resultPrompt := promptui.Select{
			Label: "Choose a candidate to record a decision and press ENTER",
			Items: append(items, PromptDone),
		}

		_, selected, err := resultPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptDone {
			return nil
		}
		candidateID := strings.Split(selected, " ")[0]

		decisionPrompt := promptui.Select{
			Label: "Decision for " + candidateID,
			Items: []string{PromptHired, PromptRejected, PromptPending, PromptBack},
		}
		_, choice, err := decisionPrompt.Run()
		if err != nil {
			return err
		}
		if choice == PromptBack {
			continue
		}

		outcome, err := m.ledger.Append(ctx, marketplace.Outcome{
			JobID:       jobID,
			CandidateID: candidateID,
			Decision:    decisionPrompts[choice],
		})
		if err != nil {
			return err
		}

		m.logger.Info("decision recorded",
			logger.JobField(jobID),
			logger.CandidateField(candidateID),
			zap.String("decision", string(outcome.Decision)),
			zap.String("outcome_id", outcome.ID),
		)
	}
}
