package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/gig-matcher/internal/logger"
	"github.com/spigell/gig-matcher/internal/marketplace"
)

var outcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "Record and list hiring decisions on matches",
}

var outcomesRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Append a decision to the outcome ledger",
	Run: func(cmd *cobra.Command, _ []string) {
		recordOutcome(cmd)
	},
}

var outcomesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded decisions in insertion order",
	Run: func(cmd *cobra.Command, _ []string) {
		listOutcomes(cmd)
	},
}

func init() {
	rootCmd.AddCommand(outcomesCmd)
	outcomesCmd.AddCommand(outcomesRecordCmd, outcomesListCmd)

	outcomesRecordCmd.Flags().String("job", "", "job id")
	outcomesRecordCmd.Flags().String("candidate", "", "candidate id")
	outcomesRecordCmd.Flags().String("decision", "", "hired, rejected or pending")
	outcomesRecordCmd.MarkFlagRequired("job")
	outcomesRecordCmd.MarkFlagRequired("candidate")
	outcomesRecordCmd.MarkFlagRequired("decision")

	outcomesListCmd.Flags().String("job", "", "only outcomes for this job")
	outcomesListCmd.Flags().String("candidate", "", "only outcomes for this candidate")
}

func openLedgerOnly(ctx context.Context) (*matcher, *zap.Logger) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	m, err := newMatcher(ctx, config, logger, false)
	if err != nil {
		logger.Fatal("building matcher", zap.Error(err))
	}
	return m, logger
}

func recordOutcome(cmd *cobra.Command) {
	ctx := context.Background()
	m, logger := openLedgerOnly(ctx)
	defer m.Close()

	jobID, _ := cmd.Flags().GetString("job")
	candidateID, _ := cmd.Flags().GetString("candidate")
	decision, _ := cmd.Flags().GetString("decision")

	outcome, err := m.ledger.Append(ctx, marketplace.Outcome{
		JobID:       strings.TrimSpace(jobID),
		CandidateID: strings.TrimSpace(candidateID),
		Decision:    marketplace.Decision(strings.ToLower(strings.TrimSpace(decision))),
	})
	if err != nil {
		m.Close()
		logger.Fatal("recording outcome", zap.Error(err))
	}

	pretty, _ := json.MarshalIndent(outcome, "", "  ")
	fmt.Println(string(pretty))
}

func listOutcomes(cmd *cobra.Command) {
	ctx := context.Background()
	m, logger := openLedgerOnly(ctx)
	defer m.Close()

	jobID, _ := cmd.Flags().GetString("job")
	candidateID, _ := cmd.Flags().GetString("candidate")

	outcomes, err := m.outcomes(ctx, jobID, candidateID)
	if err != nil {
		m.Close()
		logger.Fatal("listing outcomes", zap.Error(err))
	}

	pretty, _ := json.MarshalIndent(outcomes, "", "  ")
	fmt.Println(string(pretty))
}

// outcomes reads the ledger through the job or candidate index. When both
// are given the job index is read and filtered by candidate.
func (m *matcher) outcomes(ctx context.Context, jobID, candidateID string) ([]marketplace.Outcome, error) {
	var seq iter.Seq2[marketplace.Outcome, error]
	switch {
	case jobID != "":
		seq = m.ledger.ByJob(ctx, jobID)
	case candidateID != "":
		seq = m.ledger.ByCandidate(ctx, candidateID)
	default:
		seq = m.ledger.All(ctx)
	}

	out := make([]marketplace.Outcome, 0)
	for o, err := range seq {
		if err != nil {
			return nil, err
		}
		if candidateID != "" && o.CandidateID != candidateID {
			continue
		}
		out = append(out, o)
	}
	if len(out) == 0 && jobID == "" && candidateID == "" {
		m.logger.Info("ledger is empty")
	}
	return out, nil
}
