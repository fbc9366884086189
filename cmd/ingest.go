package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/gig-matcher/internal/logger"
	"github.com/spigell/gig-matcher/internal/resume"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest RESUME_FILE...",
	Short: "Store freelancer resumes and their embeddings",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ingest(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringP("profile", "p", "", "YAML profile with typed skills, experience, availability and rate (single resume only)")
	ingestCmd.Flags().String("id", "", "candidate id (single resume only, default is generated)")
	ingestCmd.Flags().StringSlice("skills", nil, "typed skills merged with the ones found in the resume")
	ingestCmd.Flags().Float64("rate", 0, "hourly rate")
	ingestCmd.Flags().String("availability", "", "available, open-to-offers or unavailable (default available)")
}

type ingestResult struct {
	Message  string   `json:"message"`
	ResumeID string   `json:"resume_id"`
	Skills   []string `json:"skills"`
}

func ingest(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	profile, err := ingestProfile(cmd, len(args))
	if err != nil {
		logger.Fatal("reading profile", zap.Error(err))
	}

	m, err := newMatcher(ctx, config, logger, false)
	if err != nil {
		logger.Fatal("building matcher", zap.Error(err))
	}
	defer m.Close()

	results := make([]ingestResult, 0, len(args))
	for _, path := range args {
		res, err := m.ingestFile(ctx, path, profile)
		if err != nil {
			logger.Error("ingesting resume", zap.String("file", path), zap.Error(err))
			continue
		}
		results = append(results, res)
	}

	pretty, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(pretty))

	if len(results) != len(args) {
		m.Close()
		os.Exit(1)
	}
}

func ingestProfile(cmd *cobra.Command, files int) (resume.Profile, error) {
	var profile resume.Profile

	if path, _ := cmd.Flags().GetString("profile"); path != "" {
		if files > 1 {
			return profile, fmt.Errorf("--profile applies to a single resume, got %d", files)
		}
		doc, err := readDocument(path)
		if err != nil {
			return profile, err
		}
		if profile, err = resume.DecodeProfile(doc); err != nil {
			return profile, err
		}
	}

	if id, _ := cmd.Flags().GetString("id"); id != "" {
		if files > 1 {
			return profile, fmt.Errorf("--id applies to a single resume, got %d", files)
		}
		profile.ID = id
	}
	if skills, _ := cmd.Flags().GetStringSlice("skills"); len(skills) > 0 {
		profile.Skills = append(profile.Skills, skills...)
	}
	if cmd.Flags().Changed("rate") {
		profile.Rate, _ = cmd.Flags().GetFloat64("rate")
	}
	if availability, _ := cmd.Flags().GetString("availability"); availability != "" {
		profile.Availability = availability
	}
	return profile, nil
}

func (m *matcher) ingestFile(ctx context.Context, path string, profile resume.Profile) (ingestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingestResult{}, err
	}
	if profile.Name == "" {
		profile.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	parsed, err := resume.Parse(strings.ToValidUTF8(string(data), ""), profile)
	if err != nil {
		return ingestResult{}, err
	}

	vector, err := m.embedder.Embed(ctx, parsed.Text)
	if err != nil {
		return ingestResult{}, fmt.Errorf("embedding resume: %w", err)
	}

	if err := m.engine.Upsert(ctx, parsed.ID, parsed.Attributes, vector); err != nil {
		return ingestResult{}, err
	}

	m.logger.Info("resume stored",
		zap.String("file", path),
		logger.CandidateField(parsed.ID),
		zap.Strings("skills", parsed.Attributes.Skills),
		zap.Float64("experience_years", parsed.Attributes.ExperienceYears),
	)

	return ingestResult{
		Message:  "Resume stored successfully",
		ResumeID: parsed.ID,
		Skills:   parsed.Attributes.Skills,
	}, nil
}
