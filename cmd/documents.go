package cmd

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/marketplace"
)

const minDescriptionLength = 10

// readDocument parses a YAML (or JSON) file into a generic map.
func readDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	doc := make(map[string]any)
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, matcherr.Wrap(err, matcherr.CodeMatchInvalidInput, fmt.Sprintf("parsing %s", path))
	}
	return doc, nil
}

var skillRequirementType = reflect.TypeOf(marketplace.SkillRequirement{})

// skillRequirementHook lets a job list plain skill names next to
// {name, weight} entries.
func skillRequirementHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != skillRequirementType {
		return data, nil
	}
	if s, ok := data.(string); ok {
		return map[string]any{"name": s}, nil
	}
	return data, nil
}

// decodeJob builds a job from a document. The description is required since
// it carries the semantic side of the match.
func decodeJob(doc map[string]any) (*marketplace.Job, error) {
	var job marketplace.Job
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &job,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			skillRequirementHook,
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(doc); err != nil {
		return nil, matcherr.Wrap(err, matcherr.CodeMatchInvalidInput, "decode job")
	}

	job.Description = strings.TrimSpace(job.Description)
	if utf8.RuneCountInString(job.Description) < minDescriptionLength {
		return nil, matcherr.New(matcherr.CodeMatchInvalidInput,
			fmt.Sprintf("job description must be at least %d characters", minDescriptionLength),
		)
	}
	if job.MinExperience < 0 || job.MaxBudget < 0 {
		return nil, matcherr.New(matcherr.CodeMatchInvalidInput, "min_experience and max_budget must not be negative")
	}
	if job.ID = strings.TrimSpace(job.ID); job.ID == "" {
		job.ID = "job-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	return &job, nil
}
