// Package resume turns uploaded resume text and an optional typed profile
// into candidate attributes.
package resume

import (
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/marketplace"
)

// maxInferredExperience bounds the years read from free text. Larger numbers
// are usually dates or counts.
const maxInferredExperience = 50

// CommonSkills are recognized in resume text without a typed profile.
var CommonSkills = []string{
	"aws",
	"django",
	"docker",
	"fastapi",
	"flask",
	"kubernetes",
	"next.js",
	"node",
	"postgresql",
	"python",
	"react",
}

// Profile is what a freelancer types in next to the uploaded resume.
type Profile struct {
	ID              string   `mapstructure:"id"`
	Name            string   `mapstructure:"name"`
	Headline        string   `mapstructure:"headline"`
	Bio             string   `mapstructure:"bio"`
	Skills          []string `mapstructure:"skills"`
	ExperienceYears float64  `mapstructure:"experience_years"`
	Availability    string   `mapstructure:"availability"`
	Rate            float64  `mapstructure:"rate"`
}

// DecodeProfile reads a profile from a generic document such as parsed YAML.
// A comma separated skills string is accepted as well as a list.
func DecodeProfile(doc map[string]any) (Profile, error) {
	var p Profile
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return Profile{}, err
	}
	if err := dec.Decode(doc); err != nil {
		return Profile{}, matcherr.Wrap(err, matcherr.CodeMatchInvalidInput, "decode profile")
	}
	return p, nil
}

// Candidate is the result of parsing: an id, attributes for the store and the
// text to embed.
type Candidate struct {
	ID         string
	Attributes marketplace.Attributes
	Text       string
}

// Parse merges the resume text with the typed profile. Typed and inferred
// skills are unioned; the experience is the larger of the typed value and the
// first plausible year count in the text. Missing availability means the
// freelancer is available.
func Parse(text string, p Profile) (Candidate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Candidate{}, matcherr.New(matcherr.CodeMatchInvalidInput, "resume text is empty")
	}

	raw := p.Availability
	if strings.TrimSpace(raw) == "" {
		raw = string(marketplace.Available)
	}
	availability, err := marketplace.ParseAvailability(raw)
	if err != nil {
		return Candidate{}, matcherr.Wrap(err, matcherr.CodeMatchInvalidInput, "parse availability")
	}
	if p.Rate < 0 || p.ExperienceYears < 0 {
		return Candidate{}, matcherr.New(matcherr.CodeMatchInvalidInput, "rate and experience must not be negative")
	}

	lowered := strings.ToLower(text)
	skills := marketplace.NormalizeSkills(append(slices.Clone(p.Skills), ExtractSkills(lowered)...))

	id := strings.TrimSpace(p.ID)
	if id == "" {
		id = NewID()
	}

	return Candidate{
		ID: id,
		Attributes: marketplace.Attributes{
			Skills:          skills,
			ExperienceYears: max(p.ExperienceYears, ExtractExperience(lowered)),
			Availability:    availability,
			Rate:            p.Rate,
			Summary:         summary(p),
		},
		Text: text,
	}, nil
}

func summary(p Profile) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Name, p.Headline, p.Bio} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ". ")
}

// NewID returns a short random resume id.
func NewID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "resume-" + hex[:8]
}

// ExtractSkills returns the common skills mentioned in text, sorted.
func ExtractSkills(text string) []string {
	lowered := strings.ToLower(text)
	var found []string
	for _, skill := range CommonSkills {
		if strings.Contains(lowered, skill) {
			found = append(found, skill)
		}
	}
	return found
}

// ExtractExperience returns the first whitespace separated integer in text
// between 1 and 50, or 0.
func ExtractExperience(text string) float64 {
	for _, token := range strings.Fields(text) {
		if !isDigits(token) {
			continue
		}
		v, err := strconv.Atoi(token)
		if err != nil {
			continue
		}
		if v > 0 && v <= maxInferredExperience {
			return float64(v)
		}
	}
	return 0
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
