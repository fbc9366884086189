package marketplace

import (
	"fmt"
	"slices"
	"strings"
)

// Availability describes whether a freelancer can take new work.
type Availability string

const (
	Available    Availability = "available"
	OpenToOffers Availability = "open-to-offers"
	Unavailable  Availability = "unavailable"
)

// ParseAvailability normalizes the textual availability used in profile
// documents. Unknown values are reported as errors.
func ParseAvailability(raw string) (Availability, error) {
	switch a := Availability(strings.ToLower(strings.TrimSpace(raw))); a {
	case Available, OpenToOffers, Unavailable:
		return a, nil
	case "open_to_offers", "open":
		return OpenToOffers, nil
	case "":
		return Unavailable, nil
	default:
		return "", fmt.Errorf("unknown availability %q", raw)
	}
}

// Bookable reports whether the availability admits candidates into a ranking.
func (a Availability) Bookable() bool {
	return a == Available || a == OpenToOffers
}

// Attributes are the structured facts about a freelancer used by filtering
// and scoring.
type Attributes struct {
	Skills          []string     `json:"skills" msgpack:"skills" mapstructure:"skills"`
	ExperienceYears float64      `json:"experience_years" msgpack:"experience_years" mapstructure:"experience_years"`
	Availability    Availability `json:"availability" msgpack:"availability" mapstructure:"availability"`
	Rate            float64      `json:"rate" msgpack:"rate" mapstructure:"rate"`
	Summary         string       `json:"summary,omitempty" msgpack:"summary,omitempty" mapstructure:"summary"`
}

// Normalize returns a copy with a deduplicated, lower-cased and sorted skill
// set.
func (a Attributes) Normalize() Attributes {
	out := a
	out.Skills = NormalizeSkills(a.Skills)
	return out
}

// Candidate is a freelancer profile reduced to attributes plus an embedding.
// Identity is the ID; Version grows on every update.
type Candidate struct {
	ID         string     `json:"id" msgpack:"id"`
	Attributes Attributes `json:"attributes" msgpack:"attributes"`
	Embedding  []float32  `json:"embedding,omitempty" msgpack:"embedding,omitempty"`
	Version    uint64     `json:"version" msgpack:"version"`
}

// Clone returns a deep copy so stored records are never shared with callers.
func (c *Candidate) Clone() *Candidate {
	if c == nil {
		return nil
	}
	out := *c
	out.Attributes.Skills = slices.Clone(c.Attributes.Skills)
	out.Embedding = slices.Clone(c.Embedding)
	return &out
}

// HasSkill reports whether the candidate holds the (normalized) skill.
func (c *Candidate) HasSkill(skill string) bool {
	_, found := slices.BinarySearch(c.Attributes.Skills, skill)
	return found
}

// NormalizeSkill trims and lower-cases a skill name.
func NormalizeSkill(skill string) string {
	return strings.ToLower(strings.TrimSpace(skill))
}

// NormalizeSkills turns a raw skill list into a sorted set.
func NormalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		if n := NormalizeSkill(s); n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
