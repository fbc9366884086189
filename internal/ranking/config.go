package ranking

import (
	"math"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/scoring"
)

const (
	DefaultTopN             = 5
	DefaultFanoutMultiplier = 5
)

// Fanout controls how many semantic neighbours are fetched before scoring.
type Fanout struct {
	// Retrieval is an absolute neighbour count. Zero derives it from
	// Multiplier and top_n.
	Retrieval int `mapstructure:"retrieval"`
	// Multiplier scales top_n when Retrieval is zero. Default: 5.
	Multiplier int `mapstructure:"multiplier"`
}

// Config is the validated engine configuration. Build it with Configure.
type Config struct {
	Weights     scoring.Weights
	Fanout      Fanout
	TopNDefault int
}

// Configure validates and completes the engine configuration. A zero
// topNDefault selects DefaultTopN.
func Configure(weights scoring.Weights, fanout Fanout, topNDefault int) (Config, error) {
	if err := weights.Validate(); err != nil {
		return Config{}, err
	}
	if fanout.Retrieval < 0 || fanout.Multiplier < 0 {
		return Config{}, matcherr.New(matcherr.CodeConfigInvalid, "retrieval fanout must not be negative",
			matcherr.Field("retrieval", fanout.Retrieval),
			matcherr.Field("multiplier", fanout.Multiplier),
		)
	}
	if topNDefault < 0 {
		return Config{}, matcherr.New(matcherr.CodeConfigInvalid, "default top_n must not be negative",
			matcherr.Field("top_n", topNDefault),
		)
	}

	if fanout.Multiplier == 0 {
		fanout.Multiplier = DefaultFanoutMultiplier
	}
	if topNDefault == 0 {
		topNDefault = DefaultTopN
	}
	return Config{Weights: weights, Fanout: fanout, TopNDefault: topNDefault}, nil
}

// DefaultConfig uses the default weights, fanout and top_n.
func DefaultConfig() Config {
	cfg, _ := Configure(scoring.DefaultWeights, Fanout{}, 0)
	return cfg
}

// fanout is the neighbour budget for a request of topN results. An explicit
// Retrieval is used as is. The derived budget is never below twice topN so
// the rerank window can be filled.
func (c Config) fanout(topN int) int {
	if c.Fanout.Retrieval > 0 {
		return c.Fanout.Retrieval
	}
	return max(saturatingMul(c.Fanout.Multiplier, topN), saturatingMul(2, topN))
}

// saturatingMul multiplies non-negative ints, capping at math.MaxInt.
func saturatingMul(a, b int) int {
	if a > 0 && b > math.MaxInt/a {
		return math.MaxInt
	}
	return a * b
}
