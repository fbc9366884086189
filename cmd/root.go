package cmd

import (
	"errors"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/gig-matcher/internal/ai"
	"github.com/spigell/gig-matcher/internal/ai/gemini"
	"github.com/spigell/gig-matcher/internal/ranking"
	"github.com/spigell/gig-matcher/internal/scoring"
	"github.com/spigell/gig-matcher/internal/vectorindex"
)

const (
	app = "gig-matcher"
)

type Config struct {
	Matching  *MatchingConfig  `mapstructure:"matching"`
	Index     *IndexConfig     `mapstructure:"index"`
	Storage   *StorageConfig   `mapstructure:"storage"`
	Embedding *EmbeddingConfig `mapstructure:"embedding"`
	Rerank    *RerankConfig    `mapstructure:"rerank"`
	Gemini    *GeminiConfig    `mapstructure:"gemini"`
}

type MatchingConfig struct {
	Weights scoring.Weights `mapstructure:"weights"`
	Fanout  ranking.Fanout  `mapstructure:"fanout"`
	TopN    int             `mapstructure:"top-n"`
	Timeout string          `mapstructure:"timeout"`
}

type IndexConfig struct {
	// Kind is "bruteforce" or "hnsw".
	Kind   string                 `mapstructure:"kind"`
	Shards int                    `mapstructure:"shards"`
	HNSW   vectorindex.HNSWConfig `mapstructure:"hnsw"`
}

type StorageConfig struct {
	Dir      string `mapstructure:"dir"`
	InMemory bool   `mapstructure:"in-memory"`
}

type EmbeddingConfig struct {
	// Provider is "hash" or "gemini".
	Provider  string                `mapstructure:"provider"`
	Dimension int                   `mapstructure:"dimension"`
	Gemini    gemini.EmbedderConfig `mapstructure:"gemini"`
}

type RerankConfig struct {
	Enabled      bool                   `mapstructure:"enabled"`
	Gemini       gemini.GeneratorConfig `mapstructure:"gemini"`
	MaxLogLength int                    `mapstructure:"max-log-length"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "gig-matcher ranks freelancers for jobs by skills, experience and semantic fit",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	setDefaults(viper.GetViper())

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is gig-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding the profile store and the outcome ledger")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("storage.dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("matching.weights.skill", scoring.DefaultWeights.Skill)
	v.SetDefault("matching.weights.experience", scoring.DefaultWeights.Experience)
	v.SetDefault("matching.weights.semantic", scoring.DefaultWeights.Semantic)
	v.SetDefault("matching.fanout.multiplier", ranking.DefaultFanoutMultiplier)
	v.SetDefault("matching.top-n", ranking.DefaultTopN)
	v.SetDefault("matching.timeout", "30s")
	v.SetDefault("index.kind", "bruteforce")
	v.SetDefault("index.shards", 16)
	v.SetDefault("storage.dir", "."+app)
	v.SetDefault("embedding.provider", "hash")
	v.SetDefault("embedding.dimension", ai.DefaultHashDimension)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Defaults are enough to run; only an explicit or broken config is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
