package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/gig-matcher/internal/ai"
	"github.com/spigell/gig-matcher/internal/ai/gemini"
	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/kv"
	"github.com/spigell/gig-matcher/internal/ledger"
	"github.com/spigell/gig-matcher/internal/profiles"
	"github.com/spigell/gig-matcher/internal/ranking"
	"github.com/spigell/gig-matcher/internal/secrets"
	"github.com/spigell/gig-matcher/internal/vectorindex"
)

// matcher bundles everything a command needs: the engine over a persistent
// profile store, the embedder used for ingestion and the outcome ledger.
type matcher struct {
	config   *Config
	logger   *zap.Logger
	kv       kv.Store
	store    *profiles.KVStore
	engine   *ranking.Engine
	embedder ai.Embedder
	ledger   *ledger.KV
	timeout  time.Duration
}

func newMatcher(ctx context.Context, config *Config, logger *zap.Logger, withRerank bool) (*matcher, error) {
	if config == nil || config.Matching == nil || config.Index == nil || config.Storage == nil || config.Embedding == nil {
		return nil, errors.New("config is incomplete")
	}

	timeout, err := time.ParseDuration(config.Matching.Timeout)
	if err != nil {
		return nil, matcherr.Wrap(err, matcherr.CodeConfigInvalid, "parse matching.timeout")
	}

	var client *genai.Client
	geminiClient := func() (*genai.Client, error) {
		if client != nil {
			return client, nil
		}
		c, err := newGeminiClient(ctx, config.Gemini)
		if err != nil {
			return nil, err
		}
		client = c
		return client, nil
	}

	embedder, err := newEmbedder(config.Embedding, geminiClient, logger)
	if err != nil {
		return nil, err
	}

	index, err := newIndex(config.Index, embedder.Dimension())
	if err != nil {
		return nil, err
	}

	store, err := openKV(config.Storage, logger)
	if err != nil {
		return nil, err
	}
	profileStore := profiles.NewKVStore(store)

	outcomes, err := ledger.OpenKV(ctx, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	opts := []ranking.Option{ranking.WithLogger(logger)}
	if withRerank && config.Rerank != nil && config.Rerank.Enabled {
		c, err := geminiClient()
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("building reranker: %w", err)
		}
		generator := gemini.NewGenerator(c, config.Rerank.Gemini, logger)
		opts = append(opts, ranking.WithRerankHook(
			gemini.NewReranker(generator, profileStore, logger, config.Rerank.MaxLogLength),
		))
	}

	engine, err := ranking.New(ranking.Config{
		Weights:     config.Matching.Weights,
		Fanout:      config.Matching.Fanout,
		TopNDefault: config.Matching.TopN,
	}, index, profileStore, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &matcher{
		config:   config,
		logger:   logger,
		kv:       store,
		store:    profileStore,
		engine:   engine,
		embedder: embedder,
		ledger:   outcomes,
		timeout:  timeout,
	}, nil
}

func (m *matcher) Close() error {
	return m.kv.Close()
}

func newGeminiClient(ctx context.Context, cfg *GeminiConfig) (*genai.Client, error) {
	if cfg == nil {
		cfg = &GeminiConfig{}
	}
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}
	return gemini.NewClient(ctx, apiKey)
}

func newEmbedder(cfg *EmbeddingConfig, client func() (*genai.Client, error), logger *zap.Logger) (ai.Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "hash":
		return ai.NewHashEmbedder(cfg.Dimension), nil
	case "gemini":
		c, err := client()
		if err != nil {
			return nil, fmt.Errorf("building embedder: %w", err)
		}
		ecfg := cfg.Gemini
		if ecfg.Dimension <= 0 {
			ecfg.Dimension = cfg.Dimension
		}
		return gemini.NewEmbedder(c, ecfg, logger), nil
	default:
		return nil, matcherr.New(matcherr.CodeConfigInvalid, "unsupported embedding provider",
			matcherr.Field("provider", cfg.Provider),
		)
	}
}

func newIndex(cfg *IndexConfig, dim int) (vectorindex.Index, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "bruteforce":
		idx, err := vectorindex.NewBruteForce(dim, cfg.Shards)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "hnsw":
		hcfg := cfg.HNSW
		hcfg.Dim = dim
		idx, err := vectorindex.NewHNSW(hcfg)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, matcherr.New(matcherr.CodeConfigInvalid, "unsupported index kind",
			matcherr.Field("kind", cfg.Kind),
		)
	}
}

func openKV(cfg *StorageConfig, logger *zap.Logger) (kv.Store, error) {
	if !cfg.InMemory && cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, matcherr.Wrap(err, matcherr.CodeStorageUnavailable, "create data directory",
				matcherr.Field("dir", cfg.Dir),
			)
		}
	}
	store, err := kv.NewBadger(kv.BadgerOptions{
		Dir:      cfg.Dir,
		InMemory: cfg.InMemory,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// restore loads stored embeddings into the index. The returned count is the
// size of the candidate population.
func (m *matcher) restore(ctx context.Context) (int, error) {
	n, err := m.engine.Restore(ctx)
	if err != nil {
		return 0, fmt.Errorf("restoring index: %w", err)
	}
	return n, nil
}
