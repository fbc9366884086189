package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/gig-matcher/internal/ai"
	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/logger"
)

const (
	defaultEmbeddingModel = "gemini-embedding-001"
	defaultEmbeddingDim   = 768
)

type embedContenter interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// EmbedderConfig configures an Embedder.
type EmbedderConfig struct {
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
	TaskType  string `mapstructure:"task-type"`
}

// Embedder produces embeddings with the Gemini embedding API.
type Embedder struct {
	models   embedContenter
	model    string
	dim      int
	taskType string
	logger   *zap.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

func NewEmbedder(client *genai.Client, cfg EmbedderConfig, log *zap.Logger) *Embedder {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultEmbeddingModel
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = defaultEmbeddingDim
	}
	return &Embedder{
		models:   client.Models,
		model:    model,
		dim:      dim,
		taskType: strings.TrimSpace(cfg.TaskType),
		logger:   logger.WithCommonFields(log, "gemini", model),
	}
}

func (e *Embedder) Dimension() int { return e.dim }

// Embed returns the embedding of text truncated to the configured dimension.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, matcherr.New(matcherr.CodeMatchInvalidInput, "text to embed must not be empty")
	}

	dim := int32(e.dim)
	resp, err := e.models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
		TaskType:             e.taskType,
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errors.New("gemini api returned no embedding")
	}

	values := resp.Embeddings[0].Values
	if len(values) != e.dim {
		return nil, matcherr.New(matcherr.CodeIndexDimensionMismatch, "gemini embedding has unexpected dimension",
			matcherr.Field("got", len(values)),
			matcherr.Field("want", e.dim),
		)
	}

	e.logger.Debug("text embedded", zap.Int("dimension", len(values)))
	return values, nil
}
