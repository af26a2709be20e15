package embedder

import (
	"context"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/graphweave/graphweave/internal/types"
)

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint. It
// works against api.openai.com as well as local servers (Ollama,
// vLLM, LM Studio) that speak the same protocol via BaseURL.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	logger     *slog.Logger
}

// NewOpenAIEmbedder builds an embedder from cfg. BaseURL empty targets
// the official OpenAI endpoint.
func NewOpenAIEmbedder(cfg Config) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		logger:     slog.Default().With("component", "embedder.openai", "model", cfg.Model),
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if text == "" {
			return nil, types.NewErrorf(types.VALIDATION_FAILED, "text %d is empty", i)
		}
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, types.WrapError(types.EMBEDDING_TIMEOUT, "embedding request timed out", err).WithRetryable(true)
		}
		return nil, types.WrapError(types.EMBEDDING_FAILED, "embedding request failed", err).WithRetryable(true)
	}
	if len(resp.Data) != len(texts) {
		return nil, types.NewErrorf(types.EMBEDDING_FAILED,
			"provider returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	vectors := make([][]float64, len(texts))
	for _, item := range resp.Data {
		vec := make([]float64, len(item.Embedding))
		for i, f := range item.Embedding {
			vec[i] = float64(f)
		}
		if e.dimensions > 0 && len(vec) != e.dimensions {
			return nil, types.NewErrorf(types.EMBEDDING_FAILED,
				"provider returned %d dimensions, expected %d", len(vec), e.dimensions)
		}
		vectors[item.Index] = vec
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *OpenAIEmbedder) Model() string {
	return e.model
}

func (e *OpenAIEmbedder) Health(ctx context.Context) types.HealthStatus {
	if _, err := e.Embed(ctx, "health probe"); err != nil {
		return types.Unhealthy(err.Error())
	}
	return types.Healthy()
}
