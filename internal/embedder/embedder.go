// Package embedder turns text into dense vectors. The OpenAI-compatible
// client is the production implementation; a deterministic mock serves
// tests and offline runs. ResilientEmbedder wraps either with retries,
// timeouts and a circuit breaker for the indexing and retrieval paths.
package embedder

import (
	"context"
	"time"

	"github.com/graphweave/graphweave/internal/types"
)

// Embedder produces embeddings for text.
type Embedder interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch embeds texts positionally. Implementations that tolerate
	// partial failure return nil at the index of each dropped item; the
	// error is reserved for failures affecting the whole batch.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions is the width of vectors this embedder produces.
	Dimensions() int

	// Model identifies the underlying embedding model.
	Model() string

	Health(ctx context.Context) types.HealthStatus
}

// Config parameterizes embedding providers.
type Config struct {
	// Provider selects the implementation: "openai" or "mock".
	Provider string `yaml:"provider"`

	// Model is the embedding model name.
	Model string `yaml:"model"`

	// BaseURL overrides the API endpoint, for OpenAI-compatible local
	// servers. Empty uses the provider default.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against the provider. Usually supplied via
	// the OPENAI_API_KEY environment variable rather than the file.
	APIKey string `yaml:"api_key"`

	// Dimensions is the expected vector width.
	Dimensions int `yaml:"dimensions"`

	Resilience ResilienceConfig `yaml:"resilience"`
}

// ResilienceConfig tunes the retry, timeout and circuit breaker
// behavior of ResilientEmbedder.
type ResilienceConfig struct {
	// MaxRetries is the number of additional attempts after a failed
	// call.
	MaxRetries int `yaml:"max_retries"`

	// InitialBackoff is the delay before the first retry; it doubles on
	// each subsequent retry up to MaxBackoff.
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`

	// CallTimeout bounds each individual provider call.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// WindowSize is the number of recent calls the circuit breaker
	// inspects; FailureThreshold is the failure rate within that window
	// that opens the circuit.
	WindowSize       int     `yaml:"window_size"`
	FailureThreshold float64 `yaml:"failure_threshold"`

	// Cooldown is how long the circuit stays open before a trial call
	// is allowed through.
	Cooldown time.Duration `yaml:"cooldown"`

	// BatchConcurrency bounds how many texts a batch embeds in parallel.
	BatchConcurrency int `yaml:"batch_concurrency"`
}

// ApplyDefaults fills unset fields with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.Dimensions == 0 {
		c.Dimensions = 1536
	}
	c.Resilience.ApplyDefaults()
}

// ApplyDefaults fills unset resilience fields.
func (r *ResilienceConfig) ApplyDefaults() {
	if r.MaxRetries == 0 {
		r.MaxRetries = 3
	}
	if r.InitialBackoff == 0 {
		r.InitialBackoff = 200 * time.Millisecond
	}
	if r.MaxBackoff == 0 {
		r.MaxBackoff = 5 * time.Second
	}
	if r.CallTimeout == 0 {
		r.CallTimeout = 30 * time.Second
	}
	if r.WindowSize == 0 {
		r.WindowSize = 20
	}
	if r.FailureThreshold == 0 {
		r.FailureThreshold = 0.5
	}
	if r.Cooldown == 0 {
		r.Cooldown = 30 * time.Second
	}
	if r.BatchConcurrency == 0 {
		r.BatchConcurrency = 8
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai", "mock":
	default:
		return types.NewErrorf(types.CONFIG_VALIDATION_FAILED, "unknown embedding provider %q", c.Provider)
	}
	if c.Dimensions <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "embedding dimensions must be positive")
	}
	if c.Resilience.FailureThreshold < 0 || c.Resilience.FailureThreshold > 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "failure threshold must be in [0, 1]")
	}
	return nil
}
