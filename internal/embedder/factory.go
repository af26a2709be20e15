package embedder

import (
	"github.com/graphweave/graphweave/internal/types"
)

// New constructs the provider selected by cfg and wraps it with the
// configured resilience policy.
func New(cfg Config) (Embedder, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var inner Embedder
	switch cfg.Provider {
	case "openai":
		inner = NewOpenAIEmbedder(cfg)
	case "mock":
		inner = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, types.NewErrorf(types.CONFIG_VALIDATION_FAILED, "unknown embedding provider %q", cfg.Provider)
	}
	return NewResilientEmbedder(inner, cfg.Resilience), nil
}
