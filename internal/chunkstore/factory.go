package chunkstore

import (
	"context"

	"github.com/graphweave/graphweave/internal/types"
)

// New constructs the chunk store backend selected by cfg.
func New(_ context.Context, cfg Config) (ChunkStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Store {
	case "memory":
		return NewMemoryChunkStore(cfg.Dimensions), nil
	case "sqlite":
		return NewSqliteChunkStore(cfg.Path, cfg.Dimensions)
	default:
		return nil, types.NewErrorf(types.CONFIG_VALIDATION_FAILED, "unknown chunk store backend %q", cfg.Store)
	}
}
