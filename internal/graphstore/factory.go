package graphstore

import (
	"context"

	"github.com/graphweave/graphweave/internal/types"
)

// New creates a GraphStore backend from configuration.
// The backend is selected by config.Store: "memory", "sqlite", or "neo4j".
func New(ctx context.Context, config Config) (GraphStore, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Store {
	case "memory":
		return NewMemoryGraphStore(), nil
	case "sqlite":
		return NewSqliteGraphStore(config.Path)
	case "neo4j":
		return NewNeo4jGraphStore(ctx, config.Neo4j)
	default:
		// Validate already rejected unknown stores.
		return nil, types.NewErrorf(types.CONFIG_VALIDATION_FAILED, "unknown graph store %q", config.Store)
	}
}
