// Package chunkstore provides vector-indexed storage for text chunks.
// Chunks carry dense embeddings and may be linked to graph nodes; the
// store answers top-k cosine similarity queries, optionally filtered by
// the label of the linked node, and exact lookups by linked node ID.
package chunkstore

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

// ChunkStore is the contract every vector backend implements.
//
// Similarity results are ordered by descending cosine score with chunk ID
// as the tie-break, so identical corpora produce identical rankings.
type ChunkStore interface {
	// AddChunk stores or replaces a chunk. linkedLabel is the label of the
	// node the chunk is linked to, or empty for unlinked chunks; it is
	// recorded so label-filtered searches need no graph lookup.
	AddChunk(ctx context.Context, chunk *knowledge.Chunk, linkedLabel string) error

	// AddBatch stores multiple chunks. Labels are positional and must have
	// the same length as chunks.
	AddBatch(ctx context.Context, chunks []*knowledge.Chunk, linkedLabels []string) error

	// GetChunk returns the chunk with the given ID, or CHUNK_NOT_FOUND.
	GetChunk(ctx context.Context, id types.ID) (*knowledge.Chunk, error)

	// FindTopKSimilar returns up to k chunks ranked by cosine similarity
	// to the query embedding.
	FindTopKSimilar(ctx context.Context, embedding []float64, k int) ([]ScoredChunk, error)

	// FindTopKSimilarWithLabelFilter is FindTopKSimilar restricted to
	// chunks whose linked node carries the given label.
	FindTopKSimilarWithLabelFilter(ctx context.Context, embedding []float64, k int, label string) ([]ScoredChunk, error)

	// FindByLinkedNodeID returns all chunks linked to the given node,
	// ordered by chunk ID.
	FindByLinkedNodeID(ctx context.Context, nodeID types.ID) ([]*knowledge.Chunk, error)

	Stats(ctx context.Context) (Stats, error)
	Health(ctx context.Context) types.HealthStatus
	Close(ctx context.Context) error
}

// ScoredChunk pairs a chunk with its similarity to a query embedding.
type ScoredChunk struct {
	Chunk *knowledge.Chunk
	Score float64
}

// Stats reports aggregate counts for a chunk store.
type Stats struct {
	ChunkCount  int64 `json:"chunk_count"`
	LinkedCount int64 `json:"linked_count"`
}

// Config selects and parameterizes a chunk store backend.
type Config struct {
	// Store is the backend name: "memory" or "sqlite".
	Store string `yaml:"store"`

	// Path is the database file for the sqlite backend.
	Path string `yaml:"path"`

	// Dimensions is the expected embedding width. Zero disables the check.
	Dimensions int `yaml:"dimensions"`

	// QueryTimeout bounds each individual store call so one hung query
	// cannot consume the whole request budget.
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// ApplyDefaults fills unset fields with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Store == "" {
		c.Store = "memory"
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 10 * time.Second
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	switch c.Store {
	case "memory":
	case "sqlite":
		if c.Path == "" {
			return types.NewError(types.CONFIG_VALIDATION_FAILED, "chunk store path is required for sqlite backend")
		}
	default:
		return types.NewErrorf(types.CONFIG_VALIDATION_FAILED, "unknown chunk store backend %q", c.Store)
	}
	if c.Dimensions < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "dimensions must not be negative")
	}
	return nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// It returns an error when the vectors differ in length or either has
// zero magnitude.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("vectors must not be empty")
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("zero-magnitude vector")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
