package chunkstore

import (
	"context"
	"time"

	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

// TimeoutChunkStore wraps a ChunkStore so every call carries its own
// deadline. A hung backend query then fails that one call instead of
// consuming the whole request budget.
type TimeoutChunkStore struct {
	inner   ChunkStore
	timeout time.Duration
}

// NewTimeoutChunkStore wraps store with a per-call timeout.
func NewTimeoutChunkStore(store ChunkStore, timeout time.Duration) *TimeoutChunkStore {
	return &TimeoutChunkStore{inner: store, timeout: timeout}
}

func (t *TimeoutChunkStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, t.timeout)
}

func (t *TimeoutChunkStore) AddChunk(ctx context.Context, chunk *knowledge.Chunk, linkedLabel string) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.AddChunk(ctx, chunk, linkedLabel)
}

func (t *TimeoutChunkStore) AddBatch(ctx context.Context, chunks []*knowledge.Chunk, linkedLabels []string) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.AddBatch(ctx, chunks, linkedLabels)
}

func (t *TimeoutChunkStore) GetChunk(ctx context.Context, id types.ID) (*knowledge.Chunk, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.GetChunk(ctx, id)
}

func (t *TimeoutChunkStore) FindTopKSimilar(ctx context.Context, embedding []float64, k int) ([]ScoredChunk, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.FindTopKSimilar(ctx, embedding, k)
}

func (t *TimeoutChunkStore) FindTopKSimilarWithLabelFilter(ctx context.Context, embedding []float64, k int, label string) ([]ScoredChunk, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.FindTopKSimilarWithLabelFilter(ctx, embedding, k, label)
}

func (t *TimeoutChunkStore) FindByLinkedNodeID(ctx context.Context, nodeID types.ID) ([]*knowledge.Chunk, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.FindByLinkedNodeID(ctx, nodeID)
}

func (t *TimeoutChunkStore) Stats(ctx context.Context) (Stats, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.Stats(ctx)
}

func (t *TimeoutChunkStore) Health(ctx context.Context) types.HealthStatus {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.Health(ctx)
}

func (t *TimeoutChunkStore) Close(ctx context.Context) error {
	return t.inner.Close(ctx)
}
