package chunkstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/internal/knowledge"
)

// hangingChunkStore blocks every search until its context is cancelled.
type hangingChunkStore struct {
	ChunkStore
}

func (s *hangingChunkStore) FindTopKSimilar(ctx context.Context, _ []float64, _ int) ([]ScoredChunk, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestTimeoutChunkStore_BoundsEachCall(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewTimeoutChunkStore(&hangingChunkStore{}, 20*time.Millisecond)

	_, err := store.FindTopKSimilar(parent, []float64{1, 0, 0}, 5)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoError(t, parent.Err(), "request context stays live after a slow call")
}

func TestTimeoutChunkStore_PassesFastCallsThrough(t *testing.T) {
	ctx := context.Background()
	store := NewTimeoutChunkStore(NewMemoryChunkStore(3), time.Second)

	chunk := knowledge.NewChunk("metformin dosing", []float64{1, 0, 0})
	require.NoError(t, store.AddChunk(ctx, chunk, ""))

	scored, err := store.FindTopKSimilar(ctx, []float64{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, chunk.ID, scored[0].Chunk.ID)
}
