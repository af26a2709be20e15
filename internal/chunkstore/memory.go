package chunkstore

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

// MemoryChunkStore is a brute-force in-memory vector index. Every query
// scans all chunks and ranks them by cosine similarity, which is exact
// and fast enough for corpora in the tens of thousands.
type MemoryChunkStore struct {
	mu         sync.RWMutex
	chunks     map[types.ID]*memoryEntry
	dimensions int
	logger     *slog.Logger
}

type memoryEntry struct {
	chunk       *knowledge.Chunk
	linkedLabel string
}

// NewMemoryChunkStore creates an empty in-memory chunk store. dimensions
// of zero disables embedding width validation.
func NewMemoryChunkStore(dimensions int) *MemoryChunkStore {
	return &MemoryChunkStore{
		chunks:     make(map[types.ID]*memoryEntry),
		dimensions: dimensions,
		logger:     slog.Default().With("component", "chunkstore.memory"),
	}
}

func (s *MemoryChunkStore) AddChunk(_ context.Context, chunk *knowledge.Chunk, linkedLabel string) error {
	if chunk == nil {
		return types.NewError(types.VALIDATION_FAILED, "chunk must not be nil")
	}
	if err := chunk.Validate(s.dimensions); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[chunk.ID] = &memoryEntry{chunk: chunk.Clone(), linkedLabel: linkedLabel}
	return nil
}

func (s *MemoryChunkStore) AddBatch(ctx context.Context, chunks []*knowledge.Chunk, linkedLabels []string) error {
	if len(chunks) != len(linkedLabels) {
		return types.NewErrorf(types.VALIDATION_FAILED,
			"chunk and label counts differ: %d vs %d", len(chunks), len(linkedLabels))
	}
	for i, chunk := range chunks {
		if err := s.AddChunk(ctx, chunk, linkedLabels[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryChunkStore) GetChunk(_ context.Context, id types.ID) (*knowledge.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.chunks[id]
	if !ok {
		return nil, types.NewErrorf(types.CHUNK_NOT_FOUND, "chunk %s not found", id)
	}
	return entry.chunk.Clone(), nil
}

func (s *MemoryChunkStore) FindTopKSimilar(ctx context.Context, embedding []float64, k int) ([]ScoredChunk, error) {
	return s.search(ctx, embedding, k, func(*memoryEntry) bool { return true })
}

func (s *MemoryChunkStore) FindTopKSimilarWithLabelFilter(ctx context.Context, embedding []float64, k int, label string) ([]ScoredChunk, error) {
	return s.search(ctx, embedding, k, func(e *memoryEntry) bool { return e.linkedLabel == label })
}

func (s *MemoryChunkStore) search(_ context.Context, embedding []float64, k int, match func(*memoryEntry) bool) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, types.NewError(types.VALIDATION_FAILED, "k must be positive")
	}
	if len(embedding) == 0 {
		return nil, types.NewError(types.VALIDATION_FAILED, "query embedding must not be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]ScoredChunk, 0, len(s.chunks))
	for _, entry := range s.chunks {
		if !match(entry) {
			continue
		}
		score, err := CosineSimilarity(embedding, entry.chunk.Embedding)
		if err != nil {
			// Dimension mismatches can only appear when width validation
			// was disabled; skip rather than fail the whole query.
			s.logger.Warn("skipping incomparable chunk",
				"chunk_id", entry.chunk.ID, "error", err)
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: entry.chunk.Clone(), Score: score})
	}

	sortScored(scored)
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *MemoryChunkStore) FindByLinkedNodeID(_ context.Context, nodeID types.ID) ([]*knowledge.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*knowledge.Chunk
	for _, entry := range s.chunks {
		if entry.chunk.LinkedNodeID == nodeID {
			out = append(out, entry.chunk.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryChunkStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{ChunkCount: int64(len(s.chunks))}
	for _, entry := range s.chunks {
		if entry.chunk.IsLinked() {
			stats.LinkedCount++
		}
	}
	return stats, nil
}

func (s *MemoryChunkStore) Health(_ context.Context) types.HealthStatus {
	return types.Healthy()
}

func (s *MemoryChunkStore) Close(_ context.Context) error {
	return nil
}

// sortScored orders by score descending, breaking ties on chunk ID so
// equal-similarity results are deterministic.
func sortScored(scored []ScoredChunk) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.ID < scored[j].Chunk.ID
	})
}
