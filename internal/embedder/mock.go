package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/graphweave/graphweave/internal/types"
)

// MockEmbedder produces deterministic pseudo-embeddings derived from a
// hash of the input text. The same text always maps to the same unit
// vector, so similarity comparisons are stable across runs. It is used
// in tests and for offline development without a provider.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder creates a mock embedder producing vectors of the
// given width.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 8
	}
	return &MockEmbedder{dimensions: dimensions}
}

func (e *MockEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, types.NewError(types.VALIDATION_FAILED, "text is empty")
	}
	vec := make([]float64, e.dimensions)
	seed := sha256.Sum256([]byte(text))
	var norm float64
	for i := range vec {
		// Stretch the 32-byte digest by rehashing with the index.
		h := sha256.Sum256(append(seed[:], byte(i), byte(i>>8)))
		v := float64(binary.LittleEndian.Uint64(h[:8]))/math.MaxUint64*2 - 1
		vec[i] = v
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *MockEmbedder) Model() string {
	return "mock"
}

func (e *MockEmbedder) Health(_ context.Context) types.HealthStatus {
	return types.Healthy()
}
