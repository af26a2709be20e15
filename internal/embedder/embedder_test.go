package embedder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/internal/types"
)

// flakyEmbedder fails the first failures calls to Embed, then succeeds.
type flakyEmbedder struct {
	*MockEmbedder
	failures int
	calls    int
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, types.NewError(types.EMBEDDING_FAILED, "provider unavailable").WithRetryable(true)
	}
	return f.MockEmbedder.Embed(ctx, text)
}

func testResilience() ResilienceConfig {
	return ResilienceConfig{
		MaxRetries:       3,
		InitialBackoff:   time.Millisecond,
		MaxBackoff:       time.Millisecond,
		CallTimeout:      time.Second,
		WindowSize:       4,
		FailureThreshold: 0.5,
		Cooldown:         50 * time.Millisecond,
		BatchConcurrency: 2,
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestMockEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := NewMockEmbedder(8)

	first, err := e.Embed(ctx, "metformin")
	require.NoError(t, err)
	second, err := e.Embed(ctx, "metformin")
	require.NoError(t, err)
	other, err := e.Embed(ctx, "insulin")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.Len(t, first, 8)

	// Unit vector.
	var norm float64
	for _, v := range first {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-9)
}

func TestMockEmbedder_RejectsEmptyText(t *testing.T) {
	_, err := NewMockEmbedder(8).Embed(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, types.VALIDATION_FAILED, types.CodeOf(err))
}

func TestResilientEmbedder_RetriesUntilSuccess(t *testing.T) {
	flaky := &flakyEmbedder{MockEmbedder: NewMockEmbedder(8), failures: 2}
	e := NewResilientEmbedder(flaky, testResilience())
	e.sleep = noSleep

	vec, err := e.Embed(context.Background(), "metformin")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
	assert.Equal(t, 3, flaky.calls)
}

func TestResilientEmbedder_ExhaustsRetries(t *testing.T) {
	flaky := &flakyEmbedder{MockEmbedder: NewMockEmbedder(8), failures: 100}
	e := NewResilientEmbedder(flaky, testResilience())
	e.sleep = noSleep

	_, err := e.Embed(context.Background(), "metformin")
	require.Error(t, err)
	assert.Equal(t, types.EMBEDDING_FAILED, types.CodeOf(err))
	assert.Equal(t, 4, flaky.calls) // initial attempt plus three retries
}

func TestResilientEmbedder_DoesNotRetryNonRetryable(t *testing.T) {
	e := NewResilientEmbedder(NewMockEmbedder(8), testResilience())
	e.sleep = noSleep

	_, err := e.Embed(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, types.VALIDATION_FAILED, types.CodeOf(err))
}

func TestResilientEmbedder_CircuitOpensAndRecovers(t *testing.T) {
	flaky := &flakyEmbedder{MockEmbedder: NewMockEmbedder(8), failures: 100}
	cfg := testResilience()
	e := NewResilientEmbedder(flaky, cfg)
	e.sleep = noSleep

	// Fill the window with failures until the circuit opens.
	for i := 0; i < 5; i++ {
		e.Embed(context.Background(), "metformin")
	}
	_, err := e.Embed(context.Background(), "metformin")
	require.Error(t, err)
	assert.Equal(t, types.EMBEDDING_CIRCUIT_OPEN, types.CodeOf(err))

	// After cooldown a trial call goes through; make the provider healthy
	// so it succeeds and closes the circuit.
	time.Sleep(cfg.Cooldown + 10*time.Millisecond)
	flaky.failures = 0
	vec, err := e.Embed(context.Background(), "metformin")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
}

func TestResilientEmbedder_BatchDropsFailedItems(t *testing.T) {
	e := NewResilientEmbedder(NewMockEmbedder(8), testResilience())
	e.sleep = noSleep

	// The empty text is invalid and gets dropped; the others survive.
	vectors, err := e.EmbedBatch(context.Background(), []string{"metformin", "", "insulin"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.NotNil(t, vectors[0])
	assert.Nil(t, vectors[1])
	assert.NotNil(t, vectors[2])
}

func TestResilientEmbedder_BatchFailsFastWhenCircuitOpen(t *testing.T) {
	flaky := &flakyEmbedder{MockEmbedder: NewMockEmbedder(8), failures: 100}
	e := NewResilientEmbedder(flaky, testResilience())
	e.sleep = noSleep

	for i := 0; i < 5; i++ {
		e.Embed(context.Background(), "metformin")
	}
	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, types.EMBEDDING_CIRCUIT_OPEN, types.CodeOf(err))
}

func TestFactory(t *testing.T) {
	e, err := New(Config{Provider: "mock", Dimensions: 8})
	require.NoError(t, err)
	assert.Equal(t, 8, e.Dimensions())
	assert.Equal(t, "mock", e.Model())

	_, err = New(Config{Provider: "cohere"})
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(err))
}
