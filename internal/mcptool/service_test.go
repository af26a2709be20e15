package mcptool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/internal/chunkstore"
	"github.com/graphweave/graphweave/internal/config"
	"github.com/graphweave/graphweave/internal/embedder"
	"github.com/graphweave/graphweave/internal/graphstore"
	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/retriever"
	"github.com/graphweave/graphweave/internal/types"
)

func defaultRetrieval() config.RetrievalConfig {
	return config.RetrievalConfig{TopK: 10, MaxGraphNodes: 50, MaxTokenBudget: 4000, MinResults: 3}
}

func newTestService(t *testing.T, required ...string) *Service {
	t.Helper()
	ctx := context.Background()

	graph := graphstore.NewMemoryGraphStore()
	require.NoError(t, graph.Initialize(ctx, nil))
	chunks := chunkstore.NewMemoryChunkStore(8)
	embed := embedder.NewMockEmbedder(8)

	vec, err := embed.Embed(ctx, "Metformin is first-line")
	require.NoError(t, err)
	require.NoError(t, chunks.AddChunk(ctx, knowledge.NewChunk("Metformin is first-line", vec), ""))

	engine := retriever.New(graph, chunks, embed)
	return NewService(engine, defaultRetrieval(), config.MCPConfig{RequiredFields: required}, nil)
}

func TestRetrieveContext_VectorOnly(t *testing.T) {
	svc := newTestService(t, "textQuery")

	_, out, err := svc.RetrieveContext(context.Background(), nil,
		RetrieveContextInput{TextQuery: "metformin guidance"})
	require.NoError(t, err)

	assert.Equal(t, "VECTOR_ONLY", out.Strategy)
	assert.Equal(t, 1, out.ChunkCount)
	assert.Zero(t, out.NodeCount)
	assert.Contains(t, out.Context, "Metformin is first-line")
}

func TestRetrieveContext_RequiredFieldMissing(t *testing.T) {
	svc := newTestService(t, "textQuery", "topK")

	_, _, err := svc.RetrieveContext(context.Background(), nil,
		RetrieveContextInput{TextQuery: "metformin"})
	require.Error(t, err)
	assert.Equal(t, types.REQUIRED_FIELD_MISSING, types.CodeOf(err))
	assert.Contains(t, err.Error(), "topK")
}

func TestRetrieveContext_AppliesConfiguredDefaults(t *testing.T) {
	ctx := context.Background()
	graph := graphstore.NewMemoryGraphStore()
	require.NoError(t, graph.Initialize(ctx, nil))
	chunks := chunkstore.NewMemoryChunkStore(8)
	embed := embedder.NewMockEmbedder(8)
	for _, content := range []string{"passage one", "passage two"} {
		vec, err := embed.Embed(ctx, content)
		require.NoError(t, err)
		require.NoError(t, chunks.AddChunk(ctx, knowledge.NewChunk(content, vec), ""))
	}

	retrieval := defaultRetrieval()
	retrieval.TopK = 1
	svc := NewService(retriever.New(graph, chunks, embed), retrieval, config.MCPConfig{}, nil)

	// No topK in the call, so the configured default of one applies.
	_, out, err := svc.RetrieveContext(ctx, nil, RetrieveContextInput{TextQuery: "passage"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.ChunkCount)
}

func TestRetrieveContext_InvalidRequestSurfacesValidation(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.RetrieveContext(context.Background(), nil,
		RetrieveContextInput{TextQuery: "q", TopK: retriever.MaxTopK + 1})
	require.Error(t, err)
	assert.Equal(t, types.VALIDATION_FAILED, types.CodeOf(err))
}

func TestRetrieveContext_SanitizesEngineFailures(t *testing.T) {
	svc := newTestService(t)
	svc.engine = failingEngine{}

	_, _, err := svc.RetrieveContext(context.Background(), nil,
		RetrieveContextInput{TextQuery: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "correlation id")
	assert.NotContains(t, err.Error(), "connection refused")
}

func TestInputSchema_RequiredFollowsConfig(t *testing.T) {
	schema := inputSchema([]string{"textQuery", "topK"})
	assert.Equal(t, []string{"textQuery", "topK"}, schema.Required)
	for _, field := range []string{"textQuery", "graphQuery", "semanticKeywords", "topK", "maxTokenBudget", "maxGraphNodes"} {
		assert.Contains(t, schema.Properties, field)
	}

	empty := inputSchema(nil)
	assert.Empty(t, empty.Required)
}

type failingEngine struct{}

func (failingEngine) Retrieve(context.Context, *retriever.RetrievalRequest) (*retriever.RetrievalResult, error) {
	return nil, types.NewError(types.STORE_UNAVAILABLE, "connection refused by backend")
}

func (failingEngine) ExpandFromSeeds(context.Context, []types.ID, retriever.TraversalHint, int) (*retriever.RetrievalResult, error) {
	return nil, types.NewError(types.STORE_UNAVAILABLE, "connection refused by backend")
}

func (failingEngine) AssembleContext(*retriever.RetrievalResult, int) string { return "" }
