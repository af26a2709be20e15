package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/internal/chunkstore"
	"github.com/graphweave/graphweave/internal/embedder"
	"github.com/graphweave/graphweave/internal/graphstore"
	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

const testDims = 8

type fixture struct {
	graph  *graphstore.MemoryGraphStore
	chunks *chunkstore.MemoryChunkStore
	embed  embedder.Embedder
	svc    *Retriever

	patient   *knowledge.Node
	condition *knowledge.Node
	drug      *knowledge.Node
}

// newFixture builds the scenario used throughout: Patient P1 has
// Diabetes and is prescribed Metformin, with a dosing chunk linked to
// the drug and an identity chunk linked to the patient.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	graph := graphstore.NewMemoryGraphStore()
	require.NoError(t, graph.Initialize(ctx, []knowledge.RelationType{
		knowledge.NewRelationType("HAS_CONDITION", "Patient", "Condition"),
		knowledge.NewRelationType("PRESCRIBED", "Patient", "Drug"),
	}))
	chunks := chunkstore.NewMemoryChunkStore(testDims)
	embed := embedder.NewMockEmbedder(testDims)

	f := &fixture{
		graph:  graph,
		chunks: chunks,
		embed:  embed,
		svc:    New(graph, chunks, embed),
	}

	f.patient = knowledge.NewNode("Patient").WithProperty("name", "P1")
	f.condition = knowledge.NewNode("Condition").WithProperty("name", "Diabetes")
	f.drug = knowledge.NewNode("Drug").WithProperty("name", "Metformin")
	for _, node := range []*knowledge.Node{f.patient, f.condition, f.drug} {
		require.NoError(t, graph.AddNode(ctx, node))
	}
	require.NoError(t, graph.AddEdge(ctx, knowledge.NewEdge("HAS_CONDITION", f.patient.ID, f.condition.ID)))
	require.NoError(t, graph.AddEdge(ctx, knowledge.NewEdge("PRESCRIBED", f.patient.ID, f.drug.ID)))

	f.addLinkedChunk(t, "P1", f.patient.ID, "Patient")
	f.addLinkedChunk(t, "Metformin is first-line", f.drug.ID, "Drug")
	return f
}

func (f *fixture) addLinkedChunk(t *testing.T, content string, nodeID types.ID, label string) *knowledge.Chunk {
	t.Helper()
	vec, err := f.embed.Embed(context.Background(), content)
	require.NoError(t, err)
	chunk := knowledge.NewChunk(content, vec).LinkedTo(nodeID)
	require.NoError(t, f.chunks.AddChunk(context.Background(), chunk, label))
	return chunk
}

func patientQuery(maxDepth int) GraphQuery {
	return GraphQuery{
		Targets:   []ResolutionTarget{{Description: "P1", TypeHint: "Patient"}},
		Traversal: &TraversalHint{MaxDepth: maxDepth},
	}
}

func TestNewRequest_DefaultsAndBounds(t *testing.T) {
	req, err := NewRequest("diabetes treatment")
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, req.TopK())
	assert.Equal(t, DefaultMaxGraphNodes, req.MaxGraphNodes())
	assert.Equal(t, DefaultMaxTokenBudget, req.MaxTokenBudget())
	assert.Equal(t, DefaultMinResults, req.MinResults())

	_, err = NewRequest("")
	require.Error(t, err)
	assert.Equal(t, types.VALIDATION_FAILED, types.CodeOf(err))

	_, err = NewRequest("q", WithTopK(MaxTopK+1))
	assert.Error(t, err)

	_, err = NewRequest("q", WithMaxGraphNodes(0))
	assert.Error(t, err)

	_, err = NewRequest("", WithGraphQuery(patientQuery(2)))
	assert.NoError(t, err)

	_, err = NewRequest("q", WithGraphQuery(GraphQuery{
		Targets:   []ResolutionTarget{{Description: "x"}},
		Traversal: &TraversalHint{MaxDepth: MaxDepthCeiling + 1},
	}))
	assert.Error(t, err)
}

func TestNewRequest_DefensiveCopies(t *testing.T) {
	query := patientQuery(2)
	req, err := NewRequest("q", WithGraphQuery(query))
	require.NoError(t, err)

	// Mutating the caller's copy after submission must not affect the
	// request.
	query.Targets[0].Description = "mutated"
	query.Traversal.MaxDepth = 9

	got := req.GraphQuery()
	assert.Equal(t, "P1", got.Targets[0].Description)
	assert.Equal(t, 2, got.Traversal.MaxDepth)

	// Mutating the returned copy must not affect the request either.
	got.Targets[0].Description = "also mutated"
	assert.Equal(t, "P1", req.GraphQuery().Targets[0].Description)
}

func TestRetrieve_VectorOnlyWithoutGraphQuery(t *testing.T) {
	f := newFixture(t)
	req, err := NewRequest("metformin guidance", WithTopK(5))
	require.NoError(t, err)

	result, err := f.svc.Retrieve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StrategyVectorOnly, result.Strategy)
	assert.Empty(t, result.Nodes)
	assert.Empty(t, result.Edges)
	assert.LessOrEqual(t, len(result.Chunks), 5)
	assert.NotEmpty(t, result.Chunks)
}

func TestRetrieve_EndToEndGraphOnly(t *testing.T) {
	f := newFixture(t)
	req, err := NewRequest("metformin",
		WithGraphQuery(patientQuery(2)), WithTopK(5))
	require.NoError(t, err)

	result, err := f.svc.Retrieve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StrategyGraphOnly, result.Strategy)

	ids := make(map[types.ID]bool)
	for _, node := range result.Nodes {
		ids[node.ID] = true
	}
	assert.True(t, ids[f.patient.ID])
	assert.True(t, ids[f.condition.ID])
	assert.True(t, ids[f.drug.ID])
	assert.Len(t, result.Edges, 2)

	contents := make([]string, 0, len(result.Chunks))
	for _, sc := range result.Chunks {
		contents = append(contents, sc.Chunk.Content)
	}
	assert.Contains(t, contents, "Metformin is first-line")
}

func TestRetrieve_FallbackWhenGraphTooSparse(t *testing.T) {
	ctx := context.Background()

	// A graph holding only the patient: one node plus one linked chunk is
	// below the default minimum of three, so the coordinator re-runs an
	// unconstrained vector search.
	graph := graphstore.NewMemoryGraphStore()
	require.NoError(t, graph.Initialize(ctx, nil))
	chunks := chunkstore.NewMemoryChunkStore(testDims)
	embed := embedder.NewMockEmbedder(testDims)
	f := &fixture{graph: graph, chunks: chunks, embed: embed, svc: New(graph, chunks, embed)}

	f.patient = knowledge.NewNode("Patient").WithProperty("name", "P1")
	require.NoError(t, graph.AddNode(ctx, f.patient))
	f.addLinkedChunk(t, "P1", f.patient.ID, "Patient")
	loose, err := embed.Embed(ctx, "general diabetes guidance")
	require.NoError(t, err)
	require.NoError(t, chunks.AddChunk(ctx, knowledge.NewChunk("general diabetes guidance", loose), ""))

	req, err := NewRequest("diabetes", WithGraphQuery(patientQuery(2)), WithTopK(5))
	require.NoError(t, err)

	result, err := f.svc.Retrieve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StrategyVectorOnly, result.Strategy)
	// Partial graph evidence stays attached.
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, f.patient.ID, result.Nodes[0].ID)
	// The unconstrained search sees the unlinked chunk too.
	assert.Len(t, result.Chunks, 2)
}

func TestRetrieve_PropertyFilterResolutionIsDeterministic(t *testing.T) {
	f := newFixture(t)
	query := GraphQuery{
		Targets: []ResolutionTarget{{
			TypeHint:       "Patient",
			PropertyFilter: map[string]any{"name": "P1"},
		}},
		Traversal: &TraversalHint{MaxDepth: 2},
	}
	req, err := NewRequest("metformin", WithGraphQuery(query))
	require.NoError(t, err)

	first, err := f.svc.Retrieve(context.Background(), req)
	require.NoError(t, err)
	second, err := f.svc.Retrieve(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, len(first.Nodes), len(second.Nodes))
	for i := range first.Nodes {
		assert.Equal(t, first.Nodes[i].ID, second.Nodes[i].ID)
	}
}

func TestRetrieve_RespectsMaxGraphNodes(t *testing.T) {
	f := newFixture(t)

	// Fan out more neighbors than the cap allows.
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		drug := knowledge.NewNode("Drug")
		require.NoError(t, f.graph.AddNode(ctx, drug))
		require.NoError(t, f.graph.AddEdge(ctx, knowledge.NewEdge("PRESCRIBED", f.patient.ID, drug.ID)))
	}

	req, err := NewRequest("metformin",
		WithGraphQuery(patientQuery(2)), WithMaxGraphNodes(4))
	require.NoError(t, err)

	result, err := f.svc.Retrieve(ctx, req)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Nodes), 4)
}

func TestRetrieve_RelationAllowListAndDirection(t *testing.T) {
	f := newFixture(t)
	query := patientQuery(2)
	query.Traversal.AllowedRelations = []string{"PRESCRIBED"}
	query.Traversal.Direction = DirectionOutbound

	req, err := NewRequest("metformin", WithGraphQuery(query), WithMinResults(1))
	require.NoError(t, err)

	result, err := f.svc.Retrieve(context.Background(), req)
	require.NoError(t, err)

	for _, node := range result.Nodes {
		assert.NotEqual(t, f.condition.ID, node.ID, "HAS_CONDITION hop should be filtered out")
	}
	for _, edge := range result.Edges {
		assert.Equal(t, "PRESCRIBED", edge.RelationName)
	}
}

func TestExpandFromSeeds(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.ExpandFromSeeds(context.Background(),
		[]types.ID{f.patient.ID}, TraversalHint{MaxDepth: 1}, 10)
	require.NoError(t, err)
	assert.Equal(t, StrategyExpansion, result.Strategy)
	assert.Len(t, result.Nodes, 3)
	assert.Empty(t, result.Chunks)

	_, err = f.svc.ExpandFromSeeds(context.Background(), nil, TraversalHint{MaxDepth: 1}, 10)
	require.Error(t, err)
	assert.Equal(t, types.VALIDATION_FAILED, types.CodeOf(err))
}

func TestRetrieve_UnregisteredRelationStillTraversable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := knowledge.NewNode("Note")
	require.NoError(t, f.graph.AddNode(ctx, other))
	require.NoError(t, f.graph.AddEdge(ctx, knowledge.NewEdge("ANNOTATED_BY", f.patient.ID, other.ID)))

	result, err := f.svc.ExpandFromSeeds(ctx, []types.ID{f.patient.ID}, TraversalHint{MaxDepth: 1}, 10)
	require.NoError(t, err)

	found := false
	for _, node := range result.Nodes {
		if node.ID == other.ID {
			found = true
		}
	}
	assert.True(t, found)
}
