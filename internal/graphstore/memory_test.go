package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

func newTestStore(t *testing.T) *MemoryGraphStore {
	t.Helper()
	store := NewMemoryGraphStore()
	err := store.Initialize(context.Background(), []knowledge.RelationType{
		knowledge.NewRelationType("HAS_CONDITION", "Patient", "Condition"),
		knowledge.NewRelationType("PRESCRIBED", "Patient", "Drug"),
		knowledge.NewRelationType("TREATS", "Drug", "Condition"),
	})
	require.NoError(t, err)
	return store
}

// buildChain creates P1 -HAS_CONDITION-> C1 and P1 -PRESCRIBED-> M1.
func buildChain(t *testing.T, store GraphStore) (patient, condition, drug *knowledge.Node) {
	t.Helper()
	ctx := context.Background()

	patient = knowledge.NewNode("Patient").WithProperty("name", "P1")
	condition = knowledge.NewNode("Condition").WithProperty("name", "Diabetes")
	drug = knowledge.NewNode("Drug").WithProperty("name", "Metformin")

	for _, n := range []*knowledge.Node{patient, condition, drug} {
		require.NoError(t, store.AddNode(ctx, n))
	}
	require.NoError(t, store.AddEdge(ctx, knowledge.NewEdge("HAS_CONDITION", patient.ID, condition.ID)))
	require.NoError(t, store.AddEdge(ctx, knowledge.NewEdge("PRESCRIBED", patient.ID, drug.ID)))
	return patient, condition, drug
}

func TestMemoryGraphStore_AddAndGetNode(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	node := knowledge.NewNode("Patient").WithProperty("name", "P1")
	require.NoError(t, store.AddNode(ctx, node))

	got, err := store.GetNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, node.ID, got.ID)
	assert.Equal(t, "P1", got.GetStringProperty("name"))

	// Returned snapshot is independent of the stored entity
	got.Properties["name"] = "mutated"
	again, err := store.GetNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, "P1", again.GetStringProperty("name"))
}

func TestMemoryGraphStore_GetNodeNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetNode(context.Background(), types.NewID())
	require.Error(t, err)
	assert.Equal(t, types.NODE_NOT_FOUND, types.CodeOf(err))
}

func TestMemoryGraphStore_LabelImmutable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	node := knowledge.NewNode("Patient")
	require.NoError(t, store.AddNode(ctx, node))

	relabeled := node.Clone()
	relabeled.Label = "Doctor"
	err := store.AddNode(ctx, relabeled)
	require.Error(t, err)
	assert.Equal(t, types.VALIDATION_FAILED, types.CodeOf(err))
}

func TestMemoryGraphStore_AddEdgeRequiresEndpoints(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	node := knowledge.NewNode("Patient")
	require.NoError(t, store.AddNode(ctx, node))

	err := store.AddEdge(ctx, knowledge.NewEdge("HAS_CONDITION", node.ID, types.NewID()))
	require.Error(t, err)
	assert.Equal(t, types.NODE_NOT_FOUND, types.CodeOf(err))
}

func TestMemoryGraphStore_GetEdgesForNode(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	patient, condition, _ := buildChain(t, store)

	edges, err := store.GetEdgesForNode(ctx, patient.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	edges, err = store.GetEdgesForNode(ctx, condition.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "HAS_CONDITION", edges[0].RelationName)
}

func TestMemoryGraphStore_FindNodesByProperty(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	patient, _, _ := buildChain(t, store)

	// Deterministic: same snapshot, same result, twice
	for i := 0; i < 2; i++ {
		nodes, err := store.FindNodesByProperty(ctx, "Patient", "name", "P1")
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.Equal(t, patient.ID, nodes[0].ID)
	}

	nodes, err := store.FindNodesByProperty(ctx, "Patient", "name", "nobody")
	require.NoError(t, err)
	assert.Empty(t, nodes)

	// Label mismatch excludes matching property values
	nodes, err = store.FindNodesByProperty(ctx, "Drug", "name", "P1")
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestMemoryGraphStore_FindNodesByProperty_NumericAcrossJSON(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	patient := knowledge.NewNode("Patient").WithProperty("age", 30)
	require.NoError(t, store.AddNode(ctx, patient))

	// JSON-decoded filters deliver numbers as float64; the int-typed
	// stored value must still match.
	nodes, err := store.FindNodesByProperty(ctx, "Patient", "age", float64(30))
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, patient.ID, nodes[0].ID)

	nodes, err = store.FindNodesByProperty(ctx, "Patient", "age", float64(31))
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestMemoryGraphStore_FindNodesByProperty_StructuredValue(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	codes := []any{"E11", "E12"}
	patient := knowledge.NewNode("Patient").WithProperty("codes", codes)
	require.NoError(t, store.AddNode(ctx, patient))

	// Slice-valued filters come straight out of JSON decoding and must
	// compare without panicking.
	nodes, err := store.FindNodesByProperty(ctx, "Patient", "codes", []any{"E11", "E12"})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, patient.ID, nodes[0].ID)

	nodes, err = store.FindNodesByProperty(ctx, "Patient", "codes", []any{"E11"})
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestMemoryGraphStore_ExtractSubgraph(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	patient, condition, drug := buildChain(t, store)

	sub, err := store.ExtractSubgraph(ctx, []types.ID{patient.ID}, 2)
	require.NoError(t, err)
	assert.Len(t, sub.Nodes, 3)
	assert.Len(t, sub.Edges, 2)
	assert.ElementsMatch(t, []types.ID{patient.ID, condition.ID, drug.ID}, sub.NodeIDs())
}

func TestMemoryGraphStore_ExtractSubgraph_DepthZero(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	patient, _, _ := buildChain(t, store)

	sub, err := store.ExtractSubgraph(ctx, []types.ID{patient.ID}, 0)
	require.NoError(t, err)
	require.Len(t, sub.Nodes, 1)
	assert.Equal(t, patient.ID, sub.Nodes[0].ID)
	assert.Empty(t, sub.Edges)
}

func TestMemoryGraphStore_ExtractSubgraph_UnknownSeedSkipped(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	patient, _, _ := buildChain(t, store)

	sub, err := store.ExtractSubgraph(ctx, []types.ID{types.NewID(), patient.ID}, 1)
	require.NoError(t, err)
	assert.Len(t, sub.Nodes, 3)
}

func TestMemoryGraphStore_UnregisteredRelationIsTraversable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	patient, _, _ := buildChain(t, store)

	other := knowledge.NewNode("Note")
	require.NoError(t, store.AddNode(ctx, other))
	// MENTIONED_IN was never registered; the store stays permissive.
	require.NoError(t, store.AddEdge(ctx, knowledge.NewEdge("MENTIONED_IN", patient.ID, other.ID)))

	sub, err := store.ExtractSubgraph(ctx, []types.ID{other.ID}, 1)
	require.NoError(t, err)
	assert.Len(t, sub.Nodes, 2)
}

func TestMemoryGraphStore_Stats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	buildChain(t, store)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.NodeCount)
	assert.Equal(t, int64(2), stats.EdgeCount)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory ok", Config{Store: "memory"}, false},
		{"sqlite requires path", Config{Store: "sqlite"}, true},
		{"sqlite ok", Config{Store: "sqlite", Path: "/tmp/graph.db"}, false},
		{"neo4j requires uri", Config{Store: "neo4j"}, true},
		{"unknown store", Config{Store: "dgraph"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.ApplyDefaults()
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNew_DefaultsToMemory(t *testing.T) {
	store, err := New(context.Background(), Config{})
	require.NoError(t, err)
	_, ok := store.(*MemoryGraphStore)
	assert.True(t, ok)
}
