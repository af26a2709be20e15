package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/internal/types"
)

func TestValidLabel(t *testing.T) {
	tests := []struct {
		label string
		want  bool
	}{
		{"Patient", true},
		{"lab_result_2", true},
		{"X", true},
		{"", false},
		{"has space", false},
		{"dash-ed", false},
		{"emoji🙂", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidLabel(tt.label))
		})
	}
}

func TestNode_Builder(t *testing.T) {
	node := NewNode("Patient").
		WithProperty("name", "P1").
		WithContent("Patient P1, 54 years old")

	require.NoError(t, node.Validate())
	assert.Equal(t, "Patient", node.Label)
	assert.Equal(t, "P1", node.GetStringProperty("name"))
	assert.Equal(t, "Patient P1, 54 years old", node.VectorizableContent)
	assert.Equal(t, int64(1), node.Version)
}

func TestNode_Validate(t *testing.T) {
	node := NewNode("bad label")
	err := node.Validate()
	require.Error(t, err)
	assert.Equal(t, types.VALIDATION_FAILED, types.CodeOf(err))
}

func TestNode_CloneIsDeep(t *testing.T) {
	node := NewNode("Drug").WithProperty("class", "biguanide")
	cloned := node.Clone()

	cloned.Properties["class"] = "mutated"
	assert.Equal(t, "biguanide", node.GetStringProperty("class"))
}

func TestEdge_NormalizesRelationName(t *testing.T) {
	edge := NewEdge("has_condition", types.NewID(), types.NewID())
	assert.Equal(t, "HAS_CONDITION", edge.RelationName)
	require.NoError(t, edge.Validate())
}

func TestEdge_EffectiveWeight(t *testing.T) {
	edge := NewEdge("PRESCRIBED", types.NewID(), types.NewID())
	assert.Equal(t, 1.0, edge.EffectiveWeight())

	edge.WithWeight(0.25)
	assert.Equal(t, 0.25, edge.EffectiveWeight())
}

func TestEdge_Other(t *testing.T) {
	src, dst := types.NewID(), types.NewID()
	edge := NewEdge("RELATED_TO", src, dst)

	assert.Equal(t, dst, edge.Other(src))
	assert.Equal(t, src, edge.Other(dst))
	assert.True(t, edge.Other(types.NewID()).IsZero())
	assert.True(t, edge.Touches(src))
	assert.False(t, edge.Touches(types.NewID()))
}

func TestRelationType_CanConnect(t *testing.T) {
	directed := NewRelationType("HAS_CONDITION", "Patient", "Condition")
	assert.True(t, directed.CanConnect("Patient", "Condition"))
	assert.False(t, directed.CanConnect("Condition", "Patient"))
	assert.False(t, directed.CanConnect("Patient", "Drug"))

	undirected := NewRelationType("RELATED_TO", "Condition", "Drug").Undirected()
	assert.True(t, undirected.CanConnect("Condition", "Drug"))
	assert.True(t, undirected.CanConnect("Drug", "Condition"))
	assert.False(t, undirected.CanConnect("Drug", "Drug"))
}

func TestNewRelationRegistry(t *testing.T) {
	registry, err := NewRelationRegistry([]RelationType{
		NewRelationType("HAS_CONDITION", "Patient", "Condition").WithCategory(SemanticAssociative),
		NewRelationType("prescribed", "Patient", "Drug"),
	})
	require.NoError(t, err)

	// Lookup is case-insensitive because names are normalized
	rt, ok := registry.Lookup("prescribed")
	require.True(t, ok)
	assert.Equal(t, "PRESCRIBED", rt.Name)

	_, ok = registry.Lookup("UNKNOWN")
	assert.False(t, ok)

	all := registry.All()
	require.Len(t, all, 2)
	assert.Equal(t, "HAS_CONDITION", all[0].Name)
}

func TestNewRelationRegistry_DuplicateName(t *testing.T) {
	_, err := NewRelationRegistry([]RelationType{
		NewRelationType("TREATS", "Drug", "Condition"),
		NewRelationType("treats", "Drug", "Condition"),
	})
	require.Error(t, err)
	assert.Equal(t, types.VALIDATION_FAILED, types.CodeOf(err))
}

func TestChunk_Validate(t *testing.T) {
	chunk := NewChunk("Metformin is first-line", []float64{0.1, 0.2, 0.3})

	require.NoError(t, chunk.Validate(3))
	require.NoError(t, chunk.Validate(0)) // dimension check skipped

	err := chunk.Validate(768)
	require.Error(t, err)

	empty := NewChunk("", []float64{0.1})
	require.Error(t, empty.Validate(1))
}

func TestChunk_Linking(t *testing.T) {
	nodeID := types.NewID()
	chunk := NewChunk("content", []float64{1, 0}).LinkedTo(nodeID)

	assert.True(t, chunk.IsLinked())
	assert.Equal(t, nodeID, chunk.LinkedNodeID)

	standalone := NewChunk("content", []float64{1, 0})
	assert.False(t, standalone.IsLinked())
}
