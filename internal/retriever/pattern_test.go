package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

func prescribedPattern(ranking RankingStrategy, constraints ...Constraint) GraphPattern {
	return GraphPattern{
		Steps: []TraversalStep{
			{SourceLabel: "Patient", Relation: "PRESCRIBED", TargetLabel: "Drug", Index: 0},
		},
		Constraints: constraints,
		Ranking:     ranking,
	}
}

func TestPatternMatch_SingleStep(t *testing.T) {
	f := newFixture(t)
	engine := &patternEngine{graph: f.graph, chunks: f.chunks, weights: DefaultHybridWeights()}

	nodes, edges, err := engine.match(context.Background(),
		[]types.ID{f.patient.ID}, []GraphPattern{prescribedPattern(RankPathLength)}, nil, 10)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, f.patient.ID, nodes[0].ID)
	assert.Equal(t, f.drug.ID, nodes[1].ID)
	require.Len(t, edges, 1)
	assert.Equal(t, "PRESCRIBED", edges[0].RelationName)
}

func TestPatternMatch_MultiHop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Extend the graph with Drug-TREATS->Condition so a two-step pattern
	// can complete.
	require.NoError(t, f.graph.AddEdge(ctx, knowledge.NewEdge("TREATS", f.drug.ID, f.condition.ID)))

	pattern := GraphPattern{
		Steps: []TraversalStep{
			{SourceLabel: "Patient", Relation: "PRESCRIBED", TargetLabel: "Drug", Index: 0},
			{SourceLabel: "Drug", Relation: "TREATS", TargetLabel: "Condition", Index: 1},
		},
		Ranking: RankPathLength,
	}
	engine := &patternEngine{graph: f.graph, chunks: f.chunks, weights: DefaultHybridWeights()}

	nodes, edges, err := engine.match(ctx, []types.ID{f.patient.ID}, []GraphPattern{pattern}, nil, 10)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, f.condition.ID, nodes[2].ID)
	assert.Len(t, edges, 2)
}

func TestPatternMatch_NoPartialCredit(t *testing.T) {
	f := newFixture(t)

	// The second step cannot match: no TREATS edge exists.
	pattern := GraphPattern{
		Steps: []TraversalStep{
			{SourceLabel: "Patient", Relation: "PRESCRIBED", TargetLabel: "Drug", Index: 0},
			{SourceLabel: "Drug", Relation: "TREATS", TargetLabel: "Condition", Index: 1},
		},
		Ranking: RankPathLength,
	}
	engine := &patternEngine{graph: f.graph, chunks: f.chunks, weights: DefaultHybridWeights()}

	nodes, edges, err := engine.match(context.Background(),
		[]types.ID{f.patient.ID}, []GraphPattern{pattern}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.Empty(t, edges)
}

func TestPatternMatch_ConstraintsFilter(t *testing.T) {
	f := newFixture(t)
	engine := &patternEngine{graph: f.graph, chunks: f.chunks, weights: DefaultHybridWeights()}

	passing := prescribedPattern(RankPathLength,
		Constraint{Label: "Drug", Property: "name", Type: ConstraintEquals, Value: "Metformin"})
	nodes, _, err := engine.match(context.Background(),
		[]types.ID{f.patient.ID}, []GraphPattern{passing}, nil, 10)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	failing := prescribedPattern(RankPathLength,
		Constraint{Label: "Drug", Property: "name", Type: ConstraintEquals, Value: "Insulin"})
	nodes, _, err = engine.match(context.Background(),
		[]types.ID{f.patient.ID}, []GraphPattern{failing}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestPatternMatch_EdgeWeightRanking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Two prescriptions with different weights; the heavier one must rank
	// first. The existing unweighted PRESCRIBED edge defaults to 1.0.
	heavy := knowledge.NewNode("Drug").WithProperty("name", "Insulin")
	require.NoError(t, f.graph.AddNode(ctx, heavy))
	require.NoError(t, f.graph.AddEdge(ctx,
		knowledge.NewEdge("PRESCRIBED", f.patient.ID, heavy.ID).WithWeight(5)))

	engine := &patternEngine{graph: f.graph, chunks: f.chunks, weights: DefaultHybridWeights()}
	nodes, _, err := engine.match(ctx,
		[]types.ID{f.patient.ID}, []GraphPattern{prescribedPattern(RankEdgeWeight)}, nil, 10)
	require.NoError(t, err)

	// Flattening dedupes the shared patient node; the drug of the
	// best-ranked path comes right after it.
	require.GreaterOrEqual(t, len(nodes), 3)
	assert.Equal(t, f.patient.ID, nodes[0].ID)
	assert.Equal(t, heavy.ID, nodes[1].ID)
}

func TestPatternMatch_TieBreakTotalOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	engine := &patternEngine{graph: f.graph, chunks: f.chunks, weights: DefaultHybridWeights()}

	// Add a second drug so two single-hop paths tie on PATH_LENGTH score;
	// the lower node ID sequence must win.
	second := knowledge.NewNode("Drug").WithProperty("name", "Insulin")
	require.NoError(t, f.graph.AddNode(ctx, second))
	require.NoError(t, f.graph.AddEdge(ctx, knowledge.NewEdge("PRESCRIBED", f.patient.ID, second.ID)))

	first, _, err := engine.match(ctx,
		[]types.ID{f.patient.ID}, []GraphPattern{prescribedPattern(RankPathLength)}, nil, 10)
	require.NoError(t, err)
	again, _, err := engine.match(ctx,
		[]types.ID{f.patient.ID}, []GraphPattern{prescribedPattern(RankPathLength)}, nil, 10)
	require.NoError(t, err)

	require.Equal(t, len(first), len(again))
	for i := range first {
		assert.Equal(t, first[i].ID, again[i].ID)
	}

	lower, higher := f.drug.ID, second.ID
	if higher < lower {
		lower, higher = higher, lower
	}
	assert.Equal(t, lower, first[1].ID)
	assert.Equal(t, higher, first[2].ID)
}

func TestPatternMatch_SemanticRanking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Only f.drug has a linked chunk; with the query embedded from that
	// chunk's exact content its path must outrank the chunkless drug.
	other := knowledge.NewNode("Drug").WithProperty("name", "Insulin")
	require.NoError(t, f.graph.AddNode(ctx, other))
	require.NoError(t, f.graph.AddEdge(ctx, knowledge.NewEdge("PRESCRIBED", f.patient.ID, other.ID)))

	queryVec, err := f.embed.Embed(ctx, "Metformin is first-line")
	require.NoError(t, err)

	engine := &patternEngine{graph: f.graph, chunks: f.chunks, weights: DefaultHybridWeights()}
	nodes, _, err := engine.match(ctx,
		[]types.ID{f.patient.ID}, []GraphPattern{prescribedPattern(RankSemanticScore)}, queryVec, 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(nodes), 3)
	assert.Equal(t, f.drug.ID, nodes[1].ID)
}

func TestPatternMatch_SeedWithWrongLabelSkipped(t *testing.T) {
	f := newFixture(t)
	engine := &patternEngine{graph: f.graph, chunks: f.chunks, weights: DefaultHybridWeights()}

	nodes, _, err := engine.match(context.Background(),
		[]types.ID{f.condition.ID}, []GraphPattern{prescribedPattern(RankPathLength)}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestConstraint_Satisfied(t *testing.T) {
	node := knowledge.NewNode("Drug").
		WithProperty("name", "Metformin").
		WithProperty("dose_mg", 500)

	tests := []struct {
		name string
		c    Constraint
		want bool
	}{
		{"equals", Constraint{Label: "Drug", Property: "name", Type: ConstraintEquals, Value: "Metformin"}, true},
		{"equals mismatch", Constraint{Label: "Drug", Property: "name", Type: ConstraintEquals, Value: "Insulin"}, false},
		{"not equals", Constraint{Label: "Drug", Property: "name", Type: ConstraintNotEquals, Value: "Insulin"}, true},
		{"numeric equals across types", Constraint{Label: "Drug", Property: "dose_mg", Type: ConstraintEquals, Value: 500.0}, true},
		{"greater than", Constraint{Label: "Drug", Property: "dose_mg", Type: ConstraintGreaterThan, Value: 100}, true},
		{"greater or equal", Constraint{Label: "Drug", Property: "dose_mg", Type: ConstraintGreaterThanOrEqual, Value: 500}, true},
		{"less than", Constraint{Label: "Drug", Property: "dose_mg", Type: ConstraintLessThan, Value: 100}, false},
		{"less or equal", Constraint{Label: "Drug", Property: "dose_mg", Type: ConstraintLessThanOrEqual, Value: 500}, true},
		{"contains", Constraint{Label: "Drug", Property: "name", Type: ConstraintContains, Value: "form"}, true},
		{"starts with", Constraint{Label: "Drug", Property: "name", Type: ConstraintStartsWith, Value: "Met"}, true},
		{"ends with", Constraint{Label: "Drug", Property: "name", Type: ConstraintEndsWith, Value: "min"}, true},
		{"in", Constraint{Label: "Drug", Property: "name", Type: ConstraintIn, Value: []any{"Insulin", "Metformin"}}, true},
		{"not in", Constraint{Label: "Drug", Property: "name", Type: ConstraintIn, Value: []any{"Insulin"}}, false},
		{"exists", Constraint{Label: "Drug", Property: "name", Type: ConstraintExists}, true},
		{"missing property fails", Constraint{Label: "Drug", Property: "ghost", Type: ConstraintExists}, false},
		{"missing property passes not-equals", Constraint{Label: "Drug", Property: "ghost", Type: ConstraintNotEquals, Value: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Satisfied(node))
		})
	}
}

func TestConstraint_Validate(t *testing.T) {
	valid := Constraint{Label: "Drug", Property: "name", Type: ConstraintEquals, Value: "x"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, Constraint{Property: "name", Type: ConstraintEquals, Value: "x"}.Validate())
	assert.Error(t, Constraint{Label: "Drug", Type: ConstraintEquals, Value: "x"}.Validate())
	assert.Error(t, Constraint{Label: "Drug", Property: "name", Type: "LIKE", Value: "x"}.Validate())
	assert.Error(t, Constraint{Label: "Drug", Property: "name", Type: ConstraintEquals}.Validate())
	assert.NoError(t, Constraint{Label: "Drug", Property: "name", Type: ConstraintExists}.Validate())
}
