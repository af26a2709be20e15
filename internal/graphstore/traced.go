package graphstore

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

// TracedGraphStore wraps a GraphStore with OpenTelemetry spans for all
// read operations on the retrieval path.
type TracedGraphStore struct {
	inner  GraphStore
	tracer trace.Tracer
}

// NewTracedGraphStore wraps store with tracing using the given tracer.
func NewTracedGraphStore(store GraphStore, tracer trace.Tracer) *TracedGraphStore {
	return &TracedGraphStore{inner: store, tracer: tracer}
}

func (t *TracedGraphStore) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *TracedGraphStore) Initialize(ctx context.Context, relationTypes []knowledge.RelationType) error {
	ctx, span := t.span(ctx, "graphstore.Initialize",
		attribute.Int("relation_types", len(relationTypes)))
	err := t.inner.Initialize(ctx, relationTypes)
	end(span, err)
	return err
}

func (t *TracedGraphStore) AddNode(ctx context.Context, node *knowledge.Node) error {
	ctx, span := t.span(ctx, "graphstore.AddNode", attribute.String("label", node.Label))
	err := t.inner.AddNode(ctx, node)
	end(span, err)
	return err
}

func (t *TracedGraphStore) AddEdge(ctx context.Context, edge *knowledge.Edge) error {
	ctx, span := t.span(ctx, "graphstore.AddEdge", attribute.String("relation", edge.RelationName))
	err := t.inner.AddEdge(ctx, edge)
	end(span, err)
	return err
}

func (t *TracedGraphStore) GetNode(ctx context.Context, id types.ID) (*knowledge.Node, error) {
	ctx, span := t.span(ctx, "graphstore.GetNode")
	node, err := t.inner.GetNode(ctx, id)
	end(span, err)
	return node, err
}

func (t *TracedGraphStore) GetEdgesForNode(ctx context.Context, id types.ID) ([]*knowledge.Edge, error) {
	ctx, span := t.span(ctx, "graphstore.GetEdgesForNode")
	edges, err := t.inner.GetEdgesForNode(ctx, id)
	if err == nil {
		span.SetAttributes(attribute.Int("edges", len(edges)))
	}
	end(span, err)
	return edges, err
}

func (t *TracedGraphStore) FindNodesByLabel(ctx context.Context, label string) ([]*knowledge.Node, error) {
	ctx, span := t.span(ctx, "graphstore.FindNodesByLabel", attribute.String("label", label))
	nodes, err := t.inner.FindNodesByLabel(ctx, label)
	if err == nil {
		span.SetAttributes(attribute.Int("nodes", len(nodes)))
	}
	end(span, err)
	return nodes, err
}

func (t *TracedGraphStore) FindNodesByProperty(ctx context.Context, label, key string, value any) ([]*knowledge.Node, error) {
	ctx, span := t.span(ctx, "graphstore.FindNodesByProperty",
		attribute.String("label", label), attribute.String("key", key))
	nodes, err := t.inner.FindNodesByProperty(ctx, label, key, value)
	if err == nil {
		span.SetAttributes(attribute.Int("nodes", len(nodes)))
	}
	end(span, err)
	return nodes, err
}

func (t *TracedGraphStore) ExtractSubgraph(ctx context.Context, seedIDs []types.ID, maxDepth int) (*Subgraph, error) {
	ctx, span := t.span(ctx, "graphstore.ExtractSubgraph",
		attribute.Int("seeds", len(seedIDs)), attribute.Int("max_depth", maxDepth))
	sub, err := t.inner.ExtractSubgraph(ctx, seedIDs, maxDepth)
	if err == nil {
		span.SetAttributes(
			attribute.Int("nodes", len(sub.Nodes)),
			attribute.Int("edges", len(sub.Edges)))
	}
	end(span, err)
	return sub, err
}

func (t *TracedGraphStore) Registry() knowledge.RelationRegistry {
	return t.inner.Registry()
}

func (t *TracedGraphStore) Stats(ctx context.Context) (Stats, error) {
	ctx, span := t.span(ctx, "graphstore.Stats")
	stats, err := t.inner.Stats(ctx)
	end(span, err)
	return stats, err
}

func (t *TracedGraphStore) Health(ctx context.Context) types.HealthStatus {
	return t.inner.Health(ctx)
}

func (t *TracedGraphStore) Close(ctx context.Context) error {
	return t.inner.Close(ctx)
}
