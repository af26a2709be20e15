package retriever

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/graphweave/graphweave/internal/types"
)

// TracedService wraps a Service with OpenTelemetry spans around the
// retrieval entry points.
type TracedService struct {
	inner  Service
	tracer trace.Tracer
}

// NewTracedService wraps svc with tracing using the given tracer.
func NewTracedService(svc Service, tracer trace.Tracer) *TracedService {
	return &TracedService{inner: svc, tracer: tracer}
}

func (t *TracedService) Retrieve(ctx context.Context, req *RetrievalRequest) (*RetrievalResult, error) {
	attrs := []attribute.KeyValue{}
	if req != nil {
		attrs = append(attrs,
			attribute.Int("top_k", req.TopK()),
			attribute.Int("max_graph_nodes", req.MaxGraphNodes()),
			attribute.Bool("has_graph_query", req.HasGraphQuery()))
	}
	ctx, span := t.tracer.Start(ctx, "retriever.Retrieve", trace.WithAttributes(attrs...))
	defer span.End()

	result, err := t.inner.Retrieve(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("strategy", string(result.Strategy)),
		attribute.Int("nodes", len(result.Nodes)),
		attribute.Int("edges", len(result.Edges)),
		attribute.Int("chunks", len(result.Chunks)))
	return result, nil
}

func (t *TracedService) ExpandFromSeeds(ctx context.Context, seeds []types.ID, hint TraversalHint, maxGraphNodes int) (*RetrievalResult, error) {
	ctx, span := t.tracer.Start(ctx, "retriever.ExpandFromSeeds", trace.WithAttributes(
		attribute.Int("seeds", len(seeds)),
		attribute.Int("max_depth", hint.MaxDepth)))
	defer span.End()

	result, err := t.inner.ExpandFromSeeds(ctx, seeds, hint, maxGraphNodes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("nodes", len(result.Nodes)))
	return result, nil
}

func (t *TracedService) AssembleContext(result *RetrievalResult, tokenBudget int) string {
	return t.inner.AssembleContext(result, tokenBudget)
}
