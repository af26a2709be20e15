package chunkstore

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

// TracedChunkStore wraps a ChunkStore with OpenTelemetry spans.
type TracedChunkStore struct {
	inner  ChunkStore
	tracer trace.Tracer
}

// NewTracedChunkStore wraps store with tracing using the given tracer.
func NewTracedChunkStore(store ChunkStore, tracer trace.Tracer) *TracedChunkStore {
	return &TracedChunkStore{inner: store, tracer: tracer}
}

func (t *TracedChunkStore) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *TracedChunkStore) AddChunk(ctx context.Context, chunk *knowledge.Chunk, linkedLabel string) error {
	ctx, span := t.span(ctx, "chunkstore.AddChunk")
	err := t.inner.AddChunk(ctx, chunk, linkedLabel)
	endSpan(span, err)
	return err
}

func (t *TracedChunkStore) AddBatch(ctx context.Context, chunks []*knowledge.Chunk, linkedLabels []string) error {
	ctx, span := t.span(ctx, "chunkstore.AddBatch", attribute.Int("chunks", len(chunks)))
	err := t.inner.AddBatch(ctx, chunks, linkedLabels)
	endSpan(span, err)
	return err
}

func (t *TracedChunkStore) GetChunk(ctx context.Context, id types.ID) (*knowledge.Chunk, error) {
	ctx, span := t.span(ctx, "chunkstore.GetChunk", attribute.String("chunk_id", id.String()))
	chunk, err := t.inner.GetChunk(ctx, id)
	endSpan(span, err)
	return chunk, err
}

func (t *TracedChunkStore) FindTopKSimilar(ctx context.Context, embedding []float64, k int) ([]ScoredChunk, error) {
	ctx, span := t.span(ctx, "chunkstore.FindTopKSimilar", attribute.Int("k", k))
	scored, err := t.inner.FindTopKSimilar(ctx, embedding, k)
	span.SetAttributes(attribute.Int("results", len(scored)))
	endSpan(span, err)
	return scored, err
}

func (t *TracedChunkStore) FindTopKSimilarWithLabelFilter(ctx context.Context, embedding []float64, k int, label string) ([]ScoredChunk, error) {
	ctx, span := t.span(ctx, "chunkstore.FindTopKSimilarWithLabelFilter",
		attribute.Int("k", k), attribute.String("label", label))
	scored, err := t.inner.FindTopKSimilarWithLabelFilter(ctx, embedding, k, label)
	span.SetAttributes(attribute.Int("results", len(scored)))
	endSpan(span, err)
	return scored, err
}

func (t *TracedChunkStore) FindByLinkedNodeID(ctx context.Context, nodeID types.ID) ([]*knowledge.Chunk, error) {
	ctx, span := t.span(ctx, "chunkstore.FindByLinkedNodeID",
		attribute.String("node_id", nodeID.String()))
	chunks, err := t.inner.FindByLinkedNodeID(ctx, nodeID)
	span.SetAttributes(attribute.Int("results", len(chunks)))
	endSpan(span, err)
	return chunks, err
}

func (t *TracedChunkStore) Stats(ctx context.Context) (Stats, error) {
	ctx, span := t.span(ctx, "chunkstore.Stats")
	stats, err := t.inner.Stats(ctx)
	endSpan(span, err)
	return stats, err
}

func (t *TracedChunkStore) Health(ctx context.Context) types.HealthStatus {
	return t.inner.Health(ctx)
}

func (t *TracedChunkStore) Close(ctx context.Context) error {
	return t.inner.Close(ctx)
}
