package main

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/graphweave/graphweave/internal/chunkstore"
	"github.com/graphweave/graphweave/internal/config"
	"github.com/graphweave/graphweave/internal/embedder"
	"github.com/graphweave/graphweave/internal/graphstore"
	"github.com/graphweave/graphweave/internal/retriever"
)

// engine bundles the wired collaborators for one process lifetime.
type engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	graph   graphstore.GraphStore
	chunks  chunkstore.ChunkStore
	service retriever.Service

	tracerProvider *sdktrace.TracerProvider
}

// buildEngine loads configuration and wires the stores, the embedder
// and the retrieval service behind tracing decorators.
func buildEngine(ctx context.Context) (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := config.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	provider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(provider)
	tracer := provider.Tracer("graphweave")

	graph, err := graphstore.New(ctx, cfg.Graph)
	if err != nil {
		return nil, err
	}
	if err := graph.Initialize(ctx, cfg.RelationTypes()); err != nil {
		graph.Close(ctx)
		return nil, err
	}
	chunks, err := chunkstore.New(ctx, cfg.Chunks)
	if err != nil {
		graph.Close(ctx)
		return nil, err
	}
	embed, err := embedder.New(cfg.Embedding)
	if err != nil {
		graph.Close(ctx)
		chunks.Close(ctx)
		return nil, err
	}

	tracedGraph := graphstore.NewTracedGraphStore(
		graphstore.NewTimeoutGraphStore(graph, cfg.Graph.QueryTimeout), tracer)
	tracedChunks := chunkstore.NewTracedChunkStore(
		chunkstore.NewTimeoutChunkStore(chunks, cfg.Chunks.QueryTimeout), tracer)
	core := retriever.New(tracedGraph, tracedChunks, embed, retriever.WithLogger(logger))

	return &engine{
		cfg:            cfg,
		logger:         logger,
		graph:          tracedGraph,
		chunks:         tracedChunks,
		service:        retriever.NewTracedService(core, tracer),
		tracerProvider: provider,
	}, nil
}

// close releases the engine's resources.
func (e *engine) close(ctx context.Context) {
	if err := e.graph.Close(ctx); err != nil {
		e.logger.Warn("graph store close failed", "error", err)
	}
	if err := e.chunks.Close(ctx); err != nil {
		e.logger.Warn("chunk store close failed", "error", err)
	}
	if err := e.tracerProvider.Shutdown(ctx); err != nil {
		e.logger.Warn("tracer shutdown failed", "error", err)
	}
}
