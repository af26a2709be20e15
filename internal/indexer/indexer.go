// Package indexer is the write side of the engine: it validates and
// ingests nodes, edges and chunks into the stores, embedding
// vectorizable content on the way in. Relation registration and label
// compatibility are enforced here, at indexing time, so the read path
// can stay permissive.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/graphweave/graphweave/internal/chunkstore"
	"github.com/graphweave/graphweave/internal/embedder"
	"github.com/graphweave/graphweave/internal/graphstore"
	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

// Embedding fan-out bounds. Unbounded concurrency against an external
// embedding API risks rate-limit storms, so node and chunk batches each
// carry a hard cap.
const (
	nodeEmbedConcurrency  = 10
	chunkEmbedConcurrency = 20
)

// NodeInput describes one node to ingest. Non-empty vectorizable
// content is embedded and stored as a chunk linked to the new node.
type NodeInput struct {
	Label               string
	Properties          map[string]any
	VectorizableContent string
}

// EdgeInput describes one edge to ingest.
type EdgeInput struct {
	RelationName string
	SourceID     types.ID
	TargetID     types.ID
	Properties   map[string]any
	Weight       *float64
}

// ChunkInput describes one standalone or linked chunk to ingest.
type ChunkInput struct {
	Content      string
	LinkedNodeID types.ID
	Metadata     map[string]any
}

// DroppedItem records why one batch item was skipped.
type DroppedItem struct {
	Index  int
	Reason string
}

// BatchResult summarizes a batch ingest: how many items landed, which
// were dropped and why, and the IDs assigned to the survivors (zero ID
// at dropped positions).
type BatchResult struct {
	Indexed int
	Dropped []DroppedItem
	IDs     []types.ID
}

// Indexer ingests knowledge into the graph and chunk stores.
type Indexer struct {
	graph  graphstore.GraphStore
	chunks chunkstore.ChunkStore
	embed  embedder.Embedder
	logger *slog.Logger
}

// New builds an Indexer over its collaborators.
func New(graph graphstore.GraphStore, chunks chunkstore.ChunkStore, embed embedder.Embedder) *Indexer {
	return &Indexer{
		graph:  graph,
		chunks: chunks,
		embed:  embed,
		logger: slog.Default().With("component", "indexer"),
	}
}

// IndexNodes ingests a batch of nodes, embedding vectorizable content
// with bounded concurrency. A node whose embedding fails is still
// stored; only its linked chunk is dropped, and the drop is reported.
func (ix *Indexer) IndexNodes(ctx context.Context, inputs []NodeInput) (*BatchResult, error) {
	result := &BatchResult{IDs: make([]types.ID, len(inputs))}
	nodes := make([]*knowledge.Node, len(inputs))

	var mu sync.Mutex
	drop := func(index int, reason string) {
		mu.Lock()
		defer mu.Unlock()
		result.Dropped = append(result.Dropped, DroppedItem{Index: index, Reason: reason})
	}

	for i, input := range inputs {
		node := knowledge.NewNode(input.Label).WithContent(input.VectorizableContent)
		for key, value := range input.Properties {
			node = node.WithProperty(key, value)
		}
		if err := node.Validate(); err != nil {
			drop(i, err.Error())
			continue
		}
		nodes[i] = node
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(nodeEmbedConcurrency)
	embeddings := make([][]float64, len(inputs))
	for i, node := range nodes {
		if node == nil || node.VectorizableContent == "" {
			continue
		}
		g.Go(func() error {
			vec, err := ix.embed.Embed(gctx, node.VectorizableContent)
			if err != nil {
				ix.logger.Warn("node content embedding failed",
					"index", i, "label", node.Label, "error", err)
				drop(i, fmt.Sprintf("linked chunk dropped: %v", err))
				return nil
			}
			embeddings[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, node := range nodes {
		if node == nil {
			continue
		}
		if err := ix.graph.AddNode(ctx, node); err != nil {
			drop(i, err.Error())
			continue
		}
		result.IDs[i] = node.ID
		result.Indexed++

		if embeddings[i] == nil {
			continue
		}
		chunk := knowledge.NewChunk(node.VectorizableContent, embeddings[i]).LinkedTo(node.ID)
		if err := ix.chunks.AddChunk(ctx, chunk, node.Label); err != nil {
			ix.logger.Warn("linked chunk store failed", "node_id", node.ID, "error", err)
			drop(i, fmt.Sprintf("linked chunk dropped: %v", err))
		}
	}
	return result, nil
}

// IndexEdges ingests a batch of edges. Every relation must be
// registered and its labels must be compatible with the endpoints;
// violations drop the item, not the batch.
func (ix *Indexer) IndexEdges(ctx context.Context, inputs []EdgeInput) (*BatchResult, error) {
	result := &BatchResult{IDs: make([]types.ID, len(inputs))}
	registry := ix.graph.Registry()

	for i, input := range inputs {
		edge := knowledge.NewEdge(input.RelationName, input.SourceID, input.TargetID)
		for key, value := range input.Properties {
			edge = edge.WithProperty(key, value)
		}
		if input.Weight != nil {
			edge = edge.WithWeight(*input.Weight)
		}
		if err := edge.Validate(); err != nil {
			result.Dropped = append(result.Dropped, DroppedItem{Index: i, Reason: err.Error()})
			continue
		}

		if err := ix.checkRelation(ctx, registry, edge); err != nil {
			result.Dropped = append(result.Dropped, DroppedItem{Index: i, Reason: err.Error()})
			continue
		}
		if err := ix.graph.AddEdge(ctx, edge); err != nil {
			result.Dropped = append(result.Dropped, DroppedItem{Index: i, Reason: err.Error()})
			continue
		}
		result.IDs[i] = edge.ID
		result.Indexed++
	}
	return result, nil
}

// checkRelation verifies the edge's relation type is registered and can
// connect the endpoint labels.
func (ix *Indexer) checkRelation(ctx context.Context, registry knowledge.RelationRegistry, edge *knowledge.Edge) error {
	relation, ok := registry.Lookup(edge.RelationName)
	if !ok {
		return types.NewErrorf(types.RELATION_UNKNOWN,
			"relation %s is not registered", edge.RelationName)
	}

	source, err := ix.graph.GetNode(ctx, edge.SourceID)
	if err != nil {
		return err
	}
	target, err := ix.graph.GetNode(ctx, edge.TargetID)
	if err != nil {
		return err
	}
	if !relation.CanConnect(source.Label, target.Label) {
		return types.NewErrorf(types.VALIDATION_FAILED,
			"relation %s cannot connect %s to %s", edge.RelationName, source.Label, target.Label)
	}
	return nil
}

// IndexChunks embeds and ingests a batch of chunks with bounded
// concurrency. Items whose embedding or linked node fails are dropped
// individually; the batch always completes.
func (ix *Indexer) IndexChunks(ctx context.Context, inputs []ChunkInput) (*BatchResult, error) {
	result := &BatchResult{IDs: make([]types.ID, len(inputs))}

	var mu sync.Mutex
	drop := func(index int, reason string) {
		mu.Lock()
		defer mu.Unlock()
		result.Dropped = append(result.Dropped, DroppedItem{Index: index, Reason: reason})
	}

	// Resolve linked labels up front so a dangling link drops the item
	// before the embedding spend.
	labels := make([]string, len(inputs))
	valid := make([]bool, len(inputs))
	for i, input := range inputs {
		if input.Content == "" {
			drop(i, "content must not be empty")
			continue
		}
		if !input.LinkedNodeID.IsZero() {
			node, err := ix.graph.GetNode(ctx, input.LinkedNodeID)
			if err != nil {
				drop(i, err.Error())
				continue
			}
			labels[i] = node.Label
		}
		valid[i] = true
	}

	embeddings := make([][]float64, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chunkEmbedConcurrency)
	for i, input := range inputs {
		if !valid[i] {
			continue
		}
		g.Go(func() error {
			vec, err := ix.embed.Embed(gctx, input.Content)
			if err != nil {
				drop(i, err.Error())
				return nil
			}
			embeddings[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, input := range inputs {
		if !valid[i] || embeddings[i] == nil {
			continue
		}
		chunk := knowledge.NewChunk(input.Content, embeddings[i])
		if !input.LinkedNodeID.IsZero() {
			chunk = chunk.LinkedTo(input.LinkedNodeID)
		}
		for key, value := range input.Metadata {
			chunk = chunk.WithMetadata(key, value)
		}
		if err := ix.chunks.AddChunk(ctx, chunk, labels[i]); err != nil {
			drop(i, err.Error())
			continue
		}
		result.IDs[i] = chunk.ID
		result.Indexed++
	}
	return result, nil
}
