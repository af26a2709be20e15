package retriever

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/graphweave/graphweave/internal/chunkstore"
	"github.com/graphweave/graphweave/internal/embedder"
	"github.com/graphweave/graphweave/internal/graphstore"
	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

// Service is the retrieval API consumed by the tool boundary and the
// CLI.
type Service interface {
	// Retrieve runs the full hybrid retrieval state machine for one
	// request.
	Retrieve(ctx context.Context, req *RetrievalRequest) (*RetrievalResult, error)

	// ExpandFromSeeds is the programmatic multi-hop call: expansion only,
	// no resolution and no chunk search.
	ExpandFromSeeds(ctx context.Context, seeds []types.ID, hint TraversalHint, maxGraphNodes int) (*RetrievalResult, error)

	// AssembleContext renders a result within a token budget.
	AssembleContext(result *RetrievalResult, tokenBudget int) string
}

// Retriever coordinates the resolver, the traversal and pattern
// engines, the chunk store and the assembler. Retrieval is read-only:
// aside from embedding calls and store reads it has no side effects.
type Retriever struct {
	graph     graphstore.GraphStore
	chunks    chunkstore.ChunkStore
	embed     embedder.Embedder
	resolver  *resolver
	traversal *traversal
	patterns  *patternEngine
	assembler *Assembler
	logger    *slog.Logger
}

// Option customizes a Retriever.
type Option func(*Retriever)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) { r.logger = logger }
}

// WithTokenEstimator swaps the assembler's token estimation function.
func WithTokenEstimator(estimate TokenEstimator) Option {
	return func(r *Retriever) { r.assembler = NewAssembler(estimate) }
}

// WithHybridWeights overrides the HYBRID ranking blend.
func WithHybridWeights(weights HybridWeights) Option {
	return func(r *Retriever) { r.patterns.weights = weights }
}

// New wires a Retriever over its three collaborators.
func New(graph graphstore.GraphStore, chunks chunkstore.ChunkStore, embed embedder.Embedder, opts ...Option) *Retriever {
	r := &Retriever{
		graph:     graph,
		chunks:    chunks,
		embed:     embed,
		traversal: &traversal{graph: graph},
		patterns:  &patternEngine{graph: graph, chunks: chunks, weights: DefaultHybridWeights()},
		assembler: NewAssembler(nil),
		logger:    slog.Default().With("component", "retriever"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.resolver = &resolver{graph: graph, chunks: chunks, embed: embed, logger: r.logger}
	return r
}

// Retrieve runs the request through the strategy state machine:
//
//  1. no graph query: plain vector search, VECTOR_ONLY
//  2. graph query with seeds: traversal or pattern matching, then a
//     vector search constrained to the subgraph; GRAPH_ONLY when the
//     graph alone meets the evidence minimum, HYBRID when graph and
//     chunks together do
//  3. otherwise: fall back to an unconstrained vector search,
//     VECTOR_ONLY, with any partial graph evidence still attached
func (r *Retriever) Retrieve(ctx context.Context, req *RetrievalRequest) (*RetrievalResult, error) {
	if req == nil {
		return nil, types.NewError(types.VALIDATION_FAILED, "request must not be nil")
	}
	start := time.Now()

	if !req.HasGraphQuery() {
		result, err := r.vectorOnly(ctx, req, nil, nil)
		return finish(result, start), err
	}

	query := req.GraphQuery()
	seeds, err := r.resolver.resolve(ctx, query.Targets)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		// Absence of entry points is a normal outcome, not an error.
		r.logger.Debug("no entry points resolved, falling back to vector search")
		result, err := r.vectorOnly(ctx, req, nil, nil)
		return finish(result, start), err
	}

	queryEmbedding, err := r.queryEmbedding(ctx, req)
	if err != nil {
		return nil, err
	}

	var nodes []*knowledge.Node
	var edges []*knowledge.Edge
	if len(query.Patterns) > 0 {
		nodes, edges, err = r.patterns.match(ctx, seeds, query.Patterns, queryEmbedding, req.MaxGraphNodes())
	} else {
		nodes, edges, err = r.traversal.expand(ctx, seeds, *query.Traversal, req.MaxGraphNodes())
	}
	if err != nil {
		return nil, err
	}

	chunks, err := r.constrainedSearch(ctx, nodes, queryEmbedding, req.TopK())
	if err != nil {
		return nil, err
	}

	result := &RetrievalResult{Nodes: nodes, Edges: edges, Chunks: chunks}
	switch {
	case len(nodes) >= req.MinResults():
		result.Strategy = StrategyGraphOnly
	case result.EvidenceCount() >= req.MinResults():
		result.Strategy = StrategyHybrid
	default:
		r.logger.Debug("graph evidence below minimum, falling back",
			"nodes", len(nodes), "chunks", len(chunks), "min", req.MinResults())
		result, err = r.vectorOnly(ctx, req, nodes, edges)
		if err != nil {
			return nil, err
		}
	}
	return finish(result, start), nil
}

// ExpandFromSeeds performs pure graph expansion around known node IDs.
func (r *Retriever) ExpandFromSeeds(ctx context.Context, seeds []types.ID, hint TraversalHint, maxGraphNodes int) (*RetrievalResult, error) {
	if len(seeds) == 0 {
		return nil, types.NewError(types.VALIDATION_FAILED, "at least one seed is required")
	}
	if err := hint.Validate(MaxDepthCeiling); err != nil {
		return nil, err
	}
	if maxGraphNodes <= 0 || maxGraphNodes > MaxGraphNodesCap {
		maxGraphNodes = DefaultMaxGraphNodes
	}

	start := time.Now()
	nodes, edges, err := r.traversal.expand(ctx, seeds, hint, maxGraphNodes)
	if err != nil {
		return nil, err
	}
	return finish(&RetrievalResult{Nodes: nodes, Edges: edges, Strategy: StrategyExpansion}, start), nil
}

// AssembleContext renders the result within the token budget.
func (r *Retriever) AssembleContext(result *RetrievalResult, tokenBudget int) string {
	return r.assembler.Assemble(result, tokenBudget)
}

// vectorOnly embeds the query and searches the full chunk store. Any
// partial graph evidence the caller already gathered rides along.
func (r *Retriever) vectorOnly(ctx context.Context, req *RetrievalRequest, nodes []*knowledge.Node, edges []*knowledge.Edge) (*RetrievalResult, error) {
	result := &RetrievalResult{Nodes: nodes, Edges: edges, Strategy: StrategyVectorOnly}
	queryEmbedding, err := r.queryEmbedding(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(queryEmbedding) == 0 {
		// Graph-only request with nothing to embed.
		return result, nil
	}
	chunks, err := r.chunks.FindTopKSimilar(ctx, queryEmbedding, req.TopK())
	if err != nil {
		return nil, err
	}
	result.Chunks = chunks
	return result, nil
}

// constrainedSearch ranks the chunks linked to the subgraph's nodes
// against the query embedding and keeps the top k. The chunk store
// contract has no subgraph filter, so the restriction happens here via
// per-node linked lookups.
func (r *Retriever) constrainedSearch(ctx context.Context, nodes []*knowledge.Node, queryEmbedding []float64, k int) ([]chunkstore.ScoredChunk, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	var scored []chunkstore.ScoredChunk
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		linked, err := r.chunks.FindByLinkedNodeID(ctx, node.ID)
		if err != nil {
			return nil, err
		}
		for _, chunk := range linked {
			score := 0.0
			if len(queryEmbedding) > 0 {
				if s, err := chunkstore.CosineSimilarity(queryEmbedding, chunk.Embedding); err == nil {
					score = s
				}
			}
			scored = append(scored, chunkstore.ScoredChunk{Chunk: chunk, Score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.ID < scored[j].Chunk.ID
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// queryEmbedding embeds the request's query text and keywords, or
// returns nil when there is nothing to embed. Embedding failure on this
// path is surfaced, never swallowed.
func (r *Retriever) queryEmbedding(ctx context.Context, req *RetrievalRequest) ([]float64, error) {
	text := req.embeddingText()
	if text == "" {
		return nil, nil
	}
	return r.embed.Embed(ctx, text)
}

func finish(result *RetrievalResult, start time.Time) *RetrievalResult {
	if result != nil {
		result.Elapsed = time.Since(start)
	}
	return result
}
