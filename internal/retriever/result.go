package retriever

import (
	"time"

	"github.com/graphweave/graphweave/internal/chunkstore"
	"github.com/graphweave/graphweave/internal/knowledge"
)

// Strategy tags which retrieval path produced a result.
type Strategy string

const (
	StrategyGraphOnly  Strategy = "GRAPH_ONLY"
	StrategyVectorOnly Strategy = "VECTOR_ONLY"
	StrategyExpansion  Strategy = "EXPANSION"
	StrategyHybrid     Strategy = "HYBRID"
)

// RetrievalResult is the outcome of one request: subgraph evidence plus
// ranked chunks, tagged with the strategy that produced them. Results
// are constructed fresh per request and never cached or mutated.
type RetrievalResult struct {
	Nodes    []*knowledge.Node
	Edges    []*knowledge.Edge
	Chunks   []chunkstore.ScoredChunk
	Strategy Strategy
	Elapsed  time.Duration
}

// EvidenceCount is the number of evidence units the result carries,
// counting graph nodes and chunks alike. The fallback decision compares
// this against the request's minimum.
func (r *RetrievalResult) EvidenceCount() int {
	return len(r.Nodes) + len(r.Chunks)
}
