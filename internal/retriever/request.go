package retriever

import (
	"strings"

	"github.com/graphweave/graphweave/internal/types"
)

// Request bounds and defaults. Callers may tighten but never exceed the
// caps.
const (
	DefaultTopK           = 10
	DefaultMaxGraphNodes  = 50
	DefaultMaxTokenBudget = 4000
	DefaultMinResults     = 3
	DefaultMaxDepth       = 2

	MaxTopK            = 100
	MaxGraphNodesCap   = 500
	MaxTokenBudgetCap  = 32000
	MaxDepthCeiling    = 10
	MaxKeywordsPerCall = 32
)

// RetrievalRequest is an immutable description of one retrieval. It is
// built through NewRequest, which validates inputs and defensively
// copies every mutable field, so callers cannot alter a request after
// submitting it.
type RetrievalRequest struct {
	queryText        string
	graphQuery       *GraphQuery
	topK             int
	maxGraphNodes    int
	maxTokenBudget   int
	minResults       int
	semanticKeywords []string
}

// RequestOption customizes a request at construction time.
type RequestOption func(*RetrievalRequest)

// WithGraphQuery attaches the graph-side half of the request.
func WithGraphQuery(q GraphQuery) RequestOption {
	return func(r *RetrievalRequest) { r.graphQuery = q.clone() }
}

// WithTopK sets how many chunks the vector side may return.
func WithTopK(k int) RequestOption {
	return func(r *RetrievalRequest) { r.topK = k }
}

// WithMaxGraphNodes caps the traversal result size.
func WithMaxGraphNodes(n int) RequestOption {
	return func(r *RetrievalRequest) { r.maxGraphNodes = n }
}

// WithMaxTokenBudget caps assembled context size.
func WithMaxTokenBudget(budget int) RequestOption {
	return func(r *RetrievalRequest) { r.maxTokenBudget = budget }
}

// WithMinResults sets the evidence threshold below which the coordinator
// falls back to an unconstrained vector search.
func WithMinResults(n int) RequestOption {
	return func(r *RetrievalRequest) { r.minResults = n }
}

// WithSemanticKeywords adds keywords that sharpen the query embedding.
func WithSemanticKeywords(keywords ...string) RequestOption {
	return func(r *RetrievalRequest) {
		r.semanticKeywords = append([]string(nil), keywords...)
	}
}

// NewRequest builds and validates a retrieval request. queryText may be
// empty only when a graph query is attached.
func NewRequest(queryText string, opts ...RequestOption) (*RetrievalRequest, error) {
	r := &RetrievalRequest{
		queryText:      strings.TrimSpace(queryText),
		topK:           DefaultTopK,
		maxGraphNodes:  DefaultMaxGraphNodes,
		maxTokenBudget: DefaultMaxTokenBudget,
		minResults:     DefaultMinResults,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.queryText == "" && r.graphQuery == nil {
		return nil, types.NewError(types.VALIDATION_FAILED,
			"request needs query text or a graph query")
	}
	if r.topK <= 0 || r.topK > MaxTopK {
		return nil, types.NewErrorf(types.VALIDATION_FAILED,
			"topK must be in [1, %d]", MaxTopK)
	}
	if r.maxGraphNodes <= 0 || r.maxGraphNodes > MaxGraphNodesCap {
		return nil, types.NewErrorf(types.VALIDATION_FAILED,
			"maxGraphNodes must be in [1, %d]", MaxGraphNodesCap)
	}
	if r.maxTokenBudget <= 0 || r.maxTokenBudget > MaxTokenBudgetCap {
		return nil, types.NewErrorf(types.VALIDATION_FAILED,
			"maxTokenBudget must be in [1, %d]", MaxTokenBudgetCap)
	}
	if r.minResults <= 0 {
		return nil, types.NewError(types.VALIDATION_FAILED, "minResults must be positive")
	}
	if len(r.semanticKeywords) > MaxKeywordsPerCall {
		return nil, types.NewErrorf(types.VALIDATION_FAILED,
			"at most %d semantic keywords allowed", MaxKeywordsPerCall)
	}
	if r.graphQuery != nil {
		if err := r.graphQuery.Validate(MaxDepthCeiling); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// QueryText returns the free-text query, possibly empty.
func (r *RetrievalRequest) QueryText() string { return r.queryText }

// GraphQuery returns a copy of the graph query, or nil when absent.
func (r *RetrievalRequest) GraphQuery() *GraphQuery {
	if r.graphQuery == nil {
		return nil
	}
	return r.graphQuery.clone()
}

// HasGraphQuery reports whether the request carries a graph side.
func (r *RetrievalRequest) HasGraphQuery() bool { return r.graphQuery != nil }

func (r *RetrievalRequest) TopK() int           { return r.topK }
func (r *RetrievalRequest) MaxGraphNodes() int  { return r.maxGraphNodes }
func (r *RetrievalRequest) MaxTokenBudget() int { return r.maxTokenBudget }
func (r *RetrievalRequest) MinResults() int     { return r.minResults }

// SemanticKeywords returns a copy of the keyword list.
func (r *RetrievalRequest) SemanticKeywords() []string {
	return append([]string(nil), r.semanticKeywords...)
}

// embeddingText is the string fed to the embedder for this request: the
// query text with any semantic keywords appended.
func (r *RetrievalRequest) embeddingText() string {
	if len(r.semanticKeywords) == 0 {
		return r.queryText
	}
	if r.queryText == "" {
		return strings.Join(r.semanticKeywords, " ")
	}
	return r.queryText + "\n" + strings.Join(r.semanticKeywords, " ")
}
