// Package retriever implements hybrid knowledge retrieval over a graph
// store and a vector chunk store. A request resolves entry points into
// the graph, expands or pattern-matches a subgraph around them, runs a
// vector search constrained to that subgraph, and falls back to a plain
// vector search when the graph side yields too little evidence.
package retriever

import (
	"strings"

	"github.com/graphweave/graphweave/internal/types"
)

// Direction constrains which way edges are followed during traversal.
type Direction string

const (
	DirectionOutbound Direction = "OUTBOUND"
	DirectionInbound  Direction = "INBOUND"
	DirectionBoth     Direction = "BOTH"
)

// Valid reports whether d is a recognized direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionOutbound, DirectionInbound, DirectionBoth:
		return true
	}
	return false
}

// ResolutionTarget describes one desired entry point into the graph.
// With a property filter, resolution is an exact node lookup; without
// one, the description is embedded and matched against linked chunks.
type ResolutionTarget struct {
	Description    string         `json:"description"`
	TypeHint       string         `json:"typeHint,omitempty"`
	PropertyFilter map[string]any `json:"propertyFilter,omitempty"`
}

// Validate checks that the target is resolvable.
func (t ResolutionTarget) Validate() error {
	if len(t.PropertyFilter) > 0 {
		if t.TypeHint == "" {
			return types.NewError(types.VALIDATION_FAILED, "property filter requires a type hint")
		}
		return nil
	}
	if strings.TrimSpace(t.Description) == "" {
		return types.NewError(types.VALIDATION_FAILED, "target needs a description or a property filter")
	}
	return nil
}

// TraversalHint bounds an unstructured breadth-first expansion.
type TraversalHint struct {
	MaxDepth int `json:"maxDepth"`

	// AllowedRelations restricts which relation types are followed.
	// Empty allows all. Names are matched case-insensitively.
	AllowedRelations []string `json:"allowedRelations,omitempty"`

	// Direction restricts edge orientation; empty means both.
	Direction Direction `json:"direction,omitempty"`
}

// Validate checks the hint against the configured depth ceiling.
func (h TraversalHint) Validate(maxDepthCeiling int) error {
	if h.MaxDepth <= 0 {
		return types.NewError(types.VALIDATION_FAILED, "traversal maxDepth must be positive")
	}
	if h.MaxDepth > maxDepthCeiling {
		return types.NewErrorf(types.VALIDATION_FAILED,
			"traversal maxDepth %d exceeds ceiling %d", h.MaxDepth, maxDepthCeiling)
	}
	if h.Direction != "" && !h.Direction.Valid() {
		return types.NewErrorf(types.VALIDATION_FAILED, "unknown direction %q", h.Direction)
	}
	return nil
}

// allows reports whether a relation name passes the allow-list.
func (h TraversalHint) allows(relation string) bool {
	if len(h.AllowedRelations) == 0 {
		return true
	}
	for _, allowed := range h.AllowedRelations {
		if strings.EqualFold(allowed, relation) {
			return true
		}
	}
	return false
}

// TraversalStep is one hop of a graph pattern.
type TraversalStep struct {
	SourceLabel string `json:"sourceLabel"`
	Relation    string `json:"relation"`
	TargetLabel string `json:"targetLabel"`
	Index       int    `json:"index"`
}

// Validate checks the step's labels and relation name.
func (s TraversalStep) Validate() error {
	if s.SourceLabel == "" || s.TargetLabel == "" {
		return types.NewError(types.VALIDATION_FAILED, "step labels must not be empty")
	}
	if s.Relation == "" {
		return types.NewError(types.VALIDATION_FAILED, "step relation must not be empty")
	}
	return nil
}

// RankingStrategy selects how matched pattern paths are scored.
type RankingStrategy string

const (
	RankPathLength     RankingStrategy = "PATH_LENGTH"
	RankEdgeWeight     RankingStrategy = "EDGE_WEIGHT"
	RankNodeCentrality RankingStrategy = "NODE_CENTRALITY"
	RankSemanticScore  RankingStrategy = "SEMANTIC_SCORE"
	RankHybrid         RankingStrategy = "HYBRID"
)

// Valid reports whether r is a recognized ranking strategy.
func (r RankingStrategy) Valid() bool {
	switch r {
	case RankPathLength, RankEdgeWeight, RankNodeCentrality, RankSemanticScore, RankHybrid:
		return true
	}
	return false
}

// GraphPattern is an ordered multi-hop template matched against the
// graph. All steps must match for a path to count; there is no partial
// credit.
type GraphPattern struct {
	Steps       []TraversalStep `json:"steps"`
	Constraints []Constraint    `json:"constraints,omitempty"`
	Ranking     RankingStrategy `json:"rankingStrategy,omitempty"`
}

// Validate checks the pattern's steps, constraints and ranking tag.
func (p GraphPattern) Validate() error {
	if len(p.Steps) == 0 {
		return types.NewError(types.VALIDATION_FAILED, "pattern must have at least one step")
	}
	for i, step := range p.Steps {
		if err := step.Validate(); err != nil {
			return types.NewErrorf(types.VALIDATION_FAILED, "step %d: %v", i, err)
		}
	}
	for i, c := range p.Constraints {
		if err := c.Validate(); err != nil {
			return types.NewErrorf(types.VALIDATION_FAILED, "constraint %d: %v", i, err)
		}
	}
	if p.Ranking != "" && !p.Ranking.Valid() {
		return types.NewErrorf(types.VALIDATION_FAILED, "unknown ranking strategy %q", p.Ranking)
	}
	return nil
}

// clone deep-copies the pattern so stored requests cannot be mutated by
// the caller afterwards.
func (p GraphPattern) clone() GraphPattern {
	out := GraphPattern{Ranking: p.Ranking}
	out.Steps = append([]TraversalStep(nil), p.Steps...)
	for _, c := range p.Constraints {
		out.Constraints = append(out.Constraints, c.clone())
	}
	return out
}

// GraphQuery is the graph-side half of a retrieval request: entry-point
// targets plus either a traversal hint, explicit patterns, or both.
type GraphQuery struct {
	Targets   []ResolutionTarget `json:"targets"`
	Traversal *TraversalHint     `json:"traversal,omitempty"`
	Patterns  []GraphPattern     `json:"patterns,omitempty"`
}

// Validate checks the query's targets, hint and patterns.
func (q GraphQuery) Validate(maxDepthCeiling int) error {
	if len(q.Targets) == 0 {
		return types.NewError(types.VALIDATION_FAILED, "graph query needs at least one target")
	}
	for i, target := range q.Targets {
		if err := target.Validate(); err != nil {
			return types.NewErrorf(types.VALIDATION_FAILED, "target %d: %v", i, err)
		}
	}
	if q.Traversal == nil && len(q.Patterns) == 0 {
		return types.NewError(types.VALIDATION_FAILED, "graph query needs a traversal hint or patterns")
	}
	if q.Traversal != nil {
		if err := q.Traversal.Validate(maxDepthCeiling); err != nil {
			return err
		}
	}
	for i, pattern := range q.Patterns {
		if err := pattern.Validate(); err != nil {
			return types.NewErrorf(types.VALIDATION_FAILED, "pattern %d: %v", i, err)
		}
	}
	return nil
}

// clone deep-copies the query.
func (q GraphQuery) clone() *GraphQuery {
	out := &GraphQuery{}
	for _, target := range q.Targets {
		copied := target
		if target.PropertyFilter != nil {
			copied.PropertyFilter = make(map[string]any, len(target.PropertyFilter))
			for k, v := range target.PropertyFilter {
				copied.PropertyFilter[k] = v
			}
		}
		out.Targets = append(out.Targets, copied)
	}
	if q.Traversal != nil {
		hint := *q.Traversal
		hint.AllowedRelations = append([]string(nil), q.Traversal.AllowedRelations...)
		out.Traversal = &hint
	}
	for _, pattern := range q.Patterns {
		out.Patterns = append(out.Patterns, pattern.clone())
	}
	return out
}
