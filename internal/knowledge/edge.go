package knowledge

import (
	"strings"
	"time"

	"github.com/graphweave/graphweave/internal/types"
)

// Edge represents a typed relationship between two nodes.
// RelationName is case-normalized to upper-case on creation. Weight carries
// backend-defined semantics (typically non-negative); nil means unweighted,
// which ranking treats as 1.0.
type Edge struct {
	ID           types.ID       `json:"id"`
	RelationName string         `json:"relation_name"`
	SourceID     types.ID       `json:"source_id"`
	TargetID     types.ID       `json:"target_id"`
	Properties   map[string]any `json:"properties,omitempty"`
	Weight       *float64       `json:"weight,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// NewEdge creates a new Edge with a generated ID connecting source to target.
// The relation name is normalized to upper-case.
func NewEdge(relationName string, sourceID, targetID types.ID) *Edge {
	return &Edge{
		ID:           types.NewID(),
		RelationName: strings.ToUpper(relationName),
		SourceID:     sourceID,
		TargetID:     targetID,
		CreatedAt:    time.Now(),
	}
}

// WithWeight sets the numeric weight of the edge.
// Returns the edge for method chaining.
func (e *Edge) WithWeight(weight float64) *Edge {
	e.Weight = &weight
	return e
}

// WithProperty adds a property to the edge.
// Returns the edge for method chaining.
func (e *Edge) WithProperty(key string, value any) *Edge {
	if e.Properties == nil {
		e.Properties = make(map[string]any)
	}
	e.Properties[key] = value
	return e
}

// EffectiveWeight returns the edge weight, or 1.0 when no weight is set.
func (e *Edge) EffectiveWeight() float64 {
	if e.Weight == nil {
		return 1.0
	}
	return *e.Weight
}

// Touches reports whether the edge has the given node as source or target.
func (e *Edge) Touches(nodeID types.ID) bool {
	return e.SourceID == nodeID || e.TargetID == nodeID
}

// Other returns the opposite endpoint of the edge relative to nodeID.
// Returns the zero ID if nodeID is not an endpoint.
func (e *Edge) Other(nodeID types.ID) types.ID {
	switch nodeID {
	case e.SourceID:
		return e.TargetID
	case e.TargetID:
		return e.SourceID
	default:
		return ""
	}
}

// Clone returns a deep copy of the edge.
func (e *Edge) Clone() *Edge {
	cloned := *e
	if e.Properties != nil {
		cloned.Properties = make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			cloned.Properties[k] = v
		}
	}
	if e.Weight != nil {
		w := *e.Weight
		cloned.Weight = &w
	}
	return &cloned
}

// Validate checks the edge's structural invariants. Referential integrity
// against stored nodes is the store's concern at indexing time.
func (e *Edge) Validate() error {
	if err := e.ID.Validate(); err != nil {
		return types.WrapError(types.VALIDATION_FAILED, "edge id invalid", err)
	}
	if e.RelationName == "" {
		return types.NewError(types.VALIDATION_FAILED, "edge relation name cannot be empty")
	}
	if err := e.SourceID.Validate(); err != nil {
		return types.WrapError(types.VALIDATION_FAILED, "edge source id invalid", err)
	}
	if err := e.TargetID.Validate(); err != nil {
		return types.WrapError(types.VALIDATION_FAILED, "edge target id invalid", err)
	}
	return nil
}
