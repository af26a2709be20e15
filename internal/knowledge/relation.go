package knowledge

import (
	"strings"
	"sync"

	"github.com/graphweave/graphweave/internal/types"
)

// SemanticCategory classifies the meaning of a relation type.
type SemanticCategory string

const (
	SemanticHierarchical SemanticCategory = "hierarchical"
	SemanticAssociative  SemanticCategory = "associative"
	SemanticCausal       SemanticCategory = "causal"
	SemanticTemporal     SemanticCategory = "temporal"
	SemanticSpatial      SemanticCategory = "spatial"
	SemanticCustom       SemanticCategory = "custom"
)

// IsValid checks if the SemanticCategory is a valid value.
func (c SemanticCategory) IsValid() bool {
	switch c {
	case SemanticHierarchical, SemanticAssociative, SemanticCausal,
		SemanticTemporal, SemanticSpatial, SemanticCustom:
		return true
	default:
		return false
	}
}

// RelationType declares a relation's name, endpoint labels, semantic
// category, and directedness. Registered once at initialization and
// immutable thereafter; names are case-normalized to upper-case.
type RelationType struct {
	Name        string           `json:"name" yaml:"name"`
	SourceLabel string           `json:"source_label" yaml:"source_label"`
	TargetLabel string           `json:"target_label" yaml:"target_label"`
	Category    SemanticCategory `json:"category" yaml:"category"`
	Directed    bool             `json:"directed" yaml:"directed"`
}

// NewRelationType creates a directed RelationType with the custom category.
// The name is normalized to upper-case.
func NewRelationType(name, sourceLabel, targetLabel string) RelationType {
	return RelationType{
		Name:        strings.ToUpper(name),
		SourceLabel: sourceLabel,
		TargetLabel: targetLabel,
		Category:    SemanticCustom,
		Directed:    true,
	}
}

// WithCategory sets the semantic category.
// Returns the relation type for method chaining.
func (rt RelationType) WithCategory(category SemanticCategory) RelationType {
	rt.Category = category
	return rt
}

// Undirected marks the relation type as undirected.
// Returns the relation type for method chaining.
func (rt RelationType) Undirected() RelationType {
	rt.Directed = false
	return rt
}

// CanConnect reports whether the relation type admits an edge from a node
// labeled a to a node labeled b. Directed types require (a, b) to match
// (source, target) exactly; undirected types accept either orientation.
func (rt RelationType) CanConnect(a, b string) bool {
	if rt.Directed {
		return a == rt.SourceLabel && b == rt.TargetLabel
	}
	return (a == rt.SourceLabel && b == rt.TargetLabel) ||
		(a == rt.TargetLabel && b == rt.SourceLabel)
}

// Validate checks the relation type declaration.
func (rt RelationType) Validate() error {
	if rt.Name == "" {
		return types.NewError(types.VALIDATION_FAILED, "relation type name cannot be empty")
	}
	if !ValidLabel(rt.SourceLabel) {
		return types.NewErrorf(types.VALIDATION_FAILED,
			"relation type %s: invalid source label %q", rt.Name, rt.SourceLabel)
	}
	if !ValidLabel(rt.TargetLabel) {
		return types.NewErrorf(types.VALIDATION_FAILED,
			"relation type %s: invalid target label %q", rt.Name, rt.TargetLabel)
	}
	if !rt.Category.IsValid() {
		return types.NewErrorf(types.VALIDATION_FAILED,
			"relation type %s: invalid semantic category %q", rt.Name, rt.Category)
	}
	return nil
}

// RelationRegistry provides read access to the registered relation types.
// The registry is populated once at store initialization and is read-only
// during retrieval. Implementations must be safe for concurrent reads.
type RelationRegistry interface {
	// Lookup returns the relation type registered under name (upper-cased),
	// and whether it exists.
	Lookup(name string) (RelationType, bool)

	// All returns all registered relation types in registration order.
	All() []RelationType
}

// relationRegistry is the standard RelationRegistry implementation.
type relationRegistry struct {
	mu     sync.RWMutex
	byName map[string]RelationType
	order  []string
}

// NewRelationRegistry builds a registry from the given relation types.
// Duplicate names (after upper-case normalization) are rejected.
func NewRelationRegistry(relationTypes []RelationType) (RelationRegistry, error) {
	r := &relationRegistry{byName: make(map[string]RelationType, len(relationTypes))}
	for _, rt := range relationTypes {
		rt.Name = strings.ToUpper(rt.Name)
		if err := rt.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.byName[rt.Name]; exists {
			return nil, types.NewErrorf(types.VALIDATION_FAILED,
				"relation type %s registered twice", rt.Name)
		}
		r.byName[rt.Name] = rt
		r.order = append(r.order, rt.Name)
	}
	return r, nil
}

func (r *relationRegistry) Lookup(name string) (RelationType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.byName[strings.ToUpper(name)]
	return rt, ok
}

func (r *relationRegistry) All() []RelationType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]RelationType, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.byName[name])
	}
	return result
}
