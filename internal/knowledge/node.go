// Package knowledge defines the entity model of the knowledge graph:
// nodes, edges, relation types, and text chunks. These are immutable value
// snapshots from the retrieval engine's perspective; the stores own the
// persisted entities.
package knowledge

import (
	"regexp"
	"time"

	"github.com/graphweave/graphweave/internal/types"
)

var labelPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidLabel reports whether label is a legal node label:
// non-empty, alphanumeric plus underscore.
func ValidLabel(label string) bool {
	return labelPattern.MatchString(label)
}

// Node represents a node in the knowledge graph.
// The label is user-defined and immutable after creation; the property bag
// is unconstrained by the engine. Nodes with VectorizableContent get a
// linked chunk at indexing time.
type Node struct {
	ID                  types.ID       `json:"id"`
	Label               string         `json:"label"`
	Properties          map[string]any `json:"properties,omitempty"`
	VectorizableContent string         `json:"vectorizable_content,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	Version             int64          `json:"version"`
}

// NewNode creates a new Node with a generated ID and the given label.
func NewNode(label string) *Node {
	now := time.Now()
	return &Node{
		ID:         types.NewID(),
		Label:      label,
		Properties: make(map[string]any),
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}
}

// WithProperty adds a property to the node.
// Returns the node for method chaining.
func (n *Node) WithProperty(key string, value any) *Node {
	if n.Properties == nil {
		n.Properties = make(map[string]any)
	}
	n.Properties[key] = value
	return n
}

// WithContent sets the vectorizable text content for the node.
// Returns the node for method chaining.
func (n *Node) WithContent(content string) *Node {
	n.VectorizableContent = content
	return n
}

// GetProperty retrieves a property value by key.
// Returns nil if the property doesn't exist.
func (n *Node) GetProperty(key string) any {
	if n.Properties == nil {
		return nil
	}
	return n.Properties[key]
}

// LookupProperty retrieves a property value by key, reporting whether
// the key exists so present-but-nil values are distinguishable from
// absent ones.
func (n *Node) LookupProperty(key string) (any, bool) {
	if n.Properties == nil {
		return nil, false
	}
	val, ok := n.Properties[key]
	return val, ok
}

// GetStringProperty retrieves a string property value by key.
// Returns empty string if the property doesn't exist or isn't a string.
func (n *Node) GetStringProperty(key string) string {
	if val, ok := n.GetProperty(key).(string); ok {
		return val
	}
	return ""
}

// Clone returns a deep copy of the node. The retrieval engine hands out
// clones so callers can never mutate a stored entity through a result.
func (n *Node) Clone() *Node {
	cloned := *n
	if n.Properties != nil {
		cloned.Properties = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			cloned.Properties[k] = v
		}
	}
	return &cloned
}

// Validate checks the node's structural invariants.
func (n *Node) Validate() error {
	if err := n.ID.Validate(); err != nil {
		return types.WrapError(types.VALIDATION_FAILED, "node id invalid", err)
	}
	if !ValidLabel(n.Label) {
		return types.NewErrorf(types.VALIDATION_FAILED,
			"node label %q must be non-empty alphanumeric/underscore", n.Label)
	}
	return nil
}
