package knowledge

import (
	"time"

	"github.com/graphweave/graphweave/internal/types"
)

// Chunk is a text unit with an embedding vector. A chunk either stands
// alone or is linked to exactly one node; a node may have zero or many
// linked chunks. Embedding dimensionality is fixed per deployment.
type Chunk struct {
	ID           types.ID       `json:"id"`
	Content      string         `json:"content"`
	Embedding    []float64      `json:"embedding,omitempty"`
	LinkedNodeID types.ID       `json:"linked_node_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// NewChunk creates a new standalone Chunk with a generated ID.
func NewChunk(content string, embedding []float64) *Chunk {
	return &Chunk{
		ID:        types.NewID(),
		Content:   content,
		Embedding: embedding,
		CreatedAt: time.Now(),
	}
}

// LinkedTo links the chunk to a node.
// Returns the chunk for method chaining.
func (c *Chunk) LinkedTo(nodeID types.ID) *Chunk {
	c.LinkedNodeID = nodeID
	return c
}

// WithMetadata adds a metadata entry to the chunk.
// Returns the chunk for method chaining.
func (c *Chunk) WithMetadata(key string, value any) *Chunk {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[key] = value
	return c
}

// IsLinked reports whether the chunk is linked to a node.
func (c *Chunk) IsLinked() bool {
	return !c.LinkedNodeID.IsZero()
}

// Clone returns a deep copy of the chunk.
func (c *Chunk) Clone() *Chunk {
	cloned := *c
	if c.Embedding != nil {
		cloned.Embedding = make([]float64, len(c.Embedding))
		copy(cloned.Embedding, c.Embedding)
	}
	if c.Metadata != nil {
		cloned.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			cloned.Metadata[k] = v
		}
	}
	return &cloned
}

// Validate checks the chunk's structural invariants against the deployment's
// embedding dimensionality. Pass dims <= 0 to skip the dimension check.
func (c *Chunk) Validate(dims int) error {
	if err := c.ID.Validate(); err != nil {
		return types.WrapError(types.VALIDATION_FAILED, "chunk id invalid", err)
	}
	if c.Content == "" {
		return types.NewError(types.VALIDATION_FAILED, "chunk content cannot be empty")
	}
	if dims > 0 && len(c.Embedding) != dims {
		return types.NewErrorf(types.VALIDATION_FAILED,
			"chunk embedding has %d dimensions, deployment requires %d", len(c.Embedding), dims)
	}
	return nil
}
