// Package graphstore defines the graph storage contract consumed by the
// retrieval engine and provides the in-memory, SQLite, and Neo4j backends.
// The engine depends only on the GraphStore interface; backends are selected
// at startup by configuration.
package graphstore

import (
	"context"
	"time"

	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

// GraphStore provides graph storage and bounded subgraph extraction.
// All read methods must be safe for concurrent use; reads are idempotent
// and may be retried by callers.
//
// The engine never mutates stored entities: implementations return value
// snapshots (clones) that callers own.
type GraphStore interface {
	// Initialize registers the relation types for this deployment.
	// Called once at startup; the registry is immutable afterwards.
	Initialize(ctx context.Context, relationTypes []knowledge.RelationType) error

	// AddNode persists a node. Write-side only; never called during retrieval.
	AddNode(ctx context.Context, node *knowledge.Node) error

	// AddEdge persists an edge. Both endpoints must already exist.
	// Relation-type registration is validated by the indexer, not here:
	// stores remain permissive so pre-existing data stays traversable.
	AddEdge(ctx context.Context, edge *knowledge.Edge) error

	// GetNode returns the node with the given id, or a NODE_NOT_FOUND error.
	GetNode(ctx context.Context, id types.ID) (*knowledge.Node, error)

	// GetEdgesForNode returns every edge touching the node, in either direction.
	GetEdgesForNode(ctx context.Context, id types.ID) ([]*knowledge.Edge, error)

	// FindNodesByLabel returns all nodes with the given label.
	FindNodesByLabel(ctx context.Context, label string) ([]*knowledge.Node, error)

	// FindNodesByProperty returns all nodes with the given label whose
	// property key equals value exactly. Deterministic: the same store
	// snapshot always yields the same node set.
	FindNodesByProperty(ctx context.Context, label, key string, value any) ([]*knowledge.Node, error)

	// ExtractSubgraph returns all nodes reachable from the seeds within
	// maxDepth hops (edges followed in either direction) plus the edges
	// connecting the returned nodes. Node-count bounding and relation/
	// direction filtering are the traversal engine's concern.
	ExtractSubgraph(ctx context.Context, seedIDs []types.ID, maxDepth int) (*Subgraph, error)

	// Registry exposes the relation types registered via Initialize.
	Registry() knowledge.RelationRegistry

	// Stats returns node and edge counts.
	Stats(ctx context.Context) (Stats, error)

	// Health returns the health status of the backend.
	Health(ctx context.Context) types.HealthStatus

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// Subgraph is the result of a bounded graph extraction.
type Subgraph struct {
	Nodes []*knowledge.Node `json:"nodes"`
	Edges []*knowledge.Edge `json:"edges"`
}

// NodeIDs returns the ids of all nodes in the subgraph.
func (s *Subgraph) NodeIDs() []types.ID {
	ids := make([]types.ID, len(s.Nodes))
	for i, n := range s.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// Stats describes the size of a graph store.
type Stats struct {
	NodeCount int64 `json:"node_count"`
	EdgeCount int64 `json:"edge_count"`
}

// Config selects and configures a graph store backend.
type Config struct {
	// Store selects the backend: "memory", "sqlite", or "neo4j".
	Store string `yaml:"store" json:"store"`

	// Path is the database file for the sqlite backend.
	Path string `yaml:"path" json:"path"`

	// QueryTimeout bounds each individual store call so one hung query
	// cannot consume the whole request budget.
	QueryTimeout time.Duration `yaml:"query_timeout" json:"query_timeout"`

	// Neo4j configures the neo4j backend.
	Neo4j Neo4jConfig `yaml:"neo4j" json:"neo4j"`
}

// Neo4jConfig contains Neo4j connection configuration.
type Neo4jConfig struct {
	URI               string        `yaml:"uri" json:"uri"`
	Username          string        `yaml:"username" json:"username"`
	Password          string        `yaml:"password" json:"password"`
	Database          string        `yaml:"database" json:"database"`
	PoolSize          int           `yaml:"pool_size" json:"pool_size"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
}

// ApplyDefaults fills in zero-valued fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.Store == "" {
		c.Store = "memory"
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 10 * time.Second
	}
	if c.Neo4j.Database == "" {
		c.Neo4j.Database = "neo4j"
	}
	if c.Neo4j.PoolSize <= 0 {
		c.Neo4j.PoolSize = 50
	}
	if c.Neo4j.ConnectionTimeout <= 0 {
		c.Neo4j.ConnectionTimeout = 30 * time.Second
	}
}

// Validate checks the configuration for the selected backend.
func (c *Config) Validate() error {
	switch c.Store {
	case "memory":
		return nil
	case "sqlite":
		if c.Path == "" {
			return types.NewError(types.CONFIG_VALIDATION_FAILED, "graph.path required for sqlite store")
		}
		return nil
	case "neo4j":
		if c.Neo4j.URI == "" {
			return types.NewError(types.CONFIG_VALIDATION_FAILED, "graph.neo4j.uri required for neo4j store")
		}
		if c.Neo4j.Username == "" || c.Neo4j.Password == "" {
			return types.NewError(types.CONFIG_VALIDATION_FAILED, "graph.neo4j credentials required")
		}
		return nil
	default:
		return types.NewErrorf(types.CONFIG_VALIDATION_FAILED,
			"unknown graph store %q (must be memory, sqlite, or neo4j)", c.Store)
	}
}
