package graphstore

import (
	"context"
	"sort"
	"sync"

	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

// MemoryGraphStore is an in-memory graph store backed by maps and an
// adjacency index. Suitable for development, tests, and small graphs.
// Safe for concurrent use.
type MemoryGraphStore struct {
	mu        sync.RWMutex
	nodes     map[types.ID]*knowledge.Node
	edges     map[types.ID]*knowledge.Edge
	adjacency map[types.ID][]types.ID // node id -> edge ids touching it
	registry  knowledge.RelationRegistry
}

// NewMemoryGraphStore creates an empty in-memory graph store with an empty
// relation registry. Call Initialize to register relation types.
func NewMemoryGraphStore() *MemoryGraphStore {
	registry, _ := knowledge.NewRelationRegistry(nil)
	return &MemoryGraphStore{
		nodes:     make(map[types.ID]*knowledge.Node),
		edges:     make(map[types.ID]*knowledge.Edge),
		adjacency: make(map[types.ID][]types.ID),
		registry:  registry,
	}
}

// Initialize registers the relation types for this store.
func (s *MemoryGraphStore) Initialize(_ context.Context, relationTypes []knowledge.RelationType) error {
	registry, err := knowledge.NewRelationRegistry(relationTypes)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry = registry
	return nil
}

// AddNode persists a node snapshot.
func (s *MemoryGraphStore) AddNode(_ context.Context, node *knowledge.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.nodes[node.ID]; ok && existing.Label != node.Label {
		return types.NewErrorf(types.VALIDATION_FAILED,
			"node %s label is immutable (%s -> %s)", node.ID, existing.Label, node.Label)
	}
	s.nodes[node.ID] = node.Clone()
	return nil
}

// AddEdge persists an edge snapshot. Both endpoints must exist.
func (s *MemoryGraphStore) AddEdge(_ context.Context, edge *knowledge.Edge) error {
	if err := edge.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[edge.SourceID]; !ok {
		return types.NewErrorf(types.NODE_NOT_FOUND, "edge source node %s not found", edge.SourceID)
	}
	if _, ok := s.nodes[edge.TargetID]; !ok {
		return types.NewErrorf(types.NODE_NOT_FOUND, "edge target node %s not found", edge.TargetID)
	}

	if _, ok := s.edges[edge.ID]; !ok {
		s.adjacency[edge.SourceID] = append(s.adjacency[edge.SourceID], edge.ID)
		if edge.TargetID != edge.SourceID {
			s.adjacency[edge.TargetID] = append(s.adjacency[edge.TargetID], edge.ID)
		}
	}
	s.edges[edge.ID] = edge.Clone()
	return nil
}

// GetNode returns a snapshot of the node with the given id.
func (s *MemoryGraphStore) GetNode(_ context.Context, id types.ID) (*knowledge.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, types.NewErrorf(types.NODE_NOT_FOUND, "node %s not found", id)
	}
	return node.Clone(), nil
}

// GetEdgesForNode returns every edge touching the node, in either direction.
func (s *MemoryGraphStore) GetEdgesForNode(_ context.Context, id types.ID) ([]*knowledge.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edgeIDs := s.adjacency[id]
	result := make([]*knowledge.Edge, 0, len(edgeIDs))
	for _, edgeID := range edgeIDs {
		result = append(result, s.edges[edgeID].Clone())
	}
	return result, nil
}

// FindNodesByLabel returns all node snapshots with the given label.
func (s *MemoryGraphStore) FindNodesByLabel(_ context.Context, label string) ([]*knowledge.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*knowledge.Node
	for _, node := range s.nodes {
		if node.Label == label {
			result = append(result, node.Clone())
		}
	}
	sortNodesByID(result)
	return result, nil
}

// FindNodesByProperty returns all nodes with the given label whose property
// key equals value. Comparison goes through propertyEqual so numeric values
// match across the JSON decoding boundary, the same as the other backends.
func (s *MemoryGraphStore) FindNodesByProperty(_ context.Context, label, key string, value any) ([]*knowledge.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*knowledge.Node
	for _, node := range s.nodes {
		if node.Label != label {
			continue
		}
		if got := node.GetProperty(key); got != nil && propertyEqual(got, value) {
			result = append(result, node.Clone())
		}
	}
	sortNodesByID(result)
	return result, nil
}

// sortNodesByID orders nodes lexicographically by id so lookups over the
// same store snapshot are deterministic.
func sortNodesByID(nodes []*knowledge.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}

// ExtractSubgraph returns all nodes within maxDepth hops of the seeds
// (edges followed in either direction) plus the edges connecting them.
// Unknown seed ids are skipped.
func (s *MemoryGraphStore) ExtractSubgraph(_ context.Context, seedIDs []types.ID, maxDepth int) (*Subgraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visited := make(map[types.ID]bool)
	var order []types.ID
	frontier := make([]types.ID, 0, len(seedIDs))

	for _, id := range seedIDs {
		if _, ok := s.nodes[id]; ok && !visited[id] {
			visited[id] = true
			order = append(order, id)
			frontier = append(frontier, id)
		}
	}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []types.ID
		for _, id := range frontier {
			for _, edgeID := range s.adjacency[id] {
				neighbor := s.edges[edgeID].Other(id)
				if !visited[neighbor] {
					visited[neighbor] = true
					order = append(order, neighbor)
					next = append(next, neighbor)
				}
			}
		}
		frontier = next
	}

	sub := &Subgraph{Nodes: make([]*knowledge.Node, 0, len(order))}
	for _, id := range order {
		sub.Nodes = append(sub.Nodes, s.nodes[id].Clone())
	}
	for _, edge := range s.edges {
		if visited[edge.SourceID] && visited[edge.TargetID] {
			sub.Edges = append(sub.Edges, edge.Clone())
		}
	}
	// Map iteration order is random; sort for deterministic output.
	sort.Slice(sub.Edges, func(i, j int) bool { return sub.Edges[i].ID < sub.Edges[j].ID })
	return sub, nil
}

// Registry exposes the relation types registered via Initialize.
func (s *MemoryGraphStore) Registry() knowledge.RelationRegistry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry
}

// Stats returns node and edge counts.
func (s *MemoryGraphStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		NodeCount: int64(len(s.nodes)),
		EdgeCount: int64(len(s.edges)),
	}, nil
}

// Health always reports healthy for the in-memory store.
func (s *MemoryGraphStore) Health(_ context.Context) types.HealthStatus {
	return types.Healthy()
}

// Close is a no-op for the in-memory store.
func (s *MemoryGraphStore) Close(_ context.Context) error {
	return nil
}
