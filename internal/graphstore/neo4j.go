package graphstore

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

// Neo4jGraphStore implements GraphStore on a Neo4j database.
// Nodes are stored under their knowledge label with the engine id in the
// `id` property; edges become typed relationships. The relation registry is
// held in memory after Initialize, mirroring the embedded backends.
type Neo4jGraphStore struct {
	mu       sync.RWMutex
	config   Neo4jConfig
	driver   neo4j.DriverWithContext
	registry knowledge.RelationRegistry
}

// NewNeo4jGraphStore creates a Neo4j-backed graph store and verifies
// connectivity with exponential backoff.
func NewNeo4jGraphStore(ctx context.Context, config Neo4jConfig) (*Neo4jGraphStore, error) {
	auth := neo4j.BasicAuth(config.Username, config.Password, "")

	driverConfig := func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = config.PoolSize
		c.ConnectionAcquisitionTimeout = config.ConnectionTimeout
	}

	var driver neo4j.DriverWithContext
	var lastErr error
	const maxRetries = 5
	baseDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		var err error
		driver, err = neo4j.NewDriverWithContext(config.URI, auth, driverConfig)
		if err == nil {
			if err = driver.VerifyConnectivity(ctx); err == nil {
				registry, _ := knowledge.NewRelationRegistry(nil)
				return &Neo4jGraphStore{config: config, driver: driver, registry: registry}, nil
			}
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, types.WrapError(types.STORE_UNAVAILABLE, "neo4j connection cancelled", ctx.Err())
		}

		delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > config.ConnectionTimeout {
			delay = config.ConnectionTimeout
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, types.WrapError(types.STORE_UNAVAILABLE, "neo4j connection cancelled", ctx.Err())
		}
	}

	return nil, types.WrapError(types.STORE_UNAVAILABLE,
		fmt.Sprintf("failed to connect to neo4j after %d attempts", maxRetries), lastErr).WithRetryable(true)
}

func (s *Neo4jGraphStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.config.Database})
}

// Initialize registers the relation types and ensures an id uniqueness
// constraint exists for each endpoint label.
func (s *Neo4jGraphStore) Initialize(ctx context.Context, relationTypes []knowledge.RelationType) error {
	registry, err := knowledge.NewRelationRegistry(relationTypes)
	if err != nil {
		return err
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	labels := make(map[string]bool)
	for _, rt := range registry.All() {
		labels[rt.SourceLabel] = true
		labels[rt.TargetLabel] = true
	}
	for label := range labels {
		cypher := fmt.Sprintf(
			"CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE", label)
		if _, err := session.Run(ctx, cypher, nil); err != nil {
			return types.WrapError(types.STORE_QUERY_FAILED,
				fmt.Sprintf("failed to create id constraint for label %s", label), err)
		}
	}

	s.mu.Lock()
	s.registry = registry
	s.mu.Unlock()
	return nil
}

// AddNode upserts a node keyed by its engine id.
func (s *Neo4jGraphStore) AddNode(ctx context.Context, node *knowledge.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	cypher := fmt.Sprintf(`
		MERGE (n:%s {id: $id})
		ON CREATE SET n += $props, n.created_at = $now, n.version = 1
		ON MATCH SET n += $props, n.version = n.version + 1
		SET n.updated_at = $now`, node.Label)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, cypher, map[string]any{
			"id":    node.ID.String(),
			"props": nodeWriteProps(node),
			"now":   time.Now().UnixMilli(),
		})
	})
	if err != nil {
		return types.WrapError(types.STORE_QUERY_FAILED, "failed to persist node", err).WithRetryable(true)
	}
	return nil
}

func nodeWriteProps(node *knowledge.Node) map[string]any {
	props := make(map[string]any, len(node.Properties)+1)
	for k, v := range node.Properties {
		props["p_"+k] = v
	}
	if node.VectorizableContent != "" {
		props["vectorizable_content"] = node.VectorizableContent
	}
	return props
}

// AddEdge creates a typed relationship between two existing nodes.
func (s *Neo4jGraphStore) AddEdge(ctx context.Context, edge *knowledge.Edge) error {
	if err := edge.Validate(); err != nil {
		return err
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	cypher := fmt.Sprintf(`
		MATCH (a {id: $source}), (b {id: $target})
		MERGE (a)-[r:%s {id: $id}]->(b)
		SET r.weight = $weight, r.created_at = $created
		RETURN r.id`, edge.RelationName)

	var weight any
	if edge.Weight != nil {
		weight = *edge.Weight
	}

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{
			"source":  edge.SourceID.String(),
			"target":  edge.TargetID.String(),
			"id":      edge.ID.String(),
			"weight":  weight,
			"created": edge.CreatedAt.UnixMilli(),
		})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return len(records), nil
	})
	if err != nil {
		return types.WrapError(types.STORE_QUERY_FAILED, "failed to persist edge", err).WithRetryable(true)
	}
	if result.(int) == 0 {
		return types.NewErrorf(types.NODE_NOT_FOUND,
			"edge endpoints %s or %s not found", edge.SourceID, edge.TargetID)
	}
	return nil
}

// GetNode returns the node with the given id.
func (s *Neo4jGraphStore) GetNode(ctx context.Context, id types.ID) (*knowledge.Node, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n {id: $id}) RETURN n, labels(n) AS labels`, map[string]any{"id": id.String()})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to read node", err).WithRetryable(true)
	}

	records := result.([]*neo4j.Record)
	if len(records) == 0 {
		return nil, types.NewErrorf(types.NODE_NOT_FOUND, "node %s not found", id)
	}
	return recordToNode(records[0])
}

func recordToNode(record *neo4j.Record) (*knowledge.Node, error) {
	rawNode, _ := record.Get("n")
	dbNode, ok := rawNode.(neo4j.Node)
	if !ok {
		return nil, types.NewError(types.STORE_QUERY_FAILED, "unexpected node record shape")
	}
	rawLabels, _ := record.Get("labels")

	node := &knowledge.Node{Properties: make(map[string]any)}
	if labels, ok := rawLabels.([]any); ok && len(labels) > 0 {
		node.Label, _ = labels[0].(string)
	}
	for k, v := range dbNode.Props {
		switch k {
		case "id":
			node.ID = types.ID(v.(string))
		case "vectorizable_content":
			node.VectorizableContent, _ = v.(string)
		case "created_at":
			if millis, ok := v.(int64); ok {
				node.CreatedAt = time.UnixMilli(millis)
			}
		case "updated_at":
			if millis, ok := v.(int64); ok {
				node.UpdatedAt = time.UnixMilli(millis)
			}
		case "version":
			if version, ok := v.(int64); ok {
				node.Version = version
			}
		default:
			if len(k) > 2 && k[:2] == "p_" {
				node.Properties[k[2:]] = v
			}
		}
	}
	return node, nil
}

// GetEdgesForNode returns every relationship touching the node.
func (s *Neo4jGraphStore) GetEdgesForNode(ctx context.Context, id types.ID) ([]*knowledge.Edge, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (a {id: $id})-[r]-(b)
			RETURN r, type(r) AS relation, startNode(r).id AS source, endNode(r).id AS target
			ORDER BY r.id`, map[string]any{"id": id.String()})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to read node edges", err).WithRetryable(true)
	}

	return recordsToEdges(result.([]*neo4j.Record))
}

func recordsToEdges(records []*neo4j.Record) ([]*knowledge.Edge, error) {
	edges := make([]*knowledge.Edge, 0, len(records))
	for _, record := range records {
		rawRel, _ := record.Get("r")
		rel, ok := rawRel.(neo4j.Relationship)
		if !ok {
			return nil, types.NewError(types.STORE_QUERY_FAILED, "unexpected relationship record shape")
		}
		relation, _ := record.Get("relation")
		source, _ := record.Get("source")
		target, _ := record.Get("target")

		edge := &knowledge.Edge{
			RelationName: relation.(string),
			SourceID:     types.ID(source.(string)),
			TargetID:     types.ID(target.(string)),
		}
		if id, ok := rel.Props["id"].(string); ok {
			edge.ID = types.ID(id)
		}
		if weight, ok := rel.Props["weight"].(float64); ok {
			edge.Weight = &weight
		}
		if millis, ok := rel.Props["created_at"].(int64); ok {
			edge.CreatedAt = time.UnixMilli(millis)
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// FindNodesByLabel returns all nodes with the given label, ordered by id.
func (s *Neo4jGraphStore) FindNodesByLabel(ctx context.Context, label string) ([]*knowledge.Node, error) {
	if !knowledge.ValidLabel(label) {
		return nil, types.NewErrorf(types.VALIDATION_FAILED, "invalid label %q", label)
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	cypher := fmt.Sprintf(`MATCH (n:%s) RETURN n, labels(n) AS labels ORDER BY n.id`, label)
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, nil)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to query nodes by label", err).WithRetryable(true)
	}

	var nodes []*knowledge.Node
	for _, record := range result.([]*neo4j.Record) {
		node, err := recordToNode(record)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// FindNodesByProperty returns all nodes with the given label whose property
// key equals value exactly.
func (s *Neo4jGraphStore) FindNodesByProperty(ctx context.Context, label, key string, value any) ([]*knowledge.Node, error) {
	candidates, err := s.FindNodesByLabel(ctx, label)
	if err != nil {
		return nil, err
	}

	var result []*knowledge.Node
	for _, node := range candidates {
		if got := node.GetProperty(key); got != nil && propertyEqual(got, value) {
			result = append(result, node)
		}
	}
	return result, nil
}

// ExtractSubgraph extracts all nodes within maxDepth hops of the seeds
// using a variable-length path match, plus edges among the collected nodes.
func (s *Neo4jGraphStore) ExtractSubgraph(ctx context.Context, seedIDs []types.ID, maxDepth int) (*Subgraph, error) {
	if maxDepth < 0 {
		return nil, types.NewError(types.VALIDATION_FAILED, "maxDepth cannot be negative")
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	seeds := make([]any, len(seedIDs))
	for i, id := range seedIDs {
		seeds[i] = id.String()
	}

	// Variable-length bounds cannot be parameterized in Cypher; maxDepth is
	// validated above and formatted into the query text.
	cypher := fmt.Sprintf(`
		MATCH (s) WHERE s.id IN $seeds
		OPTIONAL MATCH (s)-[*1..%d]-(m)
		WITH collect(DISTINCT s) + collect(DISTINCT m) AS ns
		UNWIND ns AS n
		WITH collect(DISTINCT n) AS nodes
		OPTIONAL MATCH (a)-[r]->(b)
		WHERE a IN nodes AND b IN nodes
		RETURN nodes, collect(DISTINCT r) AS rels`, maxDepth)
	if maxDepth == 0 {
		cypher = `
		MATCH (s) WHERE s.id IN $seeds
		WITH collect(DISTINCT s) AS nodes
		RETURN nodes, [] AS rels`
	}

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"seeds": seeds})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to extract subgraph", err).WithRetryable(true)
	}

	records := result.([]*neo4j.Record)
	if len(records) == 0 {
		return &Subgraph{}, nil
	}

	sub := &Subgraph{}
	rawNodes, _ := records[0].Get("nodes")
	for _, raw := range rawNodes.([]any) {
		dbNode, ok := raw.(neo4j.Node)
		if !ok {
			continue
		}
		node := &knowledge.Node{Properties: make(map[string]any)}
		if len(dbNode.Labels) > 0 {
			node.Label = dbNode.Labels[0]
		}
		for k, v := range dbNode.Props {
			switch k {
			case "id":
				node.ID = types.ID(v.(string))
			case "vectorizable_content":
				node.VectorizableContent, _ = v.(string)
			default:
				if len(k) > 2 && k[:2] == "p_" {
					node.Properties[k[2:]] = v
				}
			}
		}
		sub.Nodes = append(sub.Nodes, node)
	}

	rawRels, _ := records[0].Get("rels")
	idsByElement := make(map[string]types.ID, len(sub.Nodes))
	for _, raw := range rawNodes.([]any) {
		if dbNode, ok := raw.(neo4j.Node); ok {
			if id, ok := dbNode.Props["id"].(string); ok {
				idsByElement[dbNode.ElementId] = types.ID(id)
			}
		}
	}
	for _, raw := range rawRels.([]any) {
		rel, ok := raw.(neo4j.Relationship)
		if !ok {
			continue
		}
		edge := &knowledge.Edge{
			RelationName: rel.Type,
			SourceID:     idsByElement[rel.StartElementId],
			TargetID:     idsByElement[rel.EndElementId],
		}
		if id, ok := rel.Props["id"].(string); ok {
			edge.ID = types.ID(id)
		}
		if weight, ok := rel.Props["weight"].(float64); ok {
			edge.Weight = &weight
		}
		sub.Edges = append(sub.Edges, edge)
	}
	return sub, nil
}

// Registry exposes the relation types registered via Initialize.
func (s *Neo4jGraphStore) Registry() knowledge.RelationRegistry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry
}

// Stats returns node and relationship counts.
func (s *Neo4jGraphStore) Stats(ctx context.Context) (Stats, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (n) WITH count(n) AS nodes OPTIONAL MATCH ()-[r]->() RETURN nodes, count(r) AS edges`, nil)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		nodes, _ := record.Get("nodes")
		edges, _ := record.Get("edges")
		return Stats{NodeCount: nodes.(int64), EdgeCount: edges.(int64)}, nil
	})
	if err != nil {
		return Stats{}, types.WrapError(types.STORE_QUERY_FAILED, "failed to read statistics", err).WithRetryable(true)
	}
	return result.(Stats), nil
}

// Health verifies driver connectivity with a short timeout.
func (s *Neo4jGraphStore) Health(ctx context.Context) types.HealthStatus {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.driver.VerifyConnectivity(healthCtx); err != nil {
		return types.Unhealthy(fmt.Sprintf("connectivity check failed: %v", err))
	}
	return types.Healthy()
}

// Close releases the driver.
func (s *Neo4jGraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
