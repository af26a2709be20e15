package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

// SqliteGraphStore is a persistent graph store backed by SQLite.
// Nodes and edges live in relational tables with JSON property columns;
// subgraph extraction expands the frontier one hop per query.
// Thread-safe and suitable for embedded deployments.
type SqliteGraphStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	registry knowledge.RelationRegistry
	closed   bool
}

// NewSqliteGraphStore opens (or creates) a SQLite-backed graph store at path.
func NewSqliteGraphStore(path string) (*SqliteGraphStore, error) {
	if path == "" {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED, "sqlite graph store path cannot be empty")
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, types.WrapError(types.STORE_UNAVAILABLE, "failed to open sqlite database", err)
	}

	store := &SqliteGraphStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	registry, err := store.loadRegistry(context.Background())
	if err != nil {
		db.Close()
		return nil, err
	}
	store.registry = registry

	return store, nil
}

func (s *SqliteGraphStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		properties TEXT NOT NULL DEFAULT '{}',
		vectorizable_content TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_nodes_label ON nodes(label);

	CREATE TABLE IF NOT EXISTS edges (
		id TEXT PRIMARY KEY,
		relation_name TEXT NOT NULL,
		source_id TEXT NOT NULL REFERENCES nodes(id),
		target_id TEXT NOT NULL REFERENCES nodes(id),
		properties TEXT NOT NULL DEFAULT '{}',
		weight REAL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);

	CREATE TABLE IF NOT EXISTS relation_types (
		name TEXT PRIMARY KEY,
		source_label TEXT NOT NULL,
		target_label TEXT NOT NULL,
		category TEXT NOT NULL,
		directed INTEGER NOT NULL
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return types.WrapError(types.STORE_UNAVAILABLE, "failed to create graph schema", err)
	}
	return nil
}

func (s *SqliteGraphStore) loadRegistry(ctx context.Context) (knowledge.RelationRegistry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, source_label, target_label, category, directed FROM relation_types ORDER BY name`)
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to load relation types", err)
	}
	defer rows.Close()

	var relationTypes []knowledge.RelationType
	for rows.Next() {
		var rt knowledge.RelationType
		var directed int
		if err := rows.Scan(&rt.Name, &rt.SourceLabel, &rt.TargetLabel, &rt.Category, &directed); err != nil {
			return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to scan relation type", err)
		}
		rt.Directed = directed != 0
		relationTypes = append(relationTypes, rt)
	}
	return knowledge.NewRelationRegistry(relationTypes)
}

// Initialize registers relation types, replacing any previous registration.
func (s *SqliteGraphStore) Initialize(ctx context.Context, relationTypes []knowledge.RelationType) error {
	registry, err := knowledge.NewRelationRegistry(relationTypes)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.NewError(types.STORE_UNAVAILABLE, "graph store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.WrapError(types.STORE_UNAVAILABLE, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM relation_types`); err != nil {
		return types.WrapError(types.STORE_QUERY_FAILED, "failed to clear relation types", err)
	}
	for _, rt := range registry.All() {
		directed := 0
		if rt.Directed {
			directed = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO relation_types (name, source_label, target_label, category, directed) VALUES (?, ?, ?, ?, ?)`,
			rt.Name, rt.SourceLabel, rt.TargetLabel, string(rt.Category), directed); err != nil {
			return types.WrapError(types.STORE_QUERY_FAILED, "failed to insert relation type", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return types.WrapError(types.STORE_QUERY_FAILED, "failed to commit relation types", err)
	}

	s.registry = registry
	return nil
}

// AddNode persists a node, bumping the stored version on update.
func (s *SqliteGraphStore) AddNode(ctx context.Context, node *knowledge.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	props, err := json.Marshal(node.Properties)
	if err != nil {
		return types.WrapError(types.STORE_QUERY_FAILED, "failed to encode node properties", err)
	}

	var existingLabel string
	err = s.db.QueryRowContext(ctx, `SELECT label FROM nodes WHERE id = ?`, node.ID.String()).Scan(&existingLabel)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO nodes (id, label, properties, vectorizable_content, created_at, updated_at, version)
			 VALUES (?, ?, ?, ?, ?, ?, 1)`,
			node.ID.String(), node.Label, string(props), node.VectorizableContent,
			node.CreatedAt, node.UpdatedAt)
	case err != nil:
		return types.WrapError(types.STORE_QUERY_FAILED, "failed to look up node", err)
	case existingLabel != node.Label:
		return types.NewErrorf(types.VALIDATION_FAILED,
			"node %s label is immutable (%s -> %s)", node.ID, existingLabel, node.Label)
	default:
		_, err = s.db.ExecContext(ctx,
			`UPDATE nodes SET properties = ?, vectorizable_content = ?, updated_at = ?, version = version + 1
			 WHERE id = ?`,
			string(props), node.VectorizableContent, time.Now(), node.ID.String())
	}
	if err != nil {
		return types.WrapError(types.STORE_QUERY_FAILED, "failed to persist node", err)
	}
	return nil
}

// AddEdge persists an edge. Both endpoints must exist.
func (s *SqliteGraphStore) AddEdge(ctx context.Context, edge *knowledge.Edge) error {
	if err := edge.Validate(); err != nil {
		return err
	}

	for _, endpoint := range []types.ID{edge.SourceID, edge.TargetID} {
		var one int
		if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, endpoint.String()).Scan(&one); err != nil {
			if err == sql.ErrNoRows {
				return types.NewErrorf(types.NODE_NOT_FOUND, "edge endpoint node %s not found", endpoint)
			}
			return types.WrapError(types.STORE_QUERY_FAILED, "failed to look up edge endpoint", err)
		}
	}

	props, err := json.Marshal(edge.Properties)
	if err != nil {
		return types.WrapError(types.STORE_QUERY_FAILED, "failed to encode edge properties", err)
	}

	var weight any
	if edge.Weight != nil {
		weight = *edge.Weight
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO edges (id, relation_name, source_id, target_id, properties, weight, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		edge.ID.String(), edge.RelationName, edge.SourceID.String(), edge.TargetID.String(),
		string(props), weight, edge.CreatedAt)
	if err != nil {
		return types.WrapError(types.STORE_QUERY_FAILED, "failed to persist edge", err)
	}
	return nil
}

// GetNode returns the node with the given id.
func (s *SqliteGraphStore) GetNode(ctx context.Context, id types.ID) (*knowledge.Node, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, properties, vectorizable_content, created_at, updated_at, version
		 FROM nodes WHERE id = ?`, id.String())

	node, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, types.NewErrorf(types.NODE_NOT_FOUND, "node %s not found", id)
	}
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to read node", err)
	}
	return node, nil
}

// GetEdgesForNode returns every edge touching the node.
func (s *SqliteGraphStore) GetEdgesForNode(ctx context.Context, id types.ID) ([]*knowledge.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, relation_name, source_id, target_id, properties, weight, created_at
		 FROM edges WHERE source_id = ? OR target_id = ? ORDER BY id`, id.String(), id.String())
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to read edges", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// FindNodesByLabel returns all nodes with the given label, ordered by id.
func (s *SqliteGraphStore) FindNodesByLabel(ctx context.Context, label string) ([]*knowledge.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, properties, vectorizable_content, created_at, updated_at, version
		 FROM nodes WHERE label = ? ORDER BY id`, label)
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to query nodes by label", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// FindNodesByProperty returns all nodes with the given label whose property
// key equals value exactly. Property comparison happens in Go after the
// label scan so it matches the memory backend's semantics for all scalar
// property types.
func (s *SqliteGraphStore) FindNodesByProperty(ctx context.Context, label, key string, value any) ([]*knowledge.Node, error) {
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

// propertyEqual compares property values across the JSON decoding boundary:
// numbers decode as float64 regardless of how the caller supplied them, and
// structured values (slices, maps) must not panic the comparison.
func propertyEqual(stored, queried any) bool {
	storedNum, sok := toFloat(stored)
	queriedNum, qok := toFloat(queried)
	if sok && qok {
		return storedNum == queriedNum
	}
	return reflect.DeepEqual(stored, queried)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// ExtractSubgraph expands the frontier one hop per query up to maxDepth,
// then returns all edges connecting the collected nodes.
func (s *SqliteGraphStore) ExtractSubgraph(ctx context.Context, seedIDs []types.ID, maxDepth int) (*Subgraph, error) {
	visited := make(map[types.ID]bool)
	var order []types.ID

	frontier := make([]types.ID, 0, len(seedIDs))
	for _, id := range seedIDs {
		if _, err := s.GetNode(ctx, id); err != nil {
			if types.CodeOf(err) == types.NODE_NOT_FOUND {
				continue
			}
			return nil, err
		}
		if !visited[id] {
			visited[id] = true
			order = append(order, id)
			frontier = append(frontier, id)
		}
	}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		neighbors, err := s.neighborsOf(ctx, frontier)
		if err != nil {
			return nil, err
		}
		var next []types.ID
		for _, id := range neighbors {
			if !visited[id] {
				visited[id] = true
				order = append(order, id)
				next = append(next, id)
			}
		}
		frontier = next
	}

	sub := &Subgraph{}
	for _, id := range order {
		node, err := s.GetNode(ctx, id)
		if err != nil {
			return nil, err
		}
		sub.Nodes = append(sub.Nodes, node)
	}

	edges, err := s.edgesAmong(ctx, order)
	if err != nil {
		return nil, err
	}
	sub.Edges = edges
	return sub, nil
}

// neighborsOf returns the ids adjacent to any node in ids, in query order.
func (s *SqliteGraphStore) neighborsOf(ctx context.Context, ids []types.ID) ([]types.ID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders, args := idArgs(ids)
	query := fmt.Sprintf(
		`SELECT source_id, target_id FROM edges WHERE source_id IN (%s) OR target_id IN (%s) ORDER BY id`,
		placeholders, placeholders)
	rows, err := s.db.QueryContext(ctx, query, append(args, args...)...)
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to query neighbors", err)
	}
	defer rows.Close()

	inFrontier := make(map[types.ID]bool, len(ids))
	for _, id := range ids {
		inFrontier[id] = true
	}

	var neighbors []types.ID
	for rows.Next() {
		var src, dst string
		if err := rows.Scan(&src, &dst); err != nil {
			return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to scan edge endpoints", err)
		}
		if inFrontier[types.ID(src)] {
			neighbors = append(neighbors, types.ID(dst))
		}
		if inFrontier[types.ID(dst)] {
			neighbors = append(neighbors, types.ID(src))
		}
	}
	return neighbors, nil
}

// edgesAmong returns all edges whose both endpoints are in ids.
func (s *SqliteGraphStore) edgesAmong(ctx context.Context, ids []types.ID) ([]*knowledge.Edge, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders, args := idArgs(ids)
	query := fmt.Sprintf(
		`SELECT id, relation_name, source_id, target_id, properties, weight, created_at
		 FROM edges WHERE source_id IN (%s) AND target_id IN (%s) ORDER BY id`,
		placeholders, placeholders)
	rows, err := s.db.QueryContext(ctx, query, append(args, args...)...)
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to query subgraph edges", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

func idArgs(ids []types.ID) (string, []any) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	return placeholders, args
}

// Registry exposes the relation types registered via Initialize.
func (s *SqliteGraphStore) Registry() knowledge.RelationRegistry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry
}

// Stats returns node and edge counts.
func (s *SqliteGraphStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&stats.NodeCount); err != nil {
		return Stats{}, types.WrapError(types.STORE_QUERY_FAILED, "failed to count nodes", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges`).Scan(&stats.EdgeCount); err != nil {
		return Stats{}, types.WrapError(types.STORE_QUERY_FAILED, "failed to count edges", err)
	}
	return stats, nil
}

// Health pings the database.
func (s *SqliteGraphStore) Health(ctx context.Context) types.HealthStatus {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return types.Unhealthy("graph store is closed")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return types.Unhealthy(fmt.Sprintf("ping failed: %v", err))
	}
	return types.Healthy()
}

// Close releases the database handle.
func (s *SqliteGraphStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*knowledge.Node, error) {
	var node knowledge.Node
	var id, props string
	var content sql.NullString
	if err := row.Scan(&id, &node.Label, &props, &content, &node.CreatedAt, &node.UpdatedAt, &node.Version); err != nil {
		return nil, err
	}
	node.ID = types.ID(id)
	node.VectorizableContent = content.String
	if err := json.Unmarshal([]byte(props), &node.Properties); err != nil {
		return nil, fmt.Errorf("corrupt node properties for %s: %w", id, err)
	}
	return &node, nil
}

func scanNodes(rows *sql.Rows) ([]*knowledge.Node, error) {
	var result []*knowledge.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to scan node", err)
		}
		result = append(result, node)
	}
	return result, rows.Err()
}

func scanEdges(rows *sql.Rows) ([]*knowledge.Edge, error) {
	var result []*knowledge.Edge
	for rows.Next() {
		var edge knowledge.Edge
		var id, src, dst, props string
		var weight sql.NullFloat64
		if err := rows.Scan(&id, &edge.RelationName, &src, &dst, &props, &weight, &edge.CreatedAt); err != nil {
			return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to scan edge", err)
		}
		edge.ID = types.ID(id)
		edge.SourceID = types.ID(src)
		edge.TargetID = types.ID(dst)
		if weight.Valid {
			w := weight.Float64
			edge.Weight = &w
		}
		if err := json.Unmarshal([]byte(props), &edge.Properties); err != nil {
			return nil, types.WrapError(types.STORE_QUERY_FAILED, "corrupt edge properties", err)
		}
		result = append(result, &edge)
	}
	return result, rows.Err()
}
