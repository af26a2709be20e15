package graphstore

import (
	"context"
	"time"

	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

// TimeoutGraphStore wraps a GraphStore so every call carries its own
// deadline. A hung backend query then fails that one call instead of
// consuming the whole request budget.
type TimeoutGraphStore struct {
	inner   GraphStore
	timeout time.Duration
}

// NewTimeoutGraphStore wraps store with a per-call timeout.
func NewTimeoutGraphStore(store GraphStore, timeout time.Duration) *TimeoutGraphStore {
	return &TimeoutGraphStore{inner: store, timeout: timeout}
}

func (t *TimeoutGraphStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, t.timeout)
}

func (t *TimeoutGraphStore) Initialize(ctx context.Context, relationTypes []knowledge.RelationType) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.Initialize(ctx, relationTypes)
}

func (t *TimeoutGraphStore) AddNode(ctx context.Context, node *knowledge.Node) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.AddNode(ctx, node)
}

func (t *TimeoutGraphStore) AddEdge(ctx context.Context, edge *knowledge.Edge) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.AddEdge(ctx, edge)
}

func (t *TimeoutGraphStore) GetNode(ctx context.Context, id types.ID) (*knowledge.Node, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.GetNode(ctx, id)
}

func (t *TimeoutGraphStore) GetEdgesForNode(ctx context.Context, id types.ID) ([]*knowledge.Edge, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.GetEdgesForNode(ctx, id)
}

func (t *TimeoutGraphStore) FindNodesByLabel(ctx context.Context, label string) ([]*knowledge.Node, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.FindNodesByLabel(ctx, label)
}

func (t *TimeoutGraphStore) FindNodesByProperty(ctx context.Context, label, key string, value any) ([]*knowledge.Node, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.FindNodesByProperty(ctx, label, key, value)
}

func (t *TimeoutGraphStore) ExtractSubgraph(ctx context.Context, seedIDs []types.ID, maxDepth int) (*Subgraph, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.ExtractSubgraph(ctx, seedIDs, maxDepth)
}

func (t *TimeoutGraphStore) Registry() knowledge.RelationRegistry {
	return t.inner.Registry()
}

func (t *TimeoutGraphStore) Stats(ctx context.Context) (Stats, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.Stats(ctx)
}

func (t *TimeoutGraphStore) Health(ctx context.Context) types.HealthStatus {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.Health(ctx)
}

func (t *TimeoutGraphStore) Close(ctx context.Context) error {
	return t.inner.Close(ctx)
}
