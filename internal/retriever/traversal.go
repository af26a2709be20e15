package retriever

import (
	"context"
	"sort"

	"github.com/graphweave/graphweave/internal/graphstore"
	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

// traversal performs the unstructured breadth-first expansion around
// seed nodes. The graph store supplies a depth-bounded subgraph; the
// engine applies the relation allow-list, the direction constraint and
// the node cap on top of it.
type traversal struct {
	graph graphstore.GraphStore
}

// expand walks breadth-first from the seeds up to hint.MaxDepth hops.
// Each node is visited once at its shallowest depth. Once maxGraphNodes
// nodes are included, further discoveries are discarded whole. Returned
// edges are those connecting included nodes whose relation passes the
// allow-list; unregistered relation types traverse like any other.
func (t *traversal) expand(ctx context.Context, seeds []types.ID, hint TraversalHint, maxGraphNodes int) ([]*knowledge.Node, []*knowledge.Edge, error) {
	if len(seeds) == 0 {
		return nil, nil, nil
	}

	sub, err := t.graph.ExtractSubgraph(ctx, seeds, hint.MaxDepth)
	if err != nil {
		return nil, nil, err
	}

	nodeByID := make(map[types.ID]*knowledge.Node, len(sub.Nodes))
	for _, node := range sub.Nodes {
		nodeByID[node.ID] = node
	}

	// Adjacency sorted by edge ID so neighbor order, and therefore the
	// BFS visit order, is deterministic.
	adjacency := make(map[types.ID][]*knowledge.Edge)
	for _, edge := range sub.Edges {
		adjacency[edge.SourceID] = append(adjacency[edge.SourceID], edge)
		adjacency[edge.TargetID] = append(adjacency[edge.TargetID], edge)
	}
	for _, edges := range adjacency {
		sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	}

	included := make(map[types.ID]struct{})
	var order []types.ID
	include := func(id types.ID) bool {
		if _, dup := included[id]; dup {
			return true
		}
		if len(included) >= maxGraphNodes {
			return false
		}
		included[id] = struct{}{}
		order = append(order, id)
		return true
	}

	var frontier []types.ID
	for _, seed := range seeds {
		if _, present := nodeByID[seed]; !present {
			continue
		}
		if include(seed) {
			frontier = append(frontier, seed)
		}
	}

	for depth := 0; depth < hint.MaxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		var next []types.ID
		for _, current := range frontier {
			for _, edge := range adjacency[current] {
				if !hint.allows(edge.RelationName) {
					continue
				}
				neighbor, ok := follow(edge, current, hint.Direction)
				if !ok {
					continue
				}
				if _, present := nodeByID[neighbor]; !present {
					continue
				}
				if _, dup := included[neighbor]; dup {
					continue
				}
				if !include(neighbor) {
					continue
				}
				next = append(next, neighbor)
			}
		}
		frontier = next
	}

	nodes := make([]*knowledge.Node, 0, len(order))
	for _, id := range order {
		nodes = append(nodes, nodeByID[id])
	}

	var edges []*knowledge.Edge
	for _, edge := range sub.Edges {
		if !hint.allows(edge.RelationName) {
			continue
		}
		_, srcIn := included[edge.SourceID]
		_, dstIn := included[edge.TargetID]
		if srcIn && dstIn {
			edges = append(edges, edge)
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })

	return nodes, edges, nil
}

// follow returns the node reached by traversing edge away from current
// under the direction constraint, and whether the hop is permitted.
func follow(edge *knowledge.Edge, current types.ID, direction Direction) (types.ID, bool) {
	switch direction {
	case DirectionOutbound:
		if edge.SourceID == current {
			return edge.TargetID, true
		}
		return "", false
	case DirectionInbound:
		if edge.TargetID == current {
			return edge.SourceID, true
		}
		return "", false
	default:
		other := edge.Other(current)
		return other, other != ""
	}
}
