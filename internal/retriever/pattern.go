package retriever

import (
	"context"
	"sort"
	"strings"

	"github.com/graphweave/graphweave/internal/chunkstore"
	"github.com/graphweave/graphweave/internal/graphstore"
	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

// HybridWeights blends the four ranking signals for the HYBRID
// strategy. Semantic similarity dominates, path length and edge weight
// refine, centrality breaks near-ties.
type HybridWeights struct {
	Semantic   float64
	PathLength float64
	EdgeWeight float64
	Centrality float64
}

// DefaultHybridWeights returns the documented default blend.
func DefaultHybridWeights() HybridWeights {
	return HybridWeights{Semantic: 0.4, PathLength: 0.3, EdgeWeight: 0.2, Centrality: 0.1}
}

// patternEngine matches structured multi-hop patterns against the graph
// and ranks the complete instances.
type patternEngine struct {
	graph   graphstore.GraphStore
	chunks  chunkstore.ChunkStore
	weights HybridWeights
}

// matchedPath is one complete pattern instance rooted at a seed.
type matchedPath struct {
	nodes []*knowledge.Node
	edges []*knowledge.Edge
	score float64
}

func (p *matchedPath) terminal() *knowledge.Node {
	return p.nodes[len(p.nodes)-1]
}

// idKey is the path's node ID sequence, used as the final deterministic
// tie-break.
func (p *matchedPath) idKey() string {
	ids := make([]string, len(p.nodes))
	for i, node := range p.nodes {
		ids[i] = node.ID.String()
	}
	return strings.Join(ids, "/")
}

// match runs every pattern from every seed, scores the complete
// instances per each pattern's ranking strategy, and flattens the best
// paths into deduplicated node and edge lists. Zero matches is a normal
// empty result.
func (e *patternEngine) match(ctx context.Context, seeds []types.ID, patterns []GraphPattern, queryEmbedding []float64, maxGraphNodes int) ([]*knowledge.Node, []*knowledge.Edge, error) {
	var paths []*matchedPath
	for _, pattern := range patterns {
		matched, err := e.matchPattern(ctx, seeds, pattern)
		if err != nil {
			return nil, nil, err
		}
		if err := e.scorePaths(ctx, matched, pattern.Ranking, queryEmbedding); err != nil {
			return nil, nil, err
		}
		paths = append(paths, matched...)
	}
	if len(paths) == 0 {
		return nil, nil, nil
	}

	// Total order: score descending, then shorter path, then node ID
	// sequence.
	sort.Slice(paths, func(i, j int) bool {
		if paths[i].score != paths[j].score {
			return paths[i].score > paths[j].score
		}
		if len(paths[i].edges) != len(paths[j].edges) {
			return len(paths[i].edges) < len(paths[j].edges)
		}
		return paths[i].idKey() < paths[j].idKey()
	})
	if len(paths) > maxGraphNodes {
		paths = paths[:maxGraphNodes]
	}

	seenNodes := make(map[types.ID]struct{})
	seenEdges := make(map[types.ID]struct{})
	var nodes []*knowledge.Node
	var edges []*knowledge.Edge
	for _, path := range paths {
		// Whole paths only: a path whose nodes would push past the cap is
		// dropped, not clipped.
		fresh := 0
		for _, node := range path.nodes {
			if _, dup := seenNodes[node.ID]; !dup {
				fresh++
			}
		}
		if len(nodes)+fresh > maxGraphNodes {
			continue
		}
		for _, node := range path.nodes {
			if _, dup := seenNodes[node.ID]; dup {
				continue
			}
			seenNodes[node.ID] = struct{}{}
			nodes = append(nodes, node)
		}
		for _, edge := range path.edges {
			if _, dup := seenEdges[edge.ID]; dup {
				continue
			}
			seenEdges[edge.ID] = struct{}{}
			edges = append(edges, edge)
		}
	}
	return nodes, edges, nil
}

// matchPattern collects every complete instance of one pattern across
// all seeds.
func (e *patternEngine) matchPattern(ctx context.Context, seeds []types.ID, pattern GraphPattern) ([]*matchedPath, error) {
	var out []*matchedPath
	for _, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		root, err := e.graph.GetNode(ctx, seed)
		if err != nil {
			if types.CodeOf(err) == types.NODE_NOT_FOUND {
				continue
			}
			return nil, err
		}
		if root.Label != pattern.Steps[0].SourceLabel {
			continue
		}
		paths, err := e.extend(ctx, &matchedPath{nodes: []*knowledge.Node{root}}, pattern, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, paths...)
	}
	return out, nil
}

// extend advances one pattern step from the path's current tail,
// branching over every edge that satisfies the step. A step with no
// matching edge kills the branch; there is no partial credit.
func (e *patternEngine) extend(ctx context.Context, path *matchedPath, pattern GraphPattern, step int) ([]*matchedPath, error) {
	if step == len(pattern.Steps) {
		if !satisfiesConstraints(path, pattern.Constraints) {
			return nil, nil
		}
		return []*matchedPath{path}, nil
	}

	current := path.terminal()
	spec := pattern.Steps[step]
	if current.Label != spec.SourceLabel {
		return nil, nil
	}

	candidates, err := e.graph.GetEdgesForNode(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	var out []*matchedPath
	for _, edge := range candidates {
		if edge.SourceID != current.ID || !strings.EqualFold(edge.RelationName, spec.Relation) {
			continue
		}
		if containsNode(path, edge.TargetID) {
			continue
		}
		target, err := e.graph.GetNode(ctx, edge.TargetID)
		if err != nil {
			return nil, err
		}
		if target.Label != spec.TargetLabel {
			continue
		}
		branch := &matchedPath{
			nodes: append(append([]*knowledge.Node(nil), path.nodes...), target),
			edges: append(append([]*knowledge.Edge(nil), path.edges...), edge),
		}
		extended, err := e.extend(ctx, branch, pattern, step+1)
		if err != nil {
			return nil, err
		}
		out = append(out, extended...)
	}
	return out, nil
}

func containsNode(path *matchedPath, id types.ID) bool {
	for _, node := range path.nodes {
		if node.ID == id {
			return true
		}
	}
	return false
}

// satisfiesConstraints checks every path node against the constraints
// declared for its label.
func satisfiesConstraints(path *matchedPath, constraints []Constraint) bool {
	for _, constraint := range constraints {
		for _, node := range path.nodes {
			if constraint.appliesTo(node) && !constraint.Satisfied(node) {
				return false
			}
		}
	}
	return true
}

// scorePaths assigns each path its score under the pattern's ranking
// strategy. An empty strategy defaults to PATH_LENGTH.
func (e *patternEngine) scorePaths(ctx context.Context, paths []*matchedPath, strategy RankingStrategy, queryEmbedding []float64) error {
	if len(paths) == 0 {
		return nil
	}
	if strategy == "" {
		strategy = RankPathLength
	}

	switch strategy {
	case RankPathLength:
		for _, path := range paths {
			path.score = pathLengthScore(path)
		}
	case RankEdgeWeight:
		// Aggregation is the sum of traversed weights, missing weight 1.0.
		for _, path := range paths {
			path.score = edgeWeightScore(path)
		}
	case RankNodeCentrality:
		degrees := terminalDegrees(paths)
		for _, path := range paths {
			path.score = degrees[path.terminal().ID]
		}
	case RankSemanticScore:
		for _, path := range paths {
			score, err := e.semanticScore(ctx, path, queryEmbedding)
			if err != nil {
				return err
			}
			path.score = score
		}
	case RankHybrid:
		if err := e.scoreHybrid(ctx, paths, queryEmbedding); err != nil {
			return err
		}
	}
	return nil
}

func pathLengthScore(path *matchedPath) float64 {
	return 1.0 / float64(len(path.edges))
}

func edgeWeightScore(path *matchedPath) float64 {
	var sum float64
	for _, edge := range path.edges {
		sum += edge.EffectiveWeight()
	}
	return sum
}

// terminalDegrees computes each terminal node's degree within the
// subgraph traversed by the candidate paths.
func terminalDegrees(paths []*matchedPath) map[types.ID]float64 {
	seen := make(map[types.ID]struct{})
	degrees := make(map[types.ID]float64)
	for _, path := range paths {
		for _, edge := range path.edges {
			if _, dup := seen[edge.ID]; dup {
				continue
			}
			seen[edge.ID] = struct{}{}
			degrees[edge.SourceID]++
			degrees[edge.TargetID]++
		}
	}
	return degrees
}

// semanticScore is the best cosine similarity between the query
// embedding and the terminal node's linked chunks, zero when the node
// has no linked chunk or no query embedding is available.
func (e *patternEngine) semanticScore(ctx context.Context, path *matchedPath, queryEmbedding []float64) (float64, error) {
	if len(queryEmbedding) == 0 {
		return 0, nil
	}
	linked, err := e.chunks.FindByLinkedNodeID(ctx, path.terminal().ID)
	if err != nil {
		return 0, err
	}
	best := 0.0
	for _, chunk := range linked {
		score, err := chunkstore.CosineSimilarity(queryEmbedding, chunk.Embedding)
		if err != nil {
			continue
		}
		if score > best {
			best = score
		}
	}
	return best, nil
}

// scoreHybrid blends all four signals. Edge weight and centrality are
// normalized against the candidate set's maximum so the weighted sum
// stays comparable across corpora.
func (e *patternEngine) scoreHybrid(ctx context.Context, paths []*matchedPath, queryEmbedding []float64) error {
	degrees := terminalDegrees(paths)
	maxWeight, maxDegree := 0.0, 0.0
	weights := make([]float64, len(paths))
	for i, path := range paths {
		weights[i] = edgeWeightScore(path)
		if weights[i] > maxWeight {
			maxWeight = weights[i]
		}
		if d := degrees[path.terminal().ID]; d > maxDegree {
			maxDegree = d
		}
	}

	for i, path := range paths {
		semantic, err := e.semanticScore(ctx, path, queryEmbedding)
		if err != nil {
			return err
		}
		score := e.weights.Semantic*semantic + e.weights.PathLength*pathLengthScore(path)
		if maxWeight > 0 {
			score += e.weights.EdgeWeight * (weights[i] / maxWeight)
		}
		if maxDegree > 0 {
			score += e.weights.Centrality * (degrees[path.terminal().ID] / maxDegree)
		}
		path.score = score
	}
	return nil
}
