package retriever

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/graphweave/graphweave/internal/chunkstore"
	"github.com/graphweave/graphweave/internal/embedder"
	"github.com/graphweave/graphweave/internal/graphstore"
	"github.com/graphweave/graphweave/internal/types"
)

// resolveTopK is how many chunk candidates a description-based target
// considers; each candidate contributes its linked node.
const resolveTopK = 5

// resolverConcurrency bounds how many targets resolve in parallel, so a
// multi-target query cannot fan out unboundedly against the embedding
// provider.
const resolverConcurrency = 4

// resolver turns ResolutionTargets into graph entry points.
type resolver struct {
	graph  graphstore.GraphStore
	chunks chunkstore.ChunkStore
	embed  embedder.Embedder
	logger *slog.Logger
}

// resolve maps each target to node IDs and deduplicates across targets,
// preserving first-seen order. An empty result is a normal outcome, not
// an error.
func (r *resolver) resolve(ctx context.Context, targets []ResolutionTarget) ([]types.ID, error) {
	perTarget := make([][]types.ID, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolverConcurrency)
	for i, target := range targets {
		g.Go(func() error {
			ids, err := r.resolveOne(gctx, target)
			if err != nil {
				return err
			}
			perTarget[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[types.ID]struct{})
	var out []types.ID
	for _, ids := range perTarget {
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *resolver) resolveOne(ctx context.Context, target ResolutionTarget) ([]types.ID, error) {
	if len(target.PropertyFilter) > 0 {
		return r.resolveByProperties(ctx, target)
	}
	return r.resolveByDescription(ctx, target)
}

// resolveByProperties is an exact lookup: all nodes of the hinted label
// matching every filter predicate, in deterministic order.
func (r *resolver) resolveByProperties(ctx context.Context, target ResolutionTarget) ([]types.ID, error) {
	keys := make([]string, 0, len(target.PropertyFilter))
	for key := range target.PropertyFilter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// Query the store on the first predicate, then narrow on the rest.
	first := keys[0]
	nodes, err := r.graph.FindNodesByProperty(ctx, target.TypeHint, first, target.PropertyFilter[first])
	if err != nil {
		return nil, err
	}

	var out []types.ID
	for _, node := range nodes {
		matched := true
		for _, key := range keys[1:] {
			value, ok := node.LookupProperty(key)
			if !ok || !valuesEqual(value, target.PropertyFilter[key]) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, node.ID)
		}
	}
	return out, nil
}

// resolveByDescription embeds the description and follows the linked
// nodes of the most similar chunks. A target with no linked candidates
// contributes nothing without failing the resolution.
func (r *resolver) resolveByDescription(ctx context.Context, target ResolutionTarget) ([]types.ID, error) {
	vec, err := r.embed.Embed(ctx, target.Description)
	if err != nil {
		return nil, err
	}

	var scored []chunkstore.ScoredChunk
	if target.TypeHint != "" {
		scored, err = r.chunks.FindTopKSimilarWithLabelFilter(ctx, vec, resolveTopK, target.TypeHint)
	} else {
		scored, err = r.chunks.FindTopKSimilar(ctx, vec, resolveTopK)
	}
	if err != nil {
		return nil, err
	}

	var out []types.ID
	for _, sc := range scored {
		if !sc.Chunk.IsLinked() {
			continue
		}
		out = append(out, sc.Chunk.LinkedNodeID)
	}
	if len(out) == 0 {
		r.logger.Debug("target resolved to no entry points", "description", target.Description)
	}
	return out, nil
}
