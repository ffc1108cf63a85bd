package context

import (
	"github.com/mu-kernel/mukernel/pkg/graph"
	"github.com/mu-kernel/mukernel/pkg/model"
)

// expandCandidates grows a seed set by bounded BFS (spec.md §4.5 step 4),
// adding neighbors as lower-confidence candidates up to maxNodes total.
// Returns the full candidate id set (seeds plus expansion) in discovery
// order, seeds first.
func expandCandidates(g *graph.Engine, seeds []model.NodeID, depth, maxNodes int) []model.NodeID {
	seen := map[model.NodeID]bool{}
	out := make([]model.NodeID, 0, len(seeds))
	for _, id := range seeds {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if depth < 1 {
		depth = 1
	}
	for _, id := range seeds {
		if len(out) >= maxNodes {
			break
		}
		neighbors, err := g.Neighbors(id, graph.DirBoth, depth)
		if err != nil {
			continue
		}
		for _, n := range neighbors {
			if len(out) >= maxNodes {
				break
			}
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

// computeDistances runs a multi-source BFS from every seed simultaneously
// (scorer.py `_compute_distances`), capping the walk at expandDepth+1
// hops and recording, for each candidate present in targets, its shortest
// distance from any seed.
func computeDistances(g *graph.Engine, seeds []model.NodeID, targets []model.NodeID, expandDepth int) map[model.NodeID]int {
	distances := map[model.NodeID]int{}
	if len(seeds) == 0 {
		return distances
	}
	targetSet := make(map[model.NodeID]bool, len(targets))
	for _, t := range targets {
		targetSet[t] = true
	}

	type item struct {
		id    model.NodeID
		depth int
	}
	visited := map[model.NodeID]bool{}
	queue := make([]item, 0, len(seeds))
	for _, s := range seeds {
		if !visited[s] {
			visited[s] = true
			queue = append(queue, item{id: s, depth: 0})
			if targetSet[s] {
				distances[s] = 0
			}
		}
	}

	maxDepth := expandDepth + 1
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		neighbors, err := g.Neighbors(cur.id, graph.DirBoth, 1)
		if err != nil {
			continue
		}
		for _, n := range neighbors {
			if visited[n] {
				continue
			}
			visited[n] = true
			nd := cur.depth + 1
			queue = append(queue, item{id: n, depth: nd})
			if targetSet[n] {
				distances[n] = nd
			}
		}
	}
	return distances
}
