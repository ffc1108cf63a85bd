// Package graph implements the in-memory directed multigraph that sits
// over the mubase: strongly-connected components, reachability, and
// shortest-path queries that would be painful to express as repeated
// point lookups against the Store.
//
// Grounded on the BFS traversal shape of the teacher's Cypher
// shortestPath executor (pkg/cypher/traversal.go), generalized from a
// single-pair query into a reusable adjacency-list engine that MUQL's
// graph plans and the Smart Context Extractor's expansion pass both call
// directly, in process, rather than through a query string.
package graph

import (
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/kernel"
	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// Direction selects which adjacency a traversal follows.
type Direction int

const (
	DirOut Direction = iota
	DirIn
	DirBoth
)

type adjEntry struct {
	to   model.NodeID
	typ  model.EdgeType
}

// Engine is the loaded in-memory graph. It is not safe for concurrent use
// across a Load and a query; callers (the daemon worker) serialize Load
// against readers with their own discipline (spec.md §4.7).
type Engine struct {
	loaded bool

	nodeIDs map[model.NodeID]struct{}
	out     map[model.NodeID][]adjEntry
	in      map[model.NodeID][]adjEntry
}

// New returns an unloaded Engine. Every query method returns
// kernel.ErrGraphNotLoaded until Load succeeds.
func New() *Engine {
	return &Engine{}
}

// Load performs a bulk read of every node and edge from s and builds the
// adjacency lists. Reloading is explicit and wholesale: Load always
// replaces the entire prior graph rather than patching it, matching
// spec.md §4.2 "callers are responsible for invalidation after writes."
func (e *Engine) Load(s *store.Store) error {
	var nodes []*model.Node
	var edges []*model.Edge

	err := s.View(func(txn *badger.Txn) error {
		var err error
		nodes, err = store.ScanAllNodes(txn)
		if err != nil {
			return err
		}
		edges, err = store.ScanAllEdges(txn)
		return err
	})
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}

	nodeIDs := make(map[model.NodeID]struct{}, len(nodes))
	for _, n := range nodes {
		nodeIDs[n.ID] = struct{}{}
	}

	out := make(map[model.NodeID][]adjEntry, len(nodes))
	in := make(map[model.NodeID][]adjEntry, len(nodes))
	for _, ed := range edges {
		out[ed.Source] = append(out[ed.Source], adjEntry{to: ed.Target, typ: ed.Type})
		in[ed.Target] = append(in[ed.Target], adjEntry{to: ed.Source, typ: ed.Type})
	}

	e.nodeIDs = nodeIDs
	e.out = out
	e.in = in
	e.loaded = true
	return nil
}

func (e *Engine) ensureLoaded() error {
	if !e.loaded {
		return fmt.Errorf("graph engine: %w", kernel.ErrGraphNotLoaded)
	}
	return nil
}

func matchesType(types []model.EdgeType, t model.EdgeType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

func (e *Engine) neighborsOf(id model.NodeID, dir Direction, types []model.EdgeType) []model.NodeID {
	var out []model.NodeID
	add := func(entries []adjEntry) {
		for _, a := range entries {
			if matchesType(types, a.typ) {
				out = append(out, a.to)
			}
		}
	}
	switch dir {
	case DirOut:
		add(e.out[id])
	case DirIn:
		add(e.in[id])
	case DirBoth:
		add(e.out[id])
		add(e.in[id])
	}
	return out
}

// Impact returns every node reachable from node by following outgoing
// edges, excluding node itself, optionally restricted to edgeTypes.
func (e *Engine) Impact(node model.NodeID, edgeTypes ...model.EdgeType) ([]model.NodeID, error) {
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}
	return e.bfsReachable(node, DirOut, edgeTypes), nil
}

// Ancestors returns every node that can reach node by following incoming
// edges, excluding node itself, optionally restricted to edgeTypes.
func (e *Engine) Ancestors(node model.NodeID, edgeTypes ...model.EdgeType) ([]model.NodeID, error) {
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}
	return e.bfsReachable(node, DirIn, edgeTypes), nil
}

func (e *Engine) bfsReachable(start model.NodeID, dir Direction, edgeTypes []model.EdgeType) []model.NodeID {
	visited := map[model.NodeID]bool{start: true}
	queue := []model.NodeID{start}
	var out []model.NodeID

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range e.neighborsOf(cur, dir, edgeTypes) {
			if visited[next] {
				continue
			}
			visited[next] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	return out
}

// Neighbors returns every node within depth hops of node in the given
// direction, excluding node itself. depth must be >= 1.
func (e *Engine) Neighbors(node model.NodeID, dir Direction, depth int, edgeTypes ...model.EdgeType) ([]model.NodeID, error) {
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}
	if depth < 1 {
		return nil, fmt.Errorf("neighbors: depth must be >= 1, got %d", depth)
	}

	visited := map[model.NodeID]bool{node: true}
	type item struct {
		id    model.NodeID
		level int
	}
	queue := []item{{id: node, level: 0}}
	var out []model.NodeID

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.level >= depth {
			continue
		}
		for _, next := range e.neighborsOf(cur.id, dir, edgeTypes) {
			if visited[next] {
				continue
			}
			visited[next] = true
			out = append(out, next)
			queue = append(queue, item{id: next, level: cur.level + 1})
		}
	}
	return out, nil
}

// ShortestPath returns the unweighted shortest path from -> to (inclusive
// of both endpoints), or nil if no path exists.
func (e *Engine) ShortestPath(from, to model.NodeID, edgeTypes ...model.EdgeType) ([]model.NodeID, error) {
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}
	if from == to {
		return []model.NodeID{from}, nil
	}

	prev := map[model.NodeID]model.NodeID{}
	visited := map[model.NodeID]bool{from: true}
	queue := []model.NodeID{from}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range e.neighborsOf(cur, DirOut, edgeTypes) {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = cur
			if next == to {
				return reconstructPath(prev, from, to), nil
			}
			queue = append(queue, next)
		}
	}
	return nil, nil
}

func reconstructPath(prev map[model.NodeID]model.NodeID, from, to model.NodeID) []model.NodeID {
	path := []model.NodeID{to}
	cur := to
	for cur != from {
		cur = prev[cur]
		path = append(path, cur)
	}
	// reverse
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// FindCycles returns every strongly-connected component of size > 1,
// optionally restricted to edgeTypes. Components are sorted by their
// lexicographically smallest member; within a component the smallest
// member comes first (spec.md §4.2), giving callers a stable,
// diff-friendly ordering across runs.
func (e *Engine) FindCycles(edgeTypes ...model.EdgeType) ([][]model.NodeID, error) {
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}

	sccs := e.tarjanSCC(edgeTypes)

	var cycles [][]model.NodeID
	for _, comp := range sccs {
		if len(comp) > 1 {
			sort.Slice(comp, func(i, j int) bool { return comp[i] < comp[j] })
			cycles = append(cycles, comp)
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles, nil
}

// tarjanSCC computes strongly-connected components of the subgraph
// induced by edgeTypes, using Tarjan's algorithm with an explicit stack
// to avoid recursion depth limits on large codebases.
func (e *Engine) tarjanSCC(edgeTypes []model.EdgeType) [][]model.NodeID {
	index := 0
	indices := map[model.NodeID]int{}
	lowlink := map[model.NodeID]int{}
	onStack := map[model.NodeID]bool{}
	var stack []model.NodeID
	var result [][]model.NodeID

	// iterative Tarjan using an explicit call-frame stack
	type frame struct {
		node    model.NodeID
		iter    int
		succ    []model.NodeID
	}

	ids := make([]model.NodeID, 0, len(e.nodeIDs))
	for id := range e.nodeIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var strongconnect func(v model.NodeID)
	strongconnect = func(v model.NodeID) {
		var work []*frame
		work = append(work, &frame{node: v, succ: e.neighborsOf(v, DirOut, edgeTypes)})
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for len(work) > 0 {
			f := work[len(work)-1]
			if f.iter < len(f.succ) {
				w := f.succ[f.iter]
				f.iter++
				if _, seen := indices[w]; !seen {
					indices[w] = index
					lowlink[w] = index
					index++
					stack = append(stack, w)
					onStack[w] = true
					work = append(work, &frame{node: w, succ: e.neighborsOf(w, DirOut, edgeTypes)})
				} else if onStack[w] {
					if indices[w] < lowlink[f.node] {
						lowlink[f.node] = indices[w]
					}
				}
				continue
			}

			// done with f.node; pop and propagate lowlink to parent
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := work[len(work)-1]
				if lowlink[f.node] < lowlink[parent.node] {
					lowlink[parent.node] = lowlink[f.node]
				}
			}

			if lowlink[f.node] == indices[f.node] {
				var comp []model.NodeID
				for {
					n := len(stack) - 1
					w := stack[n]
					stack = stack[:n]
					onStack[w] = false
					comp = append(comp, w)
					if w == f.node {
						break
					}
				}
				result = append(result, comp)
			}
		}
	}

	for _, id := range ids {
		if _, seen := indices[id]; !seen {
			strongconnect(id)
		}
	}
	return result
}
