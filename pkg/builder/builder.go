// Package builder implements the Incremental Builder of spec.md §4.3: it
// turns a stream of ModuleDef records (the external parser's output) into
// the node/edge mutations that keep the mubase's graph in sync with the
// source tree, either as a wholesale rebuild or a per-file diff.
//
// Grounded directly on spec.md §4.3; the deterministic-ID derivation it
// depends on lives in pkg/model (ids.go).
package builder

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// Failure records one file's parse failure. The Builder leaves that
// file's previously stored state untouched (spec.md §4.3).
type Failure struct {
	Path string
	Err  error
}

// Result summarizes a Build or Update call.
type Result struct {
	NodesUpserted int
	NodesDeleted  int
	EdgesUpserted int
	EdgesDeleted  int
	ExternalsGCed int
	Failures      []Failure
}

// Builder applies ModuleDef streams to a Store.
type Builder struct {
	store *store.Store
}

// New returns a Builder writing to s.
func New(s *store.Store) *Builder {
	return &Builder{store: s}
}

// Build performs a full rebuild: every node and edge currently in the
// mubase is replaced by the graph derived from defs, in one transaction,
// so readers never observe a half-built graph (spec.md §4.1).
func (b *Builder) Build(defs []model.ModuleDef) (*Result, error) {
	r := newResolver()
	for _, def := range defs {
		registerDeclarations(def, r)
	}

	nodesByID := map[model.NodeID]*model.Node{}
	edgesByID := map[model.EdgeID]*model.Edge{}
	for _, def := range defs {
		nodes, edges := generateModule(def, r)
		for _, n := range nodes {
			nodesByID[n.ID] = n
		}
		for _, e := range edges {
			edgesByID[e.ID] = e
		}
	}

	res := &Result{}
	err := b.store.Update(func(txn *badger.Txn) error {
		oldNodes, err := store.ScanAllNodes(txn)
		if err != nil {
			return err
		}
		oldEdges, err := store.ScanAllEdges(txn)
		if err != nil {
			return err
		}
		for _, e := range oldEdges {
			if _, keep := edgesByID[e.ID]; !keep {
				if err := store.DeleteEdge(txn, e.ID); err != nil {
					return err
				}
				res.EdgesDeleted++
			}
		}
		for _, n := range oldNodes {
			if _, keep := nodesByID[n.ID]; !keep {
				if err := store.DeleteNode(txn, n.ID); err != nil {
					return err
				}
				res.NodesDeleted++
			}
		}
		for _, n := range nodesByID {
			if err := store.PutNode(txn, n); err != nil {
				return err
			}
			res.NodesUpserted++
		}
		for _, e := range edgesByID {
			if err := store.PutEdge(txn, e); err != nil {
				return err
			}
			res.EdgesUpserted++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	return res, nil
}

// Update applies a per-file incremental rebuild for the modules in defs,
// leaving every other file's nodes and edges untouched, then garbage
// collects external nodes left with no remaining incoming edge. failed
// lists files whose parse attempt failed; their previous state is left
// intact and the failures are reported on the Result (spec.md §4.3).
func (b *Builder) Update(defs []model.ModuleDef, failed []Failure) (*Result, error) {
	res := &Result{Failures: failed}

	err := b.store.Update(func(txn *badger.Txn) error {
		r, err := buildResolverFromStore(txn, defs)
		if err != nil {
			return err
		}

		for _, def := range defs {
			if err := b.applyFileDiff(txn, def, r, res); err != nil {
				return fmt.Errorf("apply diff for %s: %w", def.Path, err)
			}
		}

		return gcExternalNodes(txn, res)
	})
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	return res, nil
}

// buildResolverFromStore seeds a resolver with every module/class already
// in the store, then overlays the modules/classes declared by defs so
// that two files changing together can still reference each other.
func buildResolverFromStore(txn *badger.Txn, defs []model.ModuleDef) (*resolver, error) {
	r := newResolver()

	modules, err := store.ScanNodesByType(txn, model.NodeModule)
	if err != nil {
		return nil, err
	}
	for _, m := range modules {
		r.addModule(m.Name, m.ID)
	}

	classes, err := store.ScanNodesByType(txn, model.NodeClass)
	if err != nil {
		return nil, err
	}
	for _, c := range classes {
		r.addClass(c.QualifiedName, c.Name, c.ID)
	}

	for _, def := range defs {
		registerDeclarations(def, r)
	}
	return r, nil
}

// applyFileDiff replaces def.Path's nodes and edges with the ones freshly
// derived from def, per spec.md §4.3's incremental-update algorithm.
func (b *Builder) applyFileDiff(txn *badger.Txn, def model.ModuleDef, r *resolver, res *Result) error {
	newNodes, newEdges := generateModule(def, r)

	newNodeByID := map[model.NodeID]*model.Node{}
	for _, n := range newNodes {
		newNodeByID[n.ID] = n
	}
	newEdgeByID := map[model.EdgeID]*model.Edge{}
	for _, e := range newEdges {
		newEdgeByID[e.ID] = e
	}

	oldNodes, err := store.ScanNodesByFile(txn, def.Path)
	if err != nil {
		return err
	}
	oldNodeByID := map[model.NodeID]*model.Node{}
	for _, n := range oldNodes {
		oldNodeByID[n.ID] = n
	}

	var oldEdges []*model.Edge
	for _, n := range oldNodes {
		fromSrc, err := store.ScanEdgesFromSource(txn, n.ID)
		if err != nil {
			return err
		}
		oldEdges = append(oldEdges, fromSrc...)
	}
	oldEdgeByID := map[model.EdgeID]*model.Edge{}
	for _, e := range oldEdges {
		oldEdgeByID[e.ID] = e
	}

	for _, n := range oldNodes {
		if _, keep := newNodeByID[n.ID]; !keep {
			if err := store.DeleteNode(txn, n.ID); err != nil {
				return err
			}
			res.NodesDeleted++
		}
	}
	for _, e := range oldEdges {
		if _, keep := newEdgeByID[e.ID]; !keep {
			if err := store.DeleteEdge(txn, e.ID); err != nil {
				return err
			}
			res.EdgesDeleted++
		}
	}

	for _, n := range newNodes {
		old := oldNodeByID[n.ID]
		if old == nil && n.Type == model.NodeExternal {
			// External nodes carry no file path, so they are never among
			// the file's old nodes; compare against the stored copy.
			if stored, err := store.GetNode(txn, n.ID); err == nil {
				old = stored
			}
		}
		if nodeUnchanged(old, n) {
			continue
		}
		if err := store.PutNode(txn, n); err != nil {
			return err
		}
		res.NodesUpserted++
	}
	for _, e := range newEdges {
		if edgeUnchanged(oldEdgeByID[e.ID], e) {
			continue
		}
		if err := store.PutEdge(txn, e); err != nil {
			return err
		}
		res.EdgesUpserted++
	}
	return nil
}

// nodeUnchanged reports whether next carries the same content old already
// has on disk, ignoring CreatedAt/UpdatedAt (which generateModule always
// stamps with the current time regardless of whether anything changed).
// An unchanged node must not be written back, per spec.md §8's
// no-op-on-unchanged-input invariant.
func nodeUnchanged(old, next *model.Node) bool {
	if old == nil {
		return false
	}
	return old.Type == next.Type &&
		old.Name == next.Name &&
		old.QualifiedName == next.QualifiedName &&
		old.FilePath == next.FilePath &&
		old.Language == next.Language &&
		old.LineStart == next.LineStart &&
		old.LineEnd == next.LineEnd &&
		old.Complexity == next.Complexity &&
		old.ContentHash == next.ContentHash &&
		propsEqual(old.Properties, next.Properties)
}

// propsEqual compares a property bag read back from the store, which has
// been through the store's JSON codec, with a freshly generated one by
// passing next through the same JSON round trip first.
func propsEqual(stored, next model.Props) bool {
	if len(stored) == 0 && len(next) == 0 {
		return true
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return false
	}
	var normalized model.Props
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return false
	}
	return reflect.DeepEqual(stored, normalized)
}

// edgeUnchanged is nodeUnchanged's counterpart for edges, ignoring
// CreatedAt.
func edgeUnchanged(old, next *model.Edge) bool {
	if old == nil {
		return false
	}
	return old.Source == next.Source &&
		old.Target == next.Target &&
		old.Type == next.Type &&
		propsEqual(old.Properties, next.Properties)
}

// gcExternalNodes deletes every external node with no remaining incoming
// edge, matching spec.md §4.3's "garbage-collects unreferenced external
// nodes" step.
func gcExternalNodes(txn *badger.Txn, res *Result) error {
	externals, err := store.ScanNodesByType(txn, model.NodeExternal)
	if err != nil {
		return err
	}
	for _, ext := range externals {
		incoming, err := store.ScanEdgesToTarget(txn, ext.ID)
		if err != nil {
			return err
		}
		if len(incoming) == 0 {
			if err := store.DeleteNode(txn, ext.ID); err != nil {
				return err
			}
			res.ExternalsGCed++
		}
	}
	return nil
}
