package temporal

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/kernel"
	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// NodeDiff describes one node's change between two snapshots.
type NodeDiff struct {
	NodeID     model.NodeID
	Name       string
	Type       model.NodeType
	FilePath   string
	ChangeType model.ChangeType
}

// EdgeDiff describes one edge's change between two snapshots.
type EdgeDiff struct {
	EdgeID     model.EdgeID
	Source     model.NodeID
	Target     model.NodeID
	Type       model.EdgeType
	ChangeType model.ChangeType
}

// GraphDiff is the semantic difference between two snapshots.
type GraphDiff struct {
	From *model.Snapshot
	To   *model.Snapshot

	NodesAdded    []NodeDiff
	NodesRemoved  []NodeDiff
	NodesModified []NodeDiff

	EdgesAdded   []EdgeDiff
	EdgesRemoved []EdgeDiff
}

// Diff computes the diff between the snapshots for fromCommit and toCommit
// (spec.md §4.6). Either commit without a snapshot returns an error
// wrapping kernel.ErrNotFound.
func (s *Service) Diff(ctx context.Context, fromCommit, toCommit string) (*GraphDiff, error) {
	var result *GraphDiff
	err := s.store.View(func(txn *badger.Txn) error {
		from, err := store.GetSnapshotByCommit(txn, fromCommit)
		if err != nil {
			return fmt.Errorf("from commit %s: %w", fromCommit, err)
		}
		to, err := store.GetSnapshotByCommit(txn, toCommit)
		if err != nil {
			return fmt.Errorf("to commit %s: %w", toCommit, err)
		}
		d, err := diffSnapshots(txn, from, to)
		if err != nil {
			return err
		}
		result = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RangeDiff computes the diff(s) spanning fromCommit..toCommit. With
// includeIntermediate false it returns a single GraphDiff covering the
// whole span; with it true, it returns one GraphDiff per consecutive pair
// of snapshots whose commit time falls within [from, to].
func (s *Service) RangeDiff(ctx context.Context, fromCommit, toCommit string, includeIntermediate bool) ([]*GraphDiff, error) {
	if !includeIntermediate {
		d, err := s.Diff(ctx, fromCommit, toCommit)
		if err != nil {
			return nil, err
		}
		return []*GraphDiff{d}, nil
	}

	var result []*GraphDiff
	err := s.store.View(func(txn *badger.Txn) error {
		from, err := store.GetSnapshotByCommit(txn, fromCommit)
		if err != nil {
			return fmt.Errorf("from commit %s: %w", fromCommit, err)
		}
		to, err := store.GetSnapshotByCommit(txn, toCommit)
		if err != nil {
			return fmt.Errorf("to commit %s: %w", toCommit, err)
		}

		all, err := store.ScanSnapshots(txn)
		if err != nil {
			return err
		}

		var inRange []*model.Snapshot
		for _, snap := range all {
			if !snap.CreatedAt.Before(from.CreatedAt) && !snap.CreatedAt.After(to.CreatedAt) {
				inRange = append(inRange, snap)
			}
		}
		sort.Slice(inRange, func(i, j int) bool { return inRange[i].CreatedAt.Before(inRange[j].CreatedAt) })

		if len(inRange) < 2 {
			d, err := diffSnapshots(txn, from, to)
			if err != nil {
				return err
			}
			result = []*GraphDiff{d}
			return nil
		}

		for i := 0; i < len(inRange)-1; i++ {
			d, err := diffSnapshots(txn, inRange[i], inRange[i+1])
			if err != nil {
				return err
			}
			result = append(result, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// diffSnapshots compares the node/edge presence sets recorded at from and
// to, the way TemporalDiffer._get_nodes_at_snapshot/_diff_nodes do: every
// history record with change_type != removed is "present" at that
// snapshot, and presence sets are compared by id, with body hash
// deciding added-vs-present members as modified.
func diffSnapshots(txn *badger.Txn, from, to *model.Snapshot) (*GraphDiff, error) {
	fromNodes, err := nodesAtSnapshot(txn, from.ID)
	if err != nil {
		return nil, err
	}
	toNodes, err := nodesAtSnapshot(txn, to.ID)
	if err != nil {
		return nil, err
	}
	fromEdges, err := edgesAtSnapshot(txn, from.ID)
	if err != nil {
		return nil, err
	}
	toEdges, err := edgesAtSnapshot(txn, to.ID)
	if err != nil {
		return nil, err
	}

	diff := &GraphDiff{From: from, To: to}

	for id, rec := range toNodes {
		if _, ok := fromNodes[id]; !ok {
			diff.NodesAdded = append(diff.NodesAdded, NodeDiff{
				NodeID: id, Name: rec.node.Name, Type: rec.node.Type,
				FilePath: rec.node.FilePath, ChangeType: model.ChangeAdded,
			})
		}
	}
	for id, rec := range fromNodes {
		if _, ok := toNodes[id]; !ok {
			diff.NodesRemoved = append(diff.NodesRemoved, NodeDiff{
				NodeID: id, Name: rec.node.Name, Type: rec.node.Type,
				FilePath: rec.node.FilePath, ChangeType: model.ChangeRemoved,
			})
		}
	}
	for id, toRec := range toNodes {
		fromRec, ok := fromNodes[id]
		if ok && fromRec.hash != toRec.hash {
			diff.NodesModified = append(diff.NodesModified, NodeDiff{
				NodeID: id, Name: toRec.node.Name, Type: toRec.node.Type,
				FilePath: toRec.node.FilePath, ChangeType: model.ChangeModified,
			})
		}
	}

	for id, e := range toEdges {
		if _, ok := fromEdges[id]; !ok {
			diff.EdgesAdded = append(diff.EdgesAdded, EdgeDiff{
				EdgeID: id, Source: e.Source, Target: e.Target, Type: e.Type,
				ChangeType: model.ChangeAdded,
			})
		}
	}
	for id, e := range fromEdges {
		if _, ok := toEdges[id]; !ok {
			diff.EdgesRemoved = append(diff.EdgesRemoved, EdgeDiff{
				EdgeID: id, Source: e.Source, Target: e.Target, Type: e.Type,
				ChangeType: model.ChangeRemoved,
			})
		}
	}

	sort.Slice(diff.NodesAdded, func(i, j int) bool { return diff.NodesAdded[i].NodeID < diff.NodesAdded[j].NodeID })
	sort.Slice(diff.NodesRemoved, func(i, j int) bool { return diff.NodesRemoved[i].NodeID < diff.NodesRemoved[j].NodeID })
	sort.Slice(diff.NodesModified, func(i, j int) bool { return diff.NodesModified[i].NodeID < diff.NodesModified[j].NodeID })
	sort.Slice(diff.EdgesAdded, func(i, j int) bool { return diff.EdgesAdded[i].EdgeID < diff.EdgesAdded[j].EdgeID })
	sort.Slice(diff.EdgesRemoved, func(i, j int) bool { return diff.EdgesRemoved[i].EdgeID < diff.EdgesRemoved[j].EdgeID })

	return diff, nil
}

type presentNode struct {
	node *model.Node
	hash string
}

func nodesAtSnapshot(txn *badger.Txn, snapshotID string) (map[model.NodeID]presentNode, error) {
	recs, err := store.ScanNodeHistoryForSnapshot(txn, snapshotID)
	if err != nil {
		return nil, err
	}
	out := make(map[model.NodeID]presentNode, len(recs))
	for _, r := range recs {
		if r.ChangeType == model.ChangeRemoved {
			continue
		}
		n, err := store.GetNode(txn, r.NodeID)
		if errors.Is(err, kernel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[r.NodeID] = presentNode{node: n, hash: r.AfterHash}
	}
	return out, nil
}

func edgesAtSnapshot(txn *badger.Txn, snapshotID string) (map[model.EdgeID]*model.EdgeHistory, error) {
	recs, err := store.ScanEdgeHistoryForSnapshot(txn, snapshotID)
	if err != nil {
		return nil, err
	}
	out := make(map[model.EdgeID]*model.EdgeHistory, len(recs))
	for _, r := range recs {
		if r.ChangeType == model.ChangeRemoved {
			continue
		}
		out[r.EdgeID] = r
	}
	return out, nil
}
