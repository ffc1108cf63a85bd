package temporal

import (
	"context"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// HistoryEntry pairs one node-history record with the snapshot it
// belongs to, ordered oldest first.
type HistoryEntry struct {
	Snapshot *model.Snapshot
	Record   *model.NodeHistory
}

// History returns every recorded change to nodeID across all snapshots,
// oldest first (spec.md §4.6).
func (s *Service) History(ctx context.Context, nodeID model.NodeID) ([]HistoryEntry, error) {
	var out []HistoryEntry
	err := s.store.View(func(txn *badger.Txn) error {
		snapshots, err := store.ScanSnapshots(txn)
		if err != nil {
			return err
		}
		sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt) })

		recs, err := store.NodeHistoryAll(txn, snapshots, nodeID)
		if err != nil {
			return err
		}
		bySnapshot := make(map[string]*model.NodeHistory, len(recs))
		for _, r := range recs {
			bySnapshot[r.SnapshotID] = r
		}
		for _, snap := range snapshots {
			if r, ok := bySnapshot[snap.ID]; ok {
				out = append(out, HistoryEntry{Snapshot: snap, Record: r})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
