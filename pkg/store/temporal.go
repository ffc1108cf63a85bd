package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/kernel"
	"github.com/mu-kernel/mukernel/pkg/model"
)

// PutSnapshot records a new snapshot and its commit-keyed lookup alias.
func PutSnapshot(txn *badger.Txn, s *model.Snapshot) error {
	raw, err := encodeSnapshot(s)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", s.ID, err)
	}
	if err := txn.Set(keySnapshot(s.ID), raw); err != nil {
		return err
	}
	if s.Commit != "" {
		if err := txn.Set(keySnapshotByCommit(s.Commit), []byte(s.ID)); err != nil {
			return err
		}
	}
	return nil
}

// GetSnapshot returns the snapshot for id, or an error wrapping
// kernel.ErrNotFound.
func GetSnapshot(txn *badger.Txn, id string) (*model.Snapshot, error) {
	item, err := txn.Get(keySnapshot(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("snapshot %s: %w", id, kernel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var s *model.Snapshot
	err = item.Value(func(val []byte) error {
		decoded, derr := decodeSnapshot(val)
		if derr != nil {
			return derr
		}
		s = decoded
		return nil
	})
	return s, err
}

// GetSnapshotByCommit resolves a VCS commit hash to its snapshot.
func GetSnapshotByCommit(txn *badger.Txn, commit string) (*model.Snapshot, error) {
	item, err := txn.Get(keySnapshotByCommit(commit))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("snapshot for commit %s: %w", commit, kernel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	id, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return GetSnapshot(txn, string(id))
}

// ScanSnapshots returns every snapshot, in storage order (insertion
// order, which callers should re-sort by CreatedAt when chronology
// matters — e.g. for range diff's endpoint resolution).
func ScanSnapshots(txn *badger.Txn) ([]*model.Snapshot, error) {
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*model.Snapshot
	prefix := []byte{prefixSnapshot}
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var s *model.Snapshot
		err := it.Item().Value(func(val []byte) error {
			decoded, derr := decodeSnapshot(val)
			if derr != nil {
				return derr
			}
			s = decoded
			return nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// PutNodeHistory records a node's per-snapshot change record.
func PutNodeHistory(txn *badger.Txn, h *model.NodeHistory) error {
	raw, err := encodeNodeHistory(h)
	if err != nil {
		return fmt.Errorf("encode node history %s/%s: %w", h.SnapshotID, h.NodeID, err)
	}
	return txn.Set(keyNodeHistory(h.SnapshotID, h.NodeID), raw)
}

// PutEdgeHistory records an edge's per-snapshot change record.
func PutEdgeHistory(txn *badger.Txn, h *model.EdgeHistory) error {
	raw, err := encodeEdgeHistory(h)
	if err != nil {
		return fmt.Errorf("encode edge history %s/%s: %w", h.SnapshotID, h.EdgeID, err)
	}
	return txn.Set(keyEdgeHistory(h.SnapshotID, h.EdgeID), raw)
}

// ScanNodeHistoryForSnapshot returns every node-history record belonging
// to snapshotID.
func ScanNodeHistoryForSnapshot(txn *badger.Txn, snapshotID string) ([]*model.NodeHistory, error) {
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*model.NodeHistory
	prefix := prefixNodeHistorySnapshotScan(snapshotID)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var h *model.NodeHistory
		err := it.Item().Value(func(val []byte) error {
			decoded, derr := decodeNodeHistory(val)
			if derr != nil {
				return derr
			}
			h = decoded
			return nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// ScanEdgeHistoryForSnapshot returns every edge-history record belonging
// to snapshotID.
func ScanEdgeHistoryForSnapshot(txn *badger.Txn, snapshotID string) ([]*model.EdgeHistory, error) {
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*model.EdgeHistory
	prefix := prefixEdgeHistorySnapshotScan(snapshotID)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var h *model.EdgeHistory
		err := it.Item().Value(func(val []byte) error {
			decoded, derr := decodeEdgeHistory(val)
			if derr != nil {
				return derr
			}
			h = decoded
			return nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// NodeHistoryAll scans every history record for one node, across all
// snapshots, by probing the per-snapshot history for that node id. Callers
// needing this ordered by time should first ScanSnapshots and intersect;
// this helper exists for the common case of "every snapshot that touched
// node X", used by Blame.
func NodeHistoryAll(txn *badger.Txn, snapshots []*model.Snapshot, nodeID model.NodeID) ([]*model.NodeHistory, error) {
	var out []*model.NodeHistory
	for _, snap := range snapshots {
		item, err := txn.Get(keyNodeHistory(snap.ID, nodeID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var h *model.NodeHistory
		err = item.Value(func(val []byte) error {
			decoded, derr := decodeNodeHistory(val)
			if derr != nil {
				return derr
			}
			h = decoded
			return nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
