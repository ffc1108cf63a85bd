package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/kernel"
	"github.com/mu-kernel/mukernel/pkg/model"
)

// PutEdge writes e and maintains its secondary indexes (source, target,
// type), removing any stale index entries from a prior version of e.ID.
func PutEdge(txn *badger.Txn, e *model.Edge) error {
	if old, err := getEdge(txn, e.ID); err == nil {
		if err := removeEdgeIndexes(txn, old); err != nil {
			return err
		}
	} else if !errors.Is(err, kernel.ErrNotFound) {
		return err
	}

	raw, err := encodeEdge(e)
	if err != nil {
		return fmt.Errorf("encode edge %s: %w", e.ID, err)
	}
	if err := txn.Set(keyEdge(e.ID), raw); err != nil {
		return err
	}
	return putEdgeIndexes(txn, e)
}

func putEdgeIndexes(txn *badger.Txn, e *model.Edge) error {
	if err := txn.Set(keyIdxEdgeSource(e.Source, e.ID), nil); err != nil {
		return err
	}
	if err := txn.Set(keyIdxEdgeTarget(e.Target, e.ID), nil); err != nil {
		return err
	}
	return txn.Set(keyIdxEdgeType(e.Type, e.ID), nil)
}

func removeEdgeIndexes(txn *badger.Txn, e *model.Edge) error {
	if err := txn.Delete(keyIdxEdgeSource(e.Source, e.ID)); err != nil {
		return err
	}
	if err := txn.Delete(keyIdxEdgeTarget(e.Target, e.ID)); err != nil {
		return err
	}
	return txn.Delete(keyIdxEdgeType(e.Type, e.ID))
}

// GetEdge returns the edge for id, or an error wrapping kernel.ErrNotFound.
func GetEdge(txn *badger.Txn, id model.EdgeID) (*model.Edge, error) {
	return getEdge(txn, id)
}

func getEdge(txn *badger.Txn, id model.EdgeID) (*model.Edge, error) {
	item, err := txn.Get(keyEdge(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("edge %s: %w", id, kernel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var e *model.Edge
	err = item.Value(func(val []byte) error {
		decoded, derr := decodeEdge(val)
		if derr != nil {
			return derr
		}
		e = decoded
		return nil
	})
	return e, err
}

// DeleteEdge removes e's primary record and index entries.
func DeleteEdge(txn *badger.Txn, id model.EdgeID) error {
	e, err := getEdge(txn, id)
	if err != nil {
		if errors.Is(err, kernel.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := removeEdgeIndexes(txn, e); err != nil {
		return err
	}
	return txn.Delete(keyEdge(id))
}

// ScanEdgesFromSource returns every edge whose Source is nodeID.
func ScanEdgesFromSource(txn *badger.Txn, nodeID model.NodeID) ([]*model.Edge, error) {
	return scanEdgesByIndex(txn, prefixIdxEdgeSourceScan(nodeID))
}

// ScanEdgesToTarget returns every edge whose Target is nodeID.
func ScanEdgesToTarget(txn *badger.Txn, nodeID model.NodeID) ([]*model.Edge, error) {
	return scanEdgesByIndex(txn, prefixIdxEdgeTargetScan(nodeID))
}

// ScanEdgesByType returns every edge of the given type.
func ScanEdgesByType(txn *badger.Txn, t model.EdgeType) ([]*model.Edge, error) {
	return scanEdgesByIndex(txn, prefixIdxEdgeTypeScan(t))
}

// ScanAllEdges returns every edge in the mubase. Used by the Graph
// Engine's Load.
func ScanAllEdges(txn *badger.Txn) ([]*model.Edge, error) {
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*model.Edge
	prefix := []byte{prefixEdge}
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var e *model.Edge
		err := it.Item().Value(func(val []byte) error {
			decoded, derr := decodeEdge(val)
			if derr != nil {
				return derr
			}
			e = decoded
			return nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func scanEdgesByIndex(txn *badger.Txn, prefix []byte) ([]*model.Edge, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*model.Edge
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		id := model.EdgeID(lastSegment(it.Item().KeyCopy(nil)))
		e, err := getEdge(txn, id)
		if err != nil {
			if errors.Is(err, kernel.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
