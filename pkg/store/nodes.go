package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/kernel"
	"github.com/mu-kernel/mukernel/pkg/model"
)

// PutNode writes n and maintains its secondary indexes (type, name, file,
// complexity). If a prior version of n.ID already exists, its stale index
// entries are removed first so the indexes never drift from the primary
// record (spec.md §4.1 "indexes are always consistent with the node table
// within a single commit").
func PutNode(txn *badger.Txn, n *model.Node) error {
	if old, err := getNode(txn, n.ID); err == nil {
		if err := removeNodeIndexes(txn, old); err != nil {
			return err
		}
	} else if !errors.Is(err, kernel.ErrNotFound) {
		return err
	}

	raw, err := encodeNode(n)
	if err != nil {
		return fmt.Errorf("encode node %s: %w", n.ID, err)
	}
	if err := txn.Set(keyNode(n.ID), raw); err != nil {
		return err
	}
	return putNodeIndexes(txn, n)
}

func putNodeIndexes(txn *badger.Txn, n *model.Node) error {
	if err := txn.Set(keyIdxNodeType(n.Type, n.ID), nil); err != nil {
		return err
	}
	if n.Name != "" {
		if err := txn.Set(keyIdxNodeName(n.Name, n.ID), nil); err != nil {
			return err
		}
	}
	if n.FilePath != "" {
		if err := txn.Set(keyIdxNodeFile(n.FilePath, n.ID), nil); err != nil {
			return err
		}
	}
	if err := txn.Set(keyIdxNodeComplexity(n.Complexity, n.ID), nil); err != nil {
		return err
	}
	return nil
}

func removeNodeIndexes(txn *badger.Txn, n *model.Node) error {
	if err := txn.Delete(keyIdxNodeType(n.Type, n.ID)); err != nil {
		return err
	}
	if n.Name != "" {
		if err := txn.Delete(keyIdxNodeName(n.Name, n.ID)); err != nil {
			return err
		}
	}
	if n.FilePath != "" {
		if err := txn.Delete(keyIdxNodeFile(n.FilePath, n.ID)); err != nil {
			return err
		}
	}
	if err := txn.Delete(keyIdxNodeComplexity(n.Complexity, n.ID)); err != nil {
		return err
	}
	return nil
}

// GetNode returns the node for id, or an error wrapping kernel.ErrNotFound
// if it does not exist.
func GetNode(txn *badger.Txn, id model.NodeID) (*model.Node, error) {
	return getNode(txn, id)
}

func getNode(txn *badger.Txn, id model.NodeID) (*model.Node, error) {
	item, err := txn.Get(keyNode(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("node %s: %w", id, kernel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var n *model.Node
	err = item.Value(func(val []byte) error {
		decoded, derr := decodeNode(val)
		if derr != nil {
			return derr
		}
		n = decoded
		return nil
	})
	return n, err
}

// DeleteNode removes n's primary record and all of its secondary index
// entries. It does not touch edges incident to n — callers (the builder's
// GC pass) are responsible for deleting those first.
func DeleteNode(txn *badger.Txn, id model.NodeID) error {
	n, err := getNode(txn, id)
	if err != nil {
		if errors.Is(err, kernel.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := removeNodeIndexes(txn, n); err != nil {
		return err
	}
	return txn.Delete(keyNode(id))
}

// ScanNodesByType returns every node of the given type.
func ScanNodesByType(txn *badger.Txn, t model.NodeType) ([]*model.Node, error) {
	return scanNodesByIndex(txn, prefixIdxNodeTypeScan(t))
}

// ScanNodesByName returns every node whose Name matches name
// case-insensitively.
func ScanNodesByName(txn *badger.Txn, name string) ([]*model.Node, error) {
	return scanNodesByIndex(txn, prefixIdxNodeNameScan(name))
}

// ScanNodesByFile returns every node defined in the given file path.
func ScanNodesByFile(txn *badger.Txn, path string) ([]*model.Node, error) {
	return scanNodesByIndex(txn, prefixIdxNodeFileScan(path))
}

// ScanNodesByMinComplexity returns every node with Complexity >= min,
// ascending by complexity.
func ScanNodesByMinComplexity(txn *badger.Txn, min int) ([]*model.Node, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*model.Node
	start := prefixIdxNodeComplexFloor(min)
	for it.Seek(start); it.ValidForPrefix([]byte{prefixIdxNodeComplex}); it.Next() {
		id := model.NodeID(lastSegment(it.Item().KeyCopy(nil)))
		n, err := getNode(txn, id)
		if err != nil {
			if errors.Is(err, kernel.ErrNotFound) {
				continue // index/record drift; tolerate rather than fail the scan
			}
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// ScanAllNodes returns every node in the mubase. Used by the Graph Engine's
// Load and the Builder's full-build GC pass.
func ScanAllNodes(txn *badger.Txn) ([]*model.Node, error) {
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*model.Node
	prefix := []byte{prefixNode}
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var n *model.Node
		err := it.Item().Value(func(val []byte) error {
			decoded, derr := decodeNode(val)
			if derr != nil {
				return derr
			}
			n = decoded
			return nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func scanNodesByIndex(txn *badger.Txn, prefix []byte) ([]*model.Node, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*model.Node
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		id := model.NodeID(lastSegment(it.Item().KeyCopy(nil)))
		n, err := getNode(txn, id)
		if err != nil {
			if errors.Is(err, kernel.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
