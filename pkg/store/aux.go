package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/kernel"
	"github.com/mu-kernel/mukernel/pkg/model"
)

// PutPattern stores a detected pattern.
func PutPattern(txn *badger.Txn, p *model.Pattern) error {
	raw, err := encodePattern(p)
	if err != nil {
		return fmt.Errorf("encode pattern %s: %w", p.ID, err)
	}
	return txn.Set(keyPattern(p.ID), raw)
}

// ScanPatterns returns every recorded pattern.
func ScanPatterns(txn *badger.Txn) ([]*model.Pattern, error) {
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*model.Pattern
	prefix := []byte{prefixPattern}
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var p *model.Pattern
		err := it.Item().Value(func(val []byte) error {
			decoded, derr := decodePattern(val)
			if derr != nil {
				return derr
			}
			p = decoded
			return nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// PutMemory stores a client-authored note against a node.
func PutMemory(txn *badger.Txn, m *model.Memory) error {
	raw, err := encodeMemory(m)
	if err != nil {
		return fmt.Errorf("encode memory %s: %w", m.ID, err)
	}
	return txn.Set(keyMemory(m.ID), raw)
}

// GetMemory returns the memory for id, or an error wrapping
// kernel.ErrNotFound.
func GetMemory(txn *badger.Txn, id string) (*model.Memory, error) {
	item, err := txn.Get(keyMemory(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("memory %s: %w", id, kernel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var m *model.Memory
	err = item.Value(func(val []byte) error {
		decoded, derr := decodeMemory(val)
		if derr != nil {
			return derr
		}
		m = decoded
		return nil
	})
	return m, err
}

// ScanMemoriesForNode returns every memory attached to nodeID. Memory
// records carry no secondary index on NodeID (the table is expected to
// stay small enough for a linear scan — spec.md gives it no query-latency
// requirement), so this does a full-table scan and filters.
func ScanMemoriesForNode(txn *badger.Txn, nodeID model.NodeID) ([]*model.Memory, error) {
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*model.Memory
	prefix := []byte{prefixMemory}
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var m *model.Memory
		err := it.Item().Value(func(val []byte) error {
			decoded, derr := decodeMemory(val)
			if derr != nil {
				return derr
			}
			m = decoded
			return nil
		})
		if err != nil {
			return nil, err
		}
		if m.NodeID == nodeID {
			out = append(out, m)
		}
	}
	return out, nil
}

// PutCodebaseStat upserts an aggregate statistic.
func PutCodebaseStat(txn *badger.Txn, s *model.CodebaseStat) error {
	raw, err := encodeCodebaseStat(s)
	if err != nil {
		return fmt.Errorf("encode codebase stat %s: %w", s.Key, err)
	}
	return txn.Set(keyCodebaseStat(s.Key), raw)
}

// GetCodebaseStat returns the stat for key, or an error wrapping
// kernel.ErrNotFound.
func GetCodebaseStat(txn *badger.Txn, key string) (*model.CodebaseStat, error) {
	item, err := txn.Get(keyCodebaseStat(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("codebase stat %q: %w", key, kernel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var s *model.CodebaseStat
	err = item.Value(func(val []byte) error {
		decoded, derr := decodeCodebaseStat(val)
		if derr != nil {
			return derr
		}
		s = decoded
		return nil
	})
	return s, err
}

// ScanCodebaseStats returns every aggregate statistic.
func ScanCodebaseStats(txn *badger.Txn) ([]*model.CodebaseStat, error) {
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*model.CodebaseStat
	prefix := []byte{prefixCodebaseStat}
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var s *model.CodebaseStat
		err := it.Item().Value(func(val []byte) error {
			decoded, derr := decodeCodebaseStat(val)
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
