package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/kernel"
	"github.com/mu-kernel/mukernel/pkg/model"
)

// PutEmbedding caches an embedding for (nodeID, modelName). The embedding
// cache is purely additive: an entry keyed by a model name that has since
// changed is simply orphaned, never migrated (pkg/embedding's decorator
// recomputes on a model-name mismatch instead).
func PutEmbedding(txn *badger.Txn, e *model.Embedding) error {
	raw, err := encodeEmbedding(e)
	if err != nil {
		return fmt.Errorf("encode embedding %s: %w", e.NodeID, err)
	}
	return txn.Set(keyEmbedding(e.NodeID, e.Model), raw)
}

// GetEmbedding returns the cached embedding for (nodeID, modelName), or an
// error wrapping kernel.ErrNotFound on a cache miss.
func GetEmbedding(txn *badger.Txn, nodeID model.NodeID, modelName string) (*model.Embedding, error) {
	item, err := txn.Get(keyEmbedding(nodeID, modelName))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("embedding %s/%s: %w", nodeID, modelName, kernel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var e *model.Embedding
	err = item.Value(func(val []byte) error {
		decoded, derr := decodeEmbedding(val)
		if derr != nil {
			return derr
		}
		e = decoded
		return nil
	})
	return e, err
}

// ScanEmbeddingsForNode returns every cached embedding for nodeID across
// all models it has been computed with.
func ScanEmbeddingsForNode(txn *badger.Txn, nodeID model.NodeID) ([]*model.Embedding, error) {
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*model.Embedding
	prefix := prefixEmbeddingScan(nodeID)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var e *model.Embedding
		err := it.Item().Value(func(val []byte) error {
			decoded, derr := decodeEmbedding(val)
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

// ScanAllEmbeddings returns every cached embedding, for the Context
// Extractor's vector-similarity candidate pass.
func ScanAllEmbeddings(txn *badger.Txn) ([]*model.Embedding, error) {
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*model.Embedding
	prefix := []byte{prefixEmbedding}
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var e *model.Embedding
		err := it.Item().Value(func(val []byte) error {
			decoded, derr := decodeEmbedding(val)
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
