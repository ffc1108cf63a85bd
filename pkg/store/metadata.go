package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/kernel"
)

// GetMetadata returns the raw value stored under key, or an error
// wrapping kernel.ErrNotFound.
func GetMetadata(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get(keyMetadata(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("metadata %q: %w", key, kernel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// PutMetadata sets a raw metadata value, e.g. last_build_commit,
// last_build_at, vcs_root.
func PutMetadata(txn *badger.Txn, key string, value []byte) error {
	return txn.Set(keyMetadata(key), value)
}
