// Package store implements the mubase: the single-file, single-writer,
// embedded columnar store that holds every table named in spec.md §3
// (nodes, edges, metadata, embeddings, snapshots, history, patterns,
// memory, codebase stats).
//
// The Store does not compute cycles, reachability, or paths — that is
// pkg/graph's job. It exposes a narrow transactional surface (begin,
// stage, commit, rollback), parameterised scans, and bulk upsert, and it
// guarantees single-writer/multi-reader access, atomic full builds, and
// schema versioning (spec.md §4.1).
//
// Example:
//
//	s, err := store.Open("./.mu/mubase", store.Options{})
//	if err != nil {
//		if errors.Is(err, kernel.ErrLocked) {
//			// fall back to routing the write through the daemon
//		}
//	}
//	defer s.Close()
package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/kernel"
)

// CurrentSchemaVersion is the schema version this binary writes and
// expects to read. Bump it when the on-disk layout changes in a way that
// is not backward compatible.
const CurrentSchemaVersion = 1

// Options configures how a Store is opened.
type Options struct {
	// ReadOnly opens the mubase without taking the write lock. Siblings
	// of a running daemon use this to tolerate the daemon already
	// holding the write lock (spec.md §4.7 "Routing from siblings").
	ReadOnly bool

	// InMemory runs Badger with no on-disk files, for tests.
	InMemory bool

	// Logger receives store-level diagnostics. Defaults to a logger on
	// os.Stderr prefixed "mukernel/store: ", matching the ambient
	// logging convention (SPEC_FULL.md AMBIENT STACK).
	Logger *log.Logger
}

// Store is the mubase handle. All methods are safe for concurrent use by
// multiple readers; only one Store per process (indeed per mubase file)
// may be opened with ReadOnly=false at a time.
type Store struct {
	db       *badger.DB
	path     string
	readOnly bool
	logger   *log.Logger

	mu sync.RWMutex // guards in-process coordination of Begin/Commit ordering
}

// Open opens (creating if absent) the mubase at path. A write-mode open
// against a mubase another process already holds for write returns an
// error wrapping kernel.ErrLocked; a read-only open never fails for that
// reason. A stored schema version newer than CurrentSchemaVersion returns
// an error wrapping kernel.ErrIncompatible.
func Open(path string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "mukernel/store: ", log.LstdFlags)
	}

	bopts := badger.DefaultOptions(path)
	bopts = bopts.WithLogger(nil) // Badger's own logger is too chatty for our ambient log; we log at the call sites that matter.
	if opts.InMemory {
		bopts = bopts.WithInMemory(true)
	}
	bopts = bopts.WithReadOnly(opts.ReadOnly)

	db, err := badger.Open(bopts)
	if err != nil {
		if isLockErr(err) {
			return nil, fmt.Errorf("open mubase %s: %w: %v", path, kernel.ErrLocked, err)
		}
		return nil, fmt.Errorf("open mubase %s: %w", path, err)
	}

	s := &Store{db: db, path: path, readOnly: opts.ReadOnly, logger: logger}

	if err := s.checkOrInitSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func isLockErr(err error) bool {
	// Badger surfaces directory-lock contention as a plain fmt.Errorf
	// wrapping a flock syscall failure; there is no exported sentinel,
	// so we match on the message the way the teacher's own callers do
	// (pkg/storage/badger.go treats "Cannot acquire directory lock" as
	// the signal for "another process has this open").
	return err != nil && (contains(err.Error(), "Cannot acquire directory lock") ||
		contains(err.Error(), "resource temporarily unavailable"))
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func (s *Store) checkOrInitSchema() error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyMetadata("schema_version"))
		if errors.Is(err, badger.ErrKeyNotFound) {
			if s.readOnly {
				// Nothing written yet; a read-only open over an empty
				// mubase is valid (spec.md: "read-only opens tolerate
				// their absence and return empty results").
				return nil
			}
			return txn.Set(keyMetadata("schema_version"), encodeUint32(CurrentSchemaVersion))
		}
		if err != nil {
			return err
		}
		var stored uint32
		err = item.Value(func(val []byte) error {
			stored = decodeUint32(val)
			return nil
		})
		if err != nil {
			return err
		}
		if stored > CurrentSchemaVersion {
			return fmt.Errorf("mubase schema version %d newer than binary's %d: %w", stored, CurrentSchemaVersion, kernel.ErrIncompatible)
		}
		return nil
	})
}

// Close releases the mubase file and, for write-mode stores, the write
// lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the directory the mubase was opened from.
func (s *Store) Path() string { return s.path }

// ReadOnly reports whether this handle was opened without the write
// lock.
func (s *Store) ReadOnly() bool { return s.readOnly }

// View runs fn against a read-only badger transaction. Used by all
// read-path queries in muql/graph/context so that a query observes a
// single consistent point-in-time snapshot, never a partial mixture of
// before/after any given commit (spec.md §5).
func (s *Store) View(fn func(txn *badger.Txn) error) error {
	return s.db.View(fn)
}

// Update runs fn against a read-write badger transaction, atomically
// committing all writes fn performs or none at all. The caller must not
// retain txn past fn's return.
func (s *Store) Update(fn func(txn *badger.Txn) error) error {
	if s.readOnly {
		return fmt.Errorf("mubase opened read-only: %w", kernel.ErrLocked)
	}
	return s.db.Update(fn)
}
