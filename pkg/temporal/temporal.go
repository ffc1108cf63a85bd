// Package temporal implements snapshotting, per-node history, blame, and
// semantic diff over the graph the Store holds (spec.md §4.6). A snapshot
// freezes the current node/edge set and their content hashes against a
// commit; history, blame, and diff all read back from the snapshot and
// history records the Store already persists.
package temporal

import (
	"github.com/mu-kernel/mukernel/pkg/store"
)

// Service bundles temporal operations against one Store.
type Service struct {
	store *store.Store
}

// New builds a temporal Service over s.
func New(s *store.Store) *Service {
	return &Service{store: s}
}
