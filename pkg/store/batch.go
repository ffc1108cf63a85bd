package store

import (
	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/model"
)

// Mutation is one staged write produced by the Incremental Builder for a
// single transactional apply. Exactly one of the Node/Edge/*ID fields is
// meaningful per Kind.
type Mutation struct {
	Kind MutationKind

	Node   *model.Node
	Edge   *model.Edge
	NodeID model.NodeID
	EdgeID model.EdgeID
}

// MutationKind identifies what a Mutation does.
type MutationKind int

const (
	MutationPutNode MutationKind = iota
	MutationDeleteNode
	MutationPutEdge
	MutationDeleteEdge
)

// ApplyBatch stages every mutation in order inside a single Badger
// transaction, so a build (full or incremental) is atomic: readers never
// observe a half-applied build (spec.md §4.1 "a full build either lands
// entirely or not at all").
func (s *Store) ApplyBatch(muts []Mutation) error {
	return s.Update(func(txn *badger.Txn) error {
		for _, m := range muts {
			var err error
			switch m.Kind {
			case MutationPutNode:
				err = PutNode(txn, m.Node)
			case MutationDeleteNode:
				err = DeleteNode(txn, m.NodeID)
			case MutationPutEdge:
				err = PutEdge(txn, m.Edge)
			case MutationDeleteEdge:
				err = DeleteEdge(txn, m.EdgeID)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}
