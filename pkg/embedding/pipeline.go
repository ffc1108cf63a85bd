package embedding

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// BatchResult summarizes one EmbedAll run.
type BatchResult struct {
	Embedded int
	Skipped  int
	Failed   []FailedNode
}

// FailedNode records one node's embedding failure without aborting the
// rest of the batch, the way the Builder treats a single parse failure
// as non-fatal.
type FailedNode struct {
	NodeID model.NodeID
	Err    error
}

// EmbedAll computes and caches embeddings for every node in s that
// lacks one under ne's provider's model, stopping early if ctx is
// cancelled between nodes.
func (ne *NodeEmbedder) EmbedAll(ctx context.Context) (*BatchResult, error) {
	var nodes []*model.Node
	err := ne.store.View(func(txn *badger.Txn) error {
		all, err := store.ScanAllNodes(txn)
		if err != nil {
			return err
		}
		nodes = all
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		_, hit, err := ne.EmbedNode(ctx, n)
		if err != nil {
			result.Failed = append(result.Failed, FailedNode{NodeID: n.ID, Err: err})
			continue
		}
		if hit {
			result.Skipped++
		} else {
			result.Embedded++
		}
	}
	return result, nil
}
