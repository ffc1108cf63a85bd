package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/kernel"
	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// NodeEmbedder computes and caches a node's three embedding columns
// (code, docstring, name), mirroring the teacher's CachedEmbedder
// wrap-and-memoize shape but keyed on (node id, model) in the Store's
// embedding table rather than a text-hash LRU, so the cache survives
// daemon restarts and a rebuild never recomputes unchanged nodes.
type NodeEmbedder struct {
	provider Provider
	store    *store.Store
}

// NewNodeEmbedder wraps provider with Store-backed caching.
func NewNodeEmbedder(provider Provider, s *store.Store) *NodeEmbedder {
	return &NodeEmbedder{provider: provider, store: s}
}

// EmbedNode returns the cached embedding for n if one exists for the
// current provider's model, computing and persisting it otherwise. The
// second return value reports whether the result came from cache. A node
// with no signature text (no name, docstring, or source) still gets a
// Name-column embedding since Name is never empty.
func (ne *NodeEmbedder) EmbedNode(ctx context.Context, n *model.Node) (*model.Embedding, bool, error) {
	var cached *model.Embedding
	err := ne.store.View(func(txn *badger.Txn) error {
		e, err := store.GetEmbedding(txn, n.ID, ne.provider.Model())
		if errors.Is(err, kernel.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		cached = e
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if cached != nil && cached.Dimensions == ne.provider.Dimensions() {
		return cached, true, nil
	}

	docstring, _ := n.Properties["docstring"].(string)
	texts := []string{n.Name, docstring, nodeCodeText(n)}
	vectors, err := ne.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, false, fmt.Errorf("embed node %s: %w", n.ID, err)
	}

	e := &model.Embedding{
		NodeID:     n.ID,
		Model:      ne.provider.Model(),
		Dimensions: ne.provider.Dimensions(),
		Name:       vectors[0],
		Docstring:  vectors[1],
		Code:       vectors[2],
		CreatedAt:  time.Now(),
	}

	err = ne.store.Update(func(txn *badger.Txn) error {
		return store.PutEmbedding(txn, e)
	})
	if err != nil {
		return nil, false, err
	}
	return e, false, nil
}

// nodeCodeText returns the text EmbedNode uses for the "code" column: the
// qualified name and signature properties joined, since the graph stores
// structure rather than raw source bodies (spec.md's Non-goals exclude
// storing full source text).
func nodeCodeText(n *model.Node) string {
	text := n.QualifiedName
	if params, ok := n.Properties["params"].([]any); ok {
		for _, p := range params {
			if m, ok := p.(map[string]any); ok {
				if name, ok := m["Name"].(string); ok {
					text += " " + name
				}
			}
		}
	}
	return text
}
