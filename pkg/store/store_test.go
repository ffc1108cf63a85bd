package store

import (
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mu-kernel/mukernel/pkg/kernel"
	"github.com/mu-kernel/mukernel/pkg/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_SchemaVersionWritten(t *testing.T) {
	s := openTestStore(t)
	err := s.View(func(txn *badger.Txn) error {
		v, err := GetMetadata(txn, "schema_version")
		require.NoError(t, err)
		assert.Equal(t, CurrentSchemaVersion, int(decodeUint32(v)))
		return nil
	})
	require.NoError(t, err)
}

func TestOpen_ReadOnlyRejectsWrites(t *testing.T) {
	s := openTestStore(t)
	ro, err := Open(s.Path(), Options{InMemory: true, ReadOnly: true})
	// In-memory Badger instances are independent per Open call, so this
	// only exercises the Store.Update guard, not Badger's own lock.
	if err != nil {
		return
	}
	defer ro.Close()
	err = ro.Update(func(txn *badger.Txn) error { return nil })
	assert.ErrorIs(t, err, kernel.ErrLocked)
}

func TestNodeCRUD(t *testing.T) {
	s := openTestStore(t)
	n := &model.Node{
		ID:         model.NewNodeID(model.NodeFunction, "pkg/foo.go", "foo.Bar"),
		Type:       model.NodeFunction,
		Name:       "Bar",
		FilePath:   "pkg/foo.go",
		Complexity: 3,
	}

	err := s.Update(func(txn *badger.Txn) error { return PutNode(txn, n) })
	require.NoError(t, err)

	err = s.View(func(txn *badger.Txn) error {
		got, err := GetNode(txn, n.ID)
		require.NoError(t, err)
		assert.Equal(t, n.Name, got.Name)

		byType, err := ScanNodesByType(txn, model.NodeFunction)
		require.NoError(t, err)
		assert.Len(t, byType, 1)

		byName, err := ScanNodesByName(txn, "bar")
		require.NoError(t, err)
		assert.Len(t, byName, 1)

		byFile, err := ScanNodesByFile(txn, "pkg/foo.go")
		require.NoError(t, err)
		assert.Len(t, byFile, 1)

		byComplexity, err := ScanNodesByMinComplexity(txn, 2)
		require.NoError(t, err)
		assert.Len(t, byComplexity, 1)
		return nil
	})
	require.NoError(t, err)

	err = s.Update(func(txn *badger.Txn) error { return DeleteNode(txn, n.ID) })
	require.NoError(t, err)

	err = s.View(func(txn *badger.Txn) error {
		_, err := GetNode(txn, n.ID)
		assert.True(t, errors.Is(err, kernel.ErrNotFound))

		byType, err := ScanNodesByType(txn, model.NodeFunction)
		require.NoError(t, err)
		assert.Len(t, byType, 0)
		return nil
	})
	require.NoError(t, err)
}

func TestNodeReindexOnUpdate(t *testing.T) {
	s := openTestStore(t)
	id := model.NewNodeID(model.NodeFunction, "pkg/foo.go", "foo.Bar")
	n1 := &model.Node{ID: id, Type: model.NodeFunction, Name: "Bar", FilePath: "pkg/foo.go", Complexity: 1}
	n2 := &model.Node{ID: id, Type: model.NodeFunction, Name: "Bar", FilePath: "pkg/foo.go", Complexity: 9}

	require.NoError(t, s.Update(func(txn *badger.Txn) error { return PutNode(txn, n1) }))
	require.NoError(t, s.Update(func(txn *badger.Txn) error { return PutNode(txn, n2) }))

	err := s.View(func(txn *badger.Txn) error {
		low, err := ScanNodesByMinComplexity(txn, 1)
		require.NoError(t, err)
		// Only the current (complexity=9) index entry should survive; the
		// stale complexity=1 entry must have been removed by the re-put.
		assert.Len(t, low, 1)
		assert.Equal(t, 9, low[0].Complexity)
		return nil
	})
	require.NoError(t, err)
}

func TestEdgeCRUD(t *testing.T) {
	s := openTestStore(t)
	src := model.NewNodeID(model.NodeModule, "pkg/foo.go", "foo")
	dst := model.NewNodeID(model.NodeModule, "pkg/bar.go", "bar")
	e := &model.Edge{
		ID:     model.NewEdgeID(src, dst, model.EdgeImports),
		Source: src,
		Target: dst,
		Type:   model.EdgeImports,
	}

	require.NoError(t, s.Update(func(txn *badger.Txn) error { return PutEdge(txn, e) }))

	err := s.View(func(txn *badger.Txn) error {
		got, err := GetEdge(txn, e.ID)
		require.NoError(t, err)
		assert.Equal(t, src, got.Source)

		fromSrc, err := ScanEdgesFromSource(txn, src)
		require.NoError(t, err)
		assert.Len(t, fromSrc, 1)

		toDst, err := ScanEdgesToTarget(txn, dst)
		require.NoError(t, err)
		assert.Len(t, toDst, 1)

		byType, err := ScanEdgesByType(txn, model.EdgeImports)
		require.NoError(t, err)
		assert.Len(t, byType, 1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.Update(func(txn *badger.Txn) error { return DeleteEdge(txn, e.ID) }))

	err = s.View(func(txn *badger.Txn) error {
		fromSrc, err := ScanEdgesFromSource(txn, src)
		require.NoError(t, err)
		assert.Len(t, fromSrc, 0)
		return nil
	})
	require.NoError(t, err)
}

func TestApplyBatch_AtomicAcrossNodesAndEdges(t *testing.T) {
	s := openTestStore(t)
	src := model.NewNodeID(model.NodeModule, "a.go", "a")
	dst := model.NewNodeID(model.NodeModule, "b.go", "b")
	e := &model.Edge{ID: model.NewEdgeID(src, dst, model.EdgeImports), Source: src, Target: dst, Type: model.EdgeImports}

	muts := []Mutation{
		{Kind: MutationPutNode, Node: &model.Node{ID: src, Type: model.NodeModule, Name: "a", FilePath: "a.go"}},
		{Kind: MutationPutNode, Node: &model.Node{ID: dst, Type: model.NodeModule, Name: "b", FilePath: "b.go"}},
		{Kind: MutationPutEdge, Edge: e},
	}
	require.NoError(t, s.ApplyBatch(muts))

	err := s.View(func(txn *badger.Txn) error {
		nodes, err := ScanAllNodes(txn)
		require.NoError(t, err)
		assert.Len(t, nodes, 2)
		edges, err := ScanAllEdges(txn)
		require.NoError(t, err)
		assert.Len(t, edges, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestEmbeddingCache(t *testing.T) {
	s := openTestStore(t)
	id := model.NewNodeID(model.NodeFunction, "a.go", "a.F")
	emb := &model.Embedding{NodeID: id, Model: "nomic-embed-text", Code: []float32{0.1, 0.2}}

	require.NoError(t, s.Update(func(txn *badger.Txn) error { return PutEmbedding(txn, emb) }))

	err := s.View(func(txn *badger.Txn) error {
		got, err := GetEmbedding(txn, id, "nomic-embed-text")
		require.NoError(t, err)
		assert.Equal(t, emb.Code, got.Code)

		_, err = GetEmbedding(txn, id, "other-model")
		assert.True(t, errors.Is(err, kernel.ErrNotFound))
		return nil
	})
	require.NoError(t, err)
}

func TestSnapshotAndHistory(t *testing.T) {
	s := openTestStore(t)
	snap := &model.Snapshot{ID: "snap-1", Commit: "abc123", NodeCount: 1}
	id := model.NewNodeID(model.NodeFunction, "a.go", "a.F")
	hist := &model.NodeHistory{SnapshotID: snap.ID, NodeID: id, ChangeType: model.ChangeAdded, AfterHash: "h1"}

	err := s.Update(func(txn *badger.Txn) error {
		if err := PutSnapshot(txn, snap); err != nil {
			return err
		}
		return PutNodeHistory(txn, hist)
	})
	require.NoError(t, err)

	err = s.View(func(txn *badger.Txn) error {
		got, err := GetSnapshotByCommit(txn, "abc123")
		require.NoError(t, err)
		assert.Equal(t, snap.ID, got.ID)

		records, err := ScanNodeHistoryForSnapshot(txn, snap.ID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, model.ChangeAdded, records[0].ChangeType)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryAndCodebaseStat(t *testing.T) {
	s := openTestStore(t)
	id := model.NewNodeID(model.NodeFunction, "a.go", "a.F")
	mem := &model.Memory{ID: "mem-1", NodeID: id, Text: "watch for nil props here", Author: "reviewer"}
	stat := &model.CodebaseStat{Key: "total_nodes", Value: 42}

	err := s.Update(func(txn *badger.Txn) error {
		if err := PutMemory(txn, mem); err != nil {
			return err
		}
		return PutCodebaseStat(txn, stat)
	})
	require.NoError(t, err)

	err = s.View(func(txn *badger.Txn) error {
		found, err := ScanMemoriesForNode(txn, id)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "reviewer", found[0].Author)

		got, err := GetCodebaseStat(txn, "total_nodes")
		require.NoError(t, err)
		assert.Equal(t, 42.0, got.Value)
		return nil
	})
	require.NoError(t, err)
}
