package temporal

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

func seedService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	s, err := store.Open("", store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return New(s), s
}

func putNode(t *testing.T, s *store.Store, id model.NodeID, name, hash string) {
	t.Helper()
	err := s.Update(func(txn *badger.Txn) error {
		return store.PutNode(txn, &model.Node{
			ID: id, Type: model.NodeClass, Name: name, QualifiedName: name,
			FilePath: "a.go", ContentHash: hash,
		})
	})
	require.NoError(t, err)
}

// TestSnapshotAndDiff_RenameScenario seeds a node, snapshots it, renames
// it (new content hash, same id) and adds a second node, snapshots again,
// then asserts the diff between the two snapshots reports exactly one
// modified node and one added node (spec.md §8.6).
func TestSnapshotAndDiff_RenameScenario(t *testing.T) {
	svc, s := seedService(t)
	ctx := context.Background()

	classID := model.NewNodeID(model.NodeClass, "a.go", "a.Widget")
	putNode(t, s, classID, "Widget", "hash-v1")

	snap1, err := svc.CreateSnapshot(ctx, SnapshotOptions{Commit: "c1", Author: "alice", Message: "initial"})
	require.NoError(t, err)
	assert.Equal(t, 1, snap1.NodesAdded)
	assert.Equal(t, "", snap1.ParentID)

	putNode(t, s, classID, "Gadget", "hash-v2")
	otherID := model.NewNodeID(model.NodeClass, "b.go", "b.Other")
	putNode(t, s, otherID, "Other", "hash-x")

	snap2, err := svc.CreateSnapshot(ctx, SnapshotOptions{Commit: "c2", Author: "bob", Message: "rename Widget to Gadget"})
	require.NoError(t, err)
	assert.Equal(t, snap1.ID, snap2.ParentID)
	assert.Equal(t, 1, snap2.NodesAdded)
	assert.Equal(t, 1, snap2.NodesModified)
	assert.Equal(t, 0, snap2.NodesRemoved)

	diff, err := svc.Diff(ctx, "c1", "c2")
	require.NoError(t, err)
	require.Len(t, diff.NodesModified, 1)
	assert.Equal(t, classID, diff.NodesModified[0].NodeID)
	require.Len(t, diff.NodesAdded, 1)
	assert.Equal(t, otherID, diff.NodesAdded[0].NodeID)
	assert.Empty(t, diff.NodesRemoved)
}

func TestCreateSnapshot_DuplicateCommitWithoutForce_Fails(t *testing.T) {
	svc, s := seedService(t)
	ctx := context.Background()
	putNode(t, s, model.NewNodeID(model.NodeClass, "a.go", "a.Widget"), "Widget", "h1")

	_, err := svc.CreateSnapshot(ctx, SnapshotOptions{Commit: "c1"})
	require.NoError(t, err)

	_, err = svc.CreateSnapshot(ctx, SnapshotOptions{Commit: "c1"})
	require.Error(t, err)

	_, err = svc.CreateSnapshot(ctx, SnapshotOptions{Commit: "c1", Force: true})
	require.NoError(t, err)
}

func TestHistory_TracksAddThenModify(t *testing.T) {
	svc, s := seedService(t)
	ctx := context.Background()
	id := model.NewNodeID(model.NodeClass, "a.go", "a.Widget")

	putNode(t, s, id, "Widget", "h1")
	_, err := svc.CreateSnapshot(ctx, SnapshotOptions{Commit: "c1"})
	require.NoError(t, err)

	putNode(t, s, id, "Widget", "h2")
	_, err = svc.CreateSnapshot(ctx, SnapshotOptions{Commit: "c2"})
	require.NoError(t, err)

	hist, err := svc.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, model.ChangeAdded, hist[0].Record.ChangeType)
	assert.Equal(t, model.ChangeModified, hist[1].Record.ChangeType)
}

func TestBlame_AttributesLatestChangeToItsCommit(t *testing.T) {
	svc, s := seedService(t)
	ctx := context.Background()
	id := model.NewNodeID(model.NodeClass, "a.go", "a.Widget")

	putNode(t, s, id, "Widget", "h1")
	_, err := svc.CreateSnapshot(ctx, SnapshotOptions{Commit: "c1", Author: "alice"})
	require.NoError(t, err)

	putNode(t, s, id, "Widget", "h2")
	_, err = svc.CreateSnapshot(ctx, SnapshotOptions{Commit: "c2", Author: "bob"})
	require.NoError(t, err)

	blame, err := svc.Blame(ctx, id)
	require.NoError(t, err)
	require.Contains(t, blame, "content")
	assert.Equal(t, "c2", blame["content"].CommitHash)
	assert.Equal(t, "bob", blame["content"].CommitAuthor)
}
