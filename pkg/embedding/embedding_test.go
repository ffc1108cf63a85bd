package embedding

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// fakeProvider returns a deterministic vector per distinct text, and
// counts how many times Embed/EmbedBatch were actually invoked so tests
// can assert the cache prevents redundant calls.
type fakeProvider struct {
	calls int
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return []float32{float32(len(text))}, nil
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeProvider) Dimensions() int { return 1 }
func (f *fakeProvider) Model() string   { return "fake-v1" }

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("", store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEmbedNode_CachesAcrossCalls(t *testing.T) {
	s := openStore(t)
	provider := &fakeProvider{}
	ne := NewNodeEmbedder(provider, s)

	n := &model.Node{
		ID: model.NewNodeID(model.NodeFunction, "a.go", "a.Foo"),
		Type: model.NodeFunction, Name: "Foo", QualifiedName: "a.Foo", FilePath: "a.go",
	}
	require.NoError(t, s.Update(func(txn *badger.Txn) error { return store.PutNode(txn, n) }))

	_, hit1, err := ne.EmbedNode(context.Background(), n)
	require.NoError(t, err)
	assert.False(t, hit1)
	callsAfterFirst := provider.calls

	_, hit2, err := ne.EmbedNode(context.Background(), n)
	require.NoError(t, err)
	assert.True(t, hit2)
	assert.Equal(t, callsAfterFirst, provider.calls, "second call must not re-invoke the provider")
}

func TestEmbedAll_SkipsAlreadyCachedNodes(t *testing.T) {
	s := openStore(t)
	provider := &fakeProvider{}
	ne := NewNodeEmbedder(provider, s)

	n1 := &model.Node{ID: model.NewNodeID(model.NodeFunction, "a.go", "a.Foo"), Type: model.NodeFunction, Name: "Foo", QualifiedName: "a.Foo", FilePath: "a.go"}
	n2 := &model.Node{ID: model.NewNodeID(model.NodeFunction, "a.go", "a.Bar"), Type: model.NodeFunction, Name: "Bar", QualifiedName: "a.Bar", FilePath: "a.go"}
	require.NoError(t, s.Update(func(txn *badger.Txn) error {
		if err := store.PutNode(txn, n1); err != nil {
			return err
		}
		return store.PutNode(txn, n2)
	}))

	_, _, err := ne.EmbedNode(context.Background(), n1)
	require.NoError(t, err)

	result, err := ne.EmbedAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Embedded)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Failed)
}
