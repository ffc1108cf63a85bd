package graph

import (
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mu-kernel/mukernel/pkg/kernel"
	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// chain of modules a -> b -> c -> a (import cycle) plus c -> d, which
// leads out of the cycle.
func seedStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("", store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	a := model.NewNodeID(model.NodeModule, "a.go", "a")
	b := model.NewNodeID(model.NodeModule, "b.go", "b")
	c := model.NewNodeID(model.NodeModule, "c.go", "c")
	d := model.NewNodeID(model.NodeModule, "d.go", "d")

	nodes := []*model.Node{
		{ID: a, Type: model.NodeModule, Name: "a", FilePath: "a.go"},
		{ID: b, Type: model.NodeModule, Name: "b", FilePath: "b.go"},
		{ID: c, Type: model.NodeModule, Name: "c", FilePath: "c.go"},
		{ID: d, Type: model.NodeModule, Name: "d", FilePath: "d.go"},
	}
	edgeSpecs := []struct {
		from, to model.NodeID
		typ      model.EdgeType
	}{
		{a, b, model.EdgeImports},
		{b, c, model.EdgeImports},
		{c, a, model.EdgeImports},
		{c, d, model.EdgeImports},
	}

	err = s.Update(func(txn *badger.Txn) error {
		for _, n := range nodes {
			if err := store.PutNode(txn, n); err != nil {
				return err
			}
		}
		for _, es := range edgeSpecs {
			e := &model.Edge{ID: model.NewEdgeID(es.from, es.to, es.typ), Source: es.from, Target: es.to, Type: es.typ}
			if err := store.PutEdge(txn, e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return s
}

func TestQueriesBeforeLoad(t *testing.T) {
	e := New()
	_, err := e.Impact(model.NewNodeID(model.NodeModule, "a.go", "a"))
	assert.True(t, errors.Is(err, kernel.ErrGraphNotLoaded))
}

func TestImpactAndAncestors(t *testing.T) {
	s := seedStore(t)
	e := New()
	require.NoError(t, e.Load(s))

	a := model.NewNodeID(model.NodeModule, "a.go", "a")
	d := model.NewNodeID(model.NodeModule, "d.go", "d")

	impact, err := e.Impact(a)
	require.NoError(t, err)
	assert.NotContains(t, impact, a)
	assert.Contains(t, impact, d)

	ancestors, err := e.Ancestors(d)
	require.NoError(t, err)
	assert.Contains(t, ancestors, a)
	assert.NotContains(t, ancestors, d)
}

func TestShortestPath(t *testing.T) {
	s := seedStore(t)
	e := New()
	require.NoError(t, e.Load(s))

	a := model.NewNodeID(model.NodeModule, "a.go", "a")
	d := model.NewNodeID(model.NodeModule, "d.go", "d")

	path, err := e.ShortestPath(a, d)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, a, path[0])
	assert.Equal(t, d, path[len(path)-1])
	assert.Len(t, path, 4) // a -> b -> c -> d
}

func TestShortestPath_NoPath(t *testing.T) {
	s := seedStore(t)
	e := New()
	require.NoError(t, e.Load(s))

	d := model.NewNodeID(model.NodeModule, "d.go", "d")
	a := model.NewNodeID(model.NodeModule, "a.go", "a")

	path, err := e.ShortestPath(d, a)
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestNeighbors_BoundedDepth(t *testing.T) {
	s := seedStore(t)
	e := New()
	require.NoError(t, e.Load(s))

	a := model.NewNodeID(model.NodeModule, "a.go", "a")
	b := model.NewNodeID(model.NodeModule, "b.go", "b")
	c := model.NewNodeID(model.NodeModule, "c.go", "c")

	one, err := e.Neighbors(a, DirOut, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.NodeID{b}, one)

	two, err := e.Neighbors(a, DirOut, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.NodeID{b, c}, two)
}

func TestFindCycles(t *testing.T) {
	s := seedStore(t)
	e := New()
	require.NoError(t, e.Load(s))

	cycles, err := e.FindCycles()
	require.NoError(t, err)
	require.Len(t, cycles, 1)

	a := model.NewNodeID(model.NodeModule, "a.go", "a")
	b := model.NewNodeID(model.NodeModule, "b.go", "b")
	c := model.NewNodeID(model.NodeModule, "c.go", "c")
	assert.ElementsMatch(t, []model.NodeID{a, b, c}, cycles[0])
	// smallest member first
	assert.Equal(t, cycles[0][0], minID(a, b, c))
}

func minID(ids ...model.NodeID) model.NodeID {
	min := ids[0]
	for _, id := range ids[1:] {
		if id < min {
			min = id
		}
	}
	return min
}

func TestFindCycles_EdgeTypeFilterExcludesCycle(t *testing.T) {
	s := seedStore(t)
	e := New()
	require.NoError(t, e.Load(s))

	cycles, err := e.FindCycles(model.EdgeInherits) // no inherits edges seeded
	require.NoError(t, err)
	assert.Len(t, cycles, 0)
}
