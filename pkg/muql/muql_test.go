package muql

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mu-kernel/mukernel/pkg/graph"
	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// builds a.go (module a, class Animal, method speak) and b.go (module b,
// class Dog inheriting Animal, method speak), with a imports b.
func seedExecutor(t *testing.T) *Executor {
	t.Helper()
	s, err := store.Open("", store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	modA := model.NewNodeID(model.NodeModule, "a.go", "a")
	modB := model.NewNodeID(model.NodeModule, "b.go", "b")
	animal := model.NewNodeID(model.NodeClass, "a.go", "a.Animal")
	animalSpeak := model.NewNodeID(model.NodeFunction, "a.go", "a.Animal.speak")
	dog := model.NewNodeID(model.NodeClass, "b.go", "b.Dog")
	dogSpeak := model.NewNodeID(model.NodeFunction, "b.go", "b.Dog.speak")

	nodes := []*model.Node{
		{ID: modA, Type: model.NodeModule, Name: "a", QualifiedName: "a", FilePath: "a.go"},
		{ID: modB, Type: model.NodeModule, Name: "b", QualifiedName: "b", FilePath: "b.go"},
		{ID: animal, Type: model.NodeClass, Name: "Animal", QualifiedName: "a.Animal", FilePath: "a.go", Complexity: 2},
		{ID: animalSpeak, Type: model.NodeFunction, Name: "speak", QualifiedName: "a.Animal.speak", FilePath: "a.go", Complexity: 1},
		{ID: dog, Type: model.NodeClass, Name: "Dog", QualifiedName: "b.Dog", FilePath: "b.go", Complexity: 3},
		{ID: dogSpeak, Type: model.NodeFunction, Name: "speak", QualifiedName: "b.Dog.speak", FilePath: "b.go", Complexity: 8},
	}
	edgeSpecs := []struct {
		from, to model.NodeID
		typ      model.EdgeType
	}{
		{modA, animal, model.EdgeContains},
		{animal, animalSpeak, model.EdgeContains},
		{modB, dog, model.EdgeContains},
		{dog, dogSpeak, model.EdgeContains},
		{modA, modB, model.EdgeImports},
		{dog, animal, model.EdgeInherits},
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

	g := graph.New()
	require.NoError(t, g.Load(s))

	return NewExecutor(s, g)
}

func TestSelect_FiltersSortsAndLimits(t *testing.T) {
	e := seedExecutor(t)
	res, err := e.Run("SELECT name, complexity FROM functions WHERE complexity > 2 ORDER BY complexity DESC LIMIT 1")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "complexity"}, res.Columns)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "speak", res.Rows[0][0])
	assert.Equal(t, 8, res.Rows[0][1])
}

func TestSelect_UnknownColumn_IsSyntaxError(t *testing.T) {
	e := seedExecutor(t)
	_, err := e.Run("SELECT bogus FROM functions")
	require.Error(t, err)
	var syn *ErrSyntax
	assert.ErrorAs(t, err, &syn)
}

func TestSelect_UnknownTable_IsSyntaxError(t *testing.T) {
	e := seedExecutor(t)
	_, err := e.Run("SELECT * FROM widgets")
	require.Error(t, err)
	var syn *ErrSyntax
	assert.ErrorAs(t, err, &syn)
}

func TestParse_MalformedQuery_ReportsLineAndColumn(t *testing.T) {
	_, err := Parse("SELECT FROM functions")
	require.Error(t, err)
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Line)
	assert.Greater(t, se.Column, 0)
}

func TestShow_DependenciesOf(t *testing.T) {
	e := seedExecutor(t)
	res, err := e.Run("SHOW dependencies OF a")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "b", res.Rows[0][2])
}

func TestShow_UnknownTarget_ReturnsWarningNotError(t *testing.T) {
	e := seedExecutor(t)
	res, err := e.Run("SHOW dependencies OF nonexistent")
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.NotEmpty(t, res.Warning)
}

func TestFind_ClassesInheritingFrom(t *testing.T) {
	e := seedExecutor(t)
	res, err := e.Run("FIND classes INHERITING FROM Animal")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Dog", res.Rows[0][2])
}

func TestFind_UntrackedRelation_ReturnsWarning(t *testing.T) {
	e := seedExecutor(t)
	res, err := e.Run("FIND functions CALLING speak")
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.NotEmpty(t, res.Warning)
}

func TestPath_FromModuleToModule(t *testing.T) {
	e := seedExecutor(t)
	res, err := e.Run("PATH FROM a TO b")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "a", res.Rows[0][2])
	assert.Equal(t, "b", res.Rows[1][2])
}

func TestAnalyze_Complexity(t *testing.T) {
	e := seedExecutor(t)
	res, err := e.Run("ANALYZE complexity THRESHOLD 3")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "speak", res.Rows[0][1])
	assert.Equal(t, 8, res.Rows[0][4])
}

func TestAnalyze_Circular_NoCyclesInSeedGraph(t *testing.T) {
	e := seedExecutor(t)
	res, err := e.Run("ANALYZE circular")
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}
