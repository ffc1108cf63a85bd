package builder

import (
	"os"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// --- YAML fixture loading ---

type fixtureProject struct {
	Modules []fixtureModule `yaml:"modules"`
}

type fixtureModule struct {
	Name        string            `yaml:"name"`
	Path        string            `yaml:"path"`
	Language    string            `yaml:"language"`
	ContentHash string            `yaml:"content_hash"`
	Imports     []fixtureImport   `yaml:"imports"`
	Classes     []fixtureClass    `yaml:"classes"`
	Functions   []fixtureFunction `yaml:"functions"`
}

type fixtureImport struct {
	Module string `yaml:"module"`
	IsFrom bool   `yaml:"is_from"`
}

type fixtureClass struct {
	Name    string            `yaml:"name"`
	Bases   []string          `yaml:"bases"`
	Methods []fixtureFunction `yaml:"methods"`
}

type fixtureFunction struct {
	Name   string           `yaml:"name"`
	Params []fixtureParam   `yaml:"params"`
}

type fixtureParam struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

func loadFixture(t *testing.T, path string) []model.ModuleDef {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var proj fixtureProject
	require.NoError(t, yaml.Unmarshal(raw, &proj))

	var defs []model.ModuleDef
	for _, m := range proj.Modules {
		def := model.ModuleDef{
			Name:        m.Name,
			Path:        m.Path,
			Language:    m.Language,
			ContentHash: m.ContentHash,
		}
		for _, imp := range m.Imports {
			def.Imports = append(def.Imports, model.ImportDef{Module: imp.Module, IsFrom: imp.IsFrom})
		}
		for _, c := range m.Classes {
			cls := model.ClassDef{Name: c.Name, Bases: c.Bases}
			for _, meth := range c.Methods {
				cls.Methods = append(cls.Methods, toFunctionDef(meth))
			}
			def.Classes = append(def.Classes, cls)
		}
		for _, f := range m.Functions {
			def.Functions = append(def.Functions, toFunctionDef(f))
		}
		defs = append(defs, def)
	}
	return defs
}

func toFunctionDef(f fixtureFunction) model.FunctionDef {
	fn := model.FunctionDef{Name: f.Name}
	for _, p := range f.Params {
		fn.Params = append(fn.Params, model.ParamDef{Name: p.Name, Type: p.Type})
	}
	return fn
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("", store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBuild_FromFixture_ResolvesCrossFileReferences(t *testing.T) {
	defs := loadFixture(t, "testdata/basic_project.yaml")
	s := openTestStore(t)
	b := New(s)

	res, err := b.Build(defs)
	require.NoError(t, err)
	assert.Greater(t, res.NodesUpserted, 0)

	serverID := model.NewNodeID(model.NodeClass, "pkg/app.go", "pkg.app.Server")
	baseID := model.NewNodeID(model.NodeClass, "pkg/util.go", "pkg.util.Base")

	err = s.View(func(txn *badger.Txn) error {
		server, err := store.GetNode(txn, serverID)
		require.NoError(t, err)
		assert.Nil(t, server.Properties["unresolved_bases"])

		inherits, err := store.ScanEdgesByType(txn, model.EdgeInherits)
		require.NoError(t, err)
		require.Len(t, inherits, 1)
		assert.Equal(t, serverID, inherits[0].Source)
		assert.Equal(t, baseID, inherits[0].Target)
		return nil
	})
	require.NoError(t, err)

	// fmt has no matching module declaration, so it resolves to an
	// external node rather than an internal imports edge.
	err = s.View(func(txn *badger.Txn) error {
		externals, err := store.ScanNodesByType(txn, model.NodeExternal)
		require.NoError(t, err)
		require.Len(t, externals, 1)
		assert.Equal(t, "fmt", externals[0].Name)
		return nil
	})
	require.NoError(t, err)
}

func TestGenerateModule_UnresolvedBaseRecordedAsProperty(t *testing.T) {
	def := model.ModuleDef{
		Name: "pkg.a", Path: "a.go",
		Classes: []model.ClassDef{{Name: "Widget", Bases: []string{"mystery.Base"}}},
	}
	r := newResolver()
	registerDeclarations(def, r)
	nodes, _ := generateModule(def, r)

	var widget *model.Node
	for _, n := range nodes {
		if n.Name == "Widget" {
			widget = n
		}
	}
	require.NotNil(t, widget)
	assert.Equal(t, []string{"mystery.Base"}, widget.Properties["unresolved_bases"])
}

func TestBuild_FullRebuildRemovesStaleNodes(t *testing.T) {
	s := openTestStore(t)
	b := New(s)

	first := []model.ModuleDef{{Name: "pkg.a", Path: "a.go", Functions: []model.FunctionDef{{Name: "F"}}}}
	_, err := b.Build(first)
	require.NoError(t, err)

	second := []model.ModuleDef{{Name: "pkg.b", Path: "b.go", Functions: []model.FunctionDef{{Name: "G"}}}}
	res, err := b.Build(second)
	require.NoError(t, err)
	assert.Greater(t, res.NodesDeleted, 0)

	err = s.View(func(txn *badger.Txn) error {
		nodes, err := store.ScanAllNodes(txn)
		require.NoError(t, err)
		for _, n := range nodes {
			assert.NotEqual(t, "pkg.a", n.QualifiedName)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestUpdate_IncrementalDiffOnlyTouchesChangedFile(t *testing.T) {
	s := openTestStore(t)
	b := New(s)

	initial := []model.ModuleDef{
		{Name: "pkg.a", Path: "a.go", Functions: []model.FunctionDef{{Name: "F"}}},
		{Name: "pkg.b", Path: "b.go", Functions: []model.FunctionDef{{Name: "G"}}},
	}
	_, err := b.Build(initial)
	require.NoError(t, err)

	// a.go drops F and adds H; b.go is untouched and not part of this update.
	updated := []model.ModuleDef{
		{Name: "pkg.a", Path: "a.go", Functions: []model.FunctionDef{{Name: "H"}}},
	}
	res, err := b.Update(updated, nil)
	require.NoError(t, err)
	assert.Greater(t, res.NodesDeleted, 0)

	err = s.View(func(txn *badger.Txn) error {
		bFuncID := model.NewNodeID(model.NodeFunction, "b.go", "pkg.b.G")
		_, err := store.GetNode(txn, bFuncID)
		assert.NoError(t, err, "untouched file's nodes must survive an incremental update")

		aOldFuncID := model.NewNodeID(model.NodeFunction, "a.go", "pkg.a.F")
		_, err = store.GetNode(txn, aOldFuncID)
		assert.Error(t, err, "removed function must be deleted")

		aNewFuncID := model.NewNodeID(model.NodeFunction, "a.go", "pkg.a.H")
		_, err = store.GetNode(txn, aNewFuncID)
		assert.NoError(t, err, "new function must be upserted")
		return nil
	})
	require.NoError(t, err)
}

func TestUpdate_RepeatedWithUnchangedDefIsNoOp(t *testing.T) {
	s := openTestStore(t)
	b := New(s)

	defs := []model.ModuleDef{
		{
			Name:        "pkg.a",
			Path:        "a.go",
			ContentHash: "hash-1",
			Imports:     []model.ImportDef{{Module: "fmt"}},
			Classes:     []model.ClassDef{{Name: "T", Methods: []model.FunctionDef{{Name: "M"}}}},
			Functions:   []model.FunctionDef{{Name: "F"}},
		},
	}
	_, err := b.Build(defs)
	require.NoError(t, err)

	res, err := b.Update(defs, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.NodesUpserted, "re-applying an unchanged ModuleDef must not rewrite any node")
	assert.Equal(t, 0, res.EdgesUpserted, "re-applying an unchanged ModuleDef must not rewrite any edge")
	assert.Equal(t, 0, res.NodesDeleted)
	assert.Equal(t, 0, res.EdgesDeleted)

	// A changed ContentHash (even with otherwise identical declarations)
	// must still be treated as a real change and upsert the affected nodes.
	touched := []model.ModuleDef{
		{
			Name:        "pkg.a",
			Path:        "a.go",
			ContentHash: "hash-2",
			Imports:     []model.ImportDef{{Module: "fmt"}},
			Classes:     []model.ClassDef{{Name: "T", Methods: []model.FunctionDef{{Name: "M"}}}},
			Functions:   []model.FunctionDef{{Name: "F"}},
		},
	}
	res, err = b.Update(touched, nil)
	require.NoError(t, err)
	assert.Greater(t, res.NodesUpserted, 0, "a changed content hash must still trigger a rewrite")
}

func TestUpdate_GCsOrphanedExternalNode(t *testing.T) {
	s := openTestStore(t)
	b := New(s)

	withImport := []model.ModuleDef{
		{Name: "pkg.a", Path: "a.go", Imports: []model.ImportDef{{Module: "fmt"}}},
	}
	_, err := b.Build(withImport)
	require.NoError(t, err)

	err = s.View(func(txn *badger.Txn) error {
		externals, err := store.ScanNodesByType(txn, model.NodeExternal)
		require.NoError(t, err)
		require.Len(t, externals, 1)
		return nil
	})
	require.NoError(t, err)

	withoutImport := []model.ModuleDef{{Name: "pkg.a", Path: "a.go"}}
	res, err := b.Update(withoutImport, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExternalsGCed)

	err = s.View(func(txn *badger.Txn) error {
		externals, err := store.ScanNodesByType(txn, model.NodeExternal)
		require.NoError(t, err)
		assert.Len(t, externals, 0)
		return nil
	})
	require.NoError(t, err)
}

func TestUpdate_FailureIsReportedAndOtherFilesStillApply(t *testing.T) {
	s := openTestStore(t)
	b := New(s)

	res, err := b.Update(
		[]model.ModuleDef{{Name: "pkg.a", Path: "a.go", Functions: []model.FunctionDef{{Name: "F"}}}},
		[]Failure{{Path: "broken.go", Err: assert.AnError}},
	)
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "broken.go", res.Failures[0].Path)
	assert.Greater(t, res.NodesUpserted, 0)
}
