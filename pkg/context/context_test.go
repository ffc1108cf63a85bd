package context

import (
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mu-kernel/mukernel/pkg/graph"
	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// seeds a small auth module: AuthService class with login/logout methods,
// plus an unrelated Logger class, so entity and graph-expansion signal can
// be told apart from noise.
func seedExtractor(t *testing.T) *Extractor {
	t.Helper()
	s, err := store.Open("", store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	modAuth := model.NewNodeID(model.NodeModule, "auth.go", "auth")
	authService := model.NewNodeID(model.NodeClass, "auth.go", "auth.AuthService")
	login := model.NewNodeID(model.NodeFunction, "auth.go", "auth.AuthService.login")
	logout := model.NewNodeID(model.NodeFunction, "auth.go", "auth.AuthService.logout")
	modLog := model.NewNodeID(model.NodeModule, "log.go", "log")
	logger := model.NewNodeID(model.NodeClass, "log.go", "log.Logger")
	write := model.NewNodeID(model.NodeFunction, "log.go", "log.Logger.write")

	nodes := []*model.Node{
		{ID: modAuth, Type: model.NodeModule, Name: "auth", QualifiedName: "auth", FilePath: "auth.go"},
		{ID: authService, Type: model.NodeClass, Name: "AuthService", QualifiedName: "auth.AuthService", FilePath: "auth.go", Complexity: 4},
		{ID: login, Type: model.NodeFunction, Name: "login", QualifiedName: "auth.AuthService.login", FilePath: "auth.go", Complexity: 3,
			Properties: map[string]any{"docstring": "Authenticates a user and issues a session token."}},
		{ID: logout, Type: model.NodeFunction, Name: "logout", QualifiedName: "auth.AuthService.logout", FilePath: "auth.go", Complexity: 2},
		{ID: modLog, Type: model.NodeModule, Name: "log", QualifiedName: "log", FilePath: "log.go"},
		{ID: logger, Type: model.NodeClass, Name: "Logger", QualifiedName: "log.Logger", FilePath: "log.go", Complexity: 1},
		{ID: write, Type: model.NodeFunction, Name: "write", QualifiedName: "log.Logger.write", FilePath: "log.go", Complexity: 1},
	}
	edgeSpecs := []struct {
		from, to model.NodeID
		typ      model.EdgeType
	}{
		{modAuth, authService, model.EdgeContains},
		{authService, login, model.EdgeContains},
		{authService, logout, model.EdgeContains},
		{modLog, logger, model.EdgeContains},
		{logger, write, model.EdgeContains},
	}

	err = s.Update(func(txn *badger.Txn) error {
		for _, n := range nodes {
			if n.Properties == nil {
				n.Properties = map[string]any{}
			}
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

	return New(s, g, nil)
}

func TestExtract_AuthQuestion_SurfacesAuthServiceAndMethods(t *testing.T) {
	x := seedExtractor(t)
	cfg := DefaultConfig()
	cfg.MaxTokens = 4000

	res, err := x.Extract("How does authentication work in AuthService?", cfg)
	require.NoError(t, err)

	assert.LessOrEqual(t, res.TokenCount, 4000)
	assert.Contains(t, res.MUText, "$AuthService")
	assert.Contains(t, res.MUText, "#login")
	assert.Contains(t, res.MUText, "#logout")
	assert.NotContains(t, res.MUText, "Logger", "unrelated module should not be pulled in by name match alone")

	assert.Equal(t, IntentExplain, res.Intent)
}

func TestExtract_ParentClassPrecedesMethodInRenderOrder(t *testing.T) {
	x := seedExtractor(t)
	cfg := DefaultConfig()
	cfg.MaxTokens = 4000
	cfg.IncludeParent = true

	res, err := x.Extract("explain AuthService.login", cfg)
	require.NoError(t, err)

	classIdx := strings.Index(res.MUText, "$AuthService")
	methodIdx := strings.Index(res.MUText, "#login")
	require.NotEqual(t, -1, classIdx)
	require.NotEqual(t, -1, methodIdx)
	assert.Less(t, classIdx, methodIdx)
}

func TestExtract_NoMatchAndNoEmbeddings_ReturnsEmptyNotError(t *testing.T) {
	x := seedExtractor(t)
	cfg := DefaultConfig()

	res, err := x.Extract("something completely unrelated to anything here xyzzy plugh", cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Nodes)
	assert.Empty(t, res.MUText)
}

func TestExtract_TightBudget_StillFitsWithinMaxTokens(t *testing.T) {
	x := seedExtractor(t)
	cfg := DefaultConfig()
	cfg.MaxTokens = 30

	res, err := x.Extract("AuthService login logout", cfg)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.TokenCount, 30)
}
