package daemon

import (
	"errors"
	"log"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mu-kernel/mukernel/pkg/graph"
	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

func newTestWorker(t *testing.T, parser FileParser) (*Worker, *store.Store, *Hub) {
	t.Helper()
	s, err := store.Open("", store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	g := graph.New()
	require.NoError(t, g.Load(s))

	logger := log.New(io.Discard, "", 0)
	hub := NewHub(logger)
	m := NewMetrics()
	w := NewWorker(s, g, parser, hub, m, logger, 16)
	return w, s, hub
}

func moduleDef(path string, contentHash string, fn string) model.ModuleDef {
	return model.ModuleDef{
		Name:        path,
		Path:        path,
		Language:    "go",
		ContentHash: contentHash,
		Functions: []model.FunctionDef{
			{Name: fn, LineStart: 1, LineEnd: 3},
		},
	}
}

func TestWorkerProcessAddsNewNodes(t *testing.T) {
	parser := FileParserFunc(func(path string) (model.ModuleDef, error) {
		return moduleDef(path, "h1", "Foo"), nil
	})
	w, _, hub := newTestWorker(t, parser)

	connID := registerTestConn(hub)
	w.process(FileChange{Kind: ChangeCreated, Path: "a.go"})

	ev := waitForEvent(t, hub, connID)
	assert.Equal(t, NodeAdded, ev.Kind)
	assert.Equal(t, "a.go", ev.Path)
}

func TestWorkerProcessClassifiesModification(t *testing.T) {
	hash := "h1"
	parser := FileParserFunc(func(path string) (model.ModuleDef, error) {
		return moduleDef(path, hash, "Foo"), nil
	})
	w, _, hub := newTestWorker(t, parser)

	w.process(FileChange{Kind: ChangeCreated, Path: "a.go"})

	hash = "h2"
	connID := registerTestConn(hub)
	w.process(FileChange{Kind: ChangeWritten, Path: "a.go"})

	ev := waitForEvent(t, hub, connID)
	assert.Equal(t, NodeModified, ev.Kind)
}

func TestWorkerProcessRetainsStateOnParseFailure(t *testing.T) {
	calls := 0
	parser := FileParserFunc(func(path string) (model.ModuleDef, error) {
		calls++
		if calls == 1 {
			return moduleDef(path, "h1", "Foo"), nil
		}
		return model.ModuleDef{}, errors.New("syntax error")
	})
	w, s, hub := newTestWorker(t, parser)

	w.process(FileChange{Kind: ChangeCreated, Path: "a.go"})
	before, _ := w.snapshotFile("a.go")
	require.Len(t, before, 1)

	connID := registerTestConn(hub)
	w.process(FileChange{Kind: ChangeWritten, Path: "a.go"})

	after, _ := w.snapshotFile("a.go")
	assert.Len(t, after, 1, "a parse failure must not delete the file's existing nodes")
	assert.Equal(t, before[0].ContentHash, after[0].ContentHash)
	assertNoEvent(t, hub, connID)
	_ = s
}

func TestWorkerProcessRemovalBroadcastsRemoved(t *testing.T) {
	parser := FileParserFunc(func(path string) (model.ModuleDef, error) {
		return moduleDef(path, "h1", "Foo"), nil
	})
	w, _, hub := newTestWorker(t, parser)

	w.process(FileChange{Kind: ChangeCreated, Path: "a.go"})

	connID := registerTestConn(hub)
	w.process(FileChange{Kind: ChangeRemoved, Path: "a.go"})

	ev := waitForEvent(t, hub, connID)
	assert.Equal(t, NodeRemoved, ev.Kind)
}

// registerTestConn attaches a bare outbox directly to the hub, bypassing
// the HTTP upgrade, so tests can observe Broadcast without a real socket.
func registerTestConn(h *Hub) string {
	c := &wsConn{id: "test", outbox: make(chan NodeEvent, connQueueSize)}
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	return c.id
}

func waitForEvent(t *testing.T, h *Hub, connID string) NodeEvent {
	t.Helper()
	h.mu.RLock()
	c := h.conns[connID]
	h.mu.RUnlock()
	require.NotNil(t, c)
	select {
	case ev := <-c.outbox:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast event")
		return NodeEvent{}
	}
}

func assertNoEvent(t *testing.T, h *Hub, connID string) {
	t.Helper()
	h.mu.RLock()
	c := h.conns[connID]
	h.mu.RUnlock()
	require.NotNil(t, c)
	select {
	case ev := <-c.outbox:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
