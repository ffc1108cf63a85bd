package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCollapsesRapidEvents(t *testing.T) {
	out := make(chan FileChange, 8)
	d := newDebouncer(30*time.Millisecond, out)
	defer d.Close()

	d.Add(FileChange{Kind: ChangeWritten, Path: "a.go"})
	d.Add(FileChange{Kind: ChangeWritten, Path: "a.go"})
	d.Add(FileChange{Kind: ChangeRemoved, Path: "a.go"})

	select {
	case ev := <-out:
		assert.Equal(t, ChangeRemoved, ev.Kind)
		assert.Equal(t, "a.go", ev.Path)
	case <-time.After(time.Second):
		t.Fatal("debouncer did not flush within timeout")
	}

	select {
	case ev := <-out:
		t.Fatalf("unexpected second flush: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDebouncerTracksPathsIndependently(t *testing.T) {
	out := make(chan FileChange, 8)
	d := newDebouncer(20*time.Millisecond, out)
	defer d.Close()

	d.Add(FileChange{Kind: ChangeWritten, Path: "a.go"})
	d.Add(FileChange{Kind: ChangeCreated, Path: "b.go"})

	seen := map[string]FileChange{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-out:
			seen[ev.Path] = ev
		case <-time.After(time.Second):
			t.Fatal("missing flush")
		}
	}
	require.Len(t, seen, 2)
	assert.Equal(t, ChangeWritten, seen["a.go"].Kind)
	assert.Equal(t, ChangeCreated, seen["b.go"].Kind)
}

func TestDebouncerCloseSuppressesFlush(t *testing.T) {
	out := make(chan FileChange)
	d := newDebouncer(10*time.Millisecond, out)

	d.Add(FileChange{Kind: ChangeWritten, Path: "a.go"})
	d.Close()

	select {
	case ev := <-out:
		t.Fatalf("expected no flush after Close, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
