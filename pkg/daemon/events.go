package daemon

import "github.com/mu-kernel/mukernel/pkg/model"

// ChangeKind identifies what happened to a watched file.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeWritten ChangeKind = "modified"
	ChangeRemoved ChangeKind = "removed"
)

// FileChange is one filesystem event surfaced by the watcher, after
// extension filtering and ignored-directory filtering but before
// debouncing.
type FileChange struct {
	Kind ChangeKind
	Path string
}

// NodeEventKind mirrors the worker's commit outcome for a single node,
// broadcast to WS subscribers (spec.md §4.7 "on commit emits per-node
// added|modified|removed events").
type NodeEventKind string

const (
	NodeAdded    NodeEventKind = "added"
	NodeModified NodeEventKind = "modified"
	NodeRemoved  NodeEventKind = "removed"
)

// NodeEvent is one broadcast message on /ws.
type NodeEvent struct {
	Kind   NodeEventKind `json:"kind"`
	NodeID model.NodeID  `json:"node_id"`
	Path   string        `json:"path,omitempty"`
}
