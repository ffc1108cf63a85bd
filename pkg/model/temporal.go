package model

import "time"

// Snapshot is a named point in time, conventionally aligned to a VCS
// commit. It establishes the frozen view used by history and diff.
type Snapshot struct {
	ID        string
	Commit    string
	Author    string
	Message   string
	NodeCount int
	EdgeCount int
	CreatedAt time.Time

	// ParentID is the snapshot this one was diffed against when created,
	// empty for the first snapshot of a repository.
	ParentID string

	// Change counts relative to ParentID, computed once at snapshot time
	// so listing snapshots doesn't require re-running a diff.
	NodesAdded    int
	NodesRemoved  int
	NodesModified int
}

// ChangeType classifies how an entity changed between two snapshots.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"

	// ChangeUnchanged marks a node/edge still present at this snapshot
	// with an identical content hash to the prior snapshot. Every live
	// node gets a history record at every snapshot (so diff can treat
	// "not in snapshot N" as authoritative removal); this fourth value
	// keeps "still here, nothing changed" distinct from a genuine edit.
	ChangeUnchanged ChangeType = "unchanged"
)

// NodeHistory is a per-snapshot record of a node's state.
type NodeHistory struct {
	SnapshotID    string
	NodeID        NodeID
	ChangeType    ChangeType
	BeforeHash    string // property-bag hash prior to this snapshot, "" if added
	AfterHash     string // property-bag hash as of this snapshot, "" if removed
	RecordedAt    time.Time
}

// EdgeHistory is a per-snapshot record of an edge's state.
type EdgeHistory struct {
	SnapshotID string
	EdgeID     EdgeID
	Source     NodeID
	Target     NodeID
	Type       EdgeType
	ChangeType ChangeType
	RecordedAt time.Time
}
