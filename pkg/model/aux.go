package model

import "time"

// Pattern records a detected idiom (e.g. "singleton", "god object") tied
// to one or more nodes. Auxiliary and cache-like: its absence never
// affects correctness of the core graph.
type Pattern struct {
	ID          string
	Name        string
	NodeIDs     []NodeID
	Confidence  float64
	DetectedAt  time.Time
}

// Memory is a cross-session note left by a client (human or agent)
// against a node, independent of the graph's own properties.
type Memory struct {
	ID        string
	NodeID    NodeID
	Text      string
	Author    string
	CreatedAt time.Time
}

// CodebaseStat is an aggregate statistic about the whole codebase or one
// language within it, recomputed on each full build.
type CodebaseStat struct {
	Key       string // e.g. "total_nodes", "lang:python:functions"
	Value     float64
	UpdatedAt time.Time
}
