package model

import "time"

// EmbeddingColumn selects which of a node's three embedding vectors to
// use for similarity scoring.
type EmbeddingColumn string

const (
	EmbeddingCode      EmbeddingColumn = "code"
	EmbeddingDocstring EmbeddingColumn = "docstring"
	EmbeddingName      EmbeddingColumn = "name"
)

// Embedding is a detached cache keyed by node id and model identity.
// Deleting an Embedding must never invalidate the Node it was computed
// for — it carries no foreign-key-like back-reference beyond NodeID.
type Embedding struct {
	NodeID        NodeID
	Model         string
	ModelVersion  string
	Dimensions    int
	Code          []float32
	Docstring     []float32
	Name          []float32
	CreatedAt     time.Time
}

// Vector returns the requested embedding column, or nil if it was never
// computed for this node.
func (e *Embedding) Vector(col EmbeddingColumn) []float32 {
	switch col {
	case EmbeddingCode:
		return e.Code
	case EmbeddingDocstring:
		return e.Docstring
	case EmbeddingName:
		return e.Name
	default:
		return nil
	}
}
