// Package context implements the smart context extractor (spec.md §4.5):
// intent classification, entity extraction, candidate selection by name
// and vector similarity, graph expansion, relevance scoring, token
// budgeting, and MU-text rendering.
package context

import "github.com/mu-kernel/mukernel/pkg/model"

// Intent is the classified strategy for a natural-language question.
type Intent string

const (
	IntentDefault  Intent = "default"
	IntentExplain  Intent = "explain"
	IntentImpact   Intent = "impact"
	IntentLocate   Intent = "locate"
	IntentList     Intent = "list"
	IntentNavigate Intent = "navigate"
)

// Config controls token budgets, scoring weights, and extraction
// behavior (mirrors the original implementation's ExtractionConfig).
type Config struct {
	MaxTokens int

	IncludeImports bool
	IncludeParent  bool
	ExpandDepth    int

	EntityWeight    float64
	VectorWeight    float64
	ProximityWeight float64
	MinRelevance    float64

	ExcludeTests       bool
	VectorSearchLimit  int
	MaxExpansionNodes  int
	IncludeDocstrings  bool
	IncludeLineNumbers bool
	MaxDocstringLines  int
	MaxAttributes      int
}

// DefaultConfig returns the extraction defaults named in spec.md §4.5 and
// the original budgeter/scorer constants.
func DefaultConfig() Config {
	return Config{
		MaxTokens:         8000,
		IncludeImports:    true,
		IncludeParent:     true,
		ExpandDepth:       1,
		EntityWeight:      1.0,
		VectorWeight:      0.7,
		ProximityWeight:   0.3,
		MinRelevance:      0.1,
		VectorSearchLimit: 20,
		MaxExpansionNodes: 100,
		IncludeDocstrings: true,
		MaxDocstringLines: 5,
		MaxAttributes:     15,
	}
}

// ExtractedEntity is a code identifier found in a question.
type ExtractedEntity struct {
	Name             string
	Confidence       float64
	ExtractionMethod string
	IsKnown          bool
}

// ScoredNode pairs a node with its relevance score breakdown.
type ScoredNode struct {
	Node            *model.Node
	Score           float64
	EntityScore     float64
	VectorScore     float64
	ProximityScore  float64
	EstimatedTokens int
}

// Result is the outcome of a single extraction.
type Result struct {
	MUText          string
	Nodes           []*model.Node
	TokenCount      int
	RelevanceScores map[model.NodeID]float64
	Stats           Stats
	Intent          Intent
	IntentConf      float64
	Strategy        string
}

// Stats carries debug/metrics counters about one extraction run.
type Stats struct {
	EntitiesFound     int
	VectorMatches     int
	CandidatesBefore  int
	CandidatesAfter   int
	BudgetUtilization float64
}
