// Package model defines the data types shared by every MU Kernel
// subsystem: the node/edge graph model of the mubase, the ModuleDef
// contract that external parsers deliver, and the auxiliary cache-like
// types (embeddings, snapshots, history, patterns).
//
// Nothing in this package talks to disk or the network — it is the
// vocabulary the rest of the Kernel is written in.
package model

import "time"

// NodeType identifies what kind of entity a Node represents.
type NodeType string

const (
	NodeModule   NodeType = "module"
	NodeClass    NodeType = "class"
	NodeFunction NodeType = "function"
	NodeExternal NodeType = "external"
)

// EdgeType identifies the relation an Edge represents.
type EdgeType string

const (
	EdgeContains EdgeType = "contains"
	EdgeImports  EdgeType = "imports"
	EdgeInherits EdgeType = "inherits"
)

// Props is a language-neutral property bag. Values are JSON-serializable
// scalars, slices of scalars, or nested Props.
type Props map[string]any

// Clone returns a deep-enough copy for safe mutation (one level of map
// nesting; slice values are copied by reference, matching how the builder
// uses them — it always replaces slices wholesale rather than mutating in
// place).
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// NodeID is a strongly-typed, deterministic node identifier. See
// NewNodeID / NewExternalNodeID for derivation rules.
type NodeID string

// EdgeID is a strongly-typed, deterministic edge identifier. See
// NewEdgeID for derivation rules.
type EdgeID string

// Node is a vertex in the mubase graph: a module, class, function, or
// external dependency.
//
// Invariant (spec §3): the identifier is stable across builds. For code
// nodes it is a function of {type, file_path, qualified_name}; for
// externals it is a function of the import target. FilePath is empty
// only for externals.
type Node struct {
	ID            NodeID
	Type          NodeType
	Name          string
	QualifiedName string
	FilePath      string
	Language      string
	LineStart     int
	LineEnd       int
	Complexity    int
	Properties    Props
	ContentHash   string // hash of the defining source content; drives change detection
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Edge is a directed relation between two nodes.
//
// Invariants (spec §3): Source != Target for imports/inherits; contains
// is acyclic and forms a forest rooted at modules; (Source, Target, Type)
// is unique.
type Edge struct {
	ID         EdgeID
	Source     NodeID
	Target     NodeID
	Type       EdgeType
	Properties Props
	CreatedAt  time.Time
}

// --- ModuleDef: the external parser input contract (spec §6) ---

// ImportDef describes a single import statement.
type ImportDef struct {
	Module    string // the imported module path/string as written
	Names     []string
	Alias     string
	IsFrom    bool
	IsDynamic bool
	Pattern   string // e.g. "require(...)", "import(...)" — informational
}

// ParamDef describes one function/method parameter.
type ParamDef struct {
	Name    string
	Type    string
	Default string
}

// FunctionDef describes a function or method as delivered by the parser.
type FunctionDef struct {
	Name         string
	Params       []ParamDef
	ReturnType   string
	Decorators   []string
	IsAsync      bool
	IsStatic     bool
	IsClassmethod bool
	IsProperty   bool
	Docstring    string
	NodeCount    int // AST-node-count complexity, parser-defined
	LineStart    int
	LineEnd      int
}

// ClassDef describes a class as delivered by the parser.
type ClassDef struct {
	Name       string
	Bases      []string
	Decorators []string
	Docstring  string
	LineStart  int
	LineEnd    int
	Methods    []FunctionDef
}

// ModuleDef is the complete per-file record handed to the Incremental
// Builder. The core consumes this shape and ignores any extra fields a
// parser implementation might attach.
type ModuleDef struct {
	Name      string
	Path      string
	Language  string
	Docstring string
	Imports   []ImportDef
	Classes   []ClassDef
	Functions []FunctionDef
	// ContentHash is the hash of the file's source text, used by the
	// builder to decide whether a module's nodes need to be recomputed.
	ContentHash string
}
