package muql

// PlanKind classifies a parsed Statement per spec.md §4.4's planner.
type PlanKind int

const (
	PlanRelational PlanKind = iota
	PlanGraph
	PlanAnalysis
)

// Plan pairs a Statement with the plan kind the Planner chose for it.
type Plan struct {
	Kind PlanKind
	Stmt Statement
}

// PlanStatement classifies stmt into one of the three plan kinds: a pure
// SELECT is relational; SHOW/FIND/PATH involve reachability and become
// graph plans; ANALYZE is a fixed composition of both, handled as its own
// kind so the executor can route it to the right composition.
func PlanStatement(stmt Statement) Plan {
	switch stmt.(type) {
	case *SelectStmt:
		return Plan{Kind: PlanRelational, Stmt: stmt}
	case *ShowStmt, *FindStmt, *PathStmt:
		return Plan{Kind: PlanGraph, Stmt: stmt}
	case *AnalyzeStmt:
		return Plan{Kind: PlanAnalysis, Stmt: stmt}
	default:
		return Plan{Kind: PlanRelational, Stmt: stmt}
	}
}
