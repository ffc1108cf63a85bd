// Package muql implements the MU Query Language: a hand-rolled lexer and
// recursive-descent parser producing one of five statement forms, a
// planner that classifies each into a relational, graph, or analysis
// composition, and an executor that evaluates the plan against the
// mubase Store and the in-memory graph Engine.
package muql

import (
	"time"

	"github.com/mu-kernel/mukernel/pkg/graph"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// Executor evaluates parsed MUQL statements. It holds no query state of
// its own; every Execute call is independent.
type Executor struct {
	store *store.Store
	graph *graph.Engine
}

func NewExecutor(s *store.Store, g *graph.Engine) *Executor {
	return &Executor{store: s, graph: g}
}

// Run parses src and executes it in one step, the entry point daemon
// handlers and the CLI's `query` subcommand both use.
func (e *Executor) Run(src string) (*Result, error) {
	stmt, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return e.Execute(stmt)
}

func (e *Executor) Execute(stmt Statement) (*Result, error) {
	start := time.Now()
	plan := PlanStatement(stmt)

	var res *Result
	var err error
	switch plan.Kind {
	case PlanRelational:
		res, err = e.execSelect(stmt.(*SelectStmt))
	case PlanGraph:
		switch s := stmt.(type) {
		case *ShowStmt:
			res, err = e.execShow(s)
		case *FindStmt:
			res, err = e.execFind(s)
		case *PathStmt:
			res, err = e.execPath(s)
		}
	case PlanAnalysis:
		res, err = e.execAnalyze(stmt.(*AnalyzeStmt))
	}
	if err != nil {
		return nil, err
	}
	res.ElapsedMS = time.Since(start).Milliseconds()
	return res, nil
}
