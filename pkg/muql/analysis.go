package muql

import (
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// execAnalyze implements spec.md §4.4's fixed ANALYZE compositions: each
// kind is a canned pairing of a graph or relational primitive, not a
// general query form.
func (e *Executor) execAnalyze(s *AnalyzeStmt) (*Result, error) {
	switch s.Kind {
	case "circular":
		return e.analyzeCircular()
	case "complexity":
		return e.analyzeComplexity(s)
	case "coupling":
		return e.analyzeCoupling(s)
	case "unused":
		return e.analyzeUnused()
	case "hotspots":
		return e.analyzeHotspots(s)
	default:
		return nil, &ErrSyntax{Msg: "unknown ANALYZE kind " + s.Kind}
	}
}

func (e *Executor) analyzeCircular() (*Result, error) {
	cols := []string{"cycle"}
	cycles, err := e.graph.FindCycles(model.EdgeImports)
	if err != nil {
		return nil, err
	}
	rows := make([][]any, 0, len(cycles))
	for _, cyc := range cycles {
		ids := make([]string, len(cyc))
		for i, id := range cyc {
			ids[i] = string(id)
		}
		rows = append(rows, []any{ids})
	}
	return &Result{Columns: cols, Rows: rows, RowCount: len(rows)}, nil
}

func (e *Executor) analyzeComplexity(s *AnalyzeStmt) (*Result, error) {
	cols := []string{"id", "name", "qualified_name", "file_path", "complexity"}
	var rows [][]any
	err := e.store.View(func(txn *badger.Txn) error {
		nodes, err := store.ScanAllNodes(txn)
		if err != nil {
			return err
		}
		var filtered []*model.Node
		for _, n := range nodes {
			if n.Type == model.NodeExternal {
				continue
			}
			if s.HasThresh && n.Complexity < s.Threshold {
				continue
			}
			filtered = append(filtered, n)
		}
		sort.Slice(filtered, func(i, j int) bool { return filtered[i].Complexity > filtered[j].Complexity })
		for _, n := range filtered {
			rows = append(rows, nodeRow(n, cols))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = [][]any{}
	}
	return &Result{Columns: cols, Rows: rows, RowCount: len(rows)}, nil
}

// analyzeCoupling ranks modules by fan-out + fan-in over imports edges,
// the simplest structural coupling signal the graph supports.
func (e *Executor) analyzeCoupling(s *AnalyzeStmt) (*Result, error) {
	cols := []string{"id", "name", "file_path", "fan_in", "fan_out", "coupling"}
	var rows [][]any
	err := e.store.View(func(txn *badger.Txn) error {
		modules, err := store.ScanNodesByType(txn, model.NodeModule)
		if err != nil {
			return err
		}
		type scored struct {
			n             *model.Node
			fanIn, fanOut int
		}
		var scoredMods []scored
		for _, m := range modules {
			out, err := store.ScanEdgesFromSource(txn, m.ID)
			if err != nil {
				return err
			}
			in, err := store.ScanEdgesToTarget(txn, m.ID)
			if err != nil {
				return err
			}
			fanOut := countByType(out, model.EdgeImports)
			fanIn := countByType(in, model.EdgeImports)
			total := fanIn + fanOut
			if s.HasThresh && total < s.Threshold {
				continue
			}
			scoredMods = append(scoredMods, scored{m, fanIn, fanOut})
		}
		sort.Slice(scoredMods, func(i, j int) bool {
			return (scoredMods[i].fanIn + scoredMods[i].fanOut) > (scoredMods[j].fanIn + scoredMods[j].fanOut)
		})
		for _, sm := range scoredMods {
			rows = append(rows, []any{string(sm.n.ID), sm.n.Name, sm.n.FilePath, sm.fanIn, sm.fanOut, sm.fanIn + sm.fanOut})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = [][]any{}
	}
	return &Result{Columns: cols, Rows: rows, RowCount: len(rows)}, nil
}

// analyzeUnused lists functions and classes with no incoming inherits
// edge — a proxy for dead code given the graph has no call edges.
// Incoming contains and imports edges do not count as references, so
// every function is listed.
func (e *Executor) analyzeUnused() (*Result, error) {
	cols := []string{"id", "type", "name", "qualified_name", "file_path"}
	var rows [][]any
	err := e.store.View(func(txn *badger.Txn) error {
		candidates, err := store.ScanAllNodes(txn)
		if err != nil {
			return err
		}
		for _, n := range candidates {
			if n.Type != model.NodeClass && n.Type != model.NodeFunction {
				continue
			}
			incoming, err := store.ScanEdgesToTarget(txn, n.ID)
			if err != nil {
				return err
			}
			referenced := false
			for _, ed := range incoming {
				if ed.Type == model.EdgeInherits {
					referenced = true
					break
				}
			}
			if !referenced {
				rows = append(rows, nodeRow(n, cols))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = [][]any{}
	}
	return &Result{Columns: cols, Rows: rows, RowCount: len(rows)}, nil
}

func (e *Executor) analyzeHotspots(s *AnalyzeStmt) (*Result, error) {
	cols := []string{"id", "name", "file_path", "complexity", "fan_in"}
	var rows [][]any
	err := e.store.View(func(txn *badger.Txn) error {
		nodes, err := store.ScanAllNodes(txn)
		if err != nil {
			return err
		}
		type scored struct {
			n     *model.Node
			fanIn int
		}
		var scoredNodes []scored
		for _, n := range nodes {
			if n.Type == model.NodeExternal {
				continue
			}
			in, err := store.ScanEdgesToTarget(txn, n.ID)
			if err != nil {
				return err
			}
			score := scored{n, len(in)}
			combined := n.Complexity + score.fanIn
			if s.HasThresh && combined < s.Threshold {
				continue
			}
			scoredNodes = append(scoredNodes, score)
		}
		sort.Slice(scoredNodes, func(i, j int) bool {
			return (scoredNodes[i].n.Complexity + scoredNodes[i].fanIn) > (scoredNodes[j].n.Complexity + scoredNodes[j].fanIn)
		})
		for _, sm := range scoredNodes {
			rows = append(rows, []any{string(sm.n.ID), sm.n.Name, sm.n.FilePath, sm.n.Complexity, sm.fanIn})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = [][]any{}
	}
	return &Result{Columns: cols, Rows: rows, RowCount: len(rows)}, nil
}

func countByType(edges []*model.Edge, t model.EdgeType) int {
	n := 0
	for _, e := range edges {
		if e.Type == t {
			n++
		}
	}
	return n
}
