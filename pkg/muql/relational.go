package muql

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/kernel"
	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

func (e *Executor) execSelect(s *SelectStmt) (*Result, error) {
	if err := validateSelect(s); err != nil {
		return nil, err
	}

	var rows [][]any
	var cols []string

	err := e.store.View(func(txn *badger.Txn) error {
		if s.From == "edges" {
			edges, err := store.ScanAllEdges(txn)
			if err != nil {
				return err
			}
			filtered := filterEdges(edges, s.Where)
			cols = resolveColumns(s.Fields, edgeColumns)
			sortEdgeRows(filtered, s.OrderBy)
			for _, ed := range filtered {
				rows = append(rows, edgeRow(ed, cols))
			}
			return nil
		}

		var nodes []*model.Node
		var err error
		if s.From == "nodes" {
			nodes, err = store.ScanAllNodes(txn)
		} else {
			nodes, err = store.ScanNodesByType(txn, tableNodeTypes[s.From])
		}
		if err != nil {
			return err
		}
		filtered := filterNodes(nodes, s.Where)
		cols = resolveColumns(s.Fields, nodeColumns)
		sortNodeRows(filtered, s.OrderBy)
		for _, n := range filtered {
			rows = append(rows, nodeRow(n, cols))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Limit != nil && len(rows) > *s.Limit {
		rows = rows[:*s.Limit]
	}
	if rows == nil {
		rows = [][]any{}
	}
	return &Result{Columns: cols, Rows: rows, RowCount: len(rows)}, nil
}

func resolveColumns(fields, all []string) []string {
	if len(fields) == 1 && fields[0] == "*" {
		return all
	}
	return fields
}

func matchCondition(value any, cond *Condition) bool {
	if cond == nil {
		return true
	}
	switch cond.Op {
	case "=":
		return compareEq(value, cond.Value)
	case "!=":
		return !compareEq(value, cond.Value)
	case "CONTAINS":
		s, ok1 := value.(string)
		sub, ok2 := cond.Value.(string)
		return ok1 && ok2 && len(sub) > 0 && containsFold(s, sub)
	case "<", "<=", ">", ">=":
		return compareOrdered(value, cond.Value, cond.Op)
	default:
		return false
	}
}

func compareEq(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int:
		bv, ok := b.(float64)
		return ok && float64(av) == bv
	default:
		return a == b
	}
}

func compareOrdered(a, b any, op string) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case "<":
		return af < bf
	case "<=":
		return af <= bf
	case ">":
		return af > bf
	case ">=":
		return af >= bf
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func containsFold(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if equalFold(s[i:i+len(substr)], substr) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func filterNodes(nodes []*model.Node, cond *Condition) []*model.Node {
	if cond == nil {
		return nodes
	}
	var out []*model.Node
	for _, n := range nodes {
		if matchCondition(nodeFieldValue(n, cond.Field), cond) {
			out = append(out, n)
		}
	}
	return out
}

func filterEdges(edges []*model.Edge, cond *Condition) []*model.Edge {
	if cond == nil {
		return edges
	}
	var out []*model.Edge
	for _, e := range edges {
		if matchCondition(edgeFieldValue(e, cond.Field), cond) {
			out = append(out, e)
		}
	}
	return out
}

func sortNodeRows(nodes []*model.Node, order []OrderTerm) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return lessByOrder(func(col string) any { return nodeFieldValue(nodes[i], col) },
			func(col string) any { return nodeFieldValue(nodes[j], col) }, order)
	})
}

func sortEdgeRows(edges []*model.Edge, order []OrderTerm) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(edges, func(i, j int) bool {
		return lessByOrder(func(col string) any { return edgeFieldValue(edges[i], col) },
			func(col string) any { return edgeFieldValue(edges[j], col) }, order)
	})
}

func lessByOrder(a, b func(string) any, order []OrderTerm) bool {
	for _, ord := range order {
		av, bv := a(ord.Field), b(ord.Field)
		if less(av, bv) {
			return !ord.Desc
		}
		if less(bv, av) {
			return ord.Desc
		}
	}
	return false
}

func less(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av < bv
	case int:
		bv, ok := b.(int)
		return ok && av < bv
	default:
		return false
	}
}

func nodeRow(n *model.Node, cols []string) []any {
	row := make([]any, len(cols))
	for i, c := range cols {
		row[i] = nodeFieldValue(n, c)
	}
	return row
}

func edgeRow(e *model.Edge, cols []string) []any {
	row := make([]any, len(cols))
	for i, c := range cols {
		row[i] = edgeFieldValue(e, c)
	}
	return row
}

// resolveNode looks up a node by id or, failing that, by exact name,
// returning kernel.ErrNotFound if neither matches — callers turn this
// into a warning result rather than an error (spec.md §4.4 "semantic
// errors ... return an empty rectangle and a warning").
func resolveNode(txn *badger.Txn, nameOrID string) (*model.Node, error) {
	if n, err := store.GetNode(txn, model.NodeID(nameOrID)); err == nil {
		return n, nil
	} else if !errors.Is(err, kernel.ErrNotFound) {
		return nil, err
	}

	matches, err := store.ScanNodesByName(txn, nameOrID)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("node %q: %w", nameOrID, kernel.ErrNotFound)
	}
	return matches[0], nil
}
