package muql

import (
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/graph"
	"github.com/mu-kernel/mukernel/pkg/kernel"
	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// errUntrackedRelation is returned for relations the mubase graph has no edge type
// for. The model carries only contains/imports/inherits edges (spec.md
// §3), so CALLING/CALLED BY and IMPLEMENTING have no backing data; rather
// than error, these degrade to an empty result with a warning, matching
// the "semantic miss returns an empty rectangle, not an exception"
// posture used everywhere else in MUQL (spec.md §4.4).
var errUntrackedRelation = errors.New("relation not tracked by the graph model")

func (e *Executor) execShow(s *ShowStmt) (*Result, error) {
	cols := []string{"id", "type", "name", "qualified_name", "file_path"}
	depth := s.Depth
	if depth <= 0 {
		depth = 1
	}

	var dir graph.Direction
	var edgeTypes []model.EdgeType
	switch s.Kind {
	case "dependencies":
		dir, edgeTypes = graph.DirOut, []model.EdgeType{model.EdgeImports}
	case "dependents":
		dir, edgeTypes = graph.DirIn, []model.EdgeType{model.EdgeImports}
	case "callers", "callees":
		return emptyResult(cols, errUntrackedRelation.Error()), nil
	default:
		return nil, &ErrSyntax{Msg: "unknown SHOW kind " + s.Kind}
	}

	var rows [][]any
	err := e.store.View(func(txn *badger.Txn) error {
		n, err := resolveNode(txn, s.Of)
		if err != nil {
			return err
		}
		ids, err := e.graph.Neighbors(n.ID, dir, depth, edgeTypes...)
		if err != nil {
			return err
		}
		rows, err = hydrateRows(txn, ids, cols)
		return err
	})
	if err != nil {
		return handleNotFoundOrGraphUnloaded(cols, err)
	}
	return &Result{Columns: cols, Rows: rows, RowCount: len(rows)}, nil
}

func (e *Executor) execFind(s *FindStmt) (*Result, error) {
	cols := []string{"id", "type", "name", "qualified_name", "file_path"}
	nodeType, ok := tableNodeTypes[s.Kind]
	if !ok {
		return nil, &ErrSyntax{Msg: "unknown FIND kind " + s.Kind}
	}

	var rows [][]any
	err := e.store.View(func(txn *badger.Txn) error {
		candidates, err := scanByFindKind(txn, nodeType)
		if err != nil {
			return err
		}

		switch s.Relation {
		case "INHERITING_FROM":
			base, err := resolveNode(txn, s.Value)
			if err != nil {
				return err
			}
			edges, err := store.ScanEdgesToTarget(txn, base.ID)
			if err != nil {
				return err
			}
			var children []model.NodeID
			for _, ed := range edges {
				if ed.Type == model.EdgeInherits {
					children = append(children, ed.Source)
				}
			}
			rows, err = hydrateRows(txn, children, cols)
			return err
		case "WITH_DECORATOR":
			for _, n := range candidates {
				if hasDecorator(n, s.Value) {
					rows = append(rows, nodeRow(n, cols))
				}
			}
			return nil
		case "CALLING", "CALLED_BY", "IMPLEMENTING":
			return errUntrackedRelation
		default:
			return &ErrSyntax{Msg: "unknown FIND relation " + s.Relation}
		}
	})
	if err != nil {
		if errors.Is(err, errUntrackedRelation) {
			return emptyResult(cols, errUntrackedRelation.Error()), nil
		}
		return handleNotFoundOrGraphUnloaded(cols, err)
	}
	if rows == nil {
		rows = [][]any{}
	}
	return &Result{Columns: cols, Rows: rows, RowCount: len(rows)}, nil
}

func (e *Executor) execPath(s *PathStmt) (*Result, error) {
	cols := []string{"id", "type", "name", "qualified_name", "file_path"}
	var rows [][]any
	err := e.store.View(func(txn *badger.Txn) error {
		from, err := resolveNode(txn, s.From)
		if err != nil {
			return err
		}
		to, err := resolveNode(txn, s.To)
		if err != nil {
			return err
		}
		ids, err := e.graph.ShortestPath(from.ID, to.ID)
		if err != nil {
			return err
		}
		if s.MaxDepth > 0 && len(ids) > 0 && len(ids)-1 > s.MaxDepth {
			return nil
		}
		rows, err = hydrateRows(txn, ids, cols)
		return err
	})
	if err != nil {
		return handleNotFoundOrGraphUnloaded(cols, err)
	}
	if rows == nil {
		rows = [][]any{}
	}
	return &Result{Columns: cols, Rows: rows, RowCount: len(rows)}, nil
}

func handleNotFoundOrGraphUnloaded(cols []string, err error) (*Result, error) {
	if errors.Is(err, kernel.ErrNotFound) {
		return emptyResult(cols, err.Error()), nil
	}
	return nil, err
}

func hydrateRows(txn *badger.Txn, ids []model.NodeID, cols []string) ([][]any, error) {
	rows := make([][]any, 0, len(ids))
	for _, id := range ids {
		n, err := store.GetNode(txn, id)
		if err != nil {
			if errors.Is(err, kernel.ErrNotFound) {
				continue
			}
			return nil, err
		}
		rows = append(rows, nodeRow(n, cols))
	}
	return rows, nil
}

func scanByFindKind(txn *badger.Txn, nodeType model.NodeType) ([]*model.Node, error) {
	if nodeType == "" {
		return store.ScanAllNodes(txn)
	}
	return store.ScanNodesByType(txn, nodeType)
}

func hasDecorator(n *model.Node, decorator string) bool {
	raw, ok := n.Properties["decorators"]
	list, ok2 := raw.([]string)
	if ok && ok2 {
		for _, d := range list {
			if d == decorator {
				return true
			}
		}
	}
	if items, ok := raw.([]any); ok {
		for _, it := range items {
			if s, ok := it.(string); ok && s == decorator {
				return true
			}
		}
	}
	return false
}
