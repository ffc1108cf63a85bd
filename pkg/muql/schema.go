package muql

import (
	"fmt"

	"github.com/mu-kernel/mukernel/pkg/model"
)

// nodeColumns and edgeColumns are the fixed whitelists MUQL's relational
// plan checks identifiers against before touching the Store (spec.md
// §4.4 "identifiers used to build SQL are whitelisted against a fixed
// table/column map; unknown tables/columns produce a syntax error, not a
// silent empty result").
var nodeColumns = []string{
	"id", "type", "name", "qualified_name", "file_path", "language",
	"line_start", "line_end", "complexity", "content_hash",
}

var edgeColumns = []string{"id", "source", "target", "type"}

var tableNodeTypes = map[string]model.NodeType{
	"modules":   model.NodeModule,
	"classes":   model.NodeClass,
	"functions": model.NodeFunction,
	"external":  model.NodeExternal,
}

// isValidTable reports whether table is one of spec.md §4.4's virtual
// tables (modules|classes|functions|external|nodes|edges).
func isValidTable(table string) bool {
	switch table {
	case "modules", "classes", "functions", "external", "nodes", "edges":
		return true
	default:
		return false
	}
}

func columnsFor(table string) []string {
	if table == "edges" {
		return edgeColumns
	}
	return nodeColumns
}

func isValidColumn(table, column string) bool {
	if column == "*" {
		return true
	}
	for _, c := range columnsFor(table) {
		if c == column {
			return true
		}
	}
	return false
}

// ErrSyntax wraps a validation failure the planner catches before ever
// touching the Store, distinct from kernel.ErrParse (which is reserved
// for the Builder's source-file parse failures).
type ErrSyntax struct {
	Msg string
}

func (e *ErrSyntax) Error() string { return fmt.Sprintf("muql: %s", e.Msg) }

func validateSelect(s *SelectStmt) error {
	if !isValidTable(s.From) {
		return &ErrSyntax{Msg: fmt.Sprintf("unknown table %q", s.From)}
	}
	for _, f := range s.Fields {
		if !isValidColumn(s.From, f) {
			return &ErrSyntax{Msg: fmt.Sprintf("unknown column %q on table %q", f, s.From)}
		}
	}
	if s.Where != nil && !isValidColumn(s.From, s.Where.Field) {
		return &ErrSyntax{Msg: fmt.Sprintf("unknown column %q on table %q", s.Where.Field, s.From)}
	}
	for _, ord := range s.OrderBy {
		if !isValidColumn(s.From, ord.Field) {
			return &ErrSyntax{Msg: fmt.Sprintf("unknown column %q on table %q", ord.Field, s.From)}
		}
	}
	return nil
}

func nodeFieldValue(n *model.Node, column string) any {
	switch column {
	case "id":
		return string(n.ID)
	case "type":
		return string(n.Type)
	case "name":
		return n.Name
	case "qualified_name":
		return n.QualifiedName
	case "file_path":
		return n.FilePath
	case "language":
		return n.Language
	case "line_start":
		return n.LineStart
	case "line_end":
		return n.LineEnd
	case "complexity":
		return n.Complexity
	case "content_hash":
		return n.ContentHash
	default:
		return nil
	}
}

func edgeFieldValue(e *model.Edge, column string) any {
	switch column {
	case "id":
		return string(e.ID)
	case "source":
		return string(e.Source)
	case "target":
		return string(e.Target)
	case "type":
		return string(e.Type)
	default:
		return nil
	}
}
