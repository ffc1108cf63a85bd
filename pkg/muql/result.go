package muql

// Result is the uniform rectangular shape every MUQL execution returns,
// whether it succeeded, found nothing, or partially matched (spec.md
// §4.4 "a uniform shape" for daemon-served clients).
type Result struct {
	Columns   []string
	Rows      [][]any
	RowCount  int
	ElapsedMS int64
	Warning   string
}

func emptyResult(columns []string, warning string) *Result {
	return &Result{Columns: columns, Rows: [][]any{}, RowCount: 0, Warning: warning}
}
