package daemon

import "github.com/mu-kernel/mukernel/pkg/model"

// FileParser turns one source file into the ModuleDef the Incremental
// Builder consumes. MU Kernel ships no concrete implementation: per-
// language parsing is out of scope (spec.md §1 Non-goals); callers
// supply one (or several, dispatched by extension) when constructing a
// Worker.
type FileParser interface {
	ParseFile(path string) (model.ModuleDef, error)
}

// FileParserFunc adapts a plain function to FileParser.
type FileParserFunc func(path string) (model.ModuleDef, error)

func (f FileParserFunc) ParseFile(path string) (model.ModuleDef, error) { return f(path) }
