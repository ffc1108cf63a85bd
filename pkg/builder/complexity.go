package builder

import "github.com/mu-kernel/mukernel/pkg/model"

// complexity is an AST-node-count proxy, computed purely from the
// ModuleDef shape delivered by the external parser (the parser layer
// itself, which would walk a real AST, is out of scope per spec.md §1).
// A function's complexity counts its own declaration plus one unit per
// parameter and per decorator, plus one more if it is async; a class's
// complexity counts its own declaration plus one unit per base and per
// decorator, plus every method's complexity.
func functionComplexity(f model.FunctionDef) int {
	c := 1 + len(f.Params) + len(f.Decorators)
	if f.IsAsync {
		c++
	}
	return c
}

func classComplexity(c model.ClassDef) int {
	total := 1 + len(c.Bases) + len(c.Decorators)
	for _, m := range c.Methods {
		total += functionComplexity(m)
	}
	return total
}

func moduleComplexity(m model.ModuleDef) int {
	total := 1
	for _, fn := range m.Functions {
		total += functionComplexity(fn)
	}
	for _, cl := range m.Classes {
		total += classComplexity(cl)
	}
	return total
}
