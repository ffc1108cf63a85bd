package context

import (
	"fmt"
	"strings"

	"github.com/mu-kernel/mukernel/pkg/model"
)

// renderMUText produces the fixed MU-text sigil format of spec.md §6, one
// block per node in the order given (callers are responsible for
// parent-before-child ordering — fitToBudget already guarantees this).
func renderMUText(nodes []*model.Node, cfg Config) string {
	var b strings.Builder
	for i, n := range nodes {
		if i > 0 {
			b.WriteByte('\n')
		}
		renderNode(&b, n, cfg)
	}
	return b.String()
}

func renderNode(b *strings.Builder, n *model.Node, cfg Config) {
	switch n.Type {
	case model.NodeModule:
		renderModule(b, n, cfg)
	case model.NodeClass:
		renderClass(b, n, cfg)
	case model.NodeFunction:
		renderFunction(b, n, cfg)
	case model.NodeExternal:
		fmt.Fprintf(b, "!%s\n", n.Name)
	}
}

func renderModule(b *strings.Builder, n *model.Node, cfg Config) {
	fmt.Fprintf(b, "!%s\n", n.Name)
	if cfg.IncludeImports {
		if deps, ok := n.Properties["deps"].([]string); ok && len(deps) > 0 {
			fmt.Fprintf(b, "@deps [%s]\n", strings.Join(deps, ", "))
		}
	}
	renderAnnotations(b, n, cfg)
}

func renderClass(b *strings.Builder, n *model.Node, cfg Config) {
	bases, _ := n.Properties["bases"].([]string)
	if len(bases) > 0 {
		fmt.Fprintf(b, "$%s < %s\n", n.Name, strings.Join(bases, ", "))
	} else {
		fmt.Fprintf(b, "$%s\n", n.Name)
	}
	if attrs, ok := n.Properties["attributes"].([]string); ok && len(attrs) > 0 {
		if len(attrs) > cfg.MaxAttributes {
			attrs = attrs[:cfg.MaxAttributes]
		}
		fmt.Fprintf(b, "@attrs [%s]\n", strings.Join(attrs, ", "))
	}
	renderAnnotations(b, n, cfg)
}

func renderFunction(b *strings.Builder, n *model.Node, cfg Config) {
	params, _ := n.Properties["params"].([]model.ParamDef)
	parts := make([]string, len(params))
	for i, p := range params {
		if p.Type != "" {
			parts[i] = p.Name + ": " + p.Type
		} else {
			parts[i] = p.Name
		}
	}
	returnType, _ := n.Properties["return_type"].(string)
	if returnType != "" {
		fmt.Fprintf(b, "#%s(%s) -> %s\n", n.Name, strings.Join(parts, ", "), returnType)
	} else {
		fmt.Fprintf(b, "#%s(%s)\n", n.Name, strings.Join(parts, ", "))
	}
	renderAnnotations(b, n, cfg)
}

func renderAnnotations(b *strings.Builder, n *model.Node, cfg Config) {
	if cfg.IncludeDocstrings {
		if doc, _ := n.Properties["docstring"].(string); doc != "" {
			doc = truncateDocstring(doc, cfg.MaxDocstringLines)
			for _, line := range strings.Split(doc, "\n") {
				fmt.Fprintf(b, ":: %s\n", line)
			}
		}
	}
	if n.Complexity > 0 {
		fmt.Fprintf(b, ":: complexity %d\n", n.Complexity)
	}
	if cfg.IncludeLineNumbers && n.LineStart > 0 {
		fmt.Fprintf(b, ":: L%d-%d\n", n.LineStart, n.LineEnd)
	}
}
