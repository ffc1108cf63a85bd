package context

import (
	"strings"

	"github.com/mu-kernel/mukernel/pkg/model"
)

// nodeTypeBaseTokens mirrors budgeter.py's NODE_TYPE_BASE_TOKENS: rough
// signature overhead per node type (module=! header+@deps, class=$
// header+@attrs, function=# signature, external=bare name).
var nodeTypeBaseTokens = map[model.NodeType]int{
	model.NodeModule:   15,
	model.NodeClass:    25,
	model.NodeFunction: 20,
	model.NodeExternal: 5,
}

const (
	tokensPerParam = 5
	tokensPerAttr  = 3
	tokensPerBase  = 3
)

// estimateTokens ports budgeter.py's estimate_node_tokens: a type-based
// base cost plus per-parameter, per-attribute and per-base contributions.
// When docstrings are included, the docstring is charged by length (one
// token per four characters, at most 50), not per line.
func estimateTokens(n *model.Node, cfg Config) int {
	base, ok := nodeTypeBaseTokens[n.Type]
	if !ok {
		base = 10
	}
	tokens := base + len(strings.Split(n.Name, "_")) + len(strings.Split(n.Name, "."))

	switch n.Type {
	case model.NodeFunction:
		if params, ok := n.Properties["params"].([]model.ParamDef); ok {
			tokens += len(params) * tokensPerParam
		}
		if rt, _ := n.Properties["return_type"].(string); rt != "" {
			tokens += 3
		}
		if async, _ := n.Properties["is_async"].(bool); async {
			tokens++
		}
		static, _ := n.Properties["is_static"].(bool)
		classMethod, _ := n.Properties["is_classmethod"].(bool)
		if static || classMethod {
			tokens++
		}
	case model.NodeClass:
		if bases, ok := n.Properties["bases"].([]string); ok {
			tokens += len(bases) * tokensPerBase
		}
		if attrs, ok := n.Properties["attributes"].([]string); ok {
			tokens += len(attrs) * tokensPerAttr
		}
	case model.NodeModule:
		if n.FilePath != "" {
			tokens += len(strings.Split(n.FilePath, "/")) * 2
		}
	}

	if cfg.IncludeDocstrings {
		if doc, _ := n.Properties["docstring"].(string); doc != "" {
			docTokens := len(doc) / 4
			if docTokens > 50 {
				docTokens = 50
			}
			tokens += docTokens
		}
	}

	if cfg.IncludeLineNumbers {
		tokens += 5
	}

	return tokens
}

// parentLookup resolves a function node's containing class, if any — the
// Store/graph boundary the budgeter needs to decide whether to pull a
// method's parent class into the selection.
type parentLookup func(id model.NodeID) (*model.Node, bool)

// fitToBudget greedily selects scored nodes (assumed sorted descending by
// score) until the token budget is exhausted, pulling in a selected
// method's parent class first when cfg.IncludeParent is set (budgeter.py
// `fit_to_budget`). Parent nodes are charged their own token cost and
// inherit 90% of the child's score, then are reordered to appear
// immediately before their child in the final slice.
func fitToBudget(scored []ScoredNode, cfg Config, parentOf parentLookup) []ScoredNode {
	selected := make([]ScoredNode, 0, len(scored))
	selectedIDs := map[model.NodeID]bool{}
	needsParentBefore := map[model.NodeID]ScoredNode{}
	usedTokens := 0

	for _, sn := range scored {
		estimated := estimateTokens(sn.Node, cfg)

		var parent *model.Node
		var parentTokens int
		if cfg.IncludeParent && parentOf != nil && sn.Node.Type == model.NodeFunction {
			if p, ok := parentOf(sn.Node.ID); ok && !selectedIDs[p.ID] {
				parent = p
				parentTokens = estimateTokens(p, cfg)
			}
		}

		total := estimated + parentTokens
		if usedTokens+total > cfg.MaxTokens {
			if usedTokens >= cfg.MaxTokens {
				break
			}
			continue
		}

		if parent != nil {
			parentScored := ScoredNode{Node: parent, Score: sn.Score * 0.9, ProximityScore: 1.0, EstimatedTokens: parentTokens}
			needsParentBefore[sn.Node.ID] = parentScored
			selectedIDs[parent.ID] = true
			usedTokens += parentTokens
		}

		sn.EstimatedTokens = estimated
		selected = append(selected, sn)
		selectedIDs[sn.Node.ID] = true
		usedTokens += estimated
	}

	final := make([]ScoredNode, 0, len(selected))
	emitted := map[model.NodeID]bool{}
	for _, sn := range selected {
		if parentScored, ok := needsParentBefore[sn.Node.ID]; ok && !emitted[parentScored.Node.ID] {
			final = append(final, parentScored)
			emitted[parentScored.Node.ID] = true
		}
		final = append(final, sn)
	}
	return final
}
