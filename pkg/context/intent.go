package context

import "strings"

// classifyIntent is a small keyword classifier choosing one of the six
// strategies spec.md §4.5 step 1 names. It runs before entity extraction
// and sets which downstream weights and retention rules apply.
func classifyIntent(question string) (Intent, float64) {
	q := strings.ToLower(question)

	type rule struct {
		intent     Intent
		confidence float64
		keywords   []string
	}
	rules := []rule{
		{IntentImpact, 0.9, []string{"impact", "affect", "break", "blast radius", "depends on", "who uses", "who calls"}},
		{IntentExplain, 0.85, []string{"how does", "how do", "explain", "why does", "what does", "walk me through"}},
		{IntentLocate, 0.85, []string{"where is", "where are", "find the", "locate", "which file"}},
		{IntentList, 0.8, []string{"list all", "list every", "show all", "enumerate", "what are the"}},
		{IntentNavigate, 0.8, []string{"go to", "take me to", "jump to", "open"}},
	}

	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(q, kw) {
				return r.intent, r.confidence
			}
		}
	}
	return IntentDefault, 0.5
}

// strategy bundles the per-intent behavior the extractor varies: whether
// to keep test files and parent classes, and an offset added to the
// graph-expansion depth: +1 for the inherently structural impact intent,
// -1 for the narrowly textual locate intent, 0 otherwise.
type strategy struct {
	retainTests     bool
	retainParents   bool
	expandDepthBias int
}

func strategyFor(intent Intent, cfg Config) strategy {
	switch intent {
	case IntentImpact:
		return strategy{retainTests: !cfg.ExcludeTests, retainParents: true, expandDepthBias: 1}
	case IntentLocate:
		return strategy{retainTests: false, retainParents: false, expandDepthBias: -1}
	case IntentList:
		return strategy{retainTests: !cfg.ExcludeTests, retainParents: false, expandDepthBias: 0}
	case IntentNavigate:
		return strategy{retainTests: false, retainParents: true, expandDepthBias: 0}
	case IntentExplain:
		return strategy{retainTests: !cfg.ExcludeTests, retainParents: true, expandDepthBias: 0}
	default:
		return strategy{retainTests: !cfg.ExcludeTests, retainParents: cfg.IncludeParent, expandDepthBias: 0}
	}
}
