package context

import (
	"regexp"
	"strings"
)

var (
	reQuoted    = regexp.MustCompile(`'([^']+)'|"([^"]+)"|` + "`([^`]+)`")
	reDotted    = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)+\b`)
	reCamelCase = regexp.MustCompile(`\b[A-Za-z][a-z0-9]*(?:[A-Z][a-z0-9]*)+\b`)
	reSnakeCase = regexp.MustCompile(`\b[a-z][a-z0-9]*(?:_[a-z0-9]+)+\b`)
)

// extractEntities scans a question for code-identifier-shaped spans
// (spec.md §4.5 step 2): quoted strings, dotted paths, camelCase words,
// and snake_case words, each carrying a confidence tied to how
// unambiguously code-like the extraction method is. Dedup keeps the
// highest-confidence hit per name.
func extractEntities(question string) []ExtractedEntity {
	best := map[string]ExtractedEntity{}

	add := func(name, method string, confidence float64) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if existing, ok := best[name]; ok && existing.Confidence >= confidence {
			return
		}
		best[name] = ExtractedEntity{Name: name, Confidence: confidence, ExtractionMethod: method}
	}

	for _, m := range reQuoted.FindAllStringSubmatch(question, -1) {
		for _, g := range m[1:] {
			if g != "" {
				add(g, "quoted", 0.95)
			}
		}
	}
	for _, m := range reDotted.FindAllString(question, -1) {
		add(m, "dotted", 0.85)
	}
	for _, m := range reCamelCase.FindAllString(question, -1) {
		add(m, "camel_case", 0.8)
	}
	for _, m := range reSnakeCase.FindAllString(question, -1) {
		add(m, "snake_case", 0.7)
	}

	entities := make([]ExtractedEntity, 0, len(best))
	for _, e := range best {
		entities = append(entities, e)
	}
	return entities
}

// markKnown flags entities whose name matches a known node name, raising
// confidence slightly since the match is now corroborated by the graph.
func markKnown(entities []ExtractedEntity, knownNames map[string]bool) []ExtractedEntity {
	out := make([]ExtractedEntity, len(entities))
	for i, e := range entities {
		out[i] = e
		if knownNames[e.Name] || knownNames[strings.ToLower(e.Name)] {
			out[i].IsKnown = true
			if out[i].Confidence < 1.0 {
				out[i].Confidence = 1.0
			}
		}
	}
	return out
}
