package context

import "strings"

// scoreEntityMatch mirrors scorer.py's tiered table exactly: exact=1.0,
// case-insensitive=0.8, suffix=0.6, prefix=0.5, qualified-name-contains=
// 0.4, substring=0.3, each multiplied by the entity's own confidence.
// The highest-scoring entity wins.
func scoreEntityMatch(name, qualifiedName string, entities []ExtractedEntity) float64 {
	if len(entities) == 0 {
		return 0
	}
	nameLower := strings.ToLower(name)
	qualLower := strings.ToLower(qualifiedName)

	var best float64
	for _, e := range entities {
		entLower := strings.ToLower(e.Name)
		var tier float64
		switch {
		case name == e.Name:
			tier = 1.0
		case nameLower == entLower:
			tier = 0.8
		case strings.HasSuffix(name, e.Name) || strings.HasSuffix(nameLower, entLower):
			tier = 0.6
		case strings.HasPrefix(name, e.Name) || strings.HasPrefix(nameLower, entLower):
			tier = 0.5
		case qualLower != "" && strings.Contains(qualLower, entLower):
			tier = 0.4
		case strings.Contains(nameLower, entLower):
			tier = 0.3
		default:
			continue
		}
		if score := tier * e.Confidence; score > best {
			best = score
		}
	}
	return best
}

// scoreProximity converts a BFS distance into a 1/(1+d) falloff: distance
// 0 (a seed itself) scores 1.0, distance 1 scores 0.5, and so on.
// Unreached nodes (no recorded distance) score 0.
func scoreProximity(distance int, reached bool) float64 {
	if !reached {
		return 0
	}
	return 1.0 / (1.0 + float64(distance))
}

func combinedScore(cfg Config, entityScore, vectorScore, proximityScore float64) float64 {
	return cfg.EntityWeight*entityScore + cfg.VectorWeight*vectorScore + cfg.ProximityWeight*proximityScore
}
