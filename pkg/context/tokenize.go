package context

import "strings"

// countTokens is an approximate tokenizer available to callers that need
// to measure already-rendered MU-text (CLI output, cache sizing) without
// pulling in a model-specific vocabulary. Budget selection itself uses
// estimateTokens' per-field heuristic, not this function, so the same
// number gates both "can this node fit" and "how many tokens did fitting
// cost" — see fitToBudget.
func countTokens(text string) int {
	if text == "" {
		return 0
	}
	n := 0
	inToken := false
	for _, r := range text {
		if isTokenRune(r) {
			if !inToken {
				n++
				inToken = true
			}
		} else {
			inToken = false
			if isPunct(r) {
				n++
			}
		}
	}
	return n
}

func isTokenRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}

func isPunct(r rune) bool {
	return !isTokenRune(r) && !isSpace(r)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// truncateDocstring keeps at most maxLines lines, ellipsising if any were
// dropped, matching the original exporter's `truncate_docstring` option.
func truncateDocstring(doc string, maxLines int) string {
	if doc == "" || maxLines <= 0 {
		return doc
	}
	lines := strings.Split(doc, "\n")
	if len(lines) <= maxLines {
		return doc
	}
	return strings.Join(lines[:maxLines], "\n") + " ..."
}
