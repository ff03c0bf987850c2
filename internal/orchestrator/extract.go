package orchestrator

import "strings"

const (
	// solutionSentinel marks a terminal agent reply that carries a final
	// answer for the operator.
	solutionSentinel = "Case resolved"

	solutionOpen  = "<solution>"
	solutionClose = "</solution>"
)

// ExtractSolution post-processes a terminal agent message. If the content
// starts with the completion sentinel, the first payload delimited by
// <solution>...</solution> (possibly spanning multiple lines) is returned;
// with the sentinel present but no complete payload, or without the
// sentinel at all, the raw content is returned unchanged.
//
// Pure function: same input, same output, no side effects.
func ExtractSolution(content string) string {
	if !strings.HasPrefix(content, solutionSentinel) {
		return content
	}

	start := strings.Index(content, solutionOpen)
	if start < 0 {
		return content
	}
	rest := content[start+len(solutionOpen):]
	end := strings.Index(rest, solutionClose)
	if end < 0 {
		return content
	}
	return rest[:end]
}
