package usecase

import "strings"

// decomposeMarkers flag questions that usually span several aspects, where
// per-aspect retrieval improves recall over one combined query.
var decomposeMarkers = []string{
	" vs ",
	" versus ",
	"compare",
	"comparison",
	"difference between",
	"differences between",
	"both ",
	"respectively",
}

// shouldDecompose is a cheap pre-filter: only questions that look multi-part
// pay the extra generator round-trip for decomposition.
func shouldDecompose(question string) bool {
	lower := strings.ToLower(question)
	for _, marker := range decomposeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	if strings.Count(lower, "?") >= 2 {
		return true
	}
	// "X and Y" phrasing only counts when the question is long enough to
	// plausibly hold two aspects.
	return strings.Contains(lower, " and ") && len(lower) > 80
}
