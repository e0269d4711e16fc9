// Package suggest finds a "did you mean" candidate for an unknown recipe
// name given on the command line (the analyzer's unknown-dependency
// error carries no suggestion), the way original `just`'s suggestion.rs scores
// candidates by edit distance and keeps the closest one under a
// threshold. Grounded on the teacher's use of
// github.com/lithammer/fuzzysearch for near-match scoring
// (runtime/planner/planner.go's findClosestMatch).
package suggest

import "github.com/lithammer/fuzzysearch/fuzzy"

// threshold mirrors the original's `distance < 3` cutoff in
// suggestion.rs: a candidate further than this is not worth suggesting.
const threshold = 3

// Find returns the candidate closest to input by edit distance, or ""
// if none is within the threshold.
func Find(input string, candidates []string) string {
	best, bestDist := "", threshold
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(input, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// Message renders the suggestion the way the original does: "Did you
// mean `name`?", optionally noting the alias's target.
func Message(name string, aliasTarget string) string {
	if name == "" {
		return ""
	}
	if aliasTarget != "" {
		return "Did you mean `" + name + "`, an alias for `" + aliasTarget + "`?"
	}
	return "Did you mean `" + name + "`?"
}
