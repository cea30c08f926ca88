package query

import "strings"

// Intent is the routing decision for an incoming question.
type Intent int

const (
	// Computational questions need a fresh tabular computation.
	Computational Intent = iota
	// Analytical questions interpret an already-computed result.
	Analytical
)

// analyticalKeywords route a question to interpretation of prior results.
var analyticalKeywords = []string{
	"analyse", "why", "explain", "interpret", "insight",
	"trend", "pattern", "meaning", "implication", "compare",
	"reason", "understand", "contribute", "who",
}

// ClassifyIntent scans the question case-insensitively for analytical
// keywords. Any match wins.
func ClassifyIntent(q string) Intent {
	lower := strings.ToLower(q)
	for _, kw := range analyticalKeywords {
		if strings.Contains(lower, kw) {
			return Analytical
		}
	}
	return Computational
}
