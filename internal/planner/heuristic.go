package planner

import "strings"

// generationKeywords are query words that suggest the user wants code
// changed, not just explained.
var generationKeywords = []string{
	"fix", "add", "implement", "create", "write", "refactor",
	"update", "change", "remove", "delete", "rename",
}

// SuggestsGeneration is the keyword fallback used when model-based
// classification is bypassed. It scans the query for words that imply a
// code change. The model's classification always wins when available.
func SuggestsGeneration(query string) bool {
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		for _, kw := range generationKeywords {
			if word == kw {
				return true
			}
		}
	}
	return false
}
