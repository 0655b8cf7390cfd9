package engine

import "strings"

// webSearchTriggers are the substrings that turn the web branch on when the
// caller did not request it explicitly. A deliberate low-cost gate, not a
// classifier.
var webSearchTriggers = []string{
	"search",
	"look up",
	"find out",
	"latest",
	"current",
	"news",
	"today",
}

// ShouldWebSearch decides whether the web-search branch runs for a message.
// True when the caller enabled it or the message contains a trigger phrase.
func ShouldWebSearch(enabled bool, message string) bool {
	if enabled {
		return true
	}
	m := strings.ToLower(message)
	for _, trigger := range webSearchTriggers {
		if strings.Contains(m, trigger) {
			return true
		}
	}
	return false
}
