package engine

import "strings"

// systemKeywords maps downstream analysis systems to the message keywords
// that suggest them. Detection is routing metadata only; it never changes how
// the request is processed.
var systemKeywords = map[string][]string{
	"content": {"article", "blog", "content", "write", "draft"},
	"stock":   {"stock", "inventory", "warehouse", "sku"},
	"trend":   {"trend", "forecast", "market", "demand"},
	"erp":     {"order", "invoice", "erp", "purchase"},
}

// detectOrder fixes the evaluation order so detection is deterministic when
// a message matches several systems.
var detectOrder = []string{"content", "stock", "trend", "erp"}

// DetectSystem tags a message with the analysis system it most likely
// concerns, or "" when nothing matches.
func DetectSystem(message string) string {
	m := strings.ToLower(message)
	for _, system := range detectOrder {
		for _, kw := range systemKeywords[system] {
			if strings.Contains(m, kw) {
				return system
			}
		}
	}
	return ""
}
