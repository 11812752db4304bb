// Package relay implements the reply pipeline: knowledge lookup, AI
// fallback, reply composition and paced sequential delivery.
package relay

import "strings"

// SplitReply splits one resolved reply into its ordered delivery parts:
// split on line breaks, trim each part, drop empties. A whitespace-only
// reply yields an empty plan, which callers treat as nothing to deliver.
func SplitReply(full string) []string {
	var plan []string
	for _, part := range strings.Split(full, "\n") {
		part = strings.TrimSpace(part)
		if part != "" {
			plan = append(plan, part)
		}
	}
	return plan
}
