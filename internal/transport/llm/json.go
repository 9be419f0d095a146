package llm

import (
	"regexp"
	"strings"
)

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// cleanJSON strips markdown fences and prose around the first JSON object and
// drops trailing commas, the malformations chat models produce most often.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if start := strings.IndexByte(s, '{'); start >= 0 {
		if end := strings.LastIndexByte(s, '}'); end > start {
			s = s[start : end+1]
		}
	}
	return trailingComma.ReplaceAllString(s, "$1")
}
