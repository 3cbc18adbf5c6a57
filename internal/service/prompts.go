package service

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	jsonBodyRe  = regexp.MustCompile(`(?s)\{.*\}`)
	sqlFenceRe  = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)\\s*```")
)

// extractJSONObject pulls the first JSON object out of a model response,
// tolerating code fences and surrounding prose
func extractJSONObject(response string) (string, bool) {
	if m := jsonFenceRe.FindStringSubmatch(response); m != nil {
		return m[1], true
	}
	if m := jsonBodyRe.FindString(response); m != "" {
		return m, true
	}
	return "", false
}

// truncateUTF8 caps s at limit bytes, backing off to a rune boundary so
// a prompt never carries a broken multibyte sequence
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// extractSQL pulls a SQL statement out of a model response. Responses
// usually arrive fenced; a bare statement is returned as-is.
func extractSQL(response string) string {
	if m := sqlFenceRe.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(response)
}
