package ingest

import (
	"strings"
	"unicode"
)

// NormalizeKeywords splits a comma-separated keyword field into distinct
// names in first-seen order. Surrounding whitespace and quote characters are
// stripped from each token and empty tokens are dropped.
func NormalizeKeywords(raw string) []string {
	if raw == "" {
		return nil
	}

	var keywords []string
	seen := make(map[string]struct{})
	for _, token := range strings.Split(raw, ",") {
		name := strings.TrimFunc(token, isKeywordPadding)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		keywords = append(keywords, name)
	}
	return keywords
}

func isKeywordPadding(r rune) bool {
	return unicode.IsSpace(r) || r == '\'' || r == '"'
}
