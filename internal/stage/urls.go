// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"regexp"
	"strings"
)

// urlPattern matches http(s) URLs embedded in free text.
var urlPattern = regexp.MustCompile(`https?://[A-Za-z0-9.\-]+\.[A-Za-z]{2,}(?:/[A-Za-z0-9\-._~:/?#\[\]@!$&'()*+,;=%]*)?`)

// ExtractURLs returns the URLs found in text, deduplicated in first-seen
// order. Trailing sentence punctuation is stripped.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	var urls []string
	seen := make(map[string]bool)
	for _, m := range matches {
		u := strings.TrimRight(m, ".,;:!?)")
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}
