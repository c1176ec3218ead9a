// Package issuekey finds Jira issue references in test titles and annotations.
package issuekey

import (
	"regexp"
	"strings"
)

// issuePattern matches either a #-prefixed reference (#PROJ-12 or #12) or a
// bare PROJ-12 that is not glued to a preceding letter or digit.
var issuePattern = regexp.MustCompile(
	`#(?:([A-Za-z][A-Za-z0-9_]*)-)?(\d+)` +
		`|(?:^|[^A-Za-z0-9#])([A-Z][A-Z0-9]*)-(\d+)`,
)

// Extractor normalizes issue references against a default project.
type Extractor struct {
	// DefaultProject is prepended to bare numeric references. Empty means
	// bare numbers pass through as-is.
	DefaultProject string
}

// Extract returns the distinct issue keys referenced by a test title and its
// declared annotations. A title with no reference yields an empty result.
func (e Extractor) Extract(title string, annotations []string) []string {
	seen := make(map[string]struct{})
	var keys []string
	add := func(key string) {
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	for _, m := range issuePattern.FindAllStringSubmatch(title, -1) {
		switch {
		case m[2] != "":
			add(e.qualify(m[1], m[2]))
		case m[4] != "":
			add(e.qualify(m[3], m[4]))
		}
	}

	for _, a := range annotations {
		add(Normalize(a))
	}
	return keys
}

func (e Extractor) qualify(prefix, number string) string {
	if prefix != "" {
		return strings.ToUpper(prefix) + "-" + number
	}
	if e.DefaultProject != "" {
		return strings.ToUpper(e.DefaultProject) + "-" + number
	}
	return number
}

// Normalize canonicalizes an explicitly declared key: surrounding space and a
// leading # are dropped and the result is uppercased.
func Normalize(key string) string {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "#")
	return strings.ToUpper(strings.TrimSpace(key))
}
