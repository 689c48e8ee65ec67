package textutil

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases name and removes all whitespace.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// MatchName reports whether the normalized name contains any of the
// normalized matchers.
func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if m == "" {
			continue
		}
		if strings.Contains(name, NormalizeName(m)) {
			return true
		}
	}
	return false
}

// CollapseSpace trims s and folds every whitespace run into a single space.
func CollapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// NormalizeKey is the form join keys are compared in.
func NormalizeKey(s string) string {
	return strings.ToLower(CollapseSpace(s))
}

// Title title-cases words, "high rise skinny" -> "High Rise Skinny".
func Title(s string) string {
	// casers keep state, one per call
	return cases.Title(language.English).String(strings.ToLower(CollapseSpace(s)))
}

// ContainsFold reports whether s contains substr ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
