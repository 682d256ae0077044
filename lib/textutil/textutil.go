package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases a name and strips every whitespace rune so
// "BEG01-U - Economia General" and "beg01-u-economiageneral" compare equal.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// ContainsAllFold reports whether text contains every marker, ignoring case.
func ContainsAllFold(text string, markers ...string) bool {
	text = strings.ToUpper(text)
	for _, m := range markers {
		if !strings.Contains(text, strings.ToUpper(m)) {
			return false
		}
	}
	return true
}
