// Package textutil holds the string and vector helpers shared by evaluation,
// intent validation and retrieval.
package textutil

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	punctuation = regexp.MustCompile(`[.,!?;:'"()-]`)
	whitespace  = regexp.MustCompile(`\s+`)
	lower       = cases.Lower(language.Und)
)

// Normalize lowercases s, strips the answer punctuation set and collapses whitespace.
//
//	Normalize("  Paris,  France! ") == "paris france"
func Normalize(s string) string {
	s = strings.TrimSpace(lower.String(s))
	s = punctuation.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Blank reports whether s has no visible characters.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ContainsFold reports whether list holds topic, comparing normalized forms.
func ContainsFold(list []string, topic string) bool {
	return IndexFold(list, topic) >= 0
}

// IndexFold returns the index of topic in list using normalized comparison, or -1.
func IndexFold(list []string, topic string) int {
	want := Normalize(topic)
	for i, item := range list {
		if Normalize(item) == want {
			return i
		}
	}
	return -1
}
