package pipeline

import (
	"strings"
	"unicode"
)

// CleanDescription removes control characters and collapses whitespace runs
func CleanDescription(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\ufeff':
			return -1
		case unicode.IsControl(r) || unicode.IsSpace(r):
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// CleanUnit upper-cases unit abbreviations such as "un" or "cx"
func CleanUnit(s string) string {
	return strings.ToUpper(CleanDescription(s))
}
