package core

import "strings"

// CleanString normalizes free-form input: surrounding whitespace is dropped,
// and the result is lowercased when asked (emails, reaction types).
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// ContainsString reports whether s is an exact member of list.
func ContainsString(list []string, s string) bool {
	for _, el := range list {
		if el == s {
			return true
		}
	}
	return false
}
