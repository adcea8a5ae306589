// Package codes normalises company code and currency lists.
package codes

import "strings"

// Normalize trims and upper-cases each code, dropping blanks and duplicates.
// Order of first occurrence is preserved. An empty result stays empty, which
// callers read as an unrestricted dimension.
func Normalize(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = Code(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Code is the canonical form of a single company code or currency.
func Code(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}
