package source

import (
	"path"
	"strings"
)

// Match reports whether a slash-separated resource id matches pattern.
// Segments use [path.Match] syntax; a "**" segment matches zero or more
// segments. Malformed patterns match nothing.
func Match(pattern, id string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(id, "/"))
}

func matchSegments(pat, name []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchSegments(rest, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		ok, err := path.Match(pat[0], name[0])
		if err != nil || !ok {
			return false
		}
		pat, name = pat[1:], name[1:]
	}
	return len(name) == 0
}

// MatchAny reports whether id matches any of patterns.
func MatchAny(patterns []string, id string) bool {
	for _, p := range patterns {
		if Match(p, id) {
			return true
		}
	}
	return false
}
