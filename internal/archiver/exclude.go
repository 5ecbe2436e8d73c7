package archiver

import "path/filepath"

// RejectFunc reports whether a path (relative to a walk's starting point)
// should be skipped entirely, itself and everything beneath it.
type RejectFunc func(relPath string) bool

// RejectByPattern returns a RejectFunc that rejects any path whose base
// name matches one of patterns, using filepath.Match semantics.
func RejectByPattern(patterns []string) RejectFunc {
	if len(patterns) == 0 {
		return func(string) bool { return false }
	}
	return func(relPath string) bool {
		base := filepath.Base(relPath)
		for _, pat := range patterns {
			if ok, _ := filepath.Match(pat, base); ok {
				return true
			}
		}
		return false
	}
}
