package archive

import (
	"path"
	"path/filepath"
	"strings"
)

// shouldExclude reports whether relativePath matches one of patterns.
// relativePath is slash-separated and relative to the backup source.
// Patterns support:
//   - Simple glob patterns matched against the base name: *.tmp, *.log
//   - Directory patterns: .git/, node_modules/
//   - Path patterns: build/*, **/cache
func shouldExclude(relativePath string, patterns []string) bool {
	if len(patterns) == 0 || relativePath == "" {
		return false
	}

	normalizedPath := filepath.ToSlash(relativePath)
	baseName := path.Base(normalizedPath)

	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		normalizedPattern := filepath.ToSlash(pattern)

		if strings.HasSuffix(normalizedPattern, "/") {
			dirPattern := strings.TrimSuffix(normalizedPattern, "/")
			if normalizedPath == dirPattern ||
				strings.HasPrefix(normalizedPath, dirPattern+"/") ||
				strings.Contains(normalizedPath, "/"+dirPattern+"/") ||
				strings.HasSuffix(normalizedPath, "/"+dirPattern) ||
				matchGlob(baseName, dirPattern) {
				return true
			}
			continue
		}

		// **/suffix matches suffix at any depth
		if strings.HasPrefix(normalizedPattern, "**/") {
			suffix := strings.TrimPrefix(normalizedPattern, "**/")
			if matchGlob(baseName, suffix) ||
				normalizedPath == suffix ||
				strings.HasSuffix(normalizedPath, "/"+suffix) ||
				matchAnyComponent(normalizedPath, suffix) {
				return true
			}
			continue
		}

		if strings.Contains(normalizedPattern, "/") {
			if matched, _ := path.Match(normalizedPattern, normalizedPath); matched {
				return true
			}
			if strings.HasSuffix(normalizedPath, "/"+normalizedPattern) {
				return true
			}
			continue
		}

		if matchGlob(baseName, normalizedPattern) {
			return true
		}
	}

	return false
}

func matchGlob(name, pattern string) bool {
	matched, _ := path.Match(pattern, name)
	return matched
}

// matchAnyComponent reports whether any component of p matches pattern
func matchAnyComponent(p, pattern string) bool {
	for _, part := range strings.Split(p, "/") {
		if matchGlob(part, pattern) {
			return true
		}
	}
	return false
}
