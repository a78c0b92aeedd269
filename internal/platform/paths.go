package platform

import (
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizePath normalizes a local path for the current platform
func NormalizePath(path string) string {
	// Convert to platform-specific separators
	normalized := filepath.Clean(path)

	// On Windows, ensure UNC paths are preserved
	if runtime.GOOS == "windows" {
		if strings.HasPrefix(path, "\\\\") && !strings.HasPrefix(normalized, "\\\\") {
			normalized = "\\\\" + normalized
		}
	}

	return normalized
}

// IsUNCPath checks if a path is a UNC path (Windows network share)
func IsUNCPath(path string) bool {
	return strings.HasPrefix(path, "\\\\")
}

// HasDriveLetter reports whether path starts with a Windows drive
// letter such as "C:"
func HasDriveLetter(path string) bool {
	if len(path) < 2 || path[1] != ':' {
		return false
	}
	c := path[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// RemotePath derives the remote target used when a single file is
// uploaded without an explicit destination: the local path itself with
// "/" separators. A drive letter or UNC prefix is dropped, which leaves
// the path relative to the login directory.
func RemotePath(localPath string) string {
	p := localPath
	switch {
	case HasDriveLetter(p):
		p = strings.TrimLeft(p[2:], "\\/")
	case IsUNCPath(p):
		p = strings.TrimLeft(p, "\\")
	}
	p = strings.ReplaceAll(p, "\\", "/")

	// Collapse duplicate separators without resolving ".." against the
	// remote side
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}

// ValidatePath checks if a local path is valid for the current platform
func ValidatePath(path string) error {
	if path == "" {
		return &PathError{Path: path, Message: "path is empty"}
	}

	// Check for invalid characters based on OS
	if runtime.GOOS == "windows" {
		rest := path
		if HasDriveLetter(rest) {
			rest = rest[2:]
		}
		invalidChars := []string{"<", ">", ":", "\"", "|", "?", "*"}
		for _, char := range invalidChars {
			if strings.Contains(rest, char) && !IsUNCPath(path) {
				return &PathError{Path: path, Message: "path contains invalid character: " + char}
			}
		}
	}

	return nil
}

// PathError represents a path validation error
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Message
}
