package models

import (
	"strings"
	"time"
)

// RemoteEntry represents one line of a remote directory listing
type RemoteEntry struct {
	// Name is the entry name within its directory
	Name string

	// Size in bytes
	Size int64

	// ModTime is the modification time as reported by the server.
	// Listings without a year are resolved against the current year.
	ModTime time.Time

	// Perm is the raw permission string (e.g. "drwxr-xr-x")
	Perm string

	// Owner is the owning user as reported by a LIST line. It is empty
	// for entries parsed by the FTP client library, which does not
	// expose the owner column.
	Owner string
}

// IsDir reports whether the entry is a directory
func (e RemoteEntry) IsDir() bool {
	return strings.HasPrefix(e.Perm, "d")
}

// Listing is the content of one remote directory split by entry kind
type Listing struct {
	Dirs  []RemoteEntry
	Files []RemoteEntry
}

// Names returns the names of all entries, directories first
func (l Listing) Names() []string {
	names := make([]string, 0, len(l.Dirs)+len(l.Files))
	for _, d := range l.Dirs {
		names = append(names, d.Name)
	}
	for _, f := range l.Files {
		names = append(names, f.Name)
	}
	return names
}

// File returns the file entry with the given name
func (l Listing) File(name string) (RemoteEntry, bool) {
	for _, f := range l.Files {
		if f.Name == name {
			return f, true
		}
	}
	return RemoteEntry{}, false
}

// Contains reports whether any entry has exactly the given name
func (l Listing) Contains(name string) bool {
	for _, n := range l.Names() {
		if n == name {
			return true
		}
	}
	return false
}
