package remote

import (
	"path"
	"strings"
)

// splitPath returns the non-empty components of a remote path.
// Remote paths always use "/".
func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	components := parts[:0]
	for _, part := range parts {
		if part != "" {
			components = append(components, part)
		}
	}
	return components
}

// splitRemote splits p into its parent directory and base name. The parent
// is "" for a bare name, meaning the working directory.
func splitRemote(p string) (string, string) {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p
	}
	dir := p[:i]
	if dir == "" {
		dir = "/"
	}
	return dir, p[i+1:]
}

// NormalizeRemotePath resolves the upload target for localPath. Backslashes
// become "/", an empty target means the local name at the remote root, and a
// target ending in "/" names a directory that receives the local name.
func NormalizeRemotePath(localPath, remotePath string) string {
	base := path.Base(strings.ReplaceAll(localPath, "\\", "/"))

	remotePath = strings.ReplaceAll(remotePath, "\\", "/")
	switch {
	case remotePath == "":
		return "/" + base
	case strings.HasSuffix(remotePath, "/"):
		return remotePath + base
	default:
		return remotePath
	}
}
