// Package archive turns a local directory tree into per-directory tar.gz
// bundles ready for upload.
package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// HardMaxDirs caps the number of directories a single walk visits
const HardMaxDirs = 1000

// Source is a directory that directly contains files
type Source struct {
	// Dir is the local directory path
	Dir string
	// RelDir is Dir relative to the walk root, slash-separated ("" for the root)
	RelDir string
}

// DiscoverOptions controls the directory walk
type DiscoverOptions struct {
	// MaxDirs stops the walk after this many visited directories.
	// Zero or values above HardMaxDirs mean HardMaxDirs.
	MaxDirs int
	// Exclude patterns; matching directories are not descended
	Exclude []string
}

var errStopWalk = errors.New("stop walk")

// Discover walks root in lexical order and returns every visited directory
// that directly contains at least one regular file
func Discover(fs afero.Fs, root string, opts DiscoverOptions) ([]Source, error) {
	info, err := fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source is not a directory: %s", root)
	}

	limit := opts.MaxDirs
	if limit <= 0 || limit > HardMaxDirs {
		limit = HardMaxDirs
	}

	var sources []Source
	visited := 0

	err = afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			// Unreadable entries below the root are skipped
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			rel = ""
		}

		if shouldExclude(rel, opts.Exclude) {
			return filepath.SkipDir
		}

		if visited >= limit {
			return errStopWalk
		}
		visited++

		has, err := hasRegularFile(fs, p)
		if err != nil {
			return filepath.SkipDir
		}
		if has {
			sources = append(sources, Source{Dir: p, RelDir: rel})
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		return nil, fmt.Errorf("failed to walk source: %w", err)
	}

	return sources, nil
}

func hasRegularFile(fs afero.Fs, dir string) (bool, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Mode().IsRegular() {
			return true, nil
		}
	}
	return false, nil
}
