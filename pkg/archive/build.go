package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// ErrNoFiles is returned by Build when no file of the directory matches
var ErrNoFiles = errors.New("no matching files")

// DefaultPattern matches every file name
const DefaultPattern = "*"

// BuildOptions selects the files that go into an archive
type BuildOptions struct {
	// Pattern is a glob matched against file names (DefaultPattern when empty)
	Pattern string
	// Exclude patterns, matched against the path relative to the walk root
	Exclude []string
}

// ArchivePath returns where Build writes the archive of dir:
// cacheDir/<md5 of dir>/<base of dir>.tar.gz. Hashing the full path keeps
// directories with the same base name apart.
func ArchivePath(cacheDir, dir string) string {
	sum := md5.Sum([]byte(dir))
	base := filepath.Base(dir)
	if base == string(filepath.Separator) || base == "." {
		base = "root"
	}
	return filepath.Join(cacheDir, hex.EncodeToString(sum[:]), base+".tar.gz")
}

// Build archives the regular files directly inside src.Dir that match
// opts into a tar.gz under cacheDir. It returns the archive path and the
// number of files added. Subdirectories are not included; they get their
// own archive.
func Build(fs afero.Fs, src Source, cacheDir string, opts BuildOptions) (string, int, error) {
	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return "", 0, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	entries, err := afero.ReadDir(fs, src.Dir)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read directory: %w", err)
	}

	archivePath := ArchivePath(cacheDir, src.Dir)
	if err := fs.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create cache directory: %w", err)
	}

	out, err := fs.Create(archivePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create archive: %w", err)
	}

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	count := 0
	for _, info := range entries {
		if !info.Mode().IsRegular() {
			continue
		}
		if !matchGlob(info.Name(), pattern) {
			continue
		}
		if shouldExclude(path.Join(src.RelDir, info.Name()), opts.Exclude) {
			continue
		}

		if err := addFile(fs, tw, filepath.Join(src.Dir, info.Name()), info.Name()); err != nil {
			tw.Close()
			gz.Close()
			out.Close()
			Cleanup(fs, archivePath)
			return "", 0, err
		}
		count++
	}

	var result *multierror.Error
	result = multierror.Append(result, tw.Close(), gz.Close(), out.Close())
	if err := result.ErrorOrNil(); err != nil {
		Cleanup(fs, archivePath)
		return "", 0, fmt.Errorf("failed to finish archive: %w", err)
	}

	if count == 0 {
		Cleanup(fs, archivePath)
		return "", 0, ErrNoFiles
	}

	return archivePath, count, nil
}

func addFile(fs afero.Fs, tw *tar.Writer, filePath, name string) error {
	f, err := fs.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", filePath, err)
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", filePath, err)
	}
	hdr.Name = name

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", filePath, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to add %s: %w", filePath, err)
	}
	return nil
}

// Cleanup removes an archive and its per-directory cache folder
func Cleanup(fs afero.Fs, archivePath string) error {
	var result *multierror.Error
	if err := fs.Remove(archivePath); err != nil && !isNotExist(err) {
		result = multierror.Append(result, err)
	}
	if err := fs.Remove(filepath.Dir(archivePath)); err != nil && !isNotExist(err) {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
