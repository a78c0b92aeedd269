package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"

	"github.com/sdejongh/backup2ftp/pkg/logging"
	"github.com/sdejongh/backup2ftp/pkg/transfer"
)

// ProducerOptions configures a Producer
type ProducerOptions struct {
	// CacheDir receives the archives
	CacheDir string
	// RemoteRoot is prefixed to each source's relative directory
	RemoteRoot string
	Discover   DiscoverOptions
	Build      BuildOptions
	Logger     logging.Logger
}

// Producer yields one upload candidate per source directory. Archives
// are built lazily in Next, so the cache only holds the bundles that have
// not been released yet.
type Producer struct {
	fs      afero.Fs
	opts    ProducerOptions
	logger  logging.Logger
	sources []Source
	pos     int
	skipped int
}

// NewProducer discovers the source directories under root
func NewProducer(fs afero.Fs, root string, opts ProducerOptions) (*Producer, error) {
	if opts.CacheDir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	sources, err := Discover(fs, root, opts.Discover)
	if err != nil {
		return nil, err
	}

	return &Producer{
		fs:      fs,
		opts:    opts,
		logger:  logger.WithFields(logging.Fields{"component": "archive"}),
		sources: sources,
	}, nil
}

// Next builds the archive of the next source directory. Directories with
// no matching file are skipped. A build failure is returned inside the
// candidate so the run can record it and go on.
func (p *Producer) Next(ctx context.Context) (transfer.Candidate, error) {
	for p.pos < len(p.sources) {
		if err := ctx.Err(); err != nil {
			return transfer.Candidate{}, err
		}

		src := p.sources[p.pos]
		p.pos++

		c := transfer.Candidate{
			SourceDir: src.Dir,
			RemoteDir: RemoteDir(p.opts.RemoteRoot, src.RelDir),
		}

		archivePath, count, err := Build(p.fs, src, p.opts.CacheDir, p.opts.Build)
		if errors.Is(err, ErrNoFiles) {
			p.skipped++
			p.logger.Debug(ctx, "no matching files", logging.Fields{"source_dir": src.Dir})
			continue
		}
		if err != nil {
			c.Err = err
			return c, nil
		}

		p.logger.Debug(ctx, "archive built", logging.Fields{
			"source_dir": src.Dir,
			"archive":    archivePath,
			"files":      count,
		})
		c.LocalPath = archivePath
		return c, nil
	}
	return transfer.Candidate{}, io.EOF
}

// Len returns the number of discovered directories; directories without
// matching files are dropped later, so this is an upper bound
func (p *Producer) Len() int {
	return len(p.sources)
}

// Skipped returns how many directories had no matching file so far
func (p *Producer) Skipped() int {
	return p.skipped
}

// Release deletes the archive of an uploaded candidate
func (p *Producer) Release(c transfer.Candidate) {
	if c.LocalPath == "" {
		return
	}
	if err := Cleanup(p.fs, c.LocalPath); err != nil {
		p.logger.Warn(context.Background(), "failed to remove archive", logging.Fields{
			"archive": c.LocalPath,
			"error":   err.Error(),
		})
	}
}

// RemoteDir returns the remote directory for a source: the slash-joined
// remote root and relative directory, with a trailing "/"
func RemoteDir(remoteRoot, relDir string) string {
	dir := path.Join(remoteRoot, relDir)
	if dir == "/" {
		return dir
	}
	return dir + "/"
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
