// Package transfer drives a backup run: it pulls upload candidates from a
// source, hands each one to the remote session and aggregates the outcome.
package transfer

import (
	"context"
	"io"
)

// Candidate is one local file to upload into a remote directory
type Candidate struct {
	// LocalPath is the file to upload
	LocalPath string
	// RemoteDir is the target directory; a trailing "/" keeps the local name
	RemoteDir string
	// SourceDir is the directory the candidate was produced from
	SourceDir string
	// Err is set when the producer failed to build the candidate
	Err error
}

// Source yields candidates one at a time.
// Next returns io.EOF once the source is exhausted.
type Source interface {
	Next(ctx context.Context) (Candidate, error)
	// Len is the expected number of candidates, an upper bound when the
	// source may drop some
	Len() int
}

// SliceSource serves a fixed list of candidates
type SliceSource struct {
	items []Candidate
	pos   int
}

// NewSliceSource creates a source over items
func NewSliceSource(items ...Candidate) *SliceSource {
	return &SliceSource{items: items}
}

// Next returns the next candidate
func (s *SliceSource) Next(ctx context.Context) (Candidate, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}
	if s.pos >= len(s.items) {
		return Candidate{}, io.EOF
	}
	c := s.items[s.pos]
	s.pos++
	return c, nil
}

// Len returns the number of candidates
func (s *SliceSource) Len() int {
	return len(s.items)
}
