package output

import (
	"fmt"
	"io"

	"github.com/sdejongh/backup2ftp/pkg/models"
	"github.com/sdejongh/backup2ftp/pkg/policy"
)

// Progress update types
const (
	UpdateItemStart    = "item_start"
	UpdateItemComplete = "item_complete"
	UpdateItemError    = "item_error"
)

// ProgressUpdate represents a progress notification during a backup run
type ProgressUpdate struct {
	Type       string
	LocalPath  string
	RemotePath string
	SourceDir  string
	Decision   policy.Decision
	Bytes      int64
	Current    int // 1-based position of the candidate
	Total      int // expected number of candidates, 0 if unknown
	DryRun     bool
	Error      error
}

// Formatter defines the interface for run output
// Implementations include human-readable and JSON formatters
type Formatter interface {
	// Start initializes the formatter for a new run against host
	Start(writer io.Writer, host string, totalCandidates int) error

	// Progress reports progress during the run
	Progress(update ProgressUpdate) error

	// Complete finalizes output and displays summary
	Complete(report *models.RunReport) error

	// Error reports an error outside of any candidate
	Error(err error) error

	// Name returns the formatter name
	Name() string
}

// NewFormatter returns the formatter registered under name
func NewFormatter(name string) (Formatter, error) {
	switch name {
	case "", "human":
		return NewHumanFormatter(), nil
	case "json":
		return NewJSONFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s (valid: human, json)", name)
	}
}
