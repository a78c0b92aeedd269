package models

import (
	"time"

	"github.com/sdejongh/backup2ftp/pkg/policy"
)

// RunReport represents the results of a backup run
type RunReport struct {
	// Run details
	RunID      string
	Host       string
	RemoteRoot string
	DryRun     bool

	// Timing
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Statistics
	Stats Statistics

	// Per-candidate outcomes, in processing order
	Items []ItemResult

	// Errors encountered
	Errors []RunError

	// Overall status
	Status RunStatus
}

// Statistics holds backup run counters
type Statistics struct {
	Candidates       int // Candidates handed to the orchestrator
	Attempted        int // Candidates processed before completion or cancellation
	Uploaded         int // New remote files
	Replaced         int // Existing remote files overwritten
	Skipped          int // Remote file kept by the replace policy
	Failed           int
	BytesTransferred int64
}

// Succeeded returns the number of candidates that did not fail
func (s Statistics) Succeeded() int {
	return s.Uploaded + s.Replaced + s.Skipped
}

// ItemResult is the outcome for one candidate
type ItemResult struct {
	LocalPath  string
	RemotePath string
	SourceDir  string
	Size       int64
	Decision   policy.Decision
	Error      string
	Duration   time.Duration
}

// Failed reports whether the candidate failed
func (r ItemResult) Failed() bool {
	return r.Error != ""
}

// RunStatus represents the overall result
type RunStatus string

const (
	// StatusSuccess indicates all candidates completed successfully
	StatusSuccess RunStatus = "success"
	// StatusPartial indicates some candidates failed
	StatusPartial RunStatus = "partial"
	// StatusFailed indicates the run failed
	StatusFailed RunStatus = "failed"
	// StatusCancelled indicates the run was cancelled
	StatusCancelled RunStatus = "cancelled"
)

// RunError represents an error during a run
type RunError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// ExitCode returns the appropriate exit code for the run status
func (s RunStatus) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartial:
		return 1
	case StatusFailed:
		return 2
	case StatusCancelled:
		return 3
	default:
		return 2
	}
}
