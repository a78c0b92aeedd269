package output

import (
	"fmt"
	"io"
	"time"

	"github.com/sdejongh/backup2ftp/pkg/models"
	"github.com/sdejongh/backup2ftp/pkg/policy"
)

// HumanFormatter formats output in human-readable format
type HumanFormatter struct {
	writer    io.Writer
	total     int
	startTime time.Time
}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter() *HumanFormatter {
	return &HumanFormatter{}
}

// Start initializes the formatter
func (f *HumanFormatter) Start(writer io.Writer, host string, totalCandidates int) error {
	f.writer = writer
	f.total = totalCandidates
	f.startTime = time.Now()

	if writer != nil {
		fmt.Fprintf(writer, "Starting backup to %s: %d directories\n", host, totalCandidates)
	}
	return nil
}

// Progress reports progress during the run
func (f *HumanFormatter) Progress(update ProgressUpdate) error {
	if f.writer == nil {
		return nil
	}

	prefix := fmt.Sprintf("[%d/%d]", update.Current, update.Total)
	if update.Total <= 0 {
		prefix = fmt.Sprintf("[%d]", update.Current)
	}

	switch update.Type {
	case UpdateItemStart:
		fmt.Fprintf(f.writer, "%s Uploading %s -> %s (%s)...\n",
			prefix, update.LocalPath, update.RemotePath, formatBytes(update.Bytes))

	case UpdateItemComplete:
		verb := decisionVerb(update.Decision, update.DryRun)
		fmt.Fprintf(f.writer, "%s ✓ %s %s (%s)\n",
			prefix, verb, update.RemotePath, formatBytes(update.Bytes))

	case UpdateItemError:
		target := update.RemotePath
		if target == "" {
			target = update.SourceDir
		}
		fmt.Fprintf(f.writer, "%s ✗ %s: %v\n", prefix, target, update.Error)
	}

	return nil
}

// Complete finalizes output and displays summary
func (f *HumanFormatter) Complete(report *models.RunReport) error {
	if f.writer == nil {
		f.writer = io.Discard
	}

	title := "Backup"
	if report.DryRun {
		title = "Dry run"
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "%s completed in %s\n", title, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Summary:\n")
	fmt.Fprintf(f.writer, "  Candidates:     %d (%d attempted)\n", report.Stats.Candidates, report.Stats.Attempted)
	fmt.Fprintf(f.writer, "  Uploaded:       %d\n", report.Stats.Uploaded)
	fmt.Fprintf(f.writer, "  Replaced:       %d\n", report.Stats.Replaced)
	fmt.Fprintf(f.writer, "  Skipped:        %d\n", report.Stats.Skipped)
	fmt.Fprintf(f.writer, "  Failed:         %d\n", report.Stats.Failed)
	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "  Transfer:\n")
	fmt.Fprintf(f.writer, "    Data:           %s\n", formatBytes(report.Stats.BytesTransferred))

	if report.Duration.Seconds() > 0 && report.Stats.BytesTransferred > 0 {
		avgSpeed := float64(report.Stats.BytesTransferred) / report.Duration.Seconds()
		fmt.Fprintf(f.writer, "    Average speed:  %s/s\n", formatBytes(int64(avgSpeed)))
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Status: %s\n", report.Status)

	if len(report.Errors) > 0 {
		fmt.Fprintf(f.writer, "\nErrors:\n")
		for _, err := range report.Errors {
			fmt.Fprintf(f.writer, "  %s: %s\n", err.FilePath, err.Error)
		}
	}

	return nil
}

// Error reports an error
func (f *HumanFormatter) Error(err error) error {
	if f.writer != nil {
		fmt.Fprintf(f.writer, "Error: %v\n", err)
	}
	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}

func decisionVerb(d policy.Decision, dryRun bool) string {
	switch {
	case d == policy.DecisionNew && dryRun:
		return "would upload"
	case d == policy.DecisionNew:
		return "uploaded"
	case d == policy.DecisionSkip && dryRun:
		return "would keep"
	case d == policy.DecisionSkip:
		return "kept"
	case d.Replaces() && dryRun:
		return "would replace"
	case d.Replaces():
		return "replaced"
	default:
		return string(d)
	}
}

// formatBytes formats bytes in human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatBytes is the exported form of formatBytes for CLI listings
func FormatBytes(bytes int64) string {
	return formatBytes(bytes)
}
