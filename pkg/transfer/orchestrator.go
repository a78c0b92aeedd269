package transfer

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/sdejongh/backup2ftp/pkg/logging"
	"github.com/sdejongh/backup2ftp/pkg/models"
	"github.com/sdejongh/backup2ftp/pkg/output"
	"github.com/sdejongh/backup2ftp/pkg/policy"
	"github.com/sdejongh/backup2ftp/pkg/remote"
)

// Uploader is the part of a remote session the orchestrator needs
type Uploader interface {
	StoreFile(ctx context.Context, localPath, remotePath string, mode policy.ReplaceMode) (policy.Decision, error)
	Plan(ctx context.Context, localPath, remotePath string, mode policy.ReplaceMode) (policy.Decision, string, error)
}

// Options configures an Orchestrator
type Options struct {
	// RunID identifies the run (a new UUID when empty)
	RunID      string
	Mode       policy.ReplaceMode
	Host       string
	RemoteRoot string
	DryRun     bool

	Logger    logging.Logger
	Formatter output.Formatter
	// Output receives formatter output (stdout when nil)
	Output io.Writer
	// Fs is used to size candidates (OS filesystem when nil)
	Fs afero.Fs

	// OnSuccess is called after each candidate that did not fail,
	// including skipped ones
	OnSuccess func(Candidate)
}

// Orchestrator uploads candidates sequentially over one session
type Orchestrator struct {
	uploader Uploader
	opts     Options
	logger   logging.Logger
	fs       afero.Fs
}

// NewOrchestrator creates an orchestrator around uploader
func NewOrchestrator(uploader Uploader, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Mode == "" {
		opts.Mode = policy.ReplaceNever
	}

	return &Orchestrator{
		uploader: uploader,
		opts:     opts,
		logger:   logger.WithFields(logging.Fields{"component": "transfer"}),
		fs:       fs,
	}
}

// Run processes every candidate of src and returns the run report.
// A failed candidate is recorded and the run continues. Cancelling ctx
// stops the run before the next candidate. A lost connection fails the
// run and leaves the remaining candidates unattempted.
func (o *Orchestrator) Run(ctx context.Context, src Source) *models.RunReport {
	runID := o.opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	report := &models.RunReport{
		RunID:      runID,
		Host:       o.opts.Host,
		RemoteRoot: o.opts.RemoteRoot,
		DryRun:     o.opts.DryRun,
		StartTime:  time.Now(),
		Status:     models.StatusSuccess,
	}

	expected := src.Len()
	report.Stats.Candidates = expected

	o.logger.Info(ctx, "Starting backup run", logging.Fields{
		"run_id":     report.RunID,
		"host":       o.opts.Host,
		"candidates": expected,
		"mode":       string(o.opts.Mode),
		"dry_run":    o.opts.DryRun,
	})

	if o.opts.Formatter != nil {
		o.opts.Formatter.Start(o.opts.Output, o.opts.Host, expected)
	}

	cancelled, aborted := false, false
	pulled := 0
	for {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		c, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			// a source that cannot continue fails the rest of the run
			o.logger.Error(ctx, "Candidate source failed", err, nil)
			o.recordError(report, "", "source", err)
			if o.opts.Formatter != nil {
				o.opts.Formatter.Error(err)
			}
			report.Stats.Failed++
			break
		}

		pulled++
		report.Stats.Attempted++
		if err := o.process(ctx, report, c, pulled, expected); err != nil {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			o.logger.Error(ctx, "Connection lost, stopping run", err, logging.Fields{
				"attempted":  report.Stats.Attempted,
				"candidates": expected,
			})
			aborted = true
			break
		}
	}

	// an exhausted source knows its real size; a stopped run keeps the
	// expected count so the unattempted candidates remain visible
	if !(cancelled || aborted) || pulled > report.Stats.Candidates {
		report.Stats.Candidates = pulled
	}

	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)
	report.Status = runStatus(report.Stats, cancelled, aborted)

	if o.opts.Formatter != nil {
		o.opts.Formatter.Complete(report)
	}

	o.logger.Info(ctx, "Backup run completed", logging.Fields{
		"run_id":            report.RunID,
		"duration":          report.Duration.String(),
		"status":            string(report.Status),
		"attempted":         report.Stats.Attempted,
		"uploaded":          report.Stats.Uploaded,
		"replaced":          report.Stats.Replaced,
		"skipped":           report.Stats.Skipped,
		"failed":            report.Stats.Failed,
		"bytes_transferred": report.Stats.BytesTransferred,
	})

	return report
}

// process handles one candidate. It returns the *remote.ConnectionError
// that makes continuing pointless, nil otherwise.
func (o *Orchestrator) process(ctx context.Context, report *models.RunReport, c Candidate, current, total int) error {
	start := time.Now()
	item := models.ItemResult{
		LocalPath:  c.LocalPath,
		SourceDir:  c.SourceDir,
		RemotePath: remote.NormalizeRemotePath(c.LocalPath, c.RemoteDir),
	}

	fail := func(op string, err error) {
		item.Decision = policy.DecisionFail
		item.Error = err.Error()
		item.Duration = time.Since(start)
		report.Items = append(report.Items, item)
		report.Stats.Failed++

		path := c.LocalPath
		if path == "" {
			path = c.SourceDir
		}
		o.recordError(report, path, op, err)
		o.logger.Warn(ctx, "Candidate failed", logging.Fields{
			"op":         op,
			"local_path": c.LocalPath,
			"source_dir": c.SourceDir,
			"error":      err.Error(),
		})
		o.progress(output.ProgressUpdate{
			Type:       output.UpdateItemError,
			LocalPath:  c.LocalPath,
			RemotePath: item.RemotePath,
			SourceDir:  c.SourceDir,
			Current:    current,
			Total:      total,
			DryRun:     o.opts.DryRun,
			Error:      err,
		})
	}

	if c.Err != nil {
		item.RemotePath = ""
		fail("archive", c.Err)
		return nil
	}

	if info, err := o.fs.Stat(c.LocalPath); err == nil {
		item.Size = info.Size()
	}

	o.progress(output.ProgressUpdate{
		Type:       output.UpdateItemStart,
		LocalPath:  c.LocalPath,
		RemotePath: item.RemotePath,
		SourceDir:  c.SourceDir,
		Bytes:      item.Size,
		Current:    current,
		Total:      total,
		DryRun:     o.opts.DryRun,
	})

	var decision policy.Decision
	var err error
	if o.opts.DryRun {
		var target string
		decision, target, err = o.uploader.Plan(ctx, c.LocalPath, c.RemoteDir, o.opts.Mode)
		if target != "" {
			item.RemotePath = target
		}
	} else {
		decision, err = o.uploader.StoreFile(ctx, c.LocalPath, c.RemoteDir, o.opts.Mode)
	}
	if err != nil {
		op := "upload"
		if o.opts.DryRun {
			op = "plan"
		}
		fail(op, err)

		var connErr *remote.ConnectionError
		if errors.As(err, &connErr) {
			return connErr
		}
		return nil
	}

	item.Decision = decision
	item.Duration = time.Since(start)
	report.Items = append(report.Items, item)

	switch {
	case decision == policy.DecisionNew:
		report.Stats.Uploaded++
	case decision.Replaces():
		report.Stats.Replaced++
	default:
		report.Stats.Skipped++
	}
	if decision.Proceed() && !o.opts.DryRun {
		report.Stats.BytesTransferred += item.Size
	}

	o.logger.Debug(ctx, "Candidate done", logging.Fields{
		"local_path":  c.LocalPath,
		"remote_path": item.RemotePath,
		"decision":    string(decision),
		"size":        item.Size,
	})
	o.progress(output.ProgressUpdate{
		Type:       output.UpdateItemComplete,
		LocalPath:  c.LocalPath,
		RemotePath: item.RemotePath,
		SourceDir:  c.SourceDir,
		Decision:   decision,
		Bytes:      item.Size,
		Current:    current,
		Total:      total,
		DryRun:     o.opts.DryRun,
	})

	if o.opts.OnSuccess != nil {
		o.opts.OnSuccess(c)
	}
	return nil
}

func (o *Orchestrator) progress(update output.ProgressUpdate) {
	if o.opts.Formatter != nil {
		o.opts.Formatter.Progress(update)
	}
}

func (o *Orchestrator) recordError(report *models.RunReport, path, op string, err error) {
	report.Errors = append(report.Errors, models.RunError{
		FilePath:  path,
		Operation: op,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
}

// runStatus derives the overall status from the counters
func runStatus(stats models.Statistics, cancelled, aborted bool) models.RunStatus {
	switch {
	case cancelled:
		return models.StatusCancelled
	case aborted:
		return models.StatusFailed
	case stats.Failed == 0:
		return models.StatusSuccess
	case stats.Succeeded() == 0:
		return models.StatusFailed
	default:
		return models.StatusPartial
	}
}
