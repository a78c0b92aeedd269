package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sdejongh/backup2ftp/pkg/archive"
	"github.com/sdejongh/backup2ftp/pkg/config"
	"github.com/sdejongh/backup2ftp/pkg/journal"
	"github.com/sdejongh/backup2ftp/pkg/logging"
	"github.com/sdejongh/backup2ftp/pkg/metrics"
	"github.com/sdejongh/backup2ftp/pkg/models"
	"github.com/sdejongh/backup2ftp/pkg/output"
	"github.com/sdejongh/backup2ftp/pkg/ratelimit"
	"github.com/sdejongh/backup2ftp/pkg/remote"
	"github.com/sdejongh/backup2ftp/pkg/transfer"
)

// BackupFlags holds backup command flags
type BackupFlags struct {
	Remote       RemoteFlags
	Source       string
	CacheDir     string
	Pattern      string
	Exclude      []string
	MaxDirs      int
	Replace      string
	DryRun       bool
	KeepArchives bool
	Bandwidth    string
	Output       string
	NoJournal    bool
	Metrics      string
	// Logging flags
	LogFile   string
	LogFormat string
	LogLevel  string
}

var backupFlags BackupFlags

// NewBackupCommand creates the backup command
func NewBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive a directory tree and upload it to an FTP server",
		Long: `Walk the source tree, bundle the files of each directory into a tar.gz
archive and upload every archive to the matching directory under the remote
root. Existing remote archives are kept or replaced according to --replace.`,
		RunE: runBackup,
	}

	addRemoteFlags(cmd, &backupFlags.Remote)

	cmd.Flags().StringVarP(&backupFlags.Source, "source", "s", "", "local directory to back up")
	cmd.Flags().StringVar(&backupFlags.CacheDir, "cache-dir", "", "directory receiving the archives before upload")
	cmd.Flags().StringVar(&backupFlags.Pattern, "pattern", "", "glob selecting the files to archive (default: all)")
	cmd.Flags().StringSliceVar(&backupFlags.Exclude, "exclude", []string{}, "glob patterns to exclude")
	cmd.Flags().IntVar(&backupFlags.MaxDirs, "max-dirs", 0, "maximum number of directories to visit")
	cmd.Flags().StringVarP(&backupFlags.Replace, "replace", "r", "", "replace policy: never, always, if-local-larger, if-local-smaller (or 0-3)")
	cmd.Flags().BoolVar(&backupFlags.DryRun, "dry-run", false, "decide every upload without transferring anything")
	cmd.Flags().BoolVar(&backupFlags.KeepArchives, "keep-archives", false, "keep local archives after a successful upload")
	cmd.Flags().StringVarP(&backupFlags.Bandwidth, "bandwidth", "b", "", "bandwidth limit (e.g., \"512K\", \"10M\")")
	cmd.Flags().StringVarP(&backupFlags.Output, "output", "o", "", "output format: human, json")
	cmd.Flags().BoolVar(&backupFlags.NoJournal, "no-journal", false, "do not record the run in the history journal")
	cmd.Flags().StringVar(&backupFlags.Metrics, "metrics-textfile", "", "write run metrics to this Prometheus textfile")

	// Logging flags
	cmd.Flags().StringVar(&backupFlags.LogFile, "log-file", "", "write logs to file (enables logging)")
	cmd.Flags().StringVar(&backupFlags.LogFormat, "log-format", "", "log format: text, json")
	cmd.Flags().StringVar(&backupFlags.LogLevel, "log-level", "", "log level: debug, info, warn, error")

	return cmd
}

func runBackup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with command-line flags
	if err := applyBackupFlags(cmd, cfg); err != nil {
		return err
	}

	op, err := cfg.Operation()
	if err != nil {
		return fmt.Errorf("failed to create backup operation: %w", err)
	}
	op.DryRun = backupFlags.DryRun

	logger, err := createLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	logger = logger.WithFields(logging.Fields{"run_id": op.ID})

	formatter, err := output.NewFormatter(cfg.Output.Format)
	if err != nil {
		return err
	}
	stdout := cmd.OutOrStdout()
	if cfg.Output.Quiet && formatter.Name() == "human" {
		stdout = io.Discard
	}

	producer, err := archive.NewProducer(localFs, op.SourcePath, archive.ProducerOptions{
		CacheDir:   op.CacheDir,
		RemoteRoot: op.RemoteRoot,
		Discover:   archive.DiscoverOptions{MaxDirs: op.MaxDirs, Exclude: op.Exclude},
		Build:      archive.BuildOptions{Pattern: op.Pattern, Exclude: op.Exclude},
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to scan source: %w", err)
	}

	var sessionOpts []remote.Option
	if op.Bandwidth > 0 {
		sessionOpts = append(sessionOpts, remote.WithLimiter(ratelimit.NewLimiter(op.Bandwidth)))
	}
	// Progress bars only make sense next to the human output
	if cfg.Output.Progress && !cfg.Output.Quiet && formatter.Name() == "human" {
		progress := output.NewProgressObserver(cmd.ErrOrStderr(), false)
		if progress.Enabled() {
			sessionOpts = append(sessionOpts, remote.WithObserver(progress))
		}
	}

	session, err := connect(ctx, cfg, logger, sessionOpts...)
	if err != nil {
		return err
	}
	defer session.Close()

	opts := transfer.Options{
		RunID:      op.ID,
		Mode:       op.ReplaceMode,
		Host:       op.Host,
		RemoteRoot: op.RemoteRoot,
		DryRun:     op.DryRun,
		Logger:     logger,
		Formatter:  formatter,
		Output:     stdout,
		Fs:         localFs,
	}
	if !op.KeepArchive {
		opts.OnSuccess = producer.Release
	}

	report := transfer.NewOrchestrator(session, opts).Run(ctx, producer)

	recordRun(ctx, cfg, logger, report)

	if code := report.Status.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// applyBackupFlags overrides config values with backup command flags
func applyBackupFlags(cmd *cobra.Command, cfg *config.Config) error {
	applyRemoteFlags(cmd, &backupFlags.Remote, cfg)

	if backupFlags.Source != "" {
		cfg.Backup.Source = backupFlags.Source
	}
	if backupFlags.CacheDir != "" {
		cfg.Backup.CacheDir = backupFlags.CacheDir
	}
	if backupFlags.Pattern != "" {
		cfg.Backup.Pattern = backupFlags.Pattern
	}
	if len(backupFlags.Exclude) > 0 {
		cfg.Backup.Exclude = backupFlags.Exclude
	}
	if backupFlags.MaxDirs > 0 {
		cfg.Backup.MaxDirs = backupFlags.MaxDirs
	}
	if backupFlags.Replace != "" {
		cfg.Backup.Replace = backupFlags.Replace
	}
	if backupFlags.KeepArchives {
		cfg.Backup.KeepArchives = true
	}
	if backupFlags.Bandwidth != "" {
		limit, err := parseBandwidth(backupFlags.Bandwidth)
		if err != nil {
			return err
		}
		cfg.Performance.BandwidthLimit = limit
	}
	if backupFlags.Output != "" {
		cfg.Output.Format = backupFlags.Output
	}
	if backupFlags.NoJournal {
		cfg.Journal.Enabled = false
	}
	if backupFlags.Metrics != "" {
		cfg.Metrics.Textfile = backupFlags.Metrics
	}

	// Logging: --log-file implies logging
	if backupFlags.LogFile != "" {
		cfg.Logging.Enabled = true
		cfg.Logging.File = backupFlags.LogFile
	}
	if backupFlags.LogFormat != "" {
		cfg.Logging.Format = backupFlags.LogFormat
	}
	if backupFlags.LogLevel != "" {
		cfg.Logging.Level = backupFlags.LogLevel
	}

	applyGlobalFlags(cfg)

	return cfg.Validate()
}

// recordRun stores the report in the journal and the metrics textfile.
// Neither failure changes the outcome of the run.
func recordRun(ctx context.Context, cfg *config.Config, logger logging.Logger, report *models.RunReport) {
	if cfg.Journal.Enabled {
		if err := writeJournal(cfg, report); err != nil {
			logger.Warn(ctx, "failed to record run", logging.Fields{"error": err.Error()})
		}
	}

	if cfg.Metrics.Textfile != "" {
		rec := metrics.NewRecorder()
		rec.Observe(report)
		if err := rec.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn(ctx, "failed to write metrics", logging.Fields{
				"path":  cfg.Metrics.Textfile,
				"error": err.Error(),
			})
		}
	}
}

func writeJournal(cfg *config.Config, report *models.RunReport) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	j, err := journal.Open(cfg.JournalPath(path))
	if err != nil {
		return err
	}
	defer j.Close()

	if err := j.Record(report); err != nil {
		return err
	}
	_, err = j.Prune(cfg.Journal.Keep)
	return err
}
