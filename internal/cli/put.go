package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdejongh/backup2ftp/internal/platform"
	"github.com/sdejongh/backup2ftp/pkg/output"
	"github.com/sdejongh/backup2ftp/pkg/policy"
	"github.com/sdejongh/backup2ftp/pkg/remote"
)

// PutFlags holds put command flags
type PutFlags struct {
	Remote  RemoteFlags
	Replace string
	DryRun  bool
}

var putFlags PutFlags

// NewPutCommand creates the put command
func NewPutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put LOCAL [REMOTE]",
		Short: "Upload a single file",
		Long: `Upload one local file. REMOTE is a file path, or a directory when it ends
with "/". Without REMOTE the local path is reused on the server.
Missing remote directories are created.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runPut,
	}

	addRemoteFlags(cmd, &putFlags.Remote)
	cmd.Flags().StringVarP(&putFlags.Replace, "replace", "r", "", "replace policy: never, always, if-local-larger, if-local-smaller (or 0-3)")
	cmd.Flags().BoolVar(&putFlags.DryRun, "dry-run", false, "print the decision without uploading")

	return cmd
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	localPath := args[0]
	if err := platform.ValidatePath(localPath); err != nil {
		return err
	}
	remotePath := platform.RemotePath(localPath)
	if len(args) == 2 {
		remotePath = args[1]
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyRemoteFlags(cmd, &putFlags.Remote, cfg)
	if putFlags.Replace != "" {
		cfg.Backup.Replace = putFlags.Replace
	}
	applyGlobalFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	mode, err := policy.ParseReplaceMode(cfg.Backup.Replace)
	if err != nil {
		return err
	}

	logger, err := createLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	var opts []remote.Option
	if cfg.Output.Progress && !cfg.Output.Quiet {
		progress := output.NewProgressObserver(cmd.ErrOrStderr(), false)
		if progress.Enabled() {
			opts = append(opts, remote.WithObserver(progress))
		}
	}

	session, err := connect(ctx, cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer session.Close()

	out := cmd.OutOrStdout()
	if putFlags.DryRun {
		decision, target, err := session.Plan(ctx, localPath, remotePath, mode)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", decision, target)
		return nil
	}

	decision, err := session.StoreFile(ctx, localPath, remotePath, mode)
	if err != nil {
		return err
	}
	if !cfg.Output.Quiet {
		target := remote.NormalizeRemotePath(localPath, remotePath)
		fmt.Fprintf(out, "%s %s\n", decision, target)
	}
	return nil
}
