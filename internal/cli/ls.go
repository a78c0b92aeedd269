package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sdejongh/backup2ftp/pkg/models"
	"github.com/sdejongh/backup2ftp/pkg/output"
)

// LsFlags holds ls command flags
type LsFlags struct {
	Remote      RemoteFlags
	IgnoreEmpty bool
	Names       bool
}

var lsFlags LsFlags

// NewLsCommand creates the ls command
func NewLsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [PATH]",
		Short: "List a remote directory",
		Long:  `List PATH on the server, or the login directory when PATH is omitted. Directories are listed first.`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLs,
	}

	addRemoteFlags(cmd, &lsFlags.Remote)
	cmd.Flags().BoolVar(&lsFlags.IgnoreEmpty, "ignore-empty", false, "hide zero-size files")
	cmd.Flags().BoolVar(&lsFlags.Names, "names", false, "print names only")

	return cmd
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyRemoteFlags(cmd, &lsFlags.Remote, cfg)
	applyGlobalFlags(cfg)

	logger, err := createLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	session, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	var listing models.Listing
	if len(args) == 1 {
		listing, err = session.ListPath(ctx, args[0], lsFlags.IgnoreEmpty)
	} else {
		listing, err = session.List(ctx, lsFlags.IgnoreEmpty)
	}
	if err != nil {
		return err
	}

	if lsFlags.Names {
		for _, name := range listing.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}
	return printListing(cmd.OutOrStdout(), listing)
}

func printListing(w io.Writer, listing models.Listing) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, group := range [][]models.RemoteEntry{listing.Dirs, listing.Files} {
		for _, e := range group {
			name := e.Name
			size := output.FormatBytes(e.Size)
			if e.IsDir() {
				name += "/"
				size = "-"
			}
			modified := "-"
			if !e.ModTime.IsZero() {
				modified = e.ModTime.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Perm, size, modified, name)
		}
	}
	return tw.Flush()
}
