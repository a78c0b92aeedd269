package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand assembles the backup2ftp command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "backup2ftp",
		Short: "Back up local directories to an FTP server",
		Long: `backup2ftp bundles the files of each directory of a local tree into a
tar.gz archive and uploads the archives to an FTP server, keeping or
replacing existing remote copies according to a size-based policy.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	AddGlobalFlags(rootCmd)

	// Add commands
	rootCmd.AddCommand(NewBackupCommand())
	rootCmd.AddCommand(NewPutCommand())
	rootCmd.AddCommand(NewLsCommand())
	rootCmd.AddCommand(NewMkdirCommand())
	rootCmd.AddCommand(NewHistoryCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
