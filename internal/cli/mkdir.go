package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var mkdirFlags RemoteFlags

// NewMkdirCommand creates the mkdir command
func NewMkdirCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkdir PATH",
		Short: "Create a remote directory and its parents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			applyRemoteFlags(cmd, &mkdirFlags, cfg)
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

			if !session.EnsureDirectory(ctx, args[0]) {
				return fmt.Errorf("failed to create remote directory %s", args[0])
			}
			return nil
		},
	}

	addRemoteFlags(cmd, &mkdirFlags)

	return cmd
}
