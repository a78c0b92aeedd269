package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdejongh/backup2ftp/pkg/journal"
	"github.com/sdejongh/backup2ftp/pkg/output"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent backup runs",
		Long:  `List the most recent runs recorded in the journal, newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			path, err := configPath()
			if err != nil {
				return err
			}

			j, err := journal.Open(cfg.JournalPath(path))
			if err != nil {
				return err
			}
			defer j.Close()

			reports, err := j.Recent(limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(reports)
			case "human":
			default:
				return fmt.Errorf("unknown output format: %s (valid: human, json)", format)
			}

			if len(reports) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tRUN\tHOST\tSTATUS\tUPLOADED\tREPLACED\tSKIPPED\tFAILED\tDATA\tDURATION")
			for _, r := range reports {
				status := string(r.Status)
				if r.DryRun {
					status += " (dry run)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
					r.StartTime.Local().Format("2006-01-02 15:04:05"),
					shortID(r.RunID),
					r.Host,
					status,
					r.Stats.Uploaded,
					r.Stats.Replaced,
					r.Stats.Skipped,
					r.Stats.Failed,
					output.FormatBytes(r.Stats.BytesTransferred),
					r.Duration.Round(time.Millisecond),
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show (0 for all)")
	cmd.Flags().StringVarP(&format, "output", "o", "human", "output format: human, json")

	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
