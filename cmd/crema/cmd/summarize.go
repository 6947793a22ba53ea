package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/crema/pkg/writer/sqlite"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [database]",
	Short: "Summarize the runs stored in a crema SQLite database",
	Long:  `Print the number of target, decoy and accepted estimates per level for every run saved with --sqlite.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

func runSummarize(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("database does not exist: %s", path)
	}

	summaries, err := sqlite.ReadSummary(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	lastRun := ""
	for _, s := range summaries {
		if s.RunID != lastRun {
			if lastRun != "" {
				tw.Flush()
				fmt.Fprintln(out)
			}
			lastRun = s.RunID
			colorBold.Fprintf(out, "Run %s (%s)\n", s.RunID, s.CreatedAt)
			fmt.Fprintf(out, "Method: %s, score: %s, threshold: %s\n", s.Method, s.ScoreColumn, s.Threshold)
			fmt.Fprintln(tw, "LEVEL\tTARGETS\tDECOYS\tACCEPTED")
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", s.Level, s.Targets, s.Decoys, s.Accepted)
	}
	tw.Flush()
	return nil
}
