package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/andywolf/sprintwatch/internal/config"
	"github.com/andywolf/sprintwatch/internal/events"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent report runs from the run journal",
	Long: `Show recent report runs recorded in sprintwatch-events.jsonl in the
output directory. The journal is written when events.file is enabled.

Examples:
  sprintwatch history
  sprintwatch history --report readiness --last 5
  sprintwatch history --type report.failed`,
	Args: cobra.NoArgs,
	RunE: showHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("report", "", "only runs of this report")
	historyCmd.Flags().String("type", "", "only events of this type (report.completed, report.failed)")
	historyCmd.Flags().Int("last", 20, "number of runs to show (0 for all)")
}

func showHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	q := events.Query{}
	q.Report, _ = cmd.Flags().GetString("report")
	q.Last, _ = cmd.Flags().GetInt("last")
	if typ, _ := cmd.Flags().GetString("type"); typ != "" {
		if !events.IsValidEventType(typ) {
			return fmt.Errorf("invalid event type %q", typ)
		}
		q.Types = []events.EventType{events.EventType(typ)}
	}

	runs, err := events.ReadJournal(filepath.Join(cfg.Output.Dir, events.JournalFilename), q)
	if err != nil {
		return err
	}
	printHistory(cmd.OutOrStdout(), runs)
	return nil
}

func printHistory(w io.Writer, runs []events.ReportEvent) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No report runs recorded.")
		return
	}

	fmt.Fprintf(w, "%-20s %-16s %-10s %6s %9s %-9s %s\n", "TIME", "REPORT", "STATUS", "ROWS", "DURATION", "PUBLISHED", "RUN")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, r := range runs {
		status := "ok"
		if r.Type == events.EventFailed {
			status = "failed"
		}
		fmt.Fprintf(w, "%-20s %-16s %-10s %6d %9s %-9t %s\n",
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.Report,
			status,
			r.Rows,
			(time.Duration(r.DurationMS) * time.Millisecond).String(),
			r.Published,
			r.RunID,
		)
		if r.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", r.Error)
		}
	}
}
