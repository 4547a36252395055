package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andywolf/sprintwatch/internal/reports"
)

var runCmd = &cobra.Command{
	Use:   "run [report...]",
	Short: "Run several reports in one invocation",
	Long: `Run the named reports in order, or every report when none are named.
The first failing report stops the run.

Example:
  sprintwatch run
  sprintwatch run slipped-by-epic epic-map sprint-changes`,
	RunE: runReports,
}

func init() {
	for _, r := range reports.All() {
		rootCmd.AddCommand(reportCommand(r))
	}

	rootCmd.AddCommand(runCmd)
}

// reportCommand builds the cobra command for a single report.
func reportCommand(r reports.Report) *cobra.Command {
	return &cobra.Command{
		Use:   r.Name,
		Short: r.Short,
		Long:  r.Long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeReports(cmd, []reports.Report{r})
		},
	}
}

func runReports(cmd *cobra.Command, args []string) error {
	selected, err := selectReports(args)
	if err != nil {
		return err
	}
	return executeReports(cmd, selected)
}

// selectReports resolves report names, defaulting to all of them.
func selectReports(names []string) ([]reports.Report, error) {
	if len(names) == 0 {
		return reports.All(), nil
	}

	selected := make([]reports.Report, 0, len(names))
	for _, name := range names {
		r, ok := reports.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown report %q (valid: %s)", name, strings.Join(reportNames(), ", "))
		}
		selected = append(selected, r)
	}
	return selected, nil
}

func reportNames() []string {
	all := reports.All()
	names := make([]string, len(all))
	for i, r := range all {
		names[i] = r.Name
	}
	return names
}

func executeReports(cmd *cobra.Command, selected []reports.Report) error {
	ctx, cancel := signalContext()
	defer cancel()

	requireProject := false
	for _, r := range selected {
		requireProject = requireProject || r.Project
	}

	publish := publishEnabled(cmd)
	a, err := newApp(ctx, requireProject, publish)
	if err != nil {
		return err
	}

	env, cleanup, err := a.reportEnv(ctx, publish)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, r := range selected {
		if err := env.Run(ctx, r); err != nil {
			return fmt.Errorf("%s: %w", r.Name, err)
		}
	}
	return nil
}
