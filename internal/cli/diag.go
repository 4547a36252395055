package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andywolf/sprintwatch/internal/jira"
)

var jiraCmd = &cobra.Command{
	Use:   "jira",
	Short: "Inspect the Jira connection",
	Long: `Diagnostic commands for checking credentials, projects, statuses,
custom field IDs and JQL before running reports.

Examples:
  sprintwatch jira whoami
  sprintwatch jira fields --filter epic
  sprintwatch jira jql 'project = CLP AND "Epic Link" = CLP-1'`,
}

func init() {
	rootCmd.AddCommand(jiraCmd)

	jiraCmd.AddCommand(&cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated user",
		Args:  cobra.NoArgs,
		RunE: withTracker(func(ctx context.Context, cmd *cobra.Command, c *jira.Client, _ string, _ []string) error {
			return printWhoami(ctx, cmd.OutOrStdout(), c)
		}),
	})

	jiraCmd.AddCommand(&cobra.Command{
		Use:   "projects",
		Short: "List visible projects",
		Args:  cobra.NoArgs,
		RunE: withTracker(func(ctx context.Context, cmd *cobra.Command, c *jira.Client, _ string, _ []string) error {
			return printProjects(ctx, cmd.OutOrStdout(), c)
		}),
	})

	jiraCmd.AddCommand(&cobra.Command{
		Use:   "project [KEY]",
		Short: "Show one project (default: the configured project)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withTracker(func(ctx context.Context, cmd *cobra.Command, c *jira.Client, project string, args []string) error {
			return printProject(ctx, cmd.OutOrStdout(), c, projectArg(args, project))
		}),
	})

	jiraCmd.AddCommand(&cobra.Command{
		Use:   "statuses [KEY]",
		Short: "List statuses per issue type for a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: withTracker(func(ctx context.Context, cmd *cobra.Command, c *jira.Client, project string, args []string) error {
			return printStatuses(ctx, cmd.OutOrStdout(), c, projectArg(args, project))
		}),
	})

	fieldsCmd := &cobra.Command{
		Use:   "fields",
		Short: "List field IDs, optionally filtered by name",
		Args:  cobra.NoArgs,
		RunE: withTracker(func(ctx context.Context, cmd *cobra.Command, c *jira.Client, _ string, _ []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			return printFields(ctx, cmd.OutOrStdout(), c, filter)
		}),
	}
	fieldsCmd.Flags().String("filter", "", "case-insensitive substring of the field name (e.g. epic, sprint, story point)")
	jiraCmd.AddCommand(fieldsCmd)

	jiraCmd.AddCommand(&cobra.Command{
		Use:   "jql JQL",
		Short: "Check a JQL query and print the raw response",
		Args:  cobra.ExactArgs(1),
		RunE: withTracker(func(ctx context.Context, cmd *cobra.Command, c *jira.Client, _ string, args []string) error {
			return printJQL(ctx, cmd.OutOrStdout(), c, args[0])
		}),
	})
}

type trackerFunc func(ctx context.Context, cmd *cobra.Command, c *jira.Client, project string, args []string) error

// withTracker loads configuration and hands a ready client to fn.
func withTracker(fn trackerFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, false, false)
		if err != nil {
			return err
		}
		defer func() { _ = a.logger.Sync() }()

		return fn(ctx, cmd, a.tracker, a.cfg.Jira.ProjectKey, args)
	}
}

func projectArg(args []string, fallback string) string {
	if len(args) > 0 {
		return args[0]
	}
	return fallback
}

func printWhoami(ctx context.Context, w io.Writer, c *jira.Client) error {
	u, err := c.Myself(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch current user: %w", err)
	}

	fmt.Fprintf(w, "Name:       %s\n", u.DisplayName)
	fmt.Fprintf(w, "Email:      %s\n", u.EmailAddress)
	fmt.Fprintf(w, "Account ID: %s\n", u.AccountID)
	return nil
}

func printProjects(ctx context.Context, w io.Writer, c *jira.Client) error {
	projects, err := c.Projects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if len(projects) == 0 {
		fmt.Fprintln(w, "No projects visible to this account.")
		return nil
	}

	fmt.Fprintf(w, "%-12s %-10s %s\n", "KEY", "ID", "NAME")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, p := range projects {
		fmt.Fprintf(w, "%-12s %-10s %s\n", p.Key, p.ID, p.Name)
	}
	return nil
}

func printProject(ctx context.Context, w io.Writer, c *jira.Client, key string) error {
	if key == "" {
		return fmt.Errorf("project key is required (argument or jira.project_key)")
	}

	p, err := c.Project(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to fetch project %s: %w", key, err)
	}

	fmt.Fprintf(w, "Key:  %s\n", p.Key)
	fmt.Fprintf(w, "ID:   %s\n", p.ID)
	fmt.Fprintf(w, "Name: %s\n", p.Name)
	return nil
}

func printStatuses(ctx context.Context, w io.Writer, c *jira.Client, key string) error {
	if key == "" {
		return fmt.Errorf("project key is required (argument or jira.project_key)")
	}

	types, err := c.ProjectStatuses(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to fetch statuses for %s: %w", key, err)
	}

	for _, it := range types {
		fmt.Fprintf(w, "%s:\n", it.Name)
		for _, s := range it.Statuses {
			fmt.Fprintf(w, "  %-28s [%s]\n", s.Name, s.StatusCategory.Name)
		}
	}
	return nil
}

func printFields(ctx context.Context, w io.Writer, c *jira.Client, filter string) error {
	fields, err := c.Fields(ctx)
	if err != nil {
		return fmt.Errorf("failed to list fields: %w", err)
	}
	if filter != "" {
		fields = jira.FilterFields(fields, filter)
	}

	if len(fields) == 0 {
		fmt.Fprintln(w, "No matching fields.")
		return nil
	}

	fmt.Fprintf(w, "%-24s %-7s %s\n", "ID", "CUSTOM", "NAME")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, f := range fields {
		fmt.Fprintf(w, "%-24s %-7t %s\n", f.ID, f.Custom, f.Name)
	}
	return nil
}

// printJQL runs a one-result search and prints the status code and body,
// pretty-printed when it is JSON. A non-2xx status is reported, not returned.
func printJQL(ctx context.Context, w io.Writer, c *jira.Client, jql string) error {
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("maxResults", "1")
	q.Set("fields", "key")

	status, body, err := c.Raw(ctx, "/rest/api/3/search", q)
	if err != nil {
		return fmt.Errorf("jql request failed: %w", err)
	}

	fmt.Fprintf(w, "Status: %d\n", status)

	var pretty json.RawMessage
	if json.Unmarshal(body, &pretty) == nil {
		if out, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			body = out
		}
	}
	fmt.Fprintln(w, string(body))
	return nil
}
