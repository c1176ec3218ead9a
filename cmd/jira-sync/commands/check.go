package commands

import (
	"fmt"

	"jira-sync/internal/jira"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the workflow and the Jira connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		// The workflow and template were already validated while loading the configuration.
		fmt.Fprintf(out, "workflow %q: %d rule(s)\n", cfg.Workflow.Name, len(cfg.Workflow.Rules))

		if cfg.Jira.BaseURL == "" {
			fmt.Fprintln(out, "JIRA_URL not set: issue updates are disabled")
			return nil
		}
		if cfg.Sync.PublicURL == "" {
			fmt.Fprintln(out, "REPORT_PUBLIC_URL not set: issue updates are disabled")
		}
		if cfg.Sync.DefaultProject == "" {
			fmt.Fprintln(out, "JIRA_PROJECT not set: bare issue numbers are used as-is")
			return nil
		}

		client := jira.NewClient(cfg.Jira)
		project, err := client.GetProject(cmd.Context(), cfg.Sync.DefaultProject)
		if err != nil {
			return fmt.Errorf("checking project %s: %w", cfg.Sync.DefaultProject, err)
		}
		fmt.Fprintf(out, "project %s (%s) reachable at %s\n", project.Key, project.Name, cfg.Jira.BaseURL)
		return nil
	},
}
