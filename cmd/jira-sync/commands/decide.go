package commands

import (
	"fmt"

	"jira-sync/internal/jira"
	"jira-sync/internal/tally"

	"github.com/spf13/cobra"
)

var (
	decideStatus  string
	decideVerdict string
)

var decideCmd = &cobra.Command{
	Use:     "decide",
	Short:   "Show which transition the workflow picks for a status and verdict",
	Example: `  jira-sync decide --status Closed --verdict failure`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verdict, err := tally.ParseOutcome(decideVerdict)
		if err != nil {
			return err
		}

		status := jira.IssueStatus{Name: decideStatus, Found: decideStatus != ""}
		transition, ok := cfg.Workflow.Decide(status, verdict)
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s + %s: no transition\n", decideStatus, verdict)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s + %s: %s\n", decideStatus, verdict, transition)
		return nil
	},
}

func init() {
	decideCmd.Flags().StringVar(&decideStatus, "status", "", "current issue status")
	decideCmd.Flags().StringVar(&decideVerdict, "verdict", "", "aggregated verdict (SUCCESS, FAILURE, ERROR...)")
	_ = decideCmd.MarkFlagRequired("status")
	_ = decideCmd.MarkFlagRequired("verdict")
}
