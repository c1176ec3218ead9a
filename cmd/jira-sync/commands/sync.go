package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"jira-sync/internal/gotest"
	"jira-sync/internal/journal"
	"jira-sync/internal/suite"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	inputPath   string
	journalPath string
	openReport  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize go test -json results with Jira",
	Example: `  go test -json ./... | jira-sync sync
  jira-sync sync --input results.json --journal out/journal.jsonl`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, closeIn, err := openInput(inputPath)
		if err != nil {
			return err
		}
		defer closeIn()

		orch := suite.New(cfg.Sync, cfg.Deps())
		rep, err := gotest.Run(cmd.Context(), in, orch)
		if err != nil {
			return err
		}

		printReport(cmd.OutOrStdout(), rep)

		if path := journalTarget(); path != "" {
			if err := writeJournal(path, rep.Summaries); err != nil {
				log.Error().Err(err).Str("path", path).Msg("Failed to write journal")
			}
		}

		if openReport {
			openFirstReport(rep.Summaries)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVarP(&inputPath, "input", "i", "-", "go test -json output to read, - for stdin")
	syncCmd.Flags().StringVar(&journalPath, "journal", "", "append per-issue results to this JSONL file (default $SYNC_JOURNAL)")
	syncCmd.Flags().BoolVar(&openReport, "open-report", false, "open the first suite report in a browser when done")
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening test results: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func journalTarget() string {
	if journalPath != "" {
		return journalPath
	}
	return cfg.JournalTo
}

func writeJournal(path string, summaries []suite.Summary) error {
	j := journal.New()
	if err := j.Load(path); err != nil {
		return err
	}
	now := time.Now()
	for _, s := range summaries {
		j.Record(now, s)
	}
	return j.Save(path)
}

func openFirstReport(summaries []suite.Summary) {
	for _, s := range summaries {
		if s.ReportURL == "" {
			continue
		}
		if err := browser.OpenURL(s.ReportURL); err != nil {
			log.Warn().Err(err).Str("url", s.ReportURL).Msg("Could not open report")
		}
		return
	}
	log.Info().Msg("No report link to open")
}

func printReport(w io.Writer, rep gotest.Report) {
	for _, s := range rep.Summaries {
		if len(s.Issues) == 0 {
			continue
		}
		state := ""
		if s.Skipped {
			state = " (updates skipped)"
		}
		fmt.Fprintf(w, "%s: %d issue(s)%s\n", s.Suite, len(s.Issues), state)
		for _, r := range s.Results {
			switch {
			case !r.OK():
				fmt.Fprintf(w, "  %-14s FAILED at %s: %s\n", r.Key, r.FailedOp, r.Error)
			case !r.Found:
				fmt.Fprintf(w, "  %-14s not found\n", r.Key)
			default:
				transition := r.Transition
				if transition == "" {
					transition = "-"
				}
				fmt.Fprintf(w, "  %-14s %-11s %-14s transition=%s comment=%s\n", r.Key, r.Verdict, r.Status, transition, r.Comment)
			}
		}
		if s.ZephyrError != "" {
			fmt.Fprintf(w, "  zephyr: %s\n", s.ZephyrError)
		}
	}
	fmt.Fprintf(w, "%d test(s) read", rep.Tests)
	if rep.Malformed > 0 {
		fmt.Fprintf(w, ", %d malformed line(s) skipped", rep.Malformed)
	}
	fmt.Fprintln(w)
}
