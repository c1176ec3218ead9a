// Package workflow decides which Jira transition follows from a test verdict.
package workflow

import (
	"strings"

	"jira-sync/internal/jira"
	"jira-sync/internal/tally"
)

// NoOp is the transition name that explicitly means "leave the issue alone".
// A rule using it shadows any later, more general rule.
const NoOp = "No-op"

// Wildcard matches any status or verdict.
const Wildcard = "*"

// Rule maps a (status, verdict) pair to a transition name.
// An empty Statuses or Verdicts list matches anything.
type Rule struct {
	Statuses   []string
	Verdicts   []tally.Outcome
	Transition string
}

func (r Rule) matchesStatus(status string) bool {
	if len(r.Statuses) == 0 {
		return true
	}
	for _, s := range r.Statuses {
		if s == Wildcard || strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(status)) {
			return true
		}
	}
	return false
}

func (r Rule) matchesVerdict(verdict tally.Outcome) bool {
	if len(r.Verdicts) == 0 {
		return true
	}
	for _, v := range r.Verdicts {
		if v == verdict {
			return true
		}
	}
	return false
}

// Workflow is an ordered, immutable rule table.
type Workflow struct {
	Name  string
	Rules []Rule
}

// Decide returns the transition for the first rule matching both the current
// status and the verdict. It returns false when nothing matches, when the
// matching rule is a NoOp, or when the status is unknown.
func (w *Workflow) Decide(status jira.IssueStatus, verdict tally.Outcome) (string, bool) {
	if w == nil || !status.Known() {
		return "", false
	}
	for _, r := range w.Rules {
		if !r.matchesStatus(status.Name) || !r.matchesVerdict(verdict) {
			continue
		}
		if strings.EqualFold(r.Transition, NoOp) {
			return "", false
		}
		return r.Transition, true
	}
	return "", false
}

// Disabled returns a workflow that never transitions.
func Disabled() *Workflow {
	return &Workflow{Name: "disabled"}
}

// Default returns the canonical bug workflow.
func Default() *Workflow {
	return &Workflow{
		Name: "default",
		Rules: []Rule{
			{
				Statuses:   []string{"Open", "In Progress", "Reopened"},
				Verdicts:   []tally.Outcome{tally.Success},
				Transition: "Resolve Issue",
			},
			{
				Statuses:   []string{"Closed", "Resolved"},
				Verdicts:   []tally.Outcome{tally.Failure, tally.Error},
				Transition: "Reopen Issue",
			},
		},
	}
}
