package suite

import "jira-sync/internal/comment"

// Result is what happened to one issue on suite finish.
type Result struct {
	Key        string         `json:"key"`
	Verdict    string         `json:"verdict,omitempty"`
	Status     string         `json:"status,omitempty"`
	Found      bool           `json:"found"`
	Transition string         `json:"transition,omitempty"`
	Comment    comment.Action `json:"comment,omitempty"`
	FailedOp   string         `json:"failedOp,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// OK reports whether every attempted step succeeded.
func (r Result) OK() bool {
	return r.Error == ""
}

// Summary describes one SuiteFinished invocation.
type Summary struct {
	Suite       string   `json:"suite"`
	Issues      []string `json:"issues"`
	ReportURL   string   `json:"reportUrl,omitempty"`
	Skipped     bool     `json:"skipped,omitempty"`
	Results     []Result `json:"results,omitempty"`
	ZephyrError string   `json:"zephyrError,omitempty"`
}

// Failures counts results that ended in an error.
func (s Summary) Failures() int {
	n := 0
	for _, r := range s.Results {
		if !r.OK() {
			n++
		}
	}
	return n
}
