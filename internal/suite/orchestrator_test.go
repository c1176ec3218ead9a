package suite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"jira-sync/internal/comment"
	"jira-sync/internal/jira"
	"jira-sync/internal/tally"
)

// DummyTracker is an in-memory jira.Client that records every call.
type DummyTracker struct {
	mu          sync.Mutex
	statuses    map[string]string
	statusErr   map[string]error
	comments    map[string][]jira.Comment
	transitions []string
	adds        []string
	updates     []string
	lookups     int
	nextID      int
}

func newDummyTracker() *DummyTracker {
	return &DummyTracker{
		statuses:  make(map[string]string),
		statusErr: make(map[string]error),
		comments:  make(map[string][]jira.Comment),
	}
}

func (d *DummyTracker) GetStatusFor(ctx context.Context, key string) (jira.IssueStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	if err := d.statusErr[key]; err != nil {
		return jira.IssueStatus{}, err
	}
	s, ok := d.statuses[key]
	if !ok {
		return jira.IssueStatus{}, nil
	}
	return jira.IssueStatus{Name: s, Found: true}, nil
}

func (d *DummyTracker) GetCommentsFor(ctx context.Context, key string) ([]jira.Comment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]jira.Comment(nil), d.comments[key]...), nil
}

func (d *DummyTracker) AddComment(ctx context.Context, key string, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.adds = append(d.adds, key)
	d.comments[key] = append(d.comments[key], jira.Comment{ID: fmt.Sprint(d.nextID), Body: body})
	return nil
}

func (d *DummyTracker) UpdateComment(ctx context.Context, key string, c jira.Comment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, key+":"+c.ID)
	for i := range d.comments[key] {
		if d.comments[key][i].ID == c.ID {
			d.comments[key][i] = c
		}
	}
	return nil
}

func (d *DummyTracker) DoTransition(ctx context.Context, key string, transition string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transitions = append(d.transitions, key+":"+transition)
	return nil
}

func (d *DummyTracker) GetProject(ctx context.Context, key string) (*jira.Project, error) {
	return &jira.Project{Key: key}, nil
}

func (d *DummyTracker) mutations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transitions) + len(d.adds) + len(d.updates)
}

type DummyZephyr struct {
	calls []map[string]tally.Outcome
	err   error
}

func (d *DummyZephyr) UpdateExecutions(ctx context.Context, verdicts map[string]tally.Outcome) error {
	d.calls = append(d.calls, verdicts)
	return d.err
}

func defaultOptions() Options {
	return Options{
		DefaultProject: "MYPROJECT",
		JiraURL:        "http://my.jira.server",
		PublicURL:      "http://my.server/myproject/reports",
		BuildID:        "2012-01-17_15-39-03",
		Concurrency:    4,
	}
}

func runSuite(o *Orchestrator, results ...TestResult) Summary {
	o.SuiteStarted(NewID("SampleStory"))
	for _, r := range results {
		o.TestStarted(r.Title)
		o.TestFinished(r)
	}
	return o.SuiteFinished(context.Background())
}

func TestPassingTestResolvesOpenIssue(t *testing.T) {
	tracker := newDummyTracker()
	tracker.statuses["MYPROJECT-123"] = "Open"
	o := New(defaultOptions(), Deps{Jira: tracker})

	summary := runSuite(o, TestResult{Title: "Fixes issue #MYPROJECT-123", Outcome: tally.Success})

	if len(tracker.transitions) != 1 || tracker.transitions[0] != "MYPROJECT-123:Resolve Issue" {
		t.Errorf("transitions = %v, want Resolve Issue on MYPROJECT-123", tracker.transitions)
	}
	if len(tracker.adds) != 1 || tracker.adds[0] != "MYPROJECT-123" {
		t.Fatalf("adds = %v, want one comment on MYPROJECT-123", tracker.adds)
	}
	body := tracker.comments["MYPROJECT-123"][0].Body
	if !strings.Contains(body, comment.Marker) {
		t.Errorf("comment lacks marker:\n%s", body)
	}
	if summary.ReportURL == "" || !strings.Contains(body, summary.ReportURL) {
		t.Errorf("comment lacks report link %q:\n%s", summary.ReportURL, body)
	}
	if !strings.HasPrefix(summary.ReportURL, "http://my.server/myproject/reports/") {
		t.Errorf("ReportURL = %q", summary.ReportURL)
	}
	if len(summary.Results) != 1 || summary.Results[0].Comment != comment.Inserted || summary.Results[0].Verdict != "SUCCESS" {
		t.Errorf("results = %+v", summary.Results)
	}
}

func TestFailingTestReopensClosedIssue(t *testing.T) {
	tracker := newDummyTracker()
	tracker.statuses["MYPROJECT-123"] = "Closed"
	o := New(defaultOptions(), Deps{Jira: tracker})

	runSuite(o, TestResult{Title: "Fixes issue #MYPROJECT-123", Outcome: tally.Failure})

	if len(tracker.transitions) != 1 || tracker.transitions[0] != "MYPROJECT-123:Reopen Issue" {
		t.Errorf("transitions = %v, want Reopen Issue", tracker.transitions)
	}
}

func TestSharedIssueIsProcessedOnce(t *testing.T) {
	tracker := newDummyTracker()
	tracker.statuses["MYPROJECT-123"] = "Closed"
	o := New(defaultOptions(), Deps{Jira: tracker})

	summary := runSuite(o,
		TestResult{Title: "first #MYPROJECT-123", Outcome: tally.Success},
		TestResult{Title: "second #123", Outcome: tally.Failure},
	)

	if tracker.lookups != 1 {
		t.Errorf("status lookups = %d, want 1", tracker.lookups)
	}
	if len(tracker.adds) != 1 {
		t.Errorf("comments added = %d, want 1", len(tracker.adds))
	}
	if len(tracker.transitions) != 1 || tracker.transitions[0] != "MYPROJECT-123:Reopen Issue" {
		t.Errorf("transitions = %v, want a single Reopen Issue", tracker.transitions)
	}
	if summary.Results[0].Verdict != "FAILURE" {
		t.Errorf("verdict = %q, want FAILURE", summary.Results[0].Verdict)
	}
	if n := len(o.Tally().Observations("MYPROJECT-123")); n != 2 {
		t.Errorf("observations = %d, want 2", n)
	}
}

func TestSeveralIssuesInOneTitle(t *testing.T) {
	tracker := newDummyTracker()
	tracker.statuses["MYPROJECT-123"] = "Open"
	tracker.statuses["MYPROJECT-456"] = "Open"
	o := New(defaultOptions(), Deps{Jira: tracker})

	summary := runSuite(o, TestResult{Title: "Fixes issues #MYPROJECT-123,#MYPROJECT-456", Outcome: tally.Success})

	if len(tracker.adds) != 2 {
		t.Errorf("adds = %v, want both issues commented", tracker.adds)
	}
	if len(summary.Results) != 2 || summary.Results[0].Key != "MYPROJECT-123" || summary.Results[1].Key != "MYPROJECT-456" {
		t.Errorf("results = %+v", summary.Results)
	}
}

func TestAnnotatedIssues(t *testing.T) {
	tracker := newDummyTracker()
	tracker.statuses["MYPROJECT-123"] = "Open"
	tracker.statuses["MYPROJECT-456"] = "Open"
	o := New(defaultOptions(), Deps{Jira: tracker})

	runSuite(o, TestResult{
		Title:       "issue_123_and_456_should_be_fixed_now",
		Outcome:     tally.Success,
		Annotations: []string{"#MYPROJECT-123", "myproject-456"},
	})

	if len(tracker.adds) != 2 {
		t.Errorf("adds = %v, want both annotated issues commented", tracker.adds)
	}
}

func TestExistingMarkerCommentIsUpdated(t *testing.T) {
	tracker := newDummyTracker()
	tracker.statuses["MYPROJECT-123"] = "Open"
	tracker.comments["MYPROJECT-123"] = []jira.Comment{
		{ID: "1", Body: "a comment", Author: "bruce"},
		{ID: "2", Body: comment.Marker + "\nold results", Author: "bruce"},
	}
	o := New(defaultOptions(), Deps{Jira: tracker})

	runSuite(o, TestResult{Title: "#MYPROJECT-123", Outcome: tally.Failure})

	if len(tracker.adds) != 0 || len(tracker.updates) != 1 || tracker.updates[0] != "MYPROJECT-123:2" {
		t.Errorf("adds = %v, updates = %v; want one update of comment 2", tracker.adds, tracker.updates)
	}
}

func TestRepeatedSuiteFinishDoesNotDuplicateComments(t *testing.T) {
	tracker := newDummyTracker()
	tracker.statuses["MYPROJECT-123"] = "In Review"
	o := New(defaultOptions(), Deps{Jira: tracker})

	runSuite(o, TestResult{Title: "#MYPROJECT-123", Outcome: tally.Success})
	o.SuiteFinished(context.Background())
	o.SuiteFinished(context.Background())

	if len(tracker.comments["MYPROJECT-123"]) != 1 {
		t.Errorf("comments = %d, want 1", len(tracker.comments["MYPROJECT-123"]))
	}
	if len(tracker.adds) != 1 || len(tracker.updates) != 2 {
		t.Errorf("adds = %d, updates = %d; want 1 and 2", len(tracker.adds), len(tracker.updates))
	}
}

func TestMissingIssueIsSkippedAndOthersProceed(t *testing.T) {
	tracker := newDummyTracker()
	tracker.statuses["MYPROJECT-2"] = "Open"
	o := New(defaultOptions(), Deps{Jira: tracker})

	summary := runSuite(o,
		TestResult{Title: "#MYPROJECT-1", Outcome: tally.Failure},
		TestResult{Title: "#MYPROJECT-2", Outcome: tally.Success},
	)

	for _, tr := range tracker.transitions {
		if strings.HasPrefix(tr, "MYPROJECT-1:") {
			t.Errorf("unexpected transition on missing issue: %s", tr)
		}
	}
	if len(tracker.adds) != 1 || tracker.adds[0] != "MYPROJECT-2" {
		t.Errorf("adds = %v, want only MYPROJECT-2", tracker.adds)
	}
	if summary.Results[0].Found || !summary.Results[0].OK() {
		t.Errorf("missing issue result = %+v", summary.Results[0])
	}
}

func TestTrackerFailureIsIsolated(t *testing.T) {
	tracker := newDummyTracker()
	tracker.statusErr["MYPROJECT-1"] = errors.New("502 bad gateway")
	tracker.statuses["MYPROJECT-2"] = "Closed"
	o := New(defaultOptions(), Deps{Jira: tracker})

	summary := runSuite(o,
		TestResult{Title: "#MYPROJECT-1", Outcome: tally.Failure},
		TestResult{Title: "#MYPROJECT-2", Outcome: tally.Failure},
	)

	if summary.Failures() != 1 || summary.Results[0].FailedOp != "get-status" {
		t.Errorf("results = %+v", summary.Results)
	}
	if len(tracker.transitions) != 1 || tracker.transitions[0] != "MYPROJECT-2:Reopen Issue" {
		t.Errorf("transitions = %v", tracker.transitions)
	}
}

func TestSkipUpdates(t *testing.T) {
	tracker := newDummyTracker()
	tracker.statuses["MYPROJECT-123"] = "Closed"
	zephyr := &DummyZephyr{}
	opts := defaultOptions()
	opts.SkipUpdates = true
	opts.ZephyrEnabled = true
	o := New(opts, Deps{Jira: tracker, Zephyr: zephyr})

	summary := runSuite(o, TestResult{Title: "#MYPROJECT-123", Outcome: tally.Failure})

	if tracker.mutations() != 0 || tracker.lookups != 0 {
		t.Errorf("tracker touched: mutations = %d, lookups = %d", tracker.mutations(), tracker.lookups)
	}
	if len(zephyr.calls) != 0 {
		t.Errorf("zephyr calls = %d, want 0", len(zephyr.calls))
	}
	if !summary.Skipped {
		t.Error("summary should be marked skipped")
	}
	if v, ok := o.Tally().Aggregate("MYPROJECT-123"); !ok || v != tally.Failure {
		t.Errorf("tally = %v, %v; want FAILURE recorded", v, ok)
	}
}

func TestNoUpdatesWithoutTrackerOrPublicURL(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Options)
	}{
		{"No Jira URL", func(o *Options) { o.JiraURL = "" }},
		{"No public URL", func(o *Options) { o.PublicURL = "" }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tracker := newDummyTracker()
			tracker.statuses["MYPROJECT-123"] = "Closed"
			opts := defaultOptions()
			tc.mutate(&opts)
			o := New(opts, Deps{Jira: tracker})

			runSuite(o, TestResult{Title: "#MYPROJECT-123", Outcome: tally.Failure})

			if tracker.mutations() != 0 {
				t.Errorf("mutations = %d, want 0", tracker.mutations())
			}
		})
	}
}

func TestSuiteStartClearsState(t *testing.T) {
	tracker := newDummyTracker()
	tracker.statuses["MYPROJECT-1"] = "Open"
	tracker.statuses["MYPROJECT-2"] = "Open"
	o := New(defaultOptions(), Deps{Jira: tracker})

	runSuite(o, TestResult{Title: "#MYPROJECT-1", Outcome: tally.Failure})
	summary := runSuite(o, TestResult{Title: "#MYPROJECT-2", Outcome: tally.Success})

	if len(summary.Issues) != 1 || summary.Issues[0] != "MYPROJECT-2" {
		t.Errorf("issues = %v, want only MYPROJECT-2", summary.Issues)
	}
	if _, ok := o.Tally().Aggregate("MYPROJECT-1"); ok {
		t.Error("tally should have been cleared at suite start")
	}
}

func TestTestsWithoutIssuesAreIgnored(t *testing.T) {
	tracker := newDummyTracker()
	o := New(defaultOptions(), Deps{Jira: tracker})

	summary := runSuite(o, TestResult{Title: "anotherTest", Outcome: tally.Failure})

	if len(summary.Issues) != 0 || tracker.lookups != 0 {
		t.Errorf("issues = %v, lookups = %d", summary.Issues, tracker.lookups)
	}
}

func TestZephyrMirror(t *testing.T) {
	tracker := newDummyTracker()
	tracker.statuses["MYPROJECT-1"] = "Open"
	zephyr := &DummyZephyr{err: errors.New("zapi down")}
	opts := defaultOptions()
	opts.ZephyrEnabled = true
	o := New(opts, Deps{Jira: tracker, Zephyr: zephyr})

	summary := runSuite(o,
		TestResult{Title: "#MYPROJECT-1", Outcome: tally.Success},
		TestResult{Title: "#MYPROJECT-2", Outcome: tally.Failure},
		TestResult{Title: "#MYPROJECT-2", Outcome: tally.Success},
	)

	if len(zephyr.calls) != 1 {
		t.Fatalf("zephyr calls = %d, want 1", len(zephyr.calls))
	}
	got := zephyr.calls[0]
	if got["MYPROJECT-1"] != tally.Success || got["MYPROJECT-2"] != tally.Failure || len(got) != 2 {
		t.Errorf("zephyr verdicts = %v", got)
	}
	if summary.ZephyrError == "" {
		t.Error("zephyr failure should be reported in the summary")
	}
	if len(tracker.adds) != 1 {
		t.Errorf("jira path should run independently of zephyr, adds = %v", tracker.adds)
	}
}

func TestZephyrDisabled(t *testing.T) {
	zephyr := &DummyZephyr{}
	o := New(defaultOptions(), Deps{Zephyr: zephyr})

	runSuite(o, TestResult{Title: "#MYPROJECT-1", Outcome: tally.Success})

	if len(zephyr.calls) != 0 {
		t.Errorf("zephyr calls = %d, want 0", len(zephyr.calls))
	}
}

func TestManyIssuesConcurrently(t *testing.T) {
	tracker := newDummyTracker()
	var results []TestResult
	for i := 1; i <= 40; i++ {
		key := fmt.Sprintf("MYPROJECT-%d", i)
		tracker.statuses[key] = "Open"
		results = append(results, TestResult{Title: "#" + key, Outcome: tally.Success})
	}
	o := New(defaultOptions(), Deps{Jira: tracker})

	summary := runSuite(o, results...)

	if len(summary.Results) != 40 || summary.Failures() != 0 {
		t.Fatalf("results = %d, failures = %d", len(summary.Results), summary.Failures())
	}
	if len(tracker.transitions) != 40 || len(tracker.adds) != 40 {
		t.Errorf("transitions = %d, adds = %d; want 40 each", len(tracker.transitions), len(tracker.adds))
	}
}
