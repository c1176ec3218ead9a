package gotest

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"jira-sync/internal/suite"
	"jira-sync/internal/tally"

	"github.com/rs/zerolog/log"
)

// annotationPattern matches issue annotations logged from a test, e.g.
// t.Log("@issue PROJ-12") or t.Log("@issues PROJ-12, PROJ-14").
var annotationPattern = regexp.MustCompile(`@issues?[:\s]+(.+)$`)

// dedupSuffix matches the #NN suffix go test appends to repeated or empty
// subtest names.
var dedupSuffix = regexp.MustCompile(`^(.*)#(\d{2,})$`)

// Adapter translates go test -json events into Listener calls. Each package
// is one suite. Events of different packages are expected in sequence, which
// is how go test prints them; a package appearing while another is still open
// finishes the open one first.
type Adapter struct {
	listener suite.Listener

	current string
	open    bool
	output  map[string][]string
	tests   int

	// titles maps a go test name to the name the test author wrote.
	titles map[string]string
	// siblings counts subtest names per parent, as go test does when
	// deduplicating them.
	siblings map[string]int

	summaries []suite.Summary
}

// NewAdapter creates an Adapter driving l.
func NewAdapter(l suite.Listener) *Adapter {
	return &Adapter{listener: l}
}

// Report is the outcome of a whole run.
type Report struct {
	Summaries []suite.Summary
	Tests     int
	Malformed int
}

// Run streams r through a new Adapter and finishes any suite left open at EOF.
func Run(ctx context.Context, r io.Reader, l suite.Listener) (Report, error) {
	a := NewAdapter(l)
	malformed, err := Stream(ctx, r, func(e TestEvent) {
		a.Handle(ctx, e)
	})
	if err != nil {
		return Report{Summaries: a.summaries, Tests: a.tests, Malformed: malformed}, fmt.Errorf("reading test events: %w", err)
	}
	a.Close(ctx)
	if malformed > 0 {
		log.Warn().Int("lines", malformed).Msg("Skipped malformed test event lines")
	}
	return Report{Summaries: a.summaries, Tests: a.tests, Malformed: malformed}, nil
}

// Handle processes one event.
func (a *Adapter) Handle(ctx context.Context, e TestEvent) {
	if e.Package == "" {
		return
	}
	if !a.open || e.Package != a.current {
		a.finish(ctx)
		a.start(e.Package)
	}

	switch e.Action {
	case ActionRun:
		if e.Test != "" {
			a.listener.TestStarted(a.register(e.Test))
		}
	case ActionOutput:
		line := strings.TrimRight(e.Output, "\n")
		if line != "" {
			a.output[e.Test] = append(a.output[e.Test], line)
		}
	case ActionPass, ActionFail, ActionSkip:
		if e.Test == "" {
			a.finish(ctx)
			return
		}
		a.testFinished(e)
	}
}

// Close finishes the open suite, if any.
func (a *Adapter) Close(ctx context.Context) {
	a.finish(ctx)
}

// Summaries returns the summaries of every finished suite so far.
func (a *Adapter) Summaries() []suite.Summary {
	return a.summaries
}

func (a *Adapter) start(pkg string) {
	a.current = pkg
	a.open = true
	a.output = make(map[string][]string)
	a.titles = make(map[string]string)
	a.siblings = make(map[string]int)
	a.listener.SuiteStarted(suite.NewID(pkg))
}

func (a *Adapter) finish(ctx context.Context) {
	if !a.open {
		return
	}
	a.open = false
	a.summaries = append(a.summaries, a.listener.SuiteFinished(ctx))
}

func (a *Adapter) testFinished(e TestEvent) {
	lines := a.output[e.Test]
	delete(a.output, e.Test)
	a.tests++

	a.listener.TestFinished(suite.TestResult{
		Title:       a.title(e.Test),
		Outcome:     outcomeOf(e.Action, lines),
		Annotations: annotations(lines),
		Narrative:   narrative(lines),
	})
}

// register records a started test and returns its title with any
// go test generated #NN suffix removed from each subtest segment, so the
// suffix is not read as an issue reference.
func (a *Adapter) register(name string) string {
	if title, ok := a.titles[name]; ok {
		return title
	}
	i := strings.LastIndex(name, "/")
	if i < 0 {
		a.titles[name] = name
		return name
	}
	parent, seg := name[:i], name[i+1:]

	clean := seg
	if m := dedupSuffix.FindStringSubmatch(seg); m != nil {
		base := m[1]
		n, _ := strconv.Atoi(m[2])
		if n == a.siblings[parent+"/"+base] && (base == "" || n > 0) {
			clean = base
		}
		a.siblings[parent+"/"+base]++
	}
	a.siblings[parent+"/"+seg]++

	title := a.title(parent) + "/" + clean
	a.titles[name] = title
	return title
}

// title returns the registered title of name, or name itself when its run
// event was never seen.
func (a *Adapter) title(name string) string {
	if title, ok := a.titles[name]; ok {
		return title
	}
	return name
}

func outcomeOf(action string, lines []string) tally.Outcome {
	switch action {
	case ActionPass:
		return tally.Success
	case ActionSkip:
		return tally.Skipped
	}
	for _, l := range lines {
		if strings.Contains(l, "panic:") {
			return tally.Error
		}
	}
	return tally.Failure
}

func annotations(lines []string) []string {
	var keys []string
	for _, l := range lines {
		m := annotationPattern.FindStringSubmatch(strings.TrimSpace(l))
		if m == nil {
			continue
		}
		for _, k := range strings.FieldsFunc(m[1], func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		}) {
			keys = append(keys, k)
		}
	}
	return keys
}

// narrative keeps what the test itself logged, without the framework's
// === RUN and --- PASS banners.
func narrative(lines []string) string {
	var kept []string
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" || strings.HasPrefix(t, "=== ") || strings.HasPrefix(t, "--- ") {
			continue
		}
		kept = append(kept, t)
	}
	return strings.Join(kept, "\n")
}
