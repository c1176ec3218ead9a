package suite

import (
	"context"
	"sort"
	"sync"

	"jira-sync/internal/comment"
	"jira-sync/internal/issuekey"
	"jira-sync/internal/jira"
	"jira-sync/internal/report"
	"jira-sync/internal/tally"
	"jira-sync/internal/workflow"
	"jira-sync/internal/zephyr"

	"github.com/rs/zerolog/log"
)

// Options are the run-time switches of an Orchestrator.
type Options struct {
	DefaultProject string
	JiraURL        string
	PublicURL      string
	BuildID        string
	SkipUpdates    bool
	ZephyrEnabled  bool
	// Concurrency bounds how many issues are processed at once on suite finish.
	Concurrency int
}

// Deps are the collaborators of an Orchestrator. Jira and Zephyr may be nil
// when the corresponding integration is not configured.
type Deps struct {
	Tally    tally.Store
	Jira     jira.Client
	Zephyr   zephyr.Client
	Workflow *workflow.Workflow
	Renderer *comment.Renderer
}

// Orchestrator implements Listener. It owns the tally and the set of issues
// referenced during the current run; both are reset in place at suite start.
type Orchestrator struct {
	opts      Options
	extractor issuekey.Extractor
	linker    report.Linker
	tally     tally.Store

	mu     sync.Mutex
	suite  ID
	issues map[string]struct{}

	jira   *JiraUpdater
	zephyr *ZephyrUpdater
}

var _ Listener = (*Orchestrator)(nil)

// New wires an Orchestrator.
func New(opts Options, deps Deps) *Orchestrator {
	if deps.Tally == nil {
		deps.Tally = tally.New()
	}
	if deps.Workflow == nil {
		deps.Workflow = workflow.Default()
	}
	if deps.Renderer == nil {
		deps.Renderer = comment.DefaultRenderer()
	}

	o := &Orchestrator{
		opts:      opts,
		extractor: issuekey.Extractor{DefaultProject: opts.DefaultProject},
		linker:    report.Linker{PublicURL: opts.PublicURL},
		tally:     deps.Tally,
		issues:    make(map[string]struct{}),
	}
	if deps.Jira != nil {
		o.jira = NewJiraUpdater(deps.Jira, deps.Workflow, deps.Renderer, opts.BuildID, opts.Concurrency)
	}
	if deps.Zephyr != nil {
		o.zephyr = NewZephyrUpdater(deps.Zephyr)
	}
	return o
}

// SuiteStarted clears all per-run state.
func (o *Orchestrator) SuiteStarted(id ID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.tally.Clear()
	o.issues = make(map[string]struct{})
	o.suite = id
	log.Debug().Str("suite", id.Name).Msg("Suite started")
}

// TestStarted is accepted for completeness; nothing happens until the test finishes.
func (o *Orchestrator) TestStarted(title string) {}

// TestFinished records the outcome against every issue the test references.
func (o *Orchestrator) TestFinished(result TestResult) {
	keys := o.extractor.Extract(result.Title, result.Annotations)
	if len(keys) == 0 {
		return
	}

	o.mu.Lock()
	suite := o.suite
	o.mu.Unlock()

	obs := tally.Observation{
		Title:     result.Title,
		Outcome:   result.Outcome,
		Narrative: result.Narrative,
		ReportURL: o.linker.LinkFor(suite.Name),
	}
	for _, key := range keys {
		o.tally.Record(key, obs)
	}

	// Keys become visible to SuiteFinished only after their observations exist.
	o.mu.Lock()
	for _, key := range keys {
		o.issues[key] = struct{}{}
	}
	o.mu.Unlock()

	log.Debug().Str("test", result.Title).Strs("issues", keys).Str("outcome", result.Outcome.String()).Msg("Recorded test outcome")
}

// SuiteFinished pushes the aggregated verdicts to Jira and Zephyr. It never
// fails: per-issue problems are logged and reported in the Summary. It may be
// called several times for the same run.
func (o *Orchestrator) SuiteFinished(ctx context.Context) Summary {
	o.mu.Lock()
	suite := o.suite
	keys := make([]string, 0, len(o.issues))
	for k := range o.issues {
		keys = append(keys, k)
	}
	o.mu.Unlock()
	sort.Strings(keys)

	summary := Summary{Suite: suite.Name, Issues: keys}
	if len(keys) == 0 {
		return summary
	}
	if o.opts.SkipUpdates {
		log.Info().Str("suite", suite.Name).Int("issues", len(keys)).Msg("Skipping tracker updates")
		summary.Skipped = true
		return summary
	}

	if o.shouldUpdateIssues() {
		summary.ReportURL = o.linker.LinkFor(suite.Name)
		summary.Results = o.jira.Update(ctx, suite, summary.ReportURL, keys, o.tally)
	} else {
		log.Debug().Msg("Jira updates disabled: tracker or public report URL not configured")
	}

	if o.shouldUpdateZephyr() {
		if err := o.zephyr.Update(ctx, keys, o.tally); err != nil {
			log.Error().Err(err).Str("op", "zephyr-update").Msg("Zephyr update failed")
			summary.ZephyrError = err.Error()
		}
	}
	return summary
}

func (o *Orchestrator) shouldUpdateIssues() bool {
	return o.jira != nil && o.opts.JiraURL != "" && o.opts.PublicURL != ""
}

func (o *Orchestrator) shouldUpdateZephyr() bool {
	return o.zephyr != nil && o.opts.ZephyrEnabled
}

// Tally returns the store backing the current run.
func (o *Orchestrator) Tally() tally.Store {
	return o.tally
}
