package suite

import (
	"context"
	"errors"

	"jira-sync/internal/comment"
	"jira-sync/internal/jira"
	"jira-sync/internal/tally"
	"jira-sync/internal/workflow"
	"jira-sync/internal/zephyr"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// JiraUpdater applies workflow transitions and results comments to issues.
type JiraUpdater struct {
	client      jira.Client
	workflow    *workflow.Workflow
	comments    *comment.Synchronizer
	renderer    *comment.Renderer
	buildID     string
	concurrency int
}

// NewJiraUpdater creates a JiraUpdater. A concurrency below 1 is treated as 1.
func NewJiraUpdater(client jira.Client, wf *workflow.Workflow, renderer *comment.Renderer, buildID string, concurrency int) *JiraUpdater {
	if concurrency < 1 {
		concurrency = 1
	}
	return &JiraUpdater{
		client:      client,
		workflow:    wf,
		comments:    comment.NewSynchronizer(client),
		renderer:    renderer,
		buildID:     buildID,
		concurrency: concurrency,
	}
}

// Update processes every key independently. Results are returned in key order.
func (u *JiraUpdater) Update(ctx context.Context, suite ID, reportURL string, keys []string, store tally.Store) []Result {
	results := make([]Result, len(keys))

	var g errgroup.Group
	g.SetLimit(u.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			results[i] = u.updateIssue(ctx, suite, reportURL, key, store)
			return nil
		})
	}
	// Workers never return an error; per-key failures are kept in results.
	_ = g.Wait()

	return results
}

// updateIssue runs status lookup, decision, transition and comment for one
// key. The status is always read before the comment is touched.
func (u *JiraUpdater) updateIssue(ctx context.Context, suite ID, reportURL, key string, store tally.Store) Result {
	res := Result{Key: key}
	logger := log.With().Str("key", key).Logger()

	status, err := u.client.GetStatusFor(ctx, key)
	if err != nil {
		return res.failed(logger, "get-status", err)
	}
	res.Status = status.Name
	res.Found = status.Found
	if !status.Found {
		logger.Warn().Msg("Issue not found in Jira, skipping")
		return res
	}

	verdict, ok := store.Aggregate(key)
	if !ok {
		logger.Warn().Msg("No observations recorded for issue")
		return res
	}
	res.Verdict = verdict.String()

	if transition, ok := u.workflow.Decide(status, verdict); ok {
		err := u.client.DoTransition(ctx, key, transition)
		switch {
		case errors.Is(err, jira.ErrNoSuchTransition):
			logger.Warn().Err(err).Str("status", status.Name).Msg("Transition not available from current status")
		case err != nil:
			return res.failed(logger, "transition", err)
		default:
			res.Transition = transition
			logger.Info().Str("from", status.Name).Str("transition", transition).Str("verdict", res.Verdict).Msg("Transitioned issue")
		}
	}

	body, err := u.renderer.Render(comment.View{
		Key:          key,
		Suite:        suite.Name,
		ReportURL:    reportURL,
		BuildID:      u.buildID,
		Verdict:      verdict,
		Observations: store.Observations(key),
	})
	if err != nil {
		return res.failed(logger, "render-comment", err)
	}

	action, err := u.comments.Upsert(ctx, key, body)
	if err != nil {
		return res.failed(logger, "upsert-comment", err)
	}
	res.Comment = action
	logger.Info().Str("comment", string(action)).Str("verdict", res.Verdict).Msg("Synchronized results comment")
	return res
}

func (r Result) failed(logger zerolog.Logger, op string, err error) Result {
	logger.Error().Err(err).Str("op", op).Msg("Jira update failed")
	r.FailedOp = op
	r.Error = err.Error()
	return r
}

// ZephyrUpdater mirrors aggregated verdicts into Zephyr executions.
type ZephyrUpdater struct {
	client zephyr.Client
}

// NewZephyrUpdater creates a ZephyrUpdater.
func NewZephyrUpdater(client zephyr.Client) *ZephyrUpdater {
	return &ZephyrUpdater{client: client}
}

// Update sends the verdict of every key that has observations.
func (u *ZephyrUpdater) Update(ctx context.Context, keys []string, store tally.Store) error {
	verdicts := make(map[string]tally.Outcome, len(keys))
	for _, key := range keys {
		if v, ok := store.Aggregate(key); ok {
			verdicts[key] = v
		}
	}
	if len(verdicts) == 0 {
		return nil
	}
	return u.client.UpdateExecutions(ctx, verdicts)
}
