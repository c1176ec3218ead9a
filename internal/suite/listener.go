// Package suite drives issue synchronization from test suite lifecycle events.
package suite

import (
	"context"
	"strings"

	"jira-sync/internal/tally"
)

// ID is the opaque identity of a suite, normalized by the adapter that
// observed it (package path, story name, class name...).
type ID struct {
	Name string
}

// NewID trims the raw identity into an ID.
func NewID(name string) ID {
	return ID{Name: strings.TrimSpace(name)}
}

// TestResult is one finished test as reported by the test framework adapter.
type TestResult struct {
	Title       string
	Outcome     tally.Outcome
	Annotations []string
	Narrative   string
}

// Listener is the lifecycle surface a test framework adapter drives.
type Listener interface {
	SuiteStarted(id ID)
	TestStarted(title string)
	TestFinished(result TestResult)
	SuiteFinished(ctx context.Context) Summary
}
