package jira

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoSuchTransition is returned when the requested transition is not
	// currently available for an issue.
	ErrNoSuchTransition = errors.New("transition not available")
	// ErrIssueNotFound is returned by calls that address a missing issue.
	ErrIssueNotFound = errors.New("issue not found")
)

// IssueStatus is the result of a status lookup. Found is false when Jira
// reports that the issue does not exist.
type IssueStatus struct {
	Name  string
	Found bool
}

// Known reports whether the status can be used for a workflow decision.
func (s IssueStatus) Known() bool {
	return s.Found && s.Name != ""
}

// Comment is a single issue comment.
type Comment struct {
	ID     string
	Body   string
	Author string
}

// Project is the subset of project metadata used for connectivity checks.
type Project struct {
	ID   string
	Key  string
	Name string
}

// Client is the interface for interacting with Jira.
type Client interface {
	GetStatusFor(ctx context.Context, key string) (IssueStatus, error)
	GetCommentsFor(ctx context.Context, key string) ([]Comment, error)
	AddComment(ctx context.Context, key string, body string) error
	UpdateComment(ctx context.Context, key string, comment Comment) error
	DoTransition(ctx context.Context, key string, transition string) error
	GetProject(ctx context.Context, key string) (*Project, error)
}

// Config holds the authentication and connection settings for Jira.
type Config struct {
	BaseURL string
	Token   string

	// Data Center Cookies
	XsrfToken  string
	SessionID  string
	RememberMe string

	// Minimum spacing between requests. Zero disables throttling.
	RequestDelay time.Duration
}

// NewClient creates a new Jira client based on the provided configuration.
func NewClient(cfg Config) Client {
	return NewDataCenterClient(cfg)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrIssueNotFound)
}
