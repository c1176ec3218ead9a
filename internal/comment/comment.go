// Package comment keeps one tool-owned results comment per Jira issue.
package comment

import (
	"context"
	"fmt"
	"strings"

	"jira-sync/internal/jira"

	"github.com/rs/zerolog/log"
)

// Marker identifies comments written by this tool. Every rendered body
// contains it; human comments are expected not to.
const Marker = "Automated Test Results"

// Action reports which mutation Upsert performed.
type Action string

const (
	Inserted Action = "inserted"
	Updated  Action = "updated"
)

// Client is the slice of the Jira client the synchronizer needs.
type Client interface {
	GetCommentsFor(ctx context.Context, key string) ([]jira.Comment, error)
	AddComment(ctx context.Context, key string, body string) error
	UpdateComment(ctx context.Context, key string, comment jira.Comment) error
}

// Synchronizer inserts or updates the marker comment on an issue.
type Synchronizer struct {
	client Client
}

// NewSynchronizer creates a Synchronizer backed by client.
func NewSynchronizer(client Client) *Synchronizer {
	return &Synchronizer{client: client}
}

// Upsert replaces the body of the first marker-bearing comment on key, or adds
// a new comment when none exists. Exactly one mutation is issued. Additional
// marker-bearing comments are left as they are.
func (s *Synchronizer) Upsert(ctx context.Context, key string, body string) (Action, error) {
	comments, err := s.client.GetCommentsFor(ctx, key)
	if err != nil {
		return "", fmt.Errorf("listing comments of %s: %w", key, err)
	}

	if existing, ok := findMarked(comments); ok {
		existing.Body = body
		if err := s.client.UpdateComment(ctx, key, existing); err != nil {
			return "", fmt.Errorf("updating comment %s on %s: %w", existing.ID, key, err)
		}
		log.Debug().Str("key", key).Str("comment", existing.ID).Msg("Updated results comment")
		return Updated, nil
	}

	if err := s.client.AddComment(ctx, key, body); err != nil {
		return "", fmt.Errorf("adding comment on %s: %w", key, err)
	}
	log.Debug().Str("key", key).Msg("Added results comment")
	return Inserted, nil
}

func findMarked(comments []jira.Comment) (jira.Comment, bool) {
	for _, c := range comments {
		if strings.Contains(c.Body, Marker) {
			return c, true
		}
	}
	return jira.Comment{}, false
}
