package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const commentPageSize = 100

type dcClient struct {
	cfg        Config
	httpClient *http.Client

	throttleMu  sync.Mutex
	lastRequest time.Time

	// Project metadata cache. Issue state is never cached.
	cache      map[string]*cacheEntry
	cacheMutex sync.Mutex
}

type cacheEntry struct {
	Value      *Project
	Expiration time.Time
}

// NewDataCenterClient creates a client for the Jira Server / Data Center REST v2 API.
func NewDataCenterClient(cfg Config) Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &dcClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		cache: make(map[string]*cacheEntry),
	}
}

func (c *dcClient) throttle() {
	if c.cfg.RequestDelay <= 0 {
		return
	}
	c.throttleMu.Lock()
	defer c.throttleMu.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < c.cfg.RequestDelay {
		wait := c.cfg.RequestDelay - elapsed
		log.Debug().Dur("wait", wait).Msg("Throttling Jira request")
		time.Sleep(wait)
	}
	c.lastRequest = time.Now()
}

func (c *dcClient) authenticateRequest(req *http.Request) {
	// 1. Prioritize Personal Access Token (PAT)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.Token))
		return
	}

	// 2. Fallback to session cookies
	cookies := []struct {
		name  string
		value string
	}{
		{"atlassian.xsrf.token", c.cfg.XsrfToken},
		{"JSESSIONID", c.cfg.SessionID},
		{"seraph.rememberme.cookie", c.cfg.RememberMe},
	}

	var cookiePairs []string
	for _, cookie := range cookies {
		if cookie.value != "" {
			// Built by hand: net/http's RFC 6265 validation drops quoted Jira cookie values.
			cookiePairs = append(cookiePairs, fmt.Sprintf("%s=%s", cookie.name, cookie.value))
		}
	}

	if len(cookiePairs) > 0 {
		req.Header.Set("Cookie", strings.Join(cookiePairs, "; "))
		// Data Center rejects cookie-authenticated writes without this header.
		req.Header.Set("X-Atlassian-Token", "no-check")
	}
}

// do sends a request and decodes a 2xx JSON body into result (when non-nil).
// subject names the addressed resource for error messages.
func (c *dcClient) do(ctx context.Context, method, path string, body, result any, subject string) error {
	c.throttle()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request for %s: %w", subject, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authenticateRequest(req)

	log.Debug().Str("method", method).Str("path", path).Msg("Jira request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", subject, ErrIssueNotFound)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("Jira authentication failed (%d) for %s. Please check your token or session cookies.", resp.StatusCode, subject)
		case http.StatusTooManyRequests:
			retryAfter := resp.Header.Get("Retry-After")
			if retryAfter != "" {
				return fmt.Errorf("Jira rate limit exceeded (429). Retry after %s seconds.", retryAfter)
			}
			return fmt.Errorf("Jira rate limit exceeded (429).")
		default:
			var jiraErr ErrorResponse
			raw, _ := io.ReadAll(resp.Body)
			if json.Unmarshal(raw, &jiraErr) == nil && len(jiraErr.ErrorMessages) > 0 {
				return fmt.Errorf("Jira API returned status %d for %s: %s", resp.StatusCode, subject, strings.Join(jiraErr.ErrorMessages, "; "))
			}
			return fmt.Errorf("Jira API returned status %d for %s", resp.StatusCode, subject)
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response for %s: %w", subject, err)
	}
	return nil
}

func issuePath(key string, parts ...string) string {
	p := "/rest/api/2/issue/" + url.PathEscape(key)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func (c *dcClient) GetStatusFor(ctx context.Context, key string) (IssueStatus, error) {
	var issue IssueDTO
	err := c.do(ctx, http.MethodGet, issuePath(key)+"?fields=status", nil, &issue, "issue "+key)
	if err != nil {
		if isNotFound(err) {
			return IssueStatus{}, nil
		}
		return IssueStatus{}, err
	}
	return IssueStatus{Name: issue.Fields.Status.Name, Found: true}, nil
}

func (c *dcClient) GetCommentsFor(ctx context.Context, key string) ([]Comment, error) {
	var comments []Comment
	startAt := 0
	for {
		params := url.Values{}
		params.Set("startAt", strconv.Itoa(startAt))
		params.Set("maxResults", strconv.Itoa(commentPageSize))

		var page CommentPage
		if err := c.do(ctx, http.MethodGet, issuePath(key, "comment")+"?"+params.Encode(), nil, &page, "comments of "+key); err != nil {
			return nil, err
		}
		for _, dto := range page.Comments {
			comments = append(comments, dto.toComment())
		}

		startAt += len(page.Comments)
		if len(page.Comments) == 0 || startAt >= page.Total {
			break
		}
	}
	return comments, nil
}

func (c *dcClient) AddComment(ctx context.Context, key string, body string) error {
	payload := map[string]string{"body": body}
	return c.do(ctx, http.MethodPost, issuePath(key, "comment"), payload, nil, "comment on "+key)
}

func (c *dcClient) UpdateComment(ctx context.Context, key string, comment Comment) error {
	payload := map[string]string{"body": comment.Body}
	path := issuePath(key, "comment", url.PathEscape(comment.ID))
	return c.do(ctx, http.MethodPut, path, payload, nil, fmt.Sprintf("comment %s on %s", comment.ID, key))
}

// DoTransition resolves the transition by name among those currently
// available on the issue and applies it.
func (c *dcClient) DoTransition(ctx context.Context, key string, transition string) error {
	var available TransitionsResponse
	if err := c.do(ctx, http.MethodGet, issuePath(key, "transitions"), nil, &available, "transitions of "+key); err != nil {
		return err
	}

	var id string
	for _, t := range available.Transitions {
		if strings.EqualFold(t.Name, transition) {
			id = t.ID
			break
		}
	}
	if id == "" {
		return fmt.Errorf("%q on %s: %w", transition, key, ErrNoSuchTransition)
	}

	payload := map[string]any{
		"transition": map[string]string{"id": id},
	}
	log.Debug().Str("key", key).Str("transition", transition).Str("id", id).Msg("Applying transition")
	return c.do(ctx, http.MethodPost, issuePath(key, "transitions"), payload, nil, "transition of "+key)
}

func (c *dcClient) GetProject(ctx context.Context, key string) (*Project, error) {
	cacheKey := "project:" + key
	c.cacheMutex.Lock()
	if entry, ok := c.cache[cacheKey]; ok && time.Now().Before(entry.Expiration) {
		c.cacheMutex.Unlock()
		log.Debug().Str("key", cacheKey).Msg("Cache hit")
		return entry.Value, nil
	}
	c.cacheMutex.Unlock()

	var dto ProjectDTO
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/project/"+url.PathEscape(key), nil, &dto, "project "+key); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("project %s not found", key)
		}
		return nil, err
	}

	project := &Project{ID: dto.ID, Key: dto.Key, Name: dto.Name}
	c.cacheMutex.Lock()
	c.cache[cacheKey] = &cacheEntry{Value: project, Expiration: time.Now().Add(5 * time.Minute)}
	c.cacheMutex.Unlock()
	return project, nil
}
