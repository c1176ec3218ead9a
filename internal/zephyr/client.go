// Package zephyr mirrors aggregated verdicts into Zephyr for Jira test executions.
package zephyr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"jira-sync/internal/tally"

	"github.com/rs/zerolog/log"
)

// ExecutionStatus is a ZAPI execution status id.
type ExecutionStatus int

const (
	Unexecuted ExecutionStatus = -1
	Pass       ExecutionStatus = 1
	Fail       ExecutionStatus = 2
	WIP        ExecutionStatus = 3
	Blocked    ExecutionStatus = 4
)

// StatusFor maps an aggregated verdict to the execution status it records.
func StatusFor(o tally.Outcome) ExecutionStatus {
	switch o {
	case tally.Success:
		return Pass
	case tally.Failure, tally.Error, tally.Compromised:
		return Fail
	case tally.Pending:
		return WIP
	default:
		return Blocked
	}
}

// Client records verdicts against the test executions of each issue.
type Client interface {
	UpdateExecutions(ctx context.Context, verdicts map[string]tally.Outcome) error
}

// Config holds ZAPI connection settings. Authentication mirrors the Jira client.
type Config struct {
	BaseURL   string
	Token     string
	SessionID string
	// Cycle restricts updates to executions in the named cycle. Empty means all.
	Cycle string
}

// Execution is a single test execution returned by a ZQL search.
type Execution struct {
	ID        int    `json:"id"`
	IssueKey  string `json:"issueKey"`
	CycleName string `json:"cycleName"`
	Status    struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"status"`
}

type searchResponse struct {
	Executions []Execution `json:"executions"`
	TotalCount int         `json:"totalCount"`
}

type zapiClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a ZAPI client.
func NewClient(cfg Config) Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &zapiClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// UpdateExecutions updates every execution of every key. Failures for one key
// do not stop the others; all failures are returned joined.
func (c *zapiClient) UpdateExecutions(ctx context.Context, verdicts map[string]tally.Outcome) error {
	keys := make([]string, 0, len(verdicts))
	for k := range verdicts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		if err := c.updateIssue(ctx, key, StatusFor(verdicts[key])); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (c *zapiClient) updateIssue(ctx context.Context, key string, status ExecutionStatus) error {
	executions, err := c.search(ctx, key)
	if err != nil {
		return err
	}
	if len(executions) == 0 {
		log.Debug().Str("key", key).Str("cycle", c.cfg.Cycle).Msg("No Zephyr executions for issue")
		return nil
	}

	for _, e := range executions {
		if ExecutionStatus(e.Status.ID) == status {
			continue
		}
		body := map[string]string{"status": strconv.Itoa(int(status))}
		path := fmt.Sprintf("/rest/zapi/latest/execution/%d/execute", e.ID)
		if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
			return fmt.Errorf("updating execution %d: %w", e.ID, err)
		}
		log.Info().Str("key", key).Int("execution", e.ID).Int("status", int(status)).Msg("Updated Zephyr execution")
	}
	return nil
}

func (c *zapiClient) search(ctx context.Context, key string) ([]Execution, error) {
	zql := fmt.Sprintf(`issue = "%s"`, key)
	if c.cfg.Cycle != "" {
		zql += fmt.Sprintf(` AND cycleName = "%s"`, strings.ReplaceAll(c.cfg.Cycle, `"`, `\"`))
	}
	params := url.Values{}
	params.Set("zqlQuery", zql)
	params.Set("maxRecords", "100")

	var resp searchResponse
	if err := c.do(ctx, http.MethodGet, "/rest/zapi/latest/zql/executeSearch?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("searching executions: %w", err)
	}
	return resp.Executions, nil
}

func (c *zapiClient) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
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
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	} else if c.cfg.SessionID != "" {
		req.Header.Set("Cookie", "JSESSIONID="+c.cfg.SessionID)
		req.Header.Set("X-Atlassian-Token", "no-check")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Zephyr API returned status %d for %s %s", resp.StatusCode, method, path)
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode Zephyr response: %w", err)
	}
	return nil
}
