package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/QTuan97/HC-API-Plat/cli/types"
)

// GlobalFlags holds global CLI configuration
type GlobalFlags struct {
	APIAddr   string
	Timeout   time.Duration
	AssumeYes bool
}

// APIError represents an error from the admin API. Message is the raw
// response text and is what the user sees.
type APIError struct {
	StatusCode int
	ErrCode    string
	Message    string
}

func (e *APIError) Error() string {
	if e.ErrCode != "" {
		return fmt.Sprintf("failed with status %d (%s): %s", e.StatusCode, e.ErrCode, e.Message)
	}
	return fmt.Sprintf("failed with status %d: %s", e.StatusCode, e.Message)
}

// ErrorText returns the text to show for err: the server's own message for
// API errors, the error string otherwise.
func ErrorText(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return strings.TrimSpace(apiErr.Message)
	}
	return err.Error()
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// RuleScope selects the rule collection: one project's rules, or the flat
// /api/rules collection. ProjectID is still sent on flat creates.
type RuleScope struct {
	ProjectID int64
	Flat      bool
}

// ProjectScope selects /api/projects/{id}/rules.
func ProjectScope(projectID int64) RuleScope {
	return RuleScope{ProjectID: projectID}
}

// FlatScope selects /api/rules. projectID is used for creates and may be 0
// for read-only use.
func FlatScope(projectID int64) RuleScope {
	return RuleScope{ProjectID: projectID, Flat: true}
}

func (s RuleScope) rulesPath() string {
	if s.Flat {
		return "/api/rules"
	}
	return fmt.Sprintf("/api/projects/%d/rules", s.ProjectID)
}

func (s RuleScope) rulePath(id int64) string {
	return s.rulesPath() + "/" + strconv.FormatInt(id, 10)
}

// String describes the scope for messages.
func (s RuleScope) String() string {
	if s.Flat {
		return "all rules"
	}
	return fmt.Sprintf("project %d", s.ProjectID)
}

// IAPIClient defines the interface for interacting with the admin API
type IAPIClient interface {
	// Project operations
	ListProjects(ctx context.Context) ([]types.Project, error)
	CreateProject(ctx context.Context, input types.ProjectInput) (*types.Project, error)
	UpdateProject(ctx context.Context, id int64, input types.ProjectInput) (*types.Project, error)
	DeleteProject(ctx context.Context, id int64) error

	// Rule operations
	ListRules(ctx context.Context, scope RuleScope) ([]types.Rule, error)
	CreateRule(ctx context.Context, scope RuleScope, payload *types.RulePayload) (*types.Rule, error)
	UpdateRule(ctx context.Context, scope RuleScope, id int64, payload *types.RulePayload) (*types.Rule, error)
	DeleteRule(ctx context.Context, scope RuleScope, id int64) error
	ToggleRule(ctx context.Context, scope RuleScope, id int64) (*types.Rule, error)

	// Log operations
	ListLogs(ctx context.Context, page, limit int) (*types.LogPage, error)
	ClearLogs(ctx context.Context) (int, error)

	// Health check
	HealthCheck(ctx context.Context) error
}

// APIClient is the concrete implementation of IAPIClient
type APIClient struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewAPIClient creates a new API client instance
func NewAPIClient(baseURL string, timeout time.Duration) (*APIClient, error) {
	parsedURL, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API address: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme: %s (expected http or https)", parsedURL.Scheme)
	}

	return &APIClient{
		baseURL:    parsedURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// do sends one request. A non-nil body is sent as JSON; a non-nil out receives
// the decoded 2xx response. Non-2xx responses become *APIError.
func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(bodyBytes)),
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			apiErr.ErrCode = "NotFound"
		case http.StatusConflict:
			apiErr.ErrCode = "Conflict"
		case http.StatusBadRequest:
			apiErr.ErrCode = "BadRequest"
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// HealthCheck verifies that the admin API is reachable
func (c *APIClient) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

// ListProjects retrieves all projects
func (c *APIClient) ListProjects(ctx context.Context) ([]types.Project, error) {
	var projects []types.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// CreateProject creates a project
func (c *APIClient) CreateProject(ctx context.Context, input types.ProjectInput) (*types.Project, error) {
	var project types.Project
	if err := c.do(ctx, http.MethodPost, "/api/projects", input, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// UpdateProject replaces a project
func (c *APIClient) UpdateProject(ctx context.Context, id int64, input types.ProjectInput) (*types.Project, error) {
	var project types.Project
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/projects/%d", id), input, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteProject deletes a project and its rules
func (c *APIClient) DeleteProject(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/projects/%d", id), nil, nil)
}

// ListRules retrieves the rules of a scope
func (c *APIClient) ListRules(ctx context.Context, scope RuleScope) ([]types.Rule, error) {
	var rules []types.Rule
	if err := c.do(ctx, http.MethodGet, scope.rulesPath(), nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// CreateRule creates a rule in the scope
func (c *APIClient) CreateRule(ctx context.Context, scope RuleScope, payload *types.RulePayload) (*types.Rule, error) {
	if scope.Flat && payload.ProjectID == 0 {
		payload.ProjectID = scope.ProjectID
	}
	var rule types.Rule
	if err := c.do(ctx, http.MethodPost, scope.rulesPath(), payload, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// UpdateRule replaces a rule
func (c *APIClient) UpdateRule(ctx context.Context, scope RuleScope, id int64, payload *types.RulePayload) (*types.Rule, error) {
	var rule types.Rule
	if err := c.do(ctx, http.MethodPut, scope.rulePath(id), payload, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// DeleteRule deletes a rule
func (c *APIClient) DeleteRule(ctx context.Context, scope RuleScope, id int64) error {
	return c.do(ctx, http.MethodDelete, scope.rulePath(id), nil, nil)
}

// ToggleRule flips a rule's enabled flag on the server
func (c *APIClient) ToggleRule(ctx context.Context, scope RuleScope, id int64) (*types.Rule, error) {
	var rule types.Rule
	if err := c.do(ctx, http.MethodPost, scope.rulePath(id)+"/toggle", nil, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListLogs retrieves one page of recorded requests
func (c *APIClient) ListLogs(ctx context.Context, page, limit int) (*types.LogPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	var logPage types.LogPage
	if err := c.do(ctx, http.MethodGet, "/api/logs?"+query.Encode(), nil, &logPage); err != nil {
		return nil, err
	}
	return &logPage, nil
}

// ClearLogs deletes every recorded request and returns how many were removed
func (c *APIClient) ClearLogs(ctx context.Context) (int, error) {
	var result struct {
		Deleted int `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/logs", nil, &result); err != nil {
		return 0, err
	}
	return result.Deleted, nil
}
