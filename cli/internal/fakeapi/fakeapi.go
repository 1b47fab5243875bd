// Package fakeapi is an in-memory client.IAPIClient for component tests.
package fakeapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/QTuan97/HC-API-Plat/cli/client"
	"github.com/QTuan97/HC-API-Plat/cli/types"
)

// API records every call and serves projects, rules and logs from memory.
type API struct {
	mu sync.Mutex

	Projects []types.Project
	Rules    []types.Rule
	Logs     []types.LogEntry

	// Calls lists method names in call order.
	Calls []string
	// Errs makes the named method fail.
	Errs map[string]error
	// LastPayload and LastScope hold the arguments of the latest rule write.
	LastPayload *types.RulePayload
	LastScope   client.RuleScope
	// ListLogsHook replaces the default ListLogs behaviour when set.
	ListLogsHook func(ctx context.Context, page, limit int) (*types.LogPage, error)

	nextID int64
}

// New returns an empty fake.
func New() *API {
	return &API{Errs: map[string]error{}, nextID: 100}
}

var _ client.IAPIClient = (*API)(nil)

func (a *API) record(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Calls = append(a.Calls, name)
	return a.Errs[name]
}

// CallCount returns how often name was called.
func (a *API) CallCount(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.Calls {
		if c == name {
			n++
		}
	}
	return n
}

// CallLog returns a copy of the recorded calls.
func (a *API) CallLog() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.Calls...)
}

func notFound(what string) error {
	return &client.APIError{StatusCode: http.StatusNotFound, ErrCode: "NotFound", Message: what + " not found"}
}

func (a *API) HealthCheck(ctx context.Context) error {
	return a.record("HealthCheck")
}

func (a *API) ListProjects(ctx context.Context) ([]types.Project, error) {
	if err := a.record("ListProjects"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]types.Project(nil), a.Projects...), nil
}

func (a *API) CreateProject(ctx context.Context, input types.ProjectInput) (*types.Project, error) {
	if err := a.record("CreateProject"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.Projects {
		if strings.EqualFold(p.Name, input.Name) {
			return nil, &client.APIError{StatusCode: http.StatusConflict, ErrCode: "Conflict", Message: "Project already exists"}
		}
	}
	a.nextID++
	p := types.Project{ID: a.nextID, Name: input.Name, Description: input.Description, BaseURL: input.BaseURL}
	a.Projects = append(a.Projects, p)
	return &p, nil
}

func (a *API) UpdateProject(ctx context.Context, id int64, input types.ProjectInput) (*types.Project, error) {
	if err := a.record("UpdateProject"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.Projects {
		if a.Projects[i].ID == id {
			a.Projects[i].Name = input.Name
			a.Projects[i].Description = input.Description
			a.Projects[i].BaseURL = input.BaseURL
			p := a.Projects[i]
			return &p, nil
		}
	}
	return nil, notFound("Project")
}

func (a *API) DeleteProject(ctx context.Context, id int64) error {
	if err := a.record("DeleteProject"); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.Projects {
		if a.Projects[i].ID == id {
			a.Projects = append(a.Projects[:i], a.Projects[i+1:]...)
			kept := a.Rules[:0]
			for _, r := range a.Rules {
				if r.ProjectID != id {
					kept = append(kept, r)
				}
			}
			a.Rules = kept
			return nil
		}
	}
	return notFound("Project")
}

func inScope(scope client.RuleScope, rule types.Rule) bool {
	return scope.Flat || rule.ProjectID == scope.ProjectID
}

func (a *API) ListRules(ctx context.Context, scope client.RuleScope) ([]types.Rule, error) {
	if err := a.record("ListRules"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []types.Rule
	for _, r := range a.Rules {
		if inScope(scope, r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func ruleFromPayload(id, projectID int64, p *types.RulePayload) types.Rule {
	r := types.Rule{
		ID:           id,
		ProjectID:    projectID,
		Method:       p.Method,
		PathRegex:    p.PathRegex,
		ResponseType: p.ResponseType,
		Delay:        p.Delay,
		StatusCode:   p.StatusCode,
		Headers:      p.Headers,
		BodyTemplate: p.BodyTemplate,
	}
	if p.RequestBody != nil {
		r.RequestBody = *p.RequestBody
	}
	return r
}

func (a *API) CreateRule(ctx context.Context, scope client.RuleScope, payload *types.RulePayload) (*types.Rule, error) {
	if err := a.record("CreateRule"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.LastPayload, a.LastScope = payload, scope
	a.nextID++
	projectID := scope.ProjectID
	if payload.ProjectID != 0 {
		projectID = payload.ProjectID
	}
	r := ruleFromPayload(a.nextID, projectID, payload)
	r.Enabled = true
	a.Rules = append(a.Rules, r)
	return &r, nil
}

func (a *API) UpdateRule(ctx context.Context, scope client.RuleScope, id int64, payload *types.RulePayload) (*types.Rule, error) {
	if err := a.record("UpdateRule"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.LastPayload, a.LastScope = payload, scope
	for i := range a.Rules {
		if a.Rules[i].ID == id && inScope(scope, a.Rules[i]) {
			r := ruleFromPayload(id, a.Rules[i].ProjectID, payload)
			r.Enabled = a.Rules[i].Enabled
			a.Rules[i] = r
			return &r, nil
		}
	}
	return nil, notFound("Rule")
}

func (a *API) DeleteRule(ctx context.Context, scope client.RuleScope, id int64) error {
	if err := a.record("DeleteRule"); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.Rules {
		if a.Rules[i].ID == id && inScope(scope, a.Rules[i]) {
			a.Rules = append(a.Rules[:i], a.Rules[i+1:]...)
			return nil
		}
	}
	return notFound("Rule")
}

func (a *API) ToggleRule(ctx context.Context, scope client.RuleScope, id int64) (*types.Rule, error) {
	if err := a.record("ToggleRule"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.Rules {
		if a.Rules[i].ID == id && inScope(scope, a.Rules[i]) {
			a.Rules[i].Enabled = !a.Rules[i].Enabled
			r := a.Rules[i]
			return &r, nil
		}
	}
	return nil, notFound("Rule")
}

func (a *API) ListLogs(ctx context.Context, page, limit int) (*types.LogPage, error) {
	if err := a.record("ListLogs"); err != nil {
		return nil, err
	}
	if a.ListLogsHook != nil {
		return a.ListLogsHook(ctx, page, limit)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	start := (page - 1) * limit
	if start < 0 || limit <= 0 {
		return nil, fmt.Errorf("bad page %d/%d", page, limit)
	}
	result := &types.LogPage{Logs: []types.LogEntry{}, Total: len(a.Logs)}
	for i := start; i < len(a.Logs) && i < start+limit; i++ {
		result.Logs = append(result.Logs, a.Logs[i])
	}
	return result, nil
}

func (a *API) ClearLogs(ctx context.Context) (int, error) {
	if err := a.record("ClearLogs"); err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.Logs)
	a.Logs = nil
	return n, nil
}
