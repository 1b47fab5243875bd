package service

import (
	"context"
	"errors"
	"testing"

	"github.com/QTuan97/HC-API-Plat/control-plane/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRuleService(t *testing.T) (*RuleService, *ProjectService, *storage.Project) {
	t.Helper()
	store := storage.NewMemoryStore()
	projects := NewProjectService(store)
	project := &storage.Project{Name: "shop"}
	require.NoError(t, projects.CreateProject(project))
	return NewRuleService(store), projects, project
}

func singleInput() *RuleInput {
	return &RuleInput{
		Method:       "GET",
		PathRegex:    "^/items$",
		StatusCode:   200,
		BodyTemplate: storage.SingleBody("[]"),
	}
}

func TestRuleService_CreateDefaultsEnabled(t *testing.T) {
	rules, _, project := setupRuleService(t)

	rule, err := rules.CreateRule(project.ID, singleInput())
	require.NoError(t, err)
	assert.True(t, rule.Enabled)
	assert.Equal(t, project.ID, rule.ProjectID)
}

func TestRuleService_FlatCreateNeedsProject(t *testing.T) {
	rules, _, project := setupRuleService(t)

	_, err := rules.CreateRule(0, singleInput())
	assert.True(t, errors.Is(err, ErrInvalidInput))

	input := singleInput()
	input.ProjectID = project.ID
	_, err = rules.CreateRule(0, input)
	assert.NoError(t, err)

	input.ProjectID = project.ID + 1
	_, err = rules.CreateRule(0, input)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRuleService_UpdateKeepsEnabledWhenOmitted(t *testing.T) {
	rules, _, project := setupRuleService(t)
	rule, err := rules.CreateRule(project.ID, singleInput())
	require.NoError(t, err)
	_, err = rules.ToggleRule(project.ID, rule.ID)
	require.NoError(t, err)

	update := singleInput()
	update.StatusCode = 503
	updated, err := rules.UpdateRule(project.ID, rule.ID, update)
	require.NoError(t, err)
	assert.False(t, updated.Enabled)
	assert.Equal(t, 503, updated.StatusCode)
}

func TestRuleService_WeightedRevalidation(t *testing.T) {
	rules, _, project := setupRuleService(t)

	input := &RuleInput{
		Method:    "GET",
		PathRegex: "^/pay$",
		BodyTemplate: storage.WeightedBody([]storage.WeightedEntry{
			{Weight: 60, StatusCode: 200},
			{Weight: 30, StatusCode: 500},
		}),
	}
	_, err := rules.CreateRule(project.ID, input)
	require.ErrorIs(t, err, ErrInvalidInput)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Total weight must equal 100% (got 90%)", verr.Message)

	input.BodyTemplate.Entries[1].Weight = 40
	rule, err := rules.CreateRule(project.ID, input)
	require.NoError(t, err)
	assert.Equal(t, storage.ResponseWeighted, rule.ResponseType)
}

func TestRuleService_ScopeIsEnforced(t *testing.T) {
	rules, projects, project := setupRuleService(t)
	other := &storage.Project{Name: "other"}
	require.NoError(t, projects.CreateProject(other))

	rule, err := rules.CreateRule(project.ID, singleInput())
	require.NoError(t, err)

	_, err = rules.ToggleRule(other.ID, rule.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, err, ErrScopeMismatch)
	var detailed *DetailedError
	require.True(t, errors.As(err, &detailed))
	assert.Equal(t, "RULE_SCOPE_MISMATCH", detailed.Code)
	assert.Equal(t, project.ID, detailed.Details["owner_project_id"])
	assert.ErrorIs(t, rules.DeleteRule(other.ID, rule.ID), storage.ErrNotFound)

	// The flat scope reaches every rule.
	_, err = rules.ToggleRule(0, rule.ID)
	assert.NoError(t, err)
}

func TestRuleService_DeletedRuleLeavesList(t *testing.T) {
	rules, _, project := setupRuleService(t)
	rule, err := rules.CreateRule(project.ID, singleInput())
	require.NoError(t, err)

	require.NoError(t, rules.DeleteRule(project.ID, rule.ID))
	list, err := rules.ListRules(project.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = rules.ListRules(project.ID + 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProjectService_DuplicateNames(t *testing.T) {
	_, projects, _ := setupRuleService(t)
	err := projects.CreateProject(&storage.Project{Name: "SHOP"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
	assert.ErrorIs(t, projects.CreateProject(&storage.Project{}), ErrInvalidInput)
}

func TestLogService_Paging(t *testing.T) {
	logs := NewLogService(storage.NewMemoryLogStore(), 50)
	ctx := context.Background()
	for i := 0; i < 45; i++ {
		require.NoError(t, logs.RecordLog(ctx, &storage.LogEntry{Method: "get", Path: "/x"}))
	}

	page, err := logs.ListLogs(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, page.Logs, DefaultLogLimit)
	assert.Equal(t, 45, page.Total)
	assert.Equal(t, "GET", page.Logs[0].Method)

	page, err = logs.ListLogs(ctx, 1, 500)
	require.NoError(t, err)
	assert.Len(t, page.Logs, 45, "limit is clamped to the cap")

	_, err = logs.ListLogs(ctx, -1, 20)
	assert.ErrorIs(t, err, ErrInvalidInput)

	n, err := logs.ClearLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45, n)

	page, err = logs.ListLogs(ctx, 1, 20)
	require.NoError(t, err)
	assert.NotNil(t, page.Logs)
	assert.Empty(t, page.Logs)
}
