package service

import (
	"errors"

	"github.com/QTuan97/HC-API-Plat/control-plane/storage"
)

// RuleInput is the create-or-update payload for a rule. Enabled is optional so
// that an update can leave the stored flag untouched.
type RuleInput struct {
	ProjectID    int64                `json:"project_id,omitempty"`
	Method       string               `json:"method"`
	PathRegex    string               `json:"path_regex"`
	Enabled      *bool                `json:"enabled,omitempty"`
	ResponseType storage.ResponseType `json:"response_type,omitempty"`
	RequestBody  string               `json:"request_body,omitempty"`
	Delay        int                  `json:"delay"`
	StatusCode   int                  `json:"status_code"`
	Headers      map[string]string    `json:"headers"`
	BodyTemplate storage.BodyTemplate `json:"body_template"`
}

func (in *RuleInput) toRule() *storage.Rule {
	return &storage.Rule{
		ProjectID:    in.ProjectID,
		Method:       in.Method,
		PathRegex:    in.PathRegex,
		ResponseType: in.ResponseType,
		RequestBody:  in.RequestBody,
		Delay:        in.Delay,
		StatusCode:   in.StatusCode,
		Headers:      in.Headers,
		BodyTemplate: in.BodyTemplate,
	}
}

// RuleService provides business logic for rule operations. A projectID of 0
// selects the flat rule collection.
type RuleService struct {
	store storage.IRuleStore
}

// NewRuleService creates a new RuleService instance.
func NewRuleService(store storage.IRuleStore) *RuleService {
	return &RuleService{store: store}
}

// ListRules retrieves the rules of a project, or all rules when projectID is 0.
func (s *RuleService) ListRules(projectID int64) ([]*storage.Rule, error) {
	if projectID != 0 {
		if _, err := s.store.GetProject(projectID); err != nil {
			return nil, err
		}
	}
	return s.store.ListRules(projectID), nil
}

// CreateRule validates and stores a new rule. New rules are enabled unless the
// payload says otherwise.
func (s *RuleService) CreateRule(projectID int64, input *RuleInput) (*storage.Rule, error) {
	if input == nil {
		return nil, ErrInvalidInput
	}
	if projectID != 0 {
		input.ProjectID = projectID
	}
	if input.ProjectID <= 0 {
		return nil, errors.Join(ErrInvalidInput, &ValidationError{Field: "project_id", Message: "project_id is required"})
	}

	rule := input.toRule()
	rule.Enabled = input.Enabled == nil || *input.Enabled
	if err := ValidateRule(rule); err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}

	if err := s.store.CreateRule(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// UpdateRule validates and replaces an existing rule, keeping its project.
func (s *RuleService) UpdateRule(projectID, id int64, input *RuleInput) (*storage.Rule, error) {
	if input == nil || id <= 0 {
		return nil, ErrInvalidInput
	}

	existing, err := s.scopedRule(projectID, id)
	if err != nil {
		return nil, err
	}

	rule := input.toRule()
	rule.ID = id
	rule.Enabled = existing.Enabled
	if input.Enabled != nil {
		rule.Enabled = *input.Enabled
	}
	if err := ValidateRule(rule); err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}

	if err := s.store.UpdateRule(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// DeleteRule deletes a rule.
func (s *RuleService) DeleteRule(projectID, id int64) error {
	if _, err := s.scopedRule(projectID, id); err != nil {
		return err
	}
	return s.store.DeleteRule(id)
}

// ToggleRule flips the enabled flag of a rule and returns the stored result.
func (s *RuleService) ToggleRule(projectID, id int64) (*storage.Rule, error) {
	if _, err := s.scopedRule(projectID, id); err != nil {
		return nil, err
	}
	return s.store.ToggleRule(id)
}

// scopedRule loads a rule and checks it belongs to projectID when one is given.
func (s *RuleService) scopedRule(projectID, id int64) (*storage.Rule, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	rule, err := s.store.GetRule(id)
	if err != nil {
		return nil, err
	}
	if projectID != 0 && rule.ProjectID != projectID {
		return nil, NewDetailedError(
			errors.Join(storage.ErrNotFound, ErrScopeMismatch),
			"RULE_SCOPE_MISMATCH",
			ErrScopeMismatch.Error(),
			map[string]interface{}{"rule_id": id, "project_id": projectID, "owner_project_id": rule.ProjectID},
		)
	}
	return rule, nil
}
