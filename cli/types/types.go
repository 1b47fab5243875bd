package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Response modes of a rule
const (
	ResponseSingle   = "single"
	ResponseWeighted = "weighted"
)

// Project groups mock rules
type Project struct {
	ID          int64     `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	BaseURL     string    `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// ProjectInput is the create-or-update payload for a project
type ProjectInput struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	BaseURL     string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// WeightedEntry is one response profile of a weighted rule
type WeightedEntry struct {
	Weight     int               `json:"weight" yaml:"weight"`
	Delay      int               `json:"delay" yaml:"delay"`
	StatusCode int               `json:"status_code" yaml:"status_code"`
	Headers    map[string]string `json:"headers" yaml:"headers"`
	Template   string            `json:"template" yaml:"template"`
}

// BodyTemplate is {"template": ...} in single mode and an array of weighted
// entries in weighted mode.
type BodyTemplate struct {
	Template string
	Entries  []WeightedEntry
	Weighted bool
}

// MarshalJSON implements json.Marshaler
func (b BodyTemplate) MarshalJSON() ([]byte, error) {
	if b.Weighted {
		entries := b.Entries
		if entries == nil {
			entries = []WeightedEntry{}
		}
		return json.Marshal(entries)
	}
	return json.Marshal(map[string]string{"template": b.Template})
}

// UnmarshalJSON implements json.Unmarshaler
func (b *BodyTemplate) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*b = BodyTemplate{}
		return nil
	}

	switch trimmed[0] {
	case '[':
		var entries []WeightedEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return err
		}
		*b = BodyTemplate{Entries: entries, Weighted: true}
	case '{':
		var single struct {
			Template string `json:"template"`
		}
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*b = BodyTemplate{Template: single.Template}
	default:
		return fmt.Errorf("body_template must be an object or an array")
	}
	return nil
}

// MarshalYAML keeps the same shape as the JSON form
func (b BodyTemplate) MarshalYAML() (interface{}, error) {
	if b.Weighted {
		return b.Entries, nil
	}
	return map[string]string{"template": b.Template}, nil
}

// Rule is a mock rule as returned by the API
type Rule struct {
	ID           int64             `json:"id" yaml:"id"`
	ProjectID    int64             `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Method       string            `json:"method" yaml:"method"`
	PathRegex    string            `json:"path_regex" yaml:"path_regex"`
	Enabled      bool              `json:"enabled" yaml:"enabled"`
	ResponseType string            `json:"response_type" yaml:"response_type"`
	RequestBody  string            `json:"request_body,omitempty" yaml:"request_body,omitempty"`
	Delay        int               `json:"delay" yaml:"delay"`
	StatusCode   int               `json:"status_code" yaml:"status_code"`
	Headers      map[string]string `json:"headers" yaml:"headers"`
	BodyTemplate BodyTemplate      `json:"body_template" yaml:"body_template"`
	CreatedAt    time.Time         `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// IsWeighted reports whether the rule picks among weighted profiles
func (r *Rule) IsWeighted() bool {
	return r.ResponseType == ResponseWeighted || r.BodyTemplate.Weighted
}

// RulePayload is the create-or-update body for a rule. Enabled is left out
// so an update keeps the stored flag.
type RulePayload struct {
	ProjectID    int64             `json:"project_id,omitempty"`
	Method       string            `json:"method"`
	PathRegex    string            `json:"path_regex"`
	ResponseType string            `json:"response_type"`
	RequestBody  *string           `json:"request_body,omitempty"`
	Delay        int               `json:"delay"`
	StatusCode   int               `json:"status_code"`
	Headers      map[string]string `json:"headers"`
	BodyTemplate BodyTemplate      `json:"body_template"`
}

// LogResponse is what the mock engine answered
type LogResponse struct {
	Body string `json:"body" yaml:"body"`
}

// LogEntry is one recorded request
type LogEntry struct {
	ID            int64             `json:"id" yaml:"id"`
	Timestamp     time.Time         `json:"timestamp" yaml:"timestamp"`
	Method        string            `json:"method" yaml:"method"`
	Path          string            `json:"path" yaml:"path"`
	MatchedRuleID *int64            `json:"matched_rule_id,omitempty" yaml:"matched_rule_id,omitempty"`
	StatusCode    int               `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Headers       map[string]string `json:"headers" yaml:"headers"`
	Query         map[string]string `json:"query" yaml:"query"`
	Body          string            `json:"body" yaml:"body"`
	Response      LogResponse       `json:"response" yaml:"response"`
}

// LogPage is one page of the log collection
type LogPage struct {
	Logs  []LogEntry `json:"logs" yaml:"logs"`
	Total int        `json:"total" yaml:"total"`
}
