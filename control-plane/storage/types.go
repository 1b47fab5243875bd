package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ResponseType selects how a rule answers a matched request.
type ResponseType string

const (
	// ResponseSingle answers with one fixed response profile.
	ResponseSingle ResponseType = "single"
	// ResponseWeighted picks one of several profiles proportionally to their weights.
	ResponseWeighted ResponseType = "weighted"
)

// Project groups rules under a name and an optional public base URL.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	BaseURL     string    `json:"base_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Rule is a mock-response specification matched against method and path.
type Rule struct {
	ID           int64             `json:"id"`
	ProjectID    int64             `json:"project_id"`
	Method       string            `json:"method"`
	PathRegex    string            `json:"path_regex"`
	Enabled      bool              `json:"enabled"`
	ResponseType ResponseType      `json:"response_type"`
	RequestBody  string            `json:"request_body,omitempty"`
	Delay        int               `json:"delay"`
	StatusCode   int               `json:"status_code"`
	Headers      map[string]string `json:"headers"`
	BodyTemplate BodyTemplate      `json:"body_template"`
	CreatedAt    time.Time         `json:"created_at"`
}

// WeightedEntry is one response profile of a weighted rule.
type WeightedEntry struct {
	Weight     int               `json:"weight"`
	Delay      int               `json:"delay"`
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Template   string            `json:"template"`
}

// BodyTemplate is an object ({"template": ...}) for single rules and an
// array of weighted entries for weighted rules.
type BodyTemplate struct {
	Template string
	Entries  []WeightedEntry
	weighted bool
}

// SingleBody returns a single-mode body template.
func SingleBody(template string) BodyTemplate {
	return BodyTemplate{Template: template}
}

// WeightedBody returns a weighted-mode body template.
func WeightedBody(entries []WeightedEntry) BodyTemplate {
	return BodyTemplate{Entries: entries, weighted: true}
}

// IsWeighted reports whether the template was given as an array.
func (b BodyTemplate) IsWeighted() bool {
	return b.weighted
}

// MarshalJSON implements json.Marshaler.
func (b BodyTemplate) MarshalJSON() ([]byte, error) {
	if b.weighted {
		entries := b.Entries
		if entries == nil {
			entries = []WeightedEntry{}
		}
		return json.Marshal(entries)
	}
	return json.Marshal(struct {
		Template string `json:"template"`
	}{Template: b.Template})
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BodyTemplate) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*b = BodyTemplate{}
		return nil
	case trimmed[0] == '[':
		var entries []WeightedEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return fmt.Errorf("body_template: %w", err)
		}
		*b = WeightedBody(entries)
		return nil
	case trimmed[0] == '{':
		var single struct {
			Template string `json:"template"`
		}
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return fmt.Errorf("body_template: %w", err)
		}
		*b = SingleBody(single.Template)
		return nil
	default:
		return fmt.Errorf("body_template must be an object or an array")
	}
}

// LogResponse holds what the engine answered.
type LogResponse struct {
	Body string `json:"body"`
}

// LogEntry is a request recorded by the mock engine. Entries are immutable.
type LogEntry struct {
	ID            int64             `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Method        string            `json:"method"`
	Path          string            `json:"path"`
	MatchedRuleID *int64            `json:"matched_rule_id,omitempty"`
	StatusCode    int               `json:"status_code,omitempty"`
	Headers       map[string]string `json:"headers"`
	Query         map[string]string `json:"query"`
	Body          string            `json:"body"`
	Response      LogResponse       `json:"response"`
}
