// Package editor builds and validates rule payloads from raw form input.
package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/QTuan97/HC-API-Plat/cli/types"
)

const (
	// MaxEntries is the most weighted entries a rule may carry.
	MaxEntries = 4
	// TotalWeight is what the entry weights must add up to.
	TotalWeight = 100
	// DefaultStatusCode replaces an unset status code.
	DefaultStatusCode = 200
)

// Methods lists the methods a rule can match, in display order.
var Methods = []string{"GET", "POST", "PUT", "DELETE", "PATCH"}

// ErrTooManyEntries is returned when adding a fifth weighted entry.
var ErrTooManyEntries = fmt.Errorf("a rule can have at most %d weighted entries", MaxEntries)

// ValidationError blocks a submission before it reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ParseError reports header text that is not a JSON object of strings.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: invalid JSON: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// EntryForm is the raw input of one weighted entry.
type EntryForm struct {
	Weight     int
	Delay      int
	StatusCode int
	Headers    string
	Template   string
}

// Form is the raw state of the rule editor. Headers fields hold JSON text as
// typed by the user.
type Form struct {
	Method      string
	PathRegex   string
	RequestBody string
	Mode        string

	Delay      int
	StatusCode int
	Headers    string
	Template   string

	Entries []EntryForm
}

// NewForm returns an empty single-mode GET form.
func NewForm() *Form {
	return &Form{
		Method:     "GET",
		Mode:       types.ResponseSingle,
		StatusCode: DefaultStatusCode,
		Headers:    "{}",
	}
}

// MethodAllowsBody reports whether a request body can be matched for method.
func MethodAllowsBody(method string) bool {
	switch strings.ToUpper(method) {
	case "POST", "PUT", "PATCH":
		return true
	}
	return false
}

// SetMethod changes the method. Methods without a body clear the request body.
func (f *Form) SetMethod(method string) {
	f.Method = strings.ToUpper(strings.TrimSpace(method))
	if !MethodAllowsBody(f.Method) {
		f.RequestBody = ""
	}
}

// SetMode switches between single and weighted. Entering weighted mode with
// no entries adds one holding the whole weight.
func (f *Form) SetMode(mode string) error {
	switch mode {
	case types.ResponseSingle:
	case types.ResponseWeighted:
		if len(f.Entries) == 0 {
			f.Entries = append(f.Entries, EntryForm{
				Weight:     TotalWeight,
				StatusCode: DefaultStatusCode,
				Headers:    "{}",
			})
		}
	default:
		return &ValidationError{Field: "response_type", Message: fmt.Sprintf("unknown response type %q", mode)}
	}
	f.Mode = mode
	return nil
}

// AddEntry appends a weighted entry, refusing a fifth one.
func (f *Form) AddEntry(entry EntryForm) error {
	if len(f.Entries) >= MaxEntries {
		return ErrTooManyEntries
	}
	f.Entries = append(f.Entries, entry)
	return nil
}

// RemoveEntry drops entry i; later entries move up one position.
func (f *Form) RemoveEntry(i int) error {
	if i < 0 || i >= len(f.Entries) {
		return fmt.Errorf("no weighted entry %d", i+1)
	}
	f.Entries = append(f.Entries[:i], f.Entries[i+1:]...)
	return nil
}

// TotalWeight sums the entry weights.
func (f *Form) TotalWeight() int {
	sum := 0
	for _, e := range f.Entries {
		sum += e.Weight
	}
	return sum
}

// Build validates the form and produces the payload sent on create and update.
func (f *Form) Build() (*types.RulePayload, error) {
	method := strings.ToUpper(strings.TrimSpace(f.Method))
	if !validMethod(method) {
		return nil, &ValidationError{Field: "method", Message: fmt.Sprintf("Unsupported method %q", f.Method)}
	}
	if strings.TrimSpace(f.PathRegex) == "" {
		return nil, &ValidationError{Field: "path_regex", Message: "Path regex is required"}
	}

	payload := &types.RulePayload{
		Method:    method,
		PathRegex: f.PathRegex,
	}

	if MethodAllowsBody(method) {
		if body := strings.TrimSpace(f.RequestBody); body != "" {
			payload.RequestBody = &body
		}
	}

	if f.Mode == types.ResponseWeighted {
		if err := f.buildWeighted(payload); err != nil {
			return nil, err
		}
		return payload, nil
	}

	if err := f.buildSingle(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (f *Form) buildSingle(payload *types.RulePayload) error {
	if f.Delay < 0 {
		return &ValidationError{Field: "delay", Message: "Delay must not be negative"}
	}
	headers, err := parseHeaders("headers", f.Headers)
	if err != nil {
		return err
	}

	payload.ResponseType = types.ResponseSingle
	payload.Delay = f.Delay
	payload.StatusCode = statusOrDefault(f.StatusCode)
	payload.Headers = headers
	payload.BodyTemplate = types.BodyTemplate{Template: f.Template}
	return nil
}

func (f *Form) buildWeighted(payload *types.RulePayload) error {
	if len(f.Entries) == 0 {
		return &ValidationError{Field: "body_template", Message: "Add at least one weighted entry"}
	}
	if len(f.Entries) > MaxEntries {
		return &ValidationError{Field: "body_template", Message: ErrTooManyEntries.Error()}
	}

	if total := f.TotalWeight(); total != TotalWeight {
		return &ValidationError{
			Field:   "weight",
			Message: fmt.Sprintf("Total weight must equal %d%% (got %d%%)", TotalWeight, total),
		}
	}

	entries := make([]types.WeightedEntry, 0, len(f.Entries))
	for i, e := range f.Entries {
		if e.Weight < 0 || e.Weight > TotalWeight {
			return &ValidationError{Field: fmt.Sprintf("entries[%d].weight", i), Message: fmt.Sprintf("Entry %d: weight must be between 0 and 100", i+1)}
		}
		if e.Delay < 0 {
			return &ValidationError{Field: fmt.Sprintf("entries[%d].delay", i), Message: fmt.Sprintf("Entry %d: delay must not be negative", i+1)}
		}
		headers, err := parseHeaders(fmt.Sprintf("entries[%d].headers", i), e.Headers)
		if err != nil {
			return err
		}
		entries = append(entries, types.WeightedEntry{
			Weight:     e.Weight,
			Delay:      e.Delay,
			StatusCode: statusOrDefault(e.StatusCode),
			Headers:    headers,
			Template:   e.Template,
		})
	}

	payload.ResponseType = types.ResponseWeighted
	payload.Headers = map[string]string{}
	payload.BodyTemplate = types.BodyTemplate{Entries: entries, Weighted: true}
	return nil
}

func parseHeaders(field, text string) (map[string]string, error) {
	headers := map[string]string{}
	if strings.TrimSpace(text) == "" {
		return headers, nil
	}
	if err := json.Unmarshal([]byte(text), &headers); err != nil {
		return nil, &ParseError{Field: field, Err: err}
	}
	if headers == nil {
		// "null" decodes to a nil map
		headers = map[string]string{}
	}
	return headers, nil
}

func statusOrDefault(status int) int {
	if status == 0 {
		return DefaultStatusCode
	}
	return status
}

func validMethod(method string) bool {
	for _, m := range Methods {
		if m == method {
			return true
		}
	}
	return false
}

// FormFromRule pre-populates a form from a rule already loaded in a list.
func FormFromRule(rule types.Rule) *Form {
	f := &Form{
		Method:      rule.Method,
		PathRegex:   rule.PathRegex,
		RequestBody: rule.RequestBody,
		Mode:        types.ResponseSingle,
		Delay:       rule.Delay,
		StatusCode:  rule.StatusCode,
		Headers:     headersText(rule.Headers),
		Template:    rule.BodyTemplate.Template,
	}

	if rule.IsWeighted() {
		f.Mode = types.ResponseWeighted
		f.Delay, f.StatusCode, f.Headers, f.Template = 0, DefaultStatusCode, "{}", ""
		for _, e := range rule.BodyTemplate.Entries {
			f.Entries = append(f.Entries, EntryForm{
				Weight:     e.Weight,
				Delay:      e.Delay,
				StatusCode: e.StatusCode,
				Headers:    headersText(e.Headers),
				Template:   e.Template,
			})
		}
	}
	return f
}

func headersText(headers map[string]string) string {
	if len(headers) == 0 {
		return "{}"
	}
	data, err := json.Marshal(headers)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// IsValidationError reports whether err blocked a submission client-side.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	var parseErr *ParseError
	return errors.As(err, &validationErr) || errors.As(err, &parseErr)
}
