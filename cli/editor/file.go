package editor

import (
	"encoding/json"
	"fmt"

	"github.com/QTuan97/HC-API-Plat/cli/types"

	"sigs.k8s.io/yaml"
)

// ruleFile is the on-disk rule format accepted by -f. Headers are maps here
// rather than JSON text.
type ruleFile struct {
	Method       string            `json:"method"`
	PathRegex    string            `json:"path_regex"`
	RequestBody  string            `json:"request_body"`
	ResponseType string            `json:"response_type"`
	Delay        int               `json:"delay"`
	StatusCode   int               `json:"status_code"`
	Headers      map[string]string `json:"headers"`
	Template     string            `json:"template"`
	Entries      []entryFile       `json:"entries"`
}

type entryFile struct {
	Weight     int               `json:"weight"`
	Delay      int               `json:"delay"`
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Template   string            `json:"template"`
}

// ParseFile decodes a YAML or JSON rule file into a form.
func ParseFile(data []byte) (*Form, error) {
	var file ruleFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}

	form := NewForm()
	form.SetMethod(file.Method)
	form.PathRegex = file.PathRegex
	if MethodAllowsBody(form.Method) {
		form.RequestBody = file.RequestBody
	}
	form.Delay = file.Delay
	form.StatusCode = file.StatusCode
	form.Headers = headersText(file.Headers)
	form.Template = file.Template

	mode := file.ResponseType
	if mode == "" {
		mode = types.ResponseSingle
		if len(file.Entries) > 0 {
			mode = types.ResponseWeighted
		}
	}
	for _, e := range file.Entries {
		form.Entries = append(form.Entries, EntryForm{
			Weight:     e.Weight,
			Delay:      e.Delay,
			StatusCode: e.StatusCode,
			Headers:    headersText(e.Headers),
			Template:   e.Template,
		})
	}
	if mode != types.ResponseSingle && mode != types.ResponseWeighted {
		return nil, &ValidationError{Field: "response_type", Message: fmt.Sprintf("unknown response type %q", mode)}
	}
	form.Mode = mode
	return form, nil
}

// MarshalFile renders a form in the -f file format, for round-tripping an
// existing rule through $EDITOR.
func MarshalFile(form *Form) ([]byte, error) {
	file := ruleFile{
		Method:       form.Method,
		PathRegex:    form.PathRegex,
		RequestBody:  form.RequestBody,
		ResponseType: form.Mode,
		Delay:        form.Delay,
		StatusCode:   form.StatusCode,
		Template:     form.Template,
	}
	if err := json.Unmarshal([]byte(orEmptyObject(form.Headers)), &file.Headers); err != nil {
		return nil, &ParseError{Field: "headers", Err: err}
	}
	for i, e := range form.Entries {
		entry := entryFile{Weight: e.Weight, Delay: e.Delay, StatusCode: e.StatusCode, Template: e.Template}
		if err := json.Unmarshal([]byte(orEmptyObject(e.Headers)), &entry.Headers); err != nil {
			return nil, &ParseError{Field: fmt.Sprintf("entries[%d].headers", i), Err: err}
		}
		file.Entries = append(file.Entries, entry)
	}
	return yaml.Marshal(file)
}

func orEmptyObject(text string) string {
	if text == "" {
		return "{}"
	}
	return text
}
