package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/QTuan97/HC-API-Plat/control-plane/storage"
)

const (
	// MaxWeightedEntries is the largest number of profiles a weighted rule may carry.
	MaxWeightedEntries = 4
	// TotalWeight is the sum the weights of a weighted rule must reach.
	TotalWeight = 100
	// DefaultStatusCode is used when a rule or entry leaves status_code unset.
	DefaultStatusCode = 200

	maxProjectNameLength = 100
)

var allowedMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"DELETE": true,
	"PATCH":  true,
}

// NormalizeMethod upper-cases a method name.
func NormalizeMethod(method string) string {
	return strings.ToUpper(strings.TrimSpace(method))
}

// MethodAllowsBody reports whether a request body may be matched for method.
func MethodAllowsBody(method string) bool {
	switch strings.ToUpper(method) {
	case "POST", "PUT", "PATCH":
		return true
	}
	return false
}

// WeightSumMessage is the message shown when weights do not add up.
func WeightSumMessage(sum int) string {
	return fmt.Sprintf("Total weight must equal %d%% (got %d%%)", TotalWeight, sum)
}

// ValidateProject validates and normalizes a project in place.
func ValidateProject(project *storage.Project) error {
	if project == nil {
		return &ValidationError{Field: "project", Message: "project cannot be nil"}
	}

	project.Name = strings.TrimSpace(project.Name)
	project.BaseURL = strings.TrimSpace(project.BaseURL)

	if project.Name == "" {
		return &ValidationError{Field: "name", Message: "project name is required"}
	}
	if len(project.Name) > maxProjectNameLength {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("project name must be at most %d characters", maxProjectNameLength)}
	}

	if project.BaseURL != "" {
		u, err := url.Parse(project.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ValidationError{Field: "base_url", Message: "base_url must be an absolute http(s) URL"}
		}
	}
	return nil
}

// ValidateRule validates and normalizes a rule in place. The response type is
// inferred from the body_template shape when it is not given.
func ValidateRule(rule *storage.Rule) error {
	if rule == nil {
		return &ValidationError{Field: "rule", Message: "rule cannot be nil"}
	}

	rule.Method = NormalizeMethod(rule.Method)
	if !allowedMethods[rule.Method] {
		return &ValidationError{Field: "method", Message: "method must be one of GET, POST, PUT, DELETE, PATCH"}
	}

	if strings.TrimSpace(rule.PathRegex) == "" {
		return &ValidationError{Field: "path_regex", Message: "path_regex is required"}
	}
	if _, err := regexp.Compile(rule.PathRegex); err != nil {
		return &ValidationError{Field: "path_regex", Message: "invalid regular expression: " + err.Error()}
	}

	if strings.TrimSpace(rule.RequestBody) == "" {
		rule.RequestBody = ""
	} else if !MethodAllowsBody(rule.Method) {
		return &ValidationError{Field: "request_body", Message: "request_body is only allowed for POST, PUT and PATCH"}
	}

	switch rule.ResponseType {
	case "":
		if rule.BodyTemplate.IsWeighted() {
			rule.ResponseType = storage.ResponseWeighted
		} else {
			rule.ResponseType = storage.ResponseSingle
		}
	case storage.ResponseSingle:
		if rule.BodyTemplate.IsWeighted() {
			return &ValidationError{Field: "body_template", Message: "single rules take an object body_template"}
		}
	case storage.ResponseWeighted:
		if !rule.BodyTemplate.IsWeighted() {
			return &ValidationError{Field: "body_template", Message: "weighted rules take an array body_template"}
		}
	default:
		return &ValidationError{Field: "response_type", Message: "response_type must be single or weighted"}
	}

	if rule.ResponseType == storage.ResponseWeighted {
		return validateWeighted(rule)
	}
	return validateSingle(rule)
}

func validateSingle(rule *storage.Rule) error {
	if rule.StatusCode == 0 {
		rule.StatusCode = DefaultStatusCode
	}
	if err := validateProfile("", rule.Delay, rule.StatusCode); err != nil {
		return err
	}
	if rule.Headers == nil {
		rule.Headers = map[string]string{}
	}
	return nil
}

func validateWeighted(rule *storage.Rule) error {
	entries := rule.BodyTemplate.Entries
	if len(entries) == 0 || len(entries) > MaxWeightedEntries {
		return &ValidationError{Field: "body_template", Message: fmt.Sprintf("weighted rules need 1 to %d entries", MaxWeightedEntries)}
	}

	sum := 0
	for i := range entries {
		entry := &entries[i]
		field := fmt.Sprintf("body_template[%d]", i)
		if entry.Weight < 0 || entry.Weight > TotalWeight {
			return &ValidationError{Field: field + ".weight", Message: "weight must be between 0 and 100"}
		}
		if entry.StatusCode == 0 {
			entry.StatusCode = DefaultStatusCode
		}
		if err := validateProfile(field+".", entry.Delay, entry.StatusCode); err != nil {
			return err
		}
		if entry.Headers == nil {
			entry.Headers = map[string]string{}
		}
		sum += entry.Weight
	}

	if sum != TotalWeight {
		return &ValidationError{Message: WeightSumMessage(sum)}
	}

	// Per-entry profiles replace the top-level ones.
	rule.Delay = 0
	rule.StatusCode = 0
	rule.Headers = map[string]string{}
	return nil
}

func validateProfile(prefix string, delay, status int) error {
	if delay < 0 {
		return &ValidationError{Field: prefix + "delay", Message: "delay must not be negative"}
	}
	if status < 100 || status > 599 {
		return &ValidationError{Field: prefix + "status_code", Message: "status_code must be between 100 and 599"}
	}
	return nil
}
