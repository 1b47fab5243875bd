// Package rulelist shows the rules of a scope and dispatches row actions
// back to the API. Every mutation is followed by a full reload.
package rulelist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/QTuan97/HC-API-Plat/cli/client"
	"github.com/QTuan97/HC-API-Plat/cli/editor"
	"github.com/QTuan97/HC-API-Plat/cli/types"

	"github.com/atotto/clipboard"
	"github.com/olekukonko/tablewriter"
)

// Action names a row action.
type Action string

const (
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionToggle Action = "toggle"
	ActionCopy   Action = "copy"
)

// ErrRuleNotLoaded is returned for ids missing from the loaded list.
var ErrRuleNotLoaded = errors.New("rule is not in the loaded list")

// Clipboard receives copied URLs.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes to the OS clipboard.
type SystemClipboard struct{}

// WriteAll implements Clipboard.
func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return errors.New("clipboard is not supported on this system")
	}
	return clipboard.WriteAll(text)
}

// Notifier shows short, non-fatal messages to the user.
type Notifier interface {
	Notify(message string)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// EditFunc lets the user change a pre-populated form. It returns the form to
// submit, or nil to cancel.
type EditFunc func(form *editor.Form) (*editor.Form, error)

// Config wires a List. BaseURL is the owning project's public base URL used
// by the copy action.
type Config struct {
	API       client.IAPIClient
	Scope     client.RuleScope
	BaseURL   string
	Clipboard Clipboard
	Notifier  Notifier
	Confirmer Confirmer
	Edit      EditFunc
}

type handler func(ctx context.Context, id int64) error

// List caches one scope's rules.
type List struct {
	cfg       Config
	editor    *editor.Editor
	rules     []types.Rule
	highlight int64
	handlers  map[Action]handler
}

// New creates a List.
func New(cfg Config) *List {
	l := &List{
		cfg:    cfg,
		editor: editor.New(editor.Config{API: cfg.API, Scope: cfg.Scope}),
	}
	l.handlers = map[Action]handler{
		ActionEdit:   l.edit,
		ActionDelete: l.delete,
		ActionToggle: l.toggle,
		ActionCopy:   l.copy,
	}
	return l
}

// Load fetches the collection and replaces the cache. highlightID marks the
// row touched by the last action; 0 clears it.
func (l *List) Load(ctx context.Context, highlightID int64) error {
	rules, err := l.cfg.API.ListRules(ctx, l.cfg.Scope)
	if err != nil {
		return err
	}
	l.rules = rules
	l.highlight = highlightID
	return nil
}

// Rules returns the cached rules.
func (l *List) Rules() []types.Rule {
	return l.rules
}

// Highlight returns the highlighted rule id, or 0.
func (l *List) Highlight() int64 {
	return l.highlight
}

// Do runs action on rule id.
func (l *List) Do(ctx context.Context, action Action, id int64) error {
	h, ok := l.handlers[action]
	if !ok {
		return fmt.Errorf("unknown action %q", action)
	}
	return h(ctx, id)
}

func (l *List) find(id int64) (types.Rule, bool) {
	for _, r := range l.rules {
		if r.ID == id {
			return r, true
		}
	}
	return types.Rule{}, false
}

func (l *List) notify(format string, args ...interface{}) {
	if l.cfg.Notifier != nil {
		l.cfg.Notifier.Notify(fmt.Sprintf(format, args...))
	}
}

func (l *List) delete(ctx context.Context, id int64) error {
	if l.cfg.Confirmer != nil && !l.cfg.Confirmer.Confirm(fmt.Sprintf("Delete rule #%d?", id)) {
		return nil
	}
	if err := l.cfg.API.DeleteRule(ctx, l.cfg.Scope, id); err != nil {
		return err
	}
	l.notify("Rule #%d deleted", id)
	return l.Load(ctx, 0)
}

// toggle asks the server to flip the flag and reloads; the new state is only
// known from the reloaded list.
func (l *List) toggle(ctx context.Context, id int64) error {
	if _, err := l.cfg.API.ToggleRule(ctx, l.cfg.Scope, id); err != nil {
		return err
	}
	return l.Load(ctx, id)
}

// SetBaseURL changes the base URL used by the copy action.
func (l *List) SetBaseURL(baseURL string) {
	l.cfg.BaseURL = baseURL
}

// CopyURL composes the public URL of a rule.
func (l *List) CopyURL(id int64) (string, error) {
	rule, ok := l.find(id)
	if !ok {
		return "", ErrRuleNotLoaded
	}
	return strings.TrimRight(l.cfg.BaseURL, "/") + rule.PathRegex, nil
}

// copy never fails the action; clipboard problems become a notice.
func (l *List) copy(_ context.Context, id int64) error {
	url, err := l.CopyURL(id)
	if err != nil {
		return err
	}
	if l.cfg.Clipboard == nil {
		l.notify("Copy failed: no clipboard available")
		return nil
	}
	if err := l.cfg.Clipboard.WriteAll(url); err != nil {
		l.notify("Copy failed: %v", err)
		return nil
	}
	l.notify("Copied %s", url)
	return nil
}

func (l *List) edit(ctx context.Context, id int64) error {
	if l.cfg.Edit == nil {
		return errors.New("editing is not available")
	}
	form, err := l.EditForm(id)
	if err != nil {
		return err
	}
	edited, err := l.cfg.Edit(form)
	if err != nil || edited == nil {
		return err
	}
	return l.SubmitEdit(ctx, id, edited)
}

// EditForm pre-populates a form from the cached rule without re-fetching it.
func (l *List) EditForm(id int64) (*editor.Form, error) {
	rule, ok := l.find(id)
	if !ok {
		return nil, ErrRuleNotLoaded
	}
	return editor.FormFromRule(rule), nil
}

// SubmitEdit builds the full payload the same way create does, PUTs it and
// reloads with the row highlighted.
func (l *List) SubmitEdit(ctx context.Context, id int64, form *editor.Form) error {
	if _, err := l.editor.Update(ctx, id, form); err != nil {
		return err
	}
	l.notify("Rule #%d updated", id)
	return l.Load(ctx, id)
}

// Render prints the cached rules as a table.
func (l *List) Render(w io.Writer) error {
	if len(l.rules) == 0 {
		_, err := fmt.Fprintf(w, "No rules found for %s.\n", l.cfg.Scope)
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"ID", "METHOD", "PATH", "TYPE", "DELAY", "STATUS", "ENABLED"})

	for _, r := range l.rules {
		id := strconv.FormatInt(r.ID, 10)
		if r.ID == l.highlight {
			id = "*" + id
		}
		delay, status := "", ""
		responseType := types.ResponseSingle
		if r.IsWeighted() {
			responseType = fmt.Sprintf("%s(%d)", types.ResponseWeighted, len(r.BodyTemplate.Entries))
		} else {
			delay = fmt.Sprintf("%dms", r.Delay)
			status = strconv.Itoa(r.StatusCode)
		}
		enabled := "no"
		if r.Enabled {
			enabled = "yes"
		}
		table.Append([]string{id, r.Method, r.PathRegex, responseType, delay, status, enabled})
	}

	return table.Render()
}

// Details prints the request body, headers, body template and enabled flag
// of one cached rule.
func (l *List) Details(w io.Writer, id int64) error {
	rule, ok := l.find(id)
	if !ok {
		return ErrRuleNotLoaded
	}

	requestBody := rule.RequestBody
	if requestBody == "" {
		requestBody = "(none)"
	}
	headers, _ := json.MarshalIndent(rule.Headers, "", "  ")
	template, _ := json.MarshalIndent(rule.BodyTemplate, "", "  ")

	_, err := fmt.Fprintf(w, "Rule #%d  %s %s\nEnabled:       %t\nRequest body:  %s\nHeaders:       %s\nBody template: %s\n",
		rule.ID, rule.Method, rule.PathRegex, rule.Enabled, requestBody, headers, template)
	return err
}
