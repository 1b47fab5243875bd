// Package projects manages the project list used to scope rules.
package projects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/QTuan97/HC-API-Plat/cli/client"
	"github.com/QTuan97/HC-API-Plat/cli/types"

	"github.com/olekukonko/tablewriter"
)

// DuplicateNameError is returned when a create would reuse a loaded name.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("Project %q already exists.", e.Name)
}

// ErrNameRequired rejects a blank project name before any request.
var ErrNameRequired = errors.New("Project name is required")

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// Config wires a Manager.
type Config struct {
	API       client.IAPIClient
	Confirmer Confirmer
}

// Manager caches the project list.
type Manager struct {
	api       client.IAPIClient
	confirmer Confirmer
	projects  []types.Project
	loaded    bool
}

// New creates a Manager.
func New(cfg Config) *Manager {
	return &Manager{api: cfg.API, confirmer: cfg.Confirmer}
}

// Load fetches the project list.
func (m *Manager) Load(ctx context.Context) error {
	projects, err := m.api.ListProjects(ctx)
	if err != nil {
		return err
	}
	m.projects = projects
	m.loaded = true
	return nil
}

// List returns the cached projects.
func (m *Manager) List() []types.Project {
	return m.projects
}

// Find returns the cached project with id.
func (m *Manager) Find(id int64) (types.Project, bool) {
	for _, p := range m.projects {
		if p.ID == id {
			return p, true
		}
	}
	return types.Project{}, false
}

var (
	spaceRun      = regexp.MustCompile(`\s+`)
	underscoreRun = regexp.MustCompile(`_+`)
	disallowed    = regexp.MustCompile(`[^a-z0-9_.,]`)
)

// NormalizeName turns a project name into the URL-safe form used as the mock
// path prefix: lowercase, whitespace runs become one underscore, only
// [a-z0-9_.,] is kept and trailing separators are dropped.
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = spaceRun.ReplaceAllString(s, "_")
	s = underscoreRun.ReplaceAllString(s, "_")
	s = disallowed.ReplaceAllString(s, "")
	return strings.TrimRight(s, "_. ,")
}

// Create adds a project. The name is normalized and checked against the
// loaded list first; the server still has the final word.
func (m *Manager) Create(ctx context.Context, input types.ProjectInput) (*types.Project, error) {
	input.Name = NormalizeName(input.Name)
	input.BaseURL = strings.TrimSpace(input.BaseURL)
	if input.Name == "" {
		return nil, ErrNameRequired
	}
	if !m.loaded {
		if err := m.Load(ctx); err != nil {
			return nil, err
		}
	}
	for _, p := range m.projects {
		if strings.EqualFold(p.Name, input.Name) {
			return nil, &DuplicateNameError{Name: input.Name}
		}
	}

	project, err := m.api.CreateProject(ctx, input)
	if err != nil {
		return nil, err
	}
	return project, m.Load(ctx)
}

// Update replaces the fields of project id.
func (m *Manager) Update(ctx context.Context, id int64, input types.ProjectInput) (*types.Project, error) {
	input.Name = NormalizeName(input.Name)
	input.BaseURL = strings.TrimSpace(input.BaseURL)
	if input.Name == "" {
		return nil, ErrNameRequired
	}
	for _, p := range m.projects {
		if p.ID != id && strings.EqualFold(p.Name, input.Name) {
			return nil, &DuplicateNameError{Name: input.Name}
		}
	}

	project, err := m.api.UpdateProject(ctx, id, input)
	if err != nil {
		return nil, err
	}
	return project, m.Load(ctx)
}

// Delete removes project id and its rules after confirmation. It returns
// false when the user declined.
func (m *Manager) Delete(ctx context.Context, id int64) (bool, error) {
	label := fmt.Sprintf("#%d", id)
	if p, ok := m.Find(id); ok {
		label = fmt.Sprintf("%q", p.Name)
	}
	if m.confirmer != nil && !m.confirmer.Confirm(fmt.Sprintf("Delete project %s and all of its rules?", label)) {
		return false, nil
	}
	if err := m.api.DeleteProject(ctx, id); err != nil {
		return true, err
	}
	return true, m.Load(ctx)
}

// Render prints the cached projects as a table.
func (m *Manager) Render(w io.Writer) error {
	if len(m.projects) == 0 {
		_, err := fmt.Fprintln(w, "No projects found.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"ID", "NAME", "BASE URL", "DESCRIPTION"})
	for _, p := range m.projects {
		table.Append([]string{strconv.FormatInt(p.ID, 10), p.Name, p.BaseURL, p.Description})
	}
	return table.Render()
}
