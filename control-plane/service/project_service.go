package service

import (
	"errors"

	"github.com/QTuan97/HC-API-Plat/control-plane/storage"
)

// ProjectService provides business logic for project operations.
type ProjectService struct {
	store storage.IRuleStore
}

// NewProjectService creates a new ProjectService instance.
func NewProjectService(store storage.IRuleStore) *ProjectService {
	return &ProjectService{store: store}
}

// ListProjects retrieves all projects.
func (s *ProjectService) ListProjects() []*storage.Project {
	return s.store.ListProjects()
}

// GetProject retrieves a project by ID.
func (s *ProjectService) GetProject(id int64) (*storage.Project, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.store.GetProject(id)
}

// CreateProject validates and stores a new project.
func (s *ProjectService) CreateProject(project *storage.Project) error {
	if err := ValidateProject(project); err != nil {
		return errors.Join(ErrInvalidInput, err)
	}
	project.ID = 0
	return s.store.CreateProject(project)
}

// UpdateProject validates and replaces an existing project.
func (s *ProjectService) UpdateProject(id int64, project *storage.Project) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	if err := ValidateProject(project); err != nil {
		return errors.Join(ErrInvalidInput, err)
	}
	project.ID = id
	return s.store.UpdateProject(project)
}

// DeleteProject deletes a project and its rules.
func (s *ProjectService) DeleteProject(id int64) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	return s.store.DeleteProject(id)
}
