package storage

import (
	"context"
	"math"
)

// EventType defines the type of a watch event.
type EventType string

const (
	// EventTypePut represents a create, update or toggle event.
	EventTypePut EventType = "PUT"
	// EventTypeDelete represents a delete event.
	EventTypeDelete EventType = "DELETE"
)

// WatchEvent represents a change to a rule in the store.
type WatchEvent struct {
	Type EventType
	Rule *Rule
}

// IRuleStore defines the interface for project and rule storage.
type IRuleStore interface {
	// CreateProject assigns an ID and stores the project. Returns ErrAlreadyExists
	// if another project has the same name, compared case-insensitively.
	CreateProject(project *Project) error
	// UpdateProject replaces an existing project. Returns ErrNotFound or ErrAlreadyExists.
	UpdateProject(project *Project) error
	// GetProject retrieves a project by ID.
	GetProject(id int64) (*Project, error)
	// DeleteProject removes a project and all of its rules.
	DeleteProject(id int64) error
	// ListProjects retrieves all projects, newest first.
	ListProjects() []*Project

	// CreateRule assigns an ID and stores the rule.
	CreateRule(rule *Rule) error
	// UpdateRule replaces an existing rule. Returns ErrNotFound if it doesn't exist.
	UpdateRule(rule *Rule) error
	// GetRule retrieves a rule by ID.
	GetRule(id int64) (*Rule, error)
	// DeleteRule removes a rule by ID.
	DeleteRule(id int64) error
	// ToggleRule flips the enabled flag atomically and returns the stored rule.
	ToggleRule(id int64) (*Rule, error)
	// ListRules retrieves the rules of one project, or all rules when projectID is 0.
	ListRules(projectID int64) []*Rule

	// WatchWithContext returns a channel that receives rule changes until ctx is canceled.
	// Events signal that rules changed; a watcher whose buffer is full misses
	// events instead of being closed, so consumers re-read the store.
	WatchWithContext(ctx context.Context) <-chan WatchEvent
}

// ILogStore defines the interface for recorded request logs.
type ILogStore interface {
	// Append records a log entry, assigning its ID and timestamp when unset.
	Append(ctx context.Context, entry *LogEntry) error
	// List returns one page of entries (newest first) and the total count.
	List(ctx context.Context, page, limit int) ([]*LogEntry, int, error)
	// Clear removes every entry and returns how many were removed.
	Clear(ctx context.Context) (int, error)
}

// pageOffset returns the index of the first entry of page. ok is false when
// the offset does not fit in an int, which means the page is past any data.
func pageOffset(page, limit int) (offset int, ok bool) {
	if page-1 > (math.MaxInt-1)/limit {
		return 0, false
	}
	return (page - 1) * limit, true
}
