package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// memoryStore is an in-memory implementation of IRuleStore.
type memoryStore struct {
	mu          sync.RWMutex
	projects    map[int64]*Project
	rules       map[int64]*Rule
	nextProject int64
	nextRule    int64
	watchers    map[int]chan WatchEvent
	nextWatcher int
}

// NewMemoryStore creates a new in-memory project and rule store.
func NewMemoryStore() IRuleStore {
	return &memoryStore{
		projects: make(map[int64]*Project),
		rules:    make(map[int64]*Rule),
		watchers: make(map[int]chan WatchEvent),
	}
}

// CreateProject stores a new project under a fresh ID.
func (s *memoryStore) CreateProject(project *Project) error {
	if project == nil || strings.TrimSpace(project.Name) == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(project.Name, 0) {
		return ErrAlreadyExists
	}

	s.nextProject++
	project.ID = s.nextProject
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}
	stored := *project
	s.projects[project.ID] = &stored
	return nil
}

// UpdateProject replaces an existing project, keeping its creation time.
func (s *memoryStore) UpdateProject(project *Project) error {
	if project == nil || strings.TrimSpace(project.Name) == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.projects[project.ID]
	if !ok {
		return ErrNotFound
	}
	if s.nameTaken(project.Name, project.ID) {
		return ErrAlreadyExists
	}

	project.CreatedAt = existing.CreatedAt
	stored := *project
	s.projects[project.ID] = &stored
	return nil
}

// nameTaken must be called with the lock held.
func (s *memoryStore) nameTaken(name string, except int64) bool {
	for id, p := range s.projects {
		if id != except && strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

// GetProject retrieves a project by ID.
func (s *memoryStore) GetProject(id int64) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *project
	return &out, nil
}

// DeleteProject removes a project and cascades to its rules.
func (s *memoryStore) DeleteProject(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return ErrNotFound
	}
	delete(s.projects, id)

	for ruleID, rule := range s.rules {
		if rule.ProjectID == id {
			delete(s.rules, ruleID)
			s.broadcast(WatchEvent{Type: EventTypeDelete, Rule: cloneRule(rule)})
		}
	}
	return nil
}

// ListProjects retrieves all projects, newest first.
func (s *memoryStore) ListProjects() []*Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Project, 0, len(s.projects))
	for _, project := range s.projects {
		out := *project
		list = append(list, &out)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list
}

// CreateRule stores a new rule under a fresh ID.
func (s *memoryStore) CreateRule(rule *Rule) error {
	if rule == nil {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[rule.ProjectID]; !ok {
		return ErrNotFound
	}

	s.nextRule++
	rule.ID = s.nextRule
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	s.rules[rule.ID] = cloneRule(rule)
	s.broadcast(WatchEvent{Type: EventTypePut, Rule: cloneRule(rule)})
	return nil
}

// UpdateRule replaces an existing rule. Returns ErrNotFound if it doesn't exist.
func (s *memoryStore) UpdateRule(rule *Rule) error {
	if rule == nil {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rules[rule.ID]
	if !ok {
		return ErrNotFound
	}

	rule.ProjectID = existing.ProjectID
	rule.CreatedAt = existing.CreatedAt
	s.rules[rule.ID] = cloneRule(rule)
	s.broadcast(WatchEvent{Type: EventTypePut, Rule: cloneRule(rule)})
	return nil
}

// GetRule retrieves a rule by ID.
func (s *memoryStore) GetRule(id int64) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRule(rule), nil
}

// DeleteRule removes a rule by ID.
func (s *memoryStore) DeleteRule(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule, ok := s.rules[id]; ok {
		delete(s.rules, id)
		s.broadcast(WatchEvent{Type: EventTypeDelete, Rule: cloneRule(rule)})
		return nil
	}
	return ErrNotFound
}

// ToggleRule flips the enabled flag under the write lock, so concurrent
// toggles are serialized.
func (s *memoryStore) ToggleRule(id int64) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	rule.Enabled = !rule.Enabled
	s.broadcast(WatchEvent{Type: EventTypePut, Rule: cloneRule(rule)})
	return cloneRule(rule), nil
}

// ListRules retrieves the rules of a project, or every rule when projectID is 0.
func (s *memoryStore) ListRules(projectID int64) []*Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		if projectID == 0 || rule.ProjectID == projectID {
			list = append(list, cloneRule(rule))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list
}

// WatchWithContext returns a channel that receives rule changes until ctx is canceled.
func (s *memoryStore) WatchWithContext(ctx context.Context) <-chan WatchEvent {
	s.mu.Lock()
	watcherChan := make(chan WatchEvent, 100) // Buffered channel to avoid blocking
	watcherID := s.nextWatcher
	s.nextWatcher++
	s.watchers[watcherID] = watcherChan
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if ch, ok := s.watchers[watcherID]; ok {
			close(ch)
			delete(s.watchers, watcherID)
		}
	}()

	return watcherChan
}

// broadcast sends a watch event to all registered watchers.
// This should be called within a lock. A full watcher misses the event; it
// still has queued events to process, so it sees the change on its next read.
func (s *memoryStore) broadcast(event WatchEvent) {
	for _, ch := range s.watchers {
		select {
		case ch <- event:
		default:
		}
	}
}

func cloneRule(rule *Rule) *Rule {
	out := *rule
	if rule.Headers != nil {
		out.Headers = make(map[string]string, len(rule.Headers))
		for k, v := range rule.Headers {
			out.Headers[k] = v
		}
	}
	if rule.BodyTemplate.IsWeighted() {
		entries := make([]WeightedEntry, len(rule.BodyTemplate.Entries))
		for i, e := range rule.BodyTemplate.Entries {
			entries[i] = e
			if e.Headers != nil {
				entries[i].Headers = make(map[string]string, len(e.Headers))
				for k, v := range e.Headers {
					entries[i].Headers[k] = v
				}
			}
		}
		out.BodyTemplate = WeightedBody(entries)
	}
	return &out
}
