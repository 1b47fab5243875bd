package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/QTuan97/HC-API-Plat/control-plane/logger"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const (
	// projectPrefix is the etcd key prefix for all projects
	projectPrefix = "hcapi/projects/"
	// projectNamePrefix indexes lower-cased project names to enforce uniqueness
	projectNamePrefix = "hcapi/project-names/"
	// rulePrefix is the etcd key prefix for all rules
	rulePrefix = "hcapi/rules/"
	// sequencePrefix holds the ID counters
	sequencePrefix = "hcapi/seq/"
	// defaultTimeout is the default timeout for etcd operations
	defaultTimeout = 5 * time.Second
	// maxCASAttempts bounds compare-and-swap retries under contention
	maxCASAttempts = 16
)

var errConflict = errors.New("concurrent modification")

// EtcdStore implements IRuleStore using etcd as the backend storage.
type EtcdStore struct {
	client    *clientv3.Client
	ctx       context.Context
	cancel    context.CancelFunc
	watchers  []chan WatchEvent
	watcherMu sync.RWMutex
}

// NewEtcdStore creates a new EtcdStore instance.
func NewEtcdStore(endpoints []string) (*EtcdStore, error) {
	log := logger.WithComponent("storage.etcd")

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		log.Error("Failed to create etcd client",
			zap.Strings("endpoints", endpoints),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	store := &EtcdStore{
		client:   client,
		ctx:      ctx,
		cancel:   cancel,
		watchers: make([]chan WatchEvent, 0),
	}

	// Start the global watcher goroutine
	go store.startGlobalWatcher()

	log.Info("etcd store initialized successfully",
		zap.Strings("endpoints", endpoints))
	return store, nil
}

// Close closes the etcd connection and cancels all watchers.
func (e *EtcdStore) Close() error {
	e.cancel()
	e.watcherMu.Lock()
	for _, watcher := range e.watchers {
		close(watcher)
	}
	e.watchers = nil
	e.watcherMu.Unlock()
	return e.client.Close()
}

// HealthCheck verifies the etcd connection is healthy.
func (e *EtcdStore) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := e.client.Status(ctx, e.client.Endpoints()[0])
	if err != nil {
		return fmt.Errorf("etcd health check failed: %w", err)
	}
	return nil
}

func projectKey(id int64) string { return projectPrefix + strconv.FormatInt(id, 10) }
func ruleKey(id int64) string    { return rulePrefix + strconv.FormatInt(id, 10) }
func projectNameKey(name string) string {
	return projectNamePrefix + strings.ToLower(strings.TrimSpace(name))
}

func (e *EtcdStore) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(e.ctx, defaultTimeout)
}

// nextID increments the named counter with a compare-and-swap on its revision.
func (e *EtcdStore) nextID(kind string) (int64, error) {
	key := sequencePrefix + kind
	ctx, cancel := e.opContext()
	defer cancel()

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		resp, err := e.client.Get(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("failed to read %s sequence: %w", kind, err)
		}

		var current, revision int64
		if len(resp.Kvs) > 0 {
			current, _ = strconv.ParseInt(string(resp.Kvs[0].Value), 10, 64)
			revision = resp.Kvs[0].ModRevision
		}
		next := current + 1

		txnResp, err := e.client.Txn(ctx).If(
			clientv3.Compare(clientv3.ModRevision(key), "=", revision),
		).Then(
			clientv3.OpPut(key, strconv.FormatInt(next, 10)),
		).Commit()
		if err != nil {
			return 0, fmt.Errorf("failed to advance %s sequence: %w", kind, err)
		}
		if txnResp.Succeeded {
			return next, nil
		}
	}
	return 0, fmt.Errorf("failed to advance %s sequence: %w", kind, errConflict)
}

// CreateProject stores a new project and claims its name in the same transaction.
func (e *EtcdStore) CreateProject(project *Project) error {
	if project == nil || strings.TrimSpace(project.Name) == "" {
		return ErrInvalidInput
	}

	id, err := e.nextID("projects")
	if err != nil {
		return err
	}
	project.ID = id
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(project)
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	ctx, cancel := e.opContext()
	defer cancel()

	nameKey := projectNameKey(project.Name)
	resp, err := e.client.Txn(ctx).If(
		// Condition: no project holds this name yet
		clientv3.Compare(clientv3.CreateRevision(nameKey), "=", 0),
	).Then(
		clientv3.OpPut(nameKey, strconv.FormatInt(id, 10)),
		clientv3.OpPut(projectKey(id), string(data)),
	).Commit()
	if err != nil {
		return fmt.Errorf("failed to create project in etcd: %w", err)
	}
	if !resp.Succeeded {
		return ErrAlreadyExists
	}
	return nil
}

// UpdateProject replaces a project, moving its name index entry when the name changes.
func (e *EtcdStore) UpdateProject(project *Project) error {
	if project == nil || strings.TrimSpace(project.Name) == "" {
		return ErrInvalidInput
	}

	ctx, cancel := e.opContext()
	defer cancel()

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		existing, revision, err := e.getProject(ctx, project.ID)
		if err != nil {
			return err
		}
		project.CreatedAt = existing.CreatedAt

		data, err := json.Marshal(project)
		if err != nil {
			return fmt.Errorf("failed to marshal project: %w", err)
		}

		key := projectKey(project.ID)
		oldNameKey := projectNameKey(existing.Name)
		newNameKey := projectNameKey(project.Name)

		conds := []clientv3.Cmp{clientv3.Compare(clientv3.ModRevision(key), "=", revision)}
		ops := []clientv3.Op{clientv3.OpPut(key, string(data))}
		if oldNameKey != newNameKey {
			conds = append(conds, clientv3.Compare(clientv3.CreateRevision(newNameKey), "=", 0))
			ops = append(ops,
				clientv3.OpDelete(oldNameKey),
				clientv3.OpPut(newNameKey, strconv.FormatInt(project.ID, 10)))
		}

		resp, err := e.client.Txn(ctx).If(conds...).Then(ops...).Commit()
		if err != nil {
			return fmt.Errorf("failed to update project in etcd: %w", err)
		}
		if resp.Succeeded {
			return nil
		}

		if oldNameKey != newNameKey {
			nameResp, err := e.client.Get(ctx, newNameKey)
			if err != nil {
				return fmt.Errorf("failed to check project name: %w", err)
			}
			if len(nameResp.Kvs) > 0 {
				return ErrAlreadyExists
			}
		}
	}
	return fmt.Errorf("failed to update project %d: %w", project.ID, errConflict)
}

func (e *EtcdStore) getProject(ctx context.Context, id int64) (*Project, int64, error) {
	resp, err := e.client.Get(ctx, projectKey(id))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get project from etcd: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, 0, ErrNotFound
	}

	var project Project
	if err := json.Unmarshal(resp.Kvs[0].Value, &project); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal project: %w", err)
	}
	return &project, resp.Kvs[0].ModRevision, nil
}

// GetProject retrieves a project by ID.
func (e *EtcdStore) GetProject(id int64) (*Project, error) {
	ctx, cancel := e.opContext()
	defer cancel()

	project, _, err := e.getProject(ctx, id)
	return project, err
}

// DeleteProject removes the project, its name index entry and its rules atomically.
// The rule prefix must be unchanged since the rules were listed, so a rule
// created in between is never left behind without its project.
func (e *EtcdStore) DeleteProject(id int64) error {
	ctx, cancel := e.opContext()
	defer cancel()

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		project, _, err := e.getProject(ctx, id)
		if err != nil {
			return err
		}

		resp, err := e.client.Get(ctx, rulePrefix, clientv3.WithPrefix())
		if err != nil {
			return fmt.Errorf("failed to list rules from etcd: %w", err)
		}
		listRev := resp.Header.Revision

		key := projectKey(id)
		ops := []clientv3.Op{
			clientv3.OpDelete(key),
			clientv3.OpDelete(projectNameKey(project.Name)),
		}
		for _, kv := range resp.Kvs {
			var rule Rule
			if err := json.Unmarshal(kv.Value, &rule); err != nil {
				continue
			}
			if rule.ProjectID == id {
				ops = append(ops, clientv3.OpDelete(string(kv.Key)))
			}
		}

		txn, err := e.client.Txn(ctx).If(
			// Condition: key exists (CreateRevision > 0)
			clientv3.Compare(clientv3.CreateRevision(key), ">", 0),
			clientv3.Compare(clientv3.ModRevision(rulePrefix).WithPrefix(), "<", listRev+1),
		).Then(ops...).Commit()
		if err != nil {
			return fmt.Errorf("failed to delete project from etcd: %w", err)
		}
		if txn.Succeeded {
			return nil
		}
		// Either the project is gone or a rule changed; getProject tells which
	}
	return fmt.Errorf("failed to delete project %d: %w", id, errConflict)
}

// ListProjects retrieves all projects, newest first.
func (e *EtcdStore) ListProjects() []*Project {
	ctx, cancel := e.opContext()
	defer cancel()

	resp, err := e.client.Get(ctx, projectPrefix, clientv3.WithPrefix())
	if err != nil {
		return []*Project{}
	}

	projects := make([]*Project, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var project Project
		if err := json.Unmarshal(kv.Value, &project); err != nil {
			// Skip malformed entries
			continue
		}
		projects = append(projects, &project)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID > projects[j].ID })
	return projects
}

// CreateRule stores a new rule if its project exists.
func (e *EtcdStore) CreateRule(rule *Rule) error {
	if rule == nil {
		return ErrInvalidInput
	}

	id, err := e.nextID("rules")
	if err != nil {
		return err
	}
	rule.ID = id
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal rule: %w", err)
	}

	ctx, cancel := e.opContext()
	defer cancel()

	resp, err := e.client.Txn(ctx).If(
		clientv3.Compare(clientv3.CreateRevision(projectKey(rule.ProjectID)), ">", 0),
	).Then(
		clientv3.OpPut(ruleKey(id), string(data)),
	).Commit()
	if err != nil {
		return fmt.Errorf("failed to create rule in etcd: %w", err)
	}
	if !resp.Succeeded {
		return ErrNotFound
	}
	return nil
}

func (e *EtcdStore) getRule(ctx context.Context, id int64) (*Rule, int64, error) {
	resp, err := e.client.Get(ctx, ruleKey(id))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get rule from etcd: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, 0, ErrNotFound
	}

	var rule Rule
	if err := json.Unmarshal(resp.Kvs[0].Value, &rule); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal rule: %w", err)
	}
	return &rule, resp.Kvs[0].ModRevision, nil
}

// casRule applies mutate to the stored rule and writes it back only if nobody
// changed it in between.
func (e *EtcdStore) casRule(id int64, mutate func(stored *Rule) *Rule) (*Rule, error) {
	ctx, cancel := e.opContext()
	defer cancel()

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		stored, revision, err := e.getRule(ctx, id)
		if err != nil {
			return nil, err
		}

		next := mutate(stored)
		data, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal rule: %w", err)
		}

		resp, err := e.client.Txn(ctx).If(
			clientv3.Compare(clientv3.ModRevision(ruleKey(id)), "=", revision),
		).Then(
			clientv3.OpPut(ruleKey(id), string(data)),
		).Commit()
		if err != nil {
			return nil, fmt.Errorf("failed to write rule to etcd: %w", err)
		}
		if resp.Succeeded {
			return next, nil
		}
	}
	return nil, fmt.Errorf("failed to write rule %d: %w", id, errConflict)
}

// UpdateRule replaces an existing rule. Returns ErrNotFound if it doesn't exist.
func (e *EtcdStore) UpdateRule(rule *Rule) error {
	if rule == nil {
		return ErrInvalidInput
	}

	_, err := e.casRule(rule.ID, func(stored *Rule) *Rule {
		rule.ProjectID = stored.ProjectID
		rule.CreatedAt = stored.CreatedAt
		return rule
	})
	return err
}

// ToggleRule flips the enabled flag with a compare-and-swap, serializing toggles.
func (e *EtcdStore) ToggleRule(id int64) (*Rule, error) {
	return e.casRule(id, func(stored *Rule) *Rule {
		stored.Enabled = !stored.Enabled
		return stored
	})
}

// GetRule retrieves a rule by ID.
func (e *EtcdStore) GetRule(id int64) (*Rule, error) {
	ctx, cancel := e.opContext()
	defer cancel()

	rule, _, err := e.getRule(ctx, id)
	return rule, err
}

// DeleteRule removes a rule by ID.
func (e *EtcdStore) DeleteRule(id int64) error {
	key := ruleKey(id)

	ctx, cancel := e.opContext()
	defer cancel()

	resp, err := e.client.Txn(ctx).If(
		// Condition: key exists (CreateRevision > 0)
		clientv3.Compare(clientv3.CreateRevision(key), ">", 0),
	).Then(
		clientv3.OpDelete(key),
	).Commit()
	if err != nil {
		return fmt.Errorf("failed to delete rule from etcd: %w", err)
	}
	if !resp.Succeeded {
		return ErrNotFound
	}
	return nil
}

// ListRules retrieves the rules of a project, or every rule when projectID is 0.
func (e *EtcdStore) ListRules(projectID int64) []*Rule {
	ctx, cancel := e.opContext()
	defer cancel()

	resp, err := e.client.Get(ctx, rulePrefix, clientv3.WithPrefix())
	if err != nil {
		return []*Rule{}
	}

	rules := make([]*Rule, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var rule Rule
		if err := json.Unmarshal(kv.Value, &rule); err != nil {
			continue
		}
		if projectID == 0 || rule.ProjectID == projectID {
			rules = append(rules, &rule)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID > rules[j].ID })
	return rules
}

// WatchWithContext returns a channel that receives notifications until ctx is canceled.
func (e *EtcdStore) WatchWithContext(ctx context.Context) <-chan WatchEvent {
	ch := make(chan WatchEvent, 100)

	e.watcherMu.Lock()
	e.watchers = append(e.watchers, ch)
	e.watcherMu.Unlock()

	go func() {
		<-ctx.Done()
		e.watcherMu.Lock()
		defer e.watcherMu.Unlock()

		for i, watcher := range e.watchers {
			if watcher == ch {
				e.watchers[i] = e.watchers[len(e.watchers)-1]
				e.watchers = e.watchers[:len(e.watchers)-1]
				close(ch)
				break
			}
		}
	}()

	return ch
}

// startGlobalWatcher monitors all rule changes and distributes events to the
// registered watchers.
func (e *EtcdStore) startGlobalWatcher() {
	watchCh := e.client.Watch(e.ctx, rulePrefix, clientv3.WithPrefix())

	for {
		select {
		case <-e.ctx.Done():
			return
		case wresp, ok := <-watchCh:
			if !ok {
				// Watch channel closed, recreate it
				watchCh = e.client.Watch(e.ctx, rulePrefix, clientv3.WithPrefix())
				continue
			}
			if wresp.Err() != nil {
				continue
			}
			for _, event := range wresp.Events {
				e.processWatchEvent(event)
			}
		}
	}
}

// processWatchEvent converts an etcd event to a WatchEvent and distributes it.
func (e *EtcdStore) processWatchEvent(event *clientv3.Event) {
	key := string(event.Kv.Key)
	if !strings.HasPrefix(key, rulePrefix) {
		return
	}

	var watchEvent WatchEvent
	switch event.Type {
	case mvccpb.PUT:
		var rule Rule
		if err := json.Unmarshal(event.Kv.Value, &rule); err != nil {
			return // Skip malformed rules
		}
		watchEvent = WatchEvent{Type: EventTypePut, Rule: &rule}
	case mvccpb.DELETE:
		// Delete events only carry the key
		id, err := strconv.ParseInt(strings.TrimPrefix(key, rulePrefix), 10, 64)
		if err != nil {
			return
		}
		watchEvent = WatchEvent{Type: EventTypeDelete, Rule: &Rule{ID: id}}
	default:
		return
	}

	e.distributeWatchEvent(watchEvent)
}

// distributeWatchEvent sends the event to every watcher without blocking.
// The read lock is held during the sends so a watcher cannot be closed
// underneath them; a full watcher misses the event.
func (e *EtcdStore) distributeWatchEvent(event WatchEvent) {
	e.watcherMu.RLock()
	defer e.watcherMu.RUnlock()

	for _, watcher := range e.watchers {
		select {
		case watcher <- event:
		default:
		}
	}
}
