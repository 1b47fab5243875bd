package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/QTuan97/HC-API-Plat/control-plane/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, storage.IRuleStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := storage.NewMemoryStore()
	distributor := NewRuleDistributor(ctx, store)
	srv := httptest.NewServer(newRouter(store, storage.NewMemoryLogStore(), distributor, 100))
	t.Cleanup(srv.Close)
	return srv, store
}

func send(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.String()
}

// TestAdminFlow walks a project through rule creation, toggle, cascade delete
// and log clearing over real HTTP.
func TestAdminFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := send(t, http.MethodPost, srv.URL+"/api/projects", `{"name":"checkout","base_url":"http://mock.local"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	var project storage.Project
	require.NoError(t, json.Unmarshal([]byte(body), &project))

	rulesURL := fmt.Sprintf("%s/api/projects/%d/rules", srv.URL, project.ID)
	resp, body = send(t, http.MethodPost, rulesURL, `{"method":"POST","path_regex":"^/orders$","request_body":"{\"sku\":1}","delay":100,"status_code":201,"headers":{"Content-Type":"application/json"},"body_template":{"template":"{\"id\":1}"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	var rule storage.Rule
	require.NoError(t, json.Unmarshal([]byte(body), &rule))
	assert.Equal(t, storage.ResponseSingle, rule.ResponseType)

	resp, _ = send(t, http.MethodPost, fmt.Sprintf("%s/%d/toggle", rulesURL, rule.ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = send(t, http.MethodGet, rulesURL, "")
	var rules []storage.Rule
	require.NoError(t, json.Unmarshal([]byte(body), &rules))
	require.Len(t, rules, 1)
	assert.False(t, rules[0].Enabled)

	resp, _ = send(t, http.MethodDelete, fmt.Sprintf("%s/api/projects/%d", srv.URL, project.ID), "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, body = send(t, http.MethodGet, srv.URL+"/api/rules", "")
	assert.JSONEq(t, "[]", body)

	resp, body = send(t, http.MethodGet, srv.URL+"/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "healthy")
}

// TestRuleEventStream checks that enabled rules reach stream subscribers.
func TestRuleEventStream(t *testing.T) {
	srv, store := newTestServer(t)

	project := &storage.Project{Name: "stream"}
	require.NoError(t, store.CreateProject(project))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/rules", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 8)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				events <- strings.TrimPrefix(line, "data: ")
			}
		}
	}()

	select {
	case data := <-events:
		assert.Equal(t, "[]", data)
	case <-ctx.Done():
		t.Fatal("no initial rule set")
	}

	rule := &storage.Rule{
		ProjectID:    project.ID,
		Method:       "GET",
		PathRegex:    "^/live$",
		Enabled:      true,
		ResponseType: storage.ResponseSingle,
		StatusCode:   200,
		BodyTemplate: storage.SingleBody("ok"),
	}
	require.NoError(t, store.CreateRule(rule))

	select {
	case data := <-events:
		var rules []storage.Rule
		require.NoError(t, json.Unmarshal([]byte(data), &rules))
		require.Len(t, rules, 1)
		assert.Equal(t, rule.ID, rules[0].ID)
	case <-ctx.Done():
		t.Fatal("no update after rule creation")
	}
}

func TestRuleDistributor_OnlyEnabledRules(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := storage.NewMemoryStore()
	project := &storage.Project{Name: "p"}
	require.NoError(t, store.CreateProject(project))
	on := &storage.Rule{ProjectID: project.ID, Method: "GET", PathRegex: "/on", Enabled: true}
	off := &storage.Rule{ProjectID: project.ID, Method: "GET", PathRegex: "/off"}
	require.NoError(t, store.CreateRule(on))
	require.NoError(t, store.CreateRule(off))

	distributor := NewRuleDistributor(ctx, store)
	var rules []storage.Rule
	require.NoError(t, json.Unmarshal([]byte(distributor.CurrentRuleSet()), &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, "/on", rules[0].PathRegex)

	_, err := store.ToggleRule(off.ID)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return strings.Contains(distributor.CurrentRuleSet(), "/off")
	}, time.Second, 10*time.Millisecond)
}

func TestRuleDistributor_ProjectCascadeKeepsUpdating(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := storage.NewMemoryStore()
	doomed := &storage.Project{Name: "doomed"}
	require.NoError(t, store.CreateProject(doomed))
	for i := 0; i < 150; i++ {
		rule := &storage.Rule{ProjectID: doomed.ID, Method: "GET", PathRegex: fmt.Sprintf("/r%d", i), Enabled: true}
		require.NoError(t, store.CreateRule(rule))
	}

	distributor := NewRuleDistributor(ctx, store)
	require.NoError(t, store.DeleteProject(doomed.ID))

	kept := &storage.Project{Name: "kept"}
	require.NoError(t, store.CreateProject(kept))
	require.NoError(t, store.CreateRule(&storage.Rule{ProjectID: kept.ID, Method: "GET", PathRegex: "/after-cascade", Enabled: true}))

	assert.Eventually(t, func() bool {
		var rules []storage.Rule
		if err := json.Unmarshal([]byte(distributor.CurrentRuleSet()), &rules); err != nil {
			return false
		}
		return len(rules) == 1 && rules[0].PathRegex == "/after-cascade"
	}, 2*time.Second, 10*time.Millisecond)
}

// closingWatchStore hands out one already-closed watch channel before
// delegating to the wrapped store.
type closingWatchStore struct {
	storage.IRuleStore
	closed bool
}

func (s *closingWatchStore) WatchWithContext(ctx context.Context) <-chan storage.WatchEvent {
	if !s.closed {
		s.closed = true
		ch := make(chan storage.WatchEvent)
		close(ch)
		return ch
	}
	return s.IRuleStore.WatchWithContext(ctx)
}

func TestRuleDistributor_ResubscribesAfterClosedWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &closingWatchStore{IRuleStore: storage.NewMemoryStore()}
	project := &storage.Project{Name: "p"}
	require.NoError(t, store.CreateProject(project))

	distributor := NewRuleDistributor(ctx, store)
	require.NoError(t, store.CreateRule(&storage.Rule{ProjectID: project.ID, Method: "GET", PathRegex: "/late", Enabled: true}))

	assert.Eventually(t, func() bool {
		return strings.Contains(distributor.CurrentRuleSet(), "/late")
	}, time.Second, 10*time.Millisecond)
}
