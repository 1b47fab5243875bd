package logview

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/QTuan97/HC-API-Plat/cli/internal/fakeapi"
	"github.com/QTuan97/HC-API-Plat/cli/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type answer bool

func (a answer) Confirm(string) bool { return bool(a) }

func entries(from, n int) []types.LogEntry {
	out := make([]types.LogEntry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, types.LogEntry{ID: int64(from + i), Method: "GET", Path: "/users", Timestamp: time.Now()})
	}
	return out
}

func TestPagination(t *testing.T) {
	tests := []struct {
		name               string
		page, limit, total int
		want               PageInfo
		text               string
	}{
		{"middle page", 2, 20, 45, PageInfo{Page: 2, Pages: 3, HasPrev: true, HasNext: true}, "Page 2 of 3"},
		{"first page", 1, 20, 45, PageInfo{Page: 1, Pages: 3, HasNext: true}, "Page 1 of 3"},
		{"last page", 3, 20, 45, PageInfo{Page: 3, Pages: 3, HasPrev: true}, "Page 3 of 3"},
		{"exact fit", 1, 20, 20, PageInfo{Page: 1, Pages: 1}, "Page 1 of 1"},
		{"empty", 1, 20, 0, PageInfo{Page: 1, Pages: 1}, "Page 1 of 1"},
		{"default limit", 1, 0, 21, PageInfo{Page: 1, Pages: 2, HasNext: true}, "Page 1 of 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pagination(tt.page, tt.limit, tt.total)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, got.String())
		})
	}
}

func TestClampInterval(t *testing.T) {
	assert.Equal(t, 3*time.Second, ClampInterval(0))
	assert.Equal(t, 3*time.Second, ClampInterval(time.Second))
	assert.Equal(t, 4*time.Second, ClampInterval(4*time.Second))
	assert.Equal(t, 5*time.Second, ClampInterval(time.Minute))
}

func TestFetch_UsesPageAndDefaultLimit(t *testing.T) {
	api := fakeapi.New()
	api.Logs = entries(1, 45)
	v := New(Config{API: api})

	v.SetPage(3)
	require.NoError(t, v.Fetch(context.Background()))

	logs, total := v.Logs()
	assert.Equal(t, 45, total)
	require.Len(t, logs, 5)
	assert.Equal(t, int64(41), logs[0].ID)
}

func TestApply_DropsStaleResponses(t *testing.T) {
	v := New(Config{API: fakeapi.New()})

	first, page := v.begin()
	second, _ := v.begin()

	assert.True(t, v.apply(second, page, &types.LogPage{Logs: entries(2, 1), Total: 2}))
	assert.False(t, v.apply(first, page, &types.LogPage{Logs: entries(1, 1), Total: 1}), "older response")

	logs, total := v.Logs()
	assert.Equal(t, 2, total)
	assert.Equal(t, int64(2), logs[0].ID)
}

func TestApply_DropsOtherPage(t *testing.T) {
	v := New(Config{API: fakeapi.New()})

	seq, page := v.begin()
	v.SetPage(2)

	assert.False(t, v.apply(seq, page, &types.LogPage{Logs: entries(1, 1), Total: 1}))
	logs, _ := v.Logs()
	assert.Empty(t, logs)
}

func TestPaused_KeepsDisplayedPage(t *testing.T) {
	api := fakeapi.New()
	api.Logs = entries(1, 1)
	v := New(Config{API: api})
	require.NoError(t, v.Fetch(context.Background()))

	v.SetLive(false)
	api.Logs = entries(1, 3)
	require.NoError(t, v.Fetch(context.Background()))

	_, total := v.Logs()
	assert.Equal(t, 1, total, "paused view is frozen")

	v.SetLive(true)
	_, total = v.Logs()
	assert.Equal(t, 3, total, "resuming shows the cached page")
}

func TestToggleDetails(t *testing.T) {
	api := fakeapi.New()
	api.Logs = entries(1, 2)
	var out bytes.Buffer
	v := New(Config{API: api, Out: &out})
	require.NoError(t, v.Fetch(context.Background()))

	assert.True(t, v.ToggleDetails(1))
	assert.False(t, v.Expanded(2))
	assert.Contains(t, out.String(), "--- #1 GET /users")

	assert.False(t, v.ToggleDetails(1))
	assert.False(t, v.Expanded(1))
}

func TestClear_Declined(t *testing.T) {
	api := fakeapi.New()
	api.Logs = entries(1, 2)
	v := New(Config{API: api, Confirmer: answer(false)})

	cleared, err := v.Clear(context.Background())
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.Equal(t, 0, api.CallCount("ClearLogs"))
}

func TestClear_IgnoresInFlightPoll(t *testing.T) {
	api := fakeapi.New()
	entered := make(chan struct{})
	release := make(chan struct{})
	api.ListLogsHook = func(ctx context.Context, page, limit int) (*types.LogPage, error) {
		close(entered)
		<-release
		return &types.LogPage{Logs: entries(1, 3), Total: 3}, nil
	}
	api.Logs = entries(1, 3)
	v := New(Config{API: api, Confirmer: answer(true)})
	v.SetPage(2)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, v.Fetch(context.Background()))
	}()
	<-entered

	cleared, err := v.Clear(context.Background())
	require.NoError(t, err)
	assert.True(t, cleared)
	assert.Equal(t, 1, v.Page())

	close(release)
	wg.Wait()

	logs, total := v.Logs()
	assert.Empty(t, logs)
	assert.Equal(t, 0, total)
	assert.Empty(t, api.Logs)
}

func TestRun_PollsUntilCancelled(t *testing.T) {
	api := fakeapi.New()
	api.Logs = entries(1, 1)
	v := New(Config{API: api})
	v.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()

	assert.Eventually(t, func() bool { return api.CallCount("ListLogs") >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRender(t *testing.T) {
	api := fakeapi.New()
	rule := int64(4)
	api.Logs = []types.LogEntry{{ID: 9, Method: "POST", Path: "/pay", MatchedRuleID: &rule, StatusCode: 201, Timestamp: time.Now()}}
	v := New(Config{API: api})
	require.NoError(t, v.Fetch(context.Background()))

	var buf bytes.Buffer
	require.NoError(t, v.Render(&buf))
	out := buf.String()
	assert.Contains(t, out, "/pay")
	assert.Contains(t, out, "201")
	assert.Contains(t, out, "Page 1 of 1 (1 total, live)")

	empty := New(Config{API: fakeapi.New()})
	buf.Reset()
	require.NoError(t, empty.Render(&buf))
	assert.Contains(t, buf.String(), "No logs recorded.")
}
