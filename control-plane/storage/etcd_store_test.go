package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// TestEtcdStore_BasicOperations tests project and rule CRUD against a local etcd.
func TestEtcdStore_BasicOperations(t *testing.T) {
	// Skip if etcd is not available
	if !isEtcdAvailable() {
		t.Skip("etcd not available, skipping test")
	}
	resetEtcd(t)

	store, err := NewEtcdStore([]string{"localhost:2379"})
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.HealthCheck())

	project := &Project{Name: "Demo"}
	require.NoError(t, store.CreateProject(project))
	assert.ErrorIs(t, store.CreateProject(&Project{Name: "demo"}), ErrAlreadyExists)

	rule := newTestRule(project.ID)
	require.NoError(t, store.CreateRule(rule))
	assert.ErrorIs(t, store.CreateRule(newTestRule(project.ID+100)), ErrNotFound)

	toggled, err := store.ToggleRule(rule.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)

	rules := store.ListRules(project.ID)
	require.Len(t, rules, 1)
	assert.Equal(t, `{"ok":true}`, rules[0].BodyTemplate.Template)

	require.NoError(t, store.DeleteProject(project.ID))
	_, err = store.GetRule(rule.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, store.ListProjects())
}

// TestEtcdStore_Watch tests that rule changes reach watchers.
func TestEtcdStore_Watch(t *testing.T) {
	if !isEtcdAvailable() {
		t.Skip("etcd not available, skipping test")
	}
	resetEtcd(t)

	store, err := NewEtcdStore([]string{"localhost:2379"})
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := store.WatchWithContext(ctx)
	// Give the global watcher time to establish.
	time.Sleep(200 * time.Millisecond)

	project := &Project{Name: "watched"}
	require.NoError(t, store.CreateProject(project))
	rule := newTestRule(project.ID)
	require.NoError(t, store.CreateRule(rule))

	select {
	case ev := <-events:
		assert.Equal(t, EventTypePut, ev.Type)
		assert.Equal(t, rule.ID, ev.Rule.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for watch event")
	}
}

// TestEtcdStore_DeleteProjectLeavesNoOrphans races rule creation against the
// cascade delete of their project.
func TestEtcdStore_DeleteProjectLeavesNoOrphans(t *testing.T) {
	if !isEtcdAvailable() {
		t.Skip("etcd not available, skipping test")
	}
	resetEtcd(t)

	store, err := NewEtcdStore([]string{"localhost:2379"})
	require.NoError(t, err)
	defer store.Close()

	project := &Project{Name: "contended"}
	require.NoError(t, store.CreateProject(project))

	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if err := store.CreateRule(newTestRule(project.ID)); errors.Is(err, ErrNotFound) {
					return
				}
				time.Sleep(5 * time.Millisecond)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, store.DeleteProject(project.ID))
	wg.Wait()

	assert.Empty(t, store.ListRules(project.ID))
}

// TestEtcdStore_WatchersCancelDuringDistribution needs no etcd: it only
// exercises the watcher registry.
func TestEtcdStore_WatchersCancelDuringDistribution(t *testing.T) {
	store := &EtcdStore{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		store.WatchWithContext(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			cancel()
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			store.distributeWatchEvent(WatchEvent{Type: EventTypePut, Rule: &Rule{ID: int64(i)}})
		}
	}()

	wg.Wait()
	<-done

	assert.Eventually(t, func() bool {
		store.watcherMu.RLock()
		defer store.watcherMu.RUnlock()
		return len(store.watchers) == 0
	}, time.Second, 10*time.Millisecond)
}

func resetEtcd(t *testing.T) {
	t.Helper()
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = client.Delete(ctx, "hcapi/", clientv3.WithPrefix())
	require.NoError(t, err)
}

func isEtcdAvailable() bool {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 2 * time.Second,
	})
	if err != nil {
		return false
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = client.Get(ctx, "test")
	return err == nil
}
