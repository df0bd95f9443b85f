package managers

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaskManager_CreateListDone(t *testing.T) {
	ctx := context.Background()
	m, err := NewTaskManager(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	task, err := m.Create(ctx, "buy groceries", "high")
	require.NoError(t, err)
	require.NotEmpty(t, task.ID)

	pending, err := m.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, m.SetDone(ctx, task.ID, true))

	pending, err = m.List(ctx, true)
	require.NoError(t, err)
	require.Empty(t, pending)

	all, err := m.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.True(t, all[0].Done)
}

func TestTaskManager_RejectsEmptyText(t *testing.T) {
	m, err := NewTaskManager(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Create(context.Background(), "", "")
	require.Error(t, err)
}

func TestTaskManager_ConcurrentCreatesDistinctIDs(t *testing.T) {
	ctx := context.Background()
	m, err := NewTaskManager(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	const n = 16
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task, err := m.Create(ctx, fmt.Sprintf("task %d", i), "")
			if err != nil {
				t.Error(err)
				return
			}
			ids <- task.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	require.Len(t, seen, n)
}

func TestTaskManager_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()

	m, err := NewTaskManager(dataDir)
	require.NoError(t, err)
	created, err := m.Create(ctx, "call mom", "")
	require.NoError(t, err)
	require.NoError(t, m.Close())

	reopened, err := NewTaskManager(dataDir)
	require.NoError(t, err)
	defer reopened.Close()

	tasks, err := reopened.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, created.ID, tasks[0].ID)
	require.Equal(t, "call mom", tasks[0].Text)
}
