package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueue_UnknownTask(t *testing.T) {
	q := NewQueue(1, 4)

	err := q.Enqueue("transcode", "/media/a.mkv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTask)
	assert.Equal(t, 0, q.Pending())
}

func TestEnqueue_QueueFull(t *testing.T) {
	q := NewQueue(1, 2)
	q.Register("analyze", LogAnalyze)

	require.NoError(t, q.Enqueue("analyze", "/a"))
	require.NoError(t, q.Enqueue("analyze", "/b"))
	assert.ErrorIs(t, q.Enqueue("analyze", "/c"), ErrQueueFull)
	assert.Equal(t, 2, q.Pending())
}

func TestEnqueue_AfterClose(t *testing.T) {
	q := NewQueue(1, 2)
	q.Register("analyze", LogAnalyze)
	q.Close()

	assert.ErrorIs(t, q.Enqueue("analyze", "/a"), ErrClosed)
}

func TestStart_RunsHandlers(t *testing.T) {
	q := NewQueue(2, 8)
	got := make(chan Task, 8)
	q.Register("analyze", func(_ context.Context, task Task) error {
		got <- task
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	require.NoError(t, q.Enqueue("analyze", "/media/a.mkv"))

	select {
	case task := <-got:
		assert.Equal(t, "analyze", task.Name)
		assert.Equal(t, "/media/a.mkv", task.Path)
		_, err := uuid.Parse(task.ID)
		assert.NoError(t, err)
		assert.False(t, task.Enqueued.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
	q.Close()
}

func TestStart_HandlerErrorDoesNotStopWorker(t *testing.T) {
	q := NewQueue(1, 8)
	var mu sync.Mutex
	var seen []string
	done := make(chan struct{})
	q.Register("analyze", func(_ context.Context, task Task) error {
		mu.Lock()
		seen = append(seen, task.Path)
		n := len(seen)
		mu.Unlock()
		if n == 2 {
			close(done)
		}
		return errors.New("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	require.NoError(t, q.Enqueue("analyze", "/a"))
	require.NoError(t, q.Enqueue("analyze", "/b"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second task never ran after a failure")
	}
	q.Close()

	assert.Equal(t, []string{"/a", "/b"}, seen)
}

func TestClose_DrainsQueuedTasks(t *testing.T) {
	q := NewQueue(1, 16)
	var mu sync.Mutex
	count := 0
	q.Register("analyze", func(context.Context, Task) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue("analyze", "/p"))
	}

	q.Start(context.Background())
	q.Close()

	assert.Equal(t, 10, count)
}

func TestEmit_FansOutToSubscribers(t *testing.T) {
	q := NewQueue(1, 1)
	var got []string
	q.Subscribe("removed", func(event, path string) { got = append(got, "one:"+path) })
	q.Subscribe("removed", func(event, path string) { got = append(got, "two:"+path) })
	q.Subscribe("other", func(event, path string) { got = append(got, "other:"+path) })

	q.Emit("removed", "/media/gone.mkv")

	assert.Equal(t, []string{"one:/media/gone.mkv", "two:/media/gone.mkv"}, got)
}

func TestEmit_NoSubscribers(t *testing.T) {
	q := NewQueue(1, 1)
	assert.NotPanics(t, func() { q.Emit("removed", "/x") })
}

func TestNewQueue_ClampsSizes(t *testing.T) {
	q := NewQueue(0, 0)
	q.Register("analyze", LogAnalyze)

	require.NoError(t, q.Enqueue("analyze", "/a"))
	assert.ErrorIs(t, q.Enqueue("analyze", "/b"), ErrQueueFull)
	assert.Equal(t, 1, q.workers)
}
