package queue

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTimerBackend stands in for both the asynq client and inspector,
// keyed by task id like the real broker.
type fakeTimerBackend struct {
	mu       sync.Mutex
	pending  map[string]bool
	enqueues int
	deletes  []string
}

func newFakeTimerBackend() *fakeTimerBackend {
	return &fakeTimerBackend{pending: make(map[string]bool)}
}

func (f *fakeTimerBackend) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueues++

	id := taskIDOf(task)
	if f.pending[id] {
		return nil, asynq.ErrTaskIDConflict
	}
	f.pending[id] = true
	return &asynq.TaskInfo{}, nil
}

func (f *fakeTimerBackend) Close() error {
	return nil
}

func (f *fakeTimerBackend) DeleteTask(queue, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.pending[id] {
		return asynq.ErrTaskNotFound
	}
	delete(f.pending, id)
	f.deletes = append(f.deletes, id)
	return nil
}

func taskIDOf(task *asynq.Task) string {
	var payload DispatchPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ""
	}
	return dispatchTaskID(payload.PostID)
}

func newTestClient(backend *fakeTimerBackend) *Client {
	return &Client{asynq: backend, inspector: backend}
}

func TestEnqueueAtRegistersTask(t *testing.T) {
	backend := newFakeTimerBackend()
	c := newTestClient(backend)

	require.NoError(t, c.EnqueueAt(1, time.Now().Add(time.Hour)))
	assert.True(t, backend.pending[dispatchTaskID(1)])
	assert.Equal(t, 1, backend.enqueues)
}

func TestEnqueueAtReplacesExistingTask(t *testing.T) {
	backend := newFakeTimerBackend()
	c := newTestClient(backend)

	require.NoError(t, c.EnqueueAt(1, time.Now().Add(time.Hour)))
	require.NoError(t, c.EnqueueAt(1, time.Now().Add(2*time.Hour)))

	// Re-scheduling hits the id conflict, deletes the old task and
	// enqueues again, so exactly one timer remains pending.
	assert.Len(t, backend.pending, 1)
	assert.Equal(t, []string{dispatchTaskID(1)}, backend.deletes)
	assert.Equal(t, 3, backend.enqueues)
}

func TestRemoveDeletesPendingTask(t *testing.T) {
	backend := newFakeTimerBackend()
	c := newTestClient(backend)

	require.NoError(t, c.EnqueueAt(1, time.Now().Add(time.Hour)))
	require.NoError(t, c.Remove(1))
	assert.Empty(t, backend.pending)
}

func TestRemoveMissingTaskIsNoOp(t *testing.T) {
	c := newTestClient(newFakeTimerBackend())

	assert.NoError(t, c.Remove(42))
}
