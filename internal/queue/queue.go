// Package queue arms the per-post delayed dispatch task on Redis. These
// timers give minute-or-better firing precision; the scheduler sweep
// remains the durability backstop when Redis or the process restarts.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TaskTypeDispatchPost = "dispatch:post"

type DispatchPostPayload struct {
	PostID int64 `json:"post_id"`
}

func dispatchTaskID(postID int64) string {
	return fmt.Sprintf("dispatch:post:%d", postID)
}

type taskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type taskInspector interface {
	DeleteTask(queue, id string) error
}

// Client wraps the asynq client and inspector behind the scheduler's
// TimerQueue contract.
type Client struct {
	asynq     taskEnqueuer
	inspector taskInspector
}

func NewClient(redisOpt asynq.RedisClientOpt) *Client {
	return &Client{
		asynq:     asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
	}
}

// EnqueueAt registers the dispatch task for a post. The deterministic
// task id keeps at most one pending task per post: scheduling again
// deletes the previous task, so only the newest time fires.
func (c *Client) EnqueueAt(postID int64, fireAt time.Time) error {
	taskID := dispatchTaskID(postID)

	payload, err := json.Marshal(DispatchPostPayload{PostID: postID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeDispatchPost, payload)
	opts := []asynq.Option{asynq.ProcessAt(fireAt), asynq.TaskID(taskID), asynq.MaxRetry(0)}

	_, err = c.asynq.Enqueue(task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		if err := c.Remove(postID); err != nil {
			return err
		}
		_, err = c.asynq.Enqueue(task, opts...)
	}
	return err
}

// Remove drops the pending dispatch task for a post. Missing tasks are a
// no-op: the timer may have fired already or never existed.
func (c *Client) Remove(postID int64) error {
	err := c.inspector.DeleteTask("default", dispatchTaskID(postID))
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return err
}

func (c *Client) Close() error {
	return c.asynq.Close()
}
