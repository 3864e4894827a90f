package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/maheshrc27/postpilot/internal/dispatcher"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

// Dispatcher runs one publish attempt for a post.
type Dispatcher interface {
	Dispatch(ctx context.Context, postID int64) (*transfer.DispatchOutcome, error)
}

type Worker struct {
	d Dispatcher
}

func NewWorker(d Dispatcher) *Worker {
	return &Worker{d: d}
}

// HandleDispatchPostTask fires when a post's scheduled time arrives. A
// lost claim race means the sweep or a manual publish got there first,
// which is the expected outcome, not an error. Dispatch failures are not
// retried here: each platform gets exactly one try per dispatch, and
// retries only happen through an explicit new publish request.
func (w *Worker) HandleDispatchPostTask(ctx context.Context, task *asynq.Task) error {
	var payload DispatchPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	outcome, err := w.d.Dispatch(ctx, payload.PostID)
	if err != nil {
		if errors.Is(err, dispatcher.ErrAlreadyProcessed) {
			return nil
		}
		slog.Info("scheduled dispatch failed", "post_id", payload.PostID, "error", err.Error())
		return nil
	}

	slog.Info("scheduled dispatch finished", "post_id", payload.PostID, "status", outcome.Status)
	return nil
}
