// Package scheduler tracks pending publish times and fires the dispatcher
// when they come due. Precise firing rides on the delayed task queue; the
// periodic sweep over the post store is the authoritative backstop, so
// correctness never depends on in-memory timers surviving a restart.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/dispatcher"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

// ErrInvalidTime is returned when a schedule time is not strictly in the
// future. Callers normalize "now or past" to immediate dispatch instead.
var ErrInvalidTime = errors.New("scheduled time must be in the future")

const missedScheduleMessage = "missed scheduled window"

// Dispatcher runs one publish attempt for a post.
type Dispatcher interface {
	Dispatch(ctx context.Context, postID int64) (*transfer.DispatchOutcome, error)
}

// TimerQueue registers and removes the per-post delayed dispatch task.
// Registering for a post that already has a pending task replaces it.
type TimerQueue interface {
	EnqueueAt(postID int64, fireAt time.Time) error
	Remove(postID int64) error
}

type Scheduler struct {
	cfg    config.Sweep
	pr     repository.PostRepository
	tr     repository.PlatformTaskRepository
	d      Dispatcher
	timers TimerQueue

	c   *cron.Cron
	wg  sync.WaitGroup
	sem chan struct{}
	now func() time.Time
}

func New(
	cfg config.Sweep,
	pr repository.PostRepository,
	tr repository.PlatformTaskRepository,
	d Dispatcher,
	timers TimerQueue,
	maxConcurrent int) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Scheduler{
		cfg:    cfg,
		pr:     pr,
		tr:     tr,
		d:      d,
		timers: timers,
		sem:    make(chan struct{}, maxConcurrent),
		now:    time.Now,
	}
}

// Schedule registers or replaces the publish timer for a post. The post
// moves to scheduled and its timestamp is persisted in UTC before the
// in-memory timer is armed, so a crash between the two is recovered by
// the sweep.
func (s *Scheduler) Schedule(ctx context.Context, postID int64, fireAt time.Time) error {
	fireAt = fireAt.UTC()
	if !fireAt.After(s.now().UTC()) {
		return ErrInvalidTime
	}

	if err := s.pr.SetSchedule(ctx, postID, &fireAt, models.PostStatusScheduled); err != nil {
		return err
	}

	if err := s.timers.EnqueueAt(postID, fireAt); err != nil {
		// The sweep will still fire the post; log and move on.
		slog.Info("failed to arm timer, sweep will pick up the post", "post_id", postID, "error", err.Error())
	}
	return nil
}

// Cancel removes a pending schedule. The demotion to draft is a single
// conditional update against the scheduled status, so a dispatch that
// claims the post concurrently wins and the cancel becomes a no-op.
func (s *Scheduler) Cancel(ctx context.Context, postID int64) error {
	if err := s.timers.Remove(postID); err != nil {
		slog.Info(err.Error())
	}

	_, err := s.pr.ClearSchedule(ctx, postID)
	return err
}

func (s *Scheduler) Start() {
	s.c = cron.New()
	s.c.AddFunc("@every "+s.cfg.Interval.String(), s.Sweep)
	s.c.Start()
	slog.Info("scheduler sweep started", "interval", s.cfg.Interval.String())
}

// Stop halts the sweep and waits for in-flight dispatches to finish, up
// to the configured drain wait.
func (s *Scheduler) Stop() {
	if s.c != nil {
		s.c.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.DrainWait):
		slog.Info("scheduler drain timed out with dispatches still in flight")
	}
}

// Sweep is the reconciliation pass. Posts due within the grace window are
// dispatched; posts that slept past it are marked failed rather than left
// scheduled forever. The claim transition inside Dispatch dedupes against
// queue timers firing for the same post.
func (s *Scheduler) Sweep() {
	ctx := context.Background()
	now := s.now().UTC()

	due, err := s.pr.ListDueScheduled(ctx, now.Add(-s.cfg.GraceWindow), now)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, post := range due {
		s.wg.Add(1)
		s.sem <- struct{}{}

		go func(postID int64) {
			defer s.wg.Done()
			defer func() { <-s.sem }()

			if _, err := s.d.Dispatch(ctx, postID); err != nil && !errors.Is(err, dispatcher.ErrAlreadyProcessed) {
				slog.Info("sweep dispatch failed", "post_id", postID, "error", err.Error())
			}
		}(post.ID)
	}

	missed, err := s.pr.ListMissedScheduled(ctx, now.Add(-s.cfg.GraceWindow))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, post := range missed {
		// Claim first so a late timer cannot publish a post we are about
		// to fail.
		claimed, err := s.pr.ClaimForDispatch(ctx, post.ID)
		if err != nil || !claimed {
			continue
		}
		if err := s.tr.FailPending(ctx, post.ID, missedScheduleMessage); err != nil {
			slog.Info(err.Error())
		}
		if err := s.pr.UpdateStatus(ctx, models.PostStatusFailed, post.ID); err != nil {
			slog.Info(err.Error())
		}
		slog.Info("marked missed scheduled post as failed", "post_id", post.ID)
	}
}
