package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

// ErrValidation marks bad input at creation or scheduling time. It is
// surfaced to the caller immediately and never persisted as post state.
var ErrValidation = errors.New("validation failed")

// Scheduler registers and cancels publish timers for posts.
type Scheduler interface {
	Schedule(ctx context.Context, postID int64, fireAt time.Time) error
	Cancel(ctx context.Context, postID int64) error
}

// Dispatcher runs one publish attempt for a post.
type Dispatcher interface {
	Dispatch(ctx context.Context, postID int64) (*transfer.DispatchOutcome, error)
}

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, media *multipart.FileHeader) (int64, bool, error)
	PublishNow(ctx context.Context, userID, postID int64) (*transfer.DispatchOutcome, error)
	SchedulePost(ctx context.Context, userID, postID int64, scheduledAt time.Time) error
	CancelScheduled(ctx context.Context, userID, postID int64) error
	GetStatus(ctx context.Context, userID, postID int64) (*transfer.PostStatus, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	db    *sql.DB
	pr    repository.PostRepository
	tr    repository.PlatformTaskRepository
	r2    *R2Service
	sched Scheduler
	d     Dispatcher
}

func NewPostService(
	db *sql.DB,
	pr repository.PostRepository,
	tr repository.PlatformTaskRepository,
	r2 *R2Service,
	sched Scheduler,
	d Dispatcher) PostService {
	return &postService{
		db:    db,
		pr:    pr,
		tr:    tr,
		r2:    r2,
		sched: sched,
		d:     d,
	}
}

// CreatePost validates input, stores the post with one task per target
// platform, and registers the schedule when one was requested. The
// returned bool reports whether the post was scheduled; otherwise the
// post is left pending and the caller decides when to dispatch.
func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, media *multipart.FileHeader) (int64, bool, error) {
	if pc == nil {
		return 0, false, fmt.Errorf("%w: post data is missing", ErrValidation)
	}
	if pc.Caption == "" && pc.GeneratePrompt == "" {
		return 0, false, fmt.Errorf("%w: caption cannot be empty", ErrValidation)
	}
	if !models.ValidContentType(pc.ContentType) {
		return 0, false, fmt.Errorf("%w: content type must be text, image or video", ErrValidation)
	}

	platforms, err := parsePlatforms(pc.Platforms)
	if err != nil {
		return 0, false, err
	}

	scheduledAt, err := parseScheduledAt(pc.ScheduledAt)
	if err != nil {
		return 0, false, err
	}

	var mediaURL string
	if media != nil {
		mediaURL, err = s.r2.UploadMultipart(ctx, media)
		if err != nil {
			return 0, false, fmt.Errorf("error uploading media: %w", err)
		}
	}

	status := models.PostStatusPending
	if scheduledAt != nil {
		status = models.PostStatusScheduled
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, false, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	post := models.Post{
		UserID:         userID,
		Title:          pc.Title,
		Caption:        pc.Caption,
		ContentType:    pc.ContentType,
		MediaURL:       mediaURL,
		GeneratePrompt: pc.GeneratePrompt,
		ScheduledAt:    scheduledAt,
		Status:         status,
	}

	postID, err := s.pr.Create(ctx, tx, &post)
	if err != nil {
		return 0, false, fmt.Errorf("error creating post: %w", err)
	}

	if err = s.tr.CreateForPlatforms(ctx, tx, postID, platforms); err != nil {
		return 0, false, fmt.Errorf("error creating platform tasks: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if scheduledAt != nil {
		// The post exists either way; hand back its id so a failed
		// schedule registration is not retried as a duplicate create.
		if err := s.sched.Schedule(ctx, postID, *scheduledAt); err != nil {
			return postID, false, err
		}
		return postID, true, nil
	}
	return postID, false, nil
}

// PublishNow dispatches synchronously. A partially posted or failed post
// is re-opened first; only its non-posted tasks get another attempt.
func (s *postService) PublishNow(ctx context.Context, userID, postID int64) (*transfer.DispatchOutcome, error) {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	switch post.Status {
	case models.PostStatusPartiallyPosted, models.PostStatusFailed:
		if err := s.tr.ResetForRetry(ctx, postID); err != nil {
			return nil, err
		}
		if err := s.pr.UpdateStatus(ctx, models.PostStatusPending, postID); err != nil {
			return nil, err
		}
	case models.PostStatusDraft:
		if err := s.pr.UpdateStatus(ctx, models.PostStatusPending, postID); err != nil {
			return nil, err
		}
	case models.PostStatusPosted:
		return nil, fmt.Errorf("%w: post is already published", ErrValidation)
	}

	return s.d.Dispatch(ctx, postID)
}

func (s *postService) SchedulePost(ctx context.Context, userID, postID int64, scheduledAt time.Time) error {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return err
	}

	switch post.Status {
	case models.PostStatusProcessing:
		return fmt.Errorf("%w: post is being published", ErrValidation)
	case models.PostStatusPosted:
		return fmt.Errorf("%w: post is already published", ErrValidation)
	case models.PostStatusPartiallyPosted, models.PostStatusFailed:
		if err := s.tr.ResetForRetry(ctx, postID); err != nil {
			return err
		}
	}

	return s.sched.Schedule(ctx, postID, scheduledAt)
}

func (s *postService) CancelScheduled(ctx context.Context, userID, postID int64) error {
	if _, err := s.ownedPost(ctx, userID, postID); err != nil {
		return err
	}
	return s.sched.Cancel(ctx, postID)
}

func (s *postService) GetStatus(ctx context.Context, userID, postID int64) (*transfer.PostStatus, error) {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.tr.ListByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}

	status := &transfer.PostStatus{
		PostID:      post.ID,
		Status:      post.Status,
		ScheduledAt: post.ScheduledAt,
	}
	for _, task := range tasks {
		status.Platforms = append(status.Platforms, transfer.PlatformResult{
			Platform:     task.Platform,
			Status:       task.Status,
			PostURL:      task.PostURL,
			ExternalID:   task.ExternalID,
			ErrorMessage: task.ErrorMessage,
		})
	}
	return status, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	posts, err := s.pr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts")
	}
	return posts, nil
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return err
	}
	if post.Status == models.PostStatusProcessing {
		return fmt.Errorf("%w: post is being published", ErrValidation)
	}

	if err := s.sched.Cancel(ctx, postID); err != nil {
		slog.Info(err.Error())
	}
	return s.pr.Remove(ctx, postID)
}

func (s *postService) ownedPost(ctx context.Context, userID, postID int64) (*models.Post, error) {
	if userID == 0 || postID == 0 {
		return nil, fmt.Errorf("%w: post id is not valid", ErrValidation)
	}

	isOwner, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !isOwner {
		return nil, fmt.Errorf("%w: post doesn't exist", ErrValidation)
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil || post == nil {
		return nil, fmt.Errorf("error getting post info")
	}
	return post, nil
}

func parsePlatforms(raw string) ([]string, error) {
	var platforms []string
	if err := json.Unmarshal([]byte(raw), &platforms); err != nil {
		return nil, fmt.Errorf("%w: invalid platforms format", ErrValidation)
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("%w: no platforms selected", ErrValidation)
	}

	seen := make(map[string]struct{}, len(platforms))
	for _, platform := range platforms {
		if !models.ValidPlatform(platform) {
			return nil, fmt.Errorf("%w: unknown platform %s", ErrValidation, platform)
		}
		if _, dup := seen[platform]; dup {
			return nil, fmt.Errorf("%w: duplicate platform %s", ErrValidation, platform)
		}
		seen[platform] = struct{}{}
	}
	return platforms, nil
}

// parseScheduledAt normalizes the requested time to UTC. Empty input and
// times not in the future both mean immediate publishing.
func parseScheduledAt(raw string) (*time.Time, error) {
	if raw == "" || raw == "now" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04", raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid scheduled time format", ErrValidation)
		}
	}

	utc := t.UTC()
	if !utc.After(time.Now().UTC()) {
		return nil, nil
	}
	return &utc, nil
}
