package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
)

type PlatformTaskRepository interface {
	CreateForPlatforms(ctx context.Context, tx *sql.Tx, postID int64, platforms []string) error
	ListByPostID(ctx context.Context, postID int64) ([]*models.PlatformTask, error)
	MarkPosted(ctx context.Context, taskID int64, postURL, externalID string, postedAt time.Time) error
	MarkFailed(ctx context.Context, taskID int64, errorMessage string) error
	ResetForRetry(ctx context.Context, postID int64) error
	FailPending(ctx context.Context, postID int64, errorMessage string) error
}

type platformTaskRepository struct {
	db *sql.DB
}

func NewPlatformTaskRepository(db *sql.DB) PlatformTaskRepository {
	return &platformTaskRepository{db: db}
}

const taskColumns = `id, post_id, platform, status, post_url, external_id, error_message, posted_at, created_at, updated_at`

func (r *platformTaskRepository) CreateForPlatforms(ctx context.Context, tx *sql.Tx, postID int64, platforms []string) error {
	query := `
		INSERT INTO platform_tasks (post_id, platform, status)
		VALUES ($1, $2, $3)
	`

	for _, platform := range platforms {
		var err error
		if tx != nil {
			_, err = tx.ExecContext(ctx, query, postID, platform, models.TaskStatusPending)
		} else {
			_, err = r.db.ExecContext(ctx, query, postID, platform, models.TaskStatusPending)
		}
		if err != nil {
			slog.Info(err.Error())
			return err
		}
	}
	return nil
}

func (r *platformTaskRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PlatformTask, error) {
	query := `SELECT ` + taskColumns + ` FROM platform_tasks WHERE post_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.PlatformTask
	for rows.Next() {
		var t models.PlatformTask
		err := rows.Scan(&t.ID, &t.PostID, &t.Platform, &t.Status, &t.PostURL, &t.ExternalID,
			&t.ErrorMessage, &t.PostedAt, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

func (r *platformTaskRepository) MarkPosted(ctx context.Context, taskID int64, postURL, externalID string, postedAt time.Time) error {
	query := `
		UPDATE platform_tasks
		SET status = $1, post_url = $2, external_id = $3, error_message = '', posted_at = $4, updated_at = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query, models.TaskStatusPosted, postURL, externalID, postedAt, time.Now().UTC(), taskID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *platformTaskRepository) MarkFailed(ctx context.Context, taskID int64, errorMessage string) error {
	query := `
		UPDATE platform_tasks
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.TaskStatusFailed, errorMessage, time.Now().UTC(), taskID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// ResetForRetry re-opens failed tasks before an explicit re-dispatch.
// Posted tasks are left untouched so a retry never double-posts.
func (r *platformTaskRepository) ResetForRetry(ctx context.Context, postID int64) error {
	query := `
		UPDATE platform_tasks
		SET status = $1, error_message = '', updated_at = $2
		WHERE post_id = $3 AND status = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.TaskStatusPending, time.Now().UTC(), postID, models.TaskStatusFailed)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *platformTaskRepository) FailPending(ctx context.Context, postID int64, errorMessage string) error {
	query := `
		UPDATE platform_tasks
		SET status = $1, error_message = $2, updated_at = $3
		WHERE post_id = $4 AND status = $5
	`
	_, err := r.db.ExecContext(ctx, query, models.TaskStatusFailed, errorMessage, time.Now().UTC(), postID, models.TaskStatusPending)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
