package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	UpdateStatus(ctx context.Context, status string, postID int64) error
	SetMediaURL(ctx context.Context, postID int64, mediaURL string) error
	SetSchedule(ctx context.Context, postID int64, scheduledAt *time.Time, status string) error
	ClearSchedule(ctx context.Context, postID int64) (bool, error)
	ClaimForDispatch(ctx context.Context, postID int64) (bool, error)
	ListDueScheduled(ctx context.Context, from, to time.Time) ([]*models.Post, error)
	ListMissedScheduled(ctx context.Context, cutoff time.Time) ([]*models.Post, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, title, caption, content_type, media_url, generate_prompt, scheduled_at, status, created_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.UserID, &post.Title, &post.Caption, &post.ContentType,
		&post.MediaURL, &post.GeneratePrompt, &post.ScheduledAt, &post.Status,
		&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, title, caption, content_type, media_url, generate_prompt, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, post.UserID, post.Title, post.Caption, post.ContentType,
			post.MediaURL, post.GeneratePrompt, post.ScheduledAt, post.Status).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, post.UserID, post.Title, post.Caption, post.ContentType,
			post.MediaURL, post.GeneratePrompt, post.ScheduledAt, post.Status).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := "SELECT 1 FROM posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *postRepository) UpdateStatus(ctx context.Context, status string, postID int64) error {
	query := `UPDATE posts SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) SetMediaURL(ctx context.Context, postID int64, mediaURL string) error {
	query := `UPDATE posts SET media_url = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, mediaURL, time.Now().UTC(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) SetSchedule(ctx context.Context, postID int64, scheduledAt *time.Time, status string) error {
	query := `UPDATE posts SET scheduled_at = $1, status = $2, updated_at = $3 WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, scheduledAt, status, time.Now().UTC(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// ClearSchedule returns a scheduled post to draft in one conditional
// update. Once a dispatch has claimed the post the condition no longer
// matches and the cancel is a no-op, reported as cleared=false.
func (r *postRepository) ClearSchedule(ctx context.Context, postID int64) (bool, error) {
	query := `
		UPDATE posts
		SET scheduled_at = NULL, status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusDraft, time.Now().UTC(),
		postID, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	return affected == 1, nil
}

// ClaimForDispatch is the single serialization point for publishing. The
// conditional update moves the post to processing only from pending or
// scheduled, so when a sweep and a queued timer race over the same post
// exactly one caller sees claimed=true.
func (r *postRepository) ClaimForDispatch(ctx context.Context, postID int64) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusProcessing, time.Now().UTC(),
		postID, models.PostStatusPending, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	return affected == 1, nil
}

func (r *postRepository) ListDueScheduled(ctx context.Context, from, to time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 AND scheduled_at >= $2 AND scheduled_at <= $3`
	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, from, to)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) ListMissedScheduled(ctx context.Context, cutoff time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 AND scheduled_at < $2`
	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// Remove deletes a post and, through the foreign key cascade, its platform
// tasks. Posts in processing are never deleted mid-flight.
func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1 AND status <> $2`
	_, err := r.db.ExecContext(ctx, query, id, models.PostStatusProcessing)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
