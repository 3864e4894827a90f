package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

// stubDriver backs a *sql.DB whose transactions always succeed. The
// repositories under test are fakes, so only Begin/Commit ever reach the
// driver.
type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (stubConn) Close() error                        { return nil }
func (stubConn) Begin() (driver.Tx, error)           { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

func init() {
	sql.Register("postservicestub", stubDriver{})
}

func openStubDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("postservicestub", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type stubPostRepo struct {
	created *models.Post
}

func (r *stubPostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	post.ID = 7
	r.created = post
	return post.ID, nil
}

func (r *stubPostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	return r.created, nil
}

func (r *stubPostRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	return nil, nil
}

func (r *stubPostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	return true, nil
}

func (r *stubPostRepo) UpdateStatus(ctx context.Context, status string, postID int64) error {
	return nil
}

func (r *stubPostRepo) SetMediaURL(ctx context.Context, postID int64, mediaURL string) error {
	return nil
}

func (r *stubPostRepo) SetSchedule(ctx context.Context, postID int64, scheduledAt *time.Time, status string) error {
	return nil
}

func (r *stubPostRepo) ClearSchedule(ctx context.Context, postID int64) (bool, error) {
	return false, nil
}

func (r *stubPostRepo) ClaimForDispatch(ctx context.Context, postID int64) (bool, error) {
	return false, nil
}

func (r *stubPostRepo) ListDueScheduled(ctx context.Context, from, to time.Time) ([]*models.Post, error) {
	return nil, nil
}

func (r *stubPostRepo) ListMissedScheduled(ctx context.Context, cutoff time.Time) ([]*models.Post, error) {
	return nil, nil
}

func (r *stubPostRepo) Remove(ctx context.Context, id int64) error {
	return nil
}

type stubTaskRepo struct {
	platforms []string
}

func (r *stubTaskRepo) CreateForPlatforms(ctx context.Context, tx *sql.Tx, postID int64, platforms []string) error {
	r.platforms = platforms
	return nil
}

func (r *stubTaskRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PlatformTask, error) {
	return nil, nil
}

func (r *stubTaskRepo) MarkPosted(ctx context.Context, taskID int64, postURL, externalID string, postedAt time.Time) error {
	return nil
}

func (r *stubTaskRepo) MarkFailed(ctx context.Context, taskID int64, errorMessage string) error {
	return nil
}

func (r *stubTaskRepo) ResetForRetry(ctx context.Context, postID int64) error {
	return nil
}

func (r *stubTaskRepo) FailPending(ctx context.Context, postID int64, errorMessage string) error {
	return nil
}

type stubScheduler struct {
	scheduled []int64
	err       error
}

func (s *stubScheduler) Schedule(ctx context.Context, postID int64, fireAt time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.scheduled = append(s.scheduled, postID)
	return nil
}

func (s *stubScheduler) Cancel(ctx context.Context, postID int64) error {
	return nil
}

func scheduledCreation() *transfer.PostCreation {
	return &transfer.PostCreation{
		Caption:     "hello",
		ContentType: models.ContentTypeText,
		Platforms:   `["facebook"]`,
		ScheduledAt: time.Now().UTC().Add(2 * time.Hour).Format(time.RFC3339),
	}
}

func TestCreatePostSchedulesFutureTime(t *testing.T) {
	sched := &stubScheduler{}
	s := &postService{db: openStubDB(t), pr: &stubPostRepo{}, tr: &stubTaskRepo{}, sched: sched}

	postID, scheduled, err := s.CreatePost(context.Background(), 1, scheduledCreation(), nil)
	require.NoError(t, err)
	assert.True(t, scheduled)
	assert.Equal(t, int64(7), postID)
	assert.Equal(t, []int64{7}, sched.scheduled)
}

func TestCreatePostReturnsIDWhenScheduleFails(t *testing.T) {
	pr := &stubPostRepo{}
	s := &postService{db: openStubDB(t), pr: pr, tr: &stubTaskRepo{}, sched: &stubScheduler{err: assert.AnError}}

	postID, scheduled, err := s.CreatePost(context.Background(), 1, scheduledCreation(), nil)
	assert.Error(t, err)
	assert.False(t, scheduled)

	// The post and its tasks are committed at this point; the caller
	// gets the id back so a retry does not create a duplicate.
	assert.Equal(t, int64(7), postID)
	require.NotNil(t, pr.created)
	assert.Equal(t, models.PostStatusScheduled, pr.created.Status)
}
