package scheduler

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/dispatcher"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

type fakePostRepo struct {
	mu    sync.Mutex
	posts map[int64]*models.Post
}

func newFakePostRepo(posts ...*models.Post) *fakePostRepo {
	r := &fakePostRepo{posts: make(map[int64]*models.Post)}
	for _, p := range posts {
		r.posts[p.ID] = p
	}
	return r
}

func (r *fakePostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	return 0, nil
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePostRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	return nil, nil
}

func (r *fakePostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	return true, nil
}

func (r *fakePostRepo) UpdateStatus(ctx context.Context, status string, postID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[postID]; ok {
		p.Status = status
	}
	return nil
}

func (r *fakePostRepo) SetMediaURL(ctx context.Context, postID int64, mediaURL string) error {
	return nil
}

func (r *fakePostRepo) SetSchedule(ctx context.Context, postID int64, scheduledAt *time.Time, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[postID]; ok {
		p.ScheduledAt = scheduledAt
		p.Status = status
	}
	return nil
}

func (r *fakePostRepo) ClearSchedule(ctx context.Context, postID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok || p.Status != models.PostStatusScheduled {
		return false, nil
	}
	p.Status = models.PostStatusDraft
	p.ScheduledAt = nil
	return true, nil
}

func (r *fakePostRepo) ClaimForDispatch(ctx context.Context, postID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return false, nil
	}
	if p.Status != models.PostStatusPending && p.Status != models.PostStatusScheduled {
		return false, nil
	}
	p.Status = models.PostStatusProcessing
	return true, nil
}

func (r *fakePostRepo) ListDueScheduled(ctx context.Context, from, to time.Time) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.Status != models.PostStatusScheduled || p.ScheduledAt == nil {
			continue
		}
		at := *p.ScheduledAt
		if !at.Before(from) && !at.After(to) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePostRepo) ListMissedScheduled(ctx context.Context, cutoff time.Time) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusScheduled && p.ScheduledAt != nil && p.ScheduledAt.Before(cutoff) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePostRepo) Remove(ctx context.Context, id int64) error {
	return nil
}

type fakeTaskRepo struct {
	mu         sync.Mutex
	failedWith map[int64]string
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{failedWith: make(map[int64]string)}
}

func (r *fakeTaskRepo) CreateForPlatforms(ctx context.Context, tx *sql.Tx, postID int64, platforms []string) error {
	return nil
}

func (r *fakeTaskRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PlatformTask, error) {
	return nil, nil
}

func (r *fakeTaskRepo) MarkPosted(ctx context.Context, taskID int64, postURL, externalID string, postedAt time.Time) error {
	return nil
}

func (r *fakeTaskRepo) MarkFailed(ctx context.Context, taskID int64, errorMessage string) error {
	return nil
}

func (r *fakeTaskRepo) ResetForRetry(ctx context.Context, postID int64) error {
	return nil
}

func (r *fakeTaskRepo) FailPending(ctx context.Context, postID int64, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedWith[postID] = errorMessage
	return nil
}

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []int64
	err        error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, postID int64) (*transfer.DispatchOutcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.dispatched = append(d.dispatched, postID)
	return &transfer.DispatchOutcome{PostID: postID, Status: models.PostStatusPosted}, nil
}

func (d *fakeDispatcher) dispatchedIDs() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int64(nil), d.dispatched...)
}

type fakeTimerQueue struct {
	mu       sync.Mutex
	enqueued map[int64]time.Time
	history  map[int64][]time.Time
	removed  []int64
	err      error
}

func newFakeTimerQueue() *fakeTimerQueue {
	return &fakeTimerQueue{
		enqueued: make(map[int64]time.Time),
		history:  make(map[int64][]time.Time),
	}
}

// EnqueueAt mirrors the real timer queue contract: at most one pending
// timer per post, later registrations replace earlier ones.
func (q *fakeTimerQueue) EnqueueAt(postID int64, fireAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.enqueued[postID] = fireAt
	q.history[postID] = append(q.history[postID], fireAt)
	return nil
}

func (q *fakeTimerQueue) Remove(postID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removed = append(q.removed, postID)
	return nil
}

func testSweepConfig() config.Sweep {
	return config.Sweep{
		Interval:    time.Minute,
		GraceWindow: 5 * time.Minute,
		DrainWait:   2 * time.Second,
	}
}

func newTestScheduler(pr *fakePostRepo, tr *fakeTaskRepo, d Dispatcher, timers TimerQueue, now time.Time) *Scheduler {
	s := New(testSweepConfig(), pr, tr, d, timers, 4)
	s.now = func() time.Time { return now }
	return s
}

func TestScheduleFutureTime(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	pr := newFakePostRepo(&models.Post{ID: 1, Status: models.PostStatusPending})
	timers := newFakeTimerQueue()
	s := newTestScheduler(pr, newFakeTaskRepo(), &fakeDispatcher{}, timers, now)

	fireAt := now.Add(time.Hour)
	require.NoError(t, s.Schedule(context.Background(), 1, fireAt))

	post, err := pr.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, post.Status)
	require.NotNil(t, post.ScheduledAt)
	assert.True(t, post.ScheduledAt.Equal(fireAt))
	assert.Equal(t, time.UTC, post.ScheduledAt.Location())

	assert.True(t, timers.enqueued[1].Equal(fireAt))
}

func TestScheduleNormalizesToUTC(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	pr := newFakePostRepo(&models.Post{ID: 1, Status: models.PostStatusPending})
	s := newTestScheduler(pr, newFakeTaskRepo(), &fakeDispatcher{}, newFakeTimerQueue(), now)

	loc := time.FixedZone("UTC+5", 5*3600)
	fireAt := time.Date(2026, 3, 10, 19, 0, 0, 0, loc)
	require.NoError(t, s.Schedule(context.Background(), 1, fireAt))

	post, err := pr.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, post.ScheduledAt)
	assert.Equal(t, time.UTC, post.ScheduledAt.Location())
	assert.True(t, post.ScheduledAt.Equal(fireAt))
}

func TestSchedulePastTimeRejected(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	pr := newFakePostRepo(&models.Post{ID: 1, Status: models.PostStatusPending})
	s := newTestScheduler(pr, newFakeTaskRepo(), &fakeDispatcher{}, newFakeTimerQueue(), now)

	err := s.Schedule(context.Background(), 1, now.Add(-time.Minute))
	assert.ErrorIs(t, err, ErrInvalidTime)

	err = s.Schedule(context.Background(), 1, now)
	assert.ErrorIs(t, err, ErrInvalidTime)

	post, _ := pr.GetByID(context.Background(), 1)
	assert.Equal(t, models.PostStatusPending, post.Status)
}

func TestScheduleSurvivesTimerFailure(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	pr := newFakePostRepo(&models.Post{ID: 1, Status: models.PostStatusPending})
	timers := newFakeTimerQueue()
	timers.err = assert.AnError
	s := newTestScheduler(pr, newFakeTaskRepo(), &fakeDispatcher{}, timers, now)

	// The sweep is the backstop, so a broken timer queue must not fail
	// the schedule request.
	require.NoError(t, s.Schedule(context.Background(), 1, now.Add(time.Hour)))

	post, _ := pr.GetByID(context.Background(), 1)
	assert.Equal(t, models.PostStatusScheduled, post.Status)
}

func TestCancelScheduledPost(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	at := now.Add(time.Hour)
	pr := newFakePostRepo(&models.Post{ID: 1, Status: models.PostStatusScheduled, ScheduledAt: &at})
	timers := newFakeTimerQueue()
	s := newTestScheduler(pr, newFakeTaskRepo(), &fakeDispatcher{}, timers, now)

	require.NoError(t, s.Cancel(context.Background(), 1))

	post, _ := pr.GetByID(context.Background(), 1)
	assert.Equal(t, models.PostStatusDraft, post.Status)
	assert.Nil(t, post.ScheduledAt)
	assert.Equal(t, []int64{1}, timers.removed)
}

func TestCancelAfterClaimKeepsPostProcessing(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	at := now.Add(-time.Minute)
	pr := newFakePostRepo(&models.Post{ID: 1, Status: models.PostStatusProcessing, ScheduledAt: &at})
	tr := newFakeTaskRepo()
	s := newTestScheduler(pr, tr, &fakeDispatcher{}, newFakeTimerQueue(), now)

	// A dispatch claimed the post just before the cancel; the cancel must
	// not demote an in-flight post back to draft.
	require.NoError(t, s.Cancel(context.Background(), 1))

	post, _ := pr.GetByID(context.Background(), 1)
	assert.Equal(t, models.PostStatusProcessing, post.Status)
	assert.NotNil(t, post.ScheduledAt)
}

func TestScheduleReplacesPendingTimer(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	pr := newFakePostRepo(&models.Post{ID: 1, Status: models.PostStatusPending})
	timers := newFakeTimerQueue()
	s := newTestScheduler(pr, newFakeTaskRepo(), &fakeDispatcher{}, timers, now)

	first := now.Add(time.Hour)
	second := now.Add(2 * time.Hour)
	require.NoError(t, s.Schedule(context.Background(), 1, first))
	require.NoError(t, s.Schedule(context.Background(), 1, second))

	// Two registrations, one pending timer: the second replaces the
	// first instead of adding a duplicate.
	assert.Len(t, timers.history[1], 2)
	require.Len(t, timers.enqueued, 1)
	assert.True(t, timers.enqueued[1].Equal(second))

	post, _ := pr.GetByID(context.Background(), 1)
	require.NotNil(t, post.ScheduledAt)
	assert.True(t, post.ScheduledAt.Equal(second))
}

func TestCancelLeavesUnscheduledPostAlone(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	pr := newFakePostRepo(&models.Post{ID: 1, Status: models.PostStatusPosted})
	s := newTestScheduler(pr, newFakeTaskRepo(), &fakeDispatcher{}, newFakeTimerQueue(), now)

	require.NoError(t, s.Cancel(context.Background(), 1))

	post, _ := pr.GetByID(context.Background(), 1)
	assert.Equal(t, models.PostStatusPosted, post.Status)
}

func TestSweepDispatchesDuePosts(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	due := now.Add(-30 * time.Second)
	future := now.Add(time.Hour)
	pr := newFakePostRepo(
		&models.Post{ID: 1, Status: models.PostStatusScheduled, ScheduledAt: &due},
		&models.Post{ID: 2, Status: models.PostStatusScheduled, ScheduledAt: &future},
	)
	d := &fakeDispatcher{}
	s := newTestScheduler(pr, newFakeTaskRepo(), d, newFakeTimerQueue(), now)

	s.Sweep()
	s.Stop()

	assert.Equal(t, []int64{1}, d.dispatchedIDs())
}

func TestSweepIgnoresLostClaims(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	due := now.Add(-30 * time.Second)
	pr := newFakePostRepo(&models.Post{ID: 1, Status: models.PostStatusScheduled, ScheduledAt: &due})
	d := &fakeDispatcher{err: dispatcher.ErrAlreadyProcessed}
	s := newTestScheduler(pr, newFakeTaskRepo(), d, newFakeTimerQueue(), now)

	s.Sweep()
	s.Stop()

	assert.Empty(t, d.dispatchedIDs())
}

func TestSweepFailsMissedPosts(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	missed := now.Add(-10 * time.Minute)
	pr := newFakePostRepo(&models.Post{ID: 1, Status: models.PostStatusScheduled, ScheduledAt: &missed})
	tr := newFakeTaskRepo()
	d := &fakeDispatcher{}
	s := newTestScheduler(pr, tr, d, newFakeTimerQueue(), now)

	s.Sweep()
	s.Stop()

	assert.Empty(t, d.dispatchedIDs())

	post, _ := pr.GetByID(context.Background(), 1)
	assert.Equal(t, models.PostStatusFailed, post.Status)
	assert.Equal(t, "missed scheduled window", tr.failedWith[1])
}

func TestSweepSkipsMissedPostAlreadyClaimed(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	missed := now.Add(-10 * time.Minute)
	pr := newFakePostRepo(&models.Post{ID: 1, Status: models.PostStatusScheduled, ScheduledAt: &missed})
	tr := newFakeTaskRepo()
	s := newTestScheduler(pr, tr, &fakeDispatcher{}, newFakeTimerQueue(), now)

	// A late timer already claimed the post.
	require.NoError(t, pr.UpdateStatus(context.Background(), models.PostStatusProcessing, 1))

	s.Sweep()
	s.Stop()

	post, _ := pr.GetByID(context.Background(), 1)
	assert.Equal(t, models.PostStatusProcessing, post.Status)
	assert.Empty(t, tr.failedWith)
}
