package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/postpilot/postpilot/internal/campaign"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/platform"
	"github.com/postpilot/postpilot/internal/publisher"
	"github.com/postpilot/postpilot/internal/scheduler"
	"github.com/postpilot/postpilot/internal/storage"
	"github.com/postpilot/postpilot/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPublisher marks every dispatched post as published and remembers
// which posts it saw.
type stubPublisher struct {
	mu    sync.Mutex
	store *storage.MemoryStore
	seen  []string
}

func (s *stubPublisher) PublishPost(ctx context.Context, post *models.ScheduledPost, acc *models.SocialAccount) (*platform.PublishResult, error) {
	return &platform.PublishResult{PostID: "remote"}, nil
}

func (s *stubPublisher) PublishWithRetry(ctx context.Context, post *models.ScheduledPost, acc *models.SocialAccount, maxRetries int) publisher.Result {
	s.mu.Lock()
	s.seen = append(s.seen, post.ID)
	s.mu.Unlock()

	post.Status = models.PostStatusPublished
	if err := s.store.SavePost(ctx, post); err != nil {
		return publisher.Result{Err: err}
	}
	return publisher.Result{Success: true, PlatformPostID: "remote"}
}

func (s *stubPublisher) PublishBatch(ctx context.Context, pairs []publisher.Pair, maxConcurrent int) map[string]publisher.Result {
	return nil
}

func (s *stubPublisher) FetchPostAnalytics(ctx context.Context, post *models.ScheduledPost) (*models.PostAnalytics, error) {
	return &models.PostAnalytics{}, nil
}

type workerEnv struct {
	worker    *Worker
	store     *storage.MemoryStore
	pub       *stubPublisher
	orch      campaign.Orchestrator
	accountID int64
}

func newTestWorker(t *testing.T) *workerEnv {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()

	accountID, err := store.SaveAccount(ctx, &models.SocialAccount{UserID: 1, Platform: "twitter", IsActive: true})
	require.NoError(t, err)

	sched := scheduler.New(store, store)
	pub := &stubPublisher{store: store}
	orch := campaign.New(store, store, store, sched, platform.NewRegistry(), pub, webhook.NewNotifier(""))
	w := New(sched, pub, store, store, orch, time.Second, 2)

	return &workerEnv{worker: w, store: store, pub: pub, orch: orch, accountID: accountID}
}

func (e *workerEnv) savePost(t *testing.T, id string, status models.PostStatus, at time.Time) {
	t.Helper()
	require.NoError(t, e.store.SavePost(context.Background(), &models.ScheduledPost{
		ID:          id,
		UserID:      1,
		AccountID:   e.accountID,
		Platform:    "twitter",
		Content:     models.PostContent{Text: "hi"},
		ScheduledAt: at,
		Status:      status,
	}))
}

func TestPollDispatchesDuePosts(t *testing.T) {
	ctx := context.Background()
	e := newTestWorker(t)
	past := time.Now().Add(-time.Minute)

	e.savePost(t, "due1", models.PostStatusScheduled, past.Add(-time.Minute))
	e.savePost(t, "due2", models.PostStatusScheduled, past)
	e.savePost(t, "future", models.PostStatusScheduled, time.Now().Add(time.Hour))
	e.savePost(t, "cancelled", models.PostStatusCancelled, past)

	require.NoError(t, e.worker.Poll(ctx))

	assert.ElementsMatch(t, []string{"due1", "due2"}, e.pub.seen)

	published, err := e.store.GetPost(ctx, "due1")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, published.Status)

	untouched, err := e.store.GetPost(ctx, "future")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, untouched.Status)
}

func TestPollEmptyRound(t *testing.T) {
	e := newTestWorker(t)
	require.NoError(t, e.worker.Poll(context.Background()))
	assert.Empty(t, e.pub.seen)
}

func TestPollFailsPostForInactiveAccount(t *testing.T) {
	ctx := context.Background()
	e := newTestWorker(t)

	inactiveID, err := e.store.SaveAccount(ctx, &models.SocialAccount{UserID: 1, Platform: "twitter", IsActive: false})
	require.NoError(t, err)

	require.NoError(t, e.store.SavePost(ctx, &models.ScheduledPost{
		ID:          "orphan",
		UserID:      1,
		AccountID:   inactiveID,
		Platform:    "twitter",
		ScheduledAt: time.Now().Add(-time.Minute),
		Status:      models.PostStatusScheduled,
	}))

	require.NoError(t, e.worker.Poll(ctx))

	assert.Empty(t, e.pub.seen)
	failed, err := e.store.GetPost(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, failed.Status)
	assert.NotEmpty(t, failed.ErrorMessage)
}

func TestPollCompletesCampaign(t *testing.T) {
	ctx := context.Background()
	e := newTestWorker(t)
	past := time.Now().Add(-time.Minute)

	require.NoError(t, e.store.SaveCampaign(ctx, &models.SocialCampaign{
		ID:      "c1",
		UserID:  1,
		Name:    "launch",
		Status:  models.CampaignStatusActive,
		PostIDs: []string{"child"},
	}))
	e.savePost(t, "child", models.PostStatusScheduled, past)

	child, err := e.store.GetPost(ctx, "child")
	require.NoError(t, err)
	child.CampaignID = "c1"
	require.NoError(t, e.store.SavePost(ctx, child))

	require.NoError(t, e.worker.Poll(ctx))

	got, err := e.store.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
}

func TestRunStopsOnCancel(t *testing.T) {
	e := newTestWorker(t)
	e.worker.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.worker.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestRecoverStrandedFailsPublishingPosts(t *testing.T) {
	ctx := context.Background()
	e := newTestWorker(t)
	past := time.Now().Add(-time.Minute)

	e.savePost(t, "stuck", models.PostStatusPublishing, past)
	e.savePost(t, "pending", models.PostStatusScheduled, time.Now().Add(time.Hour))

	require.NoError(t, e.worker.recoverStranded(ctx))
	assert.Empty(t, e.pub.seen)

	stuck, err := e.store.GetPost(ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, stuck.Status)
	assert.Equal(t, "publishing interrupted by restart", stuck.ErrorMessage)

	pending, err := e.store.GetPost(ctx, "pending")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, pending.Status)
}

func TestRecoverStrandedCompletesCampaign(t *testing.T) {
	ctx := context.Background()
	e := newTestWorker(t)

	require.NoError(t, e.store.SaveCampaign(ctx, &models.SocialCampaign{
		ID:      "c1",
		UserID:  1,
		Name:    "launch",
		Status:  models.CampaignStatusActive,
		PostIDs: []string{"child"},
	}))
	require.NoError(t, e.store.SavePost(ctx, &models.ScheduledPost{
		ID:          "child",
		UserID:      1,
		AccountID:   e.accountID,
		Platform:    "twitter",
		CampaignID:  "c1",
		Content:     models.PostContent{Text: "hi"},
		ScheduledAt: time.Now().Add(-time.Minute),
		Status:      models.PostStatusPublishing,
	}))

	require.NoError(t, e.worker.recoverStranded(ctx))

	camp, err := e.store.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, camp.Status)
}
