package campaign

import (
	"context"
	"testing"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/platform"
	"github.com/postpilot/postpilot/internal/scheduler"
	"github.com/postpilot/postpilot/internal/storage"
	"github.com/postpilot/postpilot/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalytics struct {
	byPost map[string]*models.PostAnalytics
}

func (f *fakeAnalytics) FetchPostAnalytics(ctx context.Context, post *models.ScheduledPost) (*models.PostAnalytics, error) {
	if a, ok := f.byPost[post.ID]; ok {
		return a, nil
	}
	return &models.PostAnalytics{PostID: post.ID}, nil
}

type campaignEnv struct {
	orch       *orchestrator
	store      *storage.MemoryStore
	analytics  *fakeAnalytics
	twitterID  int64
	linkedinID int64
}

func newTestOrchestrator(t *testing.T) *campaignEnv {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()

	twitterID, err := store.SaveAccount(ctx, &models.SocialAccount{UserID: 1, Platform: "twitter", IsActive: true})
	require.NoError(t, err)
	linkedinID, err := store.SaveAccount(ctx, &models.SocialAccount{UserID: 1, Platform: "linkedin", IsActive: true})
	require.NoError(t, err)

	analytics := &fakeAnalytics{byPost: make(map[string]*models.PostAnalytics)}
	sched := scheduler.New(store, store)
	orch := New(store, store, store, sched, platform.NewRegistry(), analytics, webhook.NewNotifier("")).(*orchestrator)

	return &campaignEnv{
		orch:       orch,
		store:      store,
		analytics:  analytics,
		twitterID:  twitterID,
		linkedinID: linkedinID,
	}
}

func (e *campaignEnv) configs() []models.PlatformConfig {
	return []models.PlatformConfig{
		{Platform: "twitter", AccountID: e.twitterID, Enabled: true},
		{Platform: "linkedin", AccountID: e.linkedinID, Enabled: true, OffsetMinutes: 30},
	}
}

func TestCreateCampaignFanOut(t *testing.T) {
	ctx := context.Background()
	e := newTestOrchestrator(t)
	base := time.Now().Add(time.Hour)

	campaign, posts, err := e.orch.CreateCampaign(ctx, 1, "launch", models.PostContent{Text: "we are live"}, e.configs(), base, models.RecurrenceNone)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusActive, campaign.Status)
	require.Len(t, posts, 2)
	assert.Len(t, campaign.PostIDs, 2)

	assert.Equal(t, "twitter", posts[0].Platform)
	assert.True(t, posts[0].ScheduledAt.Equal(base))
	assert.Equal(t, "linkedin", posts[1].Platform)
	assert.True(t, posts[1].ScheduledAt.Equal(base.Add(30*time.Minute)))

	for _, post := range posts {
		assert.Equal(t, campaign.ID, post.CampaignID)
		saved, err := e.store.GetPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, campaign.ID, saved.CampaignID)
	}
}

func TestCreateCampaignSkipsDisabledConfigs(t *testing.T) {
	ctx := context.Background()
	e := newTestOrchestrator(t)
	base := time.Now().Add(time.Hour)

	configs := e.configs()
	configs[1].Enabled = false
	_, posts, err := e.orch.CreateCampaign(ctx, 1, "launch", models.PostContent{Text: "hi"}, configs, base, models.RecurrenceNone)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "twitter", posts[0].Platform)

	configs[0].Enabled = false
	_, _, err = e.orch.CreateCampaign(ctx, 1, "dead", models.PostContent{Text: "hi"}, configs, base, models.RecurrenceNone)
	assert.Error(t, err)
}

func TestCreateCampaignContentOverride(t *testing.T) {
	ctx := context.Background()
	e := newTestOrchestrator(t)
	base := time.Now().Add(time.Hour)

	override := &models.PostContent{Text: "linkedin flavoured"}
	configs := e.configs()
	configs[1].ContentOverride = override

	_, posts, err := e.orch.CreateCampaign(ctx, 1, "launch", models.PostContent{Text: "generic"}, configs, base, models.RecurrenceNone)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "generic", posts[0].Content.Text)
	assert.Equal(t, "linkedin flavoured", posts[1].Content.Text)
}

func TestCreateCampaignValidation(t *testing.T) {
	ctx := context.Background()
	e := newTestOrchestrator(t)

	_, _, err := e.orch.CreateCampaign(ctx, 1, "empty", models.PostContent{Text: "hi"}, nil, time.Now().Add(time.Hour), models.RecurrenceNone)
	assert.Error(t, err)

	var timeErr *scheduler.InvalidTimeError
	_, _, err = e.orch.CreateCampaign(ctx, 1, "past", models.PostContent{Text: "hi"}, e.configs(), time.Now().Add(-time.Minute), models.RecurrenceNone)
	require.ErrorAs(t, err, &timeErr)

	var ownErr *scheduler.OwnershipError
	_, _, err = e.orch.CreateCampaign(ctx, 2, "foreign", models.PostContent{Text: "hi"}, e.configs(), time.Now().Add(time.Hour), models.RecurrenceNone)
	require.ErrorAs(t, err, &ownErr)
}

func TestCreateCampaignRecurringExpansion(t *testing.T) {
	ctx := context.Background()
	e := newTestOrchestrator(t)
	base := time.Now().Add(time.Hour)

	configs := []models.PlatformConfig{
		{Platform: "twitter", AccountID: e.twitterID, Enabled: true, Recurrence: models.RecurrenceDaily},
	}
	campaign, posts, err := e.orch.CreateCampaign(ctx, 1, "daily", models.PostContent{Text: "gm"}, configs, base, models.RecurrenceNone)
	require.NoError(t, err)
	// the base post plus the eagerly expanded occurrences
	require.Len(t, posts, 1+maxRecurringPerConfig)
	assert.Len(t, campaign.PostIDs, 1+maxRecurringPerConfig)
	assert.True(t, posts[1].ScheduledAt.Equal(base.AddDate(0, 0, 1)))
	assert.Equal(t, models.RecurrenceNone, posts[1].Recurrence)
}

func TestPauseCampaign(t *testing.T) {
	ctx := context.Background()
	e := newTestOrchestrator(t)
	base := time.Now().Add(time.Hour)

	campaign, posts, err := e.orch.CreateCampaign(ctx, 1, "launch", models.PostContent{Text: "hi"}, e.configs(), base, models.RecurrenceNone)
	require.NoError(t, err)

	// one child already made it out the door
	published := posts[0]
	published.Status = models.PostStatusPublished
	require.NoError(t, e.store.SavePost(ctx, published))

	require.NoError(t, e.orch.PauseCampaign(ctx, campaign.ID, 1))

	got, err := e.store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusPaused, got.Status)

	stillPublished, err := e.store.GetPost(ctx, published.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, stillPublished.Status)

	cancelled, err := e.store.GetPost(ctx, posts[1].ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusCancelled, cancelled.Status)

	// pausing a paused campaign is rejected
	var stateErr *scheduler.InvalidStateError
	require.ErrorAs(t, e.orch.PauseCampaign(ctx, campaign.ID, 1), &stateErr)
}

func TestResumeCampaign(t *testing.T) {
	ctx := context.Background()
	e := newTestOrchestrator(t)
	base := time.Now().Add(time.Hour)

	campaign, posts, err := e.orch.CreateCampaign(ctx, 1, "launch", models.PostContent{Text: "hi"}, e.configs(), base, models.RecurrenceNone)
	require.NoError(t, err)

	var stateErr *scheduler.InvalidStateError
	require.ErrorAs(t, e.orch.ResumeCampaign(ctx, campaign.ID, 1), &stateErr)

	require.NoError(t, e.orch.PauseCampaign(ctx, campaign.ID, 1))
	require.NoError(t, e.orch.ResumeCampaign(ctx, campaign.ID, 1))

	got, err := e.store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusActive, got.Status)
	require.Len(t, got.PostIDs, 2)
	// resumed children are fresh posts, not the cancelled originals
	assert.NotContains(t, got.PostIDs, posts[0].ID)
	for _, postID := range got.PostIDs {
		child, err := e.store.GetPost(ctx, postID)
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusScheduled, child.Status)
		assert.True(t, child.ScheduledAt.After(time.Now()))
	}
}

func TestCancelCampaign(t *testing.T) {
	ctx := context.Background()
	e := newTestOrchestrator(t)
	base := time.Now().Add(time.Hour)

	campaign, posts, err := e.orch.CreateCampaign(ctx, 1, "launch", models.PostContent{Text: "hi"}, e.configs(), base, models.RecurrenceNone)
	require.NoError(t, err)

	require.NoError(t, e.orch.CancelCampaign(ctx, campaign.ID, 1))

	got, err := e.store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCancelled, got.Status)
	for _, post := range posts {
		child, err := e.store.GetPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusCancelled, child.Status)
	}

	// terminal campaigns cannot be cancelled again
	var stateErr *scheduler.InvalidStateError
	require.ErrorAs(t, e.orch.CancelCampaign(ctx, campaign.ID, 1), &stateErr)
}

func TestCheckAndCompleteCampaign(t *testing.T) {
	ctx := context.Background()
	e := newTestOrchestrator(t)
	base := time.Now().Add(time.Hour)

	campaign, posts, err := e.orch.CreateCampaign(ctx, 1, "launch", models.PostContent{Text: "hi"}, e.configs(), base, models.RecurrenceNone)
	require.NoError(t, err)

	done, err := e.orch.CheckCampaignCompletion(ctx, campaign.ID)
	require.NoError(t, err)
	assert.False(t, done)

	for _, post := range posts {
		post.Status = models.PostStatusPublished
		require.NoError(t, e.store.SavePost(ctx, post))
	}

	done, err = e.orch.CheckCampaignCompletion(ctx, campaign.ID)
	require.NoError(t, err)
	assert.True(t, done)

	require.NoError(t, e.orch.CompleteCampaign(ctx, campaign.ID))
	got, err := e.store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	// completion is not re-entrant
	var stateErr *scheduler.InvalidStateError
	require.ErrorAs(t, e.orch.CompleteCampaign(ctx, campaign.ID), &stateErr)
}

func TestGetCampaignAnalytics(t *testing.T) {
	ctx := context.Background()
	e := newTestOrchestrator(t)
	base := time.Now().Add(time.Hour)

	campaign, posts, err := e.orch.CreateCampaign(ctx, 1, "launch", models.PostContent{Text: "hi"}, e.configs(), base, models.RecurrenceNone)
	require.NoError(t, err)

	posts[0].Status = models.PostStatusPublished
	require.NoError(t, e.store.SavePost(ctx, posts[0]))
	posts[1].Status = models.PostStatusPublished
	require.NoError(t, e.store.SavePost(ctx, posts[1]))

	e.analytics.byPost[posts[0].ID] = &models.PostAnalytics{Impressions: 100, Reach: 80, Engagement: 12, Clicks: 5}
	e.analytics.byPost[posts[1].ID] = &models.PostAnalytics{Impressions: 300, Reach: 220, Engagement: 40, Clicks: 9}

	aggregate, err := e.orch.GetCampaignAnalytics(ctx, campaign.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, aggregate.PublishedPosts)
	assert.Equal(t, int64(400), aggregate.TotalImpressions)
	assert.Equal(t, int64(300), aggregate.TotalReach)
	assert.Equal(t, int64(52), aggregate.TotalEngagement)
	assert.Equal(t, int64(14), aggregate.TotalClicks)
	assert.Equal(t, posts[1].ID, aggregate.BestPostID)
	assert.Equal(t, int64(40), aggregate.BestEngagement)
}

func TestGetCampaignAnalyticsOwnership(t *testing.T) {
	ctx := context.Background()
	e := newTestOrchestrator(t)
	base := time.Now().Add(time.Hour)

	campaign, _, err := e.orch.CreateCampaign(ctx, 1, "launch", models.PostContent{Text: "hi"}, e.configs(), base, models.RecurrenceNone)
	require.NoError(t, err)

	var ownErr *scheduler.OwnershipError
	_, err = e.orch.GetCampaignAnalytics(ctx, campaign.ID, 99)
	require.ErrorAs(t, err, &ownErr)

	_, err = e.orch.GetCampaignAnalytics(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDuplicateCampaign(t *testing.T) {
	ctx := context.Background()
	e := newTestOrchestrator(t)
	base := time.Now().Add(time.Hour)

	original, _, err := e.orch.CreateCampaign(ctx, 1, "launch", models.PostContent{Text: "hi"}, e.configs(), base, models.RecurrenceNone)
	require.NoError(t, err)

	clone, posts, err := e.orch.DuplicateCampaign(ctx, original.ID, 1, base.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "launch (copy)", clone.Name)
	assert.NotEqual(t, original.ID, clone.ID)
	require.Len(t, posts, 2)
	assert.True(t, posts[0].ScheduledAt.Equal(base.Add(48*time.Hour)))
}
