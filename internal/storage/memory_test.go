package storage

import (
	"context"
	"testing"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePostRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	got, err := store.GetPost(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	post := &models.ScheduledPost{
		ID:       "p1",
		UserID:   1,
		Platform: "twitter",
		Content:  models.PostContent{Text: "hello"},
		Status:   models.PostStatusScheduled,
	}
	require.NoError(t, store.SavePost(ctx, post))

	got, err = store.GetPost(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello", got.Content.Text)

	// reads return copies, mutating one must not leak into the store
	got.Content.Text = "mutated"
	again, err := store.GetPost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "hello", again.Content.Text)
}

func TestMemoryStoreListDuePosts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	save := func(id string, at time.Time, status models.PostStatus) {
		require.NoError(t, store.SavePost(ctx, &models.ScheduledPost{
			ID:          id,
			UserID:      1,
			ScheduledAt: at,
			Status:      status,
		}))
	}

	save("late", now.Add(-time.Minute), models.PostStatusScheduled)
	save("early", now.Add(-time.Hour), models.PostStatusScheduled)
	save("future", now.Add(time.Hour), models.PostStatusScheduled)
	save("cancelled", now.Add(-time.Hour), models.PostStatusCancelled)
	save("exact", now, models.PostStatusScheduled)

	due, err := store.ListDuePosts(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, "early", due[0].ID)
	assert.Equal(t, "late", due[1].ID)
	assert.Equal(t, "exact", due[2].ID)

	limited, err := store.ListDuePosts(ctx, now, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "early", limited[0].ID)
}

func TestMemoryStoreListDuePostsTieBreak(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SavePost(ctx, &models.ScheduledPost{
			ID:          id,
			ScheduledAt: at,
			Status:      models.PostStatusScheduled,
		}))
	}

	due, err := store.ListDuePosts(ctx, at, 0)
	require.NoError(t, err)
	require.Len(t, due, 3)
	// identical scheduled_at falls back to insertion order
	assert.Equal(t, "a", due[0].ID)
	assert.Equal(t, "b", due[1].ID)
	assert.Equal(t, "c", due[2].ID)
}

func TestMemoryStoreListPublishingPosts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	save := func(id string, status models.PostStatus) {
		require.NoError(t, store.SavePost(ctx, &models.ScheduledPost{
			ID:          id,
			ScheduledAt: at,
			Status:      status,
		}))
	}

	save("first", models.PostStatusPublishing)
	save("scheduled", models.PostStatusScheduled)
	save("second", models.PostStatusPublishing)
	save("done", models.PostStatusPublished)

	publishing, err := store.ListPublishingPosts(ctx)
	require.NoError(t, err)
	require.Len(t, publishing, 2)
	assert.Equal(t, "first", publishing[0].ID)
	assert.Equal(t, "second", publishing[1].ID)
}

func TestMemoryStoreAccounts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.SaveAccount(ctx, &models.SocialAccount{UserID: 7, Platform: "twitter"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	id2, err := store.SaveAccount(ctx, &models.SocialAccount{UserID: 7, Platform: "linkedin"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id2)

	accounts, err := store.ListAccountsByUserID(ctx, 7)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "twitter", accounts[0].Platform)

	require.NoError(t, store.DeleteAccount(ctx, id))
	got, err := store.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreListAccountsExpiringBetween(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.SaveAccount(ctx, &models.SocialAccount{UserID: 1, TokenExpiresAt: now.Add(10 * time.Minute)})
	require.NoError(t, err)
	_, err = store.SaveAccount(ctx, &models.SocialAccount{UserID: 1, TokenExpiresAt: now.Add(2 * time.Hour)})
	require.NoError(t, err)
	_, err = store.SaveAccount(ctx, &models.SocialAccount{UserID: 1}) // never expires
	require.NoError(t, err)

	expiring, err := store.ListAccountsExpiringBetween(ctx, now, now.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, int64(1), expiring[0].ID)
}

func TestMemoryStoreCampaigns(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	campaign := &models.SocialCampaign{
		ID:      "c1",
		UserID:  3,
		Name:    "launch",
		Status:  models.CampaignStatusActive,
		PostIDs: []string{"p1", "p2"},
	}
	require.NoError(t, store.SaveCampaign(ctx, campaign))

	got, err := store.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"p1", "p2"}, got.PostIDs)

	// PostIDs slice is copied on read
	got.PostIDs[0] = "other"
	again, err := store.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "p1", again.PostIDs[0])
}
