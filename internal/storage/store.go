package storage

import (
	"context"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

// PostStore is the persistence contract the scheduler and campaign
// orchestrator depend on. Get returns (nil, nil) when the id is unknown.
// ListDuePosts returns scheduled posts with scheduled_at <= now, oldest
// first; posts sharing a scheduled_at come back in insertion order.
type PostStore interface {
	GetPost(ctx context.Context, id string) (*models.ScheduledPost, error)
	SavePost(ctx context.Context, post *models.ScheduledPost) error
	ListPostsByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	ListDuePosts(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error)
	ListPublishingPosts(ctx context.Context) ([]*models.ScheduledPost, error)
	DeletePost(ctx context.Context, id string) error
}

type CampaignStore interface {
	GetCampaign(ctx context.Context, id string) (*models.SocialCampaign, error)
	SaveCampaign(ctx context.Context, campaign *models.SocialCampaign) error
	ListCampaignsByUserID(ctx context.Context, userID int64) ([]*models.SocialCampaign, error)
	DeleteCampaign(ctx context.Context, id string) error
}

type AccountStore interface {
	GetAccount(ctx context.Context, id int64) (*models.SocialAccount, error)
	SaveAccount(ctx context.Context, acc *models.SocialAccount) (int64, error)
	ListAccountsByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	ListAccountsExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.SocialAccount, error)
	DeleteAccount(ctx context.Context, id int64) error
}

// Store bundles the three contracts; both the in-memory arena and the
// Postgres implementation satisfy it.
type Store interface {
	PostStore
	CampaignStore
	AccountStore
}
