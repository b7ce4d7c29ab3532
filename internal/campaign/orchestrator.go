package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/platform"
	"github.com/postpilot/postpilot/internal/scheduler"
	"github.com/postpilot/postpilot/internal/storage"
	"github.com/postpilot/postpilot/internal/webhook"
)

var ErrNotFound = errors.New("campaign not found")

// maxRecurringPerConfig bounds eager recurrence expansion per platform
// config during fan-out.
const maxRecurringPerConfig = 10

// resumeDelay is the fresh base-time offset applied when a paused
// campaign is resumed.
const resumeDelay = 5 * time.Minute

type Orchestrator interface {
	CreateCampaign(ctx context.Context, userID int64, name string, content models.PostContent, configs []models.PlatformConfig, scheduledAt time.Time, recurrence models.Recurrence) (*models.SocialCampaign, []*models.ScheduledPost, error)
	GetCampaign(ctx context.Context, campaignID string, userID int64) (*models.SocialCampaign, error)
	ListCampaigns(ctx context.Context, userID int64) ([]*models.SocialCampaign, error)
	PauseCampaign(ctx context.Context, campaignID string, userID int64) error
	ResumeCampaign(ctx context.Context, campaignID string, userID int64) error
	CancelCampaign(ctx context.Context, campaignID string, userID int64) error
	CheckCampaignCompletion(ctx context.Context, campaignID string) (bool, error)
	CompleteCampaign(ctx context.Context, campaignID string) error
	GetCampaignAnalytics(ctx context.Context, campaignID string, userID int64) (*models.CampaignAnalytics, error)
	DuplicateCampaign(ctx context.Context, campaignID string, userID int64, scheduledAt time.Time) (*models.SocialCampaign, []*models.ScheduledPost, error)
}

// analyticsFetcher is the slice of the publisher path the orchestrator
// needs for aggregate metrics: resolve the adapter, ask it for per-post
// analytics with a usable account.
type analyticsFetcher interface {
	FetchPostAnalytics(ctx context.Context, post *models.ScheduledPost) (*models.PostAnalytics, error)
}

type orchestrator struct {
	campaigns storage.CampaignStore
	posts     storage.PostStore
	accounts  storage.AccountStore
	sched     scheduler.Scheduler
	registry  *platform.Registry
	analytics analyticsFetcher
	notifier  webhook.Notifier
	now       func() time.Time
}

func New(
	campaigns storage.CampaignStore,
	posts storage.PostStore,
	accountStore storage.AccountStore,
	sched scheduler.Scheduler,
	registry *platform.Registry,
	analytics analyticsFetcher,
	notifier webhook.Notifier) Orchestrator {
	return &orchestrator{
		campaigns: campaigns,
		posts:     posts,
		accounts:  accountStore,
		sched:     sched,
		registry:  registry,
		analytics: analytics,
		notifier:  notifier,
		now:       time.Now,
	}
}

// CreateCampaign fans base content out across the enabled platform
// configs: one scheduled post per config at scheduled_at plus the
// config's offset, adapted to the platform's limits, plus eagerly
// expanded recurring posts when the config asks for them.
func (o *orchestrator) CreateCampaign(ctx context.Context, userID int64, name string, content models.PostContent, configs []models.PlatformConfig, scheduledAt time.Time, recurrence models.Recurrence) (*models.SocialCampaign, []*models.ScheduledPost, error) {
	if len(configs) == 0 {
		return nil, nil, errors.New("campaign needs at least one platform config")
	}
	if !scheduledAt.After(o.now()) {
		return nil, nil, &scheduler.InvalidTimeError{At: scheduledAt}
	}

	for _, cfg := range configs {
		acc, err := o.accounts.GetAccount(ctx, cfg.AccountID)
		if err != nil {
			return nil, nil, fmt.Errorf("error loading account %d: %w", cfg.AccountID, err)
		}
		if acc == nil || acc.UserID != userID {
			return nil, nil, &scheduler.OwnershipError{
				UserID:   userID,
				Resource: fmt.Sprintf("account %d", cfg.AccountID),
			}
		}
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return nil, nil, err
	}

	if recurrence == "" {
		recurrence = models.RecurrenceNone
	}

	campaign := &models.SocialCampaign{
		ID:              id,
		UserID:          userID,
		Name:            name,
		Content:         content,
		PlatformConfigs: configs,
		ScheduledAt:     scheduledAt,
		Status:          models.CampaignStatusDraft,
		Recurrence:      recurrence,
		CreatedAt:       o.now(),
	}

	posts, err := o.fanOut(ctx, campaign, scheduledAt)
	if err != nil {
		return nil, nil, err
	}

	campaign.Status = models.CampaignStatusActive
	if err := o.campaigns.SaveCampaign(ctx, campaign); err != nil {
		return nil, nil, fmt.Errorf("error saving campaign: %w", err)
	}
	return campaign, posts, nil
}

func (o *orchestrator) fanOut(ctx context.Context, campaign *models.SocialCampaign, baseTime time.Time) ([]*models.ScheduledPost, error) {
	var posts []*models.ScheduledPost

	for _, cfg := range campaign.PlatformConfigs {
		if !cfg.Enabled {
			continue
		}

		content := campaign.Content
		if cfg.ContentOverride != nil {
			content = *cfg.ContentOverride
		}
		if adapter, err := o.registry.Resolve(cfg.Platform); err == nil {
			content = platform.AdaptContent(content, adapter.Limits())
		}

		postTime := baseTime.Add(time.Duration(cfg.OffsetMinutes) * time.Minute)
		recurrence := cfg.Recurrence
		if recurrence == "" {
			recurrence = campaign.Recurrence
		}

		post, err := o.sched.SchedulePost(ctx, campaign.UserID, cfg.AccountID, content, postTime, recurrence, campaign.RecurrenceEndDate)
		if err != nil {
			return nil, fmt.Errorf("error scheduling %s post: %w", cfg.Platform, err)
		}

		post.CampaignID = campaign.ID
		if err := o.posts.SavePost(ctx, post); err != nil {
			return nil, fmt.Errorf("error saving post: %w", err)
		}
		campaign.PostIDs = append(campaign.PostIDs, post.ID)
		posts = append(posts, post)

		if recurrence != models.RecurrenceNone {
			recurring, err := o.sched.CreateRecurringPosts(ctx, post, maxRecurringPerConfig)
			if err != nil {
				return nil, fmt.Errorf("error expanding recurrence for %s: %w", cfg.Platform, err)
			}
			for _, rp := range recurring {
				campaign.PostIDs = append(campaign.PostIDs, rp.ID)
				posts = append(posts, rp)
			}
		}
	}

	if len(posts) == 0 {
		return nil, errors.New("campaign has no enabled platform configs")
	}
	return posts, nil
}

func (o *orchestrator) GetCampaign(ctx context.Context, campaignID string, userID int64) (*models.SocialCampaign, error) {
	return o.ownedCampaign(ctx, campaignID, userID)
}

func (o *orchestrator) ListCampaigns(ctx context.Context, userID int64) ([]*models.SocialCampaign, error) {
	return o.campaigns.ListCampaignsByUserID(ctx, userID)
}

// PauseCampaign cancels every not-yet-published child post and parks
// the campaign. Already published children stay published.
func (o *orchestrator) PauseCampaign(ctx context.Context, campaignID string, userID int64) error {
	campaign, err := o.ownedCampaign(ctx, campaignID, userID)
	if err != nil {
		return err
	}
	if campaign.Status != models.CampaignStatusActive {
		return &scheduler.InvalidStateError{ID: campaignID, Status: string(campaign.Status), Op: "pause"}
	}

	if err := o.cancelChildren(ctx, campaign); err != nil {
		return err
	}

	campaign.Status = models.CampaignStatusPaused
	return o.campaigns.SaveCampaign(ctx, campaign)
}

// ResumeCampaign recomputes a fresh base time and re-creates child posts
// for the campaign's configs.
func (o *orchestrator) ResumeCampaign(ctx context.Context, campaignID string, userID int64) error {
	campaign, err := o.ownedCampaign(ctx, campaignID, userID)
	if err != nil {
		return err
	}
	if campaign.Status != models.CampaignStatusPaused {
		return &scheduler.InvalidStateError{ID: campaignID, Status: string(campaign.Status), Op: "resume"}
	}

	baseTime := o.now().Add(resumeDelay)
	campaign.ScheduledAt = baseTime
	campaign.PostIDs = nil

	if _, err := o.fanOut(ctx, campaign, baseTime); err != nil {
		return err
	}

	campaign.Status = models.CampaignStatusActive
	return o.campaigns.SaveCampaign(ctx, campaign)
}

func (o *orchestrator) CancelCampaign(ctx context.Context, campaignID string, userID int64) error {
	campaign, err := o.ownedCampaign(ctx, campaignID, userID)
	if err != nil {
		return err
	}
	if campaign.Status.IsTerminal() {
		return &scheduler.InvalidStateError{ID: campaignID, Status: string(campaign.Status), Op: "cancel"}
	}

	if err := o.cancelChildren(ctx, campaign); err != nil {
		return err
	}

	campaign.Status = models.CampaignStatusCancelled
	return o.campaigns.SaveCampaign(ctx, campaign)
}

func (o *orchestrator) cancelChildren(ctx context.Context, campaign *models.SocialCampaign) error {
	for _, postID := range campaign.PostIDs {
		post, err := o.posts.GetPost(ctx, postID)
		if err != nil {
			return err
		}
		if post == nil || !models.CanTransition(post.Status, models.PostStatusCancelled) {
			continue
		}
		post.Status = models.PostStatusCancelled
		if err := o.posts.SavePost(ctx, post); err != nil {
			return fmt.Errorf("error cancelling post %s: %w", postID, err)
		}
	}
	return nil
}

// CheckCampaignCompletion reports whether every child post has reached a
// terminal status.
func (o *orchestrator) CheckCampaignCompletion(ctx context.Context, campaignID string) (bool, error) {
	campaign, err := o.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return false, err
	}
	if campaign == nil {
		return false, ErrNotFound
	}
	if len(campaign.PostIDs) == 0 {
		return false, nil
	}

	for _, postID := range campaign.PostIDs {
		post, err := o.posts.GetPost(ctx, postID)
		if err != nil {
			return false, err
		}
		if post == nil {
			continue
		}
		if !post.Status.IsTerminal() {
			return false, nil
		}
	}
	return true, nil
}

func (o *orchestrator) CompleteCampaign(ctx context.Context, campaignID string) error {
	campaign, err := o.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		return ErrNotFound
	}
	if campaign.Status != models.CampaignStatusActive {
		return &scheduler.InvalidStateError{ID: campaignID, Status: string(campaign.Status), Op: "complete"}
	}

	completedAt := o.now()
	campaign.Status = models.CampaignStatusCompleted
	campaign.CompletedAt = &completedAt
	if err := o.campaigns.SaveCampaign(ctx, campaign); err != nil {
		return err
	}

	o.notifier.Notify(webhook.EventCampaignCompleted, map[string]interface{}{
		"campaign_id":  campaign.ID,
		"name":         campaign.Name,
		"completed_at": completedAt.UTC(),
	})
	return nil
}

// GetCampaignAnalytics sums per-platform analytics across the published
// children and tracks the single best performer by engagement.
func (o *orchestrator) GetCampaignAnalytics(ctx context.Context, campaignID string, userID int64) (*models.CampaignAnalytics, error) {
	campaign, err := o.ownedCampaign(ctx, campaignID, userID)
	if err != nil {
		return nil, err
	}

	aggregate := &models.CampaignAnalytics{CampaignID: campaign.ID, BestEngagement: -1}

	for _, postID := range campaign.PostIDs {
		post, err := o.posts.GetPost(ctx, postID)
		if err != nil {
			return nil, err
		}
		if post == nil || post.Status != models.PostStatusPublished {
			continue
		}

		analytics, err := o.analytics.FetchPostAnalytics(ctx, post)
		if err != nil {
			slog.Info(fmt.Sprintf("analytics unavailable for post %s: %v", postID, err))
			continue
		}

		aggregate.PublishedPosts++
		aggregate.TotalImpressions += analytics.Impressions
		aggregate.TotalReach += analytics.Reach
		aggregate.TotalEngagement += analytics.Engagement
		aggregate.TotalClicks += analytics.Clicks

		if analytics.Engagement > aggregate.BestEngagement {
			aggregate.BestEngagement = analytics.Engagement
			aggregate.BestPostID = post.ID
		}
	}

	if aggregate.BestEngagement < 0 {
		aggregate.BestEngagement = 0
	}
	return aggregate, nil
}

// DuplicateCampaign clones the configuration into a new campaign at a
// new base time.
func (o *orchestrator) DuplicateCampaign(ctx context.Context, campaignID string, userID int64, scheduledAt time.Time) (*models.SocialCampaign, []*models.ScheduledPost, error) {
	campaign, err := o.ownedCampaign(ctx, campaignID, userID)
	if err != nil {
		return nil, nil, err
	}

	configs := make([]models.PlatformConfig, len(campaign.PlatformConfigs))
	copy(configs, campaign.PlatformConfigs)

	return o.CreateCampaign(ctx, userID, campaign.Name+" (copy)", campaign.Content, configs, scheduledAt, campaign.Recurrence)
}

func (o *orchestrator) ownedCampaign(ctx context.Context, campaignID string, userID int64) (*models.SocialCampaign, error) {
	campaign, err := o.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrNotFound
	}
	if campaign.UserID != userID {
		return nil, &scheduler.OwnershipError{UserID: userID, Resource: "campaign " + campaignID}
	}
	return campaign, nil
}
