package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/storage"
	"github.com/postpilot/postpilot/internal/transfer"
)

type Scheduler interface {
	SchedulePost(ctx context.Context, userID, accountID int64, content models.PostContent, scheduledAt time.Time, recurrence models.Recurrence, recurrenceEnd *time.Time) (*models.ScheduledPost, error)
	UpdateScheduledPost(ctx context.Context, postID string, userID int64, patch *transfer.PostPatch) (*models.ScheduledPost, error)
	CancelScheduledPost(ctx context.Context, postID string, userID int64) (bool, error)
	GetDuePosts(ctx context.Context, limit int) ([]*models.ScheduledPost, error)
	MarkPublishing(ctx context.Context, postID string) (*models.ScheduledPost, error)
	CreateRecurringPosts(ctx context.Context, base *models.ScheduledPost, count int) ([]*models.ScheduledPost, error)
	ListPosts(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	SuggestNextTime(ctx context.Context, userID int64, platform string, after time.Time) (time.Time, error)
	GetOptimalTimes(ctx context.Context, userID int64, platform string, count int) ([]TimeSlot, error)
}

type scheduler struct {
	posts    storage.PostStore
	accounts storage.AccountStore
	now      func() time.Time
}

func New(posts storage.PostStore, accounts storage.AccountStore) Scheduler {
	return &scheduler{
		posts:    posts,
		accounts: accounts,
		now:      time.Now,
	}
}

func (s *scheduler) SchedulePost(ctx context.Context, userID, accountID int64, content models.PostContent, scheduledAt time.Time, recurrence models.Recurrence, recurrenceEnd *time.Time) (*models.ScheduledPost, error) {
	if !scheduledAt.After(s.now()) {
		return nil, &InvalidTimeError{At: scheduledAt}
	}

	acc, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("error loading account %d: %w", accountID, err)
	}
	if acc == nil || acc.UserID != userID {
		return nil, &OwnershipError{UserID: userID, Resource: fmt.Sprintf("account %d", accountID)}
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if recurrence == "" {
		recurrence = models.RecurrenceNone
	}

	post := &models.ScheduledPost{
		ID:                id,
		UserID:            userID,
		AccountID:         accountID,
		Platform:          acc.Platform,
		Content:           content,
		ScheduledAt:       scheduledAt,
		Status:            models.PostStatusScheduled,
		Recurrence:        recurrence,
		RecurrenceEndDate: recurrenceEnd,
		CreatedAt:         s.now(),
	}

	if err := s.posts.SavePost(ctx, post); err != nil {
		return nil, fmt.Errorf("error saving post: %w", err)
	}
	return post, nil
}

func (s *scheduler) UpdateScheduledPost(ctx context.Context, postID string, userID int64, patch *transfer.PostPatch) (*models.ScheduledPost, error) {
	post, err := s.ownedPost(ctx, postID, userID)
	if err != nil {
		return nil, err
	}

	if post.Status != models.PostStatusScheduled {
		return nil, NewInvalidStateError(postID, post.Status, "update")
	}

	if patch.ScheduledAt != nil {
		if !patch.ScheduledAt.After(s.now()) {
			return nil, &InvalidTimeError{At: *patch.ScheduledAt}
		}
		post.ScheduledAt = *patch.ScheduledAt
	}
	if patch.Text != nil {
		post.Content.Text = *patch.Text
	}
	if patch.MediaURLs != nil {
		post.Content.MediaURLs = *patch.MediaURLs
	}
	if patch.LinkURL != nil {
		post.Content.LinkURL = *patch.LinkURL
	}
	if patch.LinkTitle != nil {
		post.Content.LinkTitle = *patch.LinkTitle
	}

	if err := s.posts.SavePost(ctx, post); err != nil {
		return nil, fmt.Errorf("error saving post: %w", err)
	}
	return post, nil
}

// CancelScheduledPost is idempotent: an already-cancelled post reports
// false without error. Posts past the publishing boundary cannot be
// cancelled.
func (s *scheduler) CancelScheduledPost(ctx context.Context, postID string, userID int64) (bool, error) {
	post, err := s.ownedPost(ctx, postID, userID)
	if err != nil {
		return false, err
	}

	switch post.Status {
	case models.PostStatusCancelled:
		return false, nil
	case models.PostStatusDraft, models.PostStatusScheduled:
		post.Status = models.PostStatusCancelled
		if err := s.posts.SavePost(ctx, post); err != nil {
			return false, fmt.Errorf("error saving post: %w", err)
		}
		return true, nil
	default:
		return false, NewInvalidStateError(postID, post.Status, "cancel")
	}
}

func (s *scheduler) GetDuePosts(ctx context.Context, limit int) ([]*models.ScheduledPost, error) {
	return s.posts.ListDuePosts(ctx, s.now(), limit)
}

// MarkPublishing moves a due post into the publishing state before it is
// handed to the publisher. Returns nil when the post is no longer
// SCHEDULED, e.g. cancelled between the due query and dispatch.
func (s *scheduler) MarkPublishing(ctx context.Context, postID string) (*models.ScheduledPost, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrNotFound
	}
	if !models.CanTransition(post.Status, models.PostStatusPublishing) {
		return nil, nil
	}

	post.Status = models.PostStatusPublishing
	if err := s.posts.SavePost(ctx, post); err != nil {
		return nil, fmt.Errorf("error saving post: %w", err)
	}
	return post, nil
}

// CreateRecurringPosts materializes up to count additional occurrences
// of the base post, spaced by its recurrence interval. Generation stops
// silently once an occurrence would pass the recurrence end date. Every
// generated post carries RecurrenceNone: expansion is eager, never
// interpreted again later.
func (s *scheduler) CreateRecurringPosts(ctx context.Context, base *models.ScheduledPost, count int) ([]*models.ScheduledPost, error) {
	if base.Recurrence == models.RecurrenceNone || base.Recurrence == "" {
		return nil, nil
	}

	var created []*models.ScheduledPost
	next := base.ScheduledAt
	for i := 0; i < count; i++ {
		next = base.Recurrence.Next(next)
		if base.RecurrenceEndDate != nil && next.After(*base.RecurrenceEndDate) {
			break
		}

		id, err := gonanoid.New()
		if err != nil {
			slog.Info(err.Error())
			return created, err
		}

		post := &models.ScheduledPost{
			ID:          id,
			UserID:      base.UserID,
			AccountID:   base.AccountID,
			Platform:    base.Platform,
			Content:     base.Content,
			ScheduledAt: next,
			Status:      models.PostStatusScheduled,
			Recurrence:  models.RecurrenceNone,
			CampaignID:  base.CampaignID,
			CreatedAt:   s.now(),
		}
		if err := s.posts.SavePost(ctx, post); err != nil {
			return created, fmt.Errorf("error saving recurring post: %w", err)
		}
		created = append(created, post)
	}
	return created, nil
}

func (s *scheduler) ListPosts(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	return s.posts.ListPostsByUserID(ctx, userID)
}

func (s *scheduler) ownedPost(ctx context.Context, postID string, userID int64) (*models.ScheduledPost, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrNotFound
	}
	if post.UserID != userID {
		return nil, &OwnershipError{UserID: userID, Resource: "post " + postID}
	}
	return post, nil
}
