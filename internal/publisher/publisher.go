package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/accounts"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/platform"
	"github.com/postpilot/postpilot/internal/ratelimit"
	"github.com/postpilot/postpilot/internal/storage"
	"github.com/postpilot/postpilot/internal/webhook"
)

const DefaultMaxRetries = 3

// backoffLadder is the fixed retry delay per attempt when the platform
// gave no retry-after hint.
var backoffLadder = []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second}

// Result is the outcome of one publish-with-retry run for a single post.
type Result struct {
	Success         bool
	PlatformPostID  string
	PlatformPostURL string
	Err             error
}

// Pair binds a due post to its (still token-encrypted) account for batch
// publishing.
type Pair struct {
	Post    *models.ScheduledPost
	Account *models.SocialAccount
}

type Publisher interface {
	PublishPost(ctx context.Context, post *models.ScheduledPost, acc *models.SocialAccount) (*platform.PublishResult, error)
	PublishWithRetry(ctx context.Context, post *models.ScheduledPost, acc *models.SocialAccount, maxRetries int) Result
	PublishBatch(ctx context.Context, pairs []Pair, maxConcurrent int) map[string]Result
	FetchPostAnalytics(ctx context.Context, post *models.ScheduledPost) (*models.PostAnalytics, error)
}

type publisher struct {
	posts    storage.PostStore
	accounts accounts.Service
	registry *platform.Registry
	tracker  ratelimit.Tracker
	notifier webhook.Notifier
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(
	posts storage.PostStore,
	accountService accounts.Service,
	registry *platform.Registry,
	tracker ratelimit.Tracker,
	notifier webhook.Notifier) Publisher {
	return &publisher{
		posts:    posts,
		accounts: accountService,
		registry: registry,
		tracker:  tracker,
		notifier: notifier,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PublishPost runs a single publish attempt: rate check, token refresh
// when expired, content adaptation, then the adapter call. One unit is
// recorded against the account's hourly budget only on success.
func (p *publisher) PublishPost(ctx context.Context, post *models.ScheduledPost, acc *models.SocialAccount) (*platform.PublishResult, error) {
	if err := p.tracker.CheckLimit(ctx, acc.ID); err != nil {
		var limited *ratelimit.ErrLimited
		if errors.As(err, &limited) {
			return nil, platform.NewRateLimitError(post.Platform, limited.Reason, limited.RetryAfter)
		}
		return nil, err
	}

	adapter, err := p.registry.Resolve(post.Platform)
	if err != nil {
		return nil, err
	}

	var usable *models.SocialAccount
	if acc.TokenExpired(p.now()) && acc.RefreshToken != "" {
		usable, err = p.accounts.RefreshAccountToken(ctx, acc)
	} else {
		usable, err = p.accounts.DecryptTokens(acc)
	}
	if err != nil {
		return nil, platform.NewAuthenticationError(post.Platform, err.Error())
	}

	content := post.Content
	if violations := adapter.ValidateContent(content); len(violations) > 0 {
		content = platform.AdaptContent(content, adapter.Limits())
		if remaining := adapter.ValidateContent(content); len(remaining) > 0 {
			return nil, &platform.ValidationError{Platform: post.Platform, Violations: remaining}
		}
	}

	result, err := adapter.PublishPost(ctx, usable, content)
	if err != nil {
		return nil, err
	}

	if err := p.tracker.RecordPost(ctx, acc.ID); err != nil {
		slog.Info(err.Error())
	}
	return result, nil
}

// PublishWithRetry drives the per-attempt policy: authentication and
// validation failures are terminal on the spot, rate limits and generic
// platform errors burn the retry budget with backoff, anything else
// aborts immediately.
func (p *publisher) PublishWithRetry(ctx context.Context, post *models.ScheduledPost, acc *models.SocialAccount, maxRetries int) Result {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	if post.Status == models.PostStatusScheduled {
		if err := p.transition(ctx, post, models.PostStatusPublishing); err != nil {
			return Result{Err: err}
		}
	}

	retries := 0
	for {
		result, err := p.PublishPost(ctx, post, acc)
		if err == nil {
			post.RetryCount = retries
			p.markPublished(ctx, post, result)
			return Result{
				Success:         true,
				PlatformPostID:  result.PostID,
				PlatformPostURL: result.PostURL,
			}
		}

		var authErr *platform.AuthenticationError
		var rateErr *platform.RateLimitError
		var validationErr *platform.ValidationError
		var platformErr *platform.PlatformError

		switch {
		case errors.As(err, &authErr):
			p.markFailed(ctx, post, retries, "authentication failed: "+authErr.Error())
			return Result{Err: err}

		case errors.As(err, &rateErr):
			cooldown := rateErr.RetryAfter
			if cooldown <= 0 {
				cooldown = backoffFor(retries)
			}
			if terr := p.tracker.SetCooldown(ctx, acc.ID, cooldown); terr != nil {
				slog.Info(terr.Error())
			}
			p.notifier.Notify(webhook.EventPostRateLimited, map[string]interface{}{
				"post_id":     post.ID,
				"account_id":  acc.ID,
				"platform":    post.Platform,
				"retry_after": cooldown.Seconds(),
			})
			if retries >= maxRetries {
				p.markFailed(ctx, post, retries, "rate limit retries exhausted: "+rateErr.Error())
				return Result{Err: err}
			}
			if serr := p.sleep(ctx, cooldown); serr != nil {
				p.markFailed(ctx, post, retries, "publish aborted: "+serr.Error())
				return Result{Err: serr}
			}
			retries++

		case errors.As(err, &validationErr):
			p.markFailed(ctx, post, retries, validationErr.Error())
			return Result{Err: err}

		case errors.As(err, &platformErr):
			if retries >= maxRetries {
				p.markFailed(ctx, post, retries, "retries exhausted: "+platformErr.Error())
				return Result{Err: err}
			}
			if serr := p.sleep(ctx, backoffFor(retries)); serr != nil {
				p.markFailed(ctx, post, retries, "publish aborted: "+serr.Error())
				return Result{Err: serr}
			}
			retries++

		default:
			p.markFailed(ctx, post, retries, err.Error())
			return Result{Err: err}
		}
	}
}

// PublishBatch fans publish-with-retry out over the pairs under a
// concurrency bound. One pair's failure never aborts the others.
func (p *publisher) PublishBatch(ctx context.Context, pairs []Pair, maxConcurrent int) map[string]Result {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}

	results := make(map[string]Result, len(pairs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, maxConcurrent)

	for _, pair := range pairs {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(pair Pair) {
			defer wg.Done()
			defer func() { <-semaphore }()

			result := p.PublishWithRetry(ctx, pair.Post, pair.Account, DefaultMaxRetries)

			mu.Lock()
			results[pair.Post.ID] = result
			mu.Unlock()
		}(pair)
	}

	wg.Wait()
	return results
}

func backoffFor(retries int) time.Duration {
	if retries >= len(backoffLadder) {
		return backoffLadder[len(backoffLadder)-1]
	}
	return backoffLadder[retries]
}

func (p *publisher) transition(ctx context.Context, post *models.ScheduledPost, to models.PostStatus) error {
	if !models.CanTransition(post.Status, to) {
		return fmt.Errorf("illegal status transition %s -> %s for post %s", post.Status, to, post.ID)
	}
	post.Status = to
	if err := p.posts.SavePost(ctx, post); err != nil {
		return fmt.Errorf("error saving post %s: %w", post.ID, err)
	}
	return nil
}

func (p *publisher) markPublished(ctx context.Context, post *models.ScheduledPost, result *platform.PublishResult) {
	publishedAt := p.now()
	post.PlatformPostID = result.PostID
	post.PlatformPostURL = result.PostURL
	post.PublishedAt = &publishedAt
	post.ErrorMessage = ""

	if err := p.transition(ctx, post, models.PostStatusPublished); err != nil {
		slog.Error(err.Error())
		return
	}

	p.notifier.Notify(webhook.EventPostPublished, map[string]interface{}{
		"post_id":           post.ID,
		"platform":          post.Platform,
		"platform_post_id":  post.PlatformPostID,
		"platform_post_url": post.PlatformPostURL,
		"published_at":      publishedAt.UTC(),
	})
}

func (p *publisher) markFailed(ctx context.Context, post *models.ScheduledPost, retries int, message string) {
	post.RetryCount = retries
	post.ErrorMessage = message

	if err := p.transition(ctx, post, models.PostStatusFailed); err != nil {
		slog.Error(err.Error())
		return
	}

	p.notifier.Notify(webhook.EventPostFailed, map[string]interface{}{
		"post_id":  post.ID,
		"platform": post.Platform,
		"error":    message,
	})
}
