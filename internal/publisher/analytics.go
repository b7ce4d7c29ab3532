package publisher

import (
	"context"
	"errors"

	"github.com/postpilot/postpilot/internal/models"
)

// FetchPostAnalytics resolves the post's adapter and asks the platform
// for the post's metrics using a decrypted account.
func (p *publisher) FetchPostAnalytics(ctx context.Context, post *models.ScheduledPost) (*models.PostAnalytics, error) {
	if post.PlatformPostID == "" {
		return nil, errors.New("post has no platform post id")
	}

	adapter, err := p.registry.Resolve(post.Platform)
	if err != nil {
		return nil, err
	}

	acc, err := p.accounts.GetAccount(ctx, post.AccountID)
	if err != nil {
		return nil, err
	}

	usable, err := p.accounts.DecryptTokens(acc)
	if err != nil {
		return nil, err
	}

	return adapter.GetPostAnalytics(ctx, usable, post.PlatformPostID)
}
