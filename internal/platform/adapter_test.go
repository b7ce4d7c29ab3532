package platform

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	name   string
	limits Limits
}

func (a *stubAdapter) Platform() string { return a.name }
func (a *stubAdapter) Limits() Limits   { return a.limits }
func (a *stubAdapter) PublishPost(ctx context.Context, acc *models.SocialAccount, content models.PostContent) (*PublishResult, error) {
	return &PublishResult{PostID: "1"}, nil
}
func (a *stubAdapter) DeletePost(ctx context.Context, acc *models.SocialAccount, id string) error {
	return nil
}
func (a *stubAdapter) GetPostAnalytics(ctx context.Context, acc *models.SocialAccount, id string) (*models.PostAnalytics, error) {
	return &models.PostAnalytics{}, nil
}
func (a *stubAdapter) UploadMedia(ctx context.Context, acc *models.SocialAccount, data []byte, mimeType string) (string, error) {
	return "", nil
}
func (a *stubAdapter) ValidateContent(content models.PostContent) []string {
	return validateAgainst(a.name, a.limits, content)
}
func (a *stubAdapter) AuthorizationURL(state string) string { return "" }
func (a *stubAdapter) ExchangeCode(ctx context.Context, code string) (*TokenPair, error) {
	return &TokenPair{}, nil
}
func (a *stubAdapter) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return &TokenPair{}, nil
}
func (a *stubAdapter) RevokeToken(ctx context.Context, accessToken string) error { return nil }

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry()
	twitter := &stubAdapter{name: PlatformTwitter}
	buffer := &stubAdapter{name: PlatformBuffer}
	registry.Register(twitter)
	registry.RegisterFallback(buffer, "facebook", "pinterest")

	got, err := registry.Resolve(PlatformTwitter)
	require.NoError(t, err)
	assert.Same(t, Adapter(twitter), got)

	got, err = registry.Resolve("facebook")
	require.NoError(t, err)
	assert.Same(t, Adapter(buffer), got)

	got, err = registry.Resolve(PlatformBuffer)
	require.NoError(t, err)
	assert.Same(t, Adapter(buffer), got)

	_, err = registry.Resolve("mastodon")
	require.Error(t, err)
	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "mastodon", confErr.Platform)
}

func TestValidateAgainst(t *testing.T) {
	limits := Limits{MaxTextLength: 10, MaxMediaCount: 2}

	assert.Empty(t, validateAgainst("twitter", limits, models.PostContent{Text: "short"}))

	violations := validateAgainst("twitter", limits, models.PostContent{})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "empty")

	violations = validateAgainst("twitter", limits, models.PostContent{
		Text:      "way past the character budget",
		MediaURLs: []string{"a", "b", "c"},
	})
	assert.Len(t, violations, 2)
}

func TestAdaptContent(t *testing.T) {
	limits := Limits{MaxTextLength: 10, MaxMediaCount: 2}

	adapted := AdaptContent(models.PostContent{
		Text:      "this text is definitely too long",
		MediaURLs: []string{"a", "b", "c", "d"},
	}, limits)

	assert.Len(t, []rune(adapted.Text), 10)
	assert.True(t, strings.HasSuffix(adapted.Text, "..."))
	assert.Equal(t, []string{"a", "b"}, adapted.MediaURLs)

	// content inside the limits passes through unchanged
	short := models.PostContent{Text: "ok", MediaURLs: []string{"a"}}
	assert.Equal(t, short, AdaptContent(short, limits))
}

func TestErrorClassification(t *testing.T) {
	var platformErr *PlatformError

	rateErr := NewRateLimitError("twitter", "slow down", 30*time.Second)
	require.ErrorAs(t, error(rateErr), &platformErr)
	assert.Equal(t, "twitter", platformErr.Platform)

	authErr := NewAuthenticationError("linkedin", "token revoked")
	require.ErrorAs(t, error(authErr), &platformErr)

	var asRate *RateLimitError
	assert.True(t, errors.As(error(rateErr), &asRate))
	assert.False(t, errors.As(error(authErr), &asRate))
}
