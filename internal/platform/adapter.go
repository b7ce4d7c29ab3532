package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/postpilot/postpilot/internal/models"
)

const (
	PlatformTwitter  = "twitter"
	PlatformLinkedin = "linkedin"
	PlatformBuffer   = "buffer"
)

// Limits declares a platform's content constraints. ValidateContent and
// AdaptContent both consult them, so a publish attempt never reaches the
// wire with over-limit content.
type Limits struct {
	MaxTextLength int
	MaxMediaCount int
}

type PublishResult struct {
	PostID  string
	PostURL string
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// Adapter is the uniform contract every platform client implements.
// Publish/delete/analytics/upload errors come back as the typed errors in
// errors.go so callers can classify them without knowing the platform.
type Adapter interface {
	Platform() string
	Limits() Limits
	PublishPost(ctx context.Context, acc *models.SocialAccount, content models.PostContent) (*PublishResult, error)
	DeletePost(ctx context.Context, acc *models.SocialAccount, platformPostID string) error
	GetPostAnalytics(ctx context.Context, acc *models.SocialAccount, platformPostID string) (*models.PostAnalytics, error)
	UploadMedia(ctx context.Context, acc *models.SocialAccount, data []byte, mimeType string) (string, error)
	ValidateContent(content models.PostContent) []string

	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	RevokeToken(ctx context.Context, accessToken string) error
}

// Registry resolves a platform name to an adapter, trying the direct
// adapter first and falling back to the generic one when the platform is
// listed as fallback-served.
type Registry struct {
	direct   map[string]Adapter
	fallback Adapter
	viaProxy map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		direct:   make(map[string]Adapter),
		viaProxy: make(map[string]bool),
	}
}

func (r *Registry) Register(a Adapter) {
	r.direct[a.Platform()] = a
}

// RegisterFallback installs the generic adapter and the platform names it
// may serve when no direct adapter exists for them.
func (r *Registry) RegisterFallback(a Adapter, platforms ...string) {
	r.fallback = a
	for _, p := range platforms {
		r.viaProxy[p] = true
	}
}

func (r *Registry) Resolve(platform string) (Adapter, error) {
	if a, ok := r.direct[platform]; ok {
		return a, nil
	}
	if r.fallback != nil && (r.viaProxy[platform] || platform == r.fallback.Platform()) {
		return r.fallback, nil
	}
	return nil, &ConfigurationError{Platform: platform}
}

// validateAgainst collects limit violations without deciding what to do
// about them. The caller chooses between adapting and rejecting.
func validateAgainst(platform string, limits Limits, content models.PostContent) []string {
	var violations []string
	if strings.TrimSpace(content.Text) == "" && len(content.MediaURLs) == 0 {
		violations = append(violations, "content is empty")
	}
	if limits.MaxTextLength > 0 && len([]rune(content.Text)) > limits.MaxTextLength {
		violations = append(violations,
			fmt.Sprintf("text exceeds %s limit of %d characters", platform, limits.MaxTextLength))
	}
	if limits.MaxMediaCount >= 0 && len(content.MediaURLs) > limits.MaxMediaCount {
		violations = append(violations,
			fmt.Sprintf("media count exceeds %s limit of %d", platform, limits.MaxMediaCount))
	}
	return violations
}

// AdaptContent trims content to fit the limits: text is truncated with an
// ellipsis marker, the media list is clipped.
func AdaptContent(content models.PostContent, limits Limits) models.PostContent {
	adapted := content
	if limits.MaxTextLength > 0 {
		runes := []rune(adapted.Text)
		if len(runes) > limits.MaxTextLength {
			adapted.Text = string(runes[:limits.MaxTextLength-3]) + "..."
		}
	}
	if limits.MaxMediaCount >= 0 && len(adapted.MediaURLs) > limits.MaxMediaCount {
		adapted.MediaURLs = adapted.MediaURLs[:limits.MaxMediaCount]
	}
	return adapted
}
