package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
)

const bufferAPIBase = "https://api.bufferapp.com/1"

// BufferAdapter is the generic fallback client: platforms without a
// direct integration publish through a Buffer profile instead. The
// account's AccountID holds the Buffer profile id for the target
// network.
type BufferAdapter struct {
	cfg     config.Config
	client  *http.Client
	baseURL string
}

func NewBufferAdapter(cfg config.Config) *BufferAdapter {
	return &BufferAdapter{
		cfg:     cfg,
		client:  &http.Client{},
		baseURL: bufferAPIBase,
	}
}

func (a *BufferAdapter) Platform() string { return PlatformBuffer }

func (a *BufferAdapter) Limits() Limits {
	return Limits{MaxTextLength: 5000, MaxMediaCount: 4}
}

func (a *BufferAdapter) ValidateContent(content models.PostContent) []string {
	return validateAgainst(PlatformBuffer, a.Limits(), content)
}

type bufferUpdate struct {
	ID string `json:"id"`
}

type bufferCreateResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Updates []bufferUpdate `json:"updates"`
}

func (a *BufferAdapter) PublishPost(ctx context.Context, acc *models.SocialAccount, content models.PostContent) (*PublishResult, error) {
	data := url.Values{}
	data.Set("text", content.Text)
	data.Set("now", "true")
	data.Add("profile_ids[]", acc.AccountID)
	if len(content.MediaURLs) > 0 {
		data.Set("media[photo]", content.MediaURLs[0])
	}
	if content.LinkURL != "" {
		data.Set("media[link]", content.LinkURL)
		data.Set("media[title]", content.LinkTitle)
	}

	body, err := a.do(ctx, acc, http.MethodPost, "/updates/create.json", data)
	if err != nil {
		return nil, err
	}

	var created bufferCreateResponse
	if err := json.Unmarshal(body, &created); err != nil {
		slog.Info(err.Error())
		return nil, NewPlatformError(PlatformBuffer, "", "failed to decode create response")
	}
	if !created.Success || len(created.Updates) == 0 {
		return nil, NewPlatformError(PlatformBuffer, "", "create rejected: "+created.Message)
	}

	updateID := created.Updates[0].ID
	return &PublishResult{
		PostID:  updateID,
		PostURL: fmt.Sprintf("https://buffer.com/app/updates/%s", updateID),
	}, nil
}

func (a *BufferAdapter) DeletePost(ctx context.Context, acc *models.SocialAccount, platformPostID string) error {
	path := fmt.Sprintf("/updates/%s/destroy.json", url.PathEscape(platformPostID))
	_, err := a.do(ctx, acc, http.MethodPost, path, url.Values{})
	return err
}

type bufferInteractions struct {
	Statistics struct {
		Reach     int64 `json:"reach"`
		Clicks    int64 `json:"clicks"`
		Favorites int64 `json:"favorites"`
		Mentions  int64 `json:"mentions"`
		Retweets  int64 `json:"retweets"`
		Comments  int64 `json:"comments"`
		Shares    int64 `json:"shares"`
		Likes     int64 `json:"likes"`
	} `json:"statistics"`
}

func (a *BufferAdapter) GetPostAnalytics(ctx context.Context, acc *models.SocialAccount, platformPostID string) (*models.PostAnalytics, error) {
	path := fmt.Sprintf("/updates/%s.json", url.PathEscape(platformPostID))
	body, err := a.do(ctx, acc, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var update bufferInteractions
	if err := json.Unmarshal(body, &update); err != nil {
		slog.Info(err.Error())
		return nil, NewPlatformError(PlatformBuffer, "", "failed to decode update response")
	}

	stats := update.Statistics
	return &models.PostAnalytics{
		PostID:      platformPostID,
		Platform:    PlatformBuffer,
		Impressions: stats.Reach,
		Reach:       stats.Reach,
		Clicks:      stats.Clicks,
		Engagement: stats.Favorites + stats.Mentions + stats.Retweets +
			stats.Comments + stats.Shares + stats.Likes,
	}, nil
}

// UploadMedia is not a separate call on Buffer: media travels as a URL
// with the update itself, so this hands the URL straight back.
func (a *BufferAdapter) UploadMedia(ctx context.Context, acc *models.SocialAccount, data []byte, mimeType string) (string, error) {
	return "", NewMediaUploadError(PlatformBuffer, "buffer accepts media by url with the update")
}

func (a *BufferAdapter) AuthorizationURL(state string) string {
	params := url.Values{}
	params.Add("client_id", a.cfg.BufferClientID)
	params.Add("redirect_uri", a.cfg.BufferRedirectURI)
	params.Add("response_type", "code")
	params.Add("state", state)
	return "https://bufferapp.com/oauth2/authorize?" + params.Encode()
}

type bufferTokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (a *BufferAdapter) ExchangeCode(ctx context.Context, code string) (*TokenPair, error) {
	data := url.Values{}
	data.Set("client_id", a.cfg.BufferClientID)
	data.Set("client_secret", a.cfg.BufferClientSecret)
	data.Set("redirect_uri", a.cfg.BufferRedirectURI)
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.bufferapp.com/1/oauth2/token.json", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, NewAuthenticationError(PlatformBuffer, "code exchange failed: "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewAuthenticationError(PlatformBuffer, "token endpoint returned non-200 status")
	}

	var token bufferTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		slog.Info(err.Error())
		return nil, NewAuthenticationError(PlatformBuffer, "failed to decode token response")
	}

	return &TokenPair{AccessToken: token.AccessToken}, nil
}

// RefreshToken is a no-op: Buffer access tokens are long-lived.
func (a *BufferAdapter) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return nil, NewPlatformError(PlatformBuffer, "", "buffer tokens are long-lived")
}

func (a *BufferAdapter) RevokeToken(ctx context.Context, accessToken string) error {
	// Buffer has no revoke endpoint; removal happens on the Buffer side.
	return nil
}

func (a *BufferAdapter) do(ctx context.Context, acc *models.SocialAccount, method, path string, data url.Values) ([]byte, error) {
	endpoint := a.baseURL + path

	var req *http.Request
	var err error
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(data.Encode()))
	}
	if err != nil {
		return nil, err
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Authorization", "Bearer "+acc.AccessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, NewPlatformError(PlatformBuffer, "", "request failed: "+err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewAuthenticationError(PlatformBuffer, "credentials rejected")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewRateLimitError(PlatformBuffer, "rate limited", retryAfterHeader(resp))
	case resp.StatusCode >= http.StatusBadRequest:
		body, _ := io.ReadAll(resp.Body)
		pe := NewPlatformError(PlatformBuffer, strconv.Itoa(resp.StatusCode), "unexpected status")
		pe.Payload = string(body)
		return nil, pe
	}

	return io.ReadAll(resp.Body)
}
