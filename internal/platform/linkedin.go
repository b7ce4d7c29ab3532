package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"
)

const (
	linkedinUGCPostsURL       = "https://api.linkedin.com/v2/ugcPosts"
	linkedinRegisterUploadURL = "https://api.linkedin.com/v2/assets?action=registerUpload"
	linkedinSocialActionsURL  = "https://api.linkedin.com/v2/socialActions"
	linkedinRevokeURL         = "https://www.linkedin.com/oauth/v2/revoke"
)

type LinkedinAdapter struct {
	cfg    config.Config
	oauth  *oauth2.Config
	client *http.Client
}

func NewLinkedinAdapter(cfg config.Config) *LinkedinAdapter {
	return &LinkedinAdapter{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.LinkedinClientID,
			ClientSecret: cfg.LinkedinClientSecret,
			RedirectURL:  cfg.LinkedinRedirectURI,
			Scopes:       []string{"openid", "profile", "w_member_social"},
			Endpoint:     linkedin.Endpoint,
		},
		client: &http.Client{},
	}
}

func (a *LinkedinAdapter) Platform() string { return PlatformLinkedin }

func (a *LinkedinAdapter) Limits() Limits {
	return Limits{MaxTextLength: 3000, MaxMediaCount: 9}
}

func (a *LinkedinAdapter) ValidateContent(content models.PostContent) []string {
	return validateAgainst(PlatformLinkedin, a.Limits(), content)
}

type linkedinShareMedia struct {
	Status      string            `json:"status"`
	Description map[string]string `json:"description,omitempty"`
	Media       string            `json:"media"`
	Title       map[string]string `json:"title,omitempty"`
	OriginalURL string            `json:"originalUrl,omitempty"`
}

type linkedinShareContent struct {
	ShareCommentary    map[string]string    `json:"shareCommentary"`
	ShareMediaCategory string               `json:"shareMediaCategory"`
	Media              []linkedinShareMedia `json:"media,omitempty"`
}

type linkedinUGCPost struct {
	Author          string                          `json:"author"`
	LifecycleState  string                          `json:"lifecycleState"`
	SpecificContent map[string]linkedinShareContent `json:"specificContent"`
	Visibility      map[string]string               `json:"visibility"`
}

type linkedinPostResponse struct {
	ID string `json:"id"`
}

func (a *LinkedinAdapter) PublishPost(ctx context.Context, acc *models.SocialAccount, content models.PostContent) (*PublishResult, error) {
	author := "urn:li:person:" + acc.AccountID

	share := linkedinShareContent{
		ShareCommentary:    map[string]string{"text": content.Text},
		ShareMediaCategory: "NONE",
	}

	if len(content.MediaURLs) > 0 {
		share.ShareMediaCategory = "IMAGE"
		for _, mediaURL := range content.MediaURLs {
			asset, err := a.registerAndUpload(ctx, acc, mediaURL)
			if err != nil {
				return nil, err
			}
			share.Media = append(share.Media, linkedinShareMedia{
				Status: "READY",
				Media:  asset,
			})
		}
	} else if content.LinkURL != "" {
		share.ShareMediaCategory = "ARTICLE"
		share.Media = append(share.Media, linkedinShareMedia{
			Status:      "READY",
			OriginalURL: content.LinkURL,
			Title:       map[string]string{"text": content.LinkTitle},
		})
	}

	post := linkedinUGCPost{
		Author:         author,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]linkedinShareContent{
			"com.linkedin.ugc.ShareContent": share,
		},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	body, err := json.Marshal(post)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, linkedinUGCPostsURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	a.setHeaders(req, acc.AccessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, NewPlatformError(PlatformLinkedin, "", "publish request failed: "+err.Error())
	}
	defer resp.Body.Close()

	if err := a.checkStatus(resp); err != nil {
		return nil, err
	}

	var created linkedinPostResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		slog.Info(err.Error())
		return nil, NewPlatformError(PlatformLinkedin, "", "failed to decode publish response")
	}

	return &PublishResult{
		PostID:  created.ID,
		PostURL: "https://www.linkedin.com/feed/update/" + url.PathEscape(created.ID),
	}, nil
}

func (a *LinkedinAdapter) DeletePost(ctx context.Context, acc *models.SocialAccount, platformPostID string) error {
	deleteURL := linkedinUGCPostsURL + "/" + url.PathEscape(platformPostID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return err
	}
	a.setHeaders(req, acc.AccessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return NewPlatformError(PlatformLinkedin, "", "delete request failed: "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return a.checkStatus(resp)
}

type linkedinSocialActions struct {
	LikesSummary struct {
		TotalLikes int64 `json:"totalLikes"`
	} `json:"likesSummary"`
	CommentsSummary struct {
		AggregatedTotalComments int64 `json:"aggregatedTotalComments"`
	} `json:"commentsSummary"`
}

func (a *LinkedinAdapter) GetPostAnalytics(ctx context.Context, acc *models.SocialAccount, platformPostID string) (*models.PostAnalytics, error) {
	actionsURL := linkedinSocialActionsURL + "/" + url.PathEscape(platformPostID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, actionsURL, nil)
	if err != nil {
		return nil, err
	}
	a.setHeaders(req, acc.AccessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, NewPlatformError(PlatformLinkedin, "", "analytics request failed: "+err.Error())
	}
	defer resp.Body.Close()

	if err := a.checkStatus(resp); err != nil {
		return nil, err
	}

	var actions linkedinSocialActions
	if err := json.NewDecoder(resp.Body).Decode(&actions); err != nil {
		slog.Info(err.Error())
		return nil, NewPlatformError(PlatformLinkedin, "", "failed to decode analytics response")
	}

	return &models.PostAnalytics{
		PostID:     platformPostID,
		Platform:   PlatformLinkedin,
		Engagement: actions.LikesSummary.TotalLikes + actions.CommentsSummary.AggregatedTotalComments,
	}, nil
}

type linkedinRegisterUploadResponse struct {
	Value struct {
		Asset           string `json:"asset"`
		UploadMechanism struct {
			MediaUploadHTTPRequest struct {
				UploadURL string `json:"uploadUrl"`
			} `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
		} `json:"uploadMechanism"`
	} `json:"value"`
}

func (a *LinkedinAdapter) UploadMedia(ctx context.Context, acc *models.SocialAccount, data []byte, mimeType string) (string, error) {
	registerBody := map[string]interface{}{
		"registerUploadRequest": map[string]interface{}{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   "urn:li:person:" + acc.AccountID,
			"serviceRelationships": []map[string]string{
				{
					"relationshipType": "OWNER",
					"identifier":       "urn:li:userGeneratedContent",
				},
			},
		},
	}

	body, err := json.Marshal(registerBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, linkedinRegisterUploadURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	a.setHeaders(req, acc.AccessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", NewMediaUploadError(PlatformLinkedin, "register upload failed: "+err.Error())
	}
	defer resp.Body.Close()

	if err := a.checkStatus(resp); err != nil {
		return "", err
	}

	var register linkedinRegisterUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&register); err != nil {
		slog.Info(err.Error())
		return "", NewMediaUploadError(PlatformLinkedin, "failed to decode register response")
	}

	uploadURL := register.Value.UploadMechanism.MediaUploadHTTPRequest.UploadURL
	if uploadURL == "" {
		return "", NewMediaUploadError(PlatformLinkedin, "register response has no upload url")
	}

	uploadReq, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	uploadReq.Header.Set("Authorization", "Bearer "+acc.AccessToken)
	if mimeType != "" {
		uploadReq.Header.Set("Content-Type", mimeType)
	}

	uploadResp, err := a.client.Do(uploadReq)
	if err != nil {
		slog.Info(err.Error())
		return "", NewMediaUploadError(PlatformLinkedin, "media upload failed: "+err.Error())
	}
	defer uploadResp.Body.Close()

	if uploadResp.StatusCode >= http.StatusMultipleChoices {
		return "", NewMediaUploadError(PlatformLinkedin,
			"media upload returned status "+strconv.Itoa(uploadResp.StatusCode))
	}

	return register.Value.Asset, nil
}

func (a *LinkedinAdapter) registerAndUpload(ctx context.Context, acc *models.SocialAccount, mediaURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", NewMediaUploadError(PlatformLinkedin, "unable to fetch media: "+err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewMediaUploadError(PlatformLinkedin, "unable to read media: "+err.Error())
	}

	return a.UploadMedia(ctx, acc, data, resp.Header.Get("Content-Type"))
}

func (a *LinkedinAdapter) AuthorizationURL(state string) string {
	return a.oauth.AuthCodeURL(state)
}

func (a *LinkedinAdapter) ExchangeCode(ctx context.Context, code string) (*TokenPair, error) {
	token, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, NewAuthenticationError(PlatformLinkedin, "code exchange failed: "+err.Error())
	}
	return tokenPairFromOAuth2(token), nil
}

func (a *LinkedinAdapter) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	source := a.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		slog.Info(err.Error())
		return nil, NewAuthenticationError(PlatformLinkedin, "token refresh failed: "+err.Error())
	}
	return tokenPairFromOAuth2(token), nil
}

func (a *LinkedinAdapter) RevokeToken(ctx context.Context, accessToken string) error {
	data := url.Values{}
	data.Set("client_id", a.cfg.LinkedinClientID)
	data.Set("client_secret", a.cfg.LinkedinClientSecret)
	data.Set("token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, linkedinRevokeURL, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return NewPlatformError(PlatformLinkedin, "", "revoke request failed: "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NewPlatformError(PlatformLinkedin, strconv.Itoa(resp.StatusCode), "revoke returned non-200 status")
	}
	return nil
}

func (a *LinkedinAdapter) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
}

func (a *LinkedinAdapter) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewAuthenticationError(PlatformLinkedin, "credentials rejected")
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewRateLimitError(PlatformLinkedin, "rate limited", retryAfterHeader(resp))
	default:
		body, _ := io.ReadAll(resp.Body)
		pe := NewPlatformError(PlatformLinkedin, strconv.Itoa(resp.StatusCode), "unexpected status")
		pe.Payload = string(body)
		return pe
	}
}

func tokenPairFromOAuth2(token *oauth2.Token) *TokenPair {
	pair := &TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		pair.ExpiresIn = int(time.Until(token.Expiry).Seconds())
	}
	return pair
}
