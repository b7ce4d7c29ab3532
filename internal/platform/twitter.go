package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/michimani/gotwi"
	"github.com/michimani/gotwi/tweet/managetweet"
	"github.com/michimani/gotwi/tweet/managetweet/types"
	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
)

const (
	twitterMediaUploadURL = "https://upload.twitter.com/1.1/media/upload.json?media_category=tweet_image"
	twitterTweetURL       = "https://api.twitter.com/2/tweets"
	twitterAuthorizeURL   = "https://api.twitter.com/oauth/authorize"
)

// TwitterAdapter publishes through the v2 API with OAuth 1.0a user
// context. An account's AccessToken field holds "token tokensecret"
// separated by a space, the convention the connect flow stores them in.
type TwitterAdapter struct {
	cfg config.Config
}

func NewTwitterAdapter(cfg config.Config) *TwitterAdapter {
	return &TwitterAdapter{cfg: cfg}
}

func (a *TwitterAdapter) Platform() string { return PlatformTwitter }

func (a *TwitterAdapter) Limits() Limits {
	return Limits{MaxTextLength: 280, MaxMediaCount: 4}
}

func (a *TwitterAdapter) ValidateContent(content models.PostContent) []string {
	return validateAgainst(PlatformTwitter, a.Limits(), content)
}

func (a *TwitterAdapter) splitTokens(acc *models.SocialAccount) (string, string, error) {
	tokens := strings.SplitN(acc.AccessToken, " ", 2)
	if len(tokens) != 2 {
		return "", "", NewAuthenticationError(PlatformTwitter, "stored token pair is malformed")
	}
	return tokens[0], tokens[1], nil
}

func (a *TwitterAdapter) client(acc *models.SocialAccount) (*gotwi.Client, error) {
	oauthToken, oauthSecret, err := a.splitTokens(acc)
	if err != nil {
		return nil, err
	}

	in := &gotwi.NewClientInput{
		AuthenticationMethod: gotwi.AuthenMethodOAuth1UserContext,
		APIKey:               a.cfg.TwitterAPIKey,
		APIKeySecret:         a.cfg.TwitterAPISecret,
		OAuthToken:           oauthToken,
		OAuthTokenSecret:     oauthSecret,
	}
	client, err := gotwi.NewClient(in)
	if err != nil {
		slog.Info(err.Error())
		return nil, NewAuthenticationError(PlatformTwitter, "unable to build client: "+err.Error())
	}
	return client, nil
}

func (a *TwitterAdapter) httpClient(acc *models.SocialAccount) (*http.Client, error) {
	oauthToken, oauthSecret, err := a.splitTokens(acc)
	if err != nil {
		return nil, err
	}
	cfg := oauth1.NewConfig(a.cfg.TwitterAPIKey, a.cfg.TwitterAPISecret)
	token := oauth1.NewToken(oauthToken, oauthSecret)
	return cfg.Client(oauth1.NoContext, token), nil
}

func (a *TwitterAdapter) PublishPost(ctx context.Context, acc *models.SocialAccount, content models.PostContent) (*PublishResult, error) {
	client, err := a.client(acc)
	if err != nil {
		return nil, err
	}

	text := content.Text
	if content.LinkURL != "" {
		text = text + " " + content.LinkURL
	}

	var post types.CreateInput
	post.Text = gotwi.String(text)

	if len(content.MediaURLs) > 0 {
		mediaIDs := make([]string, 0, len(content.MediaURLs))
		for _, mediaURL := range content.MediaURLs {
			mediaID, err := a.uploadMediaFromURL(ctx, acc, mediaURL)
			if err != nil {
				return nil, err
			}
			mediaIDs = append(mediaIDs, mediaID)
		}
		post.Media = &types.CreateInputMedia{MediaIDs: mediaIDs}
	}

	res, err := managetweet.Create(ctx, client, &post)
	if err != nil {
		return nil, a.wrapError(err)
	}

	tweetID := gotwi.StringValue(res.Data.ID)
	return &PublishResult{
		PostID:  tweetID,
		PostURL: fmt.Sprintf("https://twitter.com/%s/status/%s", acc.AccountUsername, tweetID),
	}, nil
}

func (a *TwitterAdapter) DeletePost(ctx context.Context, acc *models.SocialAccount, platformPostID string) error {
	client, err := a.client(acc)
	if err != nil {
		return err
	}

	_, err = managetweet.Delete(ctx, client, &types.DeleteInput{ID: platformPostID})
	if err != nil {
		return a.wrapError(err)
	}
	return nil
}

type tweetMetricsResponse struct {
	Data struct {
		PublicMetrics struct {
			RetweetCount    int64 `json:"retweet_count"`
			ReplyCount      int64 `json:"reply_count"`
			LikeCount       int64 `json:"like_count"`
			QuoteCount      int64 `json:"quote_count"`
			ImpressionCount int64 `json:"impression_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

func (a *TwitterAdapter) GetPostAnalytics(ctx context.Context, acc *models.SocialAccount, platformPostID string) (*models.PostAnalytics, error) {
	httpClient, err := a.httpClient(acc)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s?tweet.fields=public_metrics", twitterTweetURL, platformPostID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, NewPlatformError(PlatformTwitter, "", "analytics request failed: "+err.Error())
	}
	defer resp.Body.Close()

	if err := a.checkStatus(resp); err != nil {
		return nil, err
	}

	var metrics tweetMetricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		slog.Info(err.Error())
		return nil, NewPlatformError(PlatformTwitter, "", "failed to decode analytics response")
	}

	pm := metrics.Data.PublicMetrics
	return &models.PostAnalytics{
		PostID:      platformPostID,
		Platform:    PlatformTwitter,
		Impressions: pm.ImpressionCount,
		Reach:       pm.ImpressionCount,
		Engagement:  pm.RetweetCount + pm.ReplyCount + pm.LikeCount + pm.QuoteCount,
	}, nil
}

type twitterMediaUpload struct {
	MediaID       int64  `json:"media_id"`
	MediaIDString string `json:"media_id_string"`
}

func (a *TwitterAdapter) UploadMedia(ctx context.Context, acc *models.SocialAccount, data []byte, mimeType string) (string, error) {
	httpClient, err := a.httpClient(acc)
	if err != nil {
		return "", err
	}

	b := &bytes.Buffer{}
	form := multipart.NewWriter(b)
	fw, err := form.CreateFormFile("media", "media")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}
	form.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, twitterMediaUploadURL, bytes.NewReader(b.Bytes()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := httpClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", NewMediaUploadError(PlatformTwitter, "media upload request failed: "+err.Error())
	}
	defer resp.Body.Close()

	if err := a.checkStatus(resp); err != nil {
		return "", err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewMediaUploadError(PlatformTwitter, "failed to read upload response")
	}

	var m twitterMediaUpload
	if err := json.Unmarshal(body, &m); err != nil {
		slog.Info(err.Error())
		return "", NewMediaUploadError(PlatformTwitter, "failed to decode upload response")
	}
	if m.MediaIDString != "" {
		return m.MediaIDString, nil
	}
	return strconv.FormatInt(m.MediaID, 10), nil
}

func (a *TwitterAdapter) uploadMediaFromURL(ctx context.Context, acc *models.SocialAccount, mediaURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", NewMediaUploadError(PlatformTwitter, "unable to fetch media: "+err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewMediaUploadError(PlatformTwitter, "unable to read media: "+err.Error())
	}

	return a.UploadMedia(ctx, acc, data, resp.Header.Get("Content-Type"))
}

// AuthorizationURL for OAuth 1.0a needs a request token first; the
// connect flow obtains one and appends it to this base URL.
func (a *TwitterAdapter) AuthorizationURL(state string) string {
	return twitterAuthorizeURL
}

func (a *TwitterAdapter) ExchangeCode(ctx context.Context, code string) (*TokenPair, error) {
	return nil, NewPlatformError(PlatformTwitter, "", "code exchange is handled by the OAuth 1.0a connect flow")
}

// RefreshToken is a no-op: OAuth 1.0a user tokens do not expire.
func (a *TwitterAdapter) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return nil, NewPlatformError(PlatformTwitter, "", "twitter tokens do not expire")
}

func (a *TwitterAdapter) RevokeToken(ctx context.Context, accessToken string) error {
	// Invalidation requires the full signed pair; the account removal
	// flow passes the stored pair through the adapter client instead.
	return nil
}

func (a *TwitterAdapter) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewAuthenticationError(PlatformTwitter, "credentials rejected")
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewRateLimitError(PlatformTwitter, "rate limited", retryAfterHeader(resp))
	default:
		body, _ := io.ReadAll(resp.Body)
		pe := NewPlatformError(PlatformTwitter, strconv.Itoa(resp.StatusCode), "unexpected status")
		pe.Payload = string(body)
		return pe
	}
}

func (a *TwitterAdapter) wrapError(err error) error {
	var ge *gotwi.GotwiError
	if errors.As(err, &ge) && ge.OnAPI {
		switch ge.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return NewAuthenticationError(PlatformTwitter, ge.Title)
		case http.StatusTooManyRequests:
			return NewRateLimitError(PlatformTwitter, ge.Title, 0)
		default:
			return NewPlatformError(PlatformTwitter, strconv.Itoa(ge.StatusCode), ge.Title)
		}
	}
	return NewPlatformError(PlatformTwitter, "", err.Error())
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
