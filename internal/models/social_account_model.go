package models

import (
	"time"
)

type SocialAccount struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Platform        string    `db:"platform" json:"platform"`
	AccountID       string    `db:"account_id" json:"account_id"`
	AccountName     string    `db:"account_name" json:"account_name"`
	AccountUsername string    `db:"account_username" json:"account_username"`
	ProfilePicture  string    `db:"profile_picture_url" json:"profile_picture"`
	AccessToken     string    `db:"access_token" json:"access_token"`
	RefreshToken    string    `db:"refresh_token" json:"refresh_token"`
	TokenExpiresAt  time.Time `db:"token_expires_at" json:"token_expires_at"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// TokenExpired reports whether the stored access token needs a refresh
// before it can be used for a publish attempt.
func (a *SocialAccount) TokenExpired(now time.Time) bool {
	return !a.TokenExpiresAt.IsZero() && !a.TokenExpiresAt.After(now)
}

// PostAnalytics is the per-post metric set every platform adapter reports.
type PostAnalytics struct {
	PostID      string `json:"post_id"`
	Platform    string `json:"platform"`
	Impressions int64  `json:"impressions"`
	Reach       int64  `json:"reach"`
	Engagement  int64  `json:"engagement"`
	Clicks      int64  `json:"clicks"`
}

// CampaignAnalytics aggregates PostAnalytics across a campaign's
// published children.
type CampaignAnalytics struct {
	CampaignID       string `json:"campaign_id"`
	TotalImpressions int64  `json:"total_impressions"`
	TotalReach       int64  `json:"total_reach"`
	TotalEngagement  int64  `json:"total_engagement"`
	TotalClicks      int64  `json:"total_clicks"`
	PublishedPosts   int    `json:"published_posts"`
	BestPostID       string `json:"best_post_id,omitempty"`
	BestEngagement   int64  `json:"best_engagement"`
}
