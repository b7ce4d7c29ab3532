package transfer

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/postpilot/postpilot/internal/models"
)

type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// PostCreation is the API-facing payload for scheduling a single post.
type PostCreation struct {
	AccountID         int64      `json:"account_id"`
	Text              string     `json:"text"`
	MediaURLs         []string   `json:"media_urls"`
	LinkURL           string     `json:"link_url"`
	LinkTitle         string     `json:"link_title"`
	ScheduledAt       string     `json:"scheduled_at"`
	Recurrence        string     `json:"recurrence"`
	RecurrenceEndDate *time.Time `json:"recurrence_end_date"`
}

// PostPatch carries partial edits to a post that is still scheduled.
// Nil fields are left untouched.
type PostPatch struct {
	Text        *string    `json:"text"`
	MediaURLs   *[]string  `json:"media_urls"`
	LinkURL     *string    `json:"link_url"`
	LinkTitle   *string    `json:"link_title"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

type CampaignCreation struct {
	Name            string                  `json:"name"`
	Content         models.PostContent      `json:"content"`
	PlatformConfigs []models.PlatformConfig `json:"platform_configs"`
	ScheduledAt     string                  `json:"scheduled_at"`
	Recurrence      string                  `json:"recurrence"`
}
