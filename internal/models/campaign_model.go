package models

import "time"

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// PlatformConfig describes one fan-out target of a campaign.
type PlatformConfig struct {
	Platform        string       `db:"platform" json:"platform"`
	AccountID       int64        `db:"account_id" json:"account_id"`
	Enabled         bool         `db:"enabled" json:"enabled"`
	OffsetMinutes   int          `db:"offset_minutes" json:"offset_minutes"`
	ContentOverride *PostContent `db:"content_override" json:"content_override,omitempty"`
	Recurrence      Recurrence   `db:"recurrence" json:"recurrence"`
}

type SocialCampaign struct {
	ID                string           `db:"id" json:"id"`
	UserID            int64            `db:"user_id" json:"user_id"`
	Name              string           `db:"name" json:"name"`
	Content           PostContent      `db:"content" json:"content"`
	PlatformConfigs   []PlatformConfig `db:"platform_configs" json:"platform_configs"`
	ScheduledAt       time.Time        `db:"scheduled_at" json:"scheduled_at"`
	Status            CampaignStatus   `db:"status" json:"status"`
	PostIDs           []string         `db:"post_ids" json:"post_ids"`
	Recurrence        Recurrence       `db:"recurrence" json:"recurrence"`
	RecurrenceEndDate *time.Time       `db:"recurrence_end_date" json:"recurrence_end_date,omitempty"`
	CompletedAt       *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusCancelled
}
