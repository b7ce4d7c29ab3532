package models

import "time"

type PostStatus string

const (
	PostStatusDraft      PostStatus = "draft"
	PostStatusScheduled  PostStatus = "scheduled"
	PostStatusPublishing PostStatus = "publishing"
	PostStatusPublished  PostStatus = "published"
	PostStatusFailed     PostStatus = "failed"
	PostStatusCancelled  PostStatus = "cancelled"
)

type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// PostContent is the platform-agnostic payload of a scheduled post. The
// campaign orchestrator adapts it to each platform's limits before a post
// is created.
type PostContent struct {
	Text      string   `db:"text" json:"text"`
	MediaURLs []string `db:"media_urls" json:"media_urls"`
	LinkURL   string   `db:"link_url" json:"link_url"`
	LinkTitle string   `db:"link_title" json:"link_title"`
}

type ScheduledPost struct {
	ID                string      `db:"id" json:"id"`
	UserID            int64       `db:"user_id" json:"user_id"`
	AccountID         int64       `db:"account_id" json:"account_id"`
	Platform          string      `db:"platform" json:"platform"`
	Content           PostContent `db:"content" json:"content"`
	ScheduledAt       time.Time   `db:"scheduled_at" json:"scheduled_at"`
	Status            PostStatus  `db:"status" json:"status"`
	RetryCount        int         `db:"retry_count" json:"retry_count"`
	PlatformPostID    string      `db:"platform_post_id" json:"platform_post_id,omitempty"`
	PlatformPostURL   string      `db:"platform_post_url" json:"platform_post_url,omitempty"`
	CampaignID        string      `db:"campaign_id" json:"campaign_id,omitempty"`
	Recurrence        Recurrence  `db:"recurrence" json:"recurrence"`
	RecurrenceEndDate *time.Time  `db:"recurrence_end_date" json:"recurrence_end_date,omitempty"`
	ErrorMessage      string      `db:"error_message" json:"error_message,omitempty"`
	PublishedAt       *time.Time  `db:"published_at" json:"published_at,omitempty"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}

// postTransitions encodes the lifecycle. Terminal statuses have no entry,
// so any transition out of them is rejected.
var postTransitions = map[PostStatus][]PostStatus{
	PostStatusDraft:      {PostStatusScheduled, PostStatusCancelled},
	PostStatusScheduled:  {PostStatusPublishing, PostStatusCancelled},
	PostStatusPublishing: {PostStatusPublished, PostStatusFailed},
}

// CanTransition reports whether a post status may move from one status to
// another. Statuses never regress.
func CanTransition(from, to PostStatus) bool {
	for _, next := range postTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s PostStatus) IsTerminal() bool {
	return len(postTransitions[s]) == 0
}

// Next returns the occurrence that follows from for this recurrence.
// RecurrenceNone returns from unchanged.
func (r Recurrence) Next(from time.Time) time.Time {
	switch r {
	case RecurrenceDaily:
		return from.AddDate(0, 0, 1)
	case RecurrenceWeekly:
		return from.AddDate(0, 0, 7)
	case RecurrenceMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from
	}
}
