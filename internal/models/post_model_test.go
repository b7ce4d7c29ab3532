package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from PostStatus
		to   PostStatus
		want bool
	}{
		{"draft to scheduled", PostStatusDraft, PostStatusScheduled, true},
		{"draft to cancelled", PostStatusDraft, PostStatusCancelled, true},
		{"draft to publishing", PostStatusDraft, PostStatusPublishing, false},
		{"scheduled to publishing", PostStatusScheduled, PostStatusPublishing, true},
		{"scheduled to cancelled", PostStatusScheduled, PostStatusCancelled, true},
		{"scheduled to published", PostStatusScheduled, PostStatusPublished, false},
		{"publishing to published", PostStatusPublishing, PostStatusPublished, true},
		{"publishing to failed", PostStatusPublishing, PostStatusFailed, true},
		{"publishing to cancelled", PostStatusPublishing, PostStatusCancelled, false},
		{"published is terminal", PostStatusPublished, PostStatusScheduled, false},
		{"failed is terminal", PostStatusFailed, PostStatusScheduled, false},
		{"cancelled is terminal", PostStatusCancelled, PostStatusScheduled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, PostStatusDraft.IsTerminal())
	assert.False(t, PostStatusScheduled.IsTerminal())
	assert.False(t, PostStatusPublishing.IsTerminal())
	assert.True(t, PostStatusPublished.IsTerminal())
	assert.True(t, PostStatusFailed.IsTerminal())
	assert.True(t, PostStatusCancelled.IsTerminal())
}

func TestRecurrenceNext(t *testing.T) {
	from := time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, from.AddDate(0, 0, 1), RecurrenceDaily.Next(from))
	assert.Equal(t, from.AddDate(0, 0, 7), RecurrenceWeekly.Next(from))
	assert.Equal(t, from.AddDate(0, 1, 0), RecurrenceMonthly.Next(from))
	assert.Equal(t, from, RecurrenceNone.Next(from))
}
