package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

// TimeSlot is one cell of the weekly posting grid with its engagement
// score. Higher scores are better.
type TimeSlot struct {
	Weekday time.Weekday `json:"weekday"`
	Hour    int          `json:"hour"`
	Score   float64      `json:"score"`
}

// defaultSlots are the baseline engagement grids used when a user has no
// publishing history on the platform yet.
var defaultSlots = map[string][]TimeSlot{
	"twitter": {
		{Weekday: time.Monday, Hour: 9, Score: 0.7},
		{Weekday: time.Tuesday, Hour: 9, Score: 0.8},
		{Weekday: time.Wednesday, Hour: 12, Score: 0.9},
		{Weekday: time.Wednesday, Hour: 17, Score: 0.8},
		{Weekday: time.Thursday, Hour: 12, Score: 0.8},
		{Weekday: time.Friday, Hour: 15, Score: 0.7},
	},
	"linkedin": {
		{Weekday: time.Tuesday, Hour: 8, Score: 0.9},
		{Weekday: time.Tuesday, Hour: 10, Score: 0.8},
		{Weekday: time.Wednesday, Hour: 9, Score: 0.9},
		{Weekday: time.Thursday, Hour: 9, Score: 0.8},
		{Weekday: time.Thursday, Hour: 14, Score: 0.7},
	},
}

var fallbackSlots = []TimeSlot{
	{Weekday: time.Monday, Hour: 10, Score: 0.6},
	{Weekday: time.Wednesday, Hour: 11, Score: 0.7},
	{Weekday: time.Friday, Hour: 10, Score: 0.6},
}

// GetOptimalTimes scores the weekly grid for a user and platform. Cells
// where the user actually published get their score boosted by history,
// so the grid drifts toward what worked before.
func (s *scheduler) GetOptimalTimes(ctx context.Context, userID int64, platform string, count int) ([]TimeSlot, error) {
	slots, ok := defaultSlots[platform]
	if !ok {
		slots = fallbackSlots
	}

	grid := make(map[[2]int]float64, len(slots))
	for _, slot := range slots {
		grid[[2]int{int(slot.Weekday), slot.Hour}] = slot.Score
	}

	posts, err := s.posts.ListPostsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, post := range posts {
		if post.Platform != platform || post.Status != models.PostStatusPublished || post.PublishedAt == nil {
			continue
		}
		key := [2]int{int(post.PublishedAt.Weekday()), post.PublishedAt.Hour()}
		grid[key] += 0.1
	}

	scored := make([]TimeSlot, 0, len(grid))
	for key, score := range grid {
		scored = append(scored, TimeSlot{Weekday: time.Weekday(key[0]), Hour: key[1], Score: score})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score == scored[j].Score {
			if scored[i].Weekday == scored[j].Weekday {
				return scored[i].Hour < scored[j].Hour
			}
			return scored[i].Weekday < scored[j].Weekday
		}
		return scored[i].Score > scored[j].Score
	})

	if count > 0 && len(scored) > count {
		scored = scored[:count]
	}
	return scored, nil
}

// SuggestNextTime returns the nearest future grid slot strictly after
// the given time.
func (s *scheduler) SuggestNextTime(ctx context.Context, userID int64, platform string, after time.Time) (time.Time, error) {
	if after.IsZero() {
		after = s.now()
	}

	slots, err := s.GetOptimalTimes(ctx, userID, platform, 0)
	if err != nil {
		return time.Time{}, err
	}

	var best time.Time
	for _, slot := range slots {
		candidate := nextOccurrence(after, slot.Weekday, slot.Hour)
		if best.IsZero() || candidate.Before(best) {
			best = candidate
		}
	}
	return best, nil
}

// nextOccurrence finds the first (weekday, hour) wall-clock moment
// strictly after t.
func nextOccurrence(t time.Time, weekday time.Weekday, hour int) time.Time {
	candidate := time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
	days := (int(weekday) - int(t.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, days)
	if !candidate.After(t) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}
