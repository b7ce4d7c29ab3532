package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ErrLimited is returned by CheckLimit when an account has no publish
// budget left or sits inside a cooldown window. RetryAfter tells the
// caller when trying again makes sense.
type ErrLimited struct {
	AccountID  int64
	Reason     string
	RetryAfter time.Duration
}

func (e *ErrLimited) Error() string {
	return fmt.Sprintf("account %d is rate limited: %s", e.AccountID, e.Reason)
}

// Tracker is the per-account publish budget. CheckLimit consults the
// cooldown window first and then the hourly counter; RecordPost burns
// one unit; SetCooldown opens a cooldown window after a platform-side
// rate limit.
type Tracker interface {
	CheckLimit(ctx context.Context, accountID int64) error
	RecordPost(ctx context.Context, accountID int64) error
	SetCooldown(ctx context.Context, accountID int64, d time.Duration) error
}

type accountWindow struct {
	count         int
	resetAt       time.Time
	cooldownUntil time.Time
}

// MemoryTracker keeps all counters behind one mutex so concurrent
// publish attempts against the same account never under-count. The
// hourly counter resets lazily inside CheckLimit; a stale counter for an
// idle account is harmless and avoids a background reset task.
type MemoryTracker struct {
	mu      sync.Mutex
	limit   int
	windows map[int64]*accountWindow
	now     func() time.Time
}

func NewMemoryTracker(hourlyLimit int) *MemoryTracker {
	return &MemoryTracker{
		limit:   hourlyLimit,
		windows: make(map[int64]*accountWindow),
		now:     time.Now,
	}
}

func (t *MemoryTracker) window(accountID int64) *accountWindow {
	w, ok := t.windows[accountID]
	if !ok {
		w = &accountWindow{}
		t.windows[accountID] = w
	}
	return w
}

func (t *MemoryTracker) CheckLimit(ctx context.Context, accountID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	w := t.window(accountID)

	if now.Before(w.cooldownUntil) {
		return &ErrLimited{
			AccountID:  accountID,
			Reason:     "cooldown active",
			RetryAfter: w.cooldownUntil.Sub(now),
		}
	}

	if !w.resetAt.IsZero() && !now.Before(w.resetAt) {
		w.count = 0
		w.resetAt = time.Time{}
	}

	if w.count >= t.limit {
		return &ErrLimited{
			AccountID:  accountID,
			Reason:     "hourly post budget exhausted",
			RetryAfter: w.resetAt.Sub(now),
		}
	}
	return nil
}

func (t *MemoryTracker) RecordPost(ctx context.Context, accountID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	w := t.window(accountID)

	if !w.resetAt.IsZero() && !now.Before(w.resetAt) {
		w.count = 0
		w.resetAt = time.Time{}
	}
	if w.count == 0 {
		w.resetAt = now.Add(time.Hour)
	}
	w.count++
	return nil
}

func (t *MemoryTracker) SetCooldown(ctx context.Context, accountID int64, d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.window(accountID)
	until := t.now().Add(d)
	if until.After(w.cooldownUntil) {
		w.cooldownUntil = until
	}
	return nil
}
