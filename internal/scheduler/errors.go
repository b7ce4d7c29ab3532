package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

var ErrNotFound = errors.New("scheduled post not found")

// InvalidTimeError rejects a scheduled_at that is not strictly in the
// future at creation or update time.
type InvalidTimeError struct {
	At time.Time
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("scheduled time %s is not in the future", e.At.Format(time.RFC3339))
}

// InvalidStateError rejects an operation the post's (or campaign's)
// current status does not allow.
type InvalidStateError struct {
	ID     string
	Status string
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s while status is %s", e.Op, e.ID, e.Status)
}

func NewInvalidStateError(id string, status models.PostStatus, op string) *InvalidStateError {
	return &InvalidStateError{ID: id, Status: string(status), Op: op}
}

// OwnershipError rejects access to a resource the user does not own.
type OwnershipError struct {
	UserID   int64
	Resource string
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("%s does not belong to user %d", e.Resource, e.UserID)
}
