package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/scheduler"
	"github.com/postpilot/postpilot/internal/transfer"
)

type PostHandler struct {
	s scheduler.Scheduler
}

func NewPostHandler(s scheduler.Scheduler) *PostHandler {
	return &PostHandler{s: s}
}

// CreatePost accepts the post for scheduling. Publish outcomes are
// observed later through the post status and webhooks, never here.
func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse body",
		})
	}

	scheduledAt, err := time.Parse("2006-01-02T15:04", pc.ScheduledAt)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid scheduled time format",
		})
	}

	content := models.PostContent{
		Text:      pc.Text,
		MediaURLs: pc.MediaURLs,
		LinkURL:   pc.LinkURL,
		LinkTitle: pc.LinkTitle,
	}

	post, err := h.s.SchedulePost(c.Context(), userID, pc.AccountID, content,
		scheduledAt, models.Recurrence(pc.Recurrence), pc.RecurrenceEndDate)
	if err != nil {
		return schedulerError(c, err)
	}

	if post.Recurrence != models.RecurrenceNone {
		if _, err := h.s.CreateRecurringPosts(c.Context(), post, 10); err != nil {
			slog.Error(err.Error())
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Post scheduled successfully",
		"post_id": post.ID,
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	posts, err := h.s.ListPosts(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.Params("id")

	var patch transfer.PostPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse body",
		})
	}

	post, err := h.s.UpdateScheduledPost(c.Context(), postID, userID, &patch)
	if err != nil {
		return schedulerError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) CancelPost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.Params("id")

	cancelled, err := h.s.CancelScheduledPost(c.Context(), postID, userID)
	if err != nil {
		return schedulerError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"cancelled": cancelled,
	})
}

func (h *PostHandler) SuggestTime(c *fiber.Ctx) error {
	userID := GetUserID(c)
	platform := c.Query("platform")

	suggested, err := h.s.SuggestNextTime(c.Context(), userID, platform, time.Time{})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to suggest a time",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"suggested_at": suggested,
	})
}

func schedulerError(c *fiber.Ctx, err error) error {
	var invalidTime *scheduler.InvalidTimeError
	var invalidState *scheduler.InvalidStateError
	var ownership *scheduler.OwnershipError

	switch {
	case errors.As(err, &invalidTime):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &invalidState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &ownership):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, scheduler.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	default:
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
