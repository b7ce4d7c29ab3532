package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/postpilot/postpilot/internal/campaign"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/transfer"
)

type CampaignHandler struct {
	o campaign.Orchestrator
}

func NewCampaignHandler(o campaign.Orchestrator) *CampaignHandler {
	return &CampaignHandler{o: o}
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var cc transfer.CampaignCreation
	if err := c.BodyParser(&cc); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse body",
		})
	}

	scheduledAt, err := time.Parse("2006-01-02T15:04", cc.ScheduledAt)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid scheduled time format",
		})
	}

	created, posts, err := h.o.CreateCampaign(c.Context(), userID, cc.Name, cc.Content,
		cc.PlatformConfigs, scheduledAt, models.Recurrence(cc.Recurrence))
	if err != nil {
		return schedulerError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":     "Campaign scheduled successfully",
		"campaign_id": created.ID,
		"post_count":  len(posts),
	})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	userID := GetUserID(c)

	campaignID := c.Query("id")
	if campaignID != "" {
		found, err := h.o.GetCampaign(c.Context(), campaignID, userID)
		if err != nil {
			return campaignError(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(found)
	}

	campaigns, err := h.o.ListCampaigns(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list campaigns",
		})
	}
	return c.Status(fiber.StatusOK).JSON(campaigns)
}

func (h *CampaignHandler) PauseCampaign(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if err := h.o.PauseCampaign(c.Context(), c.Params("id"), userID); err != nil {
		return campaignError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *CampaignHandler) ResumeCampaign(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if err := h.o.ResumeCampaign(c.Context(), c.Params("id"), userID); err != nil {
		return campaignError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *CampaignHandler) CancelCampaign(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if err := h.o.CancelCampaign(c.Context(), c.Params("id"), userID); err != nil {
		return campaignError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *CampaignHandler) CampaignAnalytics(c *fiber.Ctx) error {
	userID := GetUserID(c)

	analytics, err := h.o.GetCampaignAnalytics(c.Context(), c.Params("id"), userID)
	if err != nil {
		return campaignError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(analytics)
}

func (h *CampaignHandler) DuplicateCampaign(c *fiber.Ctx) error {
	userID := GetUserID(c)

	scheduledAt, err := time.Parse("2006-01-02T15:04", c.Query("scheduled_at"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid scheduled time format",
		})
	}

	duplicated, posts, err := h.o.DuplicateCampaign(c.Context(), c.Params("id"), userID, scheduledAt)
	if err != nil {
		return campaignError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"campaign_id": duplicated.ID,
		"post_count":  len(posts),
	})
}

func campaignError(c *fiber.Ctx, err error) error {
	if errors.Is(err, campaign.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return schedulerError(c, err)
}
