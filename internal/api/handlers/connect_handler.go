package handlers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/platform"
	"github.com/postpilot/postpilot/internal/storage"
	"github.com/postpilot/postpilot/pkg/utils"
)

// ConnectHandler drives the add-account flow through the platform
// adapters' authorization surface.
type ConnectHandler struct {
	cfg      config.Config
	registry *platform.Registry
	store    storage.AccountStore
}

func NewConnectHandler(cfg config.Config, registry *platform.Registry, store storage.AccountStore) *ConnectHandler {
	return &ConnectHandler{cfg: cfg, registry: registry, store: store}
}

func (h *ConnectHandler) AddSocialAccount(c *fiber.Ctx) error {
	platformName := c.Params("platform")

	adapter, err := h.registry.Resolve(platformName)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	state := c.Cookies(h.cfg.CookieName)
	return c.Redirect(adapter.AuthorizationURL(state))
}

func (h *ConnectHandler) CallbackHandler(c *fiber.Ctx) error {
	platformName := c.Params("platform")
	code := c.Query("code")
	state := c.Query("state")

	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "code is empty",
		})
	}

	claims, err := utils.ValidateToken(h.cfg.SecretKey, state)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid state token",
		})
	}
	var userID int64
	fmt.Sscanf(claims.UserID, "%d", &userID)

	adapter, err := h.registry.Resolve(platformName)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	pair, err := adapter.ExchangeCode(c.Context(), code)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Code exchange failed",
		})
	}

	encryptedAccess, err := utils.Encrypt([]byte(pair.AccessToken), []byte(h.cfg.SecretKey))
	if err != nil {
		return err
	}
	var encryptedRefresh string
	if pair.RefreshToken != "" {
		encryptedRefresh, err = utils.Encrypt([]byte(pair.RefreshToken), []byte(h.cfg.SecretKey))
		if err != nil {
			return err
		}
	}

	acc := &models.SocialAccount{
		UserID:       userID,
		Platform:     platformName,
		AccessToken:  encryptedAccess,
		RefreshToken: encryptedRefresh,
		IsActive:     true,
	}
	if pair.ExpiresIn > 0 {
		acc.TokenExpiresAt = time.Now().Add(time.Duration(pair.ExpiresIn) * time.Second)
	}

	if _, err := h.store.SaveAccount(c.Context(), acc); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to save account",
		})
	}

	return c.Redirect(h.cfg.FrontendURL + "/accounts")
}
