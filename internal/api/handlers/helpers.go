package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// GetUserID reads the user id the auth middleware stored on the request.
func GetUserID(c *fiber.Ctx) int64 {
	id, _ := strconv.ParseInt(c.Locals("user_id").(string), 10, 64)
	return id
}
