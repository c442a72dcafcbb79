package middleware

import (
	"github.com/gofiber/fiber/v2"

	"meetpulse/app/database"
)

func AdminMiddleware(c *fiber.Ctx) error {
	user := c.Locals("user").(database.User)

	if !user.Administrator {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden",
		})
	}

	return c.Next()
}
