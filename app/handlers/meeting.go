package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"meetpulse/app/config"
	"meetpulse/app/database"
	"meetpulse/pkg/utils"
)

func GetMeetings(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)
	user := c.Locals("user").(database.User)

	query := db.Order("created_at DESC")
	if !user.Administrator {
		query = query.Where("visible = ?", true)
	}

	var meetings []database.Meeting
	if err := query.Find(&meetings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	return c.JSON(meetings)
}

func CreateMeeting(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)
	user := c.Locals("user").(database.User)

	type MeetingInput struct {
		Title       string `json:"title" validate:"required"`
		Description string `json:"description"`
	}

	var input MeetingInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	if err := config.Validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	meeting := database.Meeting{
		Title:       input.Title,
		Description: optionalString(input.Description),
		Visible:     true,
		CreatedByID: &user.ID,
	}

	if err := db.Create(&meeting).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	slog.Info("meeting created", "by", utils.BlurEmailAddress(user.Email), "meeting_id", meeting.ID, "title", meeting.Title)
	return c.JSON(meeting)
}
