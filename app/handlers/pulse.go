package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"meetpulse/app/database"
	ppulse "meetpulse/app/platform/pulse"
	"meetpulse/pkg/utils"
)

func GetPulse(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)
	user := c.Locals("user").(database.User)

	meetingID, err := uuid.Parse(c.Params("meeting_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	result, err := ppulse.NewService(db).ActivePoll(meetingID, user.ID)
	if err != nil {
		if errors.Is(err, ppulse.ErrNoActivePoll) {
			return c.JSON(fiber.Map{"active": false})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	return c.JSON(fiber.Map{
		"active":      true,
		"id":          result.Poll.ID,
		"title":       result.Poll.Title,
		"question_id": result.Poll.QuestionID,
		"total_votes": result.TotalVotes,
		"options":     result.Options,
	})
}

func VotePulse(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)
	user := c.Locals("user").(database.User)

	optionID, err := uuid.Parse(c.Params("option_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	if err := ppulse.NewService(db).Vote(optionID, user.ID); err != nil {
		switch {
		case errors.Is(err, ppulse.ErrOptionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
		case errors.Is(err, ppulse.ErrPollEnded):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "This poll has ended."})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
	}

	slog.Info("pulse vote", "by", utils.BlurEmailAddress(user.Email), "option_id", optionID)
	return c.JSON(fiber.Map{"ok": true})
}
