package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"meetpulse/app/database"
)

func GetProfile(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)
	user := c.Locals("user").(database.User)

	var questions []database.Question
	if err := db.Where("author_id = ?", user.ID).Order("created_at DESC").Find(&questions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	meetingIDs := make([]uuid.UUID, 0, len(questions))
	for _, q := range questions {
		meetingIDs = append(meetingIDs, q.MeetingID)
	}

	meetingTitles := make(map[uuid.UUID]string)
	if len(meetingIDs) > 0 {
		var meetings []database.Meeting
		if err := db.Where("id IN ?", meetingIDs).Find(&meetings).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
		for _, m := range meetings {
			meetingTitles[m.ID] = m.Title
		}
	}

	type profileQuestion struct {
		ID           uuid.UUID `json:"id"`
		Text         string    `json:"text"`
		MeetingID    uuid.UUID `json:"meeting_id"`
		MeetingTitle string    `json:"meeting_title"`
		CreatedAt    time.Time `json:"created_at"`
	}

	views := make([]profileQuestion, 0, len(questions))
	for _, q := range questions {
		views = append(views, profileQuestion{
			ID:           q.ID,
			Text:         q.Text,
			MeetingID:    q.MeetingID,
			MeetingTitle: meetingTitles[q.MeetingID],
			CreatedAt:    q.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{"user": user, "questions": views})
}
