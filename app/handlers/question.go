package handlers

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"meetpulse/app/database"
	"meetpulse/pkg/utils"
)

const questionMaxLength = 1000

type questionView struct {
	ID         uuid.UUID `json:"id"`
	Text       string    `json:"text"`
	Author     string    `json:"author"`
	CreatedAt  time.Time `json:"created_at"`
	Score      int       `json:"score"`
	UpCount    int       `json:"up_count"`
	DownCount  int       `json:"down_count"`
	UpVoters   []string  `json:"up_voters"`
	DownVoters []string  `json:"down_voters"`
	MyVote     *string   `json:"my_vote"`
}

func displayName(u *database.User) string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Email
}

func GetQuestions(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)
	user := c.Locals("user").(database.User)

	meetingID, err := uuid.Parse(c.Params("meeting_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	var meeting database.Meeting
	if err := db.First(&meeting, "id = ?", meetingID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	var questions []database.Question
	if err := db.Preload("Author").Where("meeting_id = ?", meetingID).
		Order("created_at DESC").Find(&questions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	questionIDs := make([]uuid.UUID, 0, len(questions))
	for _, q := range questions {
		questionIDs = append(questionIDs, q.ID)
	}

	var votes []database.QuestionVote
	if len(questionIDs) > 0 {
		if err := db.Preload("User").Where("question_id IN ?", questionIDs).Find(&votes).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
	}

	votesByQuestion := make(map[uuid.UUID][]database.QuestionVote, len(questions))
	for _, v := range votes {
		votesByQuestion[v.QuestionID] = append(votesByQuestion[v.QuestionID], v)
	}

	views := make([]questionView, 0, len(questions))
	for _, q := range questions {
		view := questionView{
			ID:         q.ID,
			Text:       q.Text,
			Author:     displayName(&q.Author),
			CreatedAt:  q.CreatedAt,
			UpVoters:   []string{},
			DownVoters: []string{},
		}
		for _, v := range votesByQuestion[q.ID] {
			voter := v
			switch v.VoteType {
			case database.VoteUp:
				view.UpCount++
				view.UpVoters = append(view.UpVoters, displayName(&voter.User))
			case database.VoteDown:
				view.DownCount++
				view.DownVoters = append(view.DownVoters, displayName(&voter.User))
			}
			if v.UserID == user.ID {
				voteType := v.VoteType
				view.MyVote = &voteType
			}
		}
		view.Score = view.UpCount - view.DownCount
		views = append(views, view)
	}

	return c.JSON(views)
}

func AddQuestion(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)
	user := c.Locals("user").(database.User)

	meetingID, err := uuid.Parse(c.Params("meeting_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	type QuestionInput struct {
		Text string `json:"text"`
	}

	var input QuestionInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	text := strings.TrimSpace(input.Text)
	if text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Question text cannot be empty."})
	}
	if len(text) > questionMaxLength {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Question too long."})
	}

	var meeting database.Meeting
	if err := db.First(&meeting, "id = ?", meetingID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	question := database.Question{
		MeetingID: meetingID,
		Text:      text,
		AuthorID:  user.ID,
	}

	if err := db.Create(&question).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	slog.Info("question added", "by", utils.BlurEmailAddress(user.Email),
		"meeting_id", meetingID, "question_id", question.ID)
	return c.JSON(fiber.Map{"id": question.ID, "text": question.Text})
}

// VoteQuestion toggles the caller's vote: repeating the same vote removes
// it, the opposite vote replaces it. Authors cannot vote on their own
// questions.
func VoteQuestion(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)
	user := c.Locals("user").(database.User)

	questionID, err := uuid.Parse(c.Params("question_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	type VoteInput struct {
		VoteType string `json:"vote_type"`
	}

	var input VoteInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	if input.VoteType != database.VoteUp && input.VoteType != database.VoteDown {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid vote type"})
	}

	var question database.Question
	if err := db.First(&question, "id = ?", questionID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	if question.AuthorID == user.ID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "You cannot vote on your own question."})
	}

	var existing database.QuestionVote
	result := db.First(&existing, "question_id = ? AND user_id = ?", questionID, user.ID)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	if result.Error == nil && existing.VoteType == input.VoteType {
		if err := db.Delete(&existing).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
		slog.Info("vote removed", "by", utils.BlurEmailAddress(user.Email),
			"question_id", questionID, "vote", input.VoteType)
		return c.JSON(fiber.Map{"ok": true})
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ? AND user_id = ?", questionID, user.ID).
			Delete(&database.QuestionVote{}).Error; err != nil {
			return err
		}
		vote := database.QuestionVote{
			QuestionID: questionID,
			UserID:     user.ID,
			VoteType:   input.VoteType,
		}
		return tx.Create(&vote).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	slog.Info("vote cast", "by", utils.BlurEmailAddress(user.Email),
		"question_id", questionID, "vote", input.VoteType)
	return c.JSON(fiber.Map{"ok": true})
}
