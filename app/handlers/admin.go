package handlers

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"meetpulse/app/config"
	"meetpulse/app/database"
	ppulse "meetpulse/app/platform/pulse"
	puser "meetpulse/app/platform/user"
	"meetpulse/pkg/utils"
)

func GetAllUsers(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)
	service := userService(c)

	pending, err := service.CountPendingApprovals()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	var users []database.User
	if err := db.Order("created_at DESC").Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	// Distinct meeting titles each user has asked questions in.
	type authorMeeting struct {
		AuthorID uuid.UUID
		Title    string
	}
	var rows []authorMeeting
	if err := db.Model(&database.Question{}).
		Select("DISTINCT questions.author_id, meetings.title").
		Joins("JOIN meetings ON meetings.id = questions.meeting_id").
		Scan(&rows).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	userMeetings := make(map[uuid.UUID][]string, len(users))
	for _, row := range rows {
		userMeetings[row.AuthorID] = append(userMeetings[row.AuthorID], row.Title)
	}

	type userView struct {
		database.User
		Meetings []string `json:"meetings"`
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		meetings := userMeetings[u.ID]
		if meetings == nil {
			meetings = []string{}
		}
		views = append(views, userView{User: u, Meetings: meetings})
	}

	return c.JSON(fiber.Map{"pending_count": pending, "users": views})
}

func ApproveUser(c *fiber.Ctx) error {
	admin := c.Locals("user").(database.User)
	service := userService(c)

	targetID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	target, err := service.Approve(targetID)
	if err != nil {
		if errors.Is(err, puser.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	slog.Info("user approved", "by", utils.BlurEmailAddress(admin.Email),
		"target", utils.BlurEmailAddress(target.Email))
	return c.JSON(target)
}

func ToggleAdmin(c *fiber.Ctx) error {
	admin := c.Locals("user").(database.User)
	service := userService(c)

	targetID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	target, err := service.ToggleAdmin(admin.ID, targetID)
	if err != nil {
		switch {
		case errors.Is(err, puser.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
		case errors.Is(err, puser.ErrSelfToggle):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "You cannot change your own admin status."})
		case errors.Is(err, puser.ErrLastAdmin):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot remove the last admin."})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
	}

	slog.Info("admin toggled", "by", utils.BlurEmailAddress(admin.Email),
		"target", utils.BlurEmailAddress(target.Email), "is_admin", target.Administrator)
	return c.JSON(target)
}

func DeleteUser(c *fiber.Ctx) error {
	admin := c.Locals("user").(database.User)
	service := userService(c)

	targetID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	if err := service.Delete(admin.ID, targetID); err != nil {
		switch {
		case errors.Is(err, puser.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
		case errors.Is(err, puser.ErrSelfDelete):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "You cannot delete your own account."})
		case errors.Is(err, puser.ErrLastAdmin):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot delete the last admin."})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
	}

	slog.Warn("user deleted", "by", utils.BlurEmailAddress(admin.Email), "target_id", targetID)
	return c.JSON(fiber.Map{"ok": true})
}

func GetAllQuestions(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)

	query := db.Preload("Author")
	if raw := c.Query("meeting_id"); raw != "" {
		meetingID, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
		}
		query = query.Where("meeting_id = ?", meetingID)
	}

	var questions []database.Question
	if err := query.Find(&questions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	questionIDs := make([]uuid.UUID, 0, len(questions))
	meetingIDs := make([]uuid.UUID, 0, len(questions))
	for _, q := range questions {
		questionIDs = append(questionIDs, q.ID)
		meetingIDs = append(meetingIDs, q.MeetingID)
	}

	scores := make(map[uuid.UUID]int, len(questions))
	if len(questionIDs) > 0 {
		var votes []database.QuestionVote
		if err := db.Where("question_id IN ?", questionIDs).Find(&votes).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
		for _, v := range votes {
			if v.VoteType == database.VoteUp {
				scores[v.QuestionID]++
			} else {
				scores[v.QuestionID]--
			}
		}
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

	type adminQuestion struct {
		ID        uuid.UUID `json:"id"`
		Text      string    `json:"text"`
		Score     int       `json:"score"`
		Author    string    `json:"author"`
		Meeting   string    `json:"meeting"`
		MeetingID uuid.UUID `json:"meeting_id"`
		CreatedAt time.Time `json:"created_at"`
	}

	views := make([]adminQuestion, 0, len(questions))
	for _, q := range questions {
		views = append(views, adminQuestion{
			ID:        q.ID,
			Text:      q.Text,
			Score:     scores[q.ID],
			Author:    displayName(&q.Author),
			Meeting:   meetingTitles[q.MeetingID],
			MeetingID: q.MeetingID,
			CreatedAt: q.CreatedAt,
		})
	}

	sort.SliceStable(views, func(i, j int) bool { return views[i].Score > views[j].Score })

	return c.JSON(views)
}

// DeleteQuestion removes a question with its votes; polls linked to it stay
// up but lose the link.
func DeleteQuestion(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)
	admin := c.Locals("user").(database.User)

	questionID, err := uuid.Parse(c.Params("question_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	var question database.Question
	result := db.First(&question, "id = ?", questionID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"ok": true})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", questionID).Delete(&database.QuestionVote{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&database.PulsePoll{}).Where("question_id = ?", questionID).
			Update("question_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&question).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	slog.Warn("question deleted", "by", utils.BlurEmailAddress(admin.Email), "question_id", questionID)
	return c.JSON(fiber.Map{"ok": true})
}

func GetAllMeetings(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)

	var meetings []database.Meeting
	if err := db.Order("created_at DESC").Find(&meetings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	return c.JSON(meetings)
}

func ToggleMeetingVisibility(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)
	admin := c.Locals("user").(database.User)

	meetingID, err := uuid.Parse(c.Params("meeting_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	var meeting database.Meeting
	if err := db.First(&meeting, "id = ?", meetingID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	meeting.Visible = !meeting.Visible
	if err := db.Save(&meeting).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	slog.Info("meeting visibility toggled", "by", utils.BlurEmailAddress(admin.Email),
		"meeting_id", meetingID, "is_visible", meeting.Visible)
	return c.JSON(fiber.Map{"id": meeting.ID, "is_visible": meeting.Visible})
}

func GetAdminPulse(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)

	var meetingID *uuid.UUID
	if raw := c.Query("meeting_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
		}
		meetingID = &id
	}

	result, err := ppulse.NewService(db).AdminActivePoll(meetingID)
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
		"meeting_id":  result.Poll.MeetingID,
		"question_id": result.Poll.QuestionID,
		"total_votes": result.TotalVotes,
		"options":     result.Options,
	})
}

func StartPulse(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)
	admin := c.Locals("user").(database.User)

	type PulseStartInput struct {
		MeetingID  uuid.UUID  `json:"meeting_id" validate:"required"`
		QuestionID *uuid.UUID `json:"question_id"`
		Title      string     `json:"title"`
		Options    []string   `json:"options"`
	}

	var input PulseStartInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	if err := config.Validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	labels := make([]string, 0, len(input.Options))
	for _, label := range input.Options {
		if label != "" {
			labels = append(labels, label)
		}
	}

	poll, err := ppulse.NewService(db).Start(input.MeetingID, input.QuestionID, input.Title, labels)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	slog.Info("pulse started", "by", utils.BlurEmailAddress(admin.Email),
		"meeting_id", input.MeetingID, "poll_id", poll.ID, "title", poll.Title)
	return c.JSON(fiber.Map{"id": poll.ID, "title": poll.Title})
}

func EndPulse(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)
	admin := c.Locals("user").(database.User)

	pollID, err := uuid.Parse(c.Params("poll_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	if err := ppulse.NewService(db).End(pollID); err != nil && !errors.Is(err, ppulse.ErrNoActivePoll) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	slog.Info("pulse ended", "by", utils.BlurEmailAddress(admin.Email), "poll_id", pollID)
	return c.JSON(fiber.Map{"ok": true})
}

// GetMeetingQuestions lists a meeting's questions in short form, for wiring
// a pulse poll to one of them.
func GetMeetingQuestions(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)

	meetingID, err := uuid.Parse(c.Params("meeting_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	}

	var questions []database.Question
	if err := db.Where("meeting_id = ?", meetingID).Order("created_at DESC").Find(&questions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	type questionStub struct {
		ID   uuid.UUID `json:"id"`
		Text string    `json:"text"`
	}

	views := make([]questionStub, 0, len(questions))
	for _, q := range questions {
		views = append(views, questionStub{ID: q.ID, Text: utils.TruncateString(q.Text, 80)})
	}

	return c.JSON(views)
}
