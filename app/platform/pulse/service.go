package pulse

import (
	"errors"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"meetpulse/app/database"
	"meetpulse/pkg/utils"
)

var (
	ErrNoActivePoll   = errors.New("no active poll")
	ErrPollEnded      = errors.New("poll has ended")
	ErrOptionNotFound = errors.New("poll option not found")
)

// Default option sets when the admin supplies none: a yes/no vote for
// question-linked polls, a mood check otherwise.
var (
	questionOptions = []string{"Yes", "No", "Abstain"}
	moodOptions     = []string{"Great", "Good", "Okay", "Could be better"}
)

const maxPollTitle = 255

type PulseService struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *PulseService {
	return &PulseService{db: db}
}

type OptionResult struct {
	ID     uuid.UUID `json:"id"`
	Text   string    `json:"text"`
	Votes  int       `json:"votes"`
	Pct    int       `json:"pct"`
	MyVote bool      `json:"my_vote"`
}

type PollResult struct {
	Poll       database.PulsePoll
	TotalVotes int
	Options    []OptionResult
}

// ActivePoll returns the live poll for a meeting with per-option results
// from the given voter's perspective, or ErrNoActivePoll.
func (s *PulseService) ActivePoll(meetingID, userID uuid.UUID) (*PollResult, error) {
	var poll database.PulsePoll
	result := s.db.First(&poll, "meeting_id = ? AND active = ?", meetingID, true)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNoActivePoll
		}
		return nil, result.Error
	}

	return s.results(&poll, userID)
}

func (s *PulseService) results(poll *database.PulsePoll, userID uuid.UUID) (*PollResult, error) {
	var options []database.PulseOption
	if err := s.db.Where("poll_id = ?", poll.ID).Order("sort_order ASC").Find(&options).Error; err != nil {
		return nil, err
	}

	optionIDs := make([]uuid.UUID, 0, len(options))
	for _, o := range options {
		optionIDs = append(optionIDs, o.ID)
	}

	var votes []database.PulseVote
	if len(optionIDs) > 0 {
		if err := s.db.Where("option_id IN ?", optionIDs).Find(&votes).Error; err != nil {
			return nil, err
		}
	}

	counts := make(map[uuid.UUID]int, len(options))
	myOption := uuid.Nil
	for _, v := range votes {
		counts[v.OptionID]++
		if v.UserID == userID {
			myOption = v.OptionID
		}
	}

	res := &PollResult{Poll: *poll, TotalVotes: len(votes)}
	for _, o := range options {
		pct := 0
		if res.TotalVotes > 0 {
			// Round half to even, matching Python's round() on exact halves.
			pct = int(math.RoundToEven(float64(counts[o.ID]) / float64(res.TotalVotes) * 100))
		}
		res.Options = append(res.Options, OptionResult{
			ID:     o.ID,
			Text:   o.Text,
			Votes:  counts[o.ID],
			Pct:    pct,
			MyVote: o.ID == myOption && myOption != uuid.Nil,
		})
	}

	return res, nil
}

// Start opens a new poll for the meeting, ending any poll already running
// there. A question-linked poll takes the question text as its title.
func (s *PulseService) Start(meetingID uuid.UUID, questionID *uuid.UUID, title string, optionLabels []string) (*database.PulsePoll, error) {
	if title == "" {
		title = "Session pulse"
	}

	var linkedQuestionID *uuid.UUID
	if questionID != nil {
		var question database.Question
		result := s.db.First(&question, "id = ? AND meeting_id = ?", *questionID, meetingID)
		if result.Error == nil {
			title = utils.TruncateString(question.Text, maxPollTitle)
			linkedQuestionID = &question.ID
		} else if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, result.Error
		}
	}

	if len(optionLabels) == 0 {
		if linkedQuestionID != nil {
			optionLabels = questionOptions
		} else {
			optionLabels = moodOptions
		}
	}

	poll := database.PulsePoll{
		MeetingID:  meetingID,
		QuestionID: linkedQuestionID,
		Title:      title,
		Active:     true,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.PulsePoll{}).
			Where("meeting_id = ? AND active = ?", meetingID, true).
			Update("active", false).Error; err != nil {
			return err
		}

		if err := tx.Create(&poll).Error; err != nil {
			return err
		}

		for i, label := range optionLabels {
			option := database.PulseOption{PollID: poll.ID, Text: label, SortOrder: i}
			if err := tx.Create(&option).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &poll, nil
}

func (s *PulseService) End(pollID uuid.UUID) error {
	result := s.db.Model(&database.PulsePoll{}).Where("id = ?", pollID).Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNoActivePoll
	}
	return nil
}

// Vote records the user's choice. Prior votes by the same user anywhere in
// the poll are removed first; the brief delete-then-insert window under
// concurrent requests from one user is accepted best-effort.
func (s *PulseService) Vote(optionID, userID uuid.UUID) error {
	var option database.PulseOption
	result := s.db.First(&option, "id = ?", optionID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ErrOptionNotFound
		}
		return result.Error
	}

	var poll database.PulsePoll
	if err := s.db.First(&poll, "id = ?", option.PollID).Error; err != nil {
		return err
	}
	if !poll.Active {
		return ErrPollEnded
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND option_id IN (?)", userID,
			tx.Model(&database.PulseOption{}).Select("id").Where("poll_id = ?", poll.ID),
		).Delete(&database.PulseVote{}).Error; err != nil {
			return err
		}

		vote := database.PulseVote{OptionID: optionID, UserID: userID}
		return tx.Create(&vote).Error
	})
}

// AdminActivePoll returns the first active poll, optionally narrowed to one
// meeting, for the admin dashboard.
func (s *PulseService) AdminActivePoll(meetingID *uuid.UUID) (*PollResult, error) {
	query := s.db.Where("active = ?", true)
	if meetingID != nil {
		query = query.Where("meeting_id = ?", *meetingID)
	}

	var poll database.PulsePoll
	result := query.First(&poll)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNoActivePoll
		}
		return nil, result.Error
	}

	return s.results(&poll, uuid.Nil)
}
