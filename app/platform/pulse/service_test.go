package pulse

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"meetpulse/app/database"
)

func newTestService(t *testing.T) (*PulseService, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	return NewService(db), db
}

func newMeeting(t *testing.T, db *gorm.DB) *database.Meeting {
	t.Helper()

	meeting := database.Meeting{Title: "All hands", Visible: true}
	require.NoError(t, db.Create(&meeting).Error)
	return &meeting
}

func newUser(t *testing.T, db *gorm.DB, email string) *database.User {
	t.Helper()

	user := database.User{Email: email, Approved: true}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func optionTexts(t *testing.T, db *gorm.DB, pollID uuid.UUID) []string {
	t.Helper()

	var texts []string
	require.NoError(t, db.Model(&database.PulseOption{}).
		Where("poll_id = ?", pollID).Order("sort_order ASC").Pluck("text", &texts).Error)
	return texts
}

func TestStart_DefaultMoodOptions(t *testing.T) {
	s, db := newTestService(t)
	meeting := newMeeting(t, db)

	poll, err := s.Start(meeting.ID, nil, "", nil)
	require.NoError(t, err)

	assert.Equal(t, "Session pulse", poll.Title)
	assert.Nil(t, poll.QuestionID)
	assert.True(t, poll.Active)
	assert.Equal(t, []string{"Great", "Good", "Okay", "Could be better"}, optionTexts(t, db, poll.ID))
}

func TestStart_QuestionLinked(t *testing.T) {
	s, db := newTestService(t)
	meeting := newMeeting(t, db)
	author := newUser(t, db, "a@x.com")

	question := database.Question{MeetingID: meeting.ID, Text: "Ship it this week?", AuthorID: author.ID}
	require.NoError(t, db.Create(&question).Error)

	poll, err := s.Start(meeting.ID, &question.ID, "ignored", nil)
	require.NoError(t, err)

	assert.Equal(t, question.Text, poll.Title)
	require.NotNil(t, poll.QuestionID)
	assert.Equal(t, question.ID, *poll.QuestionID)
	assert.Equal(t, []string{"Yes", "No", "Abstain"}, optionTexts(t, db, poll.ID))
}

func TestStart_LongQuestionTitleTruncatedOnRuneBoundary(t *testing.T) {
	s, db := newTestService(t)
	meeting := newMeeting(t, db)
	author := newUser(t, db, "a@x.com")

	question := database.Question{MeetingID: meeting.ID, Text: strings.Repeat("ü", 300), AuthorID: author.ID}
	require.NoError(t, db.Create(&question).Error)

	poll, err := s.Start(meeting.ID, &question.ID, "", nil)
	require.NoError(t, err)

	assert.Equal(t, 255, utf8.RuneCountInString(poll.Title))
	assert.True(t, utf8.ValidString(poll.Title))
	assert.Equal(t, strings.Repeat("ü", 255), poll.Title)
}

func TestStart_QuestionFromOtherMeetingIgnored(t *testing.T) {
	s, db := newTestService(t)
	meeting := newMeeting(t, db)
	other := newMeeting(t, db)
	author := newUser(t, db, "a@x.com")

	question := database.Question{MeetingID: other.ID, Text: "Wrong room?", AuthorID: author.ID}
	require.NoError(t, db.Create(&question).Error)

	poll, err := s.Start(meeting.ID, &question.ID, "Temperature check", nil)
	require.NoError(t, err)

	assert.Equal(t, "Temperature check", poll.Title)
	assert.Nil(t, poll.QuestionID)
}

func TestStart_CustomOptions(t *testing.T) {
	s, db := newTestService(t)
	meeting := newMeeting(t, db)

	poll, err := s.Start(meeting.ID, nil, "Lunch?", []string{"Pizza", "Sushi"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Pizza", "Sushi"}, optionTexts(t, db, poll.ID))
}

func TestStart_EndsPriorPoll(t *testing.T) {
	s, db := newTestService(t)
	meeting := newMeeting(t, db)

	first, err := s.Start(meeting.ID, nil, "", nil)
	require.NoError(t, err)
	second, err := s.Start(meeting.ID, nil, "", nil)
	require.NoError(t, err)

	var stored database.PulsePoll
	require.NoError(t, db.First(&stored, "id = ?", first.ID).Error)
	assert.False(t, stored.Active)

	user := newUser(t, db, "a@x.com")
	result, err := s.ActivePoll(meeting.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, result.Poll.ID)
}

func TestActivePoll_None(t *testing.T) {
	s, db := newTestService(t)
	meeting := newMeeting(t, db)
	user := newUser(t, db, "a@x.com")

	_, err := s.ActivePoll(meeting.ID, user.ID)
	assert.ErrorIs(t, err, ErrNoActivePoll)
}

func TestVote_ReVoteKeepsSingleVote(t *testing.T) {
	s, db := newTestService(t)
	meeting := newMeeting(t, db)
	user := newUser(t, db, "a@x.com")

	poll, err := s.Start(meeting.ID, nil, "", []string{"Yes", "No"})
	require.NoError(t, err)

	var options []database.PulseOption
	require.NoError(t, db.Where("poll_id = ?", poll.ID).Order("sort_order ASC").Find(&options).Error)
	require.Len(t, options, 2)

	require.NoError(t, s.Vote(options[0].ID, user.ID))
	require.NoError(t, s.Vote(options[1].ID, user.ID))

	var votes []database.PulseVote
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&votes).Error)
	require.Len(t, votes, 1)
	assert.Equal(t, options[1].ID, votes[0].OptionID)
}

func TestVote_EndedPoll(t *testing.T) {
	s, db := newTestService(t)
	meeting := newMeeting(t, db)
	user := newUser(t, db, "a@x.com")

	poll, err := s.Start(meeting.ID, nil, "", []string{"Yes", "No"})
	require.NoError(t, err)
	require.NoError(t, s.End(poll.ID))

	var option database.PulseOption
	require.NoError(t, db.First(&option, "poll_id = ?", poll.ID).Error)

	assert.ErrorIs(t, s.Vote(option.ID, user.ID), ErrPollEnded)
}

func TestVote_UnknownOption(t *testing.T) {
	s, _ := newTestService(t)

	assert.ErrorIs(t, s.Vote(uuid.New(), uuid.New()), ErrOptionNotFound)
}

func TestEnd_UnknownPoll(t *testing.T) {
	s, _ := newTestService(t)

	assert.ErrorIs(t, s.End(uuid.New()), ErrNoActivePoll)
}

func TestResults(t *testing.T) {
	s, db := newTestService(t)
	meeting := newMeeting(t, db)

	alice := newUser(t, db, "alice@x.com")
	bob := newUser(t, db, "bob@x.com")
	carol := newUser(t, db, "carol@x.com")

	poll, err := s.Start(meeting.ID, nil, "", []string{"Yes", "No", "Abstain"})
	require.NoError(t, err)

	var options []database.PulseOption
	require.NoError(t, db.Where("poll_id = ?", poll.ID).Order("sort_order ASC").Find(&options).Error)
	require.Len(t, options, 3)

	require.NoError(t, s.Vote(options[0].ID, alice.ID))
	require.NoError(t, s.Vote(options[0].ID, bob.ID))
	require.NoError(t, s.Vote(options[1].ID, carol.ID))

	result, err := s.ActivePoll(meeting.ID, alice.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalVotes)
	require.Len(t, result.Options, 3)

	assert.Equal(t, 2, result.Options[0].Votes)
	assert.Equal(t, 67, result.Options[0].Pct)
	assert.True(t, result.Options[0].MyVote)

	assert.Equal(t, 1, result.Options[1].Votes)
	assert.Equal(t, 33, result.Options[1].Pct)
	assert.False(t, result.Options[1].MyVote)

	assert.Equal(t, 0, result.Options[2].Votes)
	assert.Equal(t, 0, result.Options[2].Pct)
}

func TestResults_HalfPercentagesRoundToEven(t *testing.T) {
	s, db := newTestService(t)
	meeting := newMeeting(t, db)

	poll, err := s.Start(meeting.ID, nil, "", []string{"Yes", "No"})
	require.NoError(t, err)

	var options []database.PulseOption
	require.NoError(t, db.Where("poll_id = ?", poll.ID).Order("sort_order ASC").Find(&options).Error)
	require.Len(t, options, 2)

	// 1 of 8 is exactly 12.5%, 7 of 8 exactly 87.5%.
	voters := make([]*database.User, 8)
	for i := range voters {
		voters[i] = newUser(t, db, fmt.Sprintf("u%d@x.com", i))
	}
	require.NoError(t, s.Vote(options[0].ID, voters[0].ID))
	for _, voter := range voters[1:] {
		require.NoError(t, s.Vote(options[1].ID, voter.ID))
	}

	result, err := s.ActivePoll(meeting.ID, voters[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 12, result.Options[0].Pct)
	assert.Equal(t, 88, result.Options[1].Pct)
}

func TestAdminActivePoll(t *testing.T) {
	s, db := newTestService(t)
	meeting := newMeeting(t, db)
	other := newMeeting(t, db)

	_, err := s.Start(meeting.ID, nil, "", nil)
	require.NoError(t, err)
	second, err := s.Start(other.ID, nil, "", nil)
	require.NoError(t, err)

	result, err := s.AdminActivePoll(&other.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, result.Poll.ID)

	missing := uuid.New()
	_, err = s.AdminActivePoll(&missing)
	assert.ErrorIs(t, err, ErrNoActivePoll)
}
