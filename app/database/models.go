package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	VoteUp   = "up"
	VoteDown = "down"
)

// User represents an attendee or administrator account. Verification state
// lives directly on the row: at most one pending code at a time, and
// FailedAttempts only carries meaning while PendingCode is set.
type User struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Name           *string    `json:"name"`
	Email          string     `json:"email" gorm:"uniqueIndex;not null"`
	Phone          *string    `json:"phone"`
	Bio            *string    `json:"bio"`
	Approved       bool       `json:"is_approved" gorm:"not null;default:false"`
	Administrator  bool       `json:"is_admin" gorm:"not null;default:false"`
	PendingCode    *string    `json:"-"`
	CodeExpiresAt  *time.Time `json:"-"`
	FailedAttempts int        `json:"-" gorm:"not null;default:0"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) TableName() string {
	return "users"
}

type Meeting struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Title       string     `json:"title" gorm:"not null"`
	Description *string    `json:"description"`
	Visible     bool       `json:"is_visible" gorm:"not null;default:true"`
	CreatedByID *uuid.UUID `json:"-" gorm:"type:uuid"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (m *Meeting) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (m *Meeting) TableName() string {
	return "meetings"
}

type Question struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	MeetingID uuid.UUID `json:"meeting_id" gorm:"type:uuid;index;not null"`
	Text      string    `json:"text" gorm:"not null"`
	AuthorID  uuid.UUID `json:"-" gorm:"type:uuid;index;not null"`
	Author    User      `json:"-" gorm:"foreignKey:AuthorID;references:ID"`
	CreatedAt time.Time `json:"created_at"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

func (q *Question) TableName() string {
	return "questions"
}

type QuestionVote struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	QuestionID uuid.UUID `json:"question_id" gorm:"type:uuid;index;not null"`
	UserID     uuid.UUID `json:"user_id" gorm:"type:uuid;index;not null"`
	User       User      `json:"-" gorm:"foreignKey:UserID;references:ID"`
	VoteType   string    `json:"vote_type" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
}

func (v *QuestionVote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

func (v *QuestionVote) TableName() string {
	return "question_votes"
}

// PulsePoll is a live single-question poll. One active poll per meeting at a
// time; starting a new one deactivates the previous.
type PulsePoll struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	MeetingID  uuid.UUID  `json:"meeting_id" gorm:"type:uuid;index;not null"`
	QuestionID *uuid.UUID `json:"question_id" gorm:"type:uuid"`
	Title      string     `json:"title" gorm:"not null"`
	Active     bool       `json:"is_active" gorm:"not null;default:true"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (p *PulsePoll) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *PulsePoll) TableName() string {
	return "pulse_polls"
}

type PulseOption struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	PollID    uuid.UUID `json:"poll_id" gorm:"type:uuid;index;not null"`
	Text      string    `json:"text" gorm:"not null"`
	SortOrder int       `json:"sort_order" gorm:"not null;default:0"`
}

func (o *PulseOption) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (o *PulseOption) TableName() string {
	return "pulse_options"
}

type PulseVote struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OptionID  uuid.UUID `json:"option_id" gorm:"type:uuid;index;not null"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;index;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (v *PulseVote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

func (v *PulseVote) TableName() string {
	return "pulse_votes"
}
