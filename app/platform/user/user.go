package user

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"meetpulse/app/config"
	"meetpulse/app/database"
	"meetpulse/app/mail"
	"meetpulse/pkg/utils"
)

const codeLength = 6

// Expected verification outcomes. These are recoverable results surfaced to
// the transport layer, not infrastructure failures.
var (
	ErrNotFound        = errors.New("user not found")
	ErrAlreadyVerified = errors.New("already verified")
	ErrNotApproved     = errors.New("account not approved")
	ErrCodeExpired     = errors.New("verification code expired")
	ErrCodeLocked      = errors.New("too many verification attempts")
	ErrLastAdmin       = errors.New("cannot remove the last administrator")
	ErrSelfDelete      = errors.New("cannot delete own account")
	ErrSelfToggle      = errors.New("cannot change own administrator status")
)

// InvalidCodeError is returned on a wrong code while attempt budget remains.
type InvalidCodeError struct {
	AttemptsRemaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid code, %d attempts remaining", e.AttemptsRemaining)
}

type verifyFlow int

const (
	flowSignup verifyFlow = iota
	flowLogin
)

type UserService struct {
	db     *gorm.DB
	cfg    *config.Config
	mailer mail.Mailer
}

func NewService(db *gorm.DB, cfg *config.Config, mailer mail.Mailer) *UserService {
	return &UserService{db: db, cfg: cfg, mailer: mailer}
}

func (s *UserService) Create(user *database.User) error {
	user.Email = utils.SanitizeEmail(user.Email)

	result := s.db.Create(user)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (s *UserService) GetUserByID(userID uuid.UUID) (*database.User, error) {
	var user database.User

	result := s.db.First(&user, "id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

func (s *UserService) GetUserByEmail(email string) (*database.User, error) {
	var user database.User

	result := s.db.First(&user, "email = ?", utils.SanitizeEmail(email))
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

func (s *UserService) Update(user *database.User) error {
	result := s.db.Save(user)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

// IssueCode stores a fresh verification code on the account, invalidating
// any previous one and resetting the attempt counter, then dispatches it.
// Delivery is best-effort: a provider outage never fails issuance, since the
// fallback mailer records the code server-side.
func (s *UserService) IssueCode(user *database.User) error {
	code, err := utils.GenerateVerificationCode(codeLength)
	if err != nil {
		return err
	}

	expires := time.Now().Add(time.Duration(s.cfg.CodeExpiry) * time.Second)
	user.PendingCode = &code
	user.CodeExpiresAt = &expires
	user.FailedAttempts = 0

	if err := s.db.Save(user).Error; err != nil {
		return err
	}

	message := mail.Email{
		Subject: "Your login code",
		From:    s.cfg.FromEmail,
		To:      []string{user.Email},
		Body: fmt.Sprintf("<p>Your verification code is: <strong>%s</strong></p><p>It expires in %d minutes.</p>",
			code, s.cfg.CodeExpiry/60),
	}
	if err := s.mailer.SendMail(&message); err != nil {
		slog.Warn("failed to send verification code",
			"email", utils.BlurEmailAddress(user.Email), "error", err)
	}

	return nil
}

// VerifySignup runs the verification state machine for a first-time account
// and, on success, applies the approval gate: the very first account
// bootstraps as an approved administrator, otherwise approval follows the
// auto-approve flag or waits for an admin.
func (s *UserService) VerifySignup(email, code string) (*database.User, error) {
	user, err := s.checkCode(email, code, flowSignup)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var total int64
		if err := tx.Model(&database.User{}).Count(&total).Error; err != nil {
			return err
		}

		if total <= 1 {
			user.Approved = true
			user.Administrator = true
		} else if s.cfg.AutoApprove {
			user.Approved = true
		}

		clearPendingCode(user)
		return tx.Save(user).Error
	})
	if err != nil {
		return nil, err
	}

	if !user.Approved {
		s.notifyAdminsPendingApproval(user)
	}

	return user, nil
}

// VerifyLogin runs the verification state machine for an existing approved
// account.
func (s *UserService) VerifyLogin(email, code string) (*database.User, error) {
	user, err := s.checkCode(email, code, flowLogin)
	if err != nil {
		return nil, err
	}

	clearPendingCode(user)
	if err := s.db.Save(user).Error; err != nil {
		return nil, err
	}

	return user, nil
}

// checkCode enforces the check order: flow state, then expiry, then lockout,
// then the code itself. An expired code never consumes attempt budget.
// Two concurrent calls for the same account may both read the same attempt
// counter and undercount the lockout; accepted, see the service tests.
func (s *UserService) checkCode(email, code string, flow verifyFlow) (*database.User, error) {
	user, err := s.GetUserByEmail(email)
	if err != nil {
		return nil, err
	}

	switch flow {
	case flowSignup:
		if user.Approved {
			return nil, ErrAlreadyVerified
		}
	case flowLogin:
		if !user.Approved {
			return nil, ErrNotApproved
		}
	}

	if user.PendingCode == nil || user.CodeExpiresAt == nil || !time.Now().Before(*user.CodeExpiresAt) {
		return nil, ErrCodeExpired
	}

	if user.FailedAttempts >= s.cfg.MaxCodeAttempts {
		clearPendingCode(user)
		if err := s.db.Save(user).Error; err != nil {
			return nil, err
		}
		return nil, ErrCodeLocked
	}

	if *user.PendingCode != strings.TrimSpace(code) {
		user.FailedAttempts++
		if err := s.db.Save(user).Error; err != nil {
			return nil, err
		}
		if user.FailedAttempts >= s.cfg.MaxCodeAttempts {
			return nil, ErrCodeLocked
		}
		return nil, &InvalidCodeError{AttemptsRemaining: s.cfg.MaxCodeAttempts - user.FailedAttempts}
	}

	return user, nil
}

func clearPendingCode(user *database.User) {
	user.PendingCode = nil
	user.CodeExpiresAt = nil
	user.FailedAttempts = 0
}

// Approve marks the account usable. When no administrator exists at all the
// target is promoted too, so the system cannot end up admin-less.
func (s *UserService) Approve(targetID uuid.UUID) (*database.User, error) {
	var target database.User

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&target, "id = ?", targetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		target.Approved = true

		admins, err := countAdmins(tx)
		if err != nil {
			return err
		}
		if admins == 0 {
			target.Administrator = true
		}

		return tx.Save(&target).Error
	})
	if err != nil {
		return nil, err
	}

	return &target, nil
}

// ToggleAdmin flips the administrator flag. The admin count is read inside
// the same transaction as the mutation so two concurrent demotions cannot
// both observe "not last admin".
func (s *UserService) ToggleAdmin(actorID, targetID uuid.UUID) (*database.User, error) {
	if actorID == targetID {
		return nil, ErrSelfToggle
	}

	var target database.User

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&target, "id = ?", targetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if target.Administrator {
			admins, err := countAdmins(tx)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}

		target.Administrator = !target.Administrator
		return tx.Save(&target).Error
	})
	if err != nil {
		return nil, err
	}

	return &target, nil
}

// Delete removes the account together with its votes and authored questions.
// The cascade is explicit: question votes on the author's questions go
// first, then the questions, then the account. Pulse polls linked to a
// removed question lose the link but stay up.
func (s *UserService) Delete(actorID, targetID uuid.UUID) error {
	if actorID == targetID {
		return ErrSelfDelete
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var target database.User
		if err := tx.First(&target, "id = ?", targetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if target.Administrator {
			admins, err := countAdmins(tx)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}

		if err := tx.Where("user_id = ?", targetID).Delete(&database.QuestionVote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", targetID).Delete(&database.PulseVote{}).Error; err != nil {
			return err
		}

		var questionIDs []uuid.UUID
		if err := tx.Model(&database.Question{}).Where("author_id = ?", targetID).
			Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&database.QuestionVote{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&database.PulsePoll{}).Where("question_id IN ?", questionIDs).
				Update("question_id", nil).Error; err != nil {
				return err
			}
			if err := tx.Where("author_id = ?", targetID).Delete(&database.Question{}).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&target).Error
	})
}

func countAdmins(tx *gorm.DB) (int64, error) {
	var admins int64
	err := tx.Model(&database.User{}).Where("administrator = ?", true).Count(&admins).Error
	return admins, err
}

func (s *UserService) CountPendingApprovals() (int64, error) {
	var pending int64
	err := s.db.Model(&database.User{}).Where("approved = ?", false).Count(&pending).Error
	return pending, err
}

func (s *UserService) notifyAdminsPendingApproval(newUser *database.User) {
	var adminEmails []string
	if err := s.db.Model(&database.User{}).Where("administrator = ?", true).
		Pluck("email", &adminEmails).Error; err != nil {
		slog.Warn("failed to list administrators for approval notification", "error", err)
		return
	}

	name := "(not provided)"
	if newUser.Name != nil && *newUser.Name != "" {
		name = *newUser.Name
	}

	for _, adminEmail := range adminEmails {
		message := mail.Email{
			Subject: "MeetPulse - New user pending approval",
			From:    s.cfg.FromEmail,
			To:      []string{adminEmail},
			Body: fmt.Sprintf("<p>A new member has signed up and needs your approval before they can access the app.</p>"+
				"<p>Name: <strong>%s</strong><br>Email: <strong>%s</strong></p>"+
				"<p>Log in to the admin panel to approve or ignore.</p>", name, newUser.Email),
		}
		if err := s.mailer.SendMail(&message); err != nil {
			slog.Warn("admin approval notification failed",
				"admin", utils.BlurEmailAddress(adminEmail), "new_user", utils.BlurEmailAddress(newUser.Email), "error", err)
			continue
		}
		slog.Info("admin notified of pending approval",
			"admin", utils.BlurEmailAddress(adminEmail), "new_user", utils.BlurEmailAddress(newUser.Email))
	}
}
