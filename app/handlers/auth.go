package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"meetpulse/app/auth"
	"meetpulse/app/config"
	"meetpulse/app/database"
	"meetpulse/app/mail"
	"meetpulse/app/middleware"
	puser "meetpulse/app/platform/user"
	"meetpulse/pkg/utils"
)

func userService(c *fiber.Ctx) *puser.UserService {
	cfg := c.Locals("config").(*config.Config)
	db := c.Locals("db").(*gorm.DB)

	return puser.NewService(db, cfg, mail.FromConfig(cfg))
}

func setAuthCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		HTTPOnly: true,
		MaxAge:   int(auth.TokenValidity.Seconds()),
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   c.Protocol() == "https" || c.Get("X-Forwarded-Proto") == "https",
	})
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func Signup(c *fiber.Ctx) error {
	service := userService(c)

	type SignupInput struct {
		Name  string `json:"name"`
		Email string `json:"email" validate:"required,email"`
		Phone string `json:"phone"`
		Bio   string `json:"bio"`
	}

	var input SignupInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	if err := config.Validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Valid email required"})
	}

	email := utils.SanitizeEmail(input.Email)

	user, err := service.GetUserByEmail(email)
	if err != nil && !errors.Is(err, puser.ErrNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	if user != nil && user.Approved {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Account exists. Log in instead."})
	}

	if user == nil {
		user = &database.User{
			Email: email,
			Name:  optionalString(input.Name),
			Phone: optionalString(input.Phone),
			Bio:   optionalString(input.Bio),
		}
		if err := service.Create(user); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
	} else {
		// Signup retry before approval: refresh any profile fields supplied.
		if input.Name != "" {
			user.Name = &input.Name
		}
		if input.Phone != "" {
			user.Phone = &input.Phone
		}
		if input.Bio != "" {
			user.Bio = &input.Bio
		}
	}

	if err := service.IssueCode(user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	slog.Info("signup code issued", "email", utils.BlurEmailAddress(email))
	return c.JSON(fiber.Map{"step": "verify", "email": email})
}

func SignupVerify(c *fiber.Ctx) error {
	service := userService(c)
	cfg := c.Locals("config").(*config.Config)

	type VerifyInput struct {
		Email string `json:"email" validate:"required,email"`
		Code  string `json:"code" validate:"required"`
	}

	var input VerifyInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	if err := config.Validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	email := utils.SanitizeEmail(input.Email)

	user, err := service.VerifySignup(email, input.Code)
	if err != nil {
		var invalid *puser.InvalidCodeError
		switch {
		case errors.Is(err, puser.ErrNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No signup in progress. Start again."})
		case errors.Is(err, puser.ErrAlreadyVerified):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Already verified. Log in."})
		case errors.Is(err, puser.ErrCodeExpired):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Code expired. Request a new one."})
		case errors.Is(err, puser.ErrCodeLocked):
			slog.Warn("signup verification locked", "email", utils.BlurEmailAddress(email))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Too many attempts. Request a new code."})
		case errors.As(err, &invalid):
			slog.Warn("signup verification failed", "email", utils.BlurEmailAddress(email), "remaining", invalid.AttemptsRemaining)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":              "Invalid code.",
				"attempts_remaining": invalid.AttemptsRemaining,
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
	}

	if !user.Approved {
		slog.Info("signup pending approval", "email", utils.BlurEmailAddress(email))
		return c.JSON(fiber.Map{"step": "pending_approval", "message": "Account verified. Wait for admin approval."})
	}

	token, err := auth.NewTokenService(cfg.JWTSecret).Issue(email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	setAuthCookie(c, token)

	slog.Info("signup complete", "email", utils.BlurEmailAddress(email), "is_admin", user.Administrator)
	return c.JSON(fiber.Map{"user": user, "token": token})
}

func Login(c *fiber.Ctx) error {
	service := userService(c)

	type LoginInput struct {
		Email string `json:"email" validate:"required,email"`
	}

	var input LoginInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	if err := config.Validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	email := utils.SanitizeEmail(input.Email)

	user, err := service.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, puser.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No account found. Sign up first."})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	if !user.Approved {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Account not approved yet."})
	}

	if err := service.IssueCode(user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	slog.Info("login code issued", "email", utils.BlurEmailAddress(email))
	return c.JSON(fiber.Map{"step": "verify", "email": email})
}

func LoginVerify(c *fiber.Ctx) error {
	service := userService(c)
	cfg := c.Locals("config").(*config.Config)

	type VerifyInput struct {
		Email string `json:"email" validate:"required,email"`
		Code  string `json:"code" validate:"required"`
	}

	var input VerifyInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	if err := config.Validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	email := utils.SanitizeEmail(input.Email)

	user, err := service.VerifyLogin(email, input.Code)
	if err != nil {
		var invalid *puser.InvalidCodeError
		switch {
		case errors.Is(err, puser.ErrNotFound), errors.Is(err, puser.ErrNotApproved):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Account not found or not approved."})
		case errors.Is(err, puser.ErrCodeExpired):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Code expired. Request a new one."})
		case errors.Is(err, puser.ErrCodeLocked):
			slog.Warn("login verification locked", "email", utils.BlurEmailAddress(email))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Too many attempts. Request a new code."})
		case errors.As(err, &invalid):
			slog.Warn("login verification failed", "email", utils.BlurEmailAddress(email), "remaining", invalid.AttemptsRemaining)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":              "Invalid code.",
				"attempts_remaining": invalid.AttemptsRemaining,
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
	}

	token, err := auth.NewTokenService(cfg.JWTSecret).Issue(email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	setAuthCookie(c, token)

	slog.Info("login success", "email", utils.BlurEmailAddress(email))
	return c.JSON(fiber.Map{"user": user, "token": token})
}

// Logout discards the client-held cookie. Issued tokens stay valid for
// their full lifetime.
func Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		HTTPOnly: true,
		Expires:  time.Now().Add(-time.Hour),
	})

	return c.JSON(fiber.Map{"ok": true})
}

func GetCurrentUser(c *fiber.Ctx) error {
	user := c.Locals("user").(database.User)
	service := userService(c)

	var pending int64
	if user.Administrator {
		var err error
		pending, err = service.CountPendingApprovals()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
	}

	return c.JSON(fiber.Map{"user": user, "pending_approvals": pending})
}
