package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"meetpulse/app/config"
	"meetpulse/app/database"
	"meetpulse/app/middleware"
)

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		JWTSecret:       "test-secret",
		CodeExpiry:      900,
		MaxCodeAttempts: 5,
		FromEmail:       "MeetPulse <no-reply@test.local>",
	}
	config.Validate = validator.New()

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("db", db)
		c.Locals("config", cfg)
		return c.Next()
	})

	authGroup := app.Group("/api/auth")
	authGroup.Post("/signup", Signup)
	authGroup.Post("/signup/verify", SignupVerify)
	authGroup.Post("/login", Login)
	authGroup.Post("/login/verify", LoginVerify)
	authGroup.Post("/logout", Logout)

	app.Get("/api/me", middleware.AuthMiddleware, GetCurrentUser)

	return app, db
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var parsed map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp, parsed
}

func storedCode(t *testing.T, db *gorm.DB, email string) string {
	t.Helper()

	var user database.User
	require.NoError(t, db.First(&user, "email = ?", email).Error)
	require.NotNil(t, user.PendingCode)
	return *user.PendingCode
}

func TestSignupFlow_FirstUser(t *testing.T) {
	app, db := newTestApp(t)

	resp, body := postJSON(t, app, "/api/auth/signup", fiber.Map{"email": "First@X.com", "name": "First"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "verify", body["step"])
	assert.Equal(t, "first@x.com", body["email"])

	code := storedCode(t, db, "first@x.com")

	resp, body = postJSON(t, app, "/api/auth/signup/verify", fiber.Map{"email": "first@x.com", "code": code})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, user["is_approved"])
	assert.Equal(t, true, user["is_admin"])

	var cookie string
	for _, c := range resp.Cookies() {
		if c.Name == middleware.TokenCookie {
			cookie = c.Value
			assert.True(t, c.HttpOnly)
		}
	}
	assert.Equal(t, token, cookie)

	req := httptest.NewRequest(fiber.MethodGet, "/api/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	meResp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer meResp.Body.Close()
	require.Equal(t, fiber.StatusOK, meResp.StatusCode)

	var me map[string]any
	require.NoError(t, json.NewDecoder(meResp.Body).Decode(&me))
	assert.Equal(t, float64(0), me["pending_approvals"])
}

func TestSignupFlow_SecondUserPending(t *testing.T) {
	app, db := newTestApp(t)

	_, _ = postJSON(t, app, "/api/auth/signup", fiber.Map{"email": "first@x.com"})
	_, _ = postJSON(t, app, "/api/auth/signup/verify",
		fiber.Map{"email": "first@x.com", "code": storedCode(t, db, "first@x.com")})

	_, _ = postJSON(t, app, "/api/auth/signup", fiber.Map{"email": "second@x.com"})
	resp, body := postJSON(t, app, "/api/auth/signup/verify",
		fiber.Map{"email": "second@x.com", "code": storedCode(t, db, "second@x.com")})

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending_approval", body["step"])
	assert.Nil(t, body["token"])

	// A verified but unapproved account cannot request a login code.
	resp, body = postJSON(t, app, "/api/auth/login", fiber.Map{"email": "second@x.com"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Account not approved yet.", body["error"])
}

func TestSignup_ExistingApprovedAccount(t *testing.T) {
	app, db := newTestApp(t)

	_, _ = postJSON(t, app, "/api/auth/signup", fiber.Map{"email": "first@x.com"})
	_, _ = postJSON(t, app, "/api/auth/signup/verify",
		fiber.Map{"email": "first@x.com", "code": storedCode(t, db, "first@x.com")})

	resp, body := postJSON(t, app, "/api/auth/signup", fiber.Map{"email": "first@x.com"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Account exists. Log in instead.", body["error"])
}

func TestSignup_InvalidEmail(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := postJSON(t, app, "/api/auth/signup", fiber.Map{"email": "not-an-email"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Valid email required", body["error"])
}

func TestSignupVerify_WrongCodeReportsRemaining(t *testing.T) {
	app, db := newTestApp(t)

	_, _ = postJSON(t, app, "/api/auth/signup", fiber.Map{"email": "a@x.com"})

	wrong := "000000"
	if storedCode(t, db, "a@x.com") == wrong {
		wrong = "111111"
	}

	for _, remaining := range []float64{4, 3, 2, 1} {
		resp, body := postJSON(t, app, "/api/auth/signup/verify", fiber.Map{"email": "a@x.com", "code": wrong})
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid code.", body["error"])
		assert.Equal(t, remaining, body["attempts_remaining"])
	}

	resp, body := postJSON(t, app, "/api/auth/signup/verify", fiber.Map{"email": "a@x.com", "code": wrong})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Too many attempts. Request a new code.", body["error"])
}

func TestLogin_UnknownAccount(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := postJSON(t, app, "/api/auth/login", fiber.Map{"email": "nobody@x.com"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "No account found. Sign up first.", body["error"])
}

func TestLoginFlow(t *testing.T) {
	app, db := newTestApp(t)

	_, _ = postJSON(t, app, "/api/auth/signup", fiber.Map{"email": "a@x.com"})
	_, _ = postJSON(t, app, "/api/auth/signup/verify",
		fiber.Map{"email": "a@x.com", "code": storedCode(t, db, "a@x.com")})

	resp, body := postJSON(t, app, "/api/auth/login", fiber.Map{"email": "a@x.com"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "verify", body["step"])

	resp, body = postJSON(t, app, "/api/auth/login/verify",
		fiber.Map{"email": "a@x.com", "code": storedCode(t, db, "a@x.com")})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])
}

func TestLoginVerify_UnknownAccount(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := postJSON(t, app, "/api/auth/login/verify", fiber.Map{"email": "nobody@x.com", "code": "123456"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Account not found or not approved.", body["error"])
}

func TestMe_Unauthenticated(t *testing.T) {
	app, _ := newTestApp(t)

	for _, header := range []string{"", "Bearer not-a-token"} {
		req := httptest.NewRequest(fiber.MethodGet, "/api/me", nil)
		if header != "" {
			req.Header.Set(fiber.HeaderAuthorization, header)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, fmt.Sprintf("header %q", header))
	}
}

func TestLogout_ExpiresCookie(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := postJSON(t, app, "/api/auth/logout", fiber.Map{})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == middleware.TokenCookie {
			found = true
			assert.Empty(t, c.Value)
		}
	}
	assert.True(t, found)
}
