package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"meetpulse/app/config"
	"meetpulse/app/database"
	"meetpulse/app/handlers"
	"meetpulse/app/middleware"
)

func mailProviderName(cfg *config.Config) string {
	switch {
	case cfg.MailgunAPIKey != "":
		return "mailgun"
	case cfg.SMTPHost != "":
		return "smtp"
	default:
		return "none (codes in logs only)"
	}
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.Migrate(db); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	slog.Info("server starting", "port", cfg.ServerPort, "mail_provider", mailProviderName(cfg))

	app := fiber.New()

	app.Use(compress.New())
	app.Use(helmet.New())
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(healthcheck.New())
	app.Use(logger.New())

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("db", db)
		return c.Next()
	})

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/signup", handlers.Signup)
	auth.Post("/signup/verify", handlers.SignupVerify)
	auth.Post("/login", handlers.Login)
	auth.Post("/login/verify", handlers.LoginVerify)
	auth.Post("/logout", handlers.Logout)

	api.Get("/me", middleware.AuthMiddleware, handlers.GetCurrentUser)
	api.Get("/profile", middleware.AuthMiddleware, handlers.GetProfile)

	meetings := api.Group("/meetings", middleware.AuthMiddleware)
	meetings.Get("/", handlers.GetMeetings)
	meetings.Post("/", middleware.AdminMiddleware, handlers.CreateMeeting)
	meetings.Get("/:meeting_id/questions", handlers.GetQuestions)
	meetings.Post("/:meeting_id/questions", handlers.AddQuestion)
	meetings.Get("/:meeting_id/pulse", handlers.GetPulse)

	api.Post("/questions/:question_id/vote", middleware.AuthMiddleware, handlers.VoteQuestion)
	api.Post("/pulse/options/:option_id/vote", middleware.AuthMiddleware, handlers.VotePulse)

	admin := api.Group("/admin", middleware.AuthMiddleware, middleware.AdminMiddleware)
	admin.Get("/users", handlers.GetAllUsers)
	admin.Post("/users/:user_id/approve", handlers.ApproveUser)
	admin.Post("/users/:user_id/toggle-admin", handlers.ToggleAdmin)
	admin.Delete("/users/:user_id", handlers.DeleteUser)
	admin.Get("/questions", handlers.GetAllQuestions)
	admin.Delete("/questions/:question_id", handlers.DeleteQuestion)
	admin.Get("/meetings", handlers.GetAllMeetings)
	admin.Post("/meetings/:meeting_id/toggle-visibility", handlers.ToggleMeetingVisibility)
	admin.Get("/pulse", handlers.GetAdminPulse)
	admin.Post("/pulse", handlers.StartPulse)
	admin.Post("/pulse/:poll_id/end", handlers.EndPulse)
	admin.Get("/meeting-questions/:meeting_id", handlers.GetMeetingQuestions)

	api.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	})

	// Serve the SPA bundle when a build is present.
	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		app.Static("/", cfg.StaticDir)
		app.Get("/*", func(c *fiber.Ctx) error {
			return c.SendFile(filepath.Join(cfg.StaticDir, "index.html"))
		})
	} else {
		app.Get("/", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"status": "Backend OK"})
		})
	}

	if err := app.Listen(fmt.Sprintf(":%d", cfg.ServerPort)); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
