package config

import (
	"fmt"

	"github.com/go-playground/validator"
	"github.com/spf13/viper"

	"meetpulse/pkg/utils"
)

// TODO: Move into a separate package
var Validate *validator.Validate

type Config struct {
	ServerPort      int    `mapstructure:"SERVER_PORT"`
	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	JWTSecret       string `mapstructure:"JWT_SECRET"`
	CodeExpiry      int    `mapstructure:"CODE_EXPIRY_SECONDS"`
	MaxCodeAttempts int    `mapstructure:"MAX_CODE_ATTEMPTS"`
	AutoApprove     bool   `mapstructure:"AUTO_APPROVE"`
	FromEmail       string `mapstructure:"FROM_EMAIL"`
	MailgunAPIKey   string `mapstructure:"MAILGUN_API_KEY"`
	MailgunDomain   string `mapstructure:"MAILGUN_DOMAIN"`
	MailgunAPIBase  string `mapstructure:"MAILGUN_API_BASE"`
	SMTPHost        string `mapstructure:"SMTP_HOST"`
	SMTPPort        int    `mapstructure:"SMTP_PORT"`
	SMTPUsername    string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword    string `mapstructure:"SMTP_PASSWORD"`
	StaticDir       string `mapstructure:"STATIC_DIR"`
}

func Load() (*Config, error) {
	viper.SetDefault("SERVER_PORT", 3_000)
	viper.SetDefault("DATABASE_URL", "sqlite://data/meetpulse.db")
	viper.SetDefault("JWT_SECRET", utils.GenerateRandomString(32))
	viper.SetDefault("CODE_EXPIRY_SECONDS", 900)
	viper.SetDefault("MAX_CODE_ATTEMPTS", 5)
	viper.SetDefault("FROM_EMAIL", "MeetPulse <no-reply@meetpulse.local>")
	viper.SetDefault("MAILGUN_API_BASE", "https://api.eu.mailgun.net/v3")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("STATIC_DIR", "frontend/dist")

	viper.AutomaticEnv()

	viper.BindEnv("AUTO_APPROVE")

	viper.BindEnv("MAILGUN_API_KEY")
	viper.BindEnv("MAILGUN_DOMAIN")
	viper.BindEnv("SMTP_HOST")
	viper.BindEnv("SMTP_USERNAME")
	viper.BindEnv("SMTP_PASSWORD")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/meetpulse/")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// TODO: Move this to somewhere else
	Validate = validator.New()

	return &cfg, nil
}
