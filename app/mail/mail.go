package mail

import (
	"log/slog"

	"meetpulse/app/config"
)

type Email struct {
	Subject string
	Body    string
	From    string
	To      []string
}

type Mailer interface {
	SendMail(e *Email) error
}

// FromConfig selects the active delivery provider. At most one provider is
// active; with nothing configured the LogMailer keeps the flow non-fatal.
func FromConfig(cfg *config.Config) Mailer {
	if cfg.MailgunAPIKey != "" {
		return NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunAPIBase)
	}
	if cfg.SMTPHost != "" {
		return NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	}
	return &LogMailer{}
}

// LogMailer records outbound mail in the server log instead of delivering
// it. This is the operator-visibility fallback: verification codes end up in
// the log so issuance never depends on a provider being configured.
type LogMailer struct{}

func (m *LogMailer) SendMail(e *Email) error {
	slog.Warn("no mail provider configured, logging instead",
		"to", e.To, "subject", e.Subject, "body", e.Body)
	return nil
}
