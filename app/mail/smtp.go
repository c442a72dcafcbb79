package mail

import (
	"fmt"
	"net/smtp"
	"sync"

	"github.com/jordan-wright/email"
)

type SMTP struct {
	host     string
	port     int
	username string
	password string

	mu   sync.Mutex
	pool *email.Pool
}

func NewSMTP(host string, port int, username, password string) *SMTP {
	return &SMTP{
		host:     host,
		port:     port,
		username: username,
		password: password,
	}
}

func (m *SMTP) connect() (*email.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool != nil {
		return m.pool, nil
	}

	var auth smtp.Auth
	if m.username != "" || m.password != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	pool, err := email.NewPool(fmt.Sprintf("%s:%d", m.host, m.port), 1, auth)
	if err != nil {
		return nil, err
	}
	m.pool = pool

	return pool, nil
}

func (m *SMTP) SendMail(e *Email) error {
	pool, err := m.connect()
	if err != nil {
		return err
	}

	msg := &email.Email{
		To:      e.To,
		From:    e.From,
		Subject: e.Subject,
		HTML:    []byte(e.Body),
	}

	return pool.Send(msg, sendTimeout)
}
