// Package mailer delivers plain-text transactional mail.
package mailer

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Config holds the SendGrid credentials and sender identity.
type Config struct {
	APIKey    string
	FromName  string
	FromEmail string
}

// SendGrid sends mail through the SendGrid v3 API.
type SendGrid struct {
	client *sendgrid.Client
	from   *sgmail.Email
	logger zerolog.Logger
}

// NewSendGrid constructs a SendGrid mailer.
func NewSendGrid(cfg Config, logger zerolog.Logger) (*SendGrid, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("sendgrid api key must be provided")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, fmt.Errorf("sender email must be provided")
	}

	return &SendGrid{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger.With().Str("component", "sendgrid_mailer").Logger(),
	}, nil
}

// Send delivers a single plain-text message.
func (s *SendGrid) Send(ctx context.Context, to, subject, body string) error {
	message := sgmail.NewSingleEmail(s.from, subject, sgmail.NewEmail("", to), body, "")

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if response.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected message: status %d", response.StatusCode)
	}

	s.logger.Debug().Int("status", response.StatusCode).Str("subject", subject).Msg("mail accepted")
	return nil
}

// Log writes messages to the logger instead of sending them. It is used when
// no SendGrid key is configured.
type Log struct {
	logger zerolog.Logger
}

// NewLog constructs a logging mailer.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "log_mailer").Logger()}
}

// Send logs the message and reports success.
func (l *Log) Send(ctx context.Context, to, subject, body string) error {
	l.logger.Info().Str("to", MaskAddress(to)).Str("subject", subject).Msg("mail delivered to log")
	return nil
}

// MaskAddress hides most of the local part of an email address.
func MaskAddress(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" {
		return "***"
	}
	local := parts[0]
	if len(local) <= 2 {
		local = local[:1] + "***"
	} else {
		local = local[:1] + "***" + local[len(local)-1:]
	}
	return local + "@" + parts[1]
}
