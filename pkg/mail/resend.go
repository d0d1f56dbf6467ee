package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v3"
)

// ResendSettings configures delivery through the Resend HTTP API.
type ResendSettings struct {
	APIKey string
	From   string
}

type resendEmails interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type resendMailer struct {
	from   string
	emails resendEmails
}

// NewResendMailer returns a Mailer backed by the Resend API.
func NewResendMailer(cfg ResendSettings) (Mailer, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("resend: api key is required")
	}
	client := resend.NewClient(key)
	return &resendMailer{from: cfg.From, emails: client.Emails}, nil
}

func (m *resendMailer) Send(ctx context.Context, msg Message) error {
	env, err := prepare(msg, m.from)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    env.from,
		To:      env.recipients,
		Subject: env.subject,
		Html:    env.html,
		Text:    env.text,
	}
	if _, err := m.emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend: send: %w", err)
	}
	return nil
}
