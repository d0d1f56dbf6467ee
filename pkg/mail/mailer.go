package mail

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// ErrDisabled signals that outbound email is switched off via configuration.
var ErrDisabled = errors.New("mail: delivery disabled")

// Message represents an outbound email. HTML takes precedence over Text when both are set.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Mailer sends email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Settings selects and configures the outbound provider.
type Settings struct {
	// Provider is "smtp", "resend" or empty (disabled).
	Provider string
	From     string
	SMTP     SMTPSettings
	Resend   ResendSettings
}

// New builds the mailer for the configured provider. An empty provider yields a mailer that
// returns ErrDisabled.
func New(settings Settings) (Mailer, error) {
	switch strings.ToLower(strings.TrimSpace(settings.Provider)) {
	case "", "none", "disabled":
		return disabledMailer{}, nil
	case "smtp":
		cfg := settings.SMTP
		cfg.Enabled = true
		if cfg.From == "" {
			cfg.From = settings.From
		}
		return NewSMTPMailer(cfg)
	case "resend":
		cfg := settings.Resend
		if cfg.From == "" {
			cfg.From = settings.From
		}
		return NewResendMailer(cfg)
	default:
		return nil, fmt.Errorf("mail: unsupported provider %q", settings.Provider)
	}
}

type disabledMailer struct{}

func (disabledMailer) Send(context.Context, Message) error { return ErrDisabled }

// envelope is the validated, normalised form of a Message shared by every provider.
type envelope struct {
	from       string
	recipients []string
	subject    string
	html       string
	text       string
}

func prepare(msg Message, defaultFrom string) (envelope, error) {
	recipients := uniqueAddresses(msg.To)
	if len(recipients) == 0 {
		return envelope{}, errors.New("mail: at least one recipient is required")
	}

	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = strings.TrimSpace(defaultFrom)
	}
	if from == "" {
		return envelope{}, errors.New("mail: sender address is required")
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return envelope{}, fmt.Errorf("mail: invalid from address: %w", err)
	}

	for _, rcpt := range recipients {
		if _, err := mail.ParseAddress(rcpt); err != nil {
			return envelope{}, fmt.Errorf("mail: invalid recipient address %q: %w", rcpt, err)
		}
	}

	return envelope{
		from:       from,
		recipients: recipients,
		subject:    escapeHeader(msg.Subject),
		html:       msg.HTML,
		text:       msg.Text,
	}, nil
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	var result []string
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if _, exists := seen[addr]; exists {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, addr)
	}
	return result
}

func escapeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return value
}

func defaultTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 10 * time.Second
	}
	return timeout
}
