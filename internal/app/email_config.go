package app

import "github.com/charlesng35/mentorlink/pkg/mail"

// MailSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) MailSettings() mail.Settings {
	return mail.Settings{
		Provider: c.Provider,
		From:     c.From,
		SMTP: mail.SMTPSettings{
			Host:     c.SMTP.Host,
			Port:     c.SMTP.Port,
			Username: c.SMTP.Username,
			Password: c.SMTP.Password,
			UseTLS:   c.SMTP.UseTLS,
			Timeout:  c.SMTP.Timeout,
		},
		Resend: mail.ResendSettings{
			APIKey: c.Resend.APIKey,
		},
	}
}
