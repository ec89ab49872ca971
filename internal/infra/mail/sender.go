package mail

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

var ErrNotConfigured = errors.New("smtp host not configured")

func NewEmailSender(host string, port int, user, password, from string) *EmailSender {
	return &EmailSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
	}
}

// SendSequenceStep envia um passo de sequência já renderizado.
func (s *EmailSender) SendSequenceStep(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Sender == nil && s.Host == "" {
		return ErrNotConfigured
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if s.Sender != nil {
		if err := gomail.Send(s.Sender, m); err != nil {
			return fmt.Errorf("erro ao enviar email: %w", err)
		}
		return nil
	}

	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("erro ao enviar email SMTP: %w", err)
	}
	return nil
}
