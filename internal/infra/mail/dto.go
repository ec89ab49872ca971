package mail

import "gopkg.in/gomail.v2"

type EmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string

	// Nil usa o dialer SMTP com as credenciais acima.
	Sender gomail.Sender
}
