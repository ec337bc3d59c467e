package mailer

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/spf13/viper"
)

// Notifier delivers out-of-band messages to users. The transfer engine and
// registration flow treat a delivery failure as fatal to the operation that
// requested it.
type Notifier interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends plain-text mail over authenticated SMTP.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPMailer() *SMTPMailer {
	viper.SetDefault("smtp.host", "smtp.gmail.com")
	viper.SetDefault("smtp.port", "587")

	from := viper.GetString("smtp.from")
	if from == "" {
		from = viper.GetString("smtp.username")
	}

	return &SMTPMailer{
		host:     viper.GetString("smtp.host"),
		port:     viper.GetString("smtp.port"),
		username: viper.GetString("smtp.username"),
		password: viper.GetString("smtp.password"),
		from:     from,
	}
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	if m.username == "" || m.password == "" {
		return errors.New("mail credentials not configured")
	}

	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg))
}
