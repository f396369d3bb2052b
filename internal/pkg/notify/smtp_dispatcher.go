package notify

import (
	"fmt"
	"log"
	"net/smtp"
	"sort"

	"github.com/streamvault/streamvault/internal/pkg/env"
)

// SMTPDispatcher sends notifications as plain emails via SMTP.
type SMTPDispatcher struct{}

func NewSMTPDispatcher() *SMTPDispatcher {
	return &SMTPDispatcher{}
}

func (d *SMTPDispatcher) Send(recipient string, kind TemplateKind, data map[string]interface{}) error {
	return SendMail(recipient, subjectFor(kind), renderBody(kind, data))
}

// renderBody produces a minimal key/value body; the real HTML templates live
// in the notification service outside the core.
func renderBody(kind TemplateKind, data map[string]interface{}) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	body := fmt.Sprintf("<p>%s</p><ul>", subjectFor(kind))
	for _, k := range keys {
		body += fmt.Sprintf("<li>%s: %v</li>", k, data[k])
	}
	return body + "</ul>"
}

// SendMail sends an email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}
