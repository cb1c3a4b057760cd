package notifier

import (
	"bytes"
	"embed"
	"strings"
	"text/template"
	"time"

	mail "github.com/go-mail/mail/v2"
)

//go:embed templates
var templateFS embed.FS

// Notifier delivers a terminal-state notification to a recipient reference.
// Delivery and retry are entirely this side's concern; the state machines
// never wait on it.
type Notifier interface {
	Notify(eventKind, recipientRef string, data any) error
}

type SMTPNotifier struct {
	dialer *mail.Dialer
	sender string
}

func NewSMTPNotifier(host string, port int, username, password, sender string) *SMTPNotifier {
	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = 5 * time.Second

	return &SMTPNotifier{
		dialer: dialer,
		sender: sender,
	}
}

func (n *SMTPNotifier) Notify(eventKind, recipientRef string, data any) error {
	// Non-email recipient refs (seller/rider IDs) are routed by other
	// channels; the SMTP sink only handles addresses.
	if !strings.Contains(recipientRef, "@") {
		return nil
	}

	templateFile, ok := templates[eventKind]
	if !ok {
		return nil
	}

	tmpl, err := template.New("email").ParseFS(templateFS, "templates/"+templateFile)
	if err != nil {
		return err
	}

	subject := new(bytes.Buffer)
	err = tmpl.ExecuteTemplate(subject, "subject", data)
	if err != nil {
		return err
	}

	plainBody := new(bytes.Buffer)
	err = tmpl.ExecuteTemplate(plainBody, "plainBody", data)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("To", recipientRef)
	msg.SetHeader("From", n.sender)
	msg.SetHeader("Subject", subject.String())
	msg.SetBody("text/plain", plainBody.String())

	return n.dialer.DialAndSend(msg)
}

var templates = map[string]string{
	"payment.succeeded": "payment_succeeded.tmpl",
	"payment.failed":    "payment_failed.tmpl",
	"escrow.released":   "escrow_released.tmpl",
	"refund.processed":  "refund_processed.tmpl",
	"delivery.updated":  "delivery_updated.tmpl",
}
