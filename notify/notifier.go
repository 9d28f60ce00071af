package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"

	"gopkg.in/gomail.v2"

	"halo-chat/errors"
)

//go:generate mockgen -source=notifier.go -destination=../mocks/notifier_mock.go -package=mocks

// Notifier delivers out-of-band messages to users. Today that means
// email verification codes.
type Notifier interface {
	SendVerificationCode(email, username, code string) error
}

var verificationTemplate = template.Must(template.New("verification").Parse(`
<p>Hi {{.Username}},</p>
<p>Your verification code is <strong>{{.Code}}</strong>.</p>
<p>It expires in 15 minutes. If you did not request it, ignore this email.</p>
`))

// LogNotifier writes codes to the log instead of sending mail. Used in
// development when no SMTP host is configured.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) SendVerificationCode(email, username, code string) error {
	n.Log.Info("verification code (smtp disabled)", "email", email, "username", username, "code", code)
	return nil
}

type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
	log    *slog.Logger
}

func NewSMTPNotifier(host string, port int, username, password, from string, log *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		log:    log,
	}
}

func (n *SMTPNotifier) SendVerificationCode(email, username, code string) error {
	var body bytes.Buffer
	err := verificationTemplate.Execute(&body, map[string]string{
		"Username": username,
		"Code":     code,
	})
	if err != nil {
		return fmt.Errorf("failed to render verification email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Verify your email address")
	m.SetBody("text/html", body.String())

	if err := n.dialer.DialAndSend(m); err != nil {
		n.log.Error("verification email delivery failed", "email", email, "error", err)
		return fmt.Errorf("%w: %v", errors.ErrDeliveryFailed, err)
	}
	n.log.Info("verification email sent", "email", email)
	return nil
}
