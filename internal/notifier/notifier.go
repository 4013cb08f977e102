package notifier

import (
	"errors"
	"fmt"

	"github.com/ibeckermayer/replyscout/internal/config"
	"github.com/ibeckermayer/replyscout/internal/notifier/providers"
	"github.com/ibeckermayer/replyscout/internal/report"
)

// ErrDisabled is returned when email is not configured.
var ErrDisabled = errors.New("email notifications are not configured")

// Notifier handles sending report notifications
type Notifier struct {
	sender Sender
	to     string
}

// Sender defines the interface for email sending
type Sender interface {
	Send(to, subject, htmlBody, plainBody string) error
}

// New creates a new notifier that mails reports to addr.
func New(sender Sender, to string) *Notifier {
	return &Notifier{sender: sender, to: to}
}

// NewFromConfig creates an SMTP notifier based on configuration
func NewFromConfig(cfg config.EmailConfig) (*Notifier, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	from := cfg.FromAddr
	if from == "" {
		from = cfg.SMTPUser
	}
	sender := providers.NewSMTPSender(
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUser,
		cfg.SMTPPass,
		from,
	)
	return New(sender, cfg.ToAddr), nil
}

// SendReport sends a report email
func (n *Notifier) SendReport(r *report.Report) error {
	if err := n.sender.Send(n.to, r.Subject, r.HTMLBody, r.PlainBody); err != nil {
		return fmt.Errorf("failed to send report to %s: %w", n.to, err)
	}
	return nil
}
