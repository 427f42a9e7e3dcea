package notifier

import (
	"errors"
	"fmt"

	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/notifier/providers"
	"github.com/ibeckermayer/xpilot/internal/report"
)

// ErrDisabled is returned by NewFromConfig when email delivery is switched off.
var ErrDisabled = errors.New("email notifications are disabled")

// Notifier handles sending run reports
type Notifier struct {
	sender Sender
	to     string
}

// Sender defines the interface for email sending
type Sender interface {
	Send(to, subject, htmlBody, plainBody string) error
}

// New creates a new notifier delivering to toAddr
func New(sender Sender, toAddr string) *Notifier {
	return &Notifier{sender: sender, to: toAddr}
}

// NewFromConfig creates a notifier based on configuration
func NewFromConfig(cfg config.EmailConfig) (*Notifier, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if cfg.SMTPHost == "" || cfg.ToAddr == "" || cfg.FromAddr == "" {
		return nil, fmt.Errorf("email.smtp_host, email.from_address and email.to_address are required")
	}

	sender := providers.NewSMTPSender(
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUser,
		cfg.SMTPPass,
		cfg.FromAddr,
	)
	return New(sender, cfg.ToAddr), nil
}

// SendReport emails a report
func (n *Notifier) SendReport(r *report.Report) error {
	return n.sender.Send(n.to, r.Subject, r.HTMLBody, r.PlainBody)
}
