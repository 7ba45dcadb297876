package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/mail.v2"

	"github.com/khoahotran/linkgraph/internal/application/service"
	"github.com/khoahotran/linkgraph/internal/config"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

// Sender is the part of *mail.Dialer the notifier needs.
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

type SMTPNotifier struct {
	sender Sender
	from   string
}

// NewSMTPNotifier returns nil when smtp.host is empty, which disables
// notifications.
func NewSMTPNotifier(cfg config.Config, log logger.Logger) service.Notifier {
	if cfg.SMTP.Host == "" {
		log.Info("SMTP not configured, import notifications disabled")
		return nil
	}
	dialer := mail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
	log.Info("SMTP notifier ready", zap.String("host", cfg.SMTP.Host))
	return NewNotifierWithSender(dialer, cfg.SMTP.From)
}

func NewNotifierWithSender(s Sender, from string) *SMTPNotifier {
	return &SMTPNotifier{sender: s, from: from}
}

func (n *SMTPNotifier) Notify(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
