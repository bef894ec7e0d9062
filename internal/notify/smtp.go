package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
)

// ErrMissingMailConfig is returned when any of the sender, password or recipient is empty.
var ErrMissingMailConfig = errors.New("missing email configuration")

// SMTPConfig holds the mail transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
	To       string
}

func (c SMTPConfig) complete() bool {
	return c.From != "" && c.Password != "" && c.To != ""
}

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPNotifier sends plain-text mail over STARTTLS with PLAIN auth, logging in as From.
type SMTPNotifier struct {
	cfg  SMTPConfig
	dial func(SMTPConfig) (mailSender, error)
}

// NewSMTPNotifier creates a notifier. Incomplete settings are reported on Send, not here,
// so a server without mail credentials still starts.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.Host == "" {
		cfg.Host = "smtp.gmail.com"
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPNotifier{cfg: cfg, dial: newMailClient}
}

func newMailClient(cfg SMTPConfig) (mailSender, error) {
	return mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.From),
		mail.WithPassword(cfg.Password),
	)
}

// Send delivers one message.
func (n *SMTPNotifier) Send(ctx context.Context, subject, body string) error {
	if !n.cfg.complete() {
		return ErrMissingMailConfig
	}

	msg, err := n.message(subject, body)
	if err != nil {
		return err
	}
	client, err := n.dial(n.cfg)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail via %s:%d: %w", n.cfg.Host, n.cfg.Port, err)
	}
	return nil
}

func (n *SMTPNotifier) message(subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(n.cfg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}
