package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

type Email struct {
	MessageID string
	To        string
	ToName    string
	Subject   string
	Body      string
}

type EmailSender interface {
	SendEmail(ctx context.Context, email *Email) error
}

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	TLSPolicy string
	Timeout   time.Duration
}

type SMTPSender struct {
	cfg    SMTPConfig
	client *mail.Client
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(parseTLSPolicy(cfg.TLSPolicy)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if strings.TrimSpace(cfg.Username) != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPSender{cfg: cfg, client: client}, nil
}

func (s *SMTPSender) SendEmail(ctx context.Context, email *Email) error {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if strings.TrimSpace(email.ToName) != "" {
		if err := msg.AddToFormat(email.ToName, email.To); err != nil {
			return fmt.Errorf("invalid recipient address: %w", err)
		}
	} else if err := msg.To(email.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Body)
	msg.SetDate()
	if email.MessageID != "" {
		msg.SetMessageIDWithValue(email.MessageID)
	} else {
		msg.SetMessageID()
	}

	return s.client.DialAndSendWithContext(ctx, msg)
}

func parseTLSPolicy(raw string) mail.TLSPolicy {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mandatory":
		return mail.TLSMandatory
	case "none", "notls":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

// LogSender writes messages to the log instead of delivering them. It is used
// when no SMTP host is configured.
type LogSender struct {
	logger logrus.FieldLogger
}

func NewLogSender(logger logrus.FieldLogger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendEmail(_ context.Context, email *Email) error {
	s.logger.WithFields(logrus.Fields{
		"message_id": email.MessageID,
		"to":         email.To,
		"subject":    email.Subject,
	}).Info("Email delivery skipped, no SMTP host configured")
	return nil
}
