package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
)

var ErrNoRecipient = errors.New("member has no email address")

const dateLayout = "02/01/2006"

type Result struct {
	Success   bool
	MessageID string
	SMSSent   bool
}

type ConfirmationDetails struct {
	Method        entity.PaymentMethod
	ReceiptNumber string
	PaidAt        time.Time
	TransactionID string
}

type Config struct {
	ClubName  string
	Currency  string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

// Dispatcher sends member notifications. Email is required for a call to
// succeed; SMS goes out alongside when a sender is configured and the member
// has a phone, and its failures are only logged.
type Dispatcher struct {
	cfg     Config
	email   EmailSender
	sms     SMSSender
	limiter *rate.Limiter
	logger  logrus.FieldLogger
}

func NewDispatcher(cfg Config, email EmailSender, sms SMSSender, logger logrus.FieldLogger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if strings.TrimSpace(cfg.ClubName) == "" {
		cfg.ClubName = "Club"
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		cfg.Currency = "ARS"
	}

	return &Dispatcher{
		cfg:     cfg,
		email:   email,
		sms:     sms,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logger,
	}
}

func (d *Dispatcher) SendPaymentReminder(ctx context.Context, member *entity.Member, dues *entity.Dues) (*Result, error) {
	subject := fmt.Sprintf("%s: dues for %s are pending", d.cfg.ClubName, dues.Period)

	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\n\n", member.FullName())
	fmt.Fprintf(&body, "Your %s dues for %s of %s %s were due on %s and are still unpaid.\n",
		member.Activity, dues.Period, d.cfg.Currency, dues.Amount.StringFixed(2), dues.DueDate.Format(dateLayout))
	if dues.PaymentLinkURL != nil && *dues.PaymentLinkURL != "" {
		fmt.Fprintf(&body, "\nYou can pay online here: %s\n", *dues.PaymentLinkURL)
	}
	fmt.Fprintf(&body, "\nIf you already paid, please ignore this message.\n\n%s\n", d.cfg.ClubName)

	sms := fmt.Sprintf("%s: your %s dues (%s %s) are pending since %s.",
		d.cfg.ClubName, dues.Period, d.cfg.Currency, dues.Amount.StringFixed(2), dues.DueDate.Format(dateLayout))

	return d.send(ctx, "payment_reminder", member, dues, subject, body.String(), sms)
}

func (d *Dispatcher) SendPaymentConfirmation(ctx context.Context, member *entity.Member, dues *entity.Dues, details ConfirmationDetails) (*Result, error) {
	subject := fmt.Sprintf("%s: payment received for %s", d.cfg.ClubName, dues.Period)

	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\n\n", member.FullName())
	fmt.Fprintf(&body, "We received your payment of %s %s for %s.\n", d.cfg.Currency, dues.Amount.StringFixed(2), dues.Period)
	fmt.Fprintf(&body, "\nReceipt: %s\nPaid on: %s\nMethod: %s\n",
		details.ReceiptNumber, details.PaidAt.Format(dateLayout), details.Method)
	if details.TransactionID != "" {
		fmt.Fprintf(&body, "Transaction: %s\n", details.TransactionID)
	}
	fmt.Fprintf(&body, "\nThank you.\n\n%s\n", d.cfg.ClubName)

	sms := fmt.Sprintf("%s: payment for %s received. Receipt %s.", d.cfg.ClubName, dues.Period, details.ReceiptNumber)

	return d.send(ctx, "payment_confirmation", member, dues, subject, body.String(), sms)
}

func (d *Dispatcher) send(ctx context.Context, kind string, member *entity.Member, dues *entity.Dues, subject, body, smsBody string) (*Result, error) {
	if member == nil || strings.TrimSpace(member.Email) == "" {
		return &Result{}, ErrNoRecipient
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	if err := d.limiter.Wait(ctx); err != nil {
		return &Result{}, fmt.Errorf("notification throttled: %w", err)
	}

	messageID := uuid.NewString()
	l := d.logger.WithFields(logrus.Fields{
		"notification": kind,
		"message_id":   messageID,
		"member_id":    member.ID,
		"dues_id":      dues.ID,
	})

	err := d.email.SendEmail(ctx, &Email{
		MessageID: messageID,
		To:        member.Email,
		ToName:    member.FullName(),
		Subject:   subject,
		Body:      body,
	})
	if err != nil {
		l.WithError(err).Warn("Email delivery failed")
		return &Result{MessageID: messageID}, err
	}

	result := &Result{Success: true, MessageID: messageID}
	if d.sms != nil && member.Phone != nil && strings.TrimSpace(*member.Phone) != "" {
		if _, err := d.sms.SendSMS(ctx, strings.TrimSpace(*member.Phone), smsBody); err != nil {
			l.WithError(err).Warn("SMS delivery failed")
		} else {
			result.SMSSent = true
		}
	}

	l.Debug("Notification sent")
	return result, nil
}
