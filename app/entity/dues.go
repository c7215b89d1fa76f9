package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dues is one billing-period obligation owed by a member. DueDate and
// PaidDate are calendar dates stored as midnight UTC.
type Dues struct {
	ID uint64

	MemberID uint64
	Period   string

	Amount  decimal.Decimal
	DueDate time.Time

	PaidDate      *time.Time
	Status        DuesStatus
	PaymentMethod PaymentMethod
	ReceiptNumber *string

	ReminderSentAt *time.Time
	ReminderCount  int32

	GatewayPaymentLinkID *string
	PaymentLinkURL       *string
	GatewayTransactionID *string

	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d *Dues) Clone() *Dues {
	if d == nil {
		return nil
	}
	c := *d
	c.PaidDate = cloneTime(d.PaidDate)
	c.ReceiptNumber = cloneString(d.ReceiptNumber)
	c.ReminderSentAt = cloneTime(d.ReminderSentAt)
	c.GatewayPaymentLinkID = cloneString(d.GatewayPaymentLinkID)
	c.PaymentLinkURL = cloneString(d.PaymentLinkURL)
	c.GatewayTransactionID = cloneString(d.GatewayTransactionID)
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
