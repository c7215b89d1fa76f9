package dues

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
)

const (
	DefaultMaxReminders int32 = 5
	DefaultClubCode           = "CLUB"
)

// Machine applies dues status transitions. It performs no I/O; callers persist
// the mutated record.
type Machine struct {
	clubCode     string
	maxReminders int32
	intn         func(n int) int
}

type Option func(*Machine)

// WithRandom replaces the source of the receipt number suffix.
func WithRandom(intn func(n int) int) Option {
	return func(m *Machine) {
		if intn != nil {
			m.intn = intn
		}
	}
}

func NewMachine(clubCode string, maxReminders int32, opts ...Option) *Machine {
	clubCode = strings.ToUpper(strings.TrimSpace(clubCode))
	if clubCode == "" {
		clubCode = DefaultClubCode
	}
	if maxReminders <= 0 {
		maxReminders = DefaultMaxReminders
	}
	m := &Machine{
		clubCode:     clubCode,
		maxReminders: maxReminders,
		intn:         rand.IntN,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) MaxReminders() int32 {
	return m.maxReminders
}

// IsOverdue is true when the calendar date of asOf is after the due date and
// the record is not paid. A record due today is not overdue.
func IsOverdue(record *entity.Dues, asOf time.Time) bool {
	if record == nil || record.Status == entity.DuesStatusPaid {
		return false
	}
	return CalendarDate(asOf).After(CalendarDate(record.DueDate))
}

// DaysOverdue is only meaningful when IsOverdue holds.
func DaysOverdue(record *entity.Dues, asOf time.Time) int {
	if record == nil {
		return 0
	}
	return ceilDays(wallClockUTC(asOf).Sub(CalendarDate(record.DueDate)))
}

func MarkOverdue(record *entity.Dues) error {
	switch record.Status {
	case entity.DuesStatusPending:
		record.Status = entity.DuesStatusOverdue
		return nil
	case entity.DuesStatusOverdue:
		return nil
	default:
		return &InvalidTransitionError{From: record.Status, To: entity.DuesStatusOverdue}
	}
}

// MarkPaid settles a Pending or Overdue record. An empty receiptNumber gets a
// generated one; an already assigned receipt number is never replaced.
func (m *Machine) MarkPaid(record *entity.Dues, method entity.PaymentMethod, paidAt time.Time, receiptNumber string) error {
	switch record.Status {
	case entity.DuesStatusPending, entity.DuesStatusOverdue:
	default:
		return &InvalidTransitionError{From: record.Status, To: entity.DuesStatusPaid}
	}
	if !method.Valid() {
		return ErrPaymentMethodRequired
	}

	if record.ReceiptNumber == nil {
		receiptNumber = strings.TrimSpace(receiptNumber)
		if receiptNumber == "" {
			receiptNumber = m.NewReceiptNumber(record.MemberID, paidAt)
		}
		record.ReceiptNumber = &receiptNumber
	}

	paidDate := CalendarDate(paidAt)
	record.Status = entity.DuesStatusPaid
	record.PaidDate = &paidDate
	record.PaymentMethod = method
	return nil
}

// MarkReminderSent never changes the status.
func (m *Machine) MarkReminderSent(record *entity.Dues, at time.Time) error {
	if record.ReminderCount >= m.maxReminders {
		return ErrReminderLimitExceeded
	}
	record.ReminderCount++
	sentAt := at.UTC()
	record.ReminderSentAt = &sentAt
	return nil
}

// MarkCancelled is administrative. Cancelling a paid record clears the paid
// date and payment method together; the receipt number stays.
func MarkCancelled(record *entity.Dues) error {
	switch record.Status {
	case entity.DuesStatusCancelled:
		return nil
	case entity.DuesStatusPending, entity.DuesStatusOverdue:
		record.Status = entity.DuesStatusCancelled
		return nil
	case entity.DuesStatusPaid:
		record.Status = entity.DuesStatusCancelled
		record.PaidDate = nil
		record.PaymentMethod = entity.PaymentMethodUnspecified
		return nil
	default:
		return &InvalidTransitionError{From: record.Status, To: entity.DuesStatusCancelled}
	}
}

// CheckPaidInvariant verifies status = Paid iff paid date and method are set.
func CheckPaidInvariant(record *entity.Dues) error {
	paid := record.Status == entity.DuesStatusPaid
	settled := record.PaidDate != nil && record.PaymentMethod.Valid()
	if paid != settled {
		return fmt.Errorf("%w: status=%s", ErrPaidInvariant, record.Status)
	}
	return nil
}
