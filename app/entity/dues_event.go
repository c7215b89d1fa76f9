package entity

import "time"

const (
	DuesEventCreated           = "dues_created"
	DuesEventOverdue           = "dues_overdue"
	DuesEventReminderSent      = "reminder_sent"
	DuesEventPaid              = "dues_paid"
	DuesEventCancelled         = "dues_cancelled"
	DuesEventPaymentLinkCreate = "payment_link_created"
)

type DuesEvent struct {
	ID uint64

	DuesID uint64

	EventType string

	OldStatus *DuesStatus
	NewStatus DuesStatus

	PayloadJSON *string

	CreatedAt time.Time
}
