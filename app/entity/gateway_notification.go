package entity

import "time"

const (
	NotificationOutcomeProcessed = "processed"
	NotificationOutcomeIgnored   = "ignored"
	NotificationOutcomeRejected  = "rejected"
	NotificationOutcomeFailed    = "failed"
)

type GatewayNotification struct {
	ID uint64

	DuesID *uint64

	Provider      string
	EventType     string
	TransactionID string
	RequestID     string
	PayloadJSON   string
	Outcome       string
	Error         *string

	CreatedAt time.Time
}
