package provider

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotConfigured       = errors.New("payment gateway is not configured")
	ErrTransactionNotFound = errors.New("gateway transaction not found")
	ErrInvalidLinkInput    = errors.New("invalid payment link input")
)

// TransactionStatus is the gateway outcome reduced to what reconciliation acts on.
type TransactionStatus string

const (
	TransactionApproved TransactionStatus = "approved"
	TransactionPending  TransactionStatus = "pending"
	TransactionRejected TransactionStatus = "rejected"
	TransactionUnknown  TransactionStatus = "unknown"
)

type Transaction struct {
	ID                string
	Status            TransactionStatus
	RawStatus         string
	StatusDetail      string
	ExternalReference string
	Amount            decimal.Decimal
	Currency          string
	PaymentMethodID   string
	ApprovedAt        *time.Time
}

type PaymentLinkInput struct {
	ExternalReference string
	Title             string
	Amount            decimal.Decimal
	Currency          string
	PayerEmail        string
	NotificationURL   string
	SuccessURL        string
	FailureURL        string
	ExpiresAt         *time.Time
}

type PaymentLink struct {
	ID  string
	URL string
}

// SignedNotification carries the parts of an inbound notification the gateway
// signs.
type SignedNotification struct {
	DataID    string
	RequestID string
	Signature string
}

type Provider interface {
	Code() string
	ResolveTransaction(ctx context.Context, transactionID string) (*Transaction, error)
	CreatePaymentLink(ctx context.Context, input *PaymentLinkInput) (*PaymentLink, error)
	// VerifyNotificationSignature reports false when verification is enabled
	// and the signature does not match. With no secret configured it accepts.
	VerifyNotificationSignature(notification *SignedNotification) bool
}
