package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vibast-solutions/ms-go-club-dues/app/dues"
	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
	"github.com/vibast-solutions/ms-go-club-dues/app/notification"
	"github.com/vibast-solutions/ms-go-club-dues/app/provider"
)

const paymentEventType = "payment"

// Column widths of the gateway_notifications table.
const (
	maxNotificationProvider  = 32
	maxNotificationEventType = 64
	maxNotificationID        = 128
	maxNotificationError     = 1024
)

type ReconcileRequest interface {
	GetProvider() string
	GetType() string
	GetDataId() string
	GetRequestId() string
	GetSignature() string
	GetPayload() string
}

type ReconcileResult struct {
	DuesID           uint64
	TransactionID    string
	GatewayStatus    provider.TransactionStatus
	Status           entity.DuesStatus
	ReceiptNumber    string
	AlreadyPaid      bool
	ConfirmationSent bool
}

// ReconcileNotification applies one gateway notification to the dues record
// its transaction references. Approved transactions settle the record once;
// a redelivery for a record that is already paid returns the transition
// error and sends no second confirmation.
func (s *DuesService) ReconcileNotification(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "dues.reconcile_notification")
	defer span.End()

	record := &entity.GatewayNotification{
		Provider:      strings.ToLower(strings.TrimSpace(req.GetProvider())),
		EventType:     strings.TrimSpace(req.GetType()),
		TransactionID: strings.TrimSpace(req.GetDataId()),
		RequestID:     strings.TrimSpace(req.GetRequestId()),
		PayloadJSON:   req.GetPayload(),
	}
	span.SetAttributes(
		attribute.String("gateway.event_type", record.EventType),
		attribute.String("gateway.transaction_id", record.TransactionID),
	)

	result, err := s.reconcile(ctx, req, record)
	s.storeNotification(ctx, record, err)
	if err != nil && !errors.Is(err, ErrEventIgnored) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (s *DuesService) reconcile(ctx context.Context, req ReconcileRequest, record *entity.GatewayNotification) (*ReconcileResult, error) {
	if record.EventType == "" || record.TransactionID == "" {
		return nil, ErrInvalidNotification
	}
	if record.Provider == "" {
		record.Provider = provider.MercadoPagoCode
	}

	gateway, err := s.providerReg.Get(record.Provider)
	if err != nil {
		return nil, ErrProviderUnsupported
	}

	if !gateway.VerifyNotificationSignature(&provider.SignedNotification{
		DataID:    record.TransactionID,
		RequestID: record.RequestID,
		Signature: strings.TrimSpace(req.GetSignature()),
	}) {
		return nil, ErrSignatureRejected
	}

	if record.EventType != paymentEventType {
		return nil, ErrEventIgnored
	}

	tx, err := gateway.ResolveTransaction(ctx, record.TransactionID)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{TransactionID: tx.ID, GatewayStatus: tx.Status}

	duesID, err := ParseExternalReference(tx.ExternalReference)
	if err != nil {
		return result, err
	}
	result.DuesID = duesID
	record.DuesID = &duesID

	current, err := s.duesRepo.FindByID(ctx, duesID)
	if err != nil {
		return result, err
	}
	if current == nil {
		return result, ErrDuesNotFound
	}
	result.Status = current.Status

	l := s.logger.WithFields(logrus.Fields{
		"dues_id":        duesID,
		"transaction_id": tx.ID,
		"gateway_status": tx.RawStatus,
	})

	if tx.Status != provider.TransactionApproved {
		l.Info("Gateway notification left dues unchanged")
		return result, nil
	}

	paidAt := s.now().In(s.location())
	oldStatus := current.Status
	updated, err := s.applyTransition(ctx, current, func(d *entity.Dues) error {
		if err := s.machine.MarkPaid(d, entity.PaymentMethodGatewayPayment, paidAt, ""); err != nil {
			return err
		}
		transactionID := tx.ID
		d.GatewayTransactionID = &transactionID
		return nil
	})
	if err != nil {
		if dues.IsAlreadyPaid(err) {
			result.AlreadyPaid = true
			result.Status = entity.DuesStatusPaid
		}
		return result, err
	}

	result.Status = updated.Status
	result.ReceiptNumber = derefString(updated.ReceiptNumber)

	s.recordEvent(ctx, updated.ID, entity.DuesEventPaid, statusPtr(oldStatus), updated.Status, map[string]string{
		"method":         updated.PaymentMethod.String(),
		"receipt_number": result.ReceiptNumber,
		"transaction_id": tx.ID,
		"source":         "gateway",
	})
	result.ConfirmationSent = s.sendConfirmation(ctx, updated, notification.ConfirmationDetails{
		Method:        updated.PaymentMethod,
		ReceiptNumber: result.ReceiptNumber,
		PaidAt:        paidAt,
		TransactionID: tx.ID,
	})

	l.Info("Dues settled from gateway notification")
	return result, nil
}

func (s *DuesService) storeNotification(ctx context.Context, record *entity.GatewayNotification, reconcileErr error) {
	switch {
	case reconcileErr == nil:
		record.Outcome = entity.NotificationOutcomeProcessed
	case errors.Is(reconcileErr, ErrInvalidNotification), errors.Is(reconcileErr, ErrSignatureRejected), errors.Is(reconcileErr, ErrProviderUnsupported):
		record.Outcome = entity.NotificationOutcomeRejected
	case errors.Is(reconcileErr, ErrEventIgnored), errors.Is(reconcileErr, ErrInvalidReference), errors.Is(reconcileErr, ErrDuesNotFound), isInvalidTransition(reconcileErr):
		record.Outcome = entity.NotificationOutcomeIgnored
	default:
		record.Outcome = entity.NotificationOutcomeFailed
	}
	if reconcileErr != nil {
		msg := truncate(reconcileErr.Error(), maxNotificationError)
		record.Error = &msg
	}
	if record.Provider == "" {
		record.Provider = provider.MercadoPagoCode
	}
	record.Provider = truncate(record.Provider, maxNotificationProvider)
	record.EventType = truncate(record.EventType, maxNotificationEventType)
	record.TransactionID = truncate(record.TransactionID, maxNotificationID)
	record.RequestID = truncate(record.RequestID, maxNotificationID)
	record.CreatedAt = s.now().UTC()

	if err := s.notificationRepo.Create(ctx, record); err != nil {
		s.logger.WithError(err).WithField("transaction_id", record.TransactionID).Warn("Failed to store gateway notification")
	}
}

func (s *DuesService) ListGatewayNotifications(ctx context.Context, limit int32) ([]*entity.GatewayNotification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.notificationRepo.ListRecent(ctx, limit)
}

// truncate cuts v to at most max bytes without splitting a rune.
func truncate(v string, max int) string {
	if len(v) <= max {
		return v
	}
	for max > 0 && !utf8.RuneStart(v[max]) {
		max--
	}
	return v[:max]
}
