package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-club-dues/app/dues"
	"github.com/vibast-solutions/ms-go-club-dues/app/factory"
	"github.com/vibast-solutions/ms-go-club-dues/app/provider"
	"github.com/vibast-solutions/ms-go-club-dues/app/service"
	"github.com/vibast-solutions/ms-go-club-dues/app/types"
)

const (
	ackPaymentApplied      = "payment_applied"
	ackPaymentNotApproved  = "payment_not_approved"
	ackAlreadyPaid         = "already_paid"
	ackDuesNotPayable      = "dues_not_payable"
	ackEventIgnored        = "event_ignored"
	ackInvalidNotification = "invalid_notification"
	ackSignatureRejected   = "signature_rejected"
	ackProviderUnsupported = "provider_not_supported"
	ackUnknownReference    = "unknown_reference"
	ackDuesNotFound        = "dues_not_found"
	ackTransactionNotFound = "transaction_not_found"
	ackProcessingError     = "processing_error"
)

type notificationReconciler interface {
	ReconcileNotification(ctx context.Context, req service.ReconcileRequest) (*service.ReconcileResult, error)
}

// WebhookController receives payment gateway notifications. Every delivery
// is acknowledged with 200 so the gateway stops retrying; reconciliation is
// idempotent, and the outcome is reported in the message and the logs only.
type WebhookController struct {
	reconciler notificationReconciler
	logger     logrus.FieldLogger
}

func NewWebhookController(reconciler notificationReconciler) *WebhookController {
	return &WebhookController{
		reconciler: reconciler,
		logger:     factory.NewModuleLogger("webhook-controller"),
	}
}

func (c *WebhookController) HandleGatewayNotification(ctx echo.Context) error {
	l := factory.LoggerWithContext(c.logger, ctx)

	req, err := types.NewGatewayNotificationRequestFromContext(ctx)
	if err != nil {
		l.WithError(err).Warn("Unreadable gateway notification")
		return c.ack(ctx, ackInvalidNotification)
	}

	l = l.WithFields(logrus.Fields{
		"event_type": req.GetType(),
		"data_id":    req.GetDataId(),
	})

	result, err := c.reconcile(ctx.Request().Context(), req)
	message := classify(result, err)

	switch message {
	case ackPaymentApplied:
		l.WithField("dues_id", result.DuesID).WithField("receipt_number", result.ReceiptNumber).Info("Gateway payment applied")
	case ackPaymentNotApproved:
		l.WithField("dues_id", result.DuesID).WithField("gateway_status", result.GatewayStatus).Info("Gateway payment not approved")
	case ackEventIgnored, ackAlreadyPaid:
		l.WithError(err).Debug("Gateway notification acknowledged without changes")
	case ackProcessingError, ackTransactionNotFound:
		l.WithError(err).Error("Gateway notification processing failed")
	default:
		l.WithError(err).Warn("Gateway notification rejected")
	}

	return c.ack(ctx, message)
}

// reconcile turns a panic inside reconciliation into an error so that the
// delivery is still acknowledged.
func (c *WebhookController) reconcile(ctx context.Context, req *types.GatewayNotificationRequest) (result *service.ReconcileResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic during reconciliation: %v", r)
		}
	}()
	return c.reconciler.ReconcileNotification(ctx, req)
}

func classify(result *service.ReconcileResult, err error) string {
	switch {
	case err == nil && result != nil && result.GatewayStatus == provider.TransactionApproved:
		return ackPaymentApplied
	case err == nil && result != nil:
		return ackPaymentNotApproved
	case result != nil && result.AlreadyPaid:
		return ackAlreadyPaid
	case errors.Is(err, dues.ErrInvalidTransition):
		return ackDuesNotPayable
	case errors.Is(err, service.ErrEventIgnored):
		return ackEventIgnored
	case errors.Is(err, service.ErrInvalidNotification):
		return ackInvalidNotification
	case errors.Is(err, service.ErrSignatureRejected):
		return ackSignatureRejected
	case errors.Is(err, service.ErrProviderUnsupported):
		return ackProviderUnsupported
	case errors.Is(err, service.ErrInvalidReference):
		return ackUnknownReference
	case errors.Is(err, service.ErrDuesNotFound):
		return ackDuesNotFound
	case errors.Is(err, provider.ErrTransactionNotFound):
		return ackTransactionNotFound
	default:
		return ackProcessingError
	}
}

func (c *WebhookController) ack(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusOK, &types.WebhookAckResponse{Success: true, Message: message})
}
