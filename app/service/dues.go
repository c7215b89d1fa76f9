package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-club-dues/app/dues"
	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
	"github.com/vibast-solutions/ms-go-club-dues/app/notification"
	"github.com/vibast-solutions/ms-go-club-dues/app/provider"
	"github.com/vibast-solutions/ms-go-club-dues/app/repository"
)

const externalReferencePrefix = "dues:"

type listDuesRequest interface {
	GetMemberId() uint64
	GetPeriod() string
	GetHasStatus() bool
	GetStatus() entity.DuesStatus
	GetLimit() int32
	GetOffset() int32
}

type recordPaymentRequest interface {
	GetId() uint64
	GetMethod() entity.PaymentMethod
	GetPaidAt() time.Time
	GetReceiptNumber() string
}

// DuesStatusView is a record together with the facts derived from it at AsOf.
type DuesStatusView struct {
	Dues        *entity.Dues
	AsOf        time.Time
	Overdue     bool
	DaysOverdue int
}

func ExternalReference(duesID uint64) string {
	return externalReferencePrefix + strconv.FormatUint(duesID, 10)
}

// ParseExternalReference extracts the dues id from a "dues:{id}" reference.
func ParseExternalReference(reference string) (uint64, error) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(reference), externalReferencePrefix)
	if !ok || raw == "" {
		return 0, ErrInvalidReference
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidReference
	}
	return id, nil
}

func (s *DuesService) GetDues(ctx context.Context, id uint64) (*entity.Dues, error) {
	record, err := s.duesRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrDuesNotFound
	}
	return record, nil
}

func (s *DuesService) ListDues(ctx context.Context, req listDuesRequest) ([]*entity.Dues, error) {
	limit := req.GetLimit()
	if limit <= 0 {
		limit = defaultListLimit
	}

	return s.duesRepo.List(ctx, repository.DuesFilter{
		MemberID:  req.GetMemberId(),
		Period:    strings.TrimSpace(req.GetPeriod()),
		HasStatus: req.GetHasStatus(),
		Status:    req.GetStatus(),
		Limit:     limit,
		Offset:    req.GetOffset(),
	})
}

func (s *DuesService) GetDuesEvents(ctx context.Context, id uint64) ([]*entity.DuesEvent, error) {
	if _, err := s.GetDues(ctx, id); err != nil {
		return nil, err
	}
	return s.eventRepo.ListByDues(ctx, id)
}

func (s *DuesService) GetDuesStatus(ctx context.Context, id uint64) (*DuesStatusView, error) {
	record, err := s.GetDues(ctx, id)
	if err != nil {
		return nil, err
	}

	asOf := s.now().In(s.location())
	view := &DuesStatusView{Dues: record, AsOf: asOf}
	if record.Status.Outstanding() && dues.IsOverdue(record, asOf) {
		view.Overdue = true
		view.DaysOverdue = dues.DaysOverdue(record, asOf)
	}
	return view, nil
}

// RecordPayment settles a record paid outside the gateway. A zero paid-at
// means now; an empty receipt number gets a generated one.
func (s *DuesService) RecordPayment(ctx context.Context, req recordPaymentRequest) (*entity.Dues, error) {
	if !req.GetMethod().Valid() {
		return nil, ErrInvalidRequest
	}

	record, err := s.GetDues(ctx, req.GetId())
	if err != nil {
		return nil, err
	}

	paidAt := req.GetPaidAt()
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	paidAt = paidAt.In(s.location())

	oldStatus := record.Status
	updated, err := s.applyTransition(ctx, record, func(d *entity.Dues) error {
		return s.machine.MarkPaid(d, req.GetMethod(), paidAt, req.GetReceiptNumber())
	})
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, updated.ID, entity.DuesEventPaid, statusPtr(oldStatus), updated.Status, map[string]string{
		"method":         updated.PaymentMethod.String(),
		"receipt_number": derefString(updated.ReceiptNumber),
		"source":         "manual",
	})
	s.sendConfirmation(ctx, updated, notification.ConfirmationDetails{
		Method:        updated.PaymentMethod,
		ReceiptNumber: derefString(updated.ReceiptNumber),
		PaidAt:        paidAt,
	})

	return updated, nil
}

func (s *DuesService) CancelDues(ctx context.Context, id uint64) (*entity.Dues, error) {
	record, err := s.GetDues(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status == entity.DuesStatusCancelled {
		return record, nil
	}

	oldStatus := record.Status
	updated, err := s.applyTransition(ctx, record, dues.MarkCancelled)
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, updated.ID, entity.DuesEventCancelled, statusPtr(oldStatus), updated.Status, nil)
	return updated, nil
}

// CreatePaymentLink returns the record with a gateway checkout link. A record
// that already has a link is returned as is.
func (s *DuesService) CreatePaymentLink(ctx context.Context, id uint64) (*entity.Dues, error) {
	record, err := s.GetDues(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.Status.Outstanding() {
		return nil, ErrDuesNotPayable
	}
	if record.PaymentLinkURL != nil && *record.PaymentLinkURL != "" {
		return record, nil
	}

	gateway, err := s.providerReg.Get(provider.MercadoPagoCode)
	if err != nil {
		return nil, ErrProviderUnsupported
	}

	member, err := s.memberRepo.FindByID(ctx, record.MemberID)
	if err != nil {
		return nil, err
	}

	input := &provider.PaymentLinkInput{
		ExternalReference: ExternalReference(record.ID),
		Title:             fmt.Sprintf("%s dues %s", s.clubCfg.Name, record.Period),
		Amount:            record.Amount,
		Currency:          s.clubCfg.Currency,
		NotificationURL:   s.gatewayCfg.NotificationURL,
		SuccessURL:        s.gatewayCfg.SuccessURL,
		FailureURL:        s.gatewayCfg.FailureURL,
	}
	if member != nil {
		input.PayerEmail = member.Email
	}
	if s.gatewayCfg.LinkExpiry > 0 {
		expiresAt := s.now().Add(s.gatewayCfg.LinkExpiry)
		input.ExpiresAt = &expiresAt
	}

	link, err := gateway.CreatePaymentLink(ctx, input)
	if err != nil {
		return nil, err
	}

	updated, err := s.applyTransition(ctx, record, func(d *entity.Dues) error {
		if !d.Status.Outstanding() {
			return ErrDuesNotPayable
		}
		d.GatewayPaymentLinkID = &link.ID
		d.PaymentLinkURL = &link.URL
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, updated.ID, entity.DuesEventPaymentLinkCreate, nil, updated.Status, map[string]string{
		"link_id": link.ID,
	})
	return updated, nil
}

// sendConfirmation is best-effort; failures are logged only.
func (s *DuesService) sendConfirmation(ctx context.Context, record *entity.Dues, details notification.ConfirmationDetails) bool {
	l := s.logger.WithField("dues_id", record.ID).WithField("member_id", record.MemberID)

	member, err := s.memberRepo.FindByID(ctx, record.MemberID)
	if err != nil || member == nil {
		l.WithError(err).Warn("Payment confirmation skipped, member unavailable")
		return false
	}

	result, err := s.notifier.SendPaymentConfirmation(ctx, member, record, details)
	if err != nil {
		l.WithError(err).Warn("Payment confirmation failed")
		return false
	}
	return result != nil && result.Success
}

func isInvalidTransition(err error) bool {
	return errors.Is(err, dues.ErrInvalidTransition)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
