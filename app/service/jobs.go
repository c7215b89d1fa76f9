package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vibast-solutions/ms-go-club-dues/app/dues"
	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
	"github.com/vibast-solutions/ms-go-club-dues/app/repository"
)

const tracerName = "github.com/vibast-solutions/ms-go-club-dues/app/service"

// Names the recurring jobs are registered and logged under.
const (
	JobOverdueSweep      = "overdue_sweep"
	JobReminderDispatch  = "reminder_dispatch"
	JobMonthlyGeneration = "monthly_generation"
)

type itemOutcome int

const (
	itemProcessed itemOutcome = iota
	itemSkipped
	itemFailed
)

// itemResult is the outcome of one sweep item. A connectivity error in err
// aborts the sweep; any other error only counts against the item.
type itemResult struct {
	outcome            itemOutcome
	notificationFailed bool
	err                error
}

func (r itemResult) fatal() bool {
	return r.err != nil && repository.IsConnectivityError(r.err)
}

type SweepCounts struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
	Skipped   int `json:"skipped"`
}

func (c *SweepCounts) add(r itemResult) {
	switch r.outcome {
	case itemProcessed:
		c.Processed++
	case itemSkipped:
		c.Skipped++
	default:
		c.Errors++
	}
}

type OverdueSummary struct {
	SweepCounts
}

func (s *OverdueSummary) Fields() map[string]interface{} {
	return map[string]interface{}{
		"processed": s.Processed,
		"errors":    s.Errors,
		"skipped":   s.Skipped,
	}
}

type ReminderSummary struct {
	SweepCounts
	NotificationErrors int `json:"notification_errors"`
}

func (s *ReminderSummary) Fields() map[string]interface{} {
	return map[string]interface{}{
		"processed":           s.Processed,
		"errors":              s.Errors,
		"skipped":             s.Skipped,
		"notification_errors": s.NotificationErrors,
	}
}

type GenerationSummary struct {
	SweepCounts
	Period  string `json:"period"`
	Created int    `json:"created"`
}

func (s *GenerationSummary) Fields() map[string]interface{} {
	return map[string]interface{}{
		"processed": s.Processed,
		"errors":    s.Errors,
		"skipped":   s.Skipped,
		"created":   s.Created,
		"period":    s.Period,
	}
}

// RunOverdueSweep moves every Pending record due before the club's current
// date to Overdue.
func (s *DuesService) RunOverdueSweep(ctx context.Context, asOf time.Time) (*OverdueSummary, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "dues.overdue_sweep")
	defer span.End()

	asOf = asOf.In(s.location())
	today := dues.Today(asOf, s.location())
	summary := &OverdueSummary{}
	batch := s.batchSize(s.duesCfg.OverdueBatchSize)

	var sweepErr error
	var afterID uint64
	for sweepErr == nil {
		items, err := s.duesRepo.ListOverdueCandidates(ctx, today, afterID, batch)
		if err != nil {
			sweepErr = err
			break
		}

		for _, record := range items {
			afterID = record.ID
			result := s.markOverdueItem(ctx, record, asOf)
			summary.add(result)
			if result.fatal() {
				sweepErr = result.err
				break
			}
		}
		if int32(len(items)) < batch {
			break
		}
	}

	endSweepSpan(span, summary.Fields(), sweepErr)
	return summary, sweepErr
}

func (s *DuesService) markOverdueItem(ctx context.Context, record *entity.Dues, asOf time.Time) itemResult {
	if !dues.IsOverdue(record, asOf) {
		return itemResult{outcome: itemSkipped}
	}

	l := s.logger.WithField("job", JobOverdueSweep).WithField("dues_id", record.ID)
	oldStatus := record.Status
	updated, err := s.applyTransition(ctx, record, dues.MarkOverdue)
	if err != nil {
		if isInvalidTransition(err) || errors.Is(err, ErrDuesNotFound) {
			return itemResult{outcome: itemSkipped}
		}
		l.WithError(err).Error("Failed to mark dues overdue")
		return itemResult{outcome: itemFailed, err: err}
	}
	if updated.Status == oldStatus {
		return itemResult{outcome: itemSkipped}
	}

	s.recordEvent(ctx, updated.ID, entity.DuesEventOverdue, statusPtr(oldStatus), updated.Status, map[string]string{
		"days_overdue": strconv.Itoa(dues.DaysOverdue(updated, asOf)),
	})
	return itemResult{outcome: itemProcessed}
}

// RunReminderDispatch reminds members about outstanding dues past their due
// date. A reminder counts against the cadence even when delivery fails.
func (s *DuesService) RunReminderDispatch(ctx context.Context, asOf time.Time) (*ReminderSummary, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "dues.reminder_dispatch")
	defer span.End()

	asOf = asOf.In(s.location())
	interval := s.duesCfg.ReminderInterval
	if interval <= 0 {
		interval = defaultReminderSpacing
	}
	batch := s.duesCfg.ReminderBatchSize
	if batch <= 0 {
		batch = defaultReminderBatch
	}

	summary := &ReminderSummary{}
	items, err := s.duesRepo.ListReminderCandidates(ctx, repository.ReminderCandidateQuery{
		Today:          dues.Today(asOf, s.location()),
		RemindedBefore: asOf.Add(-interval).UTC(),
		MaxReminders:   s.machine.MaxReminders(),
		Limit:          batch,
	})
	if err != nil {
		endSweepSpan(span, summary.Fields(), err)
		return summary, err
	}

	var sweepErr error
	for _, record := range items {
		result := s.remindItem(ctx, record, asOf)
		summary.add(result)
		if result.notificationFailed {
			summary.NotificationErrors++
		}
		if result.fatal() {
			sweepErr = result.err
			break
		}
	}

	endSweepSpan(span, summary.Fields(), sweepErr)
	return summary, sweepErr
}

func (s *DuesService) remindItem(ctx context.Context, record *entity.Dues, asOf time.Time) itemResult {
	l := s.logger.WithFields(logrus.Fields{
		"job":       JobReminderDispatch,
		"dues_id":   record.ID,
		"member_id": record.MemberID,
	})

	if record.Status == entity.DuesStatusPending {
		updated, err := s.applyTransition(ctx, record, dues.MarkOverdue)
		if err != nil {
			if isInvalidTransition(err) || errors.Is(err, ErrDuesNotFound) {
				return itemResult{outcome: itemSkipped}
			}
			l.WithError(err).Error("Failed to mark dues overdue before reminder")
			return itemResult{outcome: itemFailed, err: err}
		}
		s.recordEvent(ctx, updated.ID, entity.DuesEventOverdue, statusPtr(entity.DuesStatusPending), updated.Status, map[string]string{
			"days_overdue": strconv.Itoa(dues.DaysOverdue(updated, asOf)),
		})
		record = updated
	} else {
		current, err := s.duesRepo.FindByID(ctx, record.ID)
		if err != nil {
			l.WithError(err).Error("Failed to reload dues before reminder")
			return itemResult{outcome: itemFailed, err: err}
		}
		if current == nil || !current.Status.Outstanding() {
			return itemResult{outcome: itemSkipped}
		}
		record = current
	}

	member, err := s.memberRepo.FindByID(ctx, record.MemberID)
	if err != nil {
		l.WithError(err).Error("Failed to load member for reminder")
		return itemResult{outcome: itemFailed, err: err}
	}
	if member == nil {
		return itemResult{outcome: itemSkipped}
	}

	result := itemResult{outcome: itemProcessed}
	messageID := ""
	notified, err := s.notifier.SendPaymentReminder(ctx, member, record)
	switch {
	case err != nil:
		l.WithError(err).Warn("Payment reminder delivery failed")
		result.notificationFailed = true
	case notified == nil || !notified.Success:
		l.Warn("Payment reminder was not delivered")
		result.notificationFailed = true
	default:
		messageID = notified.MessageID
	}

	sentAt := s.now()
	updated, err := s.applyTransition(ctx, record, func(d *entity.Dues) error {
		// The row may have been paid or cancelled since it was selected.
		if !d.Status.Outstanding() {
			return &dues.InvalidTransitionError{From: d.Status, To: d.Status}
		}
		return s.machine.MarkReminderSent(d, sentAt)
	})
	if err != nil {
		if errors.Is(err, dues.ErrReminderLimitExceeded) || isInvalidTransition(err) || errors.Is(err, ErrDuesNotFound) {
			l.WithError(err).Info("Reminder not recorded, dues changed concurrently")
			result.outcome = itemSkipped
			return result
		}
		l.WithError(err).Error("Failed to record reminder")
		result.outcome = itemFailed
		result.err = err
		return result
	}

	s.recordEvent(ctx, updated.ID, entity.DuesEventReminderSent, nil, updated.Status, map[string]string{
		"reminder_count": strconv.Itoa(int(updated.ReminderCount)),
		"message_id":     messageID,
		"delivered":      strconv.FormatBool(!result.notificationFailed),
	})
	return result
}

// RunMonthlyGeneration creates the Pending record of the current period for
// every active member that does not have one yet.
func (s *DuesService) RunMonthlyGeneration(ctx context.Context, asOf time.Time) (*GenerationSummary, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "dues.monthly_generation")
	defer span.End()

	period := dues.PeriodOf(asOf.In(s.location()))
	summary := &GenerationSummary{Period: period}
	dueDate, err := dues.DueDateFor(period, s.clubCfg.DueDay)
	if err != nil {
		endSweepSpan(span, summary.Fields(), err)
		return summary, err
	}

	batch := s.batchSize(s.duesCfg.GenerationBatchSize)
	var sweepErr error
	var afterID uint64
	for sweepErr == nil {
		members, err := s.memberRepo.ListActiveAfter(ctx, afterID, batch)
		if err != nil {
			sweepErr = err
			break
		}

		for _, member := range members {
			afterID = member.ID
			result := s.generateItem(ctx, member, period, dueDate)
			summary.add(result)
			if result.outcome == itemProcessed {
				summary.Created++
			}
			if result.fatal() {
				sweepErr = result.err
				break
			}
		}
		if int32(len(members)) < batch {
			break
		}
	}

	endSweepSpan(span, summary.Fields(), sweepErr)
	return summary, sweepErr
}

func (s *DuesService) generateItem(ctx context.Context, member *entity.Member, period string, dueDate time.Time) itemResult {
	l := s.logger.WithField("job", JobMonthlyGeneration).WithField("member_id", member.ID).WithField("period", period)

	existing, err := s.duesRepo.FindByMemberPeriod(ctx, member.ID, period)
	if err != nil {
		l.WithError(err).Error("Failed to check existing dues")
		return itemResult{outcome: itemFailed, err: err}
	}
	if existing != nil {
		return itemResult{outcome: itemSkipped}
	}

	now := s.now().UTC()
	record := &entity.Dues{
		MemberID:  member.ID,
		Period:    period,
		Amount:    s.fees.AmountFor(member.Activity),
		DueDate:   dueDate,
		Status:    entity.DuesStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.duesRepo.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuesAlreadyExists) {
			return itemResult{outcome: itemSkipped}
		}
		l.WithError(err).Error("Failed to create dues")
		return itemResult{outcome: itemFailed, err: err}
	}

	s.recordEvent(ctx, record.ID, entity.DuesEventCreated, nil, record.Status, map[string]string{
		"amount":   record.Amount.String(),
		"activity": member.Activity.String(),
	})
	return itemResult{outcome: itemProcessed}
}

func (s *DuesService) batchSize(configured int32) int32 {
	if configured > 0 {
		return configured
	}
	return defaultBatchSize
}

func endSweepSpan(span trace.Span, fields map[string]interface{}, err error) {
	attrs := make([]attribute.KeyValue, 0, len(fields))
	for key, value := range fields {
		switch v := value.(type) {
		case int:
			attrs = append(attrs, attribute.Int("sweep."+key, v))
		case string:
			attrs = append(attrs, attribute.String("sweep."+key, v))
		}
	}
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
