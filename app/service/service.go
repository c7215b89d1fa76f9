package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-club-dues/app/dues"
	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
	"github.com/vibast-solutions/ms-go-club-dues/app/factory"
	"github.com/vibast-solutions/ms-go-club-dues/app/notification"
	"github.com/vibast-solutions/ms-go-club-dues/app/provider"
	"github.com/vibast-solutions/ms-go-club-dues/app/repository"
	"github.com/vibast-solutions/ms-go-club-dues/config"
)

const (
	defaultListLimit       = int32(100)
	defaultBatchSize       = int32(100)
	defaultReminderBatch   = int32(100)
	defaultReminderSpacing = 48 * time.Hour
	maxUpdateAttempts      = 3
)

type memberRepository interface {
	Create(ctx context.Context, member *entity.Member) error
	Update(ctx context.Context, member *entity.Member) error
	FindByID(ctx context.Context, id uint64) (*entity.Member, error)
	List(ctx context.Context, filter repository.MemberFilter) ([]*entity.Member, error)
	ListActiveAfter(ctx context.Context, afterID uint64, limit int32) ([]*entity.Member, error)
	Delete(ctx context.Context, id uint64) error
}

type duesRepository interface {
	Create(ctx context.Context, dues *entity.Dues) error
	Update(ctx context.Context, dues *entity.Dues) error
	FindByID(ctx context.Context, id uint64) (*entity.Dues, error)
	FindByMemberPeriod(ctx context.Context, memberID uint64, period string) (*entity.Dues, error)
	List(ctx context.Context, filter repository.DuesFilter) ([]*entity.Dues, error)
	ListOverdueCandidates(ctx context.Context, today time.Time, afterID uint64, limit int32) ([]*entity.Dues, error)
	ListReminderCandidates(ctx context.Context, q repository.ReminderCandidateQuery) ([]*entity.Dues, error)
	CountOutstandingByMember(ctx context.Context, memberID uint64) (int64, error)
}

type duesEventRepository interface {
	Create(ctx context.Context, event *entity.DuesEvent) error
	ListByDues(ctx context.Context, duesID uint64) ([]*entity.DuesEvent, error)
}

type gatewayNotificationRepository interface {
	Create(ctx context.Context, notification *entity.GatewayNotification) error
	ListRecent(ctx context.Context, limit int32) ([]*entity.GatewayNotification, error)
}

type Notifier interface {
	SendPaymentReminder(ctx context.Context, member *entity.Member, dues *entity.Dues) (*notification.Result, error)
	SendPaymentConfirmation(ctx context.Context, member *entity.Member, dues *entity.Dues, details notification.ConfirmationDetails) (*notification.Result, error)
}

type Repositories struct {
	Members       memberRepository
	Dues          duesRepository
	Events        duesEventRepository
	Notifications gatewayNotificationRepository
}

type DuesService struct {
	memberRepo       memberRepository
	duesRepo         duesRepository
	eventRepo        duesEventRepository
	notificationRepo gatewayNotificationRepository
	machine          *dues.Machine
	fees             dues.FeeTable
	providerReg      *provider.Registry
	notifier         Notifier
	clubCfg          config.ClubConfig
	duesCfg          config.DuesConfig
	gatewayCfg       config.MercadoPagoConfig
	logger           logrus.FieldLogger
	now              func() time.Time
}

func NewDuesService(
	repos Repositories,
	machine *dues.Machine,
	fees dues.FeeTable,
	providerReg *provider.Registry,
	notifier Notifier,
	clubCfg config.ClubConfig,
	duesCfg config.DuesConfig,
	gatewayCfg config.MercadoPagoConfig,
) *DuesService {
	if clubCfg.Location == nil {
		clubCfg.Location = time.UTC
	}
	if clubCfg.DueDay <= 0 {
		clubCfg.DueDay = 15
	}
	if fees == nil {
		fees = dues.DefaultFeeTable()
	}

	return &DuesService{
		memberRepo:       repos.Members,
		duesRepo:         repos.Dues,
		eventRepo:        repos.Events,
		notificationRepo: repos.Notifications,
		machine:          machine,
		fees:             fees,
		providerReg:      providerReg,
		notifier:         notifier,
		clubCfg:          clubCfg,
		duesCfg:          duesCfg,
		gatewayCfg:       gatewayCfg,
		logger:           factory.NewModuleLogger("dues-service"),
		now:              time.Now,
	}
}

// applyTransition runs mutate on a copy of record and stores the copy under
// the version guard. On a concurrent modification the row is reloaded and
// mutate runs again against the fresh state, so a transition is never applied
// over a status it did not check.
func (s *DuesService) applyTransition(ctx context.Context, record *entity.Dues, mutate func(*entity.Dues) error) (*entity.Dues, error) {
	current := record
	for attempt := 1; ; attempt++ {
		next := current.Clone()
		if err := mutate(next); err != nil {
			return nil, err
		}
		next.UpdatedAt = s.now().UTC()

		err := s.duesRepo.Update(ctx, next)
		switch {
		case err == nil:
			return next, nil
		case errors.Is(err, repository.ErrDuesNotFound):
			return nil, ErrDuesNotFound
		case errors.Is(err, repository.ErrReceiptNumberTaken):
			if attempt >= maxUpdateAttempts {
				return nil, ErrReceiptNumberTaken
			}
		case errors.Is(err, repository.ErrDuesVersionConflict):
			if attempt >= maxUpdateAttempts {
				return nil, ErrConcurrentUpdate
			}
			reloaded, err := s.duesRepo.FindByID(ctx, current.ID)
			if err != nil {
				return nil, err
			}
			if reloaded == nil {
				return nil, ErrDuesNotFound
			}
			current = reloaded
		default:
			return nil, err
		}
	}
}

func (s *DuesService) recordEvent(ctx context.Context, duesID uint64, eventType string, oldStatus *entity.DuesStatus, newStatus entity.DuesStatus, payload map[string]string) {
	event := &entity.DuesEvent{
		DuesID:    duesID,
		EventType: eventType,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		CreatedAt: s.now().UTC(),
	}
	if len(payload) > 0 {
		if encoded, err := json.Marshal(payload); err == nil {
			raw := string(encoded)
			event.PayloadJSON = &raw
		}
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		s.logger.WithError(err).WithField("dues_id", duesID).WithField("event_type", eventType).Warn("Failed to record dues event")
	}
}

func (s *DuesService) location() *time.Location {
	return s.clubCfg.Location
}

func statusPtr(status entity.DuesStatus) *entity.DuesStatus {
	return &status
}
