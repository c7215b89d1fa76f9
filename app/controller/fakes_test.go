package controller

import (
	"context"
	"sort"
	"time"

	"github.com/vibast-solutions/ms-go-club-dues/app/dues"
	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
	"github.com/vibast-solutions/ms-go-club-dues/app/notification"
	"github.com/vibast-solutions/ms-go-club-dues/app/provider"
	"github.com/vibast-solutions/ms-go-club-dues/app/repository"
	"github.com/vibast-solutions/ms-go-club-dues/app/service"
	"github.com/vibast-solutions/ms-go-club-dues/config"
)

type controllerMemberRepo struct {
	items map[uint64]*entity.Member
}

func (r *controllerMemberRepo) Create(_ context.Context, member *entity.Member) error {
	for _, existing := range r.items {
		if existing.DocumentNumber == member.DocumentNumber {
			return repository.ErrMemberAlreadyExists
		}
	}
	member.ID = uint64(len(r.items) + 1)
	cp := *member
	r.items[member.ID] = &cp
	return nil
}

func (r *controllerMemberRepo) Update(_ context.Context, member *entity.Member) error {
	cp := *member
	r.items[member.ID] = &cp
	return nil
}

func (r *controllerMemberRepo) FindByID(_ context.Context, id uint64) (*entity.Member, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (r *controllerMemberRepo) List(context.Context, repository.MemberFilter) ([]*entity.Member, error) {
	out := make([]*entity.Member, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *controllerMemberRepo) ListActiveAfter(context.Context, uint64, int32) ([]*entity.Member, error) {
	return []*entity.Member{}, nil
}

func (r *controllerMemberRepo) Delete(_ context.Context, id uint64) error {
	delete(r.items, id)
	return nil
}

type controllerDuesRepo struct {
	items    map[uint64]*entity.Dues
	findFn   func(id uint64) (*entity.Dues, error)
	updateFn func(d *entity.Dues) error
}

func (r *controllerDuesRepo) Create(_ context.Context, d *entity.Dues) error {
	d.ID = uint64(len(r.items) + 1)
	d.Version = 1
	r.items[d.ID] = d.Clone()
	return nil
}

func (r *controllerDuesRepo) Update(_ context.Context, d *entity.Dues) error {
	if r.updateFn != nil {
		return r.updateFn(d)
	}
	d.Version++
	r.items[d.ID] = d.Clone()
	return nil
}

func (r *controllerDuesRepo) FindByID(_ context.Context, id uint64) (*entity.Dues, error) {
	if r.findFn != nil {
		return r.findFn(id)
	}
	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return item.Clone(), nil
}

func (r *controllerDuesRepo) FindByMemberPeriod(context.Context, uint64, string) (*entity.Dues, error) {
	return nil, nil
}

func (r *controllerDuesRepo) List(context.Context, repository.DuesFilter) ([]*entity.Dues, error) {
	out := make([]*entity.Dues, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *controllerDuesRepo) ListOverdueCandidates(context.Context, time.Time, uint64, int32) ([]*entity.Dues, error) {
	return []*entity.Dues{}, nil
}

func (r *controllerDuesRepo) ListReminderCandidates(context.Context, repository.ReminderCandidateQuery) ([]*entity.Dues, error) {
	return []*entity.Dues{}, nil
}

func (r *controllerDuesRepo) CountOutstandingByMember(_ context.Context, memberID uint64) (int64, error) {
	var n int64
	for _, item := range r.items {
		if item.MemberID == memberID && item.Status.Outstanding() {
			n++
		}
	}
	return n, nil
}

type controllerEventRepo struct{}

func (r *controllerEventRepo) Create(context.Context, *entity.DuesEvent) error {
	return nil
}

func (r *controllerEventRepo) ListByDues(context.Context, uint64) ([]*entity.DuesEvent, error) {
	return []*entity.DuesEvent{}, nil
}

type controllerNotificationRepo struct{}

func (r *controllerNotificationRepo) Create(context.Context, *entity.GatewayNotification) error {
	return nil
}

func (r *controllerNotificationRepo) ListRecent(context.Context, int32) ([]*entity.GatewayNotification, error) {
	return []*entity.GatewayNotification{}, nil
}

type controllerNotifier struct {
	confirmations int
}

func (n *controllerNotifier) SendPaymentReminder(context.Context, *entity.Member, *entity.Dues) (*notification.Result, error) {
	return &notification.Result{Success: true}, nil
}

func (n *controllerNotifier) SendPaymentConfirmation(context.Context, *entity.Member, *entity.Dues, notification.ConfirmationDetails) (*notification.Result, error) {
	n.confirmations++
	return &notification.Result{Success: true}, nil
}

type controllerGateway struct {
	transactions map[string]*provider.Transaction
}

func (g *controllerGateway) Code() string {
	return provider.MercadoPagoCode
}

func (g *controllerGateway) ResolveTransaction(_ context.Context, id string) (*provider.Transaction, error) {
	tx, ok := g.transactions[id]
	if !ok {
		return nil, provider.ErrTransactionNotFound
	}
	return tx, nil
}

func (g *controllerGateway) CreatePaymentLink(_ context.Context, input *provider.PaymentLinkInput) (*provider.PaymentLink, error) {
	return &provider.PaymentLink{ID: "pref-1", URL: "https://mp.example/" + input.ExternalReference}, nil
}

func (g *controllerGateway) VerifyNotificationSignature(*provider.SignedNotification) bool {
	return true
}

type controllerFixture struct {
	service  *service.DuesService
	members  *controllerMemberRepo
	dues     *controllerDuesRepo
	notifier *controllerNotifier
	gateway  *controllerGateway
}

func newControllerFixture() *controllerFixture {
	f := &controllerFixture{
		members:  &controllerMemberRepo{items: map[uint64]*entity.Member{}},
		dues:     &controllerDuesRepo{items: map[uint64]*entity.Dues{}},
		notifier: &controllerNotifier{},
		gateway:  &controllerGateway{transactions: map[string]*provider.Transaction{}},
	}
	f.service = service.NewDuesService(
		service.Repositories{
			Members:       f.members,
			Dues:          f.dues,
			Events:        &controllerEventRepo{},
			Notifications: &controllerNotificationRepo{},
		},
		dues.NewMachine("CSA", 5),
		dues.DefaultFeeTable(),
		provider.NewRegistry(f.gateway),
		f.notifier,
		config.ClubConfig{Code: "CSA", Name: "Club", Location: time.UTC, Currency: "ARS", DueDay: 15},
		config.DuesConfig{MaxReminders: 5, ReminderInterval: 48 * time.Hour},
		config.MercadoPagoConfig{},
	)
	return f
}

func (f *controllerFixture) seedPending() (*entity.Member, *entity.Dues) {
	member := &entity.Member{
		FirstName:        "Ana",
		DocumentNumber:   "30111222",
		Email:            "ana@example.com",
		Activity:         entity.ActivityFootball,
		MembershipStatus: entity.MembershipStatusActive,
	}
	_ = f.members.Create(context.Background(), member)

	record := &entity.Dues{
		MemberID: member.ID,
		Period:   "2024-01",
		Amount:   dues.DefaultFeeTable().AmountFor(entity.ActivityFootball),
		DueDate:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Status:   entity.DuesStatusPending,
	}
	_ = f.dues.Create(context.Background(), record)
	return member, record
}
