package service

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-club-dues/app/dues"
	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
	"github.com/vibast-solutions/ms-go-club-dues/app/notification"
	"github.com/vibast-solutions/ms-go-club-dues/app/provider"
	"github.com/vibast-solutions/ms-go-club-dues/app/repository"
	"github.com/vibast-solutions/ms-go-club-dues/config"
)

type fakeMemberRepo struct {
	mu      sync.Mutex
	items   map[uint64]*entity.Member
	nextID  uint64
	findErr error
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{items: map[uint64]*entity.Member{}}
}

func (r *fakeMemberRepo) Create(_ context.Context, member *entity.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.DocumentNumber == member.DocumentNumber {
			return repository.ErrMemberAlreadyExists
		}
	}
	r.nextID++
	member.ID = r.nextID
	cp := *member
	r.items[member.ID] = &cp
	return nil
}

func (r *fakeMemberRepo) Update(_ context.Context, member *entity.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[member.ID]; !ok {
		return repository.ErrMemberNotFound
	}
	cp := *member
	r.items[member.ID] = &cp
	return nil
}

func (r *fakeMemberRepo) FindByID(_ context.Context, id uint64) (*entity.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (r *fakeMemberRepo) List(_ context.Context, filter repository.MemberFilter) ([]*entity.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Member, 0)
	for _, id := range r.sortedIDs() {
		item := r.items[id]
		if filter.HasStatus && item.MembershipStatus != filter.Status {
			continue
		}
		if filter.HasActivity && item.Activity != filter.Activity {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeMemberRepo) ListActiveAfter(_ context.Context, afterID uint64, limit int32) ([]*entity.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Member, 0)
	for _, id := range r.sortedIDs() {
		item := r.items[id]
		if id <= afterID || item.MembershipStatus != entity.MembershipStatusActive {
			continue
		}
		cp := *item
		out = append(out, &cp)
		if int32(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeMemberRepo) Delete(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repository.ErrMemberNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeMemberRepo) sortedIDs() []uint64 {
	ids := make([]uint64, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type fakeDuesRepo struct {
	mu           sync.Mutex
	items        map[uint64]*entity.Dues
	nextID       uint64
	members      *fakeMemberRepo
	beforeUpdate func(stored *entity.Dues)
	updateErr    error
	listErr      error
	updates      int

	// afterReminderQuery runs once, with the lock held, after the reminder
	// candidates have been copied out.
	afterReminderQuery func(items map[uint64]*entity.Dues)
}

func newFakeDuesRepo(members *fakeMemberRepo) *fakeDuesRepo {
	return &fakeDuesRepo{items: map[uint64]*entity.Dues{}, members: members}
}

func (r *fakeDuesRepo) Create(_ context.Context, d *entity.Dues) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.MemberID == d.MemberID && existing.Period == d.Period {
			return repository.ErrDuesAlreadyExists
		}
	}
	r.nextID++
	d.ID = r.nextID
	if d.Version == 0 {
		d.Version = 1
	}
	r.items[d.ID] = d.Clone()
	return nil
}

func (r *fakeDuesRepo) Update(_ context.Context, d *entity.Dues) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.items[d.ID]
	if !ok {
		return repository.ErrDuesNotFound
	}
	if r.beforeUpdate != nil {
		hook := r.beforeUpdate
		r.beforeUpdate = nil
		hook(stored)
	}
	if stored.Version != d.Version {
		return repository.ErrDuesVersionConflict
	}
	if d.ReceiptNumber != nil {
		for id, other := range r.items {
			if id != d.ID && other.ReceiptNumber != nil && *other.ReceiptNumber == *d.ReceiptNumber {
				return repository.ErrReceiptNumberTaken
			}
		}
	}
	d.Version++
	r.items[d.ID] = d.Clone()
	return nil
}

func (r *fakeDuesRepo) FindByID(_ context.Context, id uint64) (*entity.Dues, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return item.Clone(), nil
}

func (r *fakeDuesRepo) FindByMemberPeriod(_ context.Context, memberID uint64, period string) (*entity.Dues, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.MemberID == memberID && item.Period == period {
			return item.Clone(), nil
		}
	}
	return nil, nil
}

func (r *fakeDuesRepo) List(_ context.Context, filter repository.DuesFilter) ([]*entity.Dues, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Dues, 0)
	for _, id := range r.sortedIDs() {
		item := r.items[id]
		if filter.MemberID > 0 && item.MemberID != filter.MemberID {
			continue
		}
		if filter.HasStatus && item.Status != filter.Status {
			continue
		}
		out = append(out, item.Clone())
	}
	return out, nil
}

func (r *fakeDuesRepo) ListOverdueCandidates(_ context.Context, today time.Time, afterID uint64, limit int32) ([]*entity.Dues, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]*entity.Dues, 0)
	for _, id := range r.sortedIDs() {
		item := r.items[id]
		if id <= afterID || item.Status != entity.DuesStatusPending || !item.DueDate.Before(today) {
			continue
		}
		out = append(out, item.Clone())
		if int32(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeDuesRepo) ListReminderCandidates(_ context.Context, q repository.ReminderCandidateQuery) ([]*entity.Dues, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]*entity.Dues, 0)
	for _, item := range r.items {
		if !item.Status.Outstanding() || !item.DueDate.Before(q.Today) || item.ReminderCount >= q.MaxReminders {
			continue
		}
		if item.ReminderSentAt != nil && !item.ReminderSentAt.Before(q.RemindedBefore) {
			continue
		}
		member := r.members.items[item.MemberID]
		if member == nil || member.MembershipStatus != entity.MembershipStatusActive {
			continue
		}
		out = append(out, item.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	if int32(len(out)) > q.Limit {
		out = out[:q.Limit]
	}
	if r.afterReminderQuery != nil {
		hook := r.afterReminderQuery
		r.afterReminderQuery = nil
		hook(r.items)
	}
	return out, nil
}

func (r *fakeDuesRepo) CountOutstandingByMember(_ context.Context, memberID uint64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, item := range r.items {
		if item.MemberID == memberID && item.Status.Outstanding() {
			count++
		}
	}
	return count, nil
}

func (r *fakeDuesRepo) get(id uint64) *entity.Dues {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id].Clone()
}

func (r *fakeDuesRepo) sortedIDs() []uint64 {
	ids := make([]uint64, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type fakeEventRepo struct {
	mu    sync.Mutex
	items []*entity.DuesEvent
}

func (r *fakeEventRepo) Create(_ context.Context, event *entity.DuesEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = uint64(len(r.items) + 1)
	r.items = append(r.items, event)
	return nil
}

func (r *fakeEventRepo) ListByDues(_ context.Context, duesID uint64) ([]*entity.DuesEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.DuesEvent, 0)
	for _, item := range r.items {
		if item.DuesID == duesID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) countType(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.EventType == eventType {
			n++
		}
	}
	return n
}

type fakeNotificationRepo struct {
	mu    sync.Mutex
	items []*entity.GatewayNotification
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *entity.GatewayNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = uint64(len(r.items) + 1)
	r.items = append(r.items, n)
	return nil
}

func (r *fakeNotificationRepo) ListRecent(_ context.Context, limit int32) ([]*entity.GatewayNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.GatewayNotification, 0)
	for i := len(r.items) - 1; i >= 0 && int32(len(out)) < limit; i-- {
		out = append(out, r.items[i])
	}
	return out, nil
}

func (r *fakeNotificationRepo) last() *entity.GatewayNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return nil
	}
	return r.items[len(r.items)-1]
}

type fakeNotifier struct {
	mu            sync.Mutex
	reminders     []uint64
	confirmations []uint64
	reminderErr   error
	confirmErr    error
}

func (n *fakeNotifier) SendPaymentReminder(_ context.Context, _ *entity.Member, d *entity.Dues) (*notification.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders = append(n.reminders, d.ID)
	if n.reminderErr != nil {
		return &notification.Result{}, n.reminderErr
	}
	return &notification.Result{Success: true, MessageID: "msg-reminder"}, nil
}

func (n *fakeNotifier) SendPaymentConfirmation(_ context.Context, _ *entity.Member, d *entity.Dues, _ notification.ConfirmationDetails) (*notification.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations = append(n.confirmations, d.ID)
	if n.confirmErr != nil {
		return &notification.Result{}, n.confirmErr
	}
	return &notification.Result{Success: true, MessageID: "msg-confirmation"}, nil
}

type fakeGateway struct {
	transactions map[string]*provider.Transaction
	resolveErr   error
	rejectAll    bool
	links        int
}

func (g *fakeGateway) Code() string {
	return provider.MercadoPagoCode
}

func (g *fakeGateway) ResolveTransaction(_ context.Context, id string) (*provider.Transaction, error) {
	if g.resolveErr != nil {
		return nil, g.resolveErr
	}
	tx, ok := g.transactions[id]
	if !ok {
		return nil, provider.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (g *fakeGateway) CreatePaymentLink(_ context.Context, input *provider.PaymentLinkInput) (*provider.PaymentLink, error) {
	g.links++
	return &provider.PaymentLink{ID: "pref-" + input.ExternalReference, URL: "https://mp.example/" + input.ExternalReference}, nil
}

func (g *fakeGateway) VerifyNotificationSignature(_ *provider.SignedNotification) bool {
	return !g.rejectAll
}

type harness struct {
	svc           *DuesService
	members       *fakeMemberRepo
	dues          *fakeDuesRepo
	events        *fakeEventRepo
	notifications *fakeNotificationRepo
	notifier      *fakeNotifier
	gateway       *fakeGateway
}

func newHarness(now time.Time) *harness {
	members := newFakeMemberRepo()
	duesRepo := newFakeDuesRepo(members)
	events := &fakeEventRepo{}
	notifications := &fakeNotificationRepo{}
	notifier := &fakeNotifier{}
	gateway := &fakeGateway{transactions: map[string]*provider.Transaction{}}

	seq := 0
	machine := dues.NewMachine("CSA", 5, dues.WithRandom(func(n int) int {
		seq++
		return seq % n
	}))

	svc := NewDuesService(
		Repositories{Members: members, Dues: duesRepo, Events: events, Notifications: notifications},
		machine,
		dues.DefaultFeeTable(),
		provider.NewRegistry(gateway),
		notifier,
		config.ClubConfig{Code: "CSA", Name: "CSA", Location: time.UTC, Currency: "ARS", DueDay: 15},
		config.DuesConfig{MaxReminders: 5, ReminderInterval: 48 * time.Hour, ReminderBatchSize: 100, OverdueBatchSize: 2, GenerationBatchSize: 2},
		config.MercadoPagoConfig{NotificationURL: "https://club.example/webhooks/gateway"},
	)
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	svc.logger = quiet
	svc.now = func() time.Time { return now }

	return &harness{
		svc:           svc,
		members:       members,
		dues:          duesRepo,
		events:        events,
		notifications: notifications,
		notifier:      notifier,
		gateway:       gateway,
	}
}

func (h *harness) addMember(document string, activity entity.Activity, status entity.MembershipStatus) *entity.Member {
	member := &entity.Member{
		FirstName:        "Member",
		LastName:         document,
		DocumentNumber:   document,
		Email:            document + "@example.com",
		Activity:         activity,
		MembershipStatus: status,
	}
	_ = h.members.Create(context.Background(), member)
	return member
}

func (h *harness) addDues(memberID uint64, period string, due time.Time, status entity.DuesStatus) *entity.Dues {
	record := &entity.Dues{
		MemberID: memberID,
		Period:   period,
		Amount:   dues.DefaultFeeTable().AmountFor(entity.ActivityFootball),
		DueDate:  due,
		Status:   status,
	}
	if status == entity.DuesStatusPaid {
		paid := due
		receipt := "CSA-00000000-0-000"
		record.PaidDate = &paid
		record.PaymentMethod = entity.PaymentMethodCash
		record.ReceiptNumber = &receipt
	}
	_ = h.dues.Create(context.Background(), record)
	return record
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type reconcileReq struct {
	provider  string
	eventType string
	dataID    string
	requestID string
	signature string
	payload   string
}

func (r reconcileReq) GetProvider() string  { return r.provider }
func (r reconcileReq) GetType() string      { return r.eventType }
func (r reconcileReq) GetDataId() string    { return r.dataID }
func (r reconcileReq) GetRequestId() string { return r.requestID }
func (r reconcileReq) GetSignature() string { return r.signature }
func (r reconcileReq) GetPayload() string   { return r.payload }

func paymentNotification(transactionID string) reconcileReq {
	return reconcileReq{
		eventType: "payment",
		dataID:    transactionID,
		requestID: "req-" + transactionID,
		payload:   `{"type":"payment","data":{"id":"` + transactionID + `"}}`,
	}
}
