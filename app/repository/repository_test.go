package repository

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", t.Name())
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(context.Background(), db, "sqlite3"))
	return db
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func createMember(t *testing.T, repo *MemberRepository, document string, status entity.MembershipStatus) *entity.Member {
	t.Helper()

	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	member := &entity.Member{
		FirstName:        "Ana",
		LastName:         "Gomez " + document,
		DocumentNumber:   document,
		Email:            document + "@example.com",
		Activity:         entity.ActivityFootball,
		MembershipStatus: status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, repo.Create(context.Background(), member))
	return member
}

func newDues(memberID uint64, period string, due time.Time) *entity.Dues {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return &entity.Dues{
		MemberID:  memberID,
		Period:    period,
		Amount:    decimal.NewFromInt(15000),
		DueDate:   due,
		Status:    entity.DuesStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(context.Background(), db, "sqlite3"))
}

func TestMigrateUnknownDriver(t *testing.T) {
	db := openTestDB(t)
	assert.Error(t, Migrate(context.Background(), db, "oracle"))
}

func TestMemberRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMemberRepository(openTestDB(t))

	phone := "+5491100000000"
	member := createMember(t, repo, "30111222", entity.MembershipStatusActive)
	member.Phone = &phone
	member.MembershipStatus = entity.MembershipStatusSuspended
	require.NoError(t, repo.Update(ctx, member))

	loaded, err := repo.FindByID(ctx, member.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "30111222", loaded.DocumentNumber)
	assert.Equal(t, entity.ActivityFootball, loaded.Activity)
	assert.Equal(t, entity.MembershipStatusSuspended, loaded.MembershipStatus)
	require.NotNil(t, loaded.Phone)
	assert.Equal(t, phone, *loaded.Phone)

	missing, err := repo.FindByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemberRepositoryRejectsDuplicateDocument(t *testing.T) {
	repo := NewMemberRepository(openTestDB(t))
	createMember(t, repo, "30111222", entity.MembershipStatusActive)

	dup := &entity.Member{
		FirstName:        "Other",
		DocumentNumber:   "30111222",
		Email:            "other@example.com",
		Activity:         entity.ActivityTennis,
		MembershipStatus: entity.MembershipStatusActive,
	}
	assert.ErrorIs(t, repo.Create(context.Background(), dup), ErrMemberAlreadyExists)
}

func TestMemberRepositoryListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemberRepository(openTestDB(t))
	first := createMember(t, repo, "1", entity.MembershipStatusActive)
	createMember(t, repo, "2", entity.MembershipStatusInactive)
	third := createMember(t, repo, "3", entity.MembershipStatusActive)

	active, err := repo.ListActiveAfter(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, first.ID, active[0].ID)
	assert.Equal(t, third.ID, active[1].ID)

	page, err := repo.ListActiveAfter(ctx, first.ID, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, third.ID, page[0].ID)

	filtered, err := repo.List(ctx, MemberFilter{HasStatus: true, Status: entity.MembershipStatusInactive, Limit: 10})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "2", filtered[0].DocumentNumber)

	searched, err := repo.List(ctx, MemberFilter{Search: "Gomez 3", Limit: 10})
	require.NoError(t, err)
	require.Len(t, searched, 1)

	require.NoError(t, repo.Delete(ctx, first.ID))
	assert.ErrorIs(t, repo.Delete(ctx, first.ID), ErrMemberNotFound)
}

func TestDuesRepositoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	member := createMember(t, NewMemberRepository(db), "1", entity.MembershipStatusActive)
	repo := NewDuesRepository(db)

	dues := newDues(member.ID, "2024-01", date(2024, 1, 15))
	require.NoError(t, repo.Create(ctx, dues))
	assert.NotZero(t, dues.ID)
	assert.Equal(t, int64(1), dues.Version)

	loaded, err := repo.FindByID(ctx, dues.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, decimal.NewFromInt(15000).Equal(loaded.Amount))
	assert.True(t, date(2024, 1, 15).Equal(loaded.DueDate))
	assert.Equal(t, entity.DuesStatusPending, loaded.Status)
	assert.Equal(t, entity.PaymentMethodUnspecified, loaded.PaymentMethod)
	assert.Nil(t, loaded.PaidDate)
	assert.Nil(t, loaded.ReceiptNumber)

	byPeriod, err := repo.FindByMemberPeriod(ctx, member.ID, "2024-01")
	require.NoError(t, err)
	require.NotNil(t, byPeriod)
	assert.Equal(t, dues.ID, byPeriod.ID)

	none, err := repo.FindByMemberPeriod(ctx, member.ID, "2024-02")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestDuesRepositoryRejectsDuplicatePeriod(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	member := createMember(t, NewMemberRepository(db), "1", entity.MembershipStatusActive)
	repo := NewDuesRepository(db)

	require.NoError(t, repo.Create(ctx, newDues(member.ID, "2024-01", date(2024, 1, 15))))
	assert.ErrorIs(t, repo.Create(ctx, newDues(member.ID, "2024-01", date(2024, 1, 15))), ErrDuesAlreadyExists)
}

func TestDuesRepositoryUpdateGuardsVersion(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	member := createMember(t, NewMemberRepository(db), "1", entity.MembershipStatusActive)
	repo := NewDuesRepository(db)

	dues := newDues(member.ID, "2024-01", date(2024, 1, 15))
	require.NoError(t, repo.Create(ctx, dues))

	stale := dues.Clone()

	paid := date(2024, 1, 20)
	receipt := "CLUB-20240120-1-001"
	dues.Status = entity.DuesStatusPaid
	dues.PaymentMethod = entity.PaymentMethodCash
	dues.PaidDate = &paid
	dues.ReceiptNumber = &receipt
	require.NoError(t, repo.Update(ctx, dues))
	assert.Equal(t, int64(2), dues.Version)

	stale.Status = entity.DuesStatusOverdue
	assert.ErrorIs(t, repo.Update(ctx, stale), ErrDuesVersionConflict)

	loaded, err := repo.FindByID(ctx, dues.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DuesStatusPaid, loaded.Status)
	assert.Equal(t, entity.PaymentMethodCash, loaded.PaymentMethod)
	require.NotNil(t, loaded.ReceiptNumber)
	assert.Equal(t, receipt, *loaded.ReceiptNumber)
	require.NotNil(t, loaded.PaidDate)
	assert.True(t, paid.Equal(*loaded.PaidDate))

	missing := dues.Clone()
	missing.ID = 999
	assert.ErrorIs(t, repo.Update(ctx, missing), ErrDuesNotFound)
}

func TestDuesRepositoryRejectsReusedReceipt(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	member := createMember(t, NewMemberRepository(db), "1", entity.MembershipStatusActive)
	repo := NewDuesRepository(db)

	receipt := "CLUB-20240120-1-001"
	first := newDues(member.ID, "2024-01", date(2024, 1, 15))
	first.ReceiptNumber = &receipt
	require.NoError(t, repo.Create(ctx, first))

	second := newDues(member.ID, "2024-02", date(2024, 2, 15))
	require.NoError(t, repo.Create(ctx, second))
	second.ReceiptNumber = &receipt
	assert.ErrorIs(t, repo.Update(ctx, second), ErrReceiptNumberTaken)
}

func TestDuesRepositoryOverdueCandidates(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	member := createMember(t, NewMemberRepository(db), "1", entity.MembershipStatusActive)
	repo := NewDuesRepository(db)

	pastDue := newDues(member.ID, "2024-01", date(2024, 1, 15))
	dueToday := newDues(member.ID, "2024-02", date(2024, 1, 20))
	alreadyOverdue := newDues(member.ID, "2023-12", date(2023, 12, 15))
	alreadyOverdue.Status = entity.DuesStatusOverdue
	for _, d := range []*entity.Dues{pastDue, dueToday, alreadyOverdue} {
		require.NoError(t, repo.Create(ctx, d))
	}

	candidates, err := repo.ListOverdueCandidates(ctx, date(2024, 1, 20), 0, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, pastDue.ID, candidates[0].ID)

	next, err := repo.ListOverdueCandidates(ctx, date(2024, 1, 20), pastDue.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, next)
}

func TestDuesRepositoryReminderCandidates(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	members := NewMemberRepository(db)
	active := createMember(t, members, "1", entity.MembershipStatusActive)
	inactive := createMember(t, members, "2", entity.MembershipStatusInactive)
	repo := NewDuesRepository(db)

	older := newDues(active.ID, "2023-12", date(2023, 12, 15))
	older.Status = entity.DuesStatusOverdue
	newer := newDues(active.ID, "2024-01", date(2024, 1, 15))
	newer.Status = entity.DuesStatusOverdue

	recentlyReminded := newDues(active.ID, "2023-11", date(2023, 11, 15))
	recentlyReminded.Status = entity.DuesStatusOverdue
	remindedAt := time.Date(2024, 1, 19, 10, 0, 0, 0, time.UTC)
	recentlyReminded.ReminderSentAt = &remindedAt
	recentlyReminded.ReminderCount = 1

	capped := newDues(active.ID, "2023-10", date(2023, 10, 15))
	capped.Status = entity.DuesStatusOverdue
	capped.ReminderCount = 5

	paid := newDues(active.ID, "2023-09", date(2023, 9, 15))
	paid.Status = entity.DuesStatusPaid

	ofInactive := newDues(inactive.ID, "2024-01", date(2024, 1, 15))
	ofInactive.Status = entity.DuesStatusOverdue

	for _, d := range []*entity.Dues{older, newer, recentlyReminded, capped, paid, ofInactive} {
		require.NoError(t, repo.Create(ctx, d))
	}

	candidates, err := repo.ListReminderCandidates(ctx, ReminderCandidateQuery{
		Today:          date(2024, 1, 20),
		RemindedBefore: time.Date(2024, 1, 18, 12, 0, 0, 0, time.UTC),
		MaxReminders:   5,
		Limit:          10,
	})
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, older.ID, candidates[0].ID)
	assert.Equal(t, newer.ID, candidates[1].ID)

	limited, err := repo.ListReminderCandidates(ctx, ReminderCandidateQuery{
		Today:          date(2024, 1, 20),
		RemindedBefore: time.Date(2024, 1, 18, 12, 0, 0, 0, time.UTC),
		MaxReminders:   5,
		Limit:          1,
	})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, older.ID, limited[0].ID)
}

func TestDuesRepositoryListAndCount(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	member := createMember(t, NewMemberRepository(db), "1", entity.MembershipStatusActive)
	repo := NewDuesRepository(db)

	jan := newDues(member.ID, "2024-01", date(2024, 1, 15))
	feb := newDues(member.ID, "2024-02", date(2024, 2, 15))
	mar := newDues(member.ID, "2024-03", date(2024, 3, 15))
	mar.Status = entity.DuesStatusCancelled
	for _, d := range []*entity.Dues{jan, feb, mar} {
		require.NoError(t, repo.Create(ctx, d))
	}

	all, err := repo.List(ctx, DuesFilter{MemberID: member.ID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, mar.ID, all[0].ID)

	pending, err := repo.List(ctx, DuesFilter{HasStatus: true, Status: entity.DuesStatusPending, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	outstanding, err := repo.CountOutstandingByMember(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), outstanding)
}

func TestDuesEventRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	member := createMember(t, NewMemberRepository(db), "1", entity.MembershipStatusActive)
	dues := newDues(member.ID, "2024-01", date(2024, 1, 15))
	require.NoError(t, NewDuesRepository(db).Create(ctx, dues))

	repo := NewDuesEventRepository(db)
	old := entity.DuesStatusPending
	payload := `{"days_overdue":"5"}`
	require.NoError(t, repo.Create(ctx, &entity.DuesEvent{
		DuesID:    dues.ID,
		EventType: entity.DuesEventCreated,
		NewStatus: entity.DuesStatusPending,
		CreatedAt: time.Now(),
	}))
	require.NoError(t, repo.Create(ctx, &entity.DuesEvent{
		DuesID:      dues.ID,
		EventType:   entity.DuesEventOverdue,
		OldStatus:   &old,
		NewStatus:   entity.DuesStatusOverdue,
		PayloadJSON: &payload,
		CreatedAt:   time.Now(),
	}))

	events, err := repo.ListByDues(ctx, dues.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Nil(t, events[0].OldStatus)
	require.NotNil(t, events[1].OldStatus)
	assert.Equal(t, entity.DuesStatusPending, *events[1].OldStatus)
	require.NotNil(t, events[1].PayloadJSON)
	assert.Equal(t, payload, *events[1].PayloadJSON)
}

func TestGatewayNotificationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGatewayNotificationRepository(openTestDB(t))

	duesID := uint64(7)
	errText := "dues not found"
	require.NoError(t, repo.Create(ctx, &entity.GatewayNotification{
		Provider:      "mercadopago",
		EventType:     "payment",
		TransactionID: "123",
		RequestID:     "req-1",
		PayloadJSON:   `{}`,
		Outcome:       entity.NotificationOutcomeIgnored,
		CreatedAt:     time.Now(),
	}))
	require.NoError(t, repo.Create(ctx, &entity.GatewayNotification{
		DuesID:        &duesID,
		Provider:      "mercadopago",
		EventType:     "payment",
		TransactionID: "124",
		RequestID:     "req-2",
		PayloadJSON:   `{}`,
		Outcome:       entity.NotificationOutcomeFailed,
		Error:         &errText,
		CreatedAt:     time.Now(),
	}))

	items, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "124", items[0].TransactionID)
	require.NotNil(t, items[0].DuesID)
	assert.Equal(t, duesID, *items[0].DuesID)
	require.NotNil(t, items[0].Error)
	assert.Nil(t, items[1].DuesID)
}

func TestIsConnectivityError(t *testing.T) {
	assert.False(t, IsConnectivityError(nil))
	assert.False(t, IsConnectivityError(ErrDuesNotFound))
	assert.True(t, IsConnectivityError(sql.ErrConnDone))
	assert.True(t, IsConnectivityError(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
}
