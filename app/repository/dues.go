package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
)

var (
	ErrDuesNotFound        = errors.New("dues not found")
	ErrDuesAlreadyExists   = errors.New("dues already exist for member and period")
	ErrDuesVersionConflict = errors.New("dues was modified concurrently")
	ErrReceiptNumberTaken  = errors.New("receipt number already assigned")
)

const duesColumns = `
	id, member_id, period, amount, due_date, paid_date, status, payment_method,
	receipt_number, reminder_sent_at, reminder_count,
	gateway_payment_link_id, payment_link_url, gateway_transaction_id,
	version, created_at, updated_at`

type DuesFilter struct {
	MemberID  uint64
	Period    string
	HasStatus bool
	Status    entity.DuesStatus
	Limit     int32
	Offset    int32
}

type ReminderCandidateQuery struct {
	Today          time.Time
	RemindedBefore time.Time
	MaxReminders   int32
	Limit          int32
}

type DuesRepository struct {
	db DBTX
}

func NewDuesRepository(db DBTX) *DuesRepository {
	return &DuesRepository{db: db}
}

func (r *DuesRepository) Create(ctx context.Context, dues *entity.Dues) error {
	if dues.Version == 0 {
		dues.Version = 1
	}

	query := `
		INSERT INTO dues (
			member_id, period, amount, due_date, paid_date, status, payment_method,
			receipt_number, reminder_sent_at, reminder_count,
			gateway_payment_link_id, payment_link_url, gateway_transaction_id,
			version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		dues.MemberID,
		dues.Period,
		dues.Amount,
		dues.DueDate.UTC(),
		nullableTimeValue(dues.PaidDate),
		int32(dues.Status),
		nullableEnumValue(int32(dues.PaymentMethod)),
		nullableStringValue(dues.ReceiptNumber),
		nullableTimeValue(dues.ReminderSentAt),
		dues.ReminderCount,
		nullableStringValue(dues.GatewayPaymentLinkID),
		nullableStringValue(dues.PaymentLinkURL),
		nullableStringValue(dues.GatewayTransactionID),
		dues.Version,
		dues.CreatedAt.UTC(),
		dues.UpdatedAt.UTC(),
	)
	if err != nil {
		switch {
		case isDuplicateOn(err, "receipt_number"):
			return ErrReceiptNumberTaken
		case isDuplicateEntryError(err):
			return ErrDuesAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	dues.ID = uint64(id)
	return nil
}

// Update writes every mutable column if the stored version still matches
// dues.Version, then advances dues.Version.
func (r *DuesRepository) Update(ctx context.Context, dues *entity.Dues) error {
	query := `
		UPDATE dues SET
			amount = ?,
			due_date = ?,
			paid_date = ?,
			status = ?,
			payment_method = ?,
			receipt_number = ?,
			reminder_sent_at = ?,
			reminder_count = ?,
			gateway_payment_link_id = ?,
			payment_link_url = ?,
			gateway_transaction_id = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		dues.Amount,
		dues.DueDate.UTC(),
		nullableTimeValue(dues.PaidDate),
		int32(dues.Status),
		nullableEnumValue(int32(dues.PaymentMethod)),
		nullableStringValue(dues.ReceiptNumber),
		nullableTimeValue(dues.ReminderSentAt),
		dues.ReminderCount,
		nullableStringValue(dues.GatewayPaymentLinkID),
		nullableStringValue(dues.PaymentLinkURL),
		nullableStringValue(dues.GatewayTransactionID),
		dues.UpdatedAt.UTC(),
		dues.ID,
		dues.Version,
	)
	if err != nil {
		if isDuplicateOn(err, "receipt_number") {
			return ErrReceiptNumberTaken
		}
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		existing, err := r.FindByID(ctx, dues.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrDuesNotFound
		}
		return ErrDuesVersionConflict
	}

	dues.Version++
	return nil
}

func (r *DuesRepository) FindByID(ctx context.Context, id uint64) (*entity.Dues, error) {
	query := `SELECT ` + duesColumns + ` FROM dues WHERE id = ?`

	dues := &entity.Dues{}
	if err := scanDues(r.db.QueryRowContext(ctx, query, id), dues); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return dues, nil
}

func (r *DuesRepository) FindByMemberPeriod(ctx context.Context, memberID uint64, period string) (*entity.Dues, error) {
	query := `SELECT ` + duesColumns + ` FROM dues WHERE member_id = ? AND period = ? LIMIT 1`

	dues := &entity.Dues{}
	if err := scanDues(r.db.QueryRowContext(ctx, query, memberID, period), dues); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return dues, nil
}

func (r *DuesRepository) List(ctx context.Context, filter DuesFilter) ([]*entity.Dues, error) {
	query := `SELECT ` + duesColumns + ` FROM dues`

	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)

	if filter.MemberID > 0 {
		conditions = append(conditions, "member_id = ?")
		args = append(args, filter.MemberID)
	}
	if strings.TrimSpace(filter.Period) != "" {
		conditions = append(conditions, "period = ?")
		args = append(args, filter.Period)
	}
	if filter.HasStatus {
		conditions = append(conditions, "status = ?")
		args = append(args, int32(filter.Status))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY due_date DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	return r.queryList(ctx, query, args...)
}

// ListOverdueCandidates pages Pending rows due before today by ascending id.
func (r *DuesRepository) ListOverdueCandidates(ctx context.Context, today time.Time, afterID uint64, limit int32) ([]*entity.Dues, error) {
	query := `SELECT ` + duesColumns + `
		FROM dues
		WHERE status = ?
		  AND due_date < ?
		  AND id > ?
		ORDER BY id ASC
		LIMIT ?
	`
	return r.queryList(ctx, query, int32(entity.DuesStatusPending), today.UTC(), afterID, limit)
}

// ListReminderCandidates returns outstanding rows of active members, due
// before today, not reminded since RemindedBefore and below the cap,
// soonest-due first.
func (r *DuesRepository) ListReminderCandidates(ctx context.Context, q ReminderCandidateQuery) ([]*entity.Dues, error) {
	query := `SELECT ` + prefixedDuesColumns("d") + `
		FROM dues d
		INNER JOIN members m ON m.id = d.member_id
		WHERE d.status IN (?, ?)
		  AND m.membership_status = ?
		  AND d.due_date < ?
		  AND (d.reminder_sent_at IS NULL OR d.reminder_sent_at < ?)
		  AND d.reminder_count < ?
		ORDER BY d.due_date ASC, d.id ASC
		LIMIT ?
	`
	return r.queryList(ctx, query,
		int32(entity.DuesStatusPending),
		int32(entity.DuesStatusOverdue),
		int32(entity.MembershipStatusActive),
		q.Today.UTC(),
		q.RemindedBefore.UTC(),
		q.MaxReminders,
		q.Limit,
	)
}

func (r *DuesRepository) CountOutstandingByMember(ctx context.Context, memberID uint64) (int64, error) {
	query := `SELECT COUNT(*) FROM dues WHERE member_id = ? AND status IN (?, ?)`

	var count int64
	err := r.db.QueryRowContext(ctx, query, memberID, int32(entity.DuesStatusPending), int32(entity.DuesStatusOverdue)).Scan(&count)
	return count, err
}

func (r *DuesRepository) queryList(ctx context.Context, query string, args ...interface{}) ([]*entity.Dues, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Dues, 0)
	for rows.Next() {
		item := &entity.Dues{}
		if err := scanDues(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func prefixedDuesColumns(alias string) string {
	columns := strings.Split(duesColumns, ",")
	for i, column := range columns {
		columns[i] = alias + "." + strings.TrimSpace(column)
	}
	return strings.Join(columns, ", ")
}

func scanDues(scan rowScanner, dues *entity.Dues) error {
	var paidDate sql.NullTime
	var paymentMethod sql.NullInt32
	var receiptNumber sql.NullString
	var reminderSentAt sql.NullTime
	var paymentLinkID sql.NullString
	var paymentLinkURL sql.NullString
	var transactionID sql.NullString

	err := scan.Scan(
		&dues.ID,
		&dues.MemberID,
		&dues.Period,
		&dues.Amount,
		&dues.DueDate,
		&paidDate,
		&dues.Status,
		&paymentMethod,
		&receiptNumber,
		&reminderSentAt,
		&dues.ReminderCount,
		&paymentLinkID,
		&paymentLinkURL,
		&transactionID,
		&dues.Version,
		&dues.CreatedAt,
		&dues.UpdatedAt,
	)
	if err != nil {
		return err
	}

	dues.DueDate = dues.DueDate.UTC()
	dues.PaidDate = timePtrFromNull(paidDate)
	if paymentMethod.Valid {
		dues.PaymentMethod = entity.PaymentMethod(paymentMethod.Int32)
	}
	dues.ReceiptNumber = stringPtrFromNull(receiptNumber)
	dues.ReminderSentAt = timePtrFromNull(reminderSentAt)
	dues.GatewayPaymentLinkID = stringPtrFromNull(paymentLinkID)
	dues.PaymentLinkURL = stringPtrFromNull(paymentLinkURL)
	dues.GatewayTransactionID = stringPtrFromNull(transactionID)
	dues.CreatedAt = dues.CreatedAt.UTC()
	dues.UpdatedAt = dues.UpdatedAt.UTC()

	return nil
}
