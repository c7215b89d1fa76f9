package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
)

var (
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberAlreadyExists = errors.New("member already exists")
)

const memberColumns = `
	id, first_name, last_name, document_number, email, phone,
	activity, membership_status, created_at, updated_at`

type MemberFilter struct {
	HasActivity bool
	Activity    entity.Activity
	HasStatus   bool
	Status      entity.MembershipStatus
	Search      string
	Limit       int32
	Offset      int32
}

type MemberRepository struct {
	db DBTX
}

func NewMemberRepository(db DBTX) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) Create(ctx context.Context, member *entity.Member) error {
	query := `
		INSERT INTO members (
			first_name, last_name, document_number, email, phone,
			activity, membership_status, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		member.FirstName,
		member.LastName,
		member.DocumentNumber,
		member.Email,
		nullableStringValue(member.Phone),
		int32(member.Activity),
		int32(member.MembershipStatus),
		member.CreatedAt.UTC(),
		member.UpdatedAt.UTC(),
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrMemberAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	member.ID = uint64(id)
	return nil
}

func (r *MemberRepository) Update(ctx context.Context, member *entity.Member) error {
	query := `
		UPDATE members SET
			first_name = ?,
			last_name = ?,
			email = ?,
			phone = ?,
			activity = ?,
			membership_status = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		member.FirstName,
		member.LastName,
		member.Email,
		nullableStringValue(member.Phone),
		int32(member.Activity),
		int32(member.MembershipStatus),
		member.UpdatedAt.UTC(),
		member.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *MemberRepository) FindByID(ctx context.Context, id uint64) (*entity.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = ?`

	member := &entity.Member{}
	if err := scanMember(r.db.QueryRowContext(ctx, query, id), member); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return member, nil
}

func (r *MemberRepository) List(ctx context.Context, filter MemberFilter) ([]*entity.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members`

	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 6)

	if filter.HasActivity {
		conditions = append(conditions, "activity = ?")
		args = append(args, int32(filter.Activity))
	}
	if filter.HasStatus {
		conditions = append(conditions, "membership_status = ?")
		args = append(args, int32(filter.Status))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		conditions = append(conditions, "(first_name LIKE ? OR last_name LIKE ? OR document_number LIKE ?)")
		args = append(args, like, like, like)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY last_name ASC, first_name ASC, id ASC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	return r.queryList(ctx, query, args...)
}

// ListActiveAfter pages active members by ascending id for batch generation.
func (r *MemberRepository) ListActiveAfter(ctx context.Context, afterID uint64, limit int32) ([]*entity.Member, error) {
	query := `SELECT ` + memberColumns + `
		FROM members
		WHERE membership_status = ? AND id > ?
		ORDER BY id ASC
		LIMIT ?
	`
	return r.queryList(ctx, query, int32(entity.MembershipStatusActive), afterID, limit)
}

func (r *MemberRepository) Delete(ctx context.Context, id uint64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *MemberRepository) queryList(ctx context.Context, query string, args ...interface{}) ([]*entity.Member, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Member, 0)
	for rows.Next() {
		item := &entity.Member{}
		if err := scanMember(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanMember(scan rowScanner, member *entity.Member) error {
	var phone sql.NullString

	err := scan.Scan(
		&member.ID,
		&member.FirstName,
		&member.LastName,
		&member.DocumentNumber,
		&member.Email,
		&phone,
		&member.Activity,
		&member.MembershipStatus,
		&member.CreatedAt,
		&member.UpdatedAt,
	)
	if err != nil {
		return err
	}

	member.Phone = stringPtrFromNull(phone)
	member.CreatedAt = member.CreatedAt.UTC()
	member.UpdatedAt = member.UpdatedAt.UTC()
	return nil
}
