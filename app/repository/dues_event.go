package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
)

type DuesEventRepository struct {
	db DBTX
}

func NewDuesEventRepository(db DBTX) *DuesEventRepository {
	return &DuesEventRepository{db: db}
}

func (r *DuesEventRepository) Create(ctx context.Context, event *entity.DuesEvent) error {
	query := `
		INSERT INTO dues_events (dues_id, event_type, old_status, new_status, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var oldStatus *int32
	if event.OldStatus != nil {
		v := int32(*event.OldStatus)
		oldStatus = &v
	}

	result, err := r.db.ExecContext(ctx, query,
		event.DuesID,
		event.EventType,
		nullableInt32Value(oldStatus),
		int32(event.NewStatus),
		nullableStringValue(event.PayloadJSON),
		event.CreatedAt.UTC(),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)
	return nil
}

func (r *DuesEventRepository) ListByDues(ctx context.Context, duesID uint64) ([]*entity.DuesEvent, error) {
	query := `
		SELECT id, dues_id, event_type, old_status, new_status, payload_json, created_at
		FROM dues_events
		WHERE dues_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, duesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.DuesEvent, 0)
	for rows.Next() {
		var oldStatus sql.NullInt32
		var payload sql.NullString
		item := &entity.DuesEvent{}

		if err := rows.Scan(
			&item.ID,
			&item.DuesID,
			&item.EventType,
			&oldStatus,
			&item.NewStatus,
			&payload,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}

		if oldStatus.Valid {
			status := entity.DuesStatus(oldStatus.Int32)
			item.OldStatus = &status
		}
		item.PayloadJSON = stringPtrFromNull(payload)
		item.CreatedAt = item.CreatedAt.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
