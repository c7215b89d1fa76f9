package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
)

type GatewayNotificationRepository struct {
	db DBTX
}

func NewGatewayNotificationRepository(db DBTX) *GatewayNotificationRepository {
	return &GatewayNotificationRepository{db: db}
}

func (r *GatewayNotificationRepository) Create(ctx context.Context, notification *entity.GatewayNotification) error {
	query := `
		INSERT INTO gateway_notifications (
			dues_id, provider, event_type, transaction_id, request_id,
			payload_json, outcome, error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableUint64Value(notification.DuesID),
		notification.Provider,
		notification.EventType,
		notification.TransactionID,
		notification.RequestID,
		notification.PayloadJSON,
		notification.Outcome,
		nullableStringValue(notification.Error),
		notification.CreatedAt.UTC(),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	notification.ID = uint64(id)
	return nil
}

func (r *GatewayNotificationRepository) ListRecent(ctx context.Context, limit int32) ([]*entity.GatewayNotification, error) {
	query := `
		SELECT id, dues_id, provider, event_type, transaction_id, request_id,
			payload_json, outcome, error, created_at
		FROM gateway_notifications
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.GatewayNotification, 0)
	for rows.Next() {
		var duesID sql.NullInt64
		var errText sql.NullString
		item := &entity.GatewayNotification{}

		if err := rows.Scan(
			&item.ID,
			&duesID,
			&item.Provider,
			&item.EventType,
			&item.TransactionID,
			&item.RequestID,
			&item.PayloadJSON,
			&item.Outcome,
			&errText,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}

		if duesID.Valid {
			id := uint64(duesID.Int64)
			item.DuesID = &id
		}
		item.Error = stringPtrFromNull(errText)
		item.CreatedAt = item.CreatedAt.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
