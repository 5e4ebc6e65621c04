package store

import (
	"context"
	"database/sql"

	"github.com/rmgwatch/apiserver/types"
)

// AuditRepository appends to and reads the audit log. Events are
// append-only; there are no update or delete operations.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, event types.AuditEvent) error {
	const query = `
		INSERT INTO audit_logs (user_id, action, resource_type, resource_id,
			ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		nullableInt(event.UserID),
		event.Action,
		event.ResourceType,
		nullableInt(event.ResourceID),
		event.IPAddress,
		event.UserAgent,
		event.Details,
		event.CreatedAt,
	)
	return err
}

func (r *AuditRepository) List(ctx context.Context, offset, limit int) ([]types.AuditEvent, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 50
	}

	const countQuery = `SELECT COUNT(1) FROM audit_logs`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT id, user_id, action, resource_type, resource_id, ip_address,
			user_agent, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := make([]types.AuditEvent, 0, limit)
	for rows.Next() {
		var event types.AuditEvent
		var userID, resourceID sql.NullInt64
		if err := rows.Scan(
			&event.ID,
			&userID,
			&event.Action,
			&event.ResourceType,
			&resourceID,
			&event.IPAddress,
			&event.UserAgent,
			&event.Details,
			&event.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		if userID.Valid {
			id := int(userID.Int64)
			event.UserID = &id
		}
		if resourceID.Valid {
			id := int(resourceID.Int64)
			event.ResourceID = &id
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
