package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rmgwatch/apiserver/types"
)

// SessionRepository handles persistence for login sessions.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session types.Session) (types.Session, error) {
	const query = `
		INSERT INTO sessions (id, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, session.ID, session.UserID, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return types.Session{}, mapUniqueViolation(err)
	}
	return session, nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (types.Session, error) {
	const query = `
		SELECT id, user_id, created_at, expires_at, revoked_at
		FROM sessions
		WHERE id = $1`
	var session types.Session
	var revokedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.CreatedAt,
		&session.ExpiresAt,
		&revokedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Session{}, ErrNotFound
		}
		return types.Session{}, err
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		session.RevokedAt = &t
	}
	return session, nil
}

// Revoke marks the session as logged out. Revoking an already revoked
// session is a no-op.
func (r *SessionRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE sessions
		SET revoked_at = $1
		WHERE id = $2 AND revoked_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, getErr := r.Get(ctx, id); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
	}
	return nil
}

// DeleteExpired removes sessions past their expiry, returning how many
// rows were purged.
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
