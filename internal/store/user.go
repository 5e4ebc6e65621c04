package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rmgwatch/apiserver/types"
)

const userColumns = `id, username, email, role, password_hash, is_verified,
	verification_id, verification_type, mfa_secret, mfa_enabled, created_at, last_login`

// UserRepository handles persistence for user accounts.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (types.User, error) {
	var user types.User
	var lastLogin sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Role,
		&user.PasswordHash,
		&user.IsVerified,
		&user.VerificationID,
		&user.VerificationType,
		&user.MFASecret,
		&user.MFAEnabled,
		&user.CreatedAt,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	user.CreatedAt = time.Now()

	const query = `
		INSERT INTO users (username, email, role, password_hash, is_verified,
			verification_id, verification_type, mfa_secret, mfa_enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.Role,
		user.PasswordHash,
		user.IsVerified,
		user.VerificationID,
		user.VerificationType,
		user.MFASecret,
		user.MFAEnabled,
		user.CreatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, mapUniqueViolation(err)
	}
	return user, nil
}

// UpdateProfile changes the mutable identity fields. Uniqueness of the
// new username/email is enforced by the database constraints.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int, username, email string) error {
	const query = `UPDATE users SET username = $1, email = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, username, email, id)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return requireAffected(result)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// UpdateLastLogin is last-write-wins; concurrent logins do not conflict.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int, at time.Time) error {
	const query = `UPDATE users SET last_login = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// SetMFA transitions the account's MFA state. The update only applies
// when the stored mfa_enabled flag still equals expectEnabled, so a
// concurrent enable/disable surfaces as ErrConflict instead of silently
// overwriting.
func (r *UserRepository) SetMFA(ctx context.Context, id int, secret string, enabled, expectEnabled bool) error {
	const query = `
		UPDATE users
		SET mfa_secret = $1, mfa_enabled = $2
		WHERE id = $3 AND mfa_enabled = $4`
	result, err := r.db.ExecContext(ctx, query, secret, enabled, id, expectEnabled)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, id); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func (r *UserRepository) SetVerified(ctx context.Context, id int, verified bool) error {
	const query = `UPDATE users SET is_verified = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, verified, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM users`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]types.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM users`
	var total int
	err := r.db.QueryRowContext(ctx, query).Scan(&total)
	return total, err
}

func (r *UserRepository) CountVerified(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM users WHERE is_verified`
	var total int
	err := r.db.QueryRowContext(ctx, query).Scan(&total)
	return total, err
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
