package types

import "time"

// Session is a server-side record backing an issued access token.
// The token's jti claim is the session ID, so revoking the row
// invalidates the token before it expires.
type Session struct {
	// ID is the session identifier (a UUID), carried as the token's jti.
	ID string `json:"id" db:"id"`

	// UserID is the account the session is bound to.
	UserID int `json:"user_id" db:"user_id"`

	// CreatedAt is when the session was established.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// ExpiresAt is when the session stops being accepted.
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`

	// RevokedAt is set on logout; nil while the session is live.
	RevokedAt *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

// Active reports whether the session is neither revoked nor expired at t.
func (s Session) Active(t time.Time) bool {
	return s.RevokedAt == nil && t.Before(s.ExpiresAt)
}
