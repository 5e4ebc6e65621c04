package types

import "time"

// Roles assignable to a user account, in increasing order of privilege.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// User represents an account in the system.
// It contains identity, role, verification and MFA state.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address, unique across accounts.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level within the system:
	// "user", "moderator" or "admin".
	Role string `json:"role" db:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsVerified is set by an administrator after checking the user's
	// claimed external credential. It is independent of MFA and gates
	// actions such as creating entity records.
	IsVerified bool `json:"is_verified" db:"is_verified"`

	// VerificationID is the external credential the registrant claims,
	// e.g. a trade-body membership number.
	VerificationID string `json:"verification_id" db:"verification_id"`

	// VerificationType names the kind of credential behind VerificationID,
	// e.g. "bgmea", "rmg_supplier" or "banking".
	VerificationType string `json:"verification_type" db:"verification_type"`

	// MFASecret is the base32-encoded TOTP secret. Empty unless MFA is
	// enabled or being set up. Never exposed in API responses.
	MFASecret string `json:"-" db:"mfa_secret"`

	// MFAEnabled reports whether TOTP verification is required at login.
	// It is never true while MFASecret is empty.
	MFAEnabled bool `json:"mfa_enabled" db:"mfa_enabled"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// LastLogin is the timestamp of the most recent successful login,
	// or nil if the user has never logged in.
	LastLogin *time.Time `json:"last_login,omitempty" db:"last_login"`
}
