package services

import "errors"

// Expected user-input conditions. These surface as rejected operations
// with a human-readable reason; they are never treated as fatal.
var (
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrInvalidMFACode      = errors.New("invalid MFA code")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrPasswordTooShort    = errors.New("password must be at least 8 characters")
	ErrDuplicateUsername   = errors.New("username already exists")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrMissingVerification = errors.New("verification id and type are required")
	ErrMFANotSetUp         = errors.New("mfa secret has not been generated")
	ErrMFAAlreadyEnabled   = errors.New("mfa is already enabled")
	ErrMissingFields       = errors.New("required fields are missing")
	ErrInvalidReviewStatus = errors.New("invalid review status")
)

// Authorization and lifecycle conditions.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrSelfDeletion     = errors.New("accounts cannot delete themselves")
)
