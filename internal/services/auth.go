package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/rmgwatch/apiserver/internal/store"
	"github.com/rmgwatch/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultSessionTTL = 24 * time.Hour
	minPasswordLength = 8

	// TOTP parameters: 6 digits, 30-second steps, and a tolerance of
	// one step either side of now. The ±1 skew widens the valid-code
	// window to 90 seconds to absorb client clock drift.
	totpPeriod     = 30
	totpSkew       = 1
	mfaSecretBytes = 20 // 160 bits of entropy, base32-encoded
	mfaIssuer      = "RMGWatch"
)

// UserRepository defines persistence operations for user accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, id int, username, email string) error
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id int, at time.Time) error
	SetMFA(ctx context.Context, id int, secret string, enabled, expectEnabled bool) error
	SetVerified(ctx context.Context, id int, verified bool) error
	Delete(ctx context.Context, id int) error
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	Count(ctx context.Context) (int, error)
	CountVerified(ctx context.Context) (int, error)
}

// SessionRepository defines persistence operations for login sessions.
type SessionRepository interface {
	Create(ctx context.Context, session types.Session) (types.Session, error)
	Get(ctx context.Context, id string) (types.Session, error)
	Revoke(ctx context.Context, id string, at time.Time) error
}

// AuthService is the login/registration state machine. It owns password
// hashing, TOTP verification, session issuance and the audit side
// effects of each transition.
type AuthService struct {
	users      UserRepository
	sessions   SessionRepository
	audit      *AuditRecorder
	secret     []byte
	sessionTTL time.Duration
	now        func() time.Time
}

func NewAuthService(users UserRepository, sessions SessionRepository, audit *AuditRecorder, jwtSecret string) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		audit:      audit,
		secret:     []byte(jwtSecret),
		sessionTTL: defaultSessionTTL,
		now:        time.Now,
	}
}

// RegisterInput is the payload for account registration.
type RegisterInput struct {
	Username         string
	Email            string
	Password         string
	ConfirmPassword  string
	VerificationID   string
	VerificationType string
}

// Register creates a new unverified account. It does not authenticate:
// the caller must log in separately, and privileged actions further
// require admin verification.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta RequestMeta) (types.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.VerificationID = strings.TrimSpace(in.VerificationID)

	if in.Password != in.ConfirmPassword {
		return types.User{}, ErrPasswordMismatch
	}
	if in.VerificationID == "" || in.VerificationType == "" {
		return types.User{}, ErrMissingVerification
	}

	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return types.User{}, ErrDuplicateUsername
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}
	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.users.Create(ctx, types.User{
		Username:         in.Username,
		Email:            in.Email,
		Role:             types.RoleUser,
		PasswordHash:     hash,
		IsVerified:       false,
		VerificationID:   in.VerificationID,
		VerificationType: in.VerificationType,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Raced another registration past the pre-checks.
			return types.User{}, ErrDuplicateUsername
		}
		return types.User{}, err
	}

	s.audit.RecordResource(ctx, &user.ID, types.AuditActionRegister, "user", &user.ID, meta,
		"verification type: "+in.VerificationType)
	return user, nil
}

// LoginStatus distinguishes a completed login from an MFA challenge.
type LoginStatus string

const (
	// LoginAuthenticated means a session was established.
	LoginAuthenticated LoginStatus = "authenticated"

	// LoginMFARequired means credentials were accepted but the account
	// has MFA enabled and no code was supplied. No session exists yet;
	// the client must retry with a code.
	LoginMFARequired LoginStatus = "mfa_required"
)

// LoginInput is the payload for login. MFACode is empty on the first
// leg of an MFA login.
type LoginInput struct {
	Username string
	Password string
	MFACode  string
}

// LoginResult is the outcome of a successful or MFA-pending login.
type LoginResult struct {
	Status  LoginStatus
	Token   string
	Session types.Session
	User    types.User
}

// Login validates credentials, branches into the MFA challenge when the
// account requires it, and on success mints a session and records the
// login.
//
// Failed attempts — unknown username, wrong password or bad code — all
// record one generic, non-identifying audit event so brute force is
// observable without leaking which accounts exist.
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta RequestMeta) (LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(in.Username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.audit.Record(ctx, nil, types.AuditActionLoginFailed, meta)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if !checkPassword(user.PasswordHash, in.Password) {
		s.audit.Record(ctx, nil, types.AuditActionLoginFailed, meta)
		return LoginResult{}, ErrInvalidCredentials
	}

	if user.MFAEnabled {
		if in.MFACode == "" {
			return LoginResult{Status: LoginMFARequired, User: user}, nil
		}
		if !s.VerifyCode(user, in.MFACode, s.now()) {
			s.audit.Record(ctx, nil, types.AuditActionLoginFailed, meta)
			return LoginResult{}, ErrInvalidMFACode
		}
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return LoginResult{}, err
	}
	user.LastLogin = &now

	session, err := s.sessions.Create(ctx, types.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	})
	if err != nil {
		return LoginResult{}, err
	}

	token, err := s.issueToken(user.ID, session)
	if err != nil {
		return LoginResult{}, err
	}

	s.audit.Record(ctx, &user.ID, types.AuditActionLogin, meta)
	return LoginResult{
		Status:  LoginAuthenticated,
		Token:   token,
		Session: session,
		User:    user,
	}, nil
}

// Logout revokes the session and records the event.
func (s *AuthService) Logout(ctx context.Context, actorID int, sessionID string, meta RequestMeta) error {
	if err := s.sessions.Revoke(ctx, sessionID, s.now()); err != nil {
		return err
	}
	s.audit.Record(ctx, &actorID, types.AuditActionLogout, meta)
	return nil
}

// Authenticate resolves a bearer token to its user and live session.
// Tokens referencing revoked or expired sessions are rejected even when
// the signature is still valid.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (types.User, types.Session, error) {
	userID, sessionID, err := s.parseToken(tokenString)
	if err != nil {
		return types.User{}, types.Session{}, ErrInvalidCredentials
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return types.User{}, types.Session{}, ErrInvalidCredentials
	}
	if session.UserID != userID || !session.Active(s.now()) {
		return types.User{}, types.Session{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, types.Session{}, ErrInvalidCredentials
	}
	return user, session, nil
}

// ChangePassword re-proves the current password before rehashing.
func (s *AuthService) ChangePassword(ctx context.Context, userID int, current, newPassword, confirm string, meta RequestMeta) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !checkPassword(user.PasswordHash, current) {
		return ErrInvalidPassword
	}
	if newPassword != confirm {
		return ErrPasswordMismatch
	}
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.audit.Record(ctx, &userID, types.AuditActionChangePassword, meta)
	return nil
}

// UpdateProfile changes username and/or email, re-checking uniqueness.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int, username, email string, meta RequestMeta) (types.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		username = user.Username
	}
	if email == "" {
		email = user.Email
	}

	if username != user.Username {
		if _, err := s.users.GetByUsername(ctx, username); err == nil {
			return types.User{}, ErrDuplicateUsername
		} else if !errors.Is(err, store.ErrNotFound) {
			return types.User{}, err
		}
	}
	if email != user.Email {
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			return types.User{}, ErrDuplicateEmail
		} else if !errors.Is(err, store.ErrNotFound) {
			return types.User{}, err
		}
	}

	if err := s.users.UpdateProfile(ctx, userID, username, email); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrDuplicateUsername
		}
		return types.User{}, err
	}
	user.Username = username
	user.Email = email

	s.audit.Record(ctx, &userID, types.AuditActionUpdateProfile, meta)
	return user, nil
}

// MFAProvisioning is the material returned by SetupMFA. URL is an
// otpauth:// provisioning URI (issuer, account label and secret) ready
// to be rendered as a scannable code by the caller.
type MFAProvisioning struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// SetupMFA generates a fresh secret and stores it in a pending state.
// MFA is not enabled until EnableMFA confirms possession of the secret
// with a valid code.
func (s *AuthService) SetupMFA(ctx context.Context, userID int, meta RequestMeta) (MFAProvisioning, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return MFAProvisioning{}, err
	}
	if user.MFAEnabled {
		return MFAProvisioning{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      mfaIssuer,
		AccountName: user.Email,
		SecretSize:  mfaSecretBytes,
	})
	if err != nil {
		return MFAProvisioning{}, err
	}

	if err := s.users.SetMFA(ctx, userID, key.Secret(), false, false); err != nil {
		return MFAProvisioning{}, err
	}

	s.audit.Record(ctx, &userID, types.AuditActionMFASetup, meta)
	return MFAProvisioning{Secret: key.Secret(), URL: key.URL()}, nil
}

// EnableMFA activates the pending secret once the user proves they hold
// it. On a bad code nothing changes.
func (s *AuthService) EnableMFA(ctx context.Context, userID int, code string, meta RequestMeta) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFASecret == "" {
		return ErrMFANotSetUp
	}
	if !s.VerifyCode(user, code, s.now()) {
		return ErrInvalidMFACode
	}

	// Conditional on still-disabled state; a concurrent disable that
	// cleared the secret surfaces as store.ErrConflict.
	if err := s.users.SetMFA(ctx, userID, user.MFASecret, true, false); err != nil {
		return err
	}

	s.audit.Record(ctx, &userID, types.AuditActionMFAEnabled, meta)
	return nil
}

// DisableMFA requires re-proof of the account password (not an MFA
// code) and clears both the flag and the secret.
func (s *AuthService) DisableMFA(ctx context.Context, userID int, password string, meta RequestMeta) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !checkPassword(user.PasswordHash, password) {
		return ErrInvalidPassword
	}

	if err := s.users.SetMFA(ctx, userID, "", false, true); err != nil {
		return err
	}

	s.audit.Record(ctx, &userID, types.AuditActionMFADisabled, meta)
	return nil
}

// VerifyCode checks a TOTP code against the account's secret at time t,
// accepting the current step and one step either side. An account with
// no secret always fails; that is a negative result, not an error.
func (s *AuthService) VerifyCode(user types.User, code string, t time.Time) bool {
	if user.MFASecret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), user.MFASecret, t, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func (s *AuthService) issueToken(userID int, session types.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		ID:        session.ID,
		IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *AuthService) parseToken(tokenString string) (userID int, sessionID string, err error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return 0, "", err
	}
	if !token.Valid {
		return 0, "", errors.New("invalid token")
	}

	userID, err = strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || userID < 1 {
		return 0, "", errors.New("invalid subject")
	}
	if strings.TrimSpace(claims.ID) == "" {
		return 0, "", errors.New("missing session id")
	}
	return userID, claims.ID, nil
}

// hashPassword computes a salted bcrypt hash. The cost makes offline
// brute force expensive; the plaintext is never stored or logged.
func hashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// checkPassword compares in constant time. A mismatch is a normal
// negative result.
func checkPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
