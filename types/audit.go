package types

import "time"

// Audit action names recorded by the core flows. Handlers performing
// other privileged mutations record their own action names alongside
// these.
const (
	AuditActionLogin          = "login"
	AuditActionLoginFailed    = "login_failed"
	AuditActionLogout         = "logout"
	AuditActionRegister       = "register"
	AuditActionChangePassword = "change_password"
	AuditActionUpdateProfile  = "update_profile"
	AuditActionMFASetup       = "mfa_setup"
	AuditActionMFAEnabled     = "mfa_enabled"
	AuditActionMFADisabled    = "mfa_disabled"
	AuditActionVerifyUser     = "verify_user"
	AuditActionDeleteUser     = "delete_user"
	AuditActionAddEntity      = "add_entity"
	AuditActionEditEntity     = "edit_entity"
	AuditActionVerifyEntity   = "verify_entity"
	AuditActionSubmitReport   = "submit_fraud_report"
	AuditActionReviewReport   = "review_fraud_report"
)

// AuditEvent is an append-only record of a security- or data-relevant
// action. Events are never updated or deleted.
type AuditEvent struct {
	// ID is the unique identifier of the event.
	ID int `json:"id" db:"id"`

	// UserID identifies the acting account, or nil for anonymous actions.
	UserID *int `json:"user_id,omitempty" db:"user_id"`

	// Action names what happened, e.g. "login" or "verify_entity".
	Action string `json:"action" db:"action"`

	// ResourceType names the kind of resource acted on, if any.
	ResourceType string `json:"resource_type,omitempty" db:"resource_type"`

	// ResourceID identifies the resource acted on, or nil.
	ResourceID *int `json:"resource_id,omitempty" db:"resource_id"`

	// IPAddress is the network origin of the request.
	IPAddress string `json:"ip_address" db:"ip_address"`

	// UserAgent is the client descriptor of the request.
	UserAgent string `json:"user_agent" db:"user_agent"`

	// Details holds free-form context for the event.
	Details string `json:"details,omitempty" db:"details"`

	// CreatedAt is the timestamp of the event.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
