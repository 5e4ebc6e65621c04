// Package access maps an authenticated identity and its role to the set
// of actions it may perform. Role and account verification are separate
// gates: verification is an admin's attestation of the user's external
// credential and is checked on top of the role for some actions.
package access

import "github.com/rmgwatch/apiserver/types"

// Action identifies an operation subject to authorization.
type Action string

const (
	// Open to everyone, including anonymous visitors.
	ActionViewPublicData Action = "view_public_data"
	ActionSubmitReport   Action = "submit_report"

	// Require an authenticated account.
	ActionEditOwnProfile    Action = "edit_own_profile"
	ActionChangeOwnPassword Action = "change_own_password"
	ActionManageOwnMFA      Action = "manage_own_mfa"
	ActionViewOwnReports    Action = "view_own_reports"

	// Require a verified account, regardless of role.
	ActionCreateEntity Action = "create_entity"

	// Moderator and above.
	ActionEditEntity   Action = "edit_entity"
	ActionVerifyEntity Action = "verify_entity"
	ActionReviewReport Action = "review_report"

	// Admin only.
	ActionVerifyUser     Action = "verify_user"
	ActionDeleteUser     Action = "delete_user"
	ActionViewAuditLogs  Action = "view_audit_logs"
	ActionViewAdminPanel Action = "view_admin_panel"
)

// roleRank orders roles by privilege; unknown roles rank below user.
func roleRank(role string) int {
	switch role {
	case types.RoleAdmin:
		return 3
	case types.RoleModerator:
		return 2
	case types.RoleUser:
		return 1
	default:
		return 0
	}
}

// Permitted reports whether the given account (nil for anonymous) may
// perform the action. It is a pure function of the account's role and
// verification flag.
func Permitted(user *types.User, action Action) bool {
	switch action {
	case ActionViewPublicData, ActionSubmitReport:
		return true
	}

	if user == nil {
		return false
	}

	switch action {
	case ActionEditOwnProfile, ActionChangeOwnPassword, ActionManageOwnMFA, ActionViewOwnReports:
		return roleRank(user.Role) >= roleRank(types.RoleUser)

	case ActionCreateEntity:
		// Catalog pollution control: verification gates entity creation
		// independent of role.
		return user.IsVerified

	case ActionEditEntity:
		// Verified reporters may correct records; moderators always can.
		return user.IsVerified || roleRank(user.Role) >= roleRank(types.RoleModerator)

	case ActionVerifyEntity, ActionReviewReport:
		return roleRank(user.Role) >= roleRank(types.RoleModerator)

	case ActionVerifyUser, ActionDeleteUser, ActionViewAuditLogs, ActionViewAdminPanel:
		return user.Role == types.RoleAdmin

	default:
		return false
	}
}

// CanDeleteUser applies the delete-user rule: admins may delete any
// account except their own. Self-deletion is forbidden for every role.
func CanDeleteUser(actor *types.User, targetID int) bool {
	if actor == nil || !Permitted(actor, ActionDeleteUser) {
		return false
	}
	return actor.ID != targetID
}
