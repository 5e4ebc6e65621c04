package access

import (
	"testing"

	"github.com/rmgwatch/apiserver/types"
)

func TestPermitted_AnonymousOnlyPublicActions(t *testing.T) {
	open := []Action{ActionViewPublicData, ActionSubmitReport}
	for _, action := range open {
		if !Permitted(nil, action) {
			t.Fatalf("anonymous should be permitted %q", action)
		}
	}

	closed := []Action{
		ActionEditOwnProfile, ActionChangeOwnPassword, ActionManageOwnMFA,
		ActionViewOwnReports, ActionCreateEntity, ActionEditEntity,
		ActionVerifyEntity, ActionReviewReport, ActionVerifyUser,
		ActionDeleteUser, ActionViewAuditLogs, ActionViewAdminPanel,
	}
	for _, action := range closed {
		if Permitted(nil, action) {
			t.Fatalf("anonymous should not be permitted %q", action)
		}
	}
}

func TestPermitted_VerificationGatesEntityCreation(t *testing.T) {
	unverified := &types.User{ID: 1, Role: types.RoleUser}
	if Permitted(unverified, ActionCreateEntity) {
		t.Fatal("unverified user should not create entities")
	}

	verified := &types.User{ID: 1, Role: types.RoleUser, IsVerified: true}
	if !Permitted(verified, ActionCreateEntity) {
		t.Fatal("verified user should create entities")
	}

	// Verification is checked independent of role: an unverified admin
	// is still blocked.
	unverifiedAdmin := &types.User{ID: 2, Role: types.RoleAdmin}
	if Permitted(unverifiedAdmin, ActionCreateEntity) {
		t.Fatal("unverified admin should not create entities")
	}
}

func TestPermitted_ModeratorActions(t *testing.T) {
	user := &types.User{ID: 1, Role: types.RoleUser, IsVerified: true}
	moderator := &types.User{ID: 2, Role: types.RoleModerator}
	admin := &types.User{ID: 3, Role: types.RoleAdmin}

	for _, action := range []Action{ActionVerifyEntity, ActionReviewReport} {
		if Permitted(user, action) {
			t.Fatalf("user should not be permitted %q", action)
		}
		if !Permitted(moderator, action) {
			t.Fatalf("moderator should be permitted %q", action)
		}
		if !Permitted(admin, action) {
			t.Fatalf("admin should be permitted %q", action)
		}
	}

	// Edit is open to verified users as well as moderators.
	if !Permitted(user, ActionEditEntity) {
		t.Fatal("verified user should edit entities")
	}
	if Permitted(&types.User{ID: 4, Role: types.RoleUser}, ActionEditEntity) {
		t.Fatal("unverified user should not edit entities")
	}
	if !Permitted(moderator, ActionEditEntity) {
		t.Fatal("moderator should edit entities")
	}
}

func TestPermitted_AdminOnlyActions(t *testing.T) {
	moderator := &types.User{ID: 1, Role: types.RoleModerator, IsVerified: true}
	admin := &types.User{ID: 2, Role: types.RoleAdmin}

	for _, action := range []Action{ActionVerifyUser, ActionDeleteUser, ActionViewAuditLogs, ActionViewAdminPanel} {
		if Permitted(moderator, action) {
			t.Fatalf("moderator should not be permitted %q", action)
		}
		if !Permitted(admin, action) {
			t.Fatalf("admin should be permitted %q", action)
		}
	}
}

func TestPermitted_UnknownRoleRanksBelowUser(t *testing.T) {
	odd := &types.User{ID: 1, Role: "superuser"}
	if Permitted(odd, ActionEditOwnProfile) {
		t.Fatal("unknown role should not pass user-level checks")
	}
}

func TestCanDeleteUser_SelfDeletionForbidden(t *testing.T) {
	admin := &types.User{ID: 7, Role: types.RoleAdmin}

	if !CanDeleteUser(admin, 8) {
		t.Fatal("admin should delete other accounts")
	}
	if CanDeleteUser(admin, 7) {
		t.Fatal("admin must not delete their own account")
	}
	if CanDeleteUser(nil, 8) {
		t.Fatal("anonymous cannot delete accounts")
	}
	if CanDeleteUser(&types.User{ID: 1, Role: types.RoleModerator}, 8) {
		t.Fatal("moderator cannot delete accounts")
	}
}
