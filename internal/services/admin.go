package services

import (
	"context"

	"github.com/rmgwatch/apiserver/internal/access"
	"github.com/rmgwatch/apiserver/types"
)

// AuditReader lists recorded audit events for the admin panel.
type AuditReader interface {
	List(ctx context.Context, offset, limit int) ([]types.AuditEvent, int, error)
}

// PlatformStats is the admin dashboard summary.
type PlatformStats struct {
	TotalUsers       int `json:"total_users"`
	VerifiedUsers    int `json:"verified_users"`
	TotalEntities    int `json:"total_entities"`
	VerifiedEntities int `json:"verified_entities"`
	TotalReports     int `json:"total_reports"`
	PendingReports   int `json:"pending_reports"`
}

// AdminService covers the admin-only operations: verifying and deleting
// accounts, the dashboard and the audit trail.
type AdminService struct {
	users    UserRepository
	entities EntityRepository
	reports  ReportRepository
	events   AuditReader
	audit    *AuditRecorder
}

func NewAdminService(users UserRepository, entities EntityRepository, reports ReportRepository, events AuditReader, audit *AuditRecorder) *AdminService {
	return &AdminService{
		users:    users,
		entities: entities,
		reports:  reports,
		events:   events,
		audit:    audit,
	}
}

func (s *AdminService) ListUsers(ctx context.Context, actor *types.User, offset, limit int) ([]types.User, int, error) {
	if !access.Permitted(actor, access.ActionViewAdminPanel) {
		return nil, 0, ErrPermissionDenied
	}
	if limit <= 0 {
		limit = 20
	}
	return s.users.List(ctx, offset, limit)
}

// VerifyUser marks an account as identity-verified, unlocking entity
// creation for it.
func (s *AdminService) VerifyUser(ctx context.Context, actor *types.User, targetID int, meta RequestMeta) error {
	if !access.Permitted(actor, access.ActionVerifyUser) {
		return ErrPermissionDenied
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.users.SetVerified(ctx, targetID, true); err != nil {
		return err
	}

	s.audit.RecordResource(ctx, &actor.ID, types.AuditActionVerifyUser, "user", &targetID, meta,
		"username: "+target.Username)
	return nil
}

// DeleteUser removes an account. Self-deletion is always refused, even
// for admins; another admin has to do it.
func (s *AdminService) DeleteUser(ctx context.Context, actor *types.User, targetID int, meta RequestMeta) error {
	if actor != nil && actor.ID == targetID {
		return ErrSelfDeletion
	}
	if !access.CanDeleteUser(actor, targetID) {
		return ErrPermissionDenied
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, targetID); err != nil {
		return err
	}

	s.audit.RecordResource(ctx, &actor.ID, types.AuditActionDeleteUser, "user", &targetID, meta,
		"username: "+target.Username)
	return nil
}

func (s *AdminService) Stats(ctx context.Context, actor *types.User) (PlatformStats, error) {
	if !access.Permitted(actor, access.ActionViewAdminPanel) {
		return PlatformStats{}, ErrPermissionDenied
	}

	var stats PlatformStats
	var err error
	if stats.TotalUsers, err = s.users.Count(ctx); err != nil {
		return PlatformStats{}, err
	}
	if stats.VerifiedUsers, err = s.users.CountVerified(ctx); err != nil {
		return PlatformStats{}, err
	}
	if stats.TotalEntities, err = s.entities.Count(ctx); err != nil {
		return PlatformStats{}, err
	}
	if stats.VerifiedEntities, err = s.entities.CountVerified(ctx); err != nil {
		return PlatformStats{}, err
	}
	if stats.TotalReports, err = s.reports.Count(ctx); err != nil {
		return PlatformStats{}, err
	}
	if stats.PendingReports, err = s.reports.CountByStatus(ctx, types.ReportStatusPending); err != nil {
		return PlatformStats{}, err
	}
	return stats, nil
}

func (s *AdminService) AuditLogs(ctx context.Context, actor *types.User, offset, limit int) ([]types.AuditEvent, int, error) {
	if !access.Permitted(actor, access.ActionViewAuditLogs) {
		return nil, 0, ErrPermissionDenied
	}
	return s.events.List(ctx, offset, limit)
}
