package services

import (
	"context"
	"strings"

	"github.com/rmgwatch/apiserver/internal/access"
	"github.com/rmgwatch/apiserver/internal/store"
	"github.com/rmgwatch/apiserver/types"
)

// EntityRepository defines persistence operations for entities.
type EntityRepository interface {
	List(ctx context.Context, filter store.EntityFilter, offset, limit int) ([]types.Entity, int, error)
	Get(ctx context.Context, id int) (types.Entity, error)
	FindByIdentity(ctx context.Context, name, entityType, countryCode string) (types.Entity, error)
	Create(ctx context.Context, entity types.Entity) (types.Entity, error)
	Update(ctx context.Context, entity types.Entity) (types.Entity, error)
	SetVerified(ctx context.Context, id int, verified bool) error
	Count(ctx context.Context) (int, error)
	CountVerified(ctx context.Context) (int, error)
	CountByCountry(ctx context.Context, countryCode string) (total, verified int, err error)
	ListCountryCodes(ctx context.Context) ([]string, error)
}

// EntityService encapsulates entity use-cases.
type EntityService struct {
	repo  EntityRepository
	audit *AuditRecorder
}

func NewEntityService(repo EntityRepository, audit *AuditRecorder) *EntityService {
	return &EntityService{repo: repo, audit: audit}
}

func (s *EntityService) List(ctx context.Context, filter store.EntityFilter, offset, limit int) ([]types.Entity, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, filter, offset, limit)
}

func (s *EntityService) Get(ctx context.Context, id int) (types.Entity, error) {
	return s.repo.Get(ctx, id)
}

// Create adds an entity record. Only verified accounts may create
// entities; new records always start unverified.
func (s *EntityService) Create(ctx context.Context, actor *types.User, entity types.Entity, meta RequestMeta) (types.Entity, error) {
	if !access.Permitted(actor, access.ActionCreateEntity) {
		return types.Entity{}, ErrPermissionDenied
	}
	if err := validateEntity(&entity); err != nil {
		return types.Entity{}, err
	}
	entity.IsVerified = false

	created, err := s.repo.Create(ctx, entity)
	if err != nil {
		return types.Entity{}, err
	}

	s.audit.RecordResource(ctx, &actor.ID, types.AuditActionAddEntity, "entity", &created.ID, meta,
		"entity type: "+created.EntityType+", risk level: "+created.RiskLevel)
	return created, nil
}

func (s *EntityService) Update(ctx context.Context, actor *types.User, entity types.Entity, meta RequestMeta) (types.Entity, error) {
	if !access.Permitted(actor, access.ActionEditEntity) {
		return types.Entity{}, ErrPermissionDenied
	}
	if err := validateEntity(&entity); err != nil {
		return types.Entity{}, err
	}

	updated, err := s.repo.Update(ctx, entity)
	if err != nil {
		return types.Entity{}, err
	}

	s.audit.RecordResource(ctx, &actor.ID, types.AuditActionEditEntity, "entity", &updated.ID, meta, "")
	return updated, nil
}

// Verify marks an entity record as attested by a moderator or admin.
func (s *EntityService) Verify(ctx context.Context, actor *types.User, id int, meta RequestMeta) error {
	if !access.Permitted(actor, access.ActionVerifyEntity) {
		return ErrPermissionDenied
	}
	if err := s.repo.SetVerified(ctx, id, true); err != nil {
		return err
	}

	s.audit.RecordResource(ctx, &actor.ID, types.AuditActionVerifyEntity, "entity", &id, meta, "")
	return nil
}

func validateEntity(entity *types.Entity) error {
	entity.Name = strings.TrimSpace(entity.Name)
	if entity.Name == "" || entity.EntityType == "" || entity.CountryCode == "" {
		return ErrMissingFields
	}
	if entity.RiskLevel == "" {
		entity.RiskLevel = types.RiskLow
	}
	return nil
}
