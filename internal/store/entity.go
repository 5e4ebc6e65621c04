package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rmgwatch/apiserver/types"
)

const entityColumns = `id, name, entity_type, country_code, registration_number,
	contact_info, description, risk_level, is_verified, created_at, updated_at`

// EntityFilter narrows and orders an entity listing.
type EntityFilter struct {
	Query       string
	EntityType  string
	RiskLevel   string
	CountryCode string
	SortBy      string
	SortOrder   string
}

// EntityRepository handles persistence for entities.
type EntityRepository struct {
	db *sql.DB
}

func NewEntityRepository(db *sql.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

func scanEntity(row interface{ Scan(...any) error }) (types.Entity, error) {
	var entity types.Entity
	err := row.Scan(
		&entity.ID,
		&entity.Name,
		&entity.EntityType,
		&entity.CountryCode,
		&entity.RegistrationNumber,
		&entity.ContactInfo,
		&entity.Description,
		&entity.RiskLevel,
		&entity.IsVerified,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Entity{}, ErrNotFound
		}
		return types.Entity{}, err
	}
	return entity, nil
}

func (r *EntityRepository) List(ctx context.Context, filter EntityFilter, offset, limit int) ([]types.Entity, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	where := " WHERE 1=1"
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Query != "" {
		p := arg("%" + filter.Query + "%")
		where += fmt.Sprintf(" AND (name ILIKE %s OR description ILIKE %s OR registration_number ILIKE %s)", p, p, p)
	}
	if filter.EntityType != "" {
		where += " AND entity_type = " + arg(filter.EntityType)
	}
	if filter.RiskLevel != "" {
		where += " AND risk_level = " + arg(filter.RiskLevel)
	}
	if filter.CountryCode != "" {
		where += " AND country_code = " + arg(filter.CountryCode)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM entities"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + entityColumns + " FROM entities" + where +
		" ORDER BY " + entityOrderClause(filter.SortBy, filter.SortOrder) +
		" OFFSET " + arg(offset) + " LIMIT " + arg(limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entities := make([]types.Entity, 0, limit)
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, 0, err
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entities, total, nil
}

// entityOrderClause whitelists sortable columns; anything else falls
// back to newest-first.
func entityOrderClause(sortBy, sortOrder string) string {
	direction := "DESC"
	if sortOrder == "asc" {
		direction = "ASC"
	}
	switch sortBy {
	case "name":
		return "name " + direction
	case "risk_level":
		return `CASE risk_level
			WHEN 'Low' THEN 1 WHEN 'Medium' THEN 2 WHEN 'High' THEN 3 WHEN 'Critical' THEN 4
			ELSE 0 END ` + direction
	default:
		return "created_at " + direction
	}
}

func (r *EntityRepository) Get(ctx context.Context, id int) (types.Entity, error) {
	const query = `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`
	return scanEntity(r.db.QueryRowContext(ctx, query, id))
}

// FindByIdentity locates an entity by the (name, type, country) triple
// used for deduplication during report submission.
func (r *EntityRepository) FindByIdentity(ctx context.Context, name, entityType, countryCode string) (types.Entity, error) {
	const query = `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE name = $1 AND entity_type = $2 AND country_code = $3`
	return scanEntity(r.db.QueryRowContext(ctx, query, name, entityType, countryCode))
}

func (r *EntityRepository) Create(ctx context.Context, entity types.Entity) (types.Entity, error) {
	now := time.Now()
	entity.CreatedAt = now
	entity.UpdatedAt = now

	const query = `
		INSERT INTO entities (name, entity_type, country_code, registration_number,
			contact_info, description, risk_level, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		entity.Name,
		entity.EntityType,
		entity.CountryCode,
		entity.RegistrationNumber,
		entity.ContactInfo,
		entity.Description,
		entity.RiskLevel,
		entity.IsVerified,
		entity.CreatedAt,
		entity.UpdatedAt,
	).Scan(&entity.ID); err != nil {
		return types.Entity{}, err
	}
	return entity, nil
}

func (r *EntityRepository) Update(ctx context.Context, entity types.Entity) (types.Entity, error) {
	entity.UpdatedAt = time.Now()

	const query = `
		UPDATE entities
		SET name = $1,
			entity_type = $2,
			country_code = $3,
			registration_number = $4,
			contact_info = $5,
			description = $6,
			risk_level = $7,
			updated_at = $8
		WHERE id = $9`
	result, err := r.db.ExecContext(
		ctx,
		query,
		entity.Name,
		entity.EntityType,
		entity.CountryCode,
		entity.RegistrationNumber,
		entity.ContactInfo,
		entity.Description,
		entity.RiskLevel,
		entity.UpdatedAt,
		entity.ID,
	)
	if err != nil {
		return types.Entity{}, err
	}
	if err := requireAffected(result); err != nil {
		return types.Entity{}, err
	}
	return entity, nil
}

func (r *EntityRepository) SetVerified(ctx context.Context, id int, verified bool) error {
	const query = `UPDATE entities SET is_verified = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, verified, time.Now(), id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *EntityRepository) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM entities`
	var total int
	err := r.db.QueryRowContext(ctx, query).Scan(&total)
	return total, err
}

func (r *EntityRepository) CountVerified(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM entities WHERE is_verified`
	var total int
	err := r.db.QueryRowContext(ctx, query).Scan(&total)
	return total, err
}

// CountByCountry returns the total and verified entity counts for one
// country, used by the statistics recompute.
func (r *EntityRepository) CountByCountry(ctx context.Context, countryCode string) (total, verified int, err error) {
	const query = `
		SELECT COUNT(1), COUNT(1) FILTER (WHERE is_verified)
		FROM entities
		WHERE country_code = $1`
	err = r.db.QueryRowContext(ctx, query, countryCode).Scan(&total, &verified)
	return total, verified, err
}

// ListCountryCodes returns the distinct country codes present in the
// entity table.
func (r *EntityRepository) ListCountryCodes(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT country_code FROM entities ORDER BY country_code`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}
