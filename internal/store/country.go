package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rmgwatch/apiserver/types"
)

const countryColumns = `id, country_name, country_code, fraud_count, high_risk_count,
	critical_count, total_entities, verified_entities, fraud_trend, last_updated`

// CountryRepository handles persistence for country fraud profiles.
type CountryRepository struct {
	db *sql.DB
}

func NewCountryRepository(db *sql.DB) *CountryRepository {
	return &CountryRepository{db: db}
}

func scanCountry(row interface{ Scan(...any) error }) (types.CountryProfile, error) {
	var profile types.CountryProfile
	err := row.Scan(
		&profile.ID,
		&profile.CountryName,
		&profile.CountryCode,
		&profile.FraudCount,
		&profile.HighRiskCount,
		&profile.CriticalCount,
		&profile.TotalEntities,
		&profile.VerifiedEntities,
		&profile.FraudTrend,
		&profile.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.CountryProfile{}, ErrNotFound
		}
		return types.CountryProfile{}, err
	}
	return profile, nil
}

// List returns all profiles ordered by fraud count, worst first.
func (r *CountryRepository) List(ctx context.Context) ([]types.CountryProfile, error) {
	const query = `SELECT ` + countryColumns + ` FROM country_profiles ORDER BY fraud_count DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []types.CountryProfile
	for rows.Next() {
		profile, err := scanCountry(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

func (r *CountryRepository) GetByCode(ctx context.Context, countryCode string) (types.CountryProfile, error) {
	const query = `SELECT ` + countryColumns + ` FROM country_profiles WHERE country_code = $1`
	return scanCountry(r.db.QueryRowContext(ctx, query, countryCode))
}

// Upsert writes a profile keyed by country code, creating it on first
// sight of the country.
func (r *CountryRepository) Upsert(ctx context.Context, profile types.CountryProfile) (types.CountryProfile, error) {
	profile.LastUpdated = time.Now()

	const query = `
		INSERT INTO country_profiles (country_name, country_code, fraud_count,
			high_risk_count, critical_count, total_entities, verified_entities,
			fraud_trend, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (country_code) DO UPDATE SET
			country_name = EXCLUDED.country_name,
			fraud_count = EXCLUDED.fraud_count,
			high_risk_count = EXCLUDED.high_risk_count,
			critical_count = EXCLUDED.critical_count,
			total_entities = EXCLUDED.total_entities,
			verified_entities = EXCLUDED.verified_entities,
			fraud_trend = EXCLUDED.fraud_trend,
			last_updated = EXCLUDED.last_updated
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		profile.CountryName,
		profile.CountryCode,
		profile.FraudCount,
		profile.HighRiskCount,
		profile.CriticalCount,
		profile.TotalEntities,
		profile.VerifiedEntities,
		profile.FraudTrend,
		profile.LastUpdated,
	).Scan(&profile.ID); err != nil {
		return types.CountryProfile{}, err
	}
	return profile, nil
}
