package services

import (
	"context"
	"errors"

	"github.com/rmgwatch/apiserver/internal/store"
	"github.com/rmgwatch/apiserver/types"
)

// CountryRepository defines persistence operations for country profiles.
type CountryRepository interface {
	List(ctx context.Context) ([]types.CountryProfile, error)
	GetByCode(ctx context.Context, countryCode string) (types.CountryProfile, error)
	Upsert(ctx context.Context, profile types.CountryProfile) (types.CountryProfile, error)
}

// CountryOverview is the country index page payload: all profiles plus
// global totals.
type CountryOverview struct {
	Countries     []types.CountryProfile `json:"countries"`
	TotalFraud    int                    `json:"total_fraud_count"`
	TotalHighRisk int                    `json:"total_high_risk"`
	TotalCritical int                    `json:"total_critical"`
}

// CountryDetail is one country's profile with its entity statistics and
// fraud-type distribution.
type CountryDetail struct {
	Profile        types.CountryProfile   `json:"profile"`
	EntityTotal    int                    `json:"entity_total"`
	EntityVerified int                    `json:"entity_verified"`
	FraudTypes     []store.FraudTypeCount `json:"fraud_types"`
}

// HeatmapPoint is one country on the fraud heatmap.
type HeatmapPoint struct {
	CountryCode string      `json:"country_code"`
	CountryName string      `json:"country_name"`
	FraudCount  int         `json:"fraud_count"`
	RiskScore   int         `json:"risk_score"`
	Coordinates Coordinates `json:"coordinates"`
}

// CountryService aggregates fraud statistics per country.
type CountryService struct {
	repo     CountryRepository
	entities EntityRepository
	reports  ReportRepository
}

func NewCountryService(repo CountryRepository, entities EntityRepository, reports ReportRepository) *CountryService {
	return &CountryService{repo: repo, entities: entities, reports: reports}
}

func (s *CountryService) Overview(ctx context.Context) (CountryOverview, error) {
	countries, err := s.repo.List(ctx)
	if err != nil {
		return CountryOverview{}, err
	}

	overview := CountryOverview{Countries: countries}
	for _, country := range countries {
		overview.TotalFraud += country.FraudCount
		overview.TotalHighRisk += country.HighRiskCount
		overview.TotalCritical += country.CriticalCount
	}
	return overview, nil
}

// Detail returns one country's profile, creating an empty profile on
// first sight of the code.
func (s *CountryService) Detail(ctx context.Context, countryCode string) (CountryDetail, error) {
	profile, err := s.repo.GetByCode(ctx, countryCode)
	if errors.Is(err, store.ErrNotFound) {
		profile, err = s.repo.Upsert(ctx, types.CountryProfile{
			CountryName: CountryName(countryCode),
			CountryCode: countryCode,
			FraudTrend:  types.TrendStable,
		})
	}
	if err != nil {
		return CountryDetail{}, err
	}

	total, verified, err := s.entities.CountByCountry(ctx, countryCode)
	if err != nil {
		return CountryDetail{}, err
	}
	fraudTypes, err := s.reports.FraudTypeDistribution(ctx, countryCode)
	if err != nil {
		return CountryDetail{}, err
	}

	return CountryDetail{
		Profile:        profile,
		EntityTotal:    total,
		EntityVerified: verified,
		FraudTypes:     fraudTypes,
	}, nil
}

// Heatmap weighs each country's report counts into a single score:
// every report counts once, High twice, Critical three times.
func (s *CountryService) Heatmap(ctx context.Context) ([]HeatmapPoint, error) {
	countries, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	points := make([]HeatmapPoint, 0, len(countries))
	for _, country := range countries {
		points = append(points, HeatmapPoint{
			CountryCode: country.CountryCode,
			CountryName: country.CountryName,
			FraudCount:  country.FraudCount,
			RiskScore:   country.RiskScore(),
			Coordinates: CountryCoordinates(country.CountryCode),
		})
	}
	return points, nil
}

// Recompute refreshes one country's aggregates from the entity and
// report tables. The trend compares the new fraud count against the
// stored one.
func (s *CountryService) Recompute(ctx context.Context, countryCode string) (types.CountryProfile, error) {
	previous, err := s.repo.GetByCode(ctx, countryCode)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return types.CountryProfile{}, err
	}

	entityTotal, entityVerified, err := s.entities.CountByCountry(ctx, countryCode)
	if err != nil {
		return types.CountryProfile{}, err
	}
	fraudCount, highRisk, critical, err := s.reports.CountByCountryRisk(ctx, countryCode)
	if err != nil {
		return types.CountryProfile{}, err
	}

	trend := types.TrendStable
	switch {
	case fraudCount > previous.FraudCount:
		trend = types.TrendIncreasing
	case fraudCount < previous.FraudCount:
		trend = types.TrendDecreasing
	}

	name := previous.CountryName
	if name == "" {
		name = CountryName(countryCode)
	}

	return s.repo.Upsert(ctx, types.CountryProfile{
		CountryName:      name,
		CountryCode:      countryCode,
		FraudCount:       fraudCount,
		HighRiskCount:    highRisk,
		CriticalCount:    critical,
		TotalEntities:    entityTotal,
		VerifiedEntities: entityVerified,
		FraudTrend:       trend,
	})
}

// RecomputeAll refreshes every country that has entities.
func (s *CountryService) RecomputeAll(ctx context.Context) error {
	codes, err := s.entities.ListCountryCodes(ctx)
	if err != nil {
		return err
	}
	for _, code := range codes {
		if _, err := s.Recompute(ctx, code); err != nil {
			return err
		}
	}
	return nil
}
