package types

import "time"

// Fraud trend values for a country profile.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// CountryProfile aggregates fraud statistics for one country,
// backing the country pages and the heatmap.
type CountryProfile struct {
	// ID is the unique identifier of the profile row.
	ID int `json:"id" db:"id"`

	// CountryName is the display name of the country.
	CountryName string `json:"country_name" db:"country_name"`

	// CountryCode is the ISO code, unique per profile.
	CountryCode string `json:"country_code" db:"country_code"`

	// FraudCount is the number of fraud reports against entities
	// in this country.
	FraudCount int `json:"fraud_count" db:"fraud_count"`

	// HighRiskCount is the number of those reports rated High.
	HighRiskCount int `json:"high_risk_count" db:"high_risk_count"`

	// CriticalCount is the number of those reports rated Critical.
	CriticalCount int `json:"critical_count" db:"critical_count"`

	// TotalEntities is the number of tracked entities in this country.
	TotalEntities int `json:"total_entities" db:"total_entities"`

	// VerifiedEntities is the number of those entities that are verified.
	VerifiedEntities int `json:"verified_entities" db:"verified_entities"`

	// FraudTrend summarizes the direction of recent activity:
	// increasing, decreasing or stable.
	FraudTrend string `json:"fraud_trend" db:"fraud_trend"`

	// LastUpdated is when the statistics were last recomputed.
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// RiskScore weighs the report counts into a single heatmap score.
// High reports count double, Critical triple.
func (c CountryProfile) RiskScore() int {
	return c.FraudCount + 2*c.HighRiskCount + 3*c.CriticalCount
}
