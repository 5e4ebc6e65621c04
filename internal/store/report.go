package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rmgwatch/apiserver/types"
)

const reportColumns = `id, title, fraud_type, risk_level, summary, detailed_description,
	sources, evidence_keys, is_anonymous, status, priority, entity_id, reporter_id,
	created_at, updated_at`

// FraudTypeCount is one bucket of the per-country fraud type distribution.
type FraudTypeCount struct {
	FraudType string `json:"fraud_type"`
	Count     int    `json:"count"`
}

// ReportRepository handles persistence for fraud reports and reviews.
type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func scanReport(row interface{ Scan(...any) error }) (types.FraudReport, error) {
	var report types.FraudReport
	var sourcesJSON, evidenceJSON []byte
	var entityID, reporterID sql.NullInt64
	err := row.Scan(
		&report.ID,
		&report.Title,
		&report.FraudType,
		&report.RiskLevel,
		&report.Summary,
		&report.DetailedDescription,
		&sourcesJSON,
		&evidenceJSON,
		&report.IsAnonymous,
		&report.Status,
		&report.Priority,
		&entityID,
		&reporterID,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.FraudReport{}, ErrNotFound
		}
		return types.FraudReport{}, err
	}

	_ = json.Unmarshal(sourcesJSON, &report.Sources)
	_ = json.Unmarshal(evidenceJSON, &report.EvidenceKeys)
	if entityID.Valid {
		id := int(entityID.Int64)
		report.EntityID = &id
	}
	if reporterID.Valid {
		id := int(reporterID.Int64)
		report.ReporterID = &id
	}
	return report, nil
}

func (r *ReportRepository) Get(ctx context.Context, id int) (types.FraudReport, error) {
	const query = `SELECT ` + reportColumns + ` FROM fraud_reports WHERE id = $1`
	return scanReport(r.db.QueryRowContext(ctx, query, id))
}

func (r *ReportRepository) Create(ctx context.Context, report types.FraudReport) (types.FraudReport, error) {
	now := time.Now()
	report.CreatedAt = now
	report.UpdatedAt = now

	sourcesJSON, err := json.Marshal(emptyIfNil(report.Sources))
	if err != nil {
		return types.FraudReport{}, err
	}
	evidenceJSON, err := json.Marshal(emptyIfNil(report.EvidenceKeys))
	if err != nil {
		return types.FraudReport{}, err
	}

	const query = `
		INSERT INTO fraud_reports (title, fraud_type, risk_level, summary,
			detailed_description, sources, evidence_keys, is_anonymous, status,
			priority, entity_id, reporter_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		report.Title,
		report.FraudType,
		report.RiskLevel,
		report.Summary,
		report.DetailedDescription,
		sourcesJSON,
		evidenceJSON,
		report.IsAnonymous,
		report.Status,
		report.Priority,
		nullableInt(report.EntityID),
		nullableInt(report.ReporterID),
		report.CreatedAt,
		report.UpdatedAt,
	).Scan(&report.ID); err != nil {
		return types.FraudReport{}, err
	}
	return report, nil
}

func (r *ReportRepository) UpdateStatus(ctx context.Context, id int, status string) error {
	const query = `UPDATE fraud_reports SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *ReportRepository) ListByReporter(ctx context.Context, reporterID, offset, limit int) ([]types.FraudReport, int, error) {
	return r.list(ctx,
		` WHERE reporter_id = $1`, []any{reporterID}, offset, limit)
}

// ListByStatus lists reports in a moderation state; an empty status
// lists everything.
func (r *ReportRepository) ListByStatus(ctx context.Context, status string, offset, limit int) ([]types.FraudReport, int, error) {
	if status == "" {
		return r.list(ctx, "", nil, offset, limit)
	}
	return r.list(ctx, ` WHERE status = $1`, []any{status}, offset, limit)
}

func (r *ReportRepository) ListByEntity(ctx context.Context, entityID, limit int) ([]types.FraudReport, error) {
	reports, _, err := r.list(ctx, ` WHERE entity_id = $1`, []any{entityID}, 0, limit)
	return reports, err
}

func (r *ReportRepository) list(ctx context.Context, where string, args []any, offset, limit int) ([]types.FraudReport, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM fraud_reports"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offsetArg := len(args) + 1
	query := "SELECT " + reportColumns + " FROM fraud_reports" + where +
		" ORDER BY created_at DESC" +
		" OFFSET $" + strconv.Itoa(offsetArg) + " LIMIT $" + strconv.Itoa(offsetArg+1)
	args = append(args, offset, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	reports := make([]types.FraudReport, 0, limit)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (r *ReportRepository) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM fraud_reports`
	var total int
	err := r.db.QueryRowContext(ctx, query).Scan(&total)
	return total, err
}

func (r *ReportRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	const query = `SELECT COUNT(1) FROM fraud_reports WHERE status = $1`
	var total int
	err := r.db.QueryRowContext(ctx, query, status).Scan(&total)
	return total, err
}

// CountByCountryRisk aggregates report counts for entities in one
// country, split by risk level, for the statistics recompute.
func (r *ReportRepository) CountByCountryRisk(ctx context.Context, countryCode string) (total, high, critical int, err error) {
	const query = `
		SELECT COUNT(1),
			COUNT(1) FILTER (WHERE r.risk_level = 'High'),
			COUNT(1) FILTER (WHERE r.risk_level = 'Critical')
		FROM fraud_reports r
		JOIN entities e ON e.id = r.entity_id
		WHERE e.country_code = $1`
	err = r.db.QueryRowContext(ctx, query, countryCode).Scan(&total, &high, &critical)
	return total, high, critical, err
}

// FraudTypeDistribution buckets reports against one country's entities
// by fraud type.
func (r *ReportRepository) FraudTypeDistribution(ctx context.Context, countryCode string) ([]FraudTypeCount, error) {
	const query = `
		SELECT r.fraud_type, COUNT(1)
		FROM fraud_reports r
		JOIN entities e ON e.id = r.entity_id
		WHERE e.country_code = $1
		GROUP BY r.fraud_type
		ORDER BY COUNT(1) DESC`
	rows, err := r.db.QueryContext(ctx, query, countryCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []FraudTypeCount
	for rows.Next() {
		var c FraudTypeCount
		if err := rows.Scan(&c.FraudType, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *ReportRepository) CreateReview(ctx context.Context, review types.ReportReview) (types.ReportReview, error) {
	review.CreatedAt = time.Now()

	const query = `
		INSERT INTO report_reviews (fraud_report_id, reviewer_id, review_status, review_notes, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		review.FraudReportID,
		review.ReviewerID,
		review.ReviewStatus,
		review.ReviewNotes,
		review.CreatedAt,
	).Scan(&review.ID); err != nil {
		return types.ReportReview{}, err
	}
	return review, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
