package types

import "time"

// Fraud report lifecycle statuses.
const (
	ReportStatusPending     = "pending"
	ReportStatusUnderReview = "under_review"
	ReportStatusVerified    = "verified"
	ReportStatusRejected    = "rejected"
)

// Fraud report priorities, derived from the reported risk level.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Review outcomes a moderator can record for a report.
const (
	ReviewApproved      = "approved"
	ReviewRejected      = "rejected"
	ReviewNeedsMoreInfo = "needs_more_info"
)

// FraudReport is a whistleblower submission, possibly anonymous,
// describing alleged fraud by an entity.
type FraudReport struct {
	// ID is the unique identifier of the report.
	ID int `json:"id" db:"id"`

	// Title is a short human-readable headline for the allegation.
	Title string `json:"title" db:"title"`

	// FraudType categorizes the allegation, e.g. "Financial Fraud"
	// or "Document Forgery".
	FraudType string `json:"fraud_type" db:"fraud_type"`

	// RiskLevel is the reporter's assessment: Low, Medium, High or Critical.
	RiskLevel string `json:"risk_level" db:"risk_level"`

	// Summary is a short description of the allegation.
	Summary string `json:"summary" db:"summary"`

	// DetailedDescription holds the full narrative, if provided.
	DetailedDescription string `json:"detailed_description" db:"detailed_description"`

	// Sources lists supporting references supplied by the reporter.
	Sources []string `json:"sources" db:"sources"`

	// EvidenceKeys are object-storage keys of uploaded evidence files.
	EvidenceKeys []string `json:"evidence_keys" db:"evidence_keys"`

	// IsAnonymous indicates the reporter chose not to be attributed.
	// Anonymous reports never carry a ReporterID.
	IsAnonymous bool `json:"is_anonymous" db:"is_anonymous"`

	// Status is the moderation state: pending, under_review, verified
	// or rejected.
	Status string `json:"status" db:"status"`

	// Priority is the moderation queue priority, derived from RiskLevel
	// at submission time.
	Priority string `json:"priority" db:"priority"`

	// EntityID links the report to the implicated entity, if one was
	// named. Nil for reports that name no entity.
	EntityID *int `json:"entity_id,omitempty" db:"entity_id"`

	// ReporterID links the report to the submitting account for
	// attributed reports. Nil for anonymous submissions.
	ReporterID *int `json:"reporter_id,omitempty" db:"reporter_id"`

	// CreatedAt is the timestamp at which the report was submitted.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent status change.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ReportReview records a single moderation decision on a fraud report.
type ReportReview struct {
	// ID is the unique identifier of the review.
	ID int `json:"id" db:"id"`

	// FraudReportID is the report the review applies to.
	FraudReportID int `json:"fraud_report_id" db:"fraud_report_id"`

	// ReviewerID is the moderator or administrator who reviewed.
	ReviewerID int `json:"reviewer_id" db:"reviewer_id"`

	// ReviewStatus is the decision: approved, rejected or needs_more_info.
	ReviewStatus string `json:"review_status" db:"review_status"`

	// ReviewNotes holds the reviewer's free-form notes.
	ReviewNotes string `json:"review_notes" db:"review_notes"`

	// CreatedAt is the timestamp of the decision.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PriorityForRisk derives the moderation priority for a submission.
// High and Critical risk reports jump the queue.
func PriorityForRisk(riskLevel string) string {
	switch riskLevel {
	case RiskHigh, RiskCritical:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}
