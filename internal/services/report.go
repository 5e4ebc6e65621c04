package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rmgwatch/apiserver/internal/access"
	"github.com/rmgwatch/apiserver/internal/logging"
	"github.com/rmgwatch/apiserver/internal/store"
	"github.com/rmgwatch/apiserver/types"
)

// Event channels for report lifecycle notifications.
const (
	ChannelReportSubmitted = "report.submitted"
	ChannelReportReviewed  = "report.reviewed"
)

// ReportEvent is the JSON payload published on report lifecycle changes.
// The country-statistics worker consumes it to refresh aggregates.
type ReportEvent struct {
	ReportID    int    `json:"report_id"`
	EntityID    *int   `json:"entity_id,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	RiskLevel   string `json:"risk_level"`
	Status      string `json:"status"`
}

// ReportRepository defines persistence operations for fraud reports.
type ReportRepository interface {
	Get(ctx context.Context, id int) (types.FraudReport, error)
	Create(ctx context.Context, report types.FraudReport) (types.FraudReport, error)
	UpdateStatus(ctx context.Context, id int, status string) error
	ListByReporter(ctx context.Context, reporterID, offset, limit int) ([]types.FraudReport, int, error)
	ListByStatus(ctx context.Context, status string, offset, limit int) ([]types.FraudReport, int, error)
	ListByEntity(ctx context.Context, entityID, limit int) ([]types.FraudReport, error)
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status string) (int, error)
	CountByCountryRisk(ctx context.Context, countryCode string) (total, high, critical int, err error)
	FraudTypeDistribution(ctx context.Context, countryCode string) ([]store.FraudTypeCount, error)
	CreateReview(ctx context.Context, review types.ReportReview) (types.ReportReview, error)
}

// EvidenceStore persists uploaded evidence files.
type EvidenceStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// EventPublisher emits report lifecycle events. Publishing is
// best-effort: the report mutation has already committed.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// EvidenceFile is one uploaded attachment.
type EvidenceFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SubmitReportInput is the payload for a fraud report submission.
type SubmitReportInput struct {
	Title               string
	FraudType           string
	RiskLevel           string
	Summary             string
	DetailedDescription string
	Sources             []string
	IsAnonymous         bool

	// Optional implicated entity; all three must be present to link or
	// create one.
	EntityName  string
	EntityType  string
	CountryCode string

	Evidence []EvidenceFile
}

// ReportService encapsulates fraud report use-cases.
type ReportService struct {
	repo      ReportRepository
	entities  EntityRepository
	evidence  EvidenceStore
	publisher EventPublisher
	audit     *AuditRecorder
	log       logging.Logger
}

func NewReportService(
	repo ReportRepository,
	entities EntityRepository,
	evidence EvidenceStore,
	publisher EventPublisher,
	audit *AuditRecorder,
	log logging.Logger,
) *ReportService {
	return &ReportService{
		repo:      repo,
		entities:  entities,
		evidence:  evidence,
		publisher: publisher,
		audit:     audit,
		log:       log,
	}
}

// Submit accepts a fraud report from an authenticated or anonymous
// reporter. Attribution only happens when the reporter is authenticated
// and did not ask for anonymity.
func (s *ReportService) Submit(ctx context.Context, actor *types.User, in SubmitReportInput, meta RequestMeta) (types.FraudReport, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Summary = strings.TrimSpace(in.Summary)
	if in.Title == "" || in.FraudType == "" || in.RiskLevel == "" || in.Summary == "" {
		return types.FraudReport{}, ErrMissingFields
	}

	var entityID *int
	countryCode := ""
	if in.EntityName != "" && in.EntityType != "" && in.CountryCode != "" {
		entity, err := s.findOrCreateEntity(ctx, in)
		if err != nil {
			return types.FraudReport{}, err
		}
		entityID = &entity.ID
		countryCode = entity.CountryCode
	}

	evidenceKeys, err := s.storeEvidence(ctx, in.Evidence)
	if err != nil {
		return types.FraudReport{}, err
	}

	var reporterID *int
	if actor != nil && !in.IsAnonymous {
		reporterID = &actor.ID
	}

	report, err := s.repo.Create(ctx, types.FraudReport{
		Title:               in.Title,
		FraudType:           in.FraudType,
		RiskLevel:           in.RiskLevel,
		Summary:             in.Summary,
		DetailedDescription: in.DetailedDescription,
		Sources:             in.Sources,
		EvidenceKeys:        evidenceKeys,
		IsAnonymous:         in.IsAnonymous,
		Status:              types.ReportStatusPending,
		Priority:            types.PriorityForRisk(in.RiskLevel),
		EntityID:            entityID,
		ReporterID:          reporterID,
	})
	if err != nil {
		return types.FraudReport{}, err
	}

	var auditActor *int
	if actor != nil {
		auditActor = &actor.ID
	}
	s.audit.RecordResource(ctx, auditActor, types.AuditActionSubmitReport, "fraud_report", &report.ID, meta,
		"anonymous: "+strconv.FormatBool(in.IsAnonymous)+", risk level: "+in.RiskLevel)

	s.publish(ctx, ChannelReportSubmitted, ReportEvent{
		ReportID:    report.ID,
		EntityID:    entityID,
		CountryCode: countryCode,
		RiskLevel:   report.RiskLevel,
		Status:      report.Status,
	})
	return report, nil
}

// Get returns a report to its owner or to a moderator/admin.
func (s *ReportService) Get(ctx context.Context, actor *types.User, id int) (types.FraudReport, error) {
	report, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.FraudReport{}, err
	}

	isOwner := actor != nil && report.ReporterID != nil && *report.ReporterID == actor.ID
	if !isOwner && !access.Permitted(actor, access.ActionReviewReport) {
		return types.FraudReport{}, ErrPermissionDenied
	}
	return report, nil
}

func (s *ReportService) ListMine(ctx context.Context, actorID, offset, limit int) ([]types.FraudReport, int, error) {
	return s.repo.ListByReporter(ctx, actorID, offset, limit)
}

func (s *ReportService) ListByEntity(ctx context.Context, entityID, limit int) ([]types.FraudReport, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListByEntity(ctx, entityID, limit)
}

// ListForModeration lists reports in the moderation queue. status may
// be empty to list all states.
func (s *ReportService) ListForModeration(ctx context.Context, actor *types.User, status string, offset, limit int) ([]types.FraudReport, int, error) {
	if !access.Permitted(actor, access.ActionReviewReport) {
		return nil, 0, ErrPermissionDenied
	}
	return s.repo.ListByStatus(ctx, status, offset, limit)
}

// ReviewInput is a moderator's decision on a report.
type ReviewInput struct {
	ReviewStatus string
	ReviewNotes  string
}

// Review records a moderation decision and advances the report status:
// approved reports become verified, rejected ones rejected, and
// needs_more_info parks the report under review.
func (s *ReportService) Review(ctx context.Context, actor *types.User, reportID int, in ReviewInput, meta RequestMeta) (types.ReportReview, error) {
	if !access.Permitted(actor, access.ActionReviewReport) {
		return types.ReportReview{}, ErrPermissionDenied
	}

	var status string
	switch in.ReviewStatus {
	case types.ReviewApproved:
		status = types.ReportStatusVerified
	case types.ReviewRejected:
		status = types.ReportStatusRejected
	case types.ReviewNeedsMoreInfo:
		status = types.ReportStatusUnderReview
	default:
		return types.ReportReview{}, ErrInvalidReviewStatus
	}

	report, err := s.repo.Get(ctx, reportID)
	if err != nil {
		return types.ReportReview{}, err
	}

	if err := s.repo.UpdateStatus(ctx, reportID, status); err != nil {
		return types.ReportReview{}, err
	}

	review, err := s.repo.CreateReview(ctx, types.ReportReview{
		FraudReportID: reportID,
		ReviewerID:    actor.ID,
		ReviewStatus:  in.ReviewStatus,
		ReviewNotes:   in.ReviewNotes,
	})
	if err != nil {
		return types.ReportReview{}, err
	}

	s.audit.RecordResource(ctx, &actor.ID, types.AuditActionReviewReport, "fraud_report", &reportID, meta,
		"status: "+in.ReviewStatus)

	countryCode := ""
	if report.EntityID != nil {
		if entity, err := s.entities.Get(ctx, *report.EntityID); err == nil {
			countryCode = entity.CountryCode
		}
	}
	s.publish(ctx, ChannelReportReviewed, ReportEvent{
		ReportID:    reportID,
		EntityID:    report.EntityID,
		CountryCode: countryCode,
		RiskLevel:   report.RiskLevel,
		Status:      status,
	})
	return review, nil
}

func (s *ReportService) findOrCreateEntity(ctx context.Context, in SubmitReportInput) (types.Entity, error) {
	entity, err := s.entities.FindByIdentity(ctx, in.EntityName, in.EntityType, in.CountryCode)
	if err == nil {
		return entity, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.Entity{}, err
	}

	// Entities surfaced by reports enter the catalog unverified; a
	// moderator attests them later.
	return s.entities.Create(ctx, types.Entity{
		Name:        in.EntityName,
		EntityType:  in.EntityType,
		CountryCode: in.CountryCode,
		RiskLevel:   in.RiskLevel,
		IsVerified:  false,
	})
}

func (s *ReportService) storeEvidence(ctx context.Context, files []EvidenceFile) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if s.evidence == nil {
		return nil, errors.New("evidence storage is not configured")
	}

	keys := make([]string, 0, len(files))
	for _, file := range files {
		key := "evidence/" + uuid.NewString() + strings.ToLower(path.Ext(file.Filename))
		if err := s.evidence.Put(ctx, key, file.Data, file.ContentType); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *ReportService) publish(ctx context.Context, channel string, event ReportEvent) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.log.Error(ctx, "encode report event failed", "channel", channel, "error", err)
		return
	}
	if _, err := s.publisher.Publish(ctx, channel, data, map[string]string{"status": event.Status}); err != nil {
		s.log.Warn(ctx, "publish report event failed", "channel", channel, "error", err)
	}
}

// DecodeReportEvent parses a published event payload.
func DecodeReportEvent(data []byte) (ReportEvent, error) {
	var event ReportEvent
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&event); err != nil {
		return ReportEvent{}, err
	}
	return event, nil
}
