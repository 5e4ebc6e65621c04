package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rmgwatch/apiserver/internal/services"
	"github.com/rmgwatch/apiserver/types"
)

const (
	maxMultipartMemory = 32 << 20
	maxEvidenceBytes   = 16 << 20
	maxEvidenceFiles   = 5

	formFieldTitle       = "title"
	formFieldFraudType   = "fraud_type"
	formFieldRiskLevel   = "risk_level"
	formFieldSummary     = "summary"
	formFieldDescription = "detailed_description"
	formFieldSources     = "sources"
	formFieldAnonymous   = "is_anonymous"
	formFieldEntityName  = "entity_name"
	formFieldEntityType  = "entity_type"
	formFieldCountry     = "country_code"
	formFieldEvidence    = "evidence"
)

// ReportHandler provides HTTP handlers for fraud reports.
type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// ReportRouter registers report routes. Submission accepts anonymous
// callers; everything else requires auth.
func ReportRouter(
	r chi.Router,
	reports *services.ReportService,
	authMiddleware func(http.Handler) http.Handler,
	optionalAuth func(http.Handler) http.Handler,
) {
	handler := NewReportHandler(reports)

	r.With(optionalAuth).Post("/", handler.SubmitReport)
	r.With(authMiddleware).Get("/mine", handler.ListMyReports)
	r.With(authMiddleware).Get("/moderation", handler.ListModerationQueue)
	r.Route("/{reportID}", func(r chi.Router) {
		r.With(authMiddleware).Get("/", handler.GetReport)
		r.With(authMiddleware).Post("/review", handler.ReviewReport)
	})
}

// SubmitReport accepts a multipart submission with optional evidence
// attachments, or a plain JSON body when there are none.
func (h *ReportHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	var in services.SubmitReportInput
	var err error

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		in, err = parseReportForm(r)
	} else {
		in, err = parseReportJSON(r)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.reports.Submit(r.Context(), userFromContext(r.Context()), in, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id, err := parseReportID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.reports.Get(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ReportListResponse is the paginated list response payload.
type ReportListResponse struct {
	Items []types.FraudReport `json:"items"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
	Total int                 `json:"total"`
}

func (h *ReportHandler) ListMyReports(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.reports.ListMine(r.Context(), user.ID, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, ReportListResponse{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *ReportHandler) ListModerationQueue(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	items, total, err := h.reports.ListForModeration(r.Context(), userFromContext(r.Context()), status, offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReportListResponse{Items: items, Page: page, Limit: limit, Total: total})
}

type ReviewRequest struct {
	ReviewStatus string `json:"review_status"`
	ReviewNotes  string `json:"review_notes"`
}

func (h *ReportHandler) ReviewReport(w http.ResponseWriter, r *http.Request) {
	id, err := parseReportID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	review, err := h.reports.Review(r.Context(), userFromContext(r.Context()), id, services.ReviewInput{
		ReviewStatus: req.ReviewStatus,
		ReviewNotes:  req.ReviewNotes,
	}, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

type SubmitReportJSON struct {
	Title               string   `json:"title"`
	FraudType           string   `json:"fraud_type"`
	RiskLevel           string   `json:"risk_level"`
	Summary             string   `json:"summary"`
	DetailedDescription string   `json:"detailed_description"`
	Sources             []string `json:"sources"`
	IsAnonymous         bool     `json:"is_anonymous"`
	EntityName          string   `json:"entity_name"`
	EntityType          string   `json:"entity_type"`
	CountryCode         string   `json:"country_code"`
}

func parseReportJSON(r *http.Request) (services.SubmitReportInput, error) {
	var req SubmitReportJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return services.SubmitReportInput{}, errors.New("invalid request")
	}
	return services.SubmitReportInput{
		Title:               req.Title,
		FraudType:           req.FraudType,
		RiskLevel:           req.RiskLevel,
		Summary:             req.Summary,
		DetailedDescription: req.DetailedDescription,
		Sources:             req.Sources,
		IsAnonymous:         req.IsAnonymous,
		EntityName:          req.EntityName,
		EntityType:          req.EntityType,
		CountryCode:         req.CountryCode,
	}, nil
}

func parseReportForm(r *http.Request) (services.SubmitReportInput, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.SubmitReportInput{}, errors.New("invalid multipart form")
	}

	evidence, err := parseEvidenceFiles(r.MultipartForm)
	if err != nil {
		return services.SubmitReportInput{}, err
	}

	return services.SubmitReportInput{
		Title:               r.FormValue(formFieldTitle),
		FraudType:           r.FormValue(formFieldFraudType),
		RiskLevel:           r.FormValue(formFieldRiskLevel),
		Summary:             r.FormValue(formFieldSummary),
		DetailedDescription: r.FormValue(formFieldDescription),
		Sources:             parseSources(r.FormValue(formFieldSources)),
		IsAnonymous:         r.FormValue(formFieldAnonymous) == "true",
		EntityName:          r.FormValue(formFieldEntityName),
		EntityType:          r.FormValue(formFieldEntityType),
		CountryCode:         r.FormValue(formFieldCountry),
		Evidence:            evidence,
	}, nil
}

func parseSources(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, "\n")
	sources := make([]string, 0, len(parts))
	for _, part := range parts {
		if source := strings.TrimSpace(part); source != "" {
			sources = append(sources, source)
		}
	}
	return sources
}

func parseEvidenceFiles(form *multipart.Form) ([]services.EvidenceFile, error) {
	if form == nil {
		return nil, nil
	}

	headers := form.File[formFieldEvidence]
	if len(headers) == 0 {
		return nil, nil
	}
	if len(headers) > maxEvidenceFiles {
		return nil, errors.New("too many evidence files")
	}

	files := make([]services.EvidenceFile, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, errors.New("failed to read evidence file")
		}
		data, err := readFileLimited(file, maxEvidenceBytes)
		_ = file.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, services.EvidenceFile{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}

func parseReportID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "reportID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid report id")
	}
	return id, nil
}
