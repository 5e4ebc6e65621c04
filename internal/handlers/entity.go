package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rmgwatch/apiserver/internal/services"
	"github.com/rmgwatch/apiserver/internal/store"
	"github.com/rmgwatch/apiserver/types"
)

// EntityHandler provides HTTP handlers for the entity catalog.
type EntityHandler struct {
	entities *services.EntityService
	reports  *services.ReportService
}

func NewEntityHandler(entities *services.EntityService, reports *services.ReportService) *EntityHandler {
	return &EntityHandler{entities: entities, reports: reports}
}

// EntityRouter registers entity routes. Reads are public; mutations
// require auth and are further gated by the service layer.
func EntityRouter(
	r chi.Router,
	entities *services.EntityService,
	reports *services.ReportService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewEntityHandler(entities, reports)

	r.Get("/", handler.ListEntities)
	r.With(authMiddleware).Post("/", handler.CreateEntity)
	r.Route("/{entityID}", func(r chi.Router) {
		r.Get("/", handler.GetEntity)
		r.Get("/reports", handler.ListEntityReports)
		r.With(authMiddleware).Put("/", handler.UpdateEntity)
		r.With(authMiddleware).Post("/verify", handler.VerifyEntity)
	})
}

// EntityListResponse is the paginated list response payload.
type EntityListResponse struct {
	Items []types.Entity `json:"items"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Total int            `json:"total"`
}

func (h *EntityHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	filter := store.EntityFilter{
		Query:       strings.TrimSpace(query.Get("q")),
		EntityType:  strings.TrimSpace(query.Get("entity_type")),
		RiskLevel:   strings.TrimSpace(query.Get("risk_level")),
		CountryCode: strings.TrimSpace(query.Get("country")),
		SortBy:      strings.TrimSpace(query.Get("sort")),
		SortOrder:   strings.TrimSpace(query.Get("order")),
	}

	items, total, err := h.entities.List(r.Context(), filter, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list entities")
		return
	}

	writeJSON(w, http.StatusOK, EntityListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *EntityHandler) GetEntity(w http.ResponseWriter, r *http.Request) {
	id, err := parseEntityID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entity, err := h.entities.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

// ListEntityReports returns recent reports implicating an entity.
func (h *EntityHandler) ListEntityReports(w http.ResponseWriter, r *http.Request) {
	id, err := parseEntityID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.reports.ListByEntity(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type EntityUpsertRequest struct {
	Name               string `json:"name"`
	EntityType         string `json:"entity_type"`
	CountryCode        string `json:"country_code"`
	RegistrationNumber string `json:"registration_number"`
	ContactInfo        string `json:"contact_info"`
	Description        string `json:"description"`
	RiskLevel          string `json:"risk_level"`
}

func (h *EntityHandler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var req EntityUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.entities.Create(r.Context(), userFromContext(r.Context()), types.Entity{
		Name:               req.Name,
		EntityType:         req.EntityType,
		CountryCode:        req.CountryCode,
		RegistrationNumber: req.RegistrationNumber,
		ContactInfo:        req.ContactInfo,
		Description:        req.Description,
		RiskLevel:          req.RiskLevel,
	}, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *EntityHandler) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	id, err := parseEntityID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req EntityUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.entities.Update(r.Context(), userFromContext(r.Context()), types.Entity{
		ID:                 id,
		Name:               req.Name,
		EntityType:         req.EntityType,
		CountryCode:        req.CountryCode,
		RegistrationNumber: req.RegistrationNumber,
		ContactInfo:        req.ContactInfo,
		Description:        req.Description,
		RiskLevel:          req.RiskLevel,
	}, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *EntityHandler) VerifyEntity(w http.ResponseWriter, r *http.Request) {
	id, err := parseEntityID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.entities.Verify(r.Context(), userFromContext(r.Context()), id, requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_verified": true})
}

func parseEntityID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "entityID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid entity id")
	}
	return id, nil
}
