package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rmgwatch/apiserver/internal/services"
)

// CountryHandler serves the public country statistics views.
type CountryHandler struct {
	countries *services.CountryService
}

func NewCountryHandler(countries *services.CountryService) *CountryHandler {
	return &CountryHandler{countries: countries}
}

// CountryRouter registers country routes. All reads are public.
func CountryRouter(r chi.Router, countries *services.CountryService) {
	handler := NewCountryHandler(countries)

	r.Get("/", handler.Overview)
	r.Get("/heatmap", handler.Heatmap)
	r.Get("/{countryCode}", handler.Detail)
}

func (h *CountryHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.countries.Overview(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load country statistics")
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *CountryHandler) Detail(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "countryCode")))
	if len(code) != 2 {
		writeError(w, http.StatusBadRequest, "invalid country code")
		return
	}

	detail, err := h.countries.Detail(r.Context(), code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *CountryHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	points, err := h.countries.Heatmap(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build heatmap")
		return
	}
	writeJSON(w, http.StatusOK, points)
}
