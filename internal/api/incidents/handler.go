// Package incidents provides HTTP handlers for the incident read API.
package incidents

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/logwarden/logwarden/internal/models"
	"github.com/logwarden/logwarden/internal/storage"
)

// Response helpers (local to avoid import cycle with api package)

const (
	errBadRequest = "bad_request"
	errNotFound   = "not_found"
	errInternal   = "internal_error"
)

func jsonError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(struct {
		OK      bool   `json:"ok"`
		Error   string `json:"error"`
		Details string `json:"details,omitempty"`
	}{false, message, details}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// ListResponse wraps a paginated incident list.
type ListResponse struct {
	OK        bool               `json:"ok"`
	Incidents []*models.Incident `json:"incidents"`
	Total     int64              `json:"total"`
	HasMore   bool               `json:"has_more"`
}

// GetResponse wraps a single incident.
type GetResponse struct {
	OK       bool             `json:"ok"`
	Incident *models.Incident `json:"incident"`
}

// StatsResponse contains aggregated incident statistics.
type StatsResponse struct {
	OK         bool                      `json:"ok"`
	Total      int64                     `json:"total"`
	Last24h    int64                     `json:"last_24h"`
	BySeverity map[models.Severity]int64 `json:"by_severity"`
	ByRule     map[models.RuleID]int64   `json:"by_rule"`
	TopSources []*storage.SourceCount    `json:"top_sources"`
}

// Handler handles incident read endpoints.
type Handler struct {
	incidents storage.IncidentRepository
}

// NewHandler creates an incidents handler.
func NewHandler(incidents storage.IncidentRepository) *Handler {
	return &Handler{incidents: incidents}
}

// List handles GET /api/v1/incidents.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r.URL.Query())
	if err != nil {
		jsonError(w, http.StatusBadRequest, errBadRequest, err.Error())
		return
	}

	page, err := h.incidents.List(r.Context(), filter)
	if err != nil {
		log.Printf("incident list error: %v", err)
		jsonError(w, http.StatusInternalServerError, errInternal, "internal server error")
		return
	}

	incidents := page.Incidents
	if incidents == nil {
		incidents = []*models.Incident{}
	}

	jsonOK(w, &ListResponse{
		OK:        true,
		Incidents: incidents,
		Total:     page.Total,
		HasMore:   page.HasMore,
	})
}

// Get handles GET /api/v1/incidents/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := validateID(id); err != nil {
		jsonError(w, http.StatusBadRequest, errBadRequest, err.Error())
		return
	}

	incident, err := h.incidents.GetByID(r.Context(), id)
	if err != nil {
		log.Printf("incident get error: %v", err)
		jsonError(w, http.StatusInternalServerError, errInternal, "internal server error")
		return
	}
	if incident == nil {
		jsonError(w, http.StatusNotFound, errNotFound, "")
		return
	}

	jsonOK(w, &GetResponse{OK: true, Incident: incident})
}

// Stats handles GET /api/v1/incidents/stats. The five aggregates are
// independent queries, so they run in parallel.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	var (
		total      int64
		last24h    int64
		bySeverity map[models.Severity]int64
		byRule     map[models.RuleID]int64
		topSources []*storage.SourceCount
	)

	g, gCtx := errgroup.WithContext(r.Context())

	g.Go(func() error {
		var err error
		total, err = h.incidents.Count(gCtx)
		if err != nil {
			log.Printf("incident count error: %v", err)
		}
		return err
	})

	g.Go(func() error {
		var err error
		last24h, err = h.incidents.CountSince(gCtx, time.Now().UTC().Add(-24*time.Hour))
		if err != nil {
			log.Printf("incident 24h count error: %v", err)
		}
		return err
	})

	g.Go(func() error {
		var err error
		bySeverity, err = h.incidents.CountBySeverity(gCtx)
		if err != nil {
			log.Printf("incident severity count error: %v", err)
		}
		return err
	})

	g.Go(func() error {
		var err error
		byRule, err = h.incidents.CountByRule(gCtx)
		if err != nil {
			log.Printf("incident rule count error: %v", err)
		}
		return err
	})

	g.Go(func() error {
		var err error
		topSources, err = h.incidents.TopSources(gCtx, 10)
		if err != nil {
			log.Printf("incident top sources error: %v", err)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		jsonError(w, http.StatusInternalServerError, errInternal, "internal server error")
		return
	}

	if bySeverity == nil {
		bySeverity = map[models.Severity]int64{}
	}
	if byRule == nil {
		byRule = map[models.RuleID]int64{}
	}
	if topSources == nil {
		topSources = []*storage.SourceCount{}
	}

	jsonOK(w, &StatsResponse{
		OK:         true,
		Total:      total,
		Last24h:    last24h,
		BySeverity: bySeverity,
		ByRule:     byRule,
		TopSources: topSources,
	})
}
