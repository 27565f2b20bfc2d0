// Package handlers provides HTTP handlers for report queries.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/adpulse/adpulse/internal/aggregate"
	"github.com/adpulse/adpulse/internal/domain"
	"github.com/adpulse/adpulse/internal/modules/history"
	"github.com/adpulse/adpulse/internal/modules/reporting"
)

const dateLayout = "2006-01-02"

// Handler handles report HTTP requests.
type Handler struct {
	router      *reporting.Router
	historyRepo *history.Repository
	log         zerolog.Logger
}

// NewHandler creates a new reporting handler.
func NewHandler(router *reporting.Router, historyRepo *history.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		router:      router,
		historyRepo: historyRepo,
		log:         log.With().Str("handler", "reporting").Logger(),
	}
}

// RegisterRoutes registers reporting routes on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Post("/aggregate", h.HandleAggregate)
		r.Get("/{entityID}", h.HandleGetReport)
		r.Get("/{entityID}/insights", h.HandleInsights)
	})
}

// aggregateRequest is the JSON body for POST /api/reports/aggregate.
type aggregateRequest struct {
	EntityID   string `json:"entity_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Platform   string `json:"platform,omitempty"`
	ForceFresh bool   `json:"force_fresh,omitempty"`
	Hint       string `json:"hint,omitempty"`
}

// HandleAggregate handles POST /api/reports/aggregate.
func (h *Handler) HandleAggregate(w http.ResponseWriter, r *http.Request) {
	var body aggregateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	req, err := h.buildRequest(body)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   map[string]string{"kind": reporting.ErrKindValidation, "message": err.Error()},
		})
		return
	}

	h.serve(w, r, req)
}

// HandleGetReport handles GET /api/reports/{entityID}.
// Window and platform come from query parameters.
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	body := aggregateRequest{
		EntityID:   chi.URLParam(r, "entityID"),
		StartDate:  q.Get("start_date"),
		EndDate:    q.Get("end_date"),
		Platform:   q.Get("platform"),
		ForceFresh: q.Get("force_fresh") == "true",
		Hint:       q.Get("hint"),
	}

	req, err := h.buildRequest(body)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   map[string]string{"kind": reporting.ErrKindValidation, "message": err.Error()},
		})
		return
	}

	h.serve(w, r, req)
}

// HandleInsights handles GET /api/reports/{entityID}/insights.
// Returns summary statistics over the daily series for one metric.
func (h *Handler) HandleInsights(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entityID := chi.URLParam(r, "entityID")

	window, err := parseWindow(q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	platform, err := domain.ParsePlatform(q.Get("platform"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	metric := q.Get("metric")
	if metric == "" {
		metric = "spend"
	}

	daily, err := h.historyRepo.GetDailyMetrics(entityID, window, platform)
	if err != nil {
		h.log.Error().Err(err).Str("entity_id", entityID).Msg("Failed to load daily metrics")
		http.Error(w, "Failed to load daily metrics", http.StatusInternalServerError)
		return
	}

	values := make([]float64, 0, len(daily))
	for _, d := range daily {
		v, ok := metricValue(d.Metrics, metric)
		if !ok {
			http.Error(w, "Unknown metric: "+metric, http.StatusBadRequest)
			return
		}
		values = append(values, v)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"entity_id": entityID,
			"window":    window.String(),
			"metric":    metric,
			"days":      len(values),
			"stats":     aggregate.DailyStats(values),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// serve routes the request and maps the outcome onto an HTTP status.
// NoDataAvailable is a 200 with success=false: an empty answer, not a fault.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, req reporting.ReportRequest) {
	resp := h.router.GetReport(r.Context(), req)

	status := http.StatusOK
	if !resp.Success && resp.Error != nil {
		switch resp.Error.Kind {
		case reporting.ErrKindValidation:
			status = http.StatusBadRequest
		case reporting.ErrKindUpstream:
			status = http.StatusBadGateway
		case reporting.ErrKindStorage:
			status = http.StatusInternalServerError
		}
	}

	h.writeJSON(w, status, resp)
}

func (h *Handler) buildRequest(body aggregateRequest) (reporting.ReportRequest, error) {
	window, err := parseWindow(body.StartDate, body.EndDate)
	if err != nil {
		return reporting.ReportRequest{}, err
	}

	platform, err := domain.ParsePlatform(body.Platform)
	if err != nil {
		return reporting.ReportRequest{}, err
	}

	return reporting.ReportRequest{
		EntityID:   body.EntityID,
		Window:     window,
		Platform:   platform,
		ForceFresh: body.ForceFresh,
		Hint:       body.Hint,
	}, nil
}

func parseWindow(startStr, endStr string) (domain.DateWindow, error) {
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return domain.DateWindow{}, domain.NewValidationError("invalid start_date %q", startStr)
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return domain.DateWindow{}, domain.NewValidationError("invalid end_date %q", endStr)
	}
	return domain.NewDateWindow(start, end), nil
}

func metricValue(m domain.Metrics, metric string) (float64, bool) {
	switch metric {
	case "spend":
		return m.Spend, true
	case "impressions":
		return float64(m.Impressions), true
	case "clicks":
		return float64(m.Clicks), true
	case "conversions":
		return m.Conversions, true
	case "conversion_value":
		return m.ConversionValue, true
	default:
		return 0, false
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
