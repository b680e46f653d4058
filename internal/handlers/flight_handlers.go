package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"airlogger/internal/models"
	"airlogger/internal/repository"
	"airlogger/internal/services"
	"airlogger/pkg/logging"
	"airlogger/pkg/metrics"
)

const dateLayout = "2006-01-02"

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Options holds request defaults taken from configuration.
type Options struct {
	DefaultTailNumber string
	LookbackDays      int
}

// FlightHandler handles the flight, summary and settings API endpoints
type FlightHandler struct {
	ingestion *services.IngestionService
	billing   *services.BillingService
	settings  *services.SettingsService
	health    HealthChecker
	opts      Options
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
	now       func() time.Time
}

// NewFlightHandler creates a new flight handler
func NewFlightHandler(
	ingestion *services.IngestionService,
	billingService *services.BillingService,
	settings *services.SettingsService,
	health HealthChecker,
	opts Options,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *FlightHandler {
	return &FlightHandler{
		ingestion: ingestion,
		billing:   billingService,
		settings:  settings,
		health:    health,
		opts:      opts,
		logger:    logger,
		metrics:   metricsCollector,
		now:       time.Now,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// RefreshResponse is returned by POST /api/refresh_data
type RefreshResponse struct {
	Message string                    `json:"message"`
	Result  *services.IngestionResult `json:"result"`
}

// RefreshData handles POST /api/refresh_data
func (h *FlightHandler) RefreshData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tail := h.tailNumber(r)

	var window models.Window
	if r.URL.Query().Get("start_date") != "" || r.URL.Query().Get("end_date") != "" {
		var err error
		window, err = parseWindow(r)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
	} else {
		end := h.now().UTC()
		window = models.Window{Start: end.AddDate(0, 0, -h.opts.LookbackDays), End: end}
	}

	result, err := h.ingestion.Refresh(ctx, tail, window)
	if errors.Is(err, services.ErrSourceNotConfigured) {
		h.logger.Error(ctx, "[API_REFRESH_CONFIG_ERROR] Failed to initialize FlightAware client", logging.Fields{
			"tail_number": tail,
		}, err)
		h.metrics.RecordAPIError("configuration_error", "/api/refresh_data")
		h.sendError(w, "FlightAware API configuration error", http.StatusInternalServerError)
		return
	}
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	message := fmt.Sprintf("Data refreshed successfully. Stored %d new flights.", result.Inserted)
	if result.TotalRecords == 0 {
		message = "No new data fetched from FlightAware or API error."
	}

	h.sendJSON(w, RefreshResponse{Message: message, Result: result}, http.StatusOK)
}

// GetFlights handles GET /api/flights
func (h *FlightHandler) GetFlights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	window, err := parseWindow(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	page, limit := parsePagination(r)

	flights, total, err := h.billing.ListFlights(ctx, h.tailNumber(r), window, limit, (page-1)*limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.sendJSON(w, PaginatedResponse{
		Data:       flights,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// GetFlight handles GET /api/flights/{id}
func (h *FlightHandler) GetFlight(w http.ResponseWriter, r *http.Request) {
	flight, err := h.billing.GetFlight(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.sendJSON(w, flight, http.StatusOK)
}

// GetSummary handles GET /api/summary
func (h *FlightHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	summary, err := h.billing.Summary(r.Context(), h.tailNumber(r), window)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.sendJSON(w, summary, http.StatusOK)
}

// GetFinancialSettings handles GET /api/financial-settings
func (h *FlightHandler) GetFinancialSettings(w http.ResponseWriter, r *http.Request) {
	rates, err := h.settings.Get(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.sendJSON(w, rates, http.StatusOK)
}

// UpdateFinancialSettings handles PUT /api/financial-settings
func (h *FlightHandler) UpdateFinancialSettings(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		h.sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}

	rates, err := decodeRates(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	updated, err := h.settings.Update(r.Context(), rates)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.sendJSON(w, updated, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *FlightHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"database":  "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if err := h.health.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK] Database unreachable", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "unhealthy"
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}

	h.sendJSON(w, status, code)
}

func (h *FlightHandler) tailNumber(r *http.Request) string {
	if tail := strings.TrimSpace(r.URL.Query().Get("tail_number")); tail != "" {
		return strings.ToUpper(tail)
	}
	return h.opts.DefaultTailNumber
}

// parseWindow reads the required start_date and end_date (YYYY-MM-DD) into
// a window covering both days in full.
func parseWindow(r *http.Request) (models.Window, error) {
	startStr := r.URL.Query().Get("start_date")
	endStr := r.URL.Query().Get("end_date")

	if startStr == "" || endStr == "" {
		return models.Window{}, &models.ValidationError{
			Field:   "start_date",
			Message: "start_date and end_date are required",
		}
	}

	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return models.Window{}, &models.ValidationError{
			Field:   "start_date",
			Value:   startStr,
			Message: "Invalid date format. Use YYYY-MM-DD",
		}
	}

	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return models.Window{}, &models.ValidationError{
			Field:   "end_date",
			Value:   endStr,
			Message: "Invalid date format. Use YYYY-MM-DD",
		}
	}

	window := models.DayWindow(start, end)
	if err := window.Validate(); err != nil {
		return models.Window{}, err
	}
	return window, nil
}

func parsePagination(r *http.Request) (page, limit int) {
	page = 1
	limit = 100

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}
	return page, limit
}

var rateFields = []string{"revenue_per_hour", "monthly_fixed_costs", "variable_cost_per_hour"}

// decodeRates accepts each rate as a JSON number or a numeric string. Every
// field is required.
func decodeRates(r *http.Request) (models.RateConfig, error) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return models.RateConfig{}, &models.ValidationError{
			Field:   "body",
			Message: "request body must be a JSON object",
		}
	}

	values := make(map[string]float64, len(rateFields))
	for _, field := range rateFields {
		raw, ok := body[field]
		if !ok {
			return models.RateConfig{}, &models.ValidationError{
				Field:   field,
				Message: "Missing required field: " + field,
			}
		}
		v, err := parseNumber(raw)
		if err != nil {
			return models.RateConfig{}, &models.ValidationError{
				Field:   field,
				Value:   string(raw),
				Message: fmt.Sprintf("Invalid value for %s: must be a number", field),
			}
		}
		values[field] = v
	}

	return models.RateConfig{
		RevenuePerHour:      values["revenue_per_hour"],
		MonthlyFixedCosts:   values["monthly_fixed_costs"],
		VariableCostPerHour: values["variable_cost_per_hour"],
	}, nil
}

func parseNumber(raw json.RawMessage) (float64, error) {
	if strings.TrimSpace(string(raw)) == "null" {
		return 0, errors.New("null is not a number")
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// handleError maps service errors onto HTTP status codes.
func (h *FlightHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *models.ValidationError
	var nf *repository.NotFoundError

	switch {
	case errors.As(err, &vErr):
		h.metrics.RecordAPIError("validation_error", endpointOf(r))
		h.sendError(w, vErr.Message, http.StatusBadRequest)
	case errors.As(err, &nf):
		h.metrics.RecordAPIError("not_found", endpointOf(r))
		h.sendError(w, nf.Error(), http.StatusNotFound)
	default:
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"method":   r.Method,
			"endpoint": endpointOf(r),
		}, err)
		h.metrics.RecordAPIError("internal_error", endpointOf(r))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
	}
}

// sendJSON sends a JSON response
func (h *FlightHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *FlightHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSON(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}

// RegisterRoutes registers all API routes and middleware
func (h *FlightHandler) RegisterRoutes(router *mux.Router) {
	router.Use(RequestID, Instrument(h.logger, h.metrics))

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/refresh_data", h.RefreshData).Methods(http.MethodPost)
	api.HandleFunc("/flights", h.GetFlights).Methods(http.MethodGet)
	api.HandleFunc("/flights/{id}", h.GetFlight).Methods(http.MethodGet)
	api.HandleFunc("/summary", h.GetSummary).Methods(http.MethodGet)
	api.HandleFunc("/financial-settings", h.GetFinancialSettings).Methods(http.MethodGet)
	api.HandleFunc("/financial-settings", h.UpdateFinancialSettings).Methods(http.MethodPut)
	api.HandleFunc("/docs", SwaggerUI).Methods(http.MethodGet)
	api.HandleFunc("/docs/openapi.json", OpenAPISpec).Methods(http.MethodGet)

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
}
