package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airlogger/internal/models"
	"airlogger/internal/repository"
	"airlogger/internal/services"
	"airlogger/internal/testutil"
	"airlogger/pkg/logging"
)

type stubSource struct {
	records []models.RawFlightRecord
	err     error
}

func (s *stubSource) FetchFlights(ctx context.Context, registration string, start, end time.Time) ([]models.RawFlightRecord, error) {
	return s.records, s.err
}

type stubHealth struct{ err error }

func (s stubHealth) HealthCheck(ctx context.Context) error { return s.err }

func rawRecord(id, off, on string) models.RawFlightRecord {
	return models.RawFlightRecord{
		"fa_flight_id": id,
		"registration": "N593EH",
		"origin":       map[string]interface{}{"icao": "KPAO"},
		"destination":  map[string]interface{}{"icao": "KSQL"},
		"actual_off":   off,
		"actual_on":    on,
	}
}

// newRouter wires the real services over an in-memory database. A nil source
// leaves refresh unconfigured.
func newRouter(t *testing.T, source services.FlightSource, health HealthChecker) *mux.Router {
	t.Helper()
	db := testutil.OpenSQLite(t)
	require.NoError(t, repository.InitSchema(context.Background(), db))

	logger := logging.NewNopLogger()
	m := testutil.NewMetrics()
	flights := repository.NewFlightRepository(db, logger, m)
	rates := repository.NewRateConfigRepository(db, logger)

	if health == nil {
		health = flights
	}

	h := NewFlightHandler(
		services.NewIngestionService(source, flights, logger, m),
		services.NewBillingService(flights, rates, logger, m),
		services.NewSettingsService(rates, logger),
		health,
		Options{DefaultTailNumber: "N593EH", LookbackDays: 90},
		logger,
		m,
	)
	h.now = func() time.Time { return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC) }

	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func do(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestRefreshData(t *testing.T) {
	source := &stubSource{records: []models.RawFlightRecord{
		rawRecord("F1", "2024-01-15T14:30:00Z", "2024-01-15T15:30:00Z"),
		rawRecord("F2", "2024-01-20T10:00:00Z", "2024-01-20T11:45:00Z"),
	}}
	router := newRouter(t, source, nil)

	rec := do(t, router, http.MethodPost, "/api/refresh_data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var resp RefreshResponse
	decode(t, rec, &resp)
	assert.Equal(t, "Data refreshed successfully. Stored 2 new flights.", resp.Message)
	assert.Equal(t, 2, resp.Result.Inserted)
	assert.Equal(t, "N593EH", resp.Result.TailNumber)

	rec = do(t, router, http.MethodPost, "/api/refresh_data", "")
	decode(t, rec, &resp)
	assert.Equal(t, "Data refreshed successfully. Stored 0 new flights.", resp.Message)
	assert.Equal(t, 2, resp.Result.Duplicates)
}

func TestRefreshData_NoRecords(t *testing.T) {
	router := newRouter(t, &stubSource{err: errors.New("boom")}, nil)

	rec := do(t, router, http.MethodPost, "/api/refresh_data", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RefreshResponse
	decode(t, rec, &resp)
	assert.Equal(t, "No new data fetched from FlightAware or API error.", resp.Message)
	assert.Equal(t, "boom", resp.Result.ProviderError)
}

func TestRefreshData_NotConfigured(t *testing.T) {
	router := newRouter(t, nil, nil)

	rec := do(t, router, http.MethodPost, "/api/refresh_data", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "FlightAware API configuration error", resp.Message)
}

func TestGetFlightsAndSummary(t *testing.T) {
	source := &stubSource{records: []models.RawFlightRecord{
		rawRecord("F1", "2024-01-15T14:30:00Z", "2024-01-15T15:30:00Z"),
		rawRecord("F2", "2024-01-20T10:00:00Z", "2024-01-20T11:45:00Z"),
	}}
	router := newRouter(t, source, nil)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/refresh_data", "").Code)

	t.Run("flights", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/flights?start_date=2024-01-01&end_date=2024-01-31", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data  []models.FlightBilling `json:"data"`
			Total int                    `json:"total"`
		}
		decode(t, rec, &resp)
		require.Len(t, resp.Data, 2)
		assert.Equal(t, 2, resp.Total)
		assert.Equal(t, "F1", resp.Data[0].ID)
		assert.Equal(t, 75, resp.Data[0].HobbsMinutes)
		assert.Equal(t, 1.3, resp.Data[0].BillableHours)
		assert.Equal(t, 195.0, resp.Data[0].EstimatedRevenue)
	})

	t.Run("single day window", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/flights?start_date=2024-01-15&end_date=2024-01-15", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"total":1`)
	})

	t.Run("flight by id", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/flights/F2", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var f models.FlightBilling
		decode(t, rec, &f)
		assert.Equal(t, 2.0, f.BillableHours)

		rec = do(t, router, http.MethodGet, "/api/flights/unknown", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("summary", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/summary?start_date=2024-01-15&end_date=2024-01-15", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var s models.FinancialSummary
		decode(t, rec, &s)
		assert.Equal(t, 1.3, s.TotalBillableHours)
		assert.Equal(t, 195.0, s.TotalRevenue)
		assert.Equal(t, 97.5, s.TotalVariableCosts)
		assert.Equal(t, 16.43, s.TotalFixedCosts)
		assert.Equal(t, 81.07, s.NetProfit)
		require.NotNil(t, s.Breakeven.HoursNeeded)
		assert.Equal(t, 0.3, *s.Breakeven.HoursNeeded)
	})

	t.Run("summary with undefined breakeven", func(t *testing.T) {
		rec := do(t, router, http.MethodPut, "/api/financial-settings",
			`{"revenue_per_hour": 50, "monthly_fixed_costs": 500, "variable_cost_per_hour": 75}`)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = do(t, router, http.MethodGet, "/api/summary?start_date=2024-01-01&end_date=2024-01-31", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"hoursNeeded":null`)
		assert.Contains(t, rec.Body.String(), `"revenueNeeded":null`)
		assert.Contains(t, rec.Body.String(), `"additionalHoursNeeded":null`)
		assert.Contains(t, rec.Body.String(), `"additionalRevenueNeeded":null`)
	})
}

func TestDateValidation(t *testing.T) {
	router := newRouter(t, &stubSource{}, nil)

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"missing both", "/api/summary", "start_date and end_date are required"},
		{"missing end", "/api/flights?start_date=2024-01-01", "start_date and end_date are required"},
		{"bad format", "/api/summary?start_date=01/01/2024&end_date=2024-01-31", "Invalid date format. Use YYYY-MM-DD"},
		{"end before start", "/api/summary?start_date=2024-02-01&end_date=2024-01-01", "end_date must not be before start_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			decode(t, rec, &resp)
			assert.Equal(t, tt.want, resp.Message)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
		})
	}
}

func TestFinancialSettings(t *testing.T) {
	router := newRouter(t, &stubSource{}, nil)

	rec := do(t, router, http.MethodGet, "/api/financial-settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rates models.RateConfig
	decode(t, rec, &rates)
	assert.Equal(t, 150.0, rates.RevenuePerHour)
	assert.Equal(t, 500.0, rates.MonthlyFixedCosts)
	assert.Equal(t, 75.0, rates.VariableCostPerHour)

	rec = do(t, router, http.MethodPut, "/api/financial-settings",
		`{"revenue_per_hour": "175.5", "monthly_fixed_costs": 650, "variable_cost_per_hour": 80}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/financial-settings", "")
	decode(t, rec, &rates)
	assert.Equal(t, 175.5, rates.RevenuePerHour)
	assert.Equal(t, 650.0, rates.MonthlyFixedCosts)
	assert.Equal(t, 80.0, rates.VariableCostPerHour)
}

func TestUpdateFinancialSettings_Invalid(t *testing.T) {
	router := newRouter(t, &stubSource{}, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing field", `{"revenue_per_hour": 1, "monthly_fixed_costs": 2}`, "Missing required field: variable_cost_per_hour"},
		{"non numeric", `{"revenue_per_hour": "abc", "monthly_fixed_costs": 2, "variable_cost_per_hour": 3}`, "Invalid value for revenue_per_hour: must be a number"},
		{"null value", `{"revenue_per_hour": 1, "monthly_fixed_costs": null, "variable_cost_per_hour": 3}`, "Invalid value for monthly_fixed_costs: must be a number"},
		{"negative", `{"revenue_per_hour": 1, "monthly_fixed_costs": 2, "variable_cost_per_hour": -3}`, "variable_cost_per_hour must not be negative"},
		{"not an object", `[1,2,3]`, "request body must be a JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPut, "/api/financial-settings", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			decode(t, rec, &resp)
			assert.Equal(t, tt.want, resp.Message)
		})
	}

	// Nothing above may have changed the stored configuration.
	rec := do(t, router, http.MethodGet, "/api/financial-settings", "")
	var rates models.RateConfig
	decode(t, rec, &rates)
	assert.Equal(t, models.DefaultRateConfig().VariableCostPerHour, rates.VariableCostPerHour)
}

func TestUpdateFinancialSettings_RequiresJSON(t *testing.T) {
	router := newRouter(t, &stubSource{}, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/financial-settings", strings.NewReader("revenue_per_hour=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	rec := do(t, newRouter(t, &stubSource{}, nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = do(t, newRouter(t, &stubSource{}, stubHealth{err: errors.New("down")}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDPropagated(t *testing.T) {
	router := newRouter(t, &stubSource{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestDocs(t *testing.T) {
	router := newRouter(t, &stubSource{}, nil)

	rec := do(t, router, http.MethodGet, "/api/docs/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]interface{}
	decode(t, rec, &doc)
	paths, ok := doc["paths"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, paths, "/api/summary")
	assert.Contains(t, paths, "/api/refresh_data")

	rec = do(t, router, http.MethodGet, "/api/docs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")
}
