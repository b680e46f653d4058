package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"airlogger/internal/models"
	"airlogger/internal/repository"
	"airlogger/pkg/logging"
	"airlogger/pkg/metrics"
)

// ErrSourceNotConfigured is returned by Refresh when no provider client exists,
// typically because the API key is missing.
var ErrSourceNotConfigured = errors.New("flight source not configured")

// FlightSource supplies raw provider records for one aircraft whose departure
// falls within [start, end].
type FlightSource interface {
	FetchFlights(ctx context.Context, registration string, start, end time.Time) ([]models.RawFlightRecord, error)
}

// IngestionService fetches, normalizes and stores flights
type IngestionService struct {
	source  FlightSource
	repo    repository.FlightRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	locks   tailLocks
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TailNumber    string                      `json:"tailNumber"`
	StartDate     time.Time                   `json:"startDate"`
	EndDate       time.Time                   `json:"endDate"`
	TotalRecords  int                         `json:"totalRecords"`
	Normalized    int                         `json:"normalized"`
	Inserted      int                         `json:"inserted"`
	Duplicates    int                         `json:"duplicates"`
	Skipped       int                         `json:"skipped"`
	SkipReasons   map[models.RejectReason]int `json:"skipReasons"`
	Clamped       int                         `json:"clamped"`
	ProviderError string                      `json:"providerError,omitempty"`
	Duration      time.Duration               `json:"-"`
}

// NewIngestionService creates a new ingestion service. source may be nil, in
// which case Refresh reports ErrSourceNotConfigured.
func NewIngestionService(source FlightSource, repo repository.FlightRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		source:  source,
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Refresh pulls the aircraft's flights for the window and stores the new ones.
// Refreshes of the same tail number run one at a time. A provider failure is
// not an error: whatever was fetched is still stored and the failure is
// reported in the result.
func (s *IngestionService) Refresh(ctx context.Context, tail string, w models.Window) (*IngestionResult, error) {
	if s.source == nil {
		return nil, ErrSourceNotConfigured
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(tail)
	defer unlock()

	ctx = logging.WithTailNumber(ctx, tail)
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting data refresh", logging.Fields{
		"start_date": w.Start.Format(time.RFC3339),
		"end_date":   w.End.Format(time.RFC3339),
		"stage":      "INITIALIZATION",
	})

	result := &IngestionResult{
		TailNumber:  tail,
		StartDate:   w.Start,
		EndDate:     w.End,
		SkipReasons: make(map[models.RejectReason]int),
	}

	records, err := s.source.FetchFlights(ctx, tail, w.Start, w.End)
	if err != nil {
		result.ProviderError = err.Error()
		s.logger.Warn(ctx, "[INGEST_FETCH_ERROR] Provider fetch failed, continuing with fetched records", logging.Fields{
			"fetched": len(records),
			"error":   err.Error(),
			"stage":   "FETCH",
		})
	}
	result.TotalRecords = len(records)

	flights := s.normalize(ctx, records, result)

	inserted, err := s.repo.InsertBatch(ctx, flights)
	if err != nil {
		s.logger.Error(ctx, "[INGEST_STORE_ERROR] Failed to store flights", logging.Fields{
			"flights": len(flights),
			"stage":   "STORE",
		}, err)
		return nil, fmt.Errorf("failed to store flights: %w", err)
	}
	result.Inserted = inserted
	result.Duplicates = len(flights) - inserted

	s.metrics.RecordIngestionOutcome("inserted", result.Inserted)
	s.metrics.RecordIngestionOutcome("duplicate", result.Duplicates)

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Data refresh completed", logging.Fields{
		"total_records":    result.TotalRecords,
		"normalized":       result.Normalized,
		"inserted":         result.Inserted,
		"duplicates":       result.Duplicates,
		"skipped":          result.Skipped,
		"clamped":          result.Clamped,
		"duration_seconds": result.Duration.Seconds(),
		"stage":            "COMPLETE",
	})

	return result, nil
}

func (s *IngestionService) normalize(ctx context.Context, records []models.RawFlightRecord, result *IngestionResult) []*models.Flight {
	flights := make([]*models.Flight, 0, len(records))

	for _, record := range records {
		flight, err := record.ToFlight()
		if err != nil {
			var rej *models.RejectError
			if !errors.As(err, &rej) {
				rej = &models.RejectError{Reason: models.RejectInvalidTimestamp, FlightID: record.FlightID(), Err: err}
			}
			result.Skipped++
			result.SkipReasons[rej.Reason]++
			s.metrics.RecordSkip(string(rej.Reason))
			s.logger.Info(ctx, "[INGEST_SKIP] Skipping flight record", logging.Fields{
				"flight_id": rej.FlightID,
				"reason":    string(rej.Reason),
				"field":     rej.Field,
			})
			continue
		}

		if flight.HasNegativeSpan() {
			result.Clamped++
			s.logger.Warn(ctx, "[INGEST_NEGATIVE_DURATION] Arrival before departure, duration set to 0", logging.Fields{
				"flight_id": flight.ID,
				"departure": flight.DepartureTimeUTC.Format(time.RFC3339),
				"arrival":   flight.ArrivalTimeUTC.Format(time.RFC3339),
			})
		}

		flights = append(flights, flight)
	}

	result.Normalized = len(flights)
	return flights
}

// tailLocks hands out one mutex per tail number.
type tailLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (t *tailLocks) lock(tail string) func() {
	t.mu.Lock()
	if t.locks == nil {
		t.locks = make(map[string]*sync.Mutex)
	}
	m, ok := t.locks[tail]
	if !ok {
		m = &sync.Mutex{}
		t.locks[tail] = m
	}
	t.mu.Unlock()

	m.Lock()
	return m.Unlock
}
