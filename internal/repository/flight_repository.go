package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"airlogger/internal/models"
	"airlogger/pkg/database"
	"airlogger/pkg/logging"
	"airlogger/pkg/metrics"
)

// FlightRepository provides data access for stored flights
type FlightRepository interface {
	// InsertIfAbsent stores the flight unless its id already exists and
	// reports whether a row was written. Existing rows are never updated.
	InsertIfAbsent(ctx context.Context, flight *models.Flight) (bool, error)
	// InsertBatch applies InsertIfAbsent to every flight in one transaction
	// and returns the number of rows written.
	InsertBatch(ctx context.Context, flights []*models.Flight) (int, error)
	GetFlight(ctx context.Context, id string) (*models.Flight, error)
	ListFlights(ctx context.Context, filter FlightFilter) ([]*models.Flight, int, error)

	HealthCheck(ctx context.Context) error
}

// FlightFilter selects flights by tail number and departure window. Start and
// End are inclusive. A zero Limit returns every match.
type FlightFilter struct {
	TailNumber *string
	Start      *time.Time
	End        *time.Time
	Limit      int
	Offset     int
}

// flightRepository implements FlightRepository
type flightRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewFlightRepository creates a new flight repository
func NewFlightRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) FlightRepository {
	return &flightRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

const insertFlightQuery = `
	INSERT INTO flights (
		id, tail_number, departure_airport, arrival_airport,
		departure_time_utc, arrival_time_utc, flight_duration_minutes,
		created_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING
`

const selectFlightColumns = `
	SELECT id, tail_number, departure_airport, arrival_airport,
	       departure_time_utc, arrival_time_utc, flight_duration_minutes,
	       created_at
	FROM flights
`

func (r *flightRepository) insertArgs(f *models.Flight) []interface{} {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = r.now().UTC()
	}
	return []interface{}{
		f.ID,
		f.TailNumber,
		f.DepartureAirport,
		f.ArrivalAirport,
		f.DepartureTimeUTC.UTC(),
		f.ArrivalTimeUTC.UTC(),
		f.FlightDurationMinutes,
		f.CreatedAt.UTC(),
	}
}

// InsertIfAbsent stores a single flight
func (r *flightRepository) InsertIfAbsent(ctx context.Context, flight *models.Flight) (bool, error) {
	result, err := r.db.ExecContext(ctx, "insert_flight", insertFlightQuery, r.insertArgs(flight)...)
	if err != nil {
		return false, fmt.Errorf("failed to insert flight: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_INSERT_FLIGHT] Flight insert attempted", logging.Fields{
		"flight_id": flight.ID,
		"inserted":  n > 0,
	})

	return n > 0, nil
}

// InsertBatch stores multiple flights in a single transaction
func (r *flightRepository) InsertBatch(ctx context.Context, flights []*models.Flight) (int, error) {
	if len(flights) == 0 {
		return 0, nil
	}

	timer := time.Now()
	inserted := 0
	defer func() {
		duration := time.Since(timer)
		r.metrics.IngestionBatchSize.Observe(float64(len(flights)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"count":       len(flights),
			"inserted":    inserted,
			"duration_ms": duration.Milliseconds(),
		})
	}()

	err := r.db.InTx(ctx, "insert_flight_batch", func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind(insertFlightQuery))
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		count := 0
		for _, f := range flights {
			result, err := stmt.ExecContext(ctx, r.insertArgs(f)...)
			if err != nil {
				return fmt.Errorf("failed to insert flight %s: %w", f.ID, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read rows affected: %w", err)
			}
			count += int(n)
		}
		inserted = count
		return nil
	})
	if err != nil {
		inserted = 0
		return 0, err
	}

	return inserted, nil
}

// GetFlight retrieves a flight by its provider id
func (r *flightRepository) GetFlight(ctx context.Context, id string) (*models.Flight, error) {
	query := selectFlightColumns + " WHERE id = ?"

	var flight models.Flight
	err := r.db.GetContext(ctx, "get_flight", &flight, query, id)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "flight",
			ID:       id,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get flight: %w", err)
	}

	flight.NormalizeTimes()
	return &flight, nil
}

// ListFlights retrieves flights ordered by departure time, oldest first
func (r *flightRepository) ListFlights(ctx context.Context, filter FlightFilter) ([]*models.Flight, int, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.TailNumber != nil {
		where = append(where, "tail_number = ?")
		args = append(args, *filter.TailNumber)
	}

	if filter.Start != nil {
		where = append(where, "departure_time_utc >= ?")
		args = append(args, filter.Start.UTC())
	}

	if filter.End != nil {
		where = append(where, "departure_time_utc <= ?")
		args = append(args, filter.End.UTC())
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	// Get total count
	var totalCount int
	err := r.db.GetContext(ctx, "count_flights", &totalCount, "SELECT COUNT(*) FROM flights"+clause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count flights: %w", err)
	}

	query := selectFlightColumns + clause + " ORDER BY departure_time_utc ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	flights := []*models.Flight{}
	err = r.db.SelectContext(ctx, "list_flights", &flights, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list flights: %w", err)
	}

	for _, f := range flights {
		f.NormalizeTimes()
	}

	return flights, totalCount, nil
}

// HealthCheck performs a repository health check
func (r *flightRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
