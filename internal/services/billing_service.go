package services

import (
	"context"
	"fmt"

	"airlogger/internal/billing"
	"airlogger/internal/models"
	"airlogger/internal/repository"
	"airlogger/pkg/logging"
	"airlogger/pkg/metrics"
)

// BillingService prices stored flights with the active rate configuration
type BillingService struct {
	flights repository.FlightRepository
	rates   repository.RateConfigRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewBillingService creates a new billing service
func NewBillingService(flights repository.FlightRepository, rates repository.RateConfigRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *BillingService {
	return &BillingService{
		flights: flights,
		rates:   rates,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ListFlights returns the aircraft's flights departing within the window,
// oldest first, each with its Hobbs time, billable hours and revenue.
func (s *BillingService) ListFlights(ctx context.Context, tail string, w models.Window, limit, offset int) ([]models.FlightBilling, int, error) {
	if err := w.Validate(); err != nil {
		return nil, 0, err
	}

	rates, err := s.rates.GetOrInit(ctx)
	if err != nil {
		return nil, 0, err
	}

	flights, total, err := s.flights.ListFlights(ctx, repository.FlightFilter{
		TailNumber: &tail,
		Start:      &w.Start,
		End:        &w.End,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, 0, err
	}

	return billing.BillFlights(flights, *rates), total, nil
}

// GetFlight returns a single stored flight priced at the active rates.
func (s *BillingService) GetFlight(ctx context.Context, id string) (*models.FlightBilling, error) {
	flight, err := s.flights.GetFlight(ctx, id)
	if err != nil {
		return nil, err
	}

	rates, err := s.rates.GetOrInit(ctx)
	if err != nil {
		return nil, err
	}

	b := billing.BillFlight(flight, *rates)
	return &b, nil
}

// Summary computes revenue, costs, profit and breakeven for the window.
func (s *BillingService) Summary(ctx context.Context, tail string, w models.Window) (*models.FinancialSummary, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	timer := s.metrics.NewTimer(s.metrics.SummaryDuration)
	defer timer.ObserveDuration()

	rates, err := s.rates.GetOrInit(ctx)
	if err != nil {
		return nil, err
	}

	flights, _, err := s.flights.ListFlights(ctx, repository.FlightFilter{
		TailNumber: &tail,
		Start:      &w.Start,
		End:        &w.End,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.SummaryFlightCount.Observe(float64(len(flights)))

	summary, err := billing.Summarize(tail, flights, *rates, w)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize: %w", err)
	}

	s.logger.Debug(ctx, "[SUMMARY] Financial summary computed", logging.Fields{
		"tail_number":    tail,
		"flights":        summary.TotalFlights,
		"billable_hours": summary.TotalBillableHours,
		"net_profit":     summary.NetProfit,
		"breakeven":      summary.Breakeven.Defined(),
	})

	return summary, nil
}
