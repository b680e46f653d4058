package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airlogger/internal/models"
	"airlogger/internal/repository"
	"airlogger/internal/testutil"
	"airlogger/pkg/logging"
)

type fakeSource struct {
	records []models.RawFlightRecord
	err     error
	delay   time.Duration

	active    atomic.Int32
	maxActive atomic.Int32
	calls     atomic.Int32
}

func (f *fakeSource) FetchFlights(ctx context.Context, registration string, start, end time.Time) ([]models.RawFlightRecord, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		cur := f.maxActive.Load()
		if n <= cur || f.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.records, f.err
}

type fixture struct {
	flights   repository.FlightRepository
	rates     repository.RateConfigRepository
	billing   *BillingService
	settings  *SettingsService
	newIngest func(FlightSource) *IngestionService
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenSQLite(t)
	require.NoError(t, repository.InitSchema(context.Background(), db))

	logger := logging.NewNopLogger()
	m := testutil.NewMetrics()
	flights := repository.NewFlightRepository(db, logger, m)
	rates := repository.NewRateConfigRepository(db, logger)

	return &fixture{
		flights:  flights,
		rates:    rates,
		billing:  NewBillingService(flights, rates, logger, m),
		settings: NewSettingsService(rates, logger),
		newIngest: func(src FlightSource) *IngestionService {
			return NewIngestionService(src, flights, logger, m)
		},
	}
}

func record(id, off, on string) models.RawFlightRecord {
	return models.RawFlightRecord{
		"fa_flight_id": id,
		"registration": "N593EH",
		"origin":       map[string]interface{}{"icao": "KPAO"},
		"destination":  map[string]interface{}{"icao": "KSQL"},
		"actual_off":   off,
		"actual_on":    on,
	}
}

func january() models.Window {
	return models.DayWindow(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
}

func TestIngestionService_Refresh(t *testing.T) {
	f := setup(t)
	cancelled := record("C1", "2024-01-03T10:00:00Z", "2024-01-03T11:00:00Z")
	cancelled["cancelled"] = true
	noAirports := record("M1", "2024-01-04T10:00:00Z", "2024-01-04T11:00:00Z")
	delete(noAirports, "origin")
	delete(noAirports, "destination")

	src := &fakeSource{records: []models.RawFlightRecord{
		record("F1", "2024-01-15T14:30:00Z", "2024-01-15T15:30:00Z"),
		record("F2", "2024-01-16T14:30:00Z", "2024-01-16T13:30:00Z"),
		record("F1", "2024-01-15T14:30:00Z", "2024-01-15T15:30:00Z"),
		cancelled,
		noAirports,
		record("T1", "garbage", "2024-01-05T11:00:00Z"),
	}}
	svc := f.newIngest(src)

	result, err := svc.Refresh(context.Background(), "N593EH", january())
	require.NoError(t, err)
	assert.Equal(t, 6, result.TotalRecords)
	assert.Equal(t, 3, result.Normalized)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 3, result.Skipped)
	assert.Equal(t, 1, result.Clamped)
	assert.Equal(t, map[models.RejectReason]int{
		models.RejectCancelled:        1,
		models.RejectMissingField:     1,
		models.RejectInvalidTimestamp: 1,
	}, result.SkipReasons)
	assert.Empty(t, result.ProviderError)

	stored, err := f.flights.GetFlight(context.Background(), "F2")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FlightDurationMinutes)

	// Running again stores nothing new.
	result, err = svc.Refresh(context.Background(), "N593EH", january())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 3, result.Duplicates)
}

func TestIngestionService_ProviderFailureIsNotFatal(t *testing.T) {
	f := setup(t)
	src := &fakeSource{
		records: []models.RawFlightRecord{record("F1", "2024-01-15T14:30:00Z", "2024-01-15T15:30:00Z")},
		err:     errors.New("aeroapi returned status 503"),
	}

	result, err := f.newIngest(src).Refresh(context.Background(), "N593EH", january())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Contains(t, result.ProviderError, "503")
}

func TestIngestionService_NotConfigured(t *testing.T) {
	f := setup(t)
	_, err := f.newIngest(nil).Refresh(context.Background(), "N593EH", january())
	assert.ErrorIs(t, err, ErrSourceNotConfigured)
}

func TestIngestionService_InvertedWindow(t *testing.T) {
	f := setup(t)
	src := &fakeSource{}
	w := models.Window{Start: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	_, err := f.newIngest(src).Refresh(context.Background(), "N593EH", w)
	var vErr *models.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestIngestionService_SerializesSameTail(t *testing.T) {
	f := setup(t)
	src := &fakeSource{
		records: []models.RawFlightRecord{record("F1", "2024-01-15T14:30:00Z", "2024-01-15T15:30:00Z")},
		delay:   20 * time.Millisecond,
	}
	svc := f.newIngest(src)

	var (
		wg       sync.WaitGroup
		inserted atomic.Int32
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Refresh(context.Background(), "N593EH", january())
			assert.NoError(t, err)
			if err == nil {
				inserted.Add(int32(res.Inserted))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.maxActive.Load())
	assert.Equal(t, int32(1), inserted.Load())
}

func TestBillingService_Summary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.newIngest(&fakeSource{records: []models.RawFlightRecord{
		record("F1", "2024-01-15T14:30:00Z", "2024-01-15T15:30:00Z"),
		record("F0", "2024-01-14T14:30:00Z", "2024-01-14T15:30:00Z"),
	}}).Refresh(ctx, "N593EH", january())
	require.NoError(t, err)

	w := models.DayWindow(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	summary, err := f.billing.Summary(ctx, "N593EH", w)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalFlights)
	assert.Equal(t, 75, summary.TotalHobbsMinutes)
	assert.Equal(t, 1.3, summary.TotalBillableHours)
	assert.Equal(t, 195.0, summary.TotalRevenue)
	assert.Equal(t, 97.5, summary.TotalVariableCosts)
	assert.Equal(t, 16.43, summary.TotalFixedCosts)
	assert.Equal(t, 81.07, summary.NetProfit)
	assert.Equal(t, models.DefaultRevenuePerHour, summary.Rates.RevenuePerHour)

	other, err := f.billing.Summary(ctx, "N12345", w)
	require.NoError(t, err)
	assert.Equal(t, 0, other.TotalFlights)
	assert.Equal(t, -16.43, other.NetProfit)
}

func TestBillingService_ListAndGetFlight(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.newIngest(&fakeSource{records: []models.RawFlightRecord{
		record("F2", "2024-01-20T10:00:00Z", "2024-01-20T11:45:00Z"),
		record("F1", "2024-01-15T14:30:00Z", "2024-01-15T15:30:00Z"),
	}}).Refresh(ctx, "N593EH", january())
	require.NoError(t, err)

	flights, total, err := f.billing.ListFlights(ctx, "N593EH", january(), 0, 0)
	require.NoError(t, err)
	require.Len(t, flights, 2)
	assert.Equal(t, 2, total)
	assert.Equal(t, "F1", flights[0].ID)
	assert.Equal(t, 1.3, flights[0].BillableHours)
	assert.Equal(t, 195.0, flights[0].EstimatedRevenue)
	assert.Equal(t, 120, flights[1].HobbsMinutes)
	assert.Equal(t, 2.0, flights[1].BillableHours)

	one, err := f.billing.GetFlight(ctx, "F2")
	require.NoError(t, err)
	assert.Equal(t, 300.0, one.EstimatedRevenue)

	_, err = f.billing.GetFlight(ctx, "nope")
	var nf *repository.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestSettingsService(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	got, err := f.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRateConfig().RevenuePerHour, got.RevenuePerHour)

	_, err = f.settings.Update(ctx, models.RateConfig{RevenuePerHour: -1})
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)

	updated, err := f.settings.Update(ctx, models.RateConfig{RevenuePerHour: 200, MonthlyFixedCosts: 1000, VariableCostPerHour: 80})
	require.NoError(t, err)
	assert.Equal(t, 200.0, updated.RevenuePerHour)

	got, err = f.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200.0, got.RevenuePerHour)
	assert.Equal(t, 1000.0, got.MonthlyFixedCosts)
	assert.Equal(t, 80.0, got.VariableCostPerHour)
}
