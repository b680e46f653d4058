package billing

import (
	"github.com/shopspring/decimal"

	"airlogger/internal/models"
)

// AvgDaysPerMonth prorates monthly fixed costs regardless of the calendar
// months a window spans.
const AvgDaysPerMonth = 30.44

// FixedCosts prorates the monthly fixed costs over the given number of days.
func FixedCosts(monthly float64, days int) float64 {
	return decimal.NewFromFloat(monthly).
		Div(decimal.NewFromFloat(AvgDaysPerMonth)).
		Mul(decimal.NewFromInt(int64(days))).
		Round(2).
		InexactFloat64()
}

// Summarize aggregates the flights of one aircraft over a window. The flights
// are expected to be pre-filtered to the window; an empty slice is valid and
// still carries the prorated fixed costs.
func Summarize(tail string, flights []*models.Flight, rates models.RateConfig, w models.Window) (*models.FinancialSummary, error) {
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	var (
		flightMinutes int
		hobbsMinutes  int
		hours         = decimal.Zero
	)
	// Each flight is ceilinged on its own before summing.
	for _, f := range flights {
		flightMinutes += f.FlightDurationMinutes
		hobbsMinutes += HobbsMinutes(f.FlightDurationMinutes)
		hours = hours.Add(decimal.NewFromFloat(BillableHours(f.FlightDurationMinutes)))
	}

	totalHours := hours.InexactFloat64()
	days := w.DaysInPeriod()
	revenue := Charge(totalHours, rates.RevenuePerHour)
	variable := Charge(totalHours, rates.VariableCostPerHour)
	fixed := FixedCosts(rates.MonthlyFixedCosts, days)

	net := decimal.NewFromFloat(revenue).
		Sub(decimal.NewFromFloat(variable)).
		Sub(decimal.NewFromFloat(fixed)).
		Round(2).
		InexactFloat64()

	return &models.FinancialSummary{
		TailNumber:         tail,
		StartDate:          w.Start,
		EndDate:            w.End,
		DaysInPeriod:       days,
		TotalFlights:       len(flights),
		TotalFlightMinutes: flightMinutes,
		TotalHobbsMinutes:  hobbsMinutes,
		TotalBillableHours: totalHours,
		TotalRevenue:       revenue,
		TotalVariableCosts: variable,
		TotalFixedCosts:    fixed,
		NetProfit:          net,
		Rates:              rates,
		Breakeven:          SolveBreakeven(totalHours, revenue, fixed, rates),
	}, nil
}
