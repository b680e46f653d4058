package models

import (
	"time"
)

// Window is an inclusive range of departure instants.
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow builds the window covering whole UTC days from start through end:
// start of the first day up to one second before the day after end.
func DayWindow(start, end time.Time) Window {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return Window{Start: s, End: e.AddDate(0, 0, 1).Add(-time.Second)}
}

// Validate rejects windows whose end precedes their start.
func (w Window) Validate() error {
	if w.End.Before(w.Start) {
		return &ValidationError{
			Field:   "end_date",
			Value:   w.End.Format(time.RFC3339),
			Message: "end_date must not be before start_date",
		}
	}
	return nil
}

// DaysInPeriod counts whole elapsed days plus one, so a single-day window
// (00:00:00 to 23:59:59) counts as 1.
func (w Window) DaysInPeriod() int {
	return int(w.End.Sub(w.Start)/(24*time.Hour)) + 1
}

// FinancialSummary is computed on demand and never stored.
type FinancialSummary struct {
	TailNumber         string     `json:"tailNumber"`
	StartDate          time.Time  `json:"startDate"`
	EndDate            time.Time  `json:"endDate"`
	DaysInPeriod       int        `json:"daysInPeriod"`
	TotalFlights       int        `json:"totalFlights"`
	TotalFlightMinutes int        `json:"totalFlightMinutes"`
	TotalHobbsMinutes  int        `json:"totalHobbsMinutes"`
	TotalBillableHours float64    `json:"totalBillableHours"`
	TotalRevenue       float64    `json:"totalRevenue"`
	TotalVariableCosts float64    `json:"totalVariableCosts"`
	TotalFixedCosts    float64    `json:"totalFixedCosts"`
	NetProfit          float64    `json:"netProfit"`
	Rates              RateConfig `json:"rates"`
	Breakeven          Breakeven  `json:"breakeven"`
}

// Breakeven describes how far the period is from zero net profit. The
// pointer fields are nil when the margin per hour is not positive, since no
// number of hours can cover the fixed costs then.
type Breakeven struct {
	ProfitMarginPerHour     float64  `json:"profitMarginPerHour"`
	HoursNeeded             *float64 `json:"hoursNeeded"`
	RevenueNeeded           *float64 `json:"revenueNeeded"`
	AdditionalHoursNeeded   *float64 `json:"additionalHoursNeeded"`
	AdditionalRevenueNeeded *float64 `json:"additionalRevenueNeeded"`
	PercentageToBreakeven   *float64 `json:"percentageToBreakeven"`
}

// Defined reports whether breakeven can be reached at all.
func (b Breakeven) Defined() bool {
	return b.HoursNeeded != nil
}
