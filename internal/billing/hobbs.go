// Package billing turns flight durations into billable hours and money.
package billing

import (
	"math"

	"github.com/shopspring/decimal"

	"airlogger/internal/models"
)

// HobbsAllowanceMinutes is the ground and taxi time added to every flight.
const HobbsAllowanceMinutes = 15

// CeilToTenth pushes any fractional tenth of an hour to the next 0.1 boundary.
// Values already on a boundary are unchanged. Both per-flight billing and the
// breakeven solver go through this function.
func CeilToTenth(hours float64) float64 {
	return math.Round(hours*10+0.49) / 10
}

// HobbsMinutes is the flight duration plus the fixed allowance.
func HobbsMinutes(durationMinutes int) int {
	return durationMinutes + HobbsAllowanceMinutes
}

// BillableHours returns the hours charged for a flight of the given duration.
func BillableHours(durationMinutes int) float64 {
	return CeilToTenth(float64(HobbsMinutes(durationMinutes)) / 60)
}

// RoundCents rounds a money amount to two decimal places, half away from zero.
func RoundCents(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

// Charge prices a number of hours at the hourly rate, rounded to cents.
func Charge(hours, ratePerHour float64) float64 {
	return decimal.NewFromFloat(hours).
		Mul(decimal.NewFromFloat(ratePerHour)).
		Round(2).
		InexactFloat64()
}

// BillFlight computes the Hobbs time, billable hours and revenue of one flight.
func BillFlight(f *models.Flight, rates models.RateConfig) models.FlightBilling {
	hours := BillableHours(f.FlightDurationMinutes)
	return models.FlightBilling{
		Flight:           *f,
		HobbsMinutes:     HobbsMinutes(f.FlightDurationMinutes),
		BillableHours:    hours,
		EstimatedRevenue: Charge(hours, rates.RevenuePerHour),
	}
}

// BillFlights applies BillFlight to each flight, preserving order.
func BillFlights(flights []*models.Flight, rates models.RateConfig) []models.FlightBilling {
	out := make([]models.FlightBilling, 0, len(flights))
	for _, f := range flights {
		out = append(out, BillFlight(f, rates))
	}
	return out
}
