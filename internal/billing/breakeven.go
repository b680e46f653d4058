package billing

import (
	"github.com/shopspring/decimal"

	"airlogger/internal/models"
)

// SolveBreakeven finds the billable hours at which the period's net profit
// reaches zero. With a non-positive margin per hour breakeven is unreachable
// and every derived field stays nil.
func SolveBreakeven(billableHours, revenue, fixedCosts float64, rates models.RateConfig) models.Breakeven {
	margin := rates.ProfitMarginPerHour()
	b := models.Breakeven{ProfitMarginPerHour: RoundCents(margin)}
	if margin <= 0 {
		return b
	}

	hoursNeeded := CeilToTenth(fixedCosts / margin)
	revenueNeeded := Charge(hoursNeeded, rates.RevenuePerHour)

	additionalHours := decimal.Max(decimal.Zero,
		decimal.NewFromFloat(hoursNeeded).Sub(decimal.NewFromFloat(billableHours)),
	).InexactFloat64()
	additionalRevenue := decimal.Max(decimal.Zero,
		decimal.NewFromFloat(revenueNeeded).Sub(decimal.NewFromFloat(revenue)).Round(2),
	).InexactFloat64()

	b.HoursNeeded = &hoursNeeded
	b.RevenueNeeded = &revenueNeeded
	b.AdditionalHoursNeeded = &additionalHours
	b.AdditionalRevenueNeeded = &additionalRevenue

	pct := progress(revenue, revenueNeeded)
	b.PercentageToBreakeven = &pct
	return b
}

// progress is revenue as a percentage of breakeven revenue, capped at 100.
func progress(revenue, revenueNeeded float64) float64 {
	if revenueNeeded <= 0 {
		return 100
	}
	pct := decimal.NewFromFloat(revenue).
		Div(decimal.NewFromFloat(revenueNeeded)).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	return decimal.Min(pct, decimal.NewFromInt(100)).InexactFloat64()
}
