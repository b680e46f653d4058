package models

import (
	"fmt"
	"math"
	"time"
)

// Values materialized the first time the rate configuration is read.
const (
	DefaultRevenuePerHour      = 150.0
	DefaultMonthlyFixedCosts   = 500.0
	DefaultVariableCostPerHour = 75.0
)

// RateConfig is the single active set of prices and costs used for billing.
type RateConfig struct {
	ID                  int64     `json:"id" db:"id"`
	RevenuePerHour      float64   `json:"revenue_per_hour" db:"revenue_per_hour"`
	MonthlyFixedCosts   float64   `json:"monthly_fixed_costs" db:"monthly_fixed_costs"`
	VariableCostPerHour float64   `json:"variable_cost_per_hour" db:"variable_cost_per_hour"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultRateConfig returns the configuration used when none has been saved.
func DefaultRateConfig() RateConfig {
	return RateConfig{
		RevenuePerHour:      DefaultRevenuePerHour,
		MonthlyFixedCosts:   DefaultMonthlyFixedCosts,
		VariableCostPerHour: DefaultVariableCostPerHour,
	}
}

// Validate rejects negative or non-finite values.
func (r RateConfig) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"revenue_per_hour", r.RevenuePerHour},
		{"monthly_fixed_costs", r.MonthlyFixedCosts},
		{"variable_cost_per_hour", r.VariableCostPerHour},
	}

	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &ValidationError{
				Field:   f.name,
				Value:   fmt.Sprint(f.value),
				Message: fmt.Sprintf("%s must be a finite number", f.name),
			}
		}
		if f.value < 0 {
			return &ValidationError{
				Field:   f.name,
				Value:   fmt.Sprint(f.value),
				Message: fmt.Sprintf("%s must not be negative", f.name),
			}
		}
	}
	return nil
}

// ProfitMarginPerHour is what each billed hour contributes toward fixed costs.
func (r RateConfig) ProfitMarginPerHour() float64 {
	return r.RevenuePerHour - r.VariableCostPerHour
}
