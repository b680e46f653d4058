package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"airlogger/internal/models"
	"airlogger/pkg/database"
	"airlogger/pkg/logging"
)

// settingsRowID is the only row the financial_settings table may hold.
const settingsRowID = 1

// RateConfigRepository stores the single active rate configuration
type RateConfigRepository interface {
	// GetOrInit returns the active configuration, creating it from the
	// defaults the first time it is read.
	GetOrInit(ctx context.Context) (*models.RateConfig, error)
	// Replace overwrites all three values atomically and returns the stored row.
	Replace(ctx context.Context, rates models.RateConfig) (*models.RateConfig, error)
}

type rateConfigRepository struct {
	db     *database.DB
	logger *logging.StructuredLogger
	now    func() time.Time
}

// NewRateConfigRepository creates a new rate configuration repository
func NewRateConfigRepository(db *database.DB, logger *logging.StructuredLogger) RateConfigRepository {
	return &rateConfigRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

const selectSettingsQuery = `
	SELECT id, revenue_per_hour, monthly_fixed_costs, variable_cost_per_hour, updated_at
	FROM financial_settings
	WHERE id = ?
`

// GetOrInit reads the configuration, inserting defaults when the table is empty
func (r *rateConfigRepository) GetOrInit(ctx context.Context) (*models.RateConfig, error) {
	defaults := models.DefaultRateConfig()

	var rates models.RateConfig
	err := r.db.InTx(ctx, "get_or_init_settings", func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO financial_settings (
				id, revenue_per_hour, monthly_fixed_costs, variable_cost_per_hour, updated_at
			)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO NOTHING
		`),
			settingsRowID,
			defaults.RevenuePerHour,
			defaults.MonthlyFixedCosts,
			defaults.VariableCostPerHour,
			r.now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to initialize settings: %w", err)
		}

		return tx.GetContext(ctx, &rates, tx.Rebind(selectSettingsQuery), settingsRowID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	rates.UpdatedAt = rates.UpdatedAt.UTC()
	return &rates, nil
}

// Replace upserts the configuration in one statement so readers never see
// a mix of old and new values.
func (r *rateConfigRepository) Replace(ctx context.Context, rates models.RateConfig) (*models.RateConfig, error) {
	if err := rates.Validate(); err != nil {
		return nil, err
	}

	var stored models.RateConfig
	err := r.db.InTx(ctx, "replace_settings", func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO financial_settings (
				id, revenue_per_hour, monthly_fixed_costs, variable_cost_per_hour, updated_at
			)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				revenue_per_hour = EXCLUDED.revenue_per_hour,
				monthly_fixed_costs = EXCLUDED.monthly_fixed_costs,
				variable_cost_per_hour = EXCLUDED.variable_cost_per_hour,
				updated_at = EXCLUDED.updated_at
		`),
			settingsRowID,
			rates.RevenuePerHour,
			rates.MonthlyFixedCosts,
			rates.VariableCostPerHour,
			r.now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to replace settings: %w", err)
		}

		return tx.GetContext(ctx, &stored, tx.Rebind(selectSettingsQuery), settingsRowID)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info(ctx, "[REPO_REPLACE_SETTINGS] Financial settings replaced", logging.Fields{
		"revenue_per_hour":       stored.RevenuePerHour,
		"monthly_fixed_costs":    stored.MonthlyFixedCosts,
		"variable_cost_per_hour": stored.VariableCostPerHour,
	})

	stored.UpdatedAt = stored.UpdatedAt.UTC()
	return &stored, nil
}
