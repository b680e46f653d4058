package services

import (
	"context"

	"airlogger/internal/models"
	"airlogger/internal/repository"
	"airlogger/pkg/logging"
)

// SettingsService reads and replaces the active rate configuration
type SettingsService struct {
	repo   repository.RateConfigRepository
	logger *logging.StructuredLogger
}

// NewSettingsService creates a new settings service
func NewSettingsService(repo repository.RateConfigRepository, logger *logging.StructuredLogger) *SettingsService {
	return &SettingsService{
		repo:   repo,
		logger: logger,
	}
}

// Get returns the active configuration, materializing defaults on first use.
func (s *SettingsService) Get(ctx context.Context) (*models.RateConfig, error) {
	return s.repo.GetOrInit(ctx)
}

// Update replaces all three values. Invalid input leaves the stored row untouched.
func (s *SettingsService) Update(ctx context.Context, rates models.RateConfig) (*models.RateConfig, error) {
	if err := rates.Validate(); err != nil {
		s.logger.Warn(ctx, "[SETTINGS_INVALID] Rejected financial settings", logging.Fields{
			"error": err.Error(),
		})
		return nil, err
	}
	return s.repo.Replace(ctx, rates)
}
