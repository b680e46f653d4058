package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"airlogger/internal/config"
	"airlogger/internal/handlers"
	"airlogger/internal/provider"
	"airlogger/internal/repository"
	"airlogger/internal/services"
	"airlogger/pkg/database"
	"airlogger/pkg/logging"
	"airlogger/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("airlogger-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting AirLogger API server", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_driver":   cfg.Database.Driver,
		"tail_number": cfg.Ingestion.DefaultTailNumber,
	})

	metricsCollector := metrics.NewCollector("airlogger", prometheus.DefaultRegisterer)

	db, err := database.Open(cfg.DB(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	if err := repository.InitSchema(ctx, db); err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to initialize schema", logging.Fields{}, err)
	}

	// Initialize repositories
	flightRepo := repository.NewFlightRepository(db, logger, metricsCollector)
	rateRepo := repository.NewRateConfigRepository(db, logger)

	// A missing API key leaves the source nil; stored data is still served
	// and refreshes report a configuration error.
	var source services.FlightSource
	client, err := provider.NewFlightAwareClient(cfg.FlightAware.APIKey, logger, metricsCollector,
		provider.WithBaseURL(cfg.FlightAware.BaseURL),
		provider.WithTimeout(cfg.FlightAware.Timeout),
		provider.WithMaxPages(cfg.FlightAware.MaxPages),
	)
	if err != nil {
		logger.Warn(ctx, "[STARTUP_WARNING] FlightAware client disabled", logging.Fields{
			"error": err.Error(),
		})
	} else {
		source = client
	}

	// Initialize services
	ingestionService := services.NewIngestionService(source, flightRepo, logger, metricsCollector)
	billingService := services.NewBillingService(flightRepo, rateRepo, logger, metricsCollector)
	settingsService := services.NewSettingsService(rateRepo, logger)

	flightHandler := handlers.NewFlightHandler(
		ingestionService,
		billingService,
		settingsService,
		flightRepo,
		handlers.Options{
			DefaultTailNumber: cfg.Ingestion.DefaultTailNumber,
			LookbackDays:      cfg.Ingestion.LookbackDays,
		},
		logger,
		metricsCollector,
	)

	router := mux.NewRouter()
	flightHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
