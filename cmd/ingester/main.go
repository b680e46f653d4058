package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"airlogger/internal/config"
	"airlogger/internal/models"
	"airlogger/internal/provider"
	"airlogger/internal/repository"
	"airlogger/internal/services"
	"airlogger/pkg/database"
	"airlogger/pkg/logging"
	"airlogger/pkg/metrics"
)

func main() {
	tail := flag.String("tail", "", "Aircraft registration (default: DEFAULT_TAIL_NUMBER)")
	days := flag.Int("days", 0, "Days of history to fetch, ending now (default: INGEST_LOOKBACK_DAYS)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if *tail == "" {
		*tail = cfg.Ingestion.DefaultTailNumber
	}
	if *days <= 0 {
		*days = cfg.Ingestion.LookbackDays
	}
	registration := strings.ToUpper(*tail)

	logger := logging.NewStructuredLogger("airlogger-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "[INGESTER_START] Starting flight ingestion", logging.Fields{
		"tail_number": registration,
		"days":        *days,
	})

	metricsCollector := metrics.NewCollector("airlogger_ingester", prometheus.NewRegistry())

	db, err := database.Open(cfg.DB(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	if err := repository.InitSchema(ctx, db); err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to initialize schema", logging.Fields{}, err)
	}

	client, err := provider.NewFlightAwareClient(cfg.FlightAware.APIKey, logger, metricsCollector,
		provider.WithBaseURL(cfg.FlightAware.BaseURL),
		provider.WithTimeout(cfg.FlightAware.Timeout),
		provider.WithMaxPages(cfg.FlightAware.MaxPages),
	)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] FlightAware API configuration error", logging.Fields{}, err)
	}

	flightRepo := repository.NewFlightRepository(db, logger, metricsCollector)
	ingestionService := services.NewIngestionService(client, flightRepo, logger, metricsCollector)

	end := time.Now().UTC()
	window := models.Window{Start: end.AddDate(0, 0, -*days), End: end}

	result, err := ingestionService.Refresh(ctx, registration, window)
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{}, err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Tail Number:        %s\n", result.TailNumber)
	fmt.Printf("Window:             %s .. %s\n", window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
	fmt.Printf("Records Fetched:    %d\n", result.TotalRecords)
	fmt.Printf("Normalized:         %d\n", result.Normalized)
	fmt.Printf("New Flights:        %d\n", result.Inserted)
	fmt.Printf("Already Stored:     %d\n", result.Duplicates)
	fmt.Printf("Zero-Duration Fix:  %d\n", result.Clamped)
	fmt.Printf("Skipped:            %d\n", result.Skipped)

	reasons := make([]string, 0, len(result.SkipReasons))
	for reason := range result.SkipReasons {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Printf("  - %-16s %d\n", reason, result.SkipReasons[models.RejectReason(reason)])
	}

	if result.ProviderError != "" {
		fmt.Printf("\nProvider error: %s\n", result.ProviderError)
	}
	fmt.Printf("Duration:           %v\n", result.Duration)
}
