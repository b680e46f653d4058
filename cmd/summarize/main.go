package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"airlogger/internal/billing"
	"airlogger/internal/models"
	"airlogger/pkg/logging"
)

// savedResponse is the body of an AeroAPI /flights/{ident} response saved to disk.
type savedResponse struct {
	Flights []models.RawFlightRecord `json:"flights"`
}

// Prints per-flight billing and the period summary for a saved provider
// response without touching a database.
func main() {
	input := flag.String("input", "", "Path to a saved AeroAPI flights response (JSON)")
	tail := flag.String("tail", "", "Only bill flights for this registration")
	startDate := flag.String("start", "", "First day of the period (YYYY-MM-DD)")
	endDate := flag.String("end", "", "Last day of the period (YYYY-MM-DD)")
	revenue := flag.Float64("revenue-per-hour", models.DefaultRevenuePerHour, "Revenue per billable hour")
	fixed := flag.Float64("monthly-fixed-costs", models.DefaultMonthlyFixedCosts, "Monthly fixed costs")
	variable := flag.Float64("variable-cost-per-hour", models.DefaultVariableCostPerHour, "Variable cost per billable hour")
	flag.Parse()

	logger := logging.NewStructuredLogger("airlogger-summarize", "1.0.0", logging.WarnLevel)
	ctx := context.Background()

	if *input == "" || *startDate == "" || *endDate == "" {
		fmt.Fprintln(os.Stderr, "-input, -start and -end are required")
		flag.Usage()
		os.Exit(2)
	}

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -start: %v\n", err)
		os.Exit(2)
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -end: %v\n", err)
		os.Exit(2)
	}
	window := models.DayWindow(start, end)

	rates := models.RateConfig{
		RevenuePerHour:      *revenue,
		MonthlyFixedCosts:   *fixed,
		VariableCostPerHour: *variable,
	}

	content, err := os.ReadFile(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}

	var saved savedResponse
	if err := json.Unmarshal(content, &saved); err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding input: %v\n", err)
		os.Exit(1)
	}

	registration := strings.ToUpper(*tail)
	flights := make([]*models.Flight, 0, len(saved.Flights))
	skipped := 0
	for _, record := range saved.Flights {
		flight, err := record.ToFlight()
		if err != nil {
			var reject *models.RejectError
			if errors.As(err, &reject) {
				logger.Warn(ctx, "[SKIP] Record skipped", logging.Fields{
					"flight_id": reject.FlightID,
					"reason":    string(reject.Reason),
					"field":     reject.Field,
				})
			}
			skipped++
			continue
		}
		if registration != "" && flight.TailNumber != registration {
			continue
		}
		if flight.DepartureTimeUTC.Before(window.Start) || flight.DepartureTimeUTC.After(window.End) {
			continue
		}
		flights = append(flights, flight)
	}

	if registration == "" && len(flights) > 0 {
		registration = flights[0].TailNumber
	}

	summary, err := billing.Summarize(registration, flights, rates, window)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("FLIGHT BILLING  %s  %s .. %s\n", registration, *startDate, *endDate)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Records: %d  Flights in period: %d  Skipped: %d\n\n", len(saved.Flights), len(flights), skipped)

	fmt.Printf("%-28s %-5s %-5s %-17s %5s %5s %6s %10s\n", "ID", "FROM", "TO", "DEPARTED (UTC)", "MIN", "HOBBS", "HOURS", "REVENUE")
	for _, b := range billing.BillFlights(flights, rates) {
		fmt.Printf("%-28s %-5s %-5s %-17s %5d %5d %6.1f %10.2f\n",
			b.ID, b.DepartureAirport, b.ArrivalAirport,
			b.DepartureTimeUTC.Format("2006-01-02 15:04"),
			b.FlightDurationMinutes, b.HobbsMinutes, b.BillableHours, b.EstimatedRevenue)
	}

	fmt.Println()
	fmt.Printf("Days in period:       %d\n", summary.DaysInPeriod)
	fmt.Printf("Billable hours:       %.1f\n", summary.TotalBillableHours)
	fmt.Printf("Revenue:              %.2f\n", summary.TotalRevenue)
	fmt.Printf("Variable costs:       %.2f\n", summary.TotalVariableCosts)
	fmt.Printf("Fixed costs:          %.2f\n", summary.TotalFixedCosts)
	fmt.Printf("Net profit:           %.2f\n", summary.NetProfit)

	be := summary.Breakeven
	fmt.Printf("Margin per hour:      %.2f\n", be.ProfitMarginPerHour)
	if !be.Defined() {
		fmt.Println("Breakeven:            unreachable (margin per hour is not positive)")
		return
	}
	fmt.Printf("Breakeven hours:      %.1f\n", *be.HoursNeeded)
	fmt.Printf("Breakeven revenue:    %.2f\n", *be.RevenueNeeded)
	fmt.Printf("Additional hours:     %.1f\n", *be.AdditionalHoursNeeded)
	fmt.Printf("Additional revenue:   %.2f\n", *be.AdditionalRevenueNeeded)
	fmt.Printf("Progress:             %.2f%%\n", *be.PercentageToBreakeven)
}
