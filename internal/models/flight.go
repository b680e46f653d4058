package models

import (
	"time"
)

// Flight is a canonical flight leg as stored in the flights table.
// It is never updated after insert.
type Flight struct {
	ID                    string    `json:"id" db:"id"`
	TailNumber            string    `json:"tailNumber" db:"tail_number"`
	DepartureAirport      string    `json:"departureAirport" db:"departure_airport"`
	ArrivalAirport        string    `json:"arrivalAirport" db:"arrival_airport"`
	DepartureTimeUTC      time.Time `json:"departureTime" db:"departure_time_utc"`
	ArrivalTimeUTC        time.Time `json:"arrivalTime" db:"arrival_time_utc"`
	FlightDurationMinutes int       `json:"flightDurationMinutes" db:"flight_duration_minutes"`
	CreatedAt             time.Time `json:"createdAt" db:"created_at"`
}

// NormalizeTimes forces every timestamp to UTC. Drivers hand back
// timestamptz values in the session zone.
func (f *Flight) NormalizeTimes() {
	f.DepartureTimeUTC = f.DepartureTimeUTC.UTC()
	f.ArrivalTimeUTC = f.ArrivalTimeUTC.UTC()
	f.CreatedAt = f.CreatedAt.UTC()
}

// FlightBilling is a flight together with what it bills for.
type FlightBilling struct {
	Flight
	HobbsMinutes     int     `json:"hobbsMinutes"`
	BillableHours    float64 `json:"billableHours"`
	EstimatedRevenue float64 `json:"estimatedRevenue"`
}
