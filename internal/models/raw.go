package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RawFlightRecord is one flight object exactly as decoded from the provider's JSON.
type RawFlightRecord map[string]interface{}

// FieldPath addresses a value inside a raw record; {"origin", "icao"} reads
// record["origin"]["icao"].
type FieldPath []string

// FieldCandidates lists paths in priority order. The first path holding a
// non-empty string wins; values are never merged.
type FieldCandidates []FieldPath

// Provider field names for each logical flight attribute. New provider
// spellings are added here.
var (
	IdentityFields = FieldCandidates{
		{"fa_flight_id"},
	}
	TailNumberFields = FieldCandidates{
		{"registration"},
		{"ident"},
	}
	DepartureAirportFields = FieldCandidates{
		{"origin", "icao"},
		{"origin", "code"},
	}
	ArrivalAirportFields = FieldCandidates{
		{"destination", "icao"},
		{"destination", "code"},
	}
	DepartureTimeFields = FieldCandidates{
		{"actual_off"},
		{"actual_out"},
		{"scheduled_off"},
		{"scheduled_out"},
		{"filed_departure_time"},
	}
	ArrivalTimeFields = FieldCandidates{
		{"actual_on"},
		{"actual_in"},
		{"scheduled_on"},
		{"scheduled_in"},
		{"filed_arrival_time"},
	}
)

// timestampLayouts are tried in order. Seconds are optional; layouts without a
// zone parse as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

func (p FieldPath) lookup(r RawFlightRecord) (string, bool) {
	var cur interface{} = map[string]interface{}(r)
	for _, key := range p {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return "", false
		}
		cur, ok = m[key]
		if !ok {
			return "", false
		}
	}

	s, ok := cur.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// Resolve returns the first non-empty value among the candidates.
func (c FieldCandidates) Resolve(r RawFlightRecord) (string, bool) {
	for _, p := range c {
		if v, ok := p.lookup(r); ok {
			return v, true
		}
	}
	return "", false
}

// ParseTimestamp parses an ISO-8601 timestamp into a UTC instant. A trailing
// "Z" and explicit offsets are honoured; values without any offset are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q: %w", s, lastErr)
}

// Cancelled reports the provider's cancellation flag.
func (r RawFlightRecord) Cancelled() bool {
	v, _ := r["cancelled"].(bool)
	return v
}

// FlightID returns the provider identity, or "" when absent.
func (r RawFlightRecord) FlightID() string {
	id, _ := IdentityFields.Resolve(r)
	return id
}

// DepartureTime resolves and parses the departure instant.
func (r RawFlightRecord) DepartureTime() (time.Time, error) {
	return r.resolveTime("departure_time", DepartureTimeFields)
}

// ArrivalTime resolves and parses the arrival instant.
func (r RawFlightRecord) ArrivalTime() (time.Time, error) {
	return r.resolveTime("arrival_time", ArrivalTimeFields)
}

func (r RawFlightRecord) resolveTime(field string, candidates FieldCandidates) (time.Time, error) {
	raw, ok := candidates.Resolve(r)
	if !ok {
		return time.Time{}, &RejectError{Reason: RejectMissingField, FlightID: r.FlightID(), Field: field}
	}
	t, err := ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, &RejectError{Reason: RejectInvalidTimestamp, FlightID: r.FlightID(), Field: field, Err: err}
	}
	return t, nil
}

// ToFlight converts the record into a Flight, or returns a *RejectError when
// the record is cancelled, incomplete or carries an unparseable timestamp.
// An arrival earlier than departure still yields a flight, with a zero duration.
func (r RawFlightRecord) ToFlight() (*Flight, error) {
	id := r.FlightID()

	if r.Cancelled() {
		return nil, &RejectError{Reason: RejectCancelled, FlightID: id}
	}

	required := []struct {
		name       string
		candidates FieldCandidates
	}{
		{"id", IdentityFields},
		{"tail_number", TailNumberFields},
		{"departure_airport", DepartureAirportFields},
		{"arrival_airport", ArrivalAirportFields},
	}
	values := make([]string, len(required))
	for i, f := range required {
		v, ok := f.candidates.Resolve(r)
		if !ok {
			return nil, &RejectError{Reason: RejectMissingField, FlightID: id, Field: f.name}
		}
		values[i] = v
	}

	// Both timestamps must be present before either is parsed, so a missing
	// arrival is reported as missing even when departure is malformed.
	if _, ok := DepartureTimeFields.Resolve(r); !ok {
		return nil, &RejectError{Reason: RejectMissingField, FlightID: id, Field: "departure_time"}
	}
	if _, ok := ArrivalTimeFields.Resolve(r); !ok {
		return nil, &RejectError{Reason: RejectMissingField, FlightID: id, Field: "arrival_time"}
	}

	departure, err := r.DepartureTime()
	if err != nil {
		return nil, err
	}
	arrival, err := r.ArrivalTime()
	if err != nil {
		return nil, err
	}

	return &Flight{
		ID:                    values[0],
		TailNumber:            values[1],
		DepartureAirport:      values[2],
		ArrivalAirport:        values[3],
		DepartureTimeUTC:      departure,
		ArrivalTimeUTC:        arrival,
		FlightDurationMinutes: DurationMinutes(departure, arrival),
	}, nil
}

// DurationMinutes is the elapsed time rounded to whole minutes, or 0 when
// arrival precedes departure.
func DurationMinutes(departure, arrival time.Time) int {
	minutes := math.Round(arrival.Sub(departure).Minutes())
	if minutes < 0 {
		return 0
	}
	return int(minutes)
}

// HasNegativeSpan reports the data-quality anomaly of an arrival recorded
// before departure. Such flights are stored with a zero duration.
func (f *Flight) HasNegativeSpan() bool {
	return f.ArrivalTimeUTC.Before(f.DepartureTimeUTC)
}
