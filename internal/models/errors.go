package models

import (
	"fmt"
)

// ValidationError represents invalid caller input: a bad rate value, an
// inverted date window or a malformed request field.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// RejectReason classifies why a raw record produced no flight.
type RejectReason string

const (
	RejectCancelled        RejectReason = "cancelled"
	RejectMissingField     RejectReason = "missing_field"
	RejectInvalidTimestamp RejectReason = "invalid_timestamp"
)

// RejectError is returned by the normalizer for records that are skipped.
type RejectError struct {
	Reason   RejectReason
	FlightID string
	Field    string
	Err      error
}

func (e *RejectError) Error() string {
	id := e.FlightID
	if id == "" {
		id = "unknown"
	}
	switch e.Reason {
	case RejectCancelled:
		return fmt.Sprintf("flight %s: cancelled", id)
	case RejectMissingField:
		return fmt.Sprintf("flight %s: missing %s", id, e.Field)
	default:
		return fmt.Sprintf("flight %s: invalid %s: %v", id, e.Field, e.Err)
	}
}

func (e *RejectError) Unwrap() error {
	return e.Err
}
