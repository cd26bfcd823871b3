package sweep

import (
	"errors"
	"fmt"
	"strings"
)

// SweepError classifies failures encountered during a sweep.
//
// The taxonomy drives the controller's policy:
//   - SOURCE_UNAVAILABLE: fatal after bounded retries; aborts the sweep
//   - MALFORMED_OBSERVATION: skip the single record, count it, continue
//   - STORE_UNAVAILABLE: fatal for the current sweep
//   - REMOVAL_AMBIGUOUS: never mark removal; retry on the next sweep
type SweepError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Phase names the sweep phase that failed ("paginating" or
	// "reconciling-removals"), for operator-facing messages.
	Phase string

	// UUID identifies the affected vehicle, when there is one.
	UUID string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes sweep errors.
type ErrorCode string

const (
	// ErrCodeSourceUnavailable indicates a page fetch or targeted lookup
	// failed after retries were exhausted.
	ErrCodeSourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"

	// ErrCodeMalformedObservation indicates a record missing required fields.
	ErrCodeMalformedObservation ErrorCode = "MALFORMED_OBSERVATION"

	// ErrCodeStoreUnavailable indicates the persistence layer failed.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	// ErrCodeRemovalAmbiguous indicates a targeted re-check itself failed.
	// Absence of evidence is not evidence of removal.
	ErrCodeRemovalAmbiguous ErrorCode = "REMOVAL_AMBIGUOUS"
)

// Error implements the error interface.
func (e *SweepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Code)
	if e.Phase != "" {
		fmt.Fprintf(&b, " (phase=%s)", e.Phase)
	}
	if e.UUID != "" {
		fmt.Fprintf(&b, " (uuid=%s)", e.UUID)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *SweepError) Unwrap() error { return e.Err }

// IsMalformed returns true if err is a malformed-observation error.
// Uses errors.As to handle wrapped errors.
func IsMalformed(err error) bool {
	var se *SweepError
	return errors.As(err, &se) && se.Code == ErrCodeMalformedObservation
}

// IsSourceUnavailable returns true if err is a source failure.
func IsSourceUnavailable(err error) bool {
	var se *SweepError
	return errors.As(err, &se) && se.Code == ErrCodeSourceUnavailable
}

// IsStoreUnavailable returns true if err is a store failure.
func IsStoreUnavailable(err error) bool {
	var se *SweepError
	return errors.As(err, &se) && se.Code == ErrCodeStoreUnavailable
}

// MalformedObservationError builds the per-record error raised by the
// reconciler for observations missing required fields.
func MalformedObservationError(uuid string, missing []string) *SweepError {
	return &SweepError{
		Code: ErrCodeMalformedObservation,
		UUID: uuid,
		Err:  fmt.Errorf("missing required fields: %s", strings.Join(missing, ", ")),
	}
}
