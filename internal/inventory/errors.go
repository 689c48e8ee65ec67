package inventory

import (
	"errors"
	"fmt"
	"strings"
)

// TransientFetchError is a retryable upstream failure: rate limiting, 5xx
// responses and connection level faults.
type TransientFetchError struct {
	URL    string
	Status int
	// Connection is set for DNS, dial, reset and timeout failures, the only
	// failures that count toward switching to an alternate host.
	Connection bool
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient fetch error: %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("transient fetch error: %s: %v", e.URL, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// FatalFetchError aborts one adapter: non-retryable status, GraphQL errors
// or retries exhausted on every host.
type FatalFetchError struct {
	Source   string
	URL      string
	Status   int
	Attempts int
	Err      error
}

func (e *FatalFetchError) Error() string {
	var parts []string
	if e.Source != "" {
		parts = append(parts, e.Source)
	}
	parts = append(parts, fmt.Sprintf("fatal fetch error: %s", e.URL))
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status %d", e.Status))
	}
	if e.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("after %d attempts", e.Attempts))
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *FatalFetchError) Unwrap() error {
	return e.Err
}

type DateParseError struct {
	Input string
	Err   error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("parse date %q: %v", e.Input, e.Err)
}

func (e *DateParseError) Unwrap() error {
	return e.Err
}

type MeasurementParseError struct {
	Input  string
	Reason string
}

func (e *MeasurementParseError) Error() string {
	return fmt.Sprintf("parse measurement %q: %s", e.Input, e.Reason)
}

// ValidationError rejects one record, the run continues without it.
type ValidationError struct {
	JoinKey string
	Fields  []string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record %s: %s: %v", e.JoinKey, strings.Join(e.Fields, ", "), e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ReconciliationJoinError is a secondary record whose key matches no primary
// record. It is logged and dropped.
type ReconciliationJoinError struct {
	Source string
	Key    string
	// Nearest is the closest primary key, for manual review only.
	Nearest string
}

func (e *ReconciliationJoinError) Error() string {
	msg := fmt.Sprintf("%s: no primary record for key %q", e.Source, e.Key)
	if e.Nearest != "" {
		msg += fmt.Sprintf(" (nearest %q)", e.Nearest)
	}
	return msg
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var transient *TransientFetchError
	return errors.As(err, &transient)
}

// IsFatal reports whether err aborts an adapter.
func IsFatal(err error) bool {
	var fatal *FatalFetchError
	return errors.As(err, &fatal)
}
