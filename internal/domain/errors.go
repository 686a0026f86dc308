package domain

import (
	"errors"
	"fmt"
)

// ConfigError invalid configuration, detected before any venue call.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Reason)
}

// PriceUnavailableError a held or targeted asset has no price in the quote currency.
type PriceUnavailableError struct {
	Asset string
}

func (e *PriceUnavailableError) Error() string {
	return fmt.Sprintf("no price available for %s", e.Asset)
}

// VenueUnavailableError venue connectivity or API failure.
type VenueUnavailableError struct {
	Venue string
	Err   error
}

func (e *VenueUnavailableError) Error() string {
	return fmt.Sprintf("venue %s unavailable: %v", e.Venue, e.Err)
}

func (e *VenueUnavailableError) Unwrap() error {
	return e.Err
}

// RejectedError terminal order rejection from the venue. Never retried.
type RejectedError struct {
	Code   int
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("order rejected (code %d): %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("order rejected: %s", e.Reason)
}

// SubmitError transient submission failure, eligible for retry.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("order submission failed: %v", e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// IsRejected reports whether err carries a terminal venue rejection.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// IsPriceUnavailable reports whether err is a missing-price failure.
func IsPriceUnavailable(err error) bool {
	var pe *PriceUnavailableError
	return errors.As(err, &pe)
}

// IsConfig reports whether err is a configuration failure.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
