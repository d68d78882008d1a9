// Package services implements the business logic of the group matchmaker:
// the webhook lifecycle controller, the interview state machine, answer
// validation, and the compatibility/matching engine. This file centralizes
// common service-level error values so they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrNotEnoughProfiles is returned when a matching run or ranking is
	// requested with fewer than two stored profiles.
	ErrNotEnoughProfiles = errors.New("not enough profiles to match")

	// ErrMatchRunInProgress is returned when a matching run is requested
	// while a previous run is still executing.
	ErrMatchRunInProgress = errors.New("matching run already in progress")
)
