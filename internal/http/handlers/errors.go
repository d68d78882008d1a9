// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// These symbolic constants are mapped to HTTP responses via the fail() helper
// and give clients a stable, machine-readable taxonomy alongside the
// human-readable message. Codes are lowercase snake_case; generic codes
// mirror HTTP status semantics, domain codes cover business outcomes a
// status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeMatchRunFailed    = "match_run_failed"
	ErrCodeMatchRunBusy      = "match_run_in_progress"
	ErrCodeNotEnoughProfiles = "not_enough_profiles"
	ErrCodeListFailed        = "list_failed"
	ErrCodeDeleteFailed      = "delete_failed"
)
