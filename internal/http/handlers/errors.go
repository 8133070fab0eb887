// Package handlers defines HTTP-layer error codes used across all API
// endpoints.
//
// This file centralizes the symbolic error code constants mapped to HTTP
// responses via the fail() helper. Codes are lowercase snake_case and give
// clients a stable, machine-readable taxonomy that supplements the
// human-readable message. Generic codes mirror common HTTP status semantics;
// domain-specific codes cover business failures that a status alone cannot
// convey.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodePayloadTooLarge  = "payload_too_large"
	ErrCodeUnsupportedMedia = "unsupported_media_type"
	ErrCodeUploadFailed     = "upload_failed"
	ErrCodeAnswerFailed     = "answer_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeBillingFailed    = "billing_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
