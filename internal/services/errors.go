// Package services defines the business logic for file ingestion, document
// chat, and billing. This file centralizes common service-level error values
// so that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

var (
	// ErrFileNotFound indicates that the requested file does not exist or is
	// not accessible to the current user.
	ErrFileNotFound = errors.New("file not found")

	// ErrEmptyMessage is returned when a chat request contains an empty
	// message after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooLong is returned when a chat message exceeds the maximum
	// configured length limit.
	ErrTooLong = errors.New("message too long")

	// ErrEmptyUpload is returned when an upload contains no bytes.
	ErrEmptyUpload = errors.New("upload is empty")

	// ErrUploadTooLarge is returned when an upload exceeds the byte ceiling
	// of the user's plan.
	ErrUploadTooLarge = errors.New("upload exceeds plan size limit")

	// ErrNotPDF is returned when an upload does not carry the PDF magic bytes.
	ErrNotPDF = errors.New("upload is not a PDF")

	// ErrTooManyPages is returned by ingestion when the extracted page count
	// exceeds the plan's page ceiling.
	ErrTooManyPages = errors.New("document exceeds plan page limit")

	// ErrNoPriceConfigured is returned when a checkout is requested but no
	// price id is configured for the paid plan.
	ErrNoPriceConfigured = errors.New("no price configured for plan")
)
