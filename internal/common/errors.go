// Package common defines the sentinel errors shared by the verification
// pipeline. Callers should use errors.Is to match these values; most of them
// are wrapped together with the underlying cause.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Per-asset errors, reported for one proof image without touching the other.
	ErrInvalidInput      = errors.New("invalid input")
	ErrCompressionFailed = errors.New("compression failed")

	// Submission-level errors. Both trigger rollback of uploaded objects.
	ErrUploadFailed = errors.New("upload failed")
	ErrCommitFailed = errors.New("commit failed")

	// Non-fatal errors, logged only.
	ErrDeleteFailed  = errors.New("delete failed")
	ErrPollTransport = errors.New("poll transport error")

	// Submission flow control.
	ErrIncompleteSubmission = errors.New("incomplete submission")
	ErrSubmissionInFlight   = errors.New("submission in flight")
	ErrAlreadyCommitted     = errors.New("submission already committed")
)
