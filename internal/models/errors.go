package models

import "errors"

// Error taxonomy for the profile-learning core. Callers distinguish these
// with errors.Is; everything else is wrapped context.
var (
	// ErrDecode means the submitted image bytes could not be decoded. The
	// upload attempt fails; a blank fingerprint is never substituted.
	ErrDecode = errors.New("image could not be decoded")

	// ErrNotFound is returned when an operation references an unknown
	// personId or conversationRef. The record is never fabricated.
	ErrNotFound = errors.New("record not found")

	// ErrConflict signals a lost version race on a read-modify-write update.
	// Merge and feedback writers retry it transparently with bounded retries.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrReasoning means the external reasoning service failed or returned
	// an unusable payload. The analysis cycle is skipped; the record is left
	// untouched and the next trigger retries naturally.
	ErrReasoning = errors.New("reasoning service failure")
)
