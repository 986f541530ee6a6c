package domain

import "errors"

var (
	// ErrInvalidAddress marks a malformed account identifier, rejected at
	// the boundary with no state change.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrDuplicateSubscription marks a re-signup on a channel that already
	// holds an active record for the recipient. The previous record is
	// left untouched.
	ErrDuplicateSubscription = errors.New("duplicate subscription")

	// ErrNotFound marks an unknown unsubscribe token or session.
	ErrNotFound = errors.New("not found")

	// ErrPrematureEvent marks an event that arrived before the router was
	// activated. Surfaced as a defect, never swallowed silently.
	ErrPrematureEvent = errors.New("event before router activation")

	// ErrEnrichmentUnavailable marks a failed external descriptor lookup.
	// The cache stays empty so a later event retries.
	ErrEnrichmentUnavailable = errors.New("enrichment unavailable")

	// ErrInvalidCommandInput marks a malformed chat command, e.g. an
	// out-of-range event index. The whole command is aborted.
	ErrInvalidCommandInput = errors.New("invalid command input")
)
