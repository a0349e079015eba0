package rsvp

import (
	"context"

	"wedding-rsvp/internal/models"
)

// Backend is the external RSVP service as the session sees it. Implementations
// convert every transport failure into an *Error before returning.
type Backend interface {
	// LoadParty returns nil, nil when the token has no registered party.
	LoadParty(ctx context.Context, token string) (*models.Party, error)
	// FetchStatus returns nil, nil when nothing was submitted yet.
	FetchStatus(ctx context.Context, token string) (*models.RawStatus, error)
	// Submit returns a *ConflictError when another submission landed first.
	Submit(ctx context.Context, payload models.SubmissionPayload) error
}
