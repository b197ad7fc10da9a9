package payment

import "context"

// AuthorizeRequest describes a hold to place on a customer's funds
type AuthorizeRequest struct {
	AmountCents  int64
	Currency     string
	CustomerRef  string
	Description  string
	PaymentToken string
}

// AuthorizeResult is the gateway's answer to an authorization attempt.
// RequiresAction means the customer must complete an extra step (3DS etc.)
// at ActionURL before the hold exists.
type AuthorizeResult struct {
	Success         bool
	AuthorizationID string
	RequiresAction  bool
	ActionURL       string
	ErrorCode       string
}

// VoidResult reports a released authorization
type VoidResult struct {
	Success   bool
	ErrorCode string
}

// FinalizeResult reports a capture (full or partial) or a zero-amount void
type FinalizeResult struct {
	Success      bool
	SettlementID string
	AmountCents  int64
	ErrorCode    string
}

// Gateway is the external payment processor. Every call is network I/O with
// failure modes outside this system's control; the adapter never retries,
// callers decide. Implementations must honor context deadlines, and a
// deadline expiry means "authorization status unknown": callers treat it as
// declined and flag for reconciliation.
type Gateway interface {
	// Authorize places a hold on funds without charging them
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error)
	// Void releases a previously placed hold
	Void(ctx context.Context, authorizationID string) (*VoidResult, error)
	// Finalize converts a hold into a charge. finalCents > 0 captures up to
	// originalCents; finalCents == 0 voids the hold instead.
	Finalize(ctx context.Context, authorizationID string, finalCents, originalCents int64, currency string) (*FinalizeResult, error)
}
