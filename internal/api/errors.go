package api

// Error strings used in error envelopes. The webhook contract fixes
// the method and auth wording exactly; the rest follow the same shape.
const (
	ErrMethodNotAllowed = "method not allowed"
	ErrUnauthorized     = "unauthorized"
	ErrBadRequest       = "bad_request"
	ErrNotFound         = "not_found"
	ErrInternal         = "internal_error"
	ErrRateLimited      = "rate_limited"
)
