package shared

import (
	"fmt"
	"net/http"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Request errors
	ErrValidation = fmt.Errorf("invalid request")
	ErrDecryption = fmt.Errorf("state could not be decrypted")

	// Upstream errors
	ErrUpstream   = fmt.Errorf("upstream request failed")
	ErrAPIRequest = fmt.Errorf("API request failed")

	// Identity-scoped sync errors
	ErrMissingRefreshToken = fmt.Errorf("no refresh token available")
	ErrRefreshFailed       = fmt.Errorf("token refresh failed")
	ErrPollFailed          = fmt.Errorf("saved tracks poll failed")
	ErrNotifyFailed        = fmt.Errorf("webhook notification failed")

	// Storage errors
	ErrPersistence      = fmt.Errorf("persistence failed")
	ErrIdentityNotFound = fmt.Errorf("identity not found")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// UpstreamError is a non-success response from the accounts or API server.
//
// The callback handler forwards Status, Header and Body to the browser unchanged.
type UpstreamError struct {
	Status int
	Header http.Header
	Body   []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%v: status %d", ErrUpstream, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}
