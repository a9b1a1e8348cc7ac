package validation

import "errors"

// Failure reasons surfaced in validation results. Each maps to a distinct
// upstream condition so callers can tell a dead claim from a flaky source.
var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden or private")
	ErrRedirected    = errors.New("redirected, name may be misspelled")
	ErrUpstream      = errors.New("upstream server error")
	ErrNotConfigured = errors.New("client not configured")
)
