package domain

import "errors"

// Error kinds. Call sites wrap these with fmt.Errorf("%w: ...") and the
// request boundaries classify failures with errors.Is.
var (
	// ErrInvalidParameter reports a request parameter outside its configured
	// bounds. Parameters are never clamped silently.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInsufficientData reports a series too short for the requested
	// computation.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrUpstreamUnavailable reports that a market-data source returned no
	// usable data.
	ErrUpstreamUnavailable = errors.New("upstream data unavailable")
)

// IsClientError reports whether err belongs to one of the kinds above, all
// of which are caused by the request rather than by the service.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidParameter) ||
		errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrUpstreamUnavailable)
}
