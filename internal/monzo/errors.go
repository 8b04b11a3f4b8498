package monzo

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx answer from the Monzo API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("monzo: %s (HTTP %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("monzo: HTTP %d", e.StatusCode)
}

// IsUnauthorized reports whether err is a 401 from the API, the one failure
// callers may recover from by refreshing the access token.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
