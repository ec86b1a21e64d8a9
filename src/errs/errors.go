// Package errs defines the error taxonomy shared by the gateway and REST
// clients. Callers match with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParam = errors.New("null or invalid parameter")
	ErrInvalidState = errors.New("operation not valid in current state")
	ErrTransport    = errors.New("transport failure")
	ErrFormat       = errors.New("malformed payload")
	ErrJSON         = errors.New("invalid json")
	ErrTimeout      = errors.New("timed out")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrTryAgain     = errors.New("retries exhausted")
	ErrHTTP         = errors.New("http request failed")
)

// FromHTTPStatus maps an HTTP status code to the taxonomy. Codes below 400
// map to nil.
func FromHTTPStatus(code int) error {
	switch {
	case code < 400:
		return nil
	case code == 401:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, code)
	case code == 403:
		return fmt.Errorf("%w: status %d", ErrForbidden, code)
	case code == 404:
		return fmt.Errorf("%w: status %d", ErrNotFound, code)
	case code == 429:
		return fmt.Errorf("%w: status %d", ErrRateLimited, code)
	default:
		return fmt.Errorf("%w: status %d", ErrHTTP, code)
	}
}
