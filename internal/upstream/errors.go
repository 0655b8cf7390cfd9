package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TimeoutError reports an upstream call that exceeded its deadline.
type TimeoutError struct {
	Service string
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: deadline exceeded: %v", e.Service, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// UnavailableError reports a refused connection, a non-2xx status, or a
// malformed response body.
type UnavailableError struct {
	Service string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: unavailable: %v", e.Service, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is an upstream timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsUnavailable reports whether err is an upstream availability failure.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// classify wraps a transport error as timeout or unavailable.
func classify(service string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Service: service, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Service: service, Err: err}
	}
	return &UnavailableError{Service: service, Err: err}
}
