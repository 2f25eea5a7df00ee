package connectors

import (
	"errors"
	"fmt"
)

// ErrConnectivity marks failures where the exchange could not be reached or
// did not answer a read request successfully. Callers must treat these as
// outages, never as "the account is empty".
var ErrConnectivity = errors.New("exchange connectivity failure")

// OrderRejectedError means the exchange understood the order and said no
// (bad parameters, insufficient funds, market rules). Retrying the same
// request is pointless.
type OrderRejectedError struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *OrderRejectedError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("order rejected (%s): %s", e.Name, e.Message)
	}
	return fmt.Sprintf("order rejected (HTTP %d): %s", e.StatusCode, e.Message)
}

// ExchangeUnavailableError means the order never reached a definitive answer:
// transport failure, timeout, rate limiting or a 5xx. These are the only
// order errors worth retrying.
type ExchangeUnavailableError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ExchangeUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("exchange unavailable: %v", e.Err)
	}
	return fmt.Sprintf("exchange unavailable (HTTP %d): %s", e.StatusCode, e.Message)
}

func (e *ExchangeUnavailableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether an order placement error may be retried
// without risking a duplicate fill on the exchange side.
func IsRetryable(err error) bool {
	var unavailable *ExchangeUnavailableError
	return errors.As(err, &unavailable)
}

func isTransientStatus(code int) bool {
	if code >= 500 && code <= 599 {
		return true
	}
	return code == 429 || code == 408
}
