package txretry

import (
	"errors"
	"fmt"
)

var (
	// ErrNonceConflict marks an attempt rejected because its nonce was already used.
	ErrNonceConflict = errors.New("nonce conflict")

	// ErrUnderpriced marks an attempt rejected because its fee did not outbid a pending transaction.
	ErrUnderpriced = errors.New("replacement transaction underpriced")

	// ErrRetryBudgetExhausted is returned when every allowed attempt failed with a retryable error.
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

	// ErrAmbiguousOutcome is returned when an attempt timed out: it may or may not have been broadcast.
	ErrAmbiguousOutcome = errors.New("transaction outcome unknown")

	// ErrFeeCapExceeded is returned when the next fee bid would go above the configured maximum.
	ErrFeeCapExceeded = errors.New("fee cap exceeded")

	// ErrReceiptUnavailable is returned when the transaction was sent but its receipt could not be fetched.
	ErrReceiptUnavailable = errors.New("receipt unavailable")
)

// FatalError ends a submission without retrying. Reason keeps the provider message as received.
type FatalError struct {
	Attempt int
	Reason  string
	Err     error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("attempt %d failed: %s", e.Attempt, e.Reason)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err ended a submission for a non-retryable reason.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// ErrorType returns a short label for err, used for metrics and logs.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrRetryBudgetExhausted):
		return "retry_budget_exhausted"
	case errors.Is(err, ErrAmbiguousOutcome):
		return "ambiguous_outcome"
	case errors.Is(err, ErrFeeCapExceeded):
		return "fee_cap_exceeded"
	case errors.Is(err, ErrReceiptUnavailable):
		return "receipt_unavailable"
	case IsFatal(err):
		return "fatal"
	}
	return "unknown_error"
}
