package errors

import (
	"errors"
	"fmt"

	"github.com/polkiloo/payouts/internal/domain/model"
)

// RiskDeclinedError is returned when the risk gate declines a withdrawal.
type RiskDeclinedError struct {
	Reason model.ReasonCode
}

func (e *RiskDeclinedError) Error() string {
	return fmt.Sprintf("withdrawal declined: %s", e.Reason)
}

// Message returns the fixed text for the decline reason.
func (e *RiskDeclinedError) Message() string {
	return e.Reason.Message()
}

// RailError wraps a rail failure with an optional reason code. Permanent
// failures are not retried by the background worker.
type RailError struct {
	Reason    model.ReasonCode
	Permanent bool
	Err       error
}

func (e *RailError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("rail failure: %s", e.Reason)
	}
	return fmt.Sprintf("rail failure: %v", e.Err)
}

func (e *RailError) Unwrap() error {
	return e.Err
}

// FailureReason maps a send error to the reason stored on the withdrawal.
func FailureReason(err error) model.ReasonCode {
	var railErr *RailError
	if errors.As(err, &railErr) && railErr.Reason != "" {
		return railErr.Reason
	}
	return model.ReasonPluginUnknownFailure
}

// IsPermanent reports whether a rail failure must not be retried.
func IsPermanent(err error) bool {
	var railErr *RailError
	return errors.As(err, &railErr) && railErr.Permanent
}
