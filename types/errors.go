package types

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/calehh/hac-election/numeric"
	"github.com/calehh/hac-election/state"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrPermission        = errors.New("permission denied")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInsufficientSpend = errors.New("spend too small to move the curve")
	ErrNothingToRefund   = errors.New("sale too small to refund anything")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrAlreadySettled    = errors.New("election already settled")

	ErrConcurrencyConflict = state.ErrConcurrencyConflict
)

// Validation wraps ErrValidation with a user facing reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Permission(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermission, fmt.Sprintf(format, args...))
}

// PartialFailureError reports a multi-document write where the earlier
// writes landed and a later one did not.
type PartialFailureError struct {
	Completed []string
	Failed    string
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("partial failure: completed %v, failed %s: %v", e.Completed, e.Failed, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}

const (
	CodeOK uint32 = iota
	CodeValidation
	CodePermission
	CodeInsufficientFunds
	CodeInsufficientSpend
	CodeNothingToRefund
	CodeInvalidAmount
	CodeAlreadySettled
	CodeConcurrencyConflict
	CodePartialFailure
	CodeInternal
)

var codeNames = map[uint32]string{
	CodeOK:                  "ok",
	CodeValidation:          "validation",
	CodePermission:          "permission",
	CodeInsufficientFunds:   "insufficient_funds",
	CodeInsufficientSpend:   "insufficient_spend",
	CodeNothingToRefund:     "nothing_to_refund",
	CodeInvalidAmount:       "invalid_amount",
	CodeAlreadySettled:      "already_settled",
	CodeConcurrencyConflict: "concurrency_conflict",
	CodePartialFailure:      "partial_failure",
	CodeInternal:            "internal",
}

func CodeName(code uint32) string {
	if n, ok := codeNames[code]; ok {
		return n
	}
	return "unknown"
}

// CodeOf classifies err. Partial failures win over whatever they wrap.
func CodeOf(err error) uint32 {
	var partial *PartialFailureError
	switch {
	case err == nil:
		return CodeOK
	case errors.As(err, &partial):
		return CodePartialFailure
	case errors.Is(err, ErrAlreadySettled):
		return CodeAlreadySettled
	case errors.Is(err, ErrInsufficientFunds):
		return CodeInsufficientFunds
	case errors.Is(err, ErrInsufficientSpend):
		return CodeInsufficientSpend
	case errors.Is(err, ErrNothingToRefund):
		return CodeNothingToRefund
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, numeric.ErrInvalidCoins):
		return CodeInvalidAmount
	case errors.Is(err, ErrPermission):
		return CodePermission
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrConcurrencyConflict):
		return CodeConcurrencyConflict
	default:
		return CodeInternal
	}
}

func HTTPStatus(code uint32) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeValidation, CodeInvalidAmount, CodeInsufficientSpend, CodeNothingToRefund:
		return http.StatusBadRequest
	case CodePermission:
		return http.StatusForbidden
	case CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case CodeAlreadySettled, CodeConcurrencyConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
