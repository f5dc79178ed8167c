package common

import "errors"

var (
	ErrUnknownStyle        = errors.New("unknown order style")
	ErrUnknownSide         = errors.New("unknown order side")
	ErrNonPositiveQuantity = errors.New("quantity must be positive")
	ErrPriceOutOfRange     = errors.New("price outside system range")
	ErrUnknownOrder        = errors.New("no live order with this id")
	ErrNegativeProfit      = errors.New("negative profit on fill")
	ErrBadLegs             = errors.New("compound order needs two limit legs")
	ErrVenueState          = errors.New("venue cannot make this transition")
)

// ContractError marks a violated precondition somewhere upstream of the
// exchange. These are not market conditions; the session that produced one
// should be aborted.
type ContractError struct {
	Op  string // operation that detected the violation
	Err error  // underlying sentinel, possibly wrapped with detail
}

func (e *ContractError) Error() string {
	return "contract violation in " + e.Op + ": " + e.Err.Error()
}

func (e *ContractError) Unwrap() error {
	return e.Err
}

// Contract wraps err as a ContractError raised by op.
func Contract(op string, err error) *ContractError {
	return &ContractError{Op: op, Err: err}
}

// IsContractViolation reports whether err, or anything it wraps, is a ContractError.
func IsContractViolation(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}
