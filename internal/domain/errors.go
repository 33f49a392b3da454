package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidArgument marks caller mistakes: empty symbols, non-positive
// quantities or negative prices. Wrap it with context via fmt.Errorf.
var ErrInvalidArgument = errors.New("invalid argument")

// NotFoundError is returned when a price query exhausts every source, or
// when a ledger operation targets a symbol with no open lots.
type NotFoundError struct {
	Query string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%q not found", e.Query)
}

// InsufficientPositionError is returned when a sell requests more than the
// total quantity held. The ledger is left untouched in that case.
type InsufficientPositionError struct {
	Symbol    string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e InsufficientPositionError) Error() string {
	return fmt.Sprintf("insufficient position: have %s %s, requested %s",
		e.Available, e.Symbol, e.Requested)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// IsInsufficientPosition reports whether err is an InsufficientPositionError.
func IsInsufficientPosition(err error) bool {
	var ip InsufficientPositionError
	return errors.As(err, &ip)
}
