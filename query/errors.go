package query

import (
	"errors"
	"fmt"
)

// ErrRateUnavailable marks a pair present in neither direct nor inverse
// form in the snapshot. Callers should trigger an update and retry
var ErrRateUnavailable = errors.New("rate not found in cache, run an update to load data")

// CurrencyNotFoundError marks a lookup or filter referencing an
// unrecognized currency code
type CurrencyNotFoundError struct {
	Code string
}

func (e *CurrencyNotFoundError) Error() string {
	return fmt.Sprintf("unknown currency %q", e.Code)
}
