package rates

import (
	"errors"
	"fmt"

	"github.com/sig-0/cnbrates/storage/types"
)

var (
	// ErrValidation is returned for unknown currencies and malformed dates or years
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is matched by every *NotFoundError
	ErrNotFound = errors.New("rate not found")
)

// NotFoundError is returned when no rate exists for the currency on or before
// the requested date, even after a live refetch
type NotFoundError struct {
	Currency types.Currency
	Date     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf(
		"exchange rate for currency %s not found on or before %s",
		e.Currency,
		e.Date,
	)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
