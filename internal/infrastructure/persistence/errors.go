package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/foodcourt/storefront/internal/domain/shared"
)

// translate maps driver errors onto domain errors. Anything the database
// layer cannot classify means the remote store could not be reached or
// refused the write, which callers treat as a network failure.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return shared.NewNetworkError(op+": timed out", err)
	default:
		return shared.NewNetworkError(op, err)
	}
}
