package circulation

import (
	"errors"

	"github.com/erazemk/knjiznica/internal/store"
)

// Errors returned by circulation operations. Callers match them with
// errors.Is; the wrapped message names the entity involved.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidState     = errors.New("invalid state")
	ErrNotFound         = errors.New("not found")
	ErrAlreadySettled   = errors.New("already settled")
	ErrInvalidArgument  = errors.New("invalid argument")

	ErrOutOfStock = store.ErrOutOfStock
	// ErrInventoryInconsistency never fails an operation. It is reported as
	// a warning on the result.
	ErrInventoryInconsistency = store.ErrInventoryInconsistency
)
