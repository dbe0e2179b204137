package credits

import (
	"errors"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrInsufficientCredits):
		return "insufficient"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrDuplicateTransaction):
		return "duplicate"
	case errors.Is(err, store.ErrReservationSettled):
		return "settled"
	default:
		return "error"
	}
}
