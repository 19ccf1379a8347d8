package domain

import "errors"

// Error taxonomy surfaced to callers. Wrap with fmt.Errorf("%w: ...")
// for detail, match with errors.Is.
var (
	ErrFlightNotFound      = errors.New("flight not found")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrSeatMapNotFound     = errors.New("seat map not found")
	ErrSeatNotFound        = errors.New("seat not found")
	ErrSeatConflict        = errors.New("seat already booked")
	ErrDuplicateTicketCode = errors.New("duplicate ticket code")
	ErrInvalidState        = errors.New("invalid ticket state")
	ErrInsufficientSeats   = errors.New("insufficient seats")
	ErrTransient           = errors.New("storage temporarily unavailable")
)

// IsNotFound reports whether err is any of the NotFound family.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFlightNotFound) || errors.Is(err, ErrTicketNotFound) || errors.Is(err, ErrSeatMapNotFound) || errors.Is(err, ErrSeatNotFound)
}

// IsConflict reports whether err is a seat or ticket-code conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSeatConflict) || errors.Is(err, ErrDuplicateTicketCode)
}
