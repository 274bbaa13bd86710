package allocation

import "errors"

var (
	ErrReservationExpired  = errors.New("reservation has expired")
	ErrNotAllocatable      = errors.New("reservation cannot be allocated in its current status")
	ErrAllocationShortfall = errors.New("reservation does not hold its full quantity")
)
