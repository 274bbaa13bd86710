package reservation

import "errors"

var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrAlreadyAllocated    = errors.New("reservation is already allocated")
	ErrLockNotAcquired     = errors.New("could not acquire product lock")
)
