package capacity

import "errors"

var (
	ErrWarehouseNotFound = errors.New("warehouse not found")
	ErrLocationNotFound  = errors.New("storage location not found")
	ErrCapacityExceeded  = errors.New("location capacity exceeded")
)
